package render

import (
	"html"
	"sync"
)

const defaultMermaidCacheSize = 256

// mermaidCache maps exact diagram source to its rendered container so a
// re-render reuses the same markup and key.
type mermaidCache struct {
	mu    sync.Mutex
	max   int
	items map[string]string
}

func newMermaidCache(max int) *mermaidCache {
	if max <= 0 {
		max = defaultMermaidCacheSize
	}
	return &mermaidCache{max: max, items: make(map[string]string)}
}

func (c *mermaidCache) container(src string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if out, ok := c.items[src]; ok {
		return out
	}
	out := `<div class="mermaid-container" data-diagram-key="` + mermaidKey(src) + `"><pre class="mermaid">` +
		html.EscapeString(src) + `</pre></div>`
	if len(c.items) >= c.max {
		c.items = make(map[string]string)
	}
	c.items[src] = out
	return out
}

func (c *mermaidCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
