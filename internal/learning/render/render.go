// Package render turns generated lesson text (a loose Markdown dialect with
// math, tables and diagram markers) into sanitized HTML fragments.
package render

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

type Options struct {
	// MermaidCacheSize bounds the diagram container cache; zero uses the default.
	MermaidCacheSize int
}

// Renderer is safe for concurrent use.
type Renderer struct {
	policy  *bluemonday.Policy
	mermaid *mermaidCache
}

func New(opts Options) *Renderer {
	return &Renderer{
		policy:  newPolicy(),
		mermaid: newMermaidCache(opts.MermaidCacheSize),
	}
}

var defaultRenderer = New(Options{})

// RenderContent renders with the shared default renderer.
func RenderContent(raw string) string {
	return defaultRenderer.Render(raw)
}

// Render converts raw lesson text to HTML. Empty input yields empty output,
// and rendering already rendered output returns it unchanged.
func (r *Renderer) Render(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	blocks := parseBlocks(raw)
	var b strings.Builder
	for i, blk := range blocks {
		if i > 0 {
			b.WriteByte('\n')
		}
		r.writeBlock(&b, blk)
	}
	return r.policy.Sanitize(b.String())
}

// MermaidCacheLen reports how many diagram sources are memoized.
func (r *Renderer) MermaidCacheLen() int {
	return r.mermaid.Len()
}

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "strong", "em", "b", "i", "u", "sub", "sup", "code", "pre",
		"h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "hr",
		"ul", "ol", "li", "table", "thead", "tbody", "tr", "th", "td",
		"div", "span", "figure", "figcaption", "section",
	)
	p.AllowAttrs("class").Globally()
	p.AllowDataAttributes()
	p.AllowAttrs("start").Matching(regexp.MustCompile(`^[0-9]+$`)).OnElements("ol")
	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.AllowImages()
	return p
}
