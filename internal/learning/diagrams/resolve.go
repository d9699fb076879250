package diagrams

import (
	"context"
	"html"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/neurobridge-learnview/internal/platform/logger"
)

var rePlaceholder = regexp.MustCompile(`<(div|span) class="diagram-container" data-diagram-topic="([^"]*)"><span class="diagram-loading">[^<]*</span></(?:div|span)>`)

const defaultResolveConcurrency = 4

type Resolver struct {
	lookup      Lookup
	log         *logger.Logger
	concurrency int
}

func NewResolver(lookup Lookup, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{lookup: lookup, log: log.With("service", "DiagramResolver"), concurrency: defaultResolveConcurrency}
}

// Topics lists the distinct placeholder topics in rendered HTML, in order of
// first appearance.
func Topics(rendered string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range rePlaceholder.FindAllStringSubmatch(rendered, -1) {
		t := html.UnescapeString(m[2])
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Resolve replaces every loading placeholder with an image, or with an
// "unavailable" note when no lookup finds one. Lookup failures never fail the
// whole document; cancellation of ctx does.
func (r *Resolver) Resolve(ctx context.Context, rendered string) (string, error) {
	topics := Topics(rendered)
	if len(topics) == 0 {
		return rendered, nil
	}

	var mu sync.Mutex
	found := make(map[string]Diagram, len(topics))
	if r.lookup != nil {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)
		for _, topic := range topics {
			g.Go(func() error {
				d, ok, err := r.lookup.Find(gctx, topic)
				if err != nil {
					if ctxErr := gctx.Err(); ctxErr != nil {
						return ctxErr
					}
					r.log.Warn("diagram lookup failed", "topic", topic, "error", err)
					return nil
				}
				if ok {
					mu.Lock()
					found[topic] = d
					mu.Unlock()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return rendered, err
		}
	}

	out := rePlaceholder.ReplaceAllStringFunc(rendered, func(match string) string {
		m := rePlaceholder.FindStringSubmatch(match)
		tag, topic := m[1], html.UnescapeString(m[2])
		d, ok := found[topic]
		if !ok {
			return `<` + tag + ` class="diagram-unavailable">Diagram unavailable: ` + html.EscapeString(topic) + `</` + tag + `>`
		}
		return figure(tag, d)
	})
	return out, nil
}

func figure(tag string, d Diagram) string {
	img := `<img src="` + html.EscapeString(d.URL) + `" alt="` + html.EscapeString(d.Topic) + `">`
	if tag == "span" {
		return `<span class="diagram diagram-inline">` + img + `</span>`
	}
	var b strings.Builder
	b.WriteString(`<figure class="diagram">`)
	b.WriteString(img)
	if d.Caption != "" {
		b.WriteString(`<figcaption>` + html.EscapeString(d.Caption) + `</figcaption>`)
	}
	b.WriteString(`</figure>`)
	return b.String()
}
