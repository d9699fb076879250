// Package diagrams resolves "[Wikipedia Diagram: X]" placeholders left by the
// renderer into images, from a curated catalog first and Wikipedia second.
package diagrams

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogFS embed.FS

type Diagram struct {
	Topic   string
	URL     string
	Caption string
}

// Lookup finds a diagram for a topic. A missing diagram is (zero, false, nil);
// errors are reserved for failures worth logging.
type Lookup interface {
	Find(ctx context.Context, topic string) (Diagram, bool, error)
}

type catalogFile struct {
	Version  int            `yaml:"version"`
	Diagrams []catalogEntry `yaml:"diagrams"`
}

type catalogEntry struct {
	Topic   string   `yaml:"topic"`
	Aliases []string `yaml:"aliases"`
	URL     string   `yaml:"url"`
	Caption string   `yaml:"caption"`
}

type Catalog struct {
	byKey map[string]Diagram
}

// LoadCatalog reads a catalog file, or the embedded default when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	var (
		data []byte
		err  error
	)
	if strings.TrimSpace(path) == "" {
		data, err = defaultCatalogFS.ReadFile("catalog.yaml")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read diagram catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse diagram catalog: %w", err)
	}
	c := &Catalog{byKey: make(map[string]Diagram, len(f.Diagrams))}
	for i, e := range f.Diagrams {
		if strings.TrimSpace(e.Topic) == "" || strings.TrimSpace(e.URL) == "" {
			return nil, fmt.Errorf("diagram catalog entry %d: topic and url are required", i)
		}
		d := Diagram{Topic: strings.TrimSpace(e.Topic), URL: strings.TrimSpace(e.URL), Caption: strings.TrimSpace(e.Caption)}
		if d.Caption == "" {
			d.Caption = d.Topic
		}
		for _, k := range append([]string{e.Topic}, e.Aliases...) {
			if key := normalizeTopic(k); key != "" {
				c.byKey[key] = d
			}
		}
	}
	return c, nil
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byKey)
}

func (c *Catalog) Find(_ context.Context, topic string) (Diagram, bool, error) {
	if c == nil {
		return Diagram{}, false, nil
	}
	d, ok := c.byKey[normalizeTopic(topic)]
	return d, ok, nil
}

func normalizeTopic(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

type chain []Lookup

// Chain consults lookups in order and returns the first hit. Errors from
// earlier lookups only surface when nothing matched.
func Chain(lookups ...Lookup) Lookup {
	var c chain
	for _, l := range lookups {
		if l != nil {
			c = append(c, l)
		}
	}
	return c
}

func (c chain) Find(ctx context.Context, topic string) (Diagram, bool, error) {
	var errs []error
	for _, l := range c {
		d, ok, err := l.Find(ctx, topic)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return d, true, nil
		}
	}
	return Diagram{}, false, errors.Join(errs...)
}
