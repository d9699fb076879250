package diagrams

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yungbote/neurobridge-learnview/internal/platform/logger"
)

const DefaultWikipediaBaseURL = "https://en.wikipedia.org/api/rest_v1"

type WikipediaConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Wikipedia looks topics up through the REST page summary endpoint and uses
// the lead image. Results, including misses, are memoized per topic and
// concurrent lookups for the same topic share one request.
type Wikipedia struct {
	log  *logger.Logger
	base string
	http *http.Client

	sf    singleflight.Group
	mu    sync.RWMutex
	cache map[string]wikiResult
}

type wikiResult struct {
	diagram Diagram
	found   bool
}

type wikiSummary struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	OriginalImage *struct {
		Source string `json:"source"`
	} `json:"originalimage"`
	Thumbnail *struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
}

func NewWikipedia(log *logger.Logger, cfg WikipediaConfig) *Wikipedia {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultWikipediaBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Wikipedia{
		log:   log.With("service", "WikipediaDiagrams"),
		base:  base,
		http:  &http.Client{Timeout: timeout},
		cache: make(map[string]wikiResult),
	}
}

func (w *Wikipedia) Find(ctx context.Context, topic string) (Diagram, bool, error) {
	key := normalizeTopic(topic)
	if key == "" {
		return Diagram{}, false, nil
	}
	w.mu.RLock()
	res, ok := w.cache[key]
	w.mu.RUnlock()
	if ok {
		return res.diagram, res.found, nil
	}

	v, err, _ := w.sf.Do(key, func() (any, error) {
		r, err := w.fetch(ctx, topic)
		if err != nil {
			return nil, err
		}
		w.mu.Lock()
		w.cache[key] = r
		w.mu.Unlock()
		return r, nil
	})
	if err != nil {
		return Diagram{}, false, err
	}
	r := v.(wikiResult)
	return r.diagram, r.found, nil
}

func (w *Wikipedia) fetch(ctx context.Context, topic string) (wikiResult, error) {
	title := strings.ReplaceAll(strings.TrimSpace(topic), " ", "_")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.base+"/page/summary/"+url.PathEscape(title), nil)
	if err != nil {
		return wikiResult{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := w.http.Do(req)
	if err != nil {
		return wikiResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return wikiResult{}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return wikiResult{}, fmt.Errorf("wikipedia summary %q: status %d: %s", topic, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var s wikiSummary
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return wikiResult{}, fmt.Errorf("wikipedia summary %q: %w", topic, err)
	}

	src := ""
	if s.OriginalImage != nil {
		src = s.OriginalImage.Source
	}
	if src == "" && s.Thumbnail != nil {
		src = s.Thumbnail.Source
	}
	if src == "" {
		w.log.Debug("wikipedia page has no image", "topic", topic)
		return wikiResult{}, nil
	}
	caption := s.Title
	if s.Description != "" {
		caption = s.Title + ": " + s.Description
	}
	if caption == "" {
		caption = topic
	}
	return wikiResult{diagram: Diagram{Topic: topic, URL: src, Caption: caption}, found: true}, nil
}
