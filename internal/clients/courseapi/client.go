package courseapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/neurobridge-learnview/internal/domain/learning"
	"github.com/yungbote/neurobridge-learnview/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-learnview/internal/platform/httpx"
	"github.com/yungbote/neurobridge-learnview/internal/platform/logger"
)

// Client is the remote course repository: the content API that stores the
// library and runs the expensive generation calls.
type Client interface {
	LibraryItem(ctx context.Context, id string) (*LibraryItem, error)
	SearchLibrary(ctx context.Context, topic string, limit int) ([]LibraryItem, error)
	SearchCollection(ctx context.Context, format learning.Format, topic string, limit int) ([]LibraryItem, error)
	SaveCourse(ctx context.Context, req GenerateRequest, item LibraryItem) error

	GenerateCourse(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	GenerateFlashcards(ctx context.Context, topic, difficulty string) (*GenerateResponse, error)
	GenerateLesson(ctx context.Context, req LessonRequest) (string, error)

	SaveProgress(ctx context.Context, up ProgressUpdate) error
	SaveConversation(ctx context.Context, scope learning.Scope, msgs []learning.Message) error
	Conversation(ctx context.Context, scope learning.Scope) ([]learning.Message, error)
	Usage(ctx context.Context) (*Usage, error)
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("missing content api base url")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("content api base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	if log == nil {
		log = logger.Nop()
	}
	return &client{
		log:        log.With("service", "CourseAPIClient"),
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: retries,
	}, nil
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var rdr io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
		rdr = &buf
	}
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, c.baseURL+path, rdr)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := ctxutil.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-Id", id)
	}
	if tok := ctxutil.BearerToken(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		q := &QuotaError{}
		_ = json.Unmarshal(raw, q)
		return resp, raw, q
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return resp, raw, nil
}

// do sends one request. Only idempotent reads are retried; generation and
// writes are attempted exactly once.
func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	attempts := 1
	if method == http.MethodGet {
		attempts += c.maxRetries
	}
	backoff := 500 * time.Millisecond

	for attempt := 1; ; attempt++ {
		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil || len(bytes.TrimSpace(raw)) == 0 {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("%w: decode %s: %v", ErrInvalidPayload, path, uErr)
			}
			return nil
		}
		if attempt >= attempts || !httpx.IsRetryableError(err) {
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 5*time.Second))
		c.log.Warn("content api request retrying",
			"path", path,
			"attempt", attempt,
			"max_attempts", attempts,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if sErr := httpx.Sleep(ctx, sleepFor); sErr != nil {
			return sErr
		}
		backoff *= 2
	}
}

func (c *client) LibraryItem(ctx context.Context, id string) (*LibraryItem, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("library id required")
	}
	var out itemResponse
	if err := c.do(ctx, http.MethodGet, "/library?id="+url.QueryEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out.Item, nil
}

func (c *client) SearchLibrary(ctx context.Context, topic string, limit int) ([]LibraryItem, error) {
	return c.search(ctx, "", topic, limit)
}

func (c *client) SearchCollection(ctx context.Context, format learning.Format, topic string, limit int) ([]LibraryItem, error) {
	return c.search(ctx, string(format), topic, limit)
}

func (c *client) search(ctx context.Context, kind, topic string, limit int) ([]LibraryItem, error) {
	if limit <= 0 {
		limit = 50
	}
	q := url.Values{}
	q.Set("search", topic)
	q.Set("limit", strconv.Itoa(limit))
	if kind != "" {
		q.Set("type", kind)
	}
	var out searchResponse
	if err := c.do(ctx, http.MethodGet, "/library?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *client) SaveCourse(ctx context.Context, req GenerateRequest, item LibraryItem) error {
	var data any = item.CourseData
	if item.CourseData == nil {
		data = item
	}
	return c.do(ctx, http.MethodPost, "/library", saveCourseRequest{
		Action:     "saveCourse",
		Topic:      req.Topic,
		Difficulty: req.Difficulty,
		Format:     req.Format,
		CourseData: data,
	}, nil)
}

func (c *client) GenerateCourse(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	var out GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/generate-course", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) GenerateFlashcards(ctx context.Context, topic, difficulty string) (*GenerateResponse, error) {
	var out GenerateResponse
	body := map[string]string{"topic": topic, "difficulty": difficulty}
	if err := c.do(ctx, http.MethodPost, "/generate-flashcards", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) GenerateLesson(ctx context.Context, req LessonRequest) (string, error) {
	req.Action = "generateLesson"
	var out lessonResponse
	if err := c.do(ctx, http.MethodPost, "/course-agent", req, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Content) == "" {
		return "", fmt.Errorf("%w: empty lesson content", ErrInvalidPayload)
	}
	return out.Content, nil
}

func (c *client) SaveProgress(ctx context.Context, up ProgressUpdate) error {
	return c.do(ctx, http.MethodPost, "/course-progress", up, nil)
}

func (c *client) SaveConversation(ctx context.Context, scope learning.Scope, msgs []learning.Message) error {
	return c.do(ctx, http.MethodPost, "/library", conversationRequest{
		Action:     "saveConversation",
		CourseID:   scope.CourseID,
		Topic:      scope.Topic,
		Difficulty: scope.Difficulty,
		Format:     scope.Format,
		Messages:   msgs,
	}, nil)
}

func (c *client) Conversation(ctx context.Context, scope learning.Scope) ([]learning.Message, error) {
	var out conversationResponse
	err := c.do(ctx, http.MethodPost, "/library", conversationRequest{
		Action:     "getConversation",
		CourseID:   scope.CourseID,
		Topic:      scope.Topic,
		Difficulty: scope.Difficulty,
		Format:     scope.Format,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *client) Usage(ctx context.Context) (*Usage, error) {
	var out Usage
	if err := c.do(ctx, http.MethodGet, "/usage", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
