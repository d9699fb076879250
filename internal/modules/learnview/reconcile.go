package learnview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/neurobridge-learnview/internal/clients/courseapi"
	"github.com/yungbote/neurobridge-learnview/internal/domain/learning"
	pkgerrors "github.com/yungbote/neurobridge-learnview/internal/pkg/errors"
	"github.com/yungbote/neurobridge-learnview/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-learnview/internal/realtime"
)

const (
	SourceLibraryID     = "library_id"
	SourceLibrarySearch = "library_search"
	SourceCollection    = "collection"
	SourceGenerated     = "generated"

	librarySearchLimit = 50
)

var tracer = otel.Tracer("github.com/yungbote/neurobridge-learnview/internal/modules/learnview")

type resolution struct {
	item      courseapi.LibraryItem
	source    string
	genReq    courseapi.GenerateRequest
	persisted bool
}

// Normalize trims the request, defaults the difficulty to beginner and
// rejects unknown formats or a request naming neither topic nor id.
func (req Request) Normalize() (Request, error) {
	req.ID = strings.TrimSpace(req.ID)
	req.Topic = strings.TrimSpace(req.Topic)
	req.Difficulty = strings.ToLower(strings.TrimSpace(req.Difficulty))
	if req.Difficulty == "" {
		req.Difficulty = learning.DifficultyBeginner
	}
	format, err := learning.ParseFormat(string(req.Format))
	if err != nil {
		return req, fmt.Errorf("%w: %v", pkgerrors.ErrInvalidArgument, err)
	}
	req.Format = format
	if req.Topic == "" && req.ID == "" {
		return req, fmt.Errorf("%w: topic or id required", pkgerrors.ErrInvalidArgument)
	}
	return req, nil
}

// Load resolves what the session displays: an explicit library id, then a
// library search, then the format's own collection, and only then a
// generation call. A Load arriving while another runs is ignored.
func (s *Session) Load(ctx context.Context, req Request) error {
	req, err := req.Normalize()
	if err != nil {
		return err
	}
	if s.Closed() {
		return ErrSessionClosed
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.log.Debug("reconciliation ignored; one is already in flight", "topic", req.Topic)
		return ErrReconcileInFlight
	}
	epoch := s.epoch.Add(1)

	s.mu.Lock()
	s.req = req
	s.loading = true
	s.timedOut = false
	s.upgrade = false
	s.mu.Unlock()
	s.touch()

	watchdog := time.AfterFunc(s.deps.ReconcileTimeout, func() { s.expire(epoch) })
	defer watchdog.Stop()
	defer s.release(epoch)

	lctx, cancel := s.scoped(ctx)
	defer cancel()
	lctx, span := tracer.Start(lctx, "learnview.Load", trace.WithAttributes(
		attribute.String("learn.topic", req.Topic),
		attribute.String("learn.format", string(req.Format)),
		attribute.String("learn.difficulty", req.Difficulty),
		attribute.Bool("learn.explicit_id", req.ID != ""),
	))
	defer span.End()

	res, err := s.resolve(lctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return s.fail(epoch, err)
	}
	span.SetAttributes(attribute.String("learn.source", res.source))

	if err := s.apply(lctx, epoch, req, res); err != nil {
		return err
	}
	if res.source == SourceGenerated {
		if !res.persisted {
			item := res.item
			genReq := res.genReq
			s.background(lctx, "save_course", func(ctx context.Context) error {
				return s.deps.API.SaveCourse(ctx, genReq, item)
			})
		}
		s.background(lctx, "refresh_usage", s.RefreshUsage)
	}
	return nil
}

func (s *Session) resolve(ctx context.Context, req Request) (resolution, error) {
	log := s.log.With("topic", req.Topic, "format", req.Format, "difficulty", req.Difficulty)

	if req.ID != "" {
		item, err := s.deps.API.LibraryItem(ctx, req.ID)
		switch {
		case err != nil && ctx.Err() != nil:
			return resolution{}, ctx.Err()
		case err != nil:
			log.Warn("library lookup by id failed; searching instead", "id", req.ID, "error", err)
		case item != nil && hasPayload(*item, req.Format):
			return resolution{item: *item, source: SourceLibraryID}, nil
		}
	}

	if req.Topic != "" {
		var (
			items  []courseapi.LibraryItem
			err    error
			source = SourceLibrarySearch
		)
		if req.Format == learning.FormatCourse {
			items, err = s.deps.API.SearchLibrary(ctx, req.Topic, librarySearchLimit)
		} else {
			items, err = s.deps.API.SearchCollection(ctx, req.Format, req.Topic, librarySearchLimit)
			source = SourceCollection
		}
		if err != nil {
			if ctx.Err() != nil {
				return resolution{}, ctx.Err()
			}
			log.Warn("library search failed; falling back to generation", "error", err)
		} else if it, ok := findMatch(items, req.Topic, req.Difficulty, req.Format); ok {
			return resolution{item: it, source: source}, nil
		}
	}

	if learning.RequiresPremium(req.Difficulty) && !s.premium(ctx) {
		return resolution{}, ErrUpgradeRequired
	}
	if req.Topic == "" {
		return resolution{}, fmt.Errorf("%w: nothing in the library for id %q", courseapi.ErrInvalidPayload, req.ID)
	}

	genReq := courseapi.GenerateRequest{Topic: req.Topic, Format: req.Format, Difficulty: req.Difficulty, Questions: req.Questions}
	var (
		resp *courseapi.GenerateResponse
		err  error
	)
	if req.Format == learning.FormatFlashcards {
		resp, err = s.deps.API.GenerateFlashcards(ctx, req.Topic, req.Difficulty)
	} else {
		resp, err = s.deps.API.GenerateCourse(ctx, genReq)
	}
	if err != nil {
		return resolution{}, err
	}
	item := resp.AsItem(genReq)
	if !hasPayload(item, req.Format) {
		return resolution{}, fmt.Errorf("%w: generated %s has no content", courseapi.ErrInvalidPayload, req.Format)
	}
	log.Info("generated new content", "course_id", item.Identifier(), "existing", resp.IsExisting)
	return resolution{item: item, source: SourceGenerated, genReq: genReq, persisted: resp.IsExisting}, nil
}

func (s *Session) premium(ctx context.Context) bool {
	if rd := ctxutil.GetRequestData(ctx); rd != nil && rd.Premium {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage != nil && s.usage.IsPremium
}

// apply installs a resolved item if this load is still the current one.
func (s *Session) apply(ctx context.Context, epoch uint64, req Request, res resolution) error {
	var (
		course    *learning.Course
		quiz      *learning.Quiz
		deck      *learning.Deck
		completed = learning.ProgressSet{}
		selected  *SelectedLesson
	)
	switch req.Format {
	case learning.FormatQuiz:
		quiz = &learning.Quiz{ID: res.item.Identifier(), Topic: req.Topic, Difficulty: req.Difficulty, Questions: res.item.QuizQuestions()}
	case learning.FormatFlashcards:
		deck = &learning.Deck{ID: res.item.Identifier(), Topic: req.Topic, Difficulty: req.Difficulty, Cards: res.item.DeckCards()}
	default:
		course = res.item.Course()
		if course.Topic == "" {
			course.Topic = req.Topic
		}
		if course.Difficulty == "" {
			course.Difficulty = req.Difficulty
		}
		scope := req.scope(course.ID)
		completed = learning.Merge(learning.CompletedFromCourse(course), s.deps.Store.Progress(ctx, scope))
		course = course.WithCompletion(completed)
		selected = s.restorePosition(ctx, course)
	}

	s.mu.Lock()
	if s.closed || s.epoch.Load() != epoch {
		s.mu.Unlock()
		s.log.Info("discarding stale reconciliation result", "source", res.source)
		return context.Canceled
	}
	s.loading = false
	s.errMsg = ""
	s.quota = nil
	s.source = res.source
	s.course, s.quiz, s.deck = course, quiz, deck
	s.completed = completed
	s.selected = selected
	s.lessons = make(map[string]lessonStatus)
	s.convLoaded = false
	s.conversation = nil
	s.mu.Unlock()

	s.log.Info("learn session ready", "source", res.source, "format", req.Format)
	s.publish(realtime.SSEEventCourseReady, map[string]any{"source": res.source, "format": req.Format})
	s.publish(realtime.SSEEventLoadingDone, map[string]any{"timedOut": false})

	if course != nil && selected != nil && s.deps.PrefetchSelected {
		if _, err := s.SelectLesson(context.WithoutCancel(ctx), selected.ModuleID, selected.LessonIndex); err != nil {
			s.log.Warn("prefetch of selected lesson failed", "error", err)
		}
	}
	return nil
}

func (s *Session) restorePosition(ctx context.Context, course *learning.Course) *SelectedLesson {
	if pos, ok := s.deps.Store.Position(ctx, course.ID); ok {
		if _, _, found := course.Lesson(pos.ModuleID, pos.LessonIndex); found {
			return &SelectedLesson{ModuleID: pos.ModuleID, LessonIndex: pos.LessonIndex}
		}
	}
	if _, _, found := course.Lesson(1, 0); found {
		return &SelectedLesson{ModuleID: 1, LessonIndex: 0}
	}
	return nil
}

// fail records a failed load. Quota and upgrade outcomes are not page errors.
func (s *Session) fail(epoch uint64, err error) error {
	s.mu.Lock()
	if s.closed || s.epoch.Load() != epoch {
		s.mu.Unlock()
		return err
	}
	s.loading = false
	var event realtime.SSEEvent
	var data any
	switch q, isQuota := courseapi.AsQuota(err); {
	case isQuota:
		s.quota = &QuotaModal{Used: q.Used, Limit: q.Limit}
		s.usage = &courseapi.Usage{Used: q.Used, Limit: q.Limit, IsPremium: q.IsPremium}
		event, data = realtime.SSEEventQuotaExceeded, QuotaModal{Used: q.Used, Limit: q.Limit}
	case errors.Is(err, ErrUpgradeRequired):
		s.upgrade = true
		event, data = realtime.SSEEventUpgradeRequired, map[string]any{"difficulty": s.req.Difficulty}
	case errors.Is(err, context.Canceled):
	default:
		s.errMsg = err.Error()
	}
	s.mu.Unlock()

	if event != "" {
		s.publish(event, data)
	} else if !errors.Is(err, context.Canceled) {
		s.log.Warn("reconciliation failed", "error", err)
	}
	s.publish(realtime.SSEEventLoadingDone, map[string]any{"timedOut": false})
	return err
}

// expire is the watchdog: it clears loading and frees the guard so the
// learner can retry, without cancelling the underlying call.
func (s *Session) expire(epoch uint64) {
	if s.epoch.Load() != epoch || !s.inFlight.CompareAndSwap(true, false) {
		return
	}
	s.mu.Lock()
	s.loading = false
	s.timedOut = true
	s.mu.Unlock()
	s.log.Warn("reconciliation watchdog fired", "timeout", s.deps.ReconcileTimeout.String())
	s.publish(realtime.SSEEventLoadingDone, map[string]any{"timedOut": true})
}

func (s *Session) release(epoch uint64) {
	if s.epoch.Load() == epoch {
		s.inFlight.Store(false)
	}
	s.mu.Lock()
	if s.epoch.Load() == epoch {
		s.loading = false
	}
	s.mu.Unlock()
}

// RefreshUsage reloads the caller's generation allowance.
func (s *Session) RefreshUsage(ctx context.Context) error {
	u, err := s.deps.API.Usage(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.usage = u
	s.mu.Unlock()
	return nil
}
