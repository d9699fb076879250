package learnview

import (
	"context"
	"errors"
	"time"

	"github.com/yungbote/neurobridge-learnview/internal/clients/courseapi"
	"github.com/yungbote/neurobridge-learnview/internal/domain/learning"
	"github.com/yungbote/neurobridge-learnview/internal/realtime"
)

// slotActive is the lane for the lesson on screen: a new selection cancels
// whatever the lane was fetching.
const slotActive = "active"

type LessonStatus string

const (
	LessonIdle    LessonStatus = "idle"
	LessonLoading LessonStatus = "loading"
	LessonReady   LessonStatus = "ready"
	LessonFailed  LessonStatus = "failed"
)

type lessonStatus struct {
	status LessonStatus
	err    string
}

type slot struct {
	key    string
	cancel context.CancelFunc
	done   chan struct{}
}

type LessonView struct {
	ModuleID    int          `json:"moduleId"`
	LessonIndex int          `json:"lessonIndex"`
	ModuleTitle string       `json:"moduleTitle"`
	Title       string       `json:"title"`
	Status      LessonStatus `json:"status"`
	Content     string       `json:"content,omitempty"`
	Error       string       `json:"error,omitempty"`
	Completed   bool         `json:"completed"`
}

// SelectLesson makes a lesson current, persists the position and returns its
// content when already known. Otherwise a fetch starts in the active slot and
// the view comes back as loading; the fetch outlives ctx and is only
// cancelled by a later selection or by closing the session.
func (s *Session) SelectLesson(ctx context.Context, moduleID, lessonIndex int) (LessonView, error) {
	s.touch()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return LessonView{}, ErrSessionClosed
	}
	course := s.course
	if course == nil {
		s.mu.Unlock()
		return LessonView{}, ErrNoCourse
	}
	mod, lesson, ok := course.Lesson(moduleID, lessonIndex)
	if !ok {
		s.mu.Unlock()
		return LessonView{}, ErrLessonNotFound
	}
	key := learning.LessonKey(moduleID, lessonIndex)
	s.selected = &SelectedLesson{ModuleID: moduleID, LessonIndex: lessonIndex}
	if prev := s.slots[slotActive]; prev != nil && prev.key != key {
		prev.cancel()
		delete(s.slots, slotActive)
		if st := s.lessons[prev.key]; st.status == LessonLoading {
			delete(s.lessons, prev.key)
		}
	}
	inFlight := s.slots[slotActive] != nil
	s.mu.Unlock()

	s.deps.Store.SetPosition(ctx, course.ID, learning.Position{ModuleID: moduleID, LessonIndex: lessonIndex, UpdatedAt: time.Now().UTC()})

	if lesson.HasContent() {
		return s.Lesson(moduleID, lessonIndex)
	}
	if inFlight {
		return s.Lesson(moduleID, lessonIndex)
	}
	if cached, ok := s.deps.Store.LessonContent(ctx, course.Topic, course.Difficulty, moduleID, lessonIndex); ok {
		if err := s.installLesson(moduleID, lessonIndex, cached); err != nil {
			return LessonView{}, err
		}
		return s.Lesson(moduleID, lessonIndex)
	}

	req := courseapi.LessonRequest{
		CourseID:    course.ID,
		ModuleID:    moduleID,
		LessonIndex: lessonIndex,
		LessonTitle: lesson.Title,
		ModuleTitle: mod.Title,
		CourseTopic: course.Topic,
		Difficulty:  course.Difficulty,
	}
	s.startFetch(ctx, key, req)
	return s.Lesson(moduleID, lessonIndex)
}

func (s *Session) startFetch(ctx context.Context, key string, req courseapi.LessonRequest) {
	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.ctx, cancel)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		stop()
		cancel()
		return
	}
	if prev := s.slots[slotActive]; prev != nil {
		prev.cancel()
	}
	sl := &slot{key: key, cancel: cancel, done: make(chan struct{})}
	s.slots[slotActive] = sl
	s.lessons[key] = lessonStatus{status: LessonLoading}
	s.mu.Unlock()

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		defer close(sl.done)
		defer stop()
		defer cancel()
		s.fetchLesson(fctx, sl, req)
	}()
}

func (s *Session) fetchLesson(ctx context.Context, sl *slot, req courseapi.LessonRequest) {
	ctx, span := tracer.Start(ctx, "learnview.FetchLesson")
	defer span.End()

	content, err := s.deps.API.GenerateLesson(ctx, req)

	s.mu.Lock()
	current := !s.closed && s.slots[slotActive] == sl
	if current {
		delete(s.slots, slotActive)
	}
	if err != nil {
		if !current || ctx.Err() != nil || errors.Is(err, context.Canceled) {
			if current {
				delete(s.lessons, sl.key)
			}
			s.mu.Unlock()
			s.log.Debug("lesson fetch abandoned", "lesson", sl.key)
			return
		}
		s.lessons[sl.key] = lessonStatus{status: LessonFailed, err: err.Error()}
		s.mu.Unlock()
		span.RecordError(err)
		s.log.Warn("lesson generation failed", "lesson", sl.key, "error", err)
		s.publish(realtime.SSEEventToast, map[string]any{"level": "error", "message": LessonFailureMessage, "lesson": sl.key})
		s.publish(realtime.SSEEventLessonReady, map[string]any{"lesson": sl.key, "status": LessonFailed})
		return
	}
	s.mu.Unlock()
	if !current {
		s.log.Debug("superseded lesson result dropped", "lesson", sl.key)
		return
	}
	if err := s.installLesson(req.ModuleID, req.LessonIndex, content); err != nil {
		s.log.Warn("lesson result could not be installed", "lesson", sl.key, "error", err)
		return
	}
	s.deps.Store.SetLessonContent(ctx, req.CourseTopic, req.Difficulty, req.ModuleID, req.LessonIndex, content)
	s.publish(realtime.SSEEventLessonReady, map[string]any{"lesson": sl.key, "status": LessonReady})
}

// installLesson copies the course with one lesson body replaced.
func (s *Session) installLesson(moduleID, lessonIndex int, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	next, err := s.course.WithLessonContent(moduleID, lessonIndex, content)
	if err != nil {
		return err
	}
	s.course = next
	s.lessons[learning.LessonKey(moduleID, lessonIndex)] = lessonStatus{status: LessonReady}
	return nil
}

// Lesson reports a lesson's current view without side effects.
func (s *Session) Lesson(moduleID, lessonIndex int) (LessonView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.course == nil {
		return LessonView{}, ErrNoCourse
	}
	mod, lesson, ok := s.course.Lesson(moduleID, lessonIndex)
	if !ok {
		return LessonView{}, ErrLessonNotFound
	}
	key := learning.LessonKey(moduleID, lessonIndex)
	v := LessonView{
		ModuleID:    moduleID,
		LessonIndex: lessonIndex,
		ModuleTitle: mod.Title,
		Title:       lesson.Title,
		Status:      LessonIdle,
		Completed:   s.completed.Has(key),
	}
	st, tracked := s.lessons[key]
	switch {
	case lesson.HasContent():
		v.Status = LessonReady
		v.Content = lesson.Content
	case tracked && st.status == LessonFailed:
		v.Status = LessonFailed
		v.Content = LessonFailureMessage
		v.Error = st.err
	case tracked:
		v.Status = st.status
	}
	return v, nil
}

// WaitLesson blocks until the active slot stops fetching this lesson.
func (s *Session) WaitLesson(ctx context.Context, moduleID, lessonIndex int) (LessonView, error) {
	key := learning.LessonKey(moduleID, lessonIndex)
	s.mu.Lock()
	sl := s.slots[slotActive]
	s.mu.Unlock()
	if sl != nil && sl.key == key {
		select {
		case <-sl.done:
		case <-ctx.Done():
			return LessonView{}, ctx.Err()
		}
	}
	return s.Lesson(moduleID, lessonIndex)
}
