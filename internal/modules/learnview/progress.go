package learnview

import (
	"context"

	"github.com/yungbote/neurobridge-learnview/internal/clients/courseapi"
	"github.com/yungbote/neurobridge-learnview/internal/domain/learning"
	"github.com/yungbote/neurobridge-learnview/internal/realtime"
)

type ProgressView struct {
	Completed []string `json:"completed"`
	Progress  int      `json:"progress"`
	Lesson    string   `json:"lesson"`
	Done      bool     `json:"done"`
}

// SetLessonCompleted toggles one lesson. The local store is written first
// and the content API is informed in the background.
func (s *Session) SetLessonCompleted(ctx context.Context, moduleID, lessonIndex int, completed bool) (ProgressView, error) {
	s.touch()
	key := learning.LessonKey(moduleID, lessonIndex)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ProgressView{}, ErrSessionClosed
	}
	if s.course == nil {
		s.mu.Unlock()
		return ProgressView{}, ErrNoCourse
	}
	if _, _, ok := s.course.Lesson(moduleID, lessonIndex); !ok {
		s.mu.Unlock()
		return ProgressView{}, ErrLessonNotFound
	}
	set := s.completed.Clone()
	if completed {
		set.Add(key)
	} else {
		set.Remove(key)
	}
	s.completed = set
	s.course = s.course.WithCompletion(set)
	pct := s.course.ProgressPercent(set)
	courseID := s.course.ID
	scope := s.req.scope(courseID)
	s.mu.Unlock()

	s.deps.Store.SetProgress(ctx, scope, set)

	view := ProgressView{Completed: set.Keys(), Progress: pct, Lesson: key, Done: completed}
	if courseID != "" {
		up := courseapi.ProgressUpdate{
			CourseID:          courseID,
			Progress:          pct,
			Completed:         pct == 100,
			IsLessonCompleted: completed,
			LessonID:          key,
		}
		s.background(ctx, "save_progress", func(ctx context.Context) error {
			return s.deps.API.SaveProgress(ctx, up)
		})
	}
	s.publish(realtime.SSEEventProgressUpdated, view)
	return view, nil
}
