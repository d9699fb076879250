package learnview

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/neurobridge-learnview/internal/clients/courseapi"
	"github.com/yungbote/neurobridge-learnview/internal/domain/learning"
	"github.com/yungbote/neurobridge-learnview/internal/realtime"
)

func loadedSession(t *testing.T, h *harness, course courseapi.LibraryItem) *Session {
	t.Helper()
	h.api.search = func(context.Context, string) ([]courseapi.LibraryItem, error) {
		return []courseapi.LibraryItem{course}, nil
	}
	s := h.reg.Create("u1")
	if err := s.Load(context.Background(), Request{Topic: course.Topic, Difficulty: course.Difficulty}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func TestLateLessonResponseIsDiscarded(t *testing.T) {
	h := newHarness(t, nil)
	releaseA := make(chan struct{})
	h.api.lesson = func(_ context.Context, req courseapi.LessonRequest) (string, error) {
		if req.LessonIndex == 0 {
			<-releaseA
			return "A body", nil
		}
		return "B body", nil
	}
	s := loadedSession(t, h, libraryCourse("c1", "Go", "beginner"))

	if v, err := s.SelectLesson(context.Background(), 1, 0); err != nil || v.Status != LessonLoading {
		t.Fatalf("select A: view=%+v err=%v", v, err)
	}
	if _, err := s.SelectLesson(context.Background(), 1, 1); err != nil {
		t.Fatalf("select B: %v", err)
	}
	b, err := s.WaitLesson(context.Background(), 1, 1)
	if err != nil || b.Status != LessonReady || b.Content != "B body" {
		t.Fatalf("lesson B: view=%+v err=%v", b, err)
	}

	close(releaseA)
	s.bg.Wait()
	a, _ := s.Lesson(1, 0)
	if a.Content != "" || a.Status != LessonIdle {
		t.Fatalf("late A applied: %+v", a)
	}
	if _, ok := h.store.LessonContent(context.Background(), "Go", "beginner", 1, 0); ok {
		t.Fatalf("late A cached locally")
	}
	if st := s.State(); st.Selected == nil || st.Selected.LessonIndex != 1 {
		t.Fatalf("selection: %+v", st.Selected)
	}
}

func TestLessonFailureShowsMessageAndReselectRetries(t *testing.T) {
	h := newHarness(t, nil)
	h.api.lesson = func(context.Context, courseapi.LessonRequest) (string, error) {
		return "", errors.New("upstream 500")
	}
	s := loadedSession(t, h, libraryCourse("c1", "Go", "beginner"))

	if _, err := s.SelectLesson(context.Background(), 1, 0); err != nil {
		t.Fatalf("SelectLesson: %v", err)
	}
	v, err := s.WaitLesson(context.Background(), 1, 0)
	if err != nil || v.Status != LessonFailed || v.Content != LessonFailureMessage {
		t.Fatalf("failed view: %+v err=%v", v, err)
	}
	if !h.events.has(realtime.SSEEventToast) {
		t.Fatalf("no toast published")
	}
	if st := s.State(); st.Course.Modules[0].Lessons[0].Content != "" {
		t.Fatalf("failure written into course content")
	}

	h.api.lesson = nil
	if _, err := s.SelectLesson(context.Background(), 1, 0); err != nil {
		t.Fatalf("reselect: %v", err)
	}
	v, _ = s.WaitLesson(context.Background(), 1, 0)
	if v.Status != LessonReady || v.Content != "# Intro" {
		t.Fatalf("retry view: %+v", v)
	}
	if got := h.api.count("GenerateLesson"); got != 2 {
		t.Fatalf("GenerateLesson calls: got=%d", got)
	}
}

func TestCachedLessonSkipsFetch(t *testing.T) {
	h := newHarness(t, nil)
	h.store.SetLessonContent(context.Background(), "Go", "beginner", 1, 0, "cached body")
	s := loadedSession(t, h, libraryCourse("c1", "Go", "beginner"))

	v, err := s.SelectLesson(context.Background(), 1, 0)
	if err != nil || v.Status != LessonReady || v.Content != "cached body" {
		t.Fatalf("cached view: %+v err=%v", v, err)
	}
	if got := h.api.count("GenerateLesson"); got != 0 {
		t.Fatalf("fetched despite cache: calls=%d", got)
	}
	if pos, ok := h.store.Position(context.Background(), "c1"); !ok || pos.ModuleID != 1 || pos.LessonIndex != 0 {
		t.Fatalf("position: %+v ok=%v", pos, ok)
	}
}

func TestPlaceholderContentIsRefetchedAndCached(t *testing.T) {
	h := newHarness(t, nil)
	course := libraryCourse("c1", "Go", "beginner")
	course.Modules = []learning.Module{{Title: "Basics", Lessons: []learning.Lesson{{Title: "Intro", Content: learning.PlaceholderContent}}}}
	s := loadedSession(t, h, course)

	if _, err := s.SelectLesson(context.Background(), 1, 0); err != nil {
		t.Fatalf("SelectLesson: %v", err)
	}
	v, _ := s.WaitLesson(context.Background(), 1, 0)
	if v.Status != LessonReady || v.Content != "# Intro" {
		t.Fatalf("view: %+v", v)
	}
	if got, ok := h.store.LessonContent(context.Background(), "Go", "beginner", 1, 0); !ok || got != "# Intro" {
		t.Fatalf("local cache: %q ok=%v", got, ok)
	}
	if _, err := s.SelectLesson(context.Background(), 1, 0); err != nil {
		t.Fatalf("reselect: %v", err)
	}
	if got := h.api.count("GenerateLesson"); got != 1 {
		t.Fatalf("GenerateLesson calls: got=%d", got)
	}
}

func TestPrefetchSelectedLesson(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.PrefetchSelected = true })
	s := loadedSession(t, h, libraryCourse("c1", "Go", "beginner"))
	v, err := s.WaitLesson(context.Background(), 1, 0)
	if err != nil || v.Status != LessonReady {
		t.Fatalf("prefetched view: %+v err=%v", v, err)
	}
}

func TestSelectLessonErrors(t *testing.T) {
	h := newHarness(t, nil)
	s := h.reg.Create("u1")
	if _, err := s.SelectLesson(context.Background(), 1, 0); !errors.Is(err, ErrNoCourse) {
		t.Fatalf("no course: got=%v", err)
	}
	s = loadedSession(t, h, libraryCourse("c1", "Go", "beginner"))
	if _, err := s.SelectLesson(context.Background(), 1, 5); !errors.Is(err, ErrLessonNotFound) {
		t.Fatalf("out of range: got=%v", err)
	}
	s.Close()
	if _, err := s.SelectLesson(context.Background(), 1, 0); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("closed: got=%v", err)
	}
}
