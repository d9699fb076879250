package learnview

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/neurobridge-learnview/internal/clients/courseapi"
	"github.com/yungbote/neurobridge-learnview/internal/data/localstore"
	"github.com/yungbote/neurobridge-learnview/internal/domain/learning"
	"github.com/yungbote/neurobridge-learnview/internal/platform/logger"
	"github.com/yungbote/neurobridge-learnview/internal/realtime"
)

// fakeAPI answers from optional hooks and records every call.
type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int

	libraryItem  func(ctx context.Context, id string) (*courseapi.LibraryItem, error)
	search       func(ctx context.Context, topic string) ([]courseapi.LibraryItem, error)
	collection   func(ctx context.Context, format learning.Format, topic string) ([]courseapi.LibraryItem, error)
	generate     func(ctx context.Context, req courseapi.GenerateRequest) (*courseapi.GenerateResponse, error)
	flashcards   func(ctx context.Context, topic, difficulty string) (*courseapi.GenerateResponse, error)
	lesson       func(ctx context.Context, req courseapi.LessonRequest) (string, error)
	conversation func(ctx context.Context, scope learning.Scope) ([]learning.Message, error)

	progress      []courseapi.ProgressUpdate
	savedConvs    [][]learning.Message
	savedCourses  []courseapi.GenerateRequest
	usage         courseapi.Usage
}

func newFakeAPI() *fakeAPI { return &fakeAPI{calls: map[string]int{}} }

func (f *fakeAPI) hit(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) LibraryItem(ctx context.Context, id string) (*courseapi.LibraryItem, error) {
	f.hit("LibraryItem")
	if f.libraryItem != nil {
		return f.libraryItem(ctx, id)
	}
	return nil, &courseapi.HTTPError{StatusCode: 404}
}

func (f *fakeAPI) SearchLibrary(ctx context.Context, topic string, _ int) ([]courseapi.LibraryItem, error) {
	f.hit("SearchLibrary")
	if f.search != nil {
		return f.search(ctx, topic)
	}
	return nil, nil
}

func (f *fakeAPI) SearchCollection(ctx context.Context, format learning.Format, topic string, _ int) ([]courseapi.LibraryItem, error) {
	f.hit("SearchCollection")
	if f.collection != nil {
		return f.collection(ctx, format, topic)
	}
	return nil, nil
}

func (f *fakeAPI) SaveCourse(_ context.Context, req courseapi.GenerateRequest, _ courseapi.LibraryItem) error {
	f.hit("SaveCourse")
	f.mu.Lock()
	f.savedCourses = append(f.savedCourses, req)
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) GenerateCourse(ctx context.Context, req courseapi.GenerateRequest) (*courseapi.GenerateResponse, error) {
	f.hit("GenerateCourse")
	if f.generate != nil {
		return f.generate(ctx, req)
	}
	return &courseapi.GenerateResponse{CourseID: "gen-1", Modules: twoLessonModules()}, nil
}

func (f *fakeAPI) GenerateFlashcards(ctx context.Context, topic, difficulty string) (*courseapi.GenerateResponse, error) {
	f.hit("GenerateFlashcards")
	if f.flashcards != nil {
		return f.flashcards(ctx, topic, difficulty)
	}
	return &courseapi.GenerateResponse{Cards: []learning.Flashcard{{Front: "f", Back: "b"}}}, nil
}

func (f *fakeAPI) GenerateLesson(ctx context.Context, req courseapi.LessonRequest) (string, error) {
	f.hit("GenerateLesson")
	if f.lesson != nil {
		return f.lesson(ctx, req)
	}
	return "# " + req.LessonTitle, nil
}

func (f *fakeAPI) SaveProgress(_ context.Context, up courseapi.ProgressUpdate) error {
	f.hit("SaveProgress")
	f.mu.Lock()
	f.progress = append(f.progress, up)
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) SaveConversation(_ context.Context, _ learning.Scope, msgs []learning.Message) error {
	f.hit("SaveConversation")
	f.mu.Lock()
	f.savedConvs = append(f.savedConvs, msgs)
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) Conversation(ctx context.Context, scope learning.Scope) ([]learning.Message, error) {
	f.hit("Conversation")
	if f.conversation != nil {
		return f.conversation(ctx, scope)
	}
	return nil, nil
}

func (f *fakeAPI) Usage(context.Context) (*courseapi.Usage, error) {
	f.hit("Usage")
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.usage
	return &u, nil
}

// recorder is a Publisher that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []realtime.SSEMessage
}

func (r *recorder) Publish(_ context.Context, msg realtime.SSEMessage) error {
	r.mu.Lock()
	r.events = append(r.events, msg)
	r.mu.Unlock()
	return nil
}

func (r *recorder) has(event realtime.SSEEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Event == event {
			return true
		}
	}
	return false
}

func twoLessonModules() []learning.Module {
	return []learning.Module{{Title: "Basics", Lessons: []learning.Lesson{{Title: "Intro"}, {Title: "Types"}}}}
}

func libraryCourse(id, topic, difficulty string) courseapi.LibraryItem {
	return courseapi.LibraryItem{ID: id, Type: "course", Title: topic + " course", Topic: topic, Difficulty: difficulty, Modules: twoLessonModules()}
}

type harness struct {
	api    *fakeAPI
	kv     *localstore.MemoryKV
	store  *localstore.Store
	events *recorder
	reg    *Registry
}

func newHarness(t *testing.T, tweak func(*Deps)) *harness {
	t.Helper()
	h := &harness{api: newFakeAPI(), kv: localstore.NewMemoryKV(0), events: &recorder{}}
	h.store = localstore.NewStore(h.kv, logger.Nop(), 0)
	deps := Deps{Log: logger.Nop(), API: h.api, Store: h.store, Events: h.events}
	if tweak != nil {
		tweak(&deps)
	}
	h.reg = NewRegistry(deps)
	t.Cleanup(h.reg.CloseAll)
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
