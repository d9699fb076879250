package localstore

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/yungbote/neurobridge-learnview/internal/data/db"
	"github.com/yungbote/neurobridge-learnview/internal/domain/learning"
	"github.com/yungbote/neurobridge-learnview/internal/platform/logger"
)

func testStore(t *testing.T, kv KV) *Store {
	t.Helper()
	return NewStore(kv, logger.Nop(), 0)
}

func TestStoreProgressRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, NewMemoryKV(0))
	scope := learning.Scope{Topic: "Go", Format: learning.FormatCourse, Difficulty: "beginner"}

	if got := s.Progress(ctx, scope); got == nil || got.Len() != 0 {
		t.Fatalf("empty Progress: got=%v", got)
	}
	s.SetProgress(ctx, scope, learning.NewProgressSet("1-0", "2-3"))
	if got := s.Progress(ctx, scope).Keys(); !reflect.DeepEqual(got, []string{"1-0", "2-3"}) {
		t.Fatalf("Progress: got=%v", got)
	}
	raw, ok, _ := s.kv.Get(ctx, "progress_Go_course_beginner")
	if !ok || raw != `["1-0","2-3"]` {
		t.Fatalf("persisted value: ok=%v raw=%s", ok, raw)
	}
}

func TestStoreIsBestEffortWhenFullOrDisabled(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV(1)
	s := testStore(t, kv)
	scope := learning.Scope{CourseID: "c1"}

	s.SetProgress(ctx, scope, learning.NewProgressSet("1-0"))
	s.SetConversation(ctx, scope, []learning.Message{{Type: learning.SpeakerUser, Message: "hi"}})
	if got := s.Conversation(ctx, scope); got != nil {
		t.Fatalf("write beyond capacity should be dropped, got=%v", got)
	}

	kv.Disable()
	if got := s.Progress(ctx, scope); got.Len() != 0 {
		t.Fatalf("disabled store should read empty, got=%v", got)
	}
	s.SetPosition(ctx, "c1", learning.Position{ModuleID: 1})
	if _, ok := s.Position(ctx, "c1"); ok {
		t.Fatalf("disabled store should report no position")
	}
}

func TestStoreLessonContentSkipsPlaceholder(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, NewMemoryKV(0))
	s.SetLessonContent(ctx, "Go", "beginner", 1, 0, learning.PlaceholderContent)
	if _, ok := s.LessonContent(ctx, "Go", "beginner", 1, 0); ok {
		t.Fatalf("placeholder must not count as cached content")
	}
	s.SetLessonContent(ctx, "Go", "beginner", 1, 0, "# Intro")
	if got, ok := s.LessonContent(ctx, "Go", "beginner", 1, 0); !ok || got != "# Intro" {
		t.Fatalf("LessonContent: got=%q ok=%v", got, ok)
	}
	if _, ok, _ := s.kv.Get(ctx, "lesson_Go_beginner_1_0"); !ok {
		t.Fatalf("lesson key format changed")
	}
}

func TestStoreHousekeepBoundsLessonCache(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV(0)
	s := testStore(t, kv)
	for i := 0; i < 60; i++ {
		s.SetLessonContent(ctx, "Go", "beginner", 1, i, fmt.Sprintf("lesson %d", i))
	}
	s.SetProgress(ctx, learning.Scope{CourseID: "c1"}, learning.NewProgressSet("1-0"))

	if got := s.Housekeep(ctx); got != 10 {
		t.Fatalf("Housekeep evicted: got=%d want=10", got)
	}
	keys, _ := kv.Keys(ctx, "lesson_")
	if len(keys) != DefaultLessonCacheLimit {
		t.Fatalf("remaining lesson keys: got=%d want=%d", len(keys), DefaultLessonCacheLimit)
	}
	if s.Progress(ctx, learning.Scope{CourseID: "c1"}).Len() != 1 {
		t.Fatalf("housekeeping must only touch lesson entries")
	}
	if got := s.Housekeep(ctx); got != 0 {
		t.Fatalf("second Housekeep: got=%d want=0", got)
	}
}

func TestGormKVWithSQLite(t *testing.T) {
	ctx := context.Background()
	gdb, err := db.Open(db.DriverSQLite, filepath.Join(t.TempDir(), "local.db"), logger.Nop())
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	kv, err := NewGormKV(gdb)
	if err != nil {
		t.Fatalf("NewGormKV: %v", err)
	}
	s := testStore(t, kv)

	pos := learning.Position{ModuleID: 2, LessonIndex: 1, UpdatedAt: time.Unix(1700000000, 0).UTC()}
	s.SetPosition(ctx, "course-1", pos)
	s.SetPosition(ctx, "course-1", learning.Position{ModuleID: 3, LessonIndex: 0, UpdatedAt: pos.UpdatedAt})
	got, ok := s.Position(ctx, "course-1")
	if !ok || got.ModuleID != 3 || got.LessonIndex != 0 {
		t.Fatalf("Position after overwrite: got=%+v ok=%v", got, ok)
	}

	s.SetLessonContent(ctx, "Go_lang", "beginner", 1, 0, "x")
	s.SetLessonContent(ctx, "Go", "beginner", 1, 0, "y")
	keys, err := kv.Keys(ctx, "lesson_Go_lang")
	if err != nil || len(keys) != 1 {
		t.Fatalf("Keys with underscore prefix: keys=%v err=%v", keys, err)
	}
	if err := kv.Delete(ctx, keys[0]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, keys[0]); ok {
		t.Fatalf("Get after Delete: still present")
	}
}
