package learnview

import (
	"errors"
	"testing"
	"time"

	pkgerrors "github.com/yungbote/neurobridge-learnview/internal/pkg/errors"
)

func TestLookupErrorsAreNotFound(t *testing.T) {
	for _, err := range []error{ErrSessionNotFound, ErrLessonNotFound} {
		if !errors.Is(err, pkgerrors.ErrNotFound) {
			t.Fatalf("%v: want wrapped ErrNotFound", err)
		}
	}
	if errors.Is(ErrSessionNotFound, ErrLessonNotFound) {
		t.Fatalf("session and lesson sentinels must stay distinct")
	}
}

func TestRegistryOwnership(t *testing.T) {
	h := newHarness(t, nil)
	s := h.reg.Create("u1")
	if got, err := h.reg.Get(s.ID(), "u1"); err != nil || got != s {
		t.Fatalf("Get owner: got=%v err=%v", got, err)
	}
	if _, err := h.reg.Get(s.ID(), "u2"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get other owner: got=%v", err)
	}
	if err := h.reg.Close(s.ID(), "u2"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Close other owner: got=%v", err)
	}
	if err := h.reg.Close(s.ID(), "u1"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !s.Closed() || h.reg.Len() != 0 {
		t.Fatalf("after close: closed=%v len=%d", s.Closed(), h.reg.Len())
	}
}

func TestRegistrySweep(t *testing.T) {
	h := newHarness(t, nil)
	idle := h.reg.Create("u1")
	fresh := h.reg.Create("u1")
	idle.mu.Lock()
	idle.lastActive = time.Now().Add(-time.Hour)
	idle.mu.Unlock()

	if n := h.reg.Sweep(time.Minute); n != 1 {
		t.Fatalf("Sweep: got=%d want=1", n)
	}
	if !idle.Closed() || fresh.Closed() {
		t.Fatalf("closed: idle=%v fresh=%v", idle.Closed(), fresh.Closed())
	}
	if h.reg.Sweep(0) != 0 || h.reg.Len() != 1 {
		t.Fatalf("len after sweep: %d", h.reg.Len())
	}
}
