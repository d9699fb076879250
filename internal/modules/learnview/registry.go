package learnview

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-learnview/internal/platform/logger"
)

// Registry owns the live sessions of this process.
type Registry struct {
	deps Deps
	log  *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(deps Deps) *Registry {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	return &Registry{
		deps:     deps,
		log:      deps.Log.With("service", "LearnSessionRegistry"),
		sessions: make(map[string]*Session),
	}
}

func (r *Registry) Create(ownerID string) *Session {
	s := newSession(uuid.NewString(), strings.TrimSpace(ownerID), r.deps)
	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	r.log.Debug("learn session created", "session_id", s.id, "owner_id", ownerID)
	return s
}

// Get returns a session owned by ownerID. Sessions of other owners are
// reported as missing.
func (r *Registry) Get(id, ownerID string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[strings.TrimSpace(id)]
	r.mu.RUnlock()
	if !ok || s.ownerID != strings.TrimSpace(ownerID) || s.Closed() {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (r *Registry) Close(id, ownerID string) error {
	s, err := r.Get(id, ownerID)
	if err != nil {
		return err
	}
	r.remove(s)
	return nil
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	delete(r.sessions, s.id)
	r.mu.Unlock()
	s.Close()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep closes sessions idle for longer than maxIdle and returns how many.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-maxIdle)
	r.mu.RLock()
	var stale []*Session
	for _, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			stale = append(stale, s)
		}
	}
	r.mu.RUnlock()
	for _, s := range stale {
		r.remove(s)
	}
	if len(stale) > 0 {
		r.log.Info("idle learn sessions closed", "count", len(stale))
	}
	return len(stale)
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
