package localstore

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/yungbote/neurobridge-learnview/internal/domain/learning"
	"github.com/yungbote/neurobridge-learnview/internal/platform/logger"
)

// DefaultLessonCacheLimit is how many cached lesson bodies survive housekeeping.
const DefaultLessonCacheLimit = 50

// Store is the local progress store. Every method is best-effort: backend
// failures are logged and reads degrade to "nothing stored", so a full or
// disabled backend never interrupts the learning flow.
type Store struct {
	kv               KV
	log              *logger.Logger
	lessonCacheLimit int
}

func NewStore(kv KV, log *logger.Logger, lessonCacheLimit int) *Store {
	if lessonCacheLimit <= 0 {
		lessonCacheLimit = DefaultLessonCacheLimit
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Store{kv: kv, log: log.With("service", "LocalStore"), lessonCacheLimit: lessonCacheLimit}
}

func (s *Store) getString(ctx context.Context, key string) (string, bool) {
	if s == nil || s.kv == nil {
		return "", false
	}
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.log.Warn("local store read failed", "key", key, "error", err)
		return "", false
	}
	return v, ok
}

func (s *Store) setString(ctx context.Context, key, value string) {
	if s == nil || s.kv == nil {
		return
	}
	if err := s.kv.Set(ctx, key, value); err != nil {
		s.log.Warn("local store write failed", "key", key, "error", err)
	}
}

func (s *Store) getJSON(ctx context.Context, key string, out any) bool {
	raw, ok := s.getString(ctx, key)
	if !ok || strings.TrimSpace(raw) == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.log.Warn("local store value is not valid JSON", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Store) setJSON(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("local store encode failed", "key", key, "error", err)
		return
	}
	s.setString(ctx, key, string(raw))
}

// Progress returns the locally cached completion set; never nil.
func (s *Store) Progress(ctx context.Context, scope learning.Scope) learning.ProgressSet {
	var set learning.ProgressSet
	if !s.getJSON(ctx, ProgressKey(scope), &set) || set == nil {
		return learning.ProgressSet{}
	}
	return set
}

func (s *Store) SetProgress(ctx context.Context, scope learning.Scope, set learning.ProgressSet) {
	if set == nil {
		set = learning.ProgressSet{}
	}
	s.setJSON(ctx, ProgressKey(scope), set)
}

func (s *Store) Position(ctx context.Context, courseID string) (learning.Position, bool) {
	var pos learning.Position
	if strings.TrimSpace(courseID) == "" {
		return pos, false
	}
	ok := s.getJSON(ctx, LastPositionKey(courseID), &pos)
	return pos, ok
}

func (s *Store) SetPosition(ctx context.Context, courseID string, pos learning.Position) {
	if strings.TrimSpace(courseID) == "" {
		return
	}
	s.setJSON(ctx, LastPositionKey(courseID), pos)
}

func (s *Store) Conversation(ctx context.Context, scope learning.Scope) []learning.Message {
	var msgs []learning.Message
	if !s.getJSON(ctx, ConversationKey(scope), &msgs) {
		return nil
	}
	return msgs
}

func (s *Store) SetConversation(ctx context.Context, scope learning.Scope, msgs []learning.Message) {
	s.setJSON(ctx, ConversationKey(scope), msgs)
}

// LessonContent returns cached content only when it is usable, i.e. neither
// empty nor the generator's placeholder.
func (s *Store) LessonContent(ctx context.Context, topic, difficulty string, moduleID, lessonIndex int) (string, bool) {
	v, ok := s.getString(ctx, LessonKey(topic, difficulty, moduleID, lessonIndex))
	if !ok || !learning.IsUsableContent(v) {
		return "", false
	}
	return v, true
}

func (s *Store) SetLessonContent(ctx context.Context, topic, difficulty string, moduleID, lessonIndex int, content string) {
	s.setString(ctx, LessonKey(topic, difficulty, moduleID, lessonIndex), content)
}

// Housekeep evicts cached lesson bodies until at most the configured limit
// remain. Which entries go is unspecified. Returns the number evicted.
func (s *Store) Housekeep(ctx context.Context) int {
	if s == nil || s.kv == nil {
		return 0
	}
	keys, err := s.kv.Keys(ctx, prefixLesson)
	if err != nil {
		s.log.Warn("local store housekeeping list failed", "error", err)
		return 0
	}
	if len(keys) <= s.lessonCacheLimit {
		return 0
	}
	evicted := 0
	for _, k := range keys[s.lessonCacheLimit:] {
		if err := s.kv.Delete(ctx, k); err != nil {
			s.log.Warn("local store eviction failed", "key", k, "error", err)
			continue
		}
		evicted++
	}
	s.log.Info("lesson cache trimmed", "evicted", evicted, "kept", len(keys)-evicted)
	return evicted
}
