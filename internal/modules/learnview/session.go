package learnview

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yungbote/neurobridge-learnview/internal/clients/courseapi"
	"github.com/yungbote/neurobridge-learnview/internal/data/localstore"
	"github.com/yungbote/neurobridge-learnview/internal/domain/learning"
	"github.com/yungbote/neurobridge-learnview/internal/platform/logger"
	"github.com/yungbote/neurobridge-learnview/internal/realtime"
)

const (
	DefaultReconcileTimeout = 30 * time.Second
	backgroundTimeout       = 30 * time.Second
)

// Publisher receives session events; bus.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
}

type Deps struct {
	Log    *logger.Logger
	API    courseapi.Client
	Store  *localstore.Store
	Events Publisher

	// ReconcileTimeout is the loading watchdog; zero means DefaultReconcileTimeout.
	ReconcileTimeout time.Duration
	// PrefetchSelected starts fetching the selected lesson once a course loads.
	PrefetchSelected bool
}

type Request struct {
	ID         string          `json:"id,omitempty"`
	Topic      string          `json:"topic"`
	Format     learning.Format `json:"format"`
	Difficulty string          `json:"difficulty"`
	Questions  int             `json:"questions,omitempty"`
}

func (r Request) scope(courseID string) learning.Scope {
	return learning.Scope{CourseID: courseID, Topic: r.Topic, Format: r.Format, Difficulty: r.Difficulty}
}

type QuotaModal struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

type SelectedLesson struct {
	ModuleID    int `json:"moduleId"`
	LessonIndex int `json:"lessonIndex"`
}

// State is a point-in-time view of a session. The course pointer is shared
// but never mutated after publication.
type State struct {
	ID              string           `json:"id"`
	Request         Request          `json:"request"`
	Loading         bool             `json:"loading"`
	TimedOut        bool             `json:"timedOut,omitempty"`
	Error           string           `json:"error,omitempty"`
	Quota           *QuotaModal      `json:"quota,omitempty"`
	UpgradeRequired bool             `json:"upgradeRequired,omitempty"`
	Source          string           `json:"source,omitempty"`
	Course          *learning.Course `json:"course,omitempty"`
	Quiz            *learning.Quiz   `json:"quiz,omitempty"`
	Deck            *learning.Deck   `json:"deck,omitempty"`
	Completed       []string         `json:"completed"`
	Progress        int              `json:"progress"`
	Selected        *SelectedLesson  `json:"selected,omitempty"`
	Usage           *courseapi.Usage `json:"usage,omitempty"`
}

// Session is one learner's view of one course, deck or quiz.
type Session struct {
	id      string
	ownerID string
	deps    Deps
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	inFlight atomic.Bool
	epoch    atomic.Uint64
	bg       sync.WaitGroup

	mu           sync.Mutex
	closed       bool
	lastActive   time.Time
	req          Request
	loading      bool
	timedOut     bool
	errMsg       string
	quota        *QuotaModal
	upgrade      bool
	source       string
	course       *learning.Course
	quiz         *learning.Quiz
	deck         *learning.Deck
	completed    learning.ProgressSet
	selected     *SelectedLesson
	usage        *courseapi.Usage
	conversation []learning.Message
	convLoaded   bool

	slots   map[string]*slot
	lessons map[string]lessonStatus
}

func newSession(id, ownerID string, deps Deps) *Session {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.ReconcileTimeout <= 0 {
		deps.ReconcileTimeout = DefaultReconcileTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:         id,
		ownerID:    ownerID,
		deps:       deps,
		log:        deps.Log.With("service", "LearnSession", "session_id", id),
		ctx:        ctx,
		cancel:     cancel,
		lastActive: time.Now(),
		completed:  learning.ProgressSet{},
		slots:      make(map[string]*slot),
		lessons:    make(map[string]lessonStatus),
	}
}

func (s *Session) ID() string      { return s.id }
func (s *Session) OwnerID() string { return s.ownerID }

// Close cancels every outstanding fetch and discards late results.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for name, sl := range s.slots {
		sl.cancel()
		delete(s.slots, name)
	}
	s.mu.Unlock()
	s.epoch.Add(1)
	s.cancel()
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		ID:              s.id,
		Request:         s.req,
		Loading:         s.loading,
		TimedOut:        s.timedOut,
		Error:           s.errMsg,
		UpgradeRequired: s.upgrade,
		Source:          s.source,
		Course:          s.course,
		Quiz:            s.quiz,
		Deck:            s.deck,
		Completed:       s.completed.Keys(),
	}
	if s.quota != nil {
		q := *s.quota
		st.Quota = &q
	}
	if s.selected != nil {
		sel := *s.selected
		st.Selected = &sel
	}
	if s.usage != nil {
		u := *s.usage
		st.Usage = &u
	}
	if s.course != nil {
		st.Progress = s.course.ProgressPercent(s.completed)
	}
	if st.Completed == nil {
		st.Completed = []string{}
	}
	return st
}

// DismissQuota closes the quota modal.
func (s *Session) DismissQuota() {
	s.mu.Lock()
	s.quota = nil
	s.mu.Unlock()
}

func (s *Session) publish(event realtime.SSEEvent, data any) {
	if s.deps.Events == nil {
		return
	}
	msg := realtime.SSEMessage{Channel: realtime.SessionChannel(s.id), Event: event, Data: data}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.deps.Events.Publish(ctx, msg); err != nil {
		s.log.Warn("session event publish failed", "event", event, "error", err)
	}
}

// background runs fn detached from the caller's cancellation but bounded in time.
func (s *Session) background(ctx context.Context, name string, fn func(ctx context.Context) error) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundTimeout)
		defer cancel()
		if err := fn(bctx); err != nil {
			s.log.Warn("background call failed", "call", name, "error", err)
		}
	}()
}

// scoped derives a context carrying the caller's values that is cancelled
// when either the caller or the session goes away.
func (s *Session) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	cctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopSession := context.AfterFunc(s.ctx, cancel)
	stopCaller := context.AfterFunc(ctx, cancel)
	return cctx, func() {
		stopSession()
		stopCaller()
		cancel()
	}
}
