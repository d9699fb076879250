package housekeeping

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/yungbote/neurobridge-learnview/internal/platform/logger"
)

const (
	DefaultInterval       = 10 * time.Minute
	DefaultSessionMaxIdle = 2 * time.Hour
)

// LessonCache is trimmed on every pass; localstore.Store satisfies it.
type LessonCache interface {
	Housekeep(ctx context.Context) int
}

// SessionSweeper closes idle sessions; learnview.Registry satisfies it.
type SessionSweeper interface {
	Sweep(maxIdle time.Duration) int
}

type Config struct {
	Interval       time.Duration
	SessionMaxIdle time.Duration
}

type Result struct {
	LessonsEvicted int
	SessionsClosed int
}

// Runner periodically trims the lesson cache and closes idle sessions.
type Runner struct {
	log      *logger.Logger
	cache    LessonCache
	sessions SessionSweeper
	cfg      Config

	mu    sync.Mutex
	sched *gocron.Scheduler
}

func New(log *logger.Logger, cache LessonCache, sessions SessionSweeper, cfg Config) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.SessionMaxIdle <= 0 {
		cfg.SessionMaxIdle = DefaultSessionMaxIdle
	}
	return &Runner{
		log:      log.With("component", "Housekeeping"),
		cache:    cache,
		sessions: sessions,
		cfg:      cfg,
	}
}

// RunOnce performs a single pass. Either dependency may be nil.
func (r *Runner) RunOnce(ctx context.Context) Result {
	var res Result
	if r.cache != nil {
		res.LessonsEvicted = r.cache.Housekeep(ctx)
	}
	if r.sessions != nil {
		res.SessionsClosed = r.sessions.Sweep(r.cfg.SessionMaxIdle)
	}
	r.log.Debug("housekeeping pass done", "lessons_evicted", res.LessonsEvicted, "sessions_closed", res.SessionsClosed)
	return res
}

// Start schedules RunOnce every Interval until ctx is done or Stop is called.
// The first pass runs immediately.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sched != nil {
		return nil
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	if _, err := s.Every(r.cfg.Interval).Do(func() { r.RunOnce(ctx) }); err != nil {
		return err
	}
	s.StartAsync()
	r.sched = s
	r.log.Info("housekeeping scheduled", "interval", r.cfg.Interval.String(), "session_max_idle", r.cfg.SessionMaxIdle.String())

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sched == nil {
		return
	}
	r.sched.Stop()
	r.sched = nil
	r.log.Info("housekeeping stopped")
}
