package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-learnview/internal/clients/courseapi"
	"github.com/yungbote/neurobridge-learnview/internal/data/db"
	"github.com/yungbote/neurobridge-learnview/internal/data/localstore"
	httpserver "github.com/yungbote/neurobridge-learnview/internal/http"
	httpH "github.com/yungbote/neurobridge-learnview/internal/http/handlers"
	httpMW "github.com/yungbote/neurobridge-learnview/internal/http/middleware"
	"github.com/yungbote/neurobridge-learnview/internal/jobs/housekeeping"
	"github.com/yungbote/neurobridge-learnview/internal/learning/diagrams"
	"github.com/yungbote/neurobridge-learnview/internal/learning/render"
	"github.com/yungbote/neurobridge-learnview/internal/modules/learnview"
	"github.com/yungbote/neurobridge-learnview/internal/observability"
	"github.com/yungbote/neurobridge-learnview/internal/platform/logger"
	"github.com/yungbote/neurobridge-learnview/internal/realtime"
	"github.com/yungbote/neurobridge-learnview/internal/realtime/bus"
)

const (
	KVMemory   = "memory"
	KVSQLite   = db.DriverSQLite
	KVPostgres = db.DriverPostgres
	KVRedis    = "redis"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	DB       *gorm.DB
	Redis    *goredis.Client
	Store    *localstore.Store
	Bus      bus.Bus
	SSEHub   *realtime.SSEHub
	Sessions *learnview.Registry
	Renderer *render.Renderer
	Resolver *diagrams.Resolver
	Server   *httpserver.Server
	Jobs     *housekeeping.Runner

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// New wires every component from cfg. Nothing is started.
func New(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{Log: log, Cfg: cfg}
	a.otelShutdown = observability.InitOTel(ctx, log, cfg.Otel())

	if err := a.wireStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.wireRealtime(); err != nil {
		a.Close()
		return nil, err
	}

	api, err := courseapi.New(log, courseapi.Config{
		BaseURL:    cfg.CourseAPIBaseURL,
		Timeout:    cfg.CourseAPITimeout(),
		MaxRetries: cfg.CourseAPIMaxRetries,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init content api client: %w", err)
	}
	a.Sessions = learnview.NewRegistry(learnview.Deps{
		Log:              log,
		API:              api,
		Store:            a.Store,
		Events:           a.Bus,
		ReconcileTimeout: cfg.ReconcileTimeout(),
		PrefetchSelected: cfg.PrefetchSelectedLesson,
	})

	a.Renderer = render.New(render.Options{})
	resolver, err := NewDiagramResolver(log, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Resolver = resolver

	a.Jobs = housekeeping.New(log, a.Store, a.Sessions, housekeeping.Config{
		Interval:       cfg.HousekeepInterval(),
		SessionMaxIdle: cfg.SessionMaxIdle(),
	})

	a.Server = httpserver.NewServer(httpserver.RouterConfig{
		Log:            log,
		ServiceName:    cfg.OtelServiceName,
		AllowedOrigins: cfg.Origins(),
		AuthMiddleware: httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey),
		LearnHandler:   httpH.NewLearnHandler(log, a.Sessions),
		EventsHandler:  httpH.NewEventsHandler(log, a.SSEHub, a.Sessions),
		RenderHandler:  httpH.NewRenderHandler(log, a.Renderer, a.Resolver),
		HealthHandler:  httpH.NewHealthHandler(a.Sessions),
	})
	return a, nil
}

// NewStorage wires only the local progress store, for offline commands.
func NewStorage(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{Log: log, Cfg: cfg}
	if err := a.wireStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) redisClient(ctx context.Context) (*goredis.Client, error) {
	if a.Redis != nil {
		return a.Redis, nil
	}
	addr := strings.TrimSpace(a.Cfg.RedisAddr)
	if addr == "" {
		return nil, fmt.Errorf("REDIS_ADDR required")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	a.Redis = rdb
	return rdb, nil
}

func (a *App) wireStorage(ctx context.Context) error {
	var kv localstore.KV
	driver := strings.ToLower(strings.TrimSpace(a.Cfg.LocalStoreDriver))
	switch driver {
	case KVMemory:
		kv = localstore.NewMemoryKV(0)
	case KVSQLite, "", KVPostgres:
		dsn := a.Cfg.LocalStoreSQLitePath
		if driver == KVPostgres {
			dsn = a.Cfg.PostgresDSN
		}
		gdb, err := db.Open(driver, dsn, a.Log)
		if err != nil {
			return fmt.Errorf("init local store database: %w", err)
		}
		a.DB = gdb
		gkv, err := localstore.NewGormKV(gdb)
		if err != nil {
			return fmt.Errorf("init local store table: %w", err)
		}
		kv = gkv
	case KVRedis:
		rdb, err := a.redisClient(ctx)
		if err != nil {
			return err
		}
		kv = localstore.NewRedisKV(rdb, localstore.DefaultRedisNamespace)
	default:
		return fmt.Errorf("unknown LOCALSTORE_DRIVER %q", a.Cfg.LocalStoreDriver)
	}
	a.Store = localstore.NewStore(kv, a.Log, a.Cfg.LessonCacheLimit)
	a.Log.Info("local store ready", "driver", driver)
	return nil
}

func (a *App) wireRealtime() error {
	a.SSEHub = realtime.NewSSEHub(a.Log)
	switch strings.ToLower(strings.TrimSpace(a.Cfg.BusDriver)) {
	case bus.DriverMemory, "":
		a.Bus = bus.NewMemoryBus()
	case bus.DriverRedis:
		rdb, err := a.redisClient(context.Background())
		if err != nil {
			return err
		}
		b, err := bus.NewRedisBus(a.Log, rdb, a.Cfg.RedisChannel)
		if err != nil {
			return err
		}
		a.Bus = b
	default:
		return fmt.Errorf("unknown BUS_DRIVER %q", a.Cfg.BusDriver)
	}
	return nil
}

// NewDiagramResolver chains the local catalog with Wikipedia when enabled.
func NewDiagramResolver(log *logger.Logger, cfg Config) (*diagrams.Resolver, error) {
	catalog, err := diagrams.LoadCatalog(cfg.DiagramCatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load diagram catalog: %w", err)
	}
	lookups := []diagrams.Lookup{catalog}
	if cfg.WikipediaEnabled {
		lookups = append(lookups, diagrams.NewWikipedia(log, diagrams.WikipediaConfig{BaseURL: cfg.WikipediaBaseURL}))
	}
	return diagrams.NewResolver(diagrams.Chain(lookups...), log), nil
}

// Start runs the bus forwarder and the housekeeping job until Close.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Bus != nil && a.SSEHub != nil {
		if err := a.Bus.StartForwarder(ctx, a.SSEHub.Broadcast); err != nil {
			return fmt.Errorf("start event forwarder: %w", err)
		}
	}
	if a.Jobs != nil {
		if err := a.Jobs.Start(ctx); err != nil {
			return fmt.Errorf("start housekeeping: %w", err)
		}
	}
	return nil
}

// Run serves HTTP until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := ":" + strings.TrimPrefix(a.Cfg.Port, ":")
	a.Log.Info("learnview listening", "addr", addr)
	return a.Server.Run(ctx, addr, 10*time.Second)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Jobs != nil {
		a.Jobs.Stop()
	}
	if a.Sessions != nil {
		a.Sessions.CloseAll()
	}
	if a.Bus != nil {
		_ = a.Bus.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.otelShutdown(ctx)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
