package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/neurobridge-learnview/internal/http/handlers"
	httpMW "github.com/yungbote/neurobridge-learnview/internal/http/middleware"
	"github.com/yungbote/neurobridge-learnview/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string

	AuthMiddleware *httpMW.AuthMiddleware

	LearnHandler  *httpH.LearnHandler
	EventsHandler *httpH.EventsHandler
	RenderHandler *httpH.RenderHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Rendering
	if cfg.RenderHandler != nil {
		api.POST("/render", cfg.RenderHandler.Render)
	}

	learn := api.Group("/learn/sessions")
	{
		if cfg.LearnHandler != nil {
			learn.POST("", cfg.LearnHandler.CreateSession)
			learn.GET("/:id", cfg.LearnHandler.GetSession)
			learn.DELETE("/:id", cfg.LearnHandler.DeleteSession)
			learn.POST("/:id/load", cfg.LearnHandler.Reload)
			learn.DELETE("/:id/quota", cfg.LearnHandler.DismissQuota)

			learn.POST("/:id/lessons/:moduleId/:lessonIndex/select", cfg.LearnHandler.SelectLesson)
			learn.GET("/:id/lessons/:moduleId/:lessonIndex", cfg.LearnHandler.GetLesson)
			learn.PUT("/:id/lessons/:moduleId/:lessonIndex/completion", cfg.LearnHandler.SetCompletion)

			learn.GET("/:id/conversation", cfg.LearnHandler.GetConversation)
			learn.POST("/:id/conversation", cfg.LearnHandler.AppendConversation)
		}

		// Realtime (SSE)
		if cfg.EventsHandler != nil {
			learn.GET("/:id/events", cfg.EventsHandler.Stream)
		}
	}

	return r
}
