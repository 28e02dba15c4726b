package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/haven-backend/internal/http/handlers"
	httpMW "github.com/yungbote/haven-backend/internal/http/middleware"
	"github.com/yungbote/haven-backend/internal/modules/gate"
	"github.com/yungbote/haven-backend/internal/observability"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	AuthMiddleware *httpMW.AuthMiddleware
	Limiter        *gate.RateLimiter
	GeneralClass   gate.Class
	CORSOrigins    []string
	MaxBodyBytes   int64
	ServiceName    string

	ChatHandler   *httpH.ChatHandler
	MemoryHandler *httpH.MemoryHandler
	HealthHandler *httpH.HealthHandler
}

const metricsPath = "/metrics"

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.GeneralClass.Name == "" {
		cfg.GeneralClass = gate.Class{Name: "general", Window: time.Minute, Max: 120}
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "haven"
	}

	r := gin.New()
	r.Use(httpMW.Recovery(cfg.Log))
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.Metrics(cfg.Metrics, metricsPath))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET(metricsPath, gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	api.Use(httpMW.BodyLimit(cfg.MaxBodyBytes))
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.AttachIdentity())
	}

	// Chat is limited by its own class inside the pipeline, after the risk
	// gate, so crisis messages are never throttled here.
	if cfg.ChatHandler != nil {
		api.POST("/chat", cfg.ChatHandler.Chat)
	}

	protected := api.Group("/")
	{
		protected.Use(httpMW.RateLimit(cfg.Limiter, cfg.GeneralClass, cfg.Metrics, cfg.Log))
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireUser())
		}
		if cfg.MemoryHandler != nil {
			protected.GET("/memory", cfg.MemoryHandler.Get)
			protected.DELETE("/memory", cfg.MemoryHandler.Delete)
		}
	}

	return r
}
