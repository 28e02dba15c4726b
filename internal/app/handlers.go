package app

import (
	"github.com/yungbote/haven-backend/internal/http"
	httpH "github.com/yungbote/haven-backend/internal/http/handlers"
	httpMW "github.com/yungbote/haven-backend/internal/http/middleware"
	"github.com/yungbote/haven-backend/internal/observability"
	"github.com/yungbote/haven-backend/internal/platform/kvstore"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

type Handlers struct {
	Chat   *httpH.ChatHandler
	Memory *httpH.MemoryHandler
	Health *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, services Services, store kvstore.Store) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Chat:   httpH.NewChatHandler(log, services.Orchestrator),
		Memory: httpH.NewMemoryHandler(services.Memory),
		Health: httpH.NewHealthHandler(store),
	}
}

func wireRouterConfig(log *logger.Logger, cfg Config, services Services, handlers Handlers, metrics *observability.Metrics) http.RouterConfig {
	return http.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		AuthMiddleware: httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey),
		Limiter:        services.Limiter,
		GeneralClass:   cfg.generalClass(),
		CORSOrigins:    cfg.CORSOrigins,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		ServiceName:    cfg.OtelService,
		ChatHandler:    handlers.Chat,
		MemoryHandler:  handlers.Memory,
		HealthHandler:  handlers.Health,
	}
}
