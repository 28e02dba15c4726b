package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/haven-backend/internal/data/repos"
	"github.com/yungbote/haven-backend/internal/http"
	"github.com/yungbote/haven-backend/internal/observability"
	"github.com/yungbote/haven-backend/internal/platform/kvstore"
	"github.com/yungbote/haven-backend/internal/platform/llm"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Store    kvstore.Store
	Repos    repos.Repos
	Engine   llm.Engine
	Metrics  *observability.Metrics
	Services Services
	Server   *http.Server

	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return NewWithConfig(ctx, log, cfg)
}

// NewWithConfig wires the application from an already loaded config.
func NewWithConfig(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	if cfg.LogMode != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.OtelEnabled,
		ServiceName: cfg.OtelService,
		Environment: cfg.Environment,
		Version:     cfg.Version,
		Endpoint:    cfg.OtelEndpoint,
		Insecure:    cfg.OtelInsecure,
		Headers:     cfg.OtelHeaders,
		SampleRatio: cfg.OtelSampleRatio,
	})

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics(observability.CostRates{
			InputPer1K:  cfg.CostInputPer1K,
			OutputPer1K: cfg.CostOutputPer1K,
		})
	}

	store, err := OpenStore(ctx, log, cfg)
	if err != nil {
		_ = otelShutdown(ctx)
		return nil, err
	}

	engine, err := wireEngine(log, cfg)
	if err != nil {
		_ = store.Close()
		_ = otelShutdown(ctx)
		return nil, err
	}

	log.Info("Wiring repos...")
	reposet := repos.New(store, cfg.embedModel(), log)

	serviceset, err := wireServices(log, cfg, reposet, engine, metrics)
	if err != nil {
		_ = store.Close()
		_ = otelShutdown(ctx)
		return nil, err
	}

	handlerset := wireHandlers(log, serviceset, store)
	server := http.NewServer(http.ServerConfig{
		Addr:              cfg.Addr,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}, wireRouterConfig(log, cfg, serviceset, handlerset, metrics))

	return &App{
		Log:          log,
		Cfg:          cfg,
		Store:        store,
		Repos:        reposet,
		Engine:       engine,
		Metrics:      metrics,
		Services:     serviceset,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests and
// background tasks within the shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("http server listening", "addr", a.Cfg.Addr)
		errCh <- a.Server.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
	defer cancel()
	var errs []error
	if err := a.Server.Shutdown(sctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.Services.Background.Close(sctx); err != nil {
		errs = append(errs, fmt.Errorf("background drain: %w", err))
	}
	if err := <-errCh; err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Log.Warn("store close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(context.Background()); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
