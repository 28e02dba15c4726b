package app

import (
	"context"
	"fmt"

	"github.com/yungbote/haven-backend/internal/data/repos"
	"github.com/yungbote/haven-backend/internal/modules/gate"
	memmod "github.com/yungbote/haven-backend/internal/modules/memory"
	"github.com/yungbote/haven-backend/internal/modules/orchestrator"
	"github.com/yungbote/haven-backend/internal/modules/retrieval"
	"github.com/yungbote/haven-backend/internal/modules/safety"
	"github.com/yungbote/haven-backend/internal/observability"
	"github.com/yungbote/haven-backend/internal/platform/bgtask"
	"github.com/yungbote/haven-backend/internal/platform/llm"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

type Services struct {
	Tables       *safety.Tables
	Limiter      *gate.RateLimiter
	Budget       *gate.TokenBudget
	Retrieval    *retrieval.Engine
	Memory       *memmod.Service
	Background   *bgtask.Runner
	Orchestrator *orchestrator.Orchestrator
}

func (c Config) chatClass() gate.Class {
	return gate.Class{Name: "chat", Window: c.ChatRateWindow, Max: c.ChatRateMax}
}

func (c Config) generalClass() gate.Class {
	return gate.Class{Name: "general", Window: c.GeneralRateWindow, Max: c.GeneralRateMax}
}

func wireServices(log *logger.Logger, cfg Config, rp repos.Repos, engine llm.Engine, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	tables, err := safety.DefaultTables()
	if err != nil {
		return Services{}, fmt.Errorf("load safety tables: %w", err)
	}

	bg := bgtask.New(log, bgtask.Options{
		Timeout:     cfg.BackgroundTimeout,
		Concurrency: cfg.BackgroundConcurrency,
		OnError: func(te bgtask.TaskError) {
			metrics.IncBackgroundFailure(te.Name)
		},
	})

	limiter := gate.NewRateLimiter(rp.RateLimit, log)
	budget := gate.NewTokenBudget(rp.TokenUsage, cfg.MonthlyTokenLimit, cfg.BudgetWarnRatio, log)
	mem := memmod.NewService(rp.UserMemory, log)

	var retriever orchestrator.Retriever
	var engineRetrieval *retrieval.Engine
	if cfg.RetrievalEnabled {
		engineRetrieval = retrieval.NewEngine(retrieval.Config{
			Enabled:        true,
			Weights:        retrieval.Weights{Lexical: cfg.RetrievalLexical, Dense: cfg.RetrievalDense},
			TopK:           cfg.RetrievalTopK,
			Rerank:         cfg.RetrievalRerank,
			CategoryPrefix: cfg.RetrievalCategory,
			Timeout:        cfg.RetrievalTimeout,
		}, rp.Knowledge, rp.EmbeddingCache, engine, engine, log)
		retriever = engineRetrieval
	}

	orch, err := orchestrator.New(orchestrator.Config{
		ConfidenceThreshold: cfg.ConfidenceMinimum,
		HistoryTurns:        cfg.HistoryTurns,
		Temperature:         cfg.Temperature,
		MaxTokens:           cfg.MaxTokens,
		ChatClass:           cfg.chatClass(),
	}, orchestrator.Deps{
		Log:        log,
		Metrics:    metrics,
		Tables:     tables,
		Limiter:    limiter,
		Budget:     budget,
		Retrieval:  retriever,
		Memory:     mem,
		Engine:     engine,
		Background: bg,
	})
	if err != nil {
		_ = bg.Close(context.Background())
		return Services{}, fmt.Errorf("init orchestrator: %w", err)
	}

	return Services{
		Tables:       tables,
		Limiter:      limiter,
		Budget:       budget,
		Retrieval:    engineRetrieval,
		Memory:       mem,
		Background:   bg,
		Orchestrator: orch,
	}, nil
}
