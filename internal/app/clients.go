package app

import (
	"fmt"
	"strings"

	"github.com/yungbote/haven-backend/internal/platform/llm"
	"github.com/yungbote/haven-backend/internal/platform/llm/mock"
	"github.com/yungbote/haven-backend/internal/platform/llm/oaihttp"
	"github.com/yungbote/haven-backend/internal/platform/llm/openaisdk"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

func (c Config) engineConfig() llm.Config {
	return llm.Config{
		Type:          c.EngineType,
		BaseURL:       c.EngineBaseURL,
		APIKey:        c.EngineAPIKey,
		ChatModel:     c.ChatModel,
		EmbedModel:    c.EmbedModel,
		Timeout:       c.EngineTimeout,
		StreamTimeout: c.StreamTimeout,
	}
}

// wireEngine builds the model engine used for completions and embeddings.
func wireEngine(log *logger.Logger, cfg Config) (llm.Engine, error) {
	log.Info("Wiring model engine...", "engine", cfg.EngineType, "model", cfg.ChatModel)
	switch strings.ToLower(strings.TrimSpace(cfg.EngineType)) {
	case "mock":
		return mock.New(), nil
	case "oai_http":
		e, err := oaihttp.New(cfg.engineConfig())
		if err != nil {
			return nil, fmt.Errorf("init oai_http engine: %w", err)
		}
		return e, nil
	case "openai":
		e, err := openaisdk.New(cfg.engineConfig())
		if err != nil {
			return nil, fmt.Errorf("init openai engine: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unsupported engine %q", cfg.EngineType)
	}
}

// embedModel names the embedding cache namespace. The mock engine's vectors
// must never be mixed with a real model's.
func (c Config) embedModel() string {
	if strings.EqualFold(c.EngineType, "mock") {
		return "mock"
	}
	return c.EmbedModel
}
