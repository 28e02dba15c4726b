// Package repos holds the typed repositories layered over the keyed store.
package repos

import (
	"github.com/yungbote/haven-backend/internal/platform/kvstore"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

type Repos struct {
	RateLimit      RateLimitRepo
	TokenUsage     TokenUsageRepo
	UserMemory     UserMemoryRepo
	Knowledge      KnowledgeRepo
	EmbeddingCache EmbeddingCacheRepo
}

func New(store kvstore.Store, embedModel string, log *logger.Logger) Repos {
	return Repos{
		RateLimit:      NewRateLimitRepo(store),
		TokenUsage:     NewTokenUsageRepo(store),
		UserMemory:     NewUserMemoryRepo(store, log),
		Knowledge:      NewKnowledgeRepo(store, log),
		EmbeddingCache: NewEmbeddingCacheRepo(store, embedModel),
	}
}
