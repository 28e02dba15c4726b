package repos

import (
	"context"

	"github.com/yungbote/haven-backend/internal/domain/usage"
	"github.com/yungbote/haven-backend/internal/platform/kvstore"
)

const (
	collectionRateLimit  = "rate_limit"
	collectionTokenUsage = "token_usage"
)

type RateLimitRepo interface {
	Get(ctx context.Context, key string) (*usage.RateLimitBucket, error)
	Put(ctx context.Context, b *usage.RateLimitBucket) error
}

type rateLimitRepo struct {
	docs docRepo[usage.RateLimitBucket]
}

func NewRateLimitRepo(store kvstore.Store) RateLimitRepo {
	return &rateLimitRepo{docs: newDocRepo[usage.RateLimitBucket](store, collectionRateLimit)}
}

func (r *rateLimitRepo) Get(ctx context.Context, key string) (*usage.RateLimitBucket, error) {
	return r.docs.get(ctx, key)
}

func (r *rateLimitRepo) Put(ctx context.Context, b *usage.RateLimitBucket) error {
	return r.docs.put(ctx, b.Key, b)
}

type TokenUsageRepo interface {
	Get(ctx context.Context, monthKey string) (*usage.TokenUsageRecord, error)
	Put(ctx context.Context, rec *usage.TokenUsageRecord) error
}

type tokenUsageRepo struct {
	docs docRepo[usage.TokenUsageRecord]
}

func NewTokenUsageRepo(store kvstore.Store) TokenUsageRepo {
	return &tokenUsageRepo{docs: newDocRepo[usage.TokenUsageRecord](store, collectionTokenUsage)}
}

func (r *tokenUsageRepo) Get(ctx context.Context, monthKey string) (*usage.TokenUsageRecord, error) {
	return r.docs.get(ctx, monthKey)
}

func (r *tokenUsageRepo) Put(ctx context.Context, rec *usage.TokenUsageRecord) error {
	return r.docs.put(ctx, rec.MonthKey, rec)
}
