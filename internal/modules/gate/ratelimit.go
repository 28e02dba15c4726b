package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/haven-backend/internal/data/repos"
	"github.com/yungbote/haven-backend/internal/domain/usage"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

var ErrRateLimited = errors.New("rate limited")

// Class is an endpoint class with its own window and quota.
type Class struct {
	Name   string
	Window time.Duration
	Max    int
}

type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateLimiter is a fixed-window counter per (identity, class) key. It does a
// plain read-then-write against the store, so concurrent bursts on one key
// can over-admit.
type RateLimiter struct {
	repo repos.RateLimitRepo
	log  *logger.Logger
	now  func() time.Time
}

func NewRateLimiter(repo repos.RateLimitRepo, log *logger.Logger) *RateLimiter {
	return &RateLimiter{repo: repo, log: log.With("module", "RateLimiter"), now: time.Now}
}

func BucketKey(identity string, class Class) string {
	return class.Name + ":" + identity
}

// Check admits or rejects one request. A rejected request does not
// increment the bucket.
func (l *RateLimiter) Check(ctx context.Context, key string, window time.Duration, max int) (Decision, error) {
	now := l.now().UTC()
	if max <= 0 {
		l.log.Debug("rate limit class disabled", "bucket", key)
		return Decision{Allowed: false, ResetAt: now.Add(window)}, nil
	}

	b, err := l.repo.Get(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit get %s: %w", key, err)
	}

	if b == nil || !now.Before(b.WindowResetAt) {
		l.log.Debug("rate limit window opened", "bucket", key, "reset_at", now.Add(window))
		b = &usage.RateLimitBucket{Key: key, Count: 1, WindowResetAt: now.Add(window)}
		if err := l.repo.Put(ctx, b); err != nil {
			return Decision{}, fmt.Errorf("rate limit put %s: %w", key, err)
		}
		return Decision{Allowed: true, Remaining: max - 1, ResetAt: b.WindowResetAt}, nil
	}

	if b.Count < max {
		b.Count++
		if err := l.repo.Put(ctx, b); err != nil {
			return Decision{}, fmt.Errorf("rate limit put %s: %w", key, err)
		}
		return Decision{Allowed: true, Remaining: max - b.Count, ResetAt: b.WindowResetAt}, nil
	}

	l.log.Debug("rate limit exceeded", "bucket", key, "count", b.Count, "max", max, "reset_at", b.WindowResetAt)
	return Decision{Allowed: false, Remaining: 0, ResetAt: b.WindowResetAt}, nil
}

// CheckClass is Check for a named endpoint class.
func (l *RateLimiter) CheckClass(ctx context.Context, identity string, class Class) (Decision, error) {
	return l.Check(ctx, BucketKey(identity, class), class.Window, class.Max)
}
