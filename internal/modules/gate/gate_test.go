package gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yungbote/haven-backend/internal/data/repos"
	"github.com/yungbote/haven-backend/internal/platform/kvstore"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

func newLimiter(now *time.Time) *RateLimiter {
	l := NewRateLimiter(repos.NewRateLimitRepo(kvstore.NewMemoryStore()), logger.Nop())
	l.now = func() time.Time { return *now }
	return l
}

func TestRateLimiterAdmitsNThenRejects(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	l := newLimiter(&now)
	chat := Class{Name: "chat", Window: 60 * time.Second, Max: 30}
	ctx := context.Background()

	for i := 1; i <= 30; i++ {
		d, err := l.CheckClass(ctx, "ip:1.2.3.4", chat)
		require.NoError(t, err)
		require.Truef(t, d.Allowed, "request %d should be admitted", i)
		assert.Equal(t, 30-i, d.Remaining)
		now = now.Add(time.Second)
	}

	d, err := l.CheckClass(ctx, "ip:1.2.3.4", chat)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.False(t, d.ResetAt.Before(now), "resetAt must not be before the rejection time")
	assert.True(t, d.ResetAt.After(now))

	// another identity has its own bucket
	d, err = l.CheckClass(ctx, "ip:5.6.7.8", chat)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRateLimiterRejectionDoesNotIncrement(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	l := newLimiter(&now)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = l.Check(ctx, "k", time.Minute, 2)
	}
	b, err := l.repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Count)
}

func TestRateLimiterWindowResets(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	l := newLimiter(&now)
	ctx := context.Background()

	d, _ := l.Check(ctx, "k", time.Minute, 1)
	require.True(t, d.Allowed)
	d, _ = l.Check(ctx, "k", time.Minute, 1)
	require.False(t, d.Allowed)

	now = now.Add(time.Minute)
	d, err := l.Check(ctx, "k", time.Minute, 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, now.Add(time.Minute), d.ResetAt)
}

func TestTokenBudgetThresholds(t *testing.T) {
	ctx := context.Background()
	repo := repos.NewTokenUsageRepo(kvstore.NewMemoryStore())
	b := NewTokenBudget(repo, 1000, 0.8, logger.Nop())

	st, err := b.Check(ctx, "2026-10")
	require.NoError(t, err)
	assert.True(t, st.Allowed)
	assert.False(t, st.Warning)
	assert.Equal(t, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), st.ResetAt)

	res, err := b.Add(ctx, "2026-10", 960)
	require.NoError(t, err)
	assert.True(t, res.Warning)
	assert.False(t, res.Exceeded)

	st, err = b.Check(ctx, "2026-10")
	require.NoError(t, err)
	assert.True(t, st.Allowed, "96 percent should still be allowed")
	assert.True(t, st.Warning)
	assert.InDelta(t, 96.0, st.Percentage, 0.001)

	res, err = b.Add(ctx, "2026-10", 40)
	require.NoError(t, err)
	assert.True(t, res.Exceeded)
	assert.EqualValues(t, 1000, res.Tokens)

	st, err = b.Check(ctx, "2026-10")
	require.NoError(t, err)
	assert.False(t, st.Allowed)

	// a new month starts from zero
	st, err = b.Check(ctx, "2026-11")
	require.NoError(t, err)
	assert.True(t, st.Allowed)
	assert.Zero(t, st.Tokens)
}

func TestRateLimiterLogsRejection(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	l := NewRateLimiter(repos.NewRateLimitRepo(kvstore.NewMemoryStore()), log)
	l.now = func() time.Time { return now }
	class := Class{Name: "chat", Window: time.Minute, Max: 1}
	ctx := context.Background()

	d, err := l.CheckClass(ctx, "ip:1.2.3.4", class)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	assert.Equal(t, 1, logs.FilterMessage("rate limit window opened").Len())

	d, err = l.CheckClass(ctx, "ip:1.2.3.4", class)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	rejected := logs.FilterMessage("rate limit exceeded").All()
	require.Len(t, rejected, 1)
	fields := rejected[0].ContextMap()
	assert.Equal(t, "chat:ip:1.2.3.4", fields["bucket"])
	assert.Equal(t, "RateLimiter", fields["module"])
}
