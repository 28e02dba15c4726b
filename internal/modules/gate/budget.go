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

var ErrBudgetExceeded = errors.New("monthly token budget exceeded")

const DefaultWarningRatio = 0.8

type BudgetStatus struct {
	Allowed    bool
	Tokens     int64
	Limit      int64
	Percentage float64
	Warning    bool
	ResetAt    time.Time
}

type AddResult struct {
	Tokens   int64
	Warning  bool
	Exceeded bool
}

// TokenBudget accumulates monthly token spend. Warning fires at the warning
// ratio of the limit and requests are blocked once the limit is reached.
type TokenBudget struct {
	repo         repos.TokenUsageRepo
	limit        int64
	warningRatio float64
	log          *logger.Logger
}

func NewTokenBudget(repo repos.TokenUsageRepo, limit int64, warningRatio float64, log *logger.Logger) *TokenBudget {
	if warningRatio <= 0 || warningRatio >= 1 {
		warningRatio = DefaultWarningRatio
	}
	return &TokenBudget{repo: repo, limit: limit, warningRatio: warningRatio, log: log.With("module", "TokenBudget")}
}

func (b *TokenBudget) Limit() int64 { return b.limit }

func (b *TokenBudget) Check(ctx context.Context, monthKey string) (BudgetStatus, error) {
	rec, err := b.repo.Get(ctx, monthKey)
	if err != nil {
		return BudgetStatus{}, fmt.Errorf("token budget get %s: %w", monthKey, err)
	}
	var tokens int64
	if rec != nil {
		tokens = rec.Tokens
	}
	st := BudgetStatus{
		Tokens:  tokens,
		Limit:   b.limit,
		ResetAt: resetAtFor(monthKey),
	}
	if b.limit <= 0 {
		// no cap configured
		st.Allowed = true
		return st, nil
	}
	st.Percentage = float64(tokens) / float64(b.limit) * 100
	st.Allowed = tokens < b.limit
	st.Warning = float64(tokens) >= b.warningRatio*float64(b.limit)
	return st, nil
}

// Add records delta tokens for monthKey. Non-atomic read-then-write.
func (b *TokenBudget) Add(ctx context.Context, monthKey string, delta int64) (AddResult, error) {
	if delta < 0 {
		delta = 0
	}
	rec, err := b.repo.Get(ctx, monthKey)
	if err != nil {
		return AddResult{}, fmt.Errorf("token budget get %s: %w", monthKey, err)
	}
	if rec == nil {
		rec = &usage.TokenUsageRecord{MonthKey: monthKey}
	}
	rec.Tokens += delta
	rec.Limit = b.limit
	rec.WarningThreshold = b.warningRatio
	rec.UpdatedAt = time.Now().UTC()
	if err := b.repo.Put(ctx, rec); err != nil {
		return AddResult{}, fmt.Errorf("token budget put %s: %w", monthKey, err)
	}

	res := AddResult{Tokens: rec.Tokens}
	if b.limit > 0 {
		res.Warning = float64(rec.Tokens) >= b.warningRatio*float64(b.limit)
		res.Exceeded = rec.Tokens >= b.limit
	}
	if res.Exceeded {
		b.log.Warn("monthly token budget reached", "month", monthKey, "tokens", rec.Tokens, "limit", b.limit)
	}
	return res, nil
}

func resetAtFor(monthKey string) time.Time {
	t, err := time.Parse("2006-01", monthKey)
	if err != nil {
		return usage.NextMonthStart(time.Now())
	}
	return usage.NextMonthStart(t)
}
