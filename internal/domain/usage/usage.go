package usage

import "time"

type TokenUsageRecord struct {
	MonthKey         string    `json:"monthKey"`
	Tokens           int64     `json:"tokens"`
	Limit            int64     `json:"limit"`
	WarningThreshold float64   `json:"warningThreshold"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type RateLimitBucket struct {
	Key           string    `json:"key"`
	Count         int       `json:"count"`
	WindowResetAt time.Time `json:"windowResetAt"`
}

// MonthKey is the UTC calendar month, e.g. "2026-10".
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// NextMonthStart is when the budget for t's month resets.
func NextMonthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}
