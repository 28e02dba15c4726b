package ctxutil

import "context"

type correlationKey struct{}

// Correlation ties a chat turn's log lines and response headers together.
// TraceID is echoed to clients in every chat payload; RequestID only
// identifies the HTTP exchange.
type Correlation struct {
	TraceID   string
	RequestID string
}

func WithCorrelation(ctx context.Context, c Correlation) context.Context {
	return context.WithValue(ctx, correlationKey{}, c)
}

func GetCorrelation(ctx context.Context) (Correlation, bool) {
	c, ok := ctx.Value(correlationKey{}).(Correlation)
	return c, ok
}

// TraceID returns the attached trace id, or "" when none was set.
func TraceID(ctx context.Context) string {
	c, _ := GetCorrelation(ctx)
	return c.TraceID
}
