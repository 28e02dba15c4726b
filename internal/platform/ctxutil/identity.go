package ctxutil

import "context"

type identityKey struct{}

// Identity is who a request is attributed to. UserID is set only for
// authenticated callers; Key is the rate-limit identity (user id, else IP).
type Identity struct {
	UserID   string
	ClientIP string
}

func (i Identity) Key() string {
	if i.UserID != "" {
		return "user:" + i.UserID
	}
	return "ip:" + i.ClientIP
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
