package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yungbote/haven-backend/internal/platform/kvstore"
)

// docRepo stores values of T as JSON documents in one store collection.
type docRepo[T any] struct {
	store      kvstore.Store
	collection string
}

func newDocRepo[T any](store kvstore.Store, collection string) docRepo[T] {
	return docRepo[T]{store: store, collection: collection}
}

// get returns (nil, nil) when the key is absent.
func (r docRepo[T]) get(ctx context.Context, key string) (*T, error) {
	raw, err := r.store.Get(ctx, r.collection, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%s/%s: decode: %w", r.collection, key, err)
	}
	return &v, nil
}

func (r docRepo[T]) put(ctx context.Context, key string, v *T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s/%s: encode: %w", r.collection, key, err)
	}
	return r.store.Put(ctx, r.collection, key, raw)
}

func (r docRepo[T]) delete(ctx context.Context, key string) error {
	return r.store.Delete(ctx, r.collection, key)
}

// scan skips records that fail to decode and reports how many were skipped.
func (r docRepo[T]) scan(ctx context.Context, prefix string, limit int) ([]T, int, error) {
	recs, err := r.store.Scan(ctx, r.collection, prefix, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]T, 0, len(recs))
	skipped := 0
	for _, rec := range recs {
		var v T
		if err := json.Unmarshal(rec.Value, &v); err != nil {
			skipped++
			continue
		}
		out = append(out, v)
	}
	return out, skipped, nil
}
