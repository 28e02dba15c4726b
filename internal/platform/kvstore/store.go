// Package kvstore is the durable keyed store shared by every request: rate
// limit buckets, token totals, user memory, knowledge documents and the
// embedding cache. Values are opaque JSON documents addressed by
// (collection, key). Writes are plain upserts; callers do read-then-write
// without compare-and-swap.
package kvstore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("kvstore: not found")

type Record struct {
	Collection string
	Key        string
	Value      []byte
	UpdatedAt  time.Time
}

type Store interface {
	Get(ctx context.Context, collection, key string) ([]byte, error)
	// Put inserts or replaces the value stored under key.
	Put(ctx context.Context, collection, key string, value []byte) error
	Delete(ctx context.Context, collection, key string) error
	// Scan returns records whose key starts with prefix, ordered by key.
	// limit <= 0 means no limit.
	Scan(ctx context.Context, collection, prefix string, limit int) ([]Record, error)
	Ping(ctx context.Context) error
	Close() error
}
