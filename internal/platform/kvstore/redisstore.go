package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/haven-backend/internal/platform/logger"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Namespace prefixes every key, default "haven".
	Namespace string
}

// RedisStore keeps each record as a plain string value under
// "<namespace>:<collection>:<key>".
type RedisStore struct {
	rdb *goredis.Client
	ns  string
	log *logger.Logger
}

func NewRedisStore(ctx context.Context, log *logger.Logger, opts RedisOptions) (*RedisStore, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	ns := strings.TrimSpace(opts.Namespace)
	if ns == "" {
		ns = "haven"
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreWithClient(rdb, ns, log), nil
}

func NewRedisStoreWithClient(rdb *goredis.Client, namespace string, log *logger.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, ns: namespace, log: log.With("repo", "RedisStore")}
}

func (s *RedisStore) key(collection, key string) string {
	return s.ns + ":" + collection + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, s.key(collection, key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kvstore.get: %w", err)
	}
	return b, nil
}

func (s *RedisStore) Put(ctx context.Context, collection, key string, value []byte) error {
	if err := s.rdb.Set(ctx, s.key(collection, key), value, 0).Err(); err != nil {
		return fmt.Errorf("kvstore.put: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, collection, key string) error {
	if err := s.rdb.Del(ctx, s.key(collection, key)).Err(); err != nil {
		return fmt.Errorf("kvstore.delete: %w", err)
	}
	return nil
}

func (s *RedisStore) Scan(ctx context.Context, collection, prefix string, limit int) ([]Record, error) {
	base := s.key(collection, "")
	match := base + escapeGlob(prefix) + "*"

	var keys []string
	iter := s.rdb.Scan(ctx, 0, match, 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("kvstore.scan: %w", err)
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("kvstore.scan: %w", err)
	}
	out := make([]Record, 0, len(keys))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// deleted between SCAN and MGET
			continue
		}
		out = append(out, Record{
			Collection: collection,
			Key:        strings.TrimPrefix(keys[i], base),
			Value:      []byte(str),
		})
	}
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *RedisStore) Close() error { return s.rdb.Close() }

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
