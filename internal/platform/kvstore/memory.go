package kvstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps records in process. Used for local runs and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]Record
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[string]Record{}, now: time.Now}
}

func (s *MemoryStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), rec.Value...), nil
}

func (s *MemoryStore) Put(ctx context.Context, collection, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.data[collection]
	if c == nil {
		c = map[string]Record{}
		s.data[collection] = c
	}
	c[key] = Record{
		Collection: collection,
		Key:        key,
		Value:      append([]byte(nil), value...),
		UpdatedAt:  s.now().UTC(),
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[collection], key)
	return nil
}

func (s *MemoryStore) Scan(ctx context.Context, collection, prefix string, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]Record, 0, len(s.data[collection]))
	for k, rec := range s.data[collection] {
		if strings.HasPrefix(k, prefix) {
			rec.Value = append([]byte(nil), rec.Value...)
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close() error { return nil }
