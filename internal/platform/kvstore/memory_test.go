package kvstore

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Get(ctx, "c", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Put(ctx, "c", "a", []byte(`{"n":1}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, "c", "a", []byte(`{"n":2}`)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := s.Get(ctx, "c", "a")
	if err != nil || string(got) != `{"n":2}` {
		t.Fatalf("get=%s err=%v", got, err)
	}
	if err := s.Delete(ctx, "c", "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "c", "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStoreScan(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, k := range []string{"doc:b", "doc:a", "other:x", "doc:c"} {
		if err := s.Put(ctx, "kb", k, []byte(`{}`)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	_ = s.Put(ctx, "elsewhere", "doc:z", []byte(`{}`))

	recs, err := s.Scan(ctx, "kb", "doc:", 2)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(recs) != 2 || recs[0].Key != "doc:a" || recs[1].Key != "doc:b" {
		t.Fatalf("unexpected scan result: %+v", recs)
	}
}

func TestMemoryStoreHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewMemoryStore().Put(ctx, "c", "k", nil); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`a_b%c\`); got != `a\_b\%c\\` {
		t.Fatalf("escapeLike=%q", got)
	}
}
