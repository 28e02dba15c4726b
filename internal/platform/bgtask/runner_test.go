package bgtask

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/haven-backend/internal/platform/logger"
)

func TestRunnerReportsErrorsOnOwnChannel(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []TaskError
	)
	r := New(logger.Nop(), Options{OnError: func(te TaskError) {
		mu.Lock()
		seen = append(seen, te)
		mu.Unlock()
	}})

	r.Go(context.Background(), "ok", "t1", func(context.Context) error { return nil })
	r.Go(context.Background(), "fails", "t2", func(context.Context) error { return errors.New("store down") })
	r.Go(context.Background(), "panics", "t3", func(context.Context) error { panic("boom") })

	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("expected 2 task errors, got %d", len(seen))
	}
}

func TestRunnerDetachesFromRequestCancel(t *testing.T) {
	r := New(logger.Nop(), Options{Timeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	var ctxErr error
	r.Go(ctx, "detached", "", func(tctx context.Context) error {
		close(started)
		time.Sleep(20 * time.Millisecond)
		ctxErr = tctx.Err()
		return nil
	})
	<-started
	cancel()
	r.Wait()
	if ctxErr != nil {
		t.Fatalf("task context should survive request cancel, got %v", ctxErr)
	}
	_ = r.Close(context.Background())
}

func TestRunnerDropsTasksAfterClose(t *testing.T) {
	var failures int
	r := New(logger.Nop(), Options{OnError: func(TaskError) { failures++ }})
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	ran := false
	r.Go(context.Background(), "late", "t9", func(context.Context) error {
		ran = true
		return errors.New("boom")
	})
	r.Wait()
	if ran {
		t.Fatalf("task scheduled after Close should not run")
	}
	if failures != 0 {
		t.Fatalf("dropped task should not be reported as a failure, got %d", failures)
	}
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
