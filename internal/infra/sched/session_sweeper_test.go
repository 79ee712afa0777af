//go:build !integration

package sched

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"checkout-bridge/internal/domain/model"
	"checkout-bridge/internal/infra/memory"
)

type countingSweeper struct {
	mu    sync.Mutex
	calls int
	n     int
	err   error
}

func (c *countingSweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.n, c.err
}

func (c *countingSweeper) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func nopLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

func TestSessionSweeper_SweepOnceRemovesExpired(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	store := memory.NewSessionStoreWithClock(time.Minute, func() time.Time { return clock })
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := store.Create(ctx, model.NewSession{OrderID: id, Plan: model.Plan{ID: "p"}}); err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
	}
	clock = base.Add(30 * time.Second)
	if _, err := store.Create(ctx, model.NewSession{OrderID: "fresh", Plan: model.Plan{ID: "p"}}); err != nil {
		t.Fatalf("Create(fresh): %v", err)
	}

	other := &countingSweeper{}
	w := NewSessionSweeper(time.Hour, store, nopLogger(), other)
	w.now = func() time.Time { return base.Add(time.Minute) }

	if n := w.SweepOnce(ctx); n != 3 {
		t.Fatalf("swept %d, want 3", n)
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
	if other.count() != 1 {
		t.Fatalf("auxiliary sweeper called %d times", other.count())
	}
}

func TestSessionSweeper_ErrorsDoNotStopPass(t *testing.T) {
	sessions := &countingSweeper{err: errors.New("boom")}
	other := &countingSweeper{err: errors.New("boom")}
	w := NewSessionSweeper(time.Hour, sessions, nopLogger(), other)

	if n := w.SweepOnce(context.Background()); n != 0 {
		t.Fatalf("swept %d, want 0", n)
	}
	if other.count() != 1 {
		t.Fatal("auxiliary sweep skipped after session sweep error")
	}
}

func TestSessionSweeper_RunTicksUntilCancelled(t *testing.T) {
	sessions := &countingSweeper{}
	w := NewSessionSweeper(5*time.Millisecond, sessions, nopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for sessions.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper did not tick")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}
