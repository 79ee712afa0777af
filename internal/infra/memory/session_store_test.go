//go:build !integration

package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"checkout-bridge/internal/domain"
	"checkout-bridge/internal/domain/model"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func newSession(orderID string) model.NewSession {
	return model.NewSession{
		OrderID:  orderID,
		Amount:   99700,
		Currency: "USD",
		Plan:     model.Plan{ID: "plan_plus", Name: "Plus"},
	}
}

func TestSessionStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewSessionStoreWithClock(20*time.Minute, clock.Now)

	h, err := s.Create(ctx, newSession("D100"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !h.ExpiresAt.Equal(clock.Now().Add(20 * time.Minute)) {
		t.Fatalf("ExpiresAt = %v", h.ExpiresAt)
	}

	got, err := s.Get(ctx, "D100")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.SessionPending || got.CheckoutURL != "" || got.PlanName != "Plus" {
		t.Fatalf("pending session: %+v", got)
	}

	ok, err := s.MarkReady(ctx, h, "https://pay.example/x", "ch_1")
	if err != nil || !ok {
		t.Fatalf("MarkReady = (%v, %v)", ok, err)
	}
	got, _ = s.Get(ctx, "D100")
	if !got.IsReady() || got.PaymentSessionID != "ch_1" {
		t.Fatalf("ready session: %+v", got)
	}

	// returned sessions are copies
	got.CheckoutURL = "mutated"
	again, _ := s.Get(ctx, "D100")
	if again.CheckoutURL != "https://pay.example/x" {
		t.Fatal("Get leaked internal state")
	}
}

func TestSessionStore_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewSessionStoreWithClock(20*time.Minute, clock.Now)
	start := clock.Now()

	h, _ := s.Create(ctx, newSession("D1"))

	clock.Set(start.Add(20*time.Minute - time.Nanosecond))
	if _, err := s.Get(ctx, "D1"); err != nil {
		t.Fatalf("just before expiry: %v", err)
	}

	clock.Set(start.Add(20 * time.Minute))
	if ok, _ := s.MarkReady(ctx, h, "https://pay.example/late", ""); ok {
		t.Fatal("MarkReady succeeded on an expired session")
	}
	if _, err := s.Get(ctx, "D1"); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("at expiry: got %v, want ErrSessionExpired", err)
	}
	if _, err := s.Get(ctx, "D1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("second read: got %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStore_ReplaceOnCreate(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore(time.Minute)

	first, _ := s.Create(ctx, newSession("D2"))
	second, _ := s.Create(ctx, newSession("D2"))
	if first.AttemptID == second.AttemptID {
		t.Fatal("attempt ids must differ")
	}

	if ok, _ := s.MarkReady(ctx, first, "https://pay.example/old", ""); ok {
		t.Fatal("stale handle marked ready")
	}
	if err := s.MarkFailed(ctx, first); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	got, err := s.Get(ctx, "D2")
	if err != nil {
		t.Fatalf("stale MarkFailed removed the newer attempt: %v", err)
	}
	if got.AttemptID != second.AttemptID || got.Status != model.SessionPending {
		t.Fatalf("unexpected session: %+v", got)
	}

	if err := s.MarkFailed(ctx, second); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if _, err := s.Get(ctx, "D2"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStore_MarkReadyRejectsEmptyURL(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore(time.Minute)
	h, _ := s.Create(ctx, newSession("D3"))
	if _, err := s.MarkReady(ctx, h, "", ""); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
}

func TestSessionStore_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewSessionStoreWithClock(10*time.Minute, clock.Now)
	start := clock.Now()

	for i := 0; i < 50; i++ {
		_, _ = s.Create(ctx, newSession(fmt.Sprintf("old-%d", i)))
	}
	clock.Set(start.Add(5 * time.Minute))
	for i := 0; i < 10; i++ {
		_, _ = s.Create(ctx, newSession(fmt.Sprintf("new-%d", i)))
	}

	n, err := s.Sweep(ctx, start.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 50 || s.Len() != 10 {
		t.Fatalf("swept %d, left %d; want 50 and 10", n, s.Len())
	}
}

func TestSessionStore_ConcurrentCreatesSameOrder(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore(time.Minute)

	const n = 64
	handles := make([]model.SessionHandle, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := s.Create(ctx, newSession("HOT"))
			if err != nil {
				t.Errorf("Create: %v", err)
				return
			}
			handles[i] = h
		}(i)
	}
	wg.Wait()

	// every attempt races to finish; exactly one handle is current
	var ready int
	var mu sync.Mutex
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(h model.SessionHandle) {
			defer wg.Done()
			ok, err := s.MarkReady(ctx, h, "https://pay.example/"+h.AttemptID, "")
			if err != nil {
				t.Errorf("MarkReady: %v", err)
			}
			if ok {
				mu.Lock()
				ready++
				mu.Unlock()
			}
		}(handles[i])
	}
	wg.Wait()

	if ready != 1 {
		t.Fatalf("%d attempts marked ready, want exactly 1", ready)
	}
	got, err := s.Get(ctx, "HOT")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CheckoutURL != "https://pay.example/"+got.AttemptID {
		t.Fatalf("url %q does not belong to current attempt %s", got.CheckoutURL, got.AttemptID)
	}
}

func TestSessionStore_SweepConcurrentWithWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewSessionStore(time.Millisecond)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				id := fmt.Sprintf("o-%d-%d", w, i%20)
				h, _ := s.Create(ctx, newSession(id))
				_, _ = s.MarkReady(ctx, h, "https://pay.example/x", "")
				_, _ = s.Get(ctx, id)
			}
		}(w)
	}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				_, _ = s.Sweep(ctx, time.Now())
			}
		}
	}()
	wg.Wait()
	close(done)
}
