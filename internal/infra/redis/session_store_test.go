//go:build integration

package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"checkout-bridge/internal/config"
	"checkout-bridge/internal/domain"
	"checkout-bridge/internal/domain/model"
)

// newTestClient connects to REDIS_URL (e.g. redis://localhost:6379/15).
func newTestClient(t *testing.T) *redClient {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := NewClient(ctx, &config.RedisConfig{URL: url})
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisSessionStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(newTestClient(t), time.Minute, time.Minute)
	orderID := "it-" + uuid.NewString()

	if _, err := store.Get(ctx, orderID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound", err)
	}

	old, err := store.Create(ctx, model.NewSession{OrderID: orderID, Amount: 99700, Plan: model.Plan{ID: "p", Name: "P"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	cur, _ := store.Create(ctx, model.NewSession{OrderID: orderID, Amount: 99700, Plan: model.Plan{ID: "p", Name: "P"}})

	if ok, _ := store.MarkReady(ctx, old, "https://pay.example/old", ""); ok {
		t.Fatal("stale attempt marked ready")
	}
	if err := store.MarkFailed(ctx, old); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	ok, err := store.MarkReady(ctx, cur, "https://pay.example/new", "ch_1")
	if err != nil || !ok {
		t.Fatalf("MarkReady = (%v, %v)", ok, err)
	}

	got, err := store.Get(ctx, orderID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.IsReady() || got.CheckoutURL != "https://pay.example/new" || got.Amount != 99700 || got.PlanName != "P" {
		t.Fatalf("unexpected session: %+v", got)
	}

	if err := store.MarkFailed(ctx, cur); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if _, err := store.Get(ctx, orderID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound", err)
	}
}

func TestRedisSessionStore_ExpiredReportedOnce(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(newTestClient(t), time.Minute, time.Minute)
	orderID := "it-" + uuid.NewString()

	h, err := store.Create(ctx, model.NewSession{OrderID: orderID, Plan: model.Plan{ID: "p"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	store.now = func() time.Time { return h.ExpiresAt }

	if ok, _ := store.MarkReady(ctx, h, "https://pay.example/late", ""); ok {
		t.Fatal("expired attempt marked ready")
	}
	if _, err := store.Get(ctx, orderID); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("got %v, want ErrSessionExpired", err)
	}
	if _, err := store.Get(ctx, orderID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound", err)
	}
}

func TestRedisWebhookDeduper(t *testing.T) {
	ctx := context.Background()
	d := NewWebhookDeduper(newTestClient(t))
	id := "msg_" + uuid.NewString()

	if ok, err := d.FirstSeen(ctx, id, time.Minute); err != nil || !ok {
		t.Fatalf("first = (%v, %v)", ok, err)
	}
	if ok, _ := d.FirstSeen(ctx, id, time.Minute); ok {
		t.Fatal("duplicate reported as first")
	}
}
