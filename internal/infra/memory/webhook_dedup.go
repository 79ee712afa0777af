package memory

import (
	"context"
	"sync"
	"time"

	"checkout-bridge/internal/domain/ports/repository"
)

var _ repository.WebhookDeduper = (*WebhookDeduper)(nil)

// WebhookDeduper remembers delivered webhook ids until their ttl passes.
type WebhookDeduper struct {
	mu   sync.Mutex
	now  func() time.Time
	seen map[string]time.Time // id -> forget after
}

func NewWebhookDeduper() *WebhookDeduper {
	return &WebhookDeduper{now: time.Now, seen: make(map[string]time.Time)}
}

func (d *WebhookDeduper) FirstSeen(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if id == "" {
		return true, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if until, ok := d.seen[id]; ok && now.Before(until) {
		return false, nil
	}
	d.seen[id] = now.Add(ttl)
	return true, nil
}

// Sweep drops remembered ids whose ttl has passed.
func (d *WebhookDeduper) Sweep(ctx context.Context, now time.Time) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for id, until := range d.seen {
		if !now.Before(until) {
			delete(d.seen, id)
			n++
		}
	}
	return n, nil
}
