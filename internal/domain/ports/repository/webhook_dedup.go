package repository

import (
	"context"
	"time"
)

// WebhookDeduper remembers delivered webhook ids for a bounded time.
type WebhookDeduper interface {
	// FirstSeen records id and reports whether it had not been seen before.
	FirstSeen(ctx context.Context, id string, ttl time.Duration) (bool, error)
}
