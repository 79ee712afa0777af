package redis

import (
	"context"
	"fmt"
	"time"

	"checkout-bridge/internal/domain/ports/repository"
)

var _ repository.WebhookDeduper = (*WebhookDeduper)(nil)

type WebhookDeduper struct {
	client RedisClient
}

func NewWebhookDeduper(client RedisClient) *WebhookDeduper {
	return &WebhookDeduper{client: client}
}

func webhookSeenKey(id string) string {
	return fmt.Sprintf("webhook_seen:%s", id)
}

func (d *WebhookDeduper) FirstSeen(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if id == "" {
		return true, nil
	}
	ok, err := d.client.SetNX(ctx, webhookSeenKey(id), time.Now().Unix(), ttl)
	if err != nil {
		return false, fmt.Errorf("redis setnx webhook id: %w", err)
	}
	return ok, nil
}
