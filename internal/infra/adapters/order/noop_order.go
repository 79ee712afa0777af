package order

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"checkout-bridge/internal/domain/model"
	"checkout-bridge/internal/domain/ports/adapter"
)

var _ adapter.OrderPlatform = (*NoopOrderClient)(nil)

// NoopOrderClient stands in when no order platform credentials are set.
// Updates are logged and kept so they can be replayed by hand.
type NoopOrderClient struct {
	mu      sync.Mutex
	updates []model.SettlementUpdate
	log     *zerolog.Logger
}

func NewNoopOrderClient(logger *zerolog.Logger) *NoopOrderClient {
	l := logger.With().Str("component", "NoopOrderClient").Logger()
	return &NoopOrderClient{log: &l}
}

func (c *NoopOrderClient) Name() string { return "noop" }

func (c *NoopOrderClient) UpdateOrderStatus(ctx context.Context, u model.SettlementUpdate) error {
	c.mu.Lock()
	c.updates = append(c.updates, u)
	c.mu.Unlock()
	c.log.Warn().
		Str("order_id", u.OrderID).
		Str("payment_id", u.PaymentID).
		Str("status", string(u.Status)).
		Bool("reconcile", true).
		Msg("order platform not configured; settlement not delivered")
	return nil
}

func (c *NoopOrderClient) Updates() []model.SettlementUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.SettlementUpdate, len(c.updates))
	copy(out, c.updates)
	return out
}
