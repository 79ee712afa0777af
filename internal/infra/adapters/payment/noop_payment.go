package payment

import (
	"context"
	"fmt"
	"sync"

	"checkout-bridge/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway hands out deterministic example links; used in dev mode
// and tests where no payment platform is reachable.
type NoopPaymentGateway struct {
	mu       sync.Mutex
	seq      int64
	sessions map[string]adapter.CheckoutRequest // session id -> request
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		sessions: make(map[string]adapter.CheckoutRequest),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("noop-%d", g.seq)
}

func (g *NoopPaymentGateway) CreateCheckoutSession(ctx context.Context, req adapter.CheckoutRequest) (adapter.CheckoutLink, error) {
	if req.PlanID == "" {
		return adapter.CheckoutLink{}, fmt.Errorf("noop: plan id empty")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next()
	g.sessions[id] = req
	return adapter.CheckoutLink{
		CheckoutURL: "https://example.test/checkout/" + req.PlanID + "?session=" + id,
		SessionID:   id,
	}, nil
}

// Session returns what was requested for a session id.
func (g *NoopPaymentGateway) Session(id string) (adapter.CheckoutRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.sessions[id]
	return r, ok
}
