package repository

import (
	"context"
	"time"

	"checkout-bridge/internal/domain/model"
)

// SessionStore keeps at most one live checkout session per order id.
//
// Mutations for the same order are linearizable; different orders do not
// contend. Get evicts an entry found past its expiry and reports
// domain.ErrSessionExpired for it once, domain.ErrSessionNotFound afterwards.
type SessionStore interface {
	// Create replaces any existing session for the order (last writer wins).
	Create(ctx context.Context, s model.NewSession) (model.SessionHandle, error)
	// MarkReady returns false if the attempt is gone, expired or superseded.
	MarkReady(ctx context.Context, h model.SessionHandle, checkoutURL, paymentSessionID string) (bool, error)
	// MarkFailed removes the attempt if it is still the current one.
	MarkFailed(ctx context.Context, h model.SessionHandle) error
	Get(ctx context.Context, orderID string) (*model.CheckoutSession, error)
	// Sweep removes every entry expired at now and returns how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
