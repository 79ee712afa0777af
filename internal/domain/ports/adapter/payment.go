package adapter

import "context"

// CheckoutRequest is what the payment platform needs to issue a hosted checkout link.
type CheckoutRequest struct {
	PlanID      string
	Amount      int64 // minor units
	Currency    string
	Metadata    map[string]string
	RedirectURL string
	CancelURL   string
}

type CheckoutLink struct {
	CheckoutURL string
	SessionID   string
}

// PaymentGateway is the hex port for the payment platform.
type PaymentGateway interface {
	Name() string

	// CreateCheckoutSession must fail when the provider response carries no URL.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutLink, error)
}
