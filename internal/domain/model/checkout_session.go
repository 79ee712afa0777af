package model

import "time"

type SessionStatus string

const (
	SessionPending SessionStatus = "pending" // created; waiting for the payment platform
	SessionReady   SessionStatus = "ready"   // checkout URL available
	SessionExpired SessionStatus = "expired"
	SessionFailed  SessionStatus = "failed"
)

// DefaultSessionTTL is how long a checkout attempt stays pollable.
const DefaultSessionTTL = 20 * time.Minute

// CheckoutSession is one attempt to obtain a payment link for one order.
type CheckoutSession struct {
	OrderID          string        `json:"order_id"`
	AttemptID        string        `json:"attempt_id"`
	Status           SessionStatus `json:"status"`
	Amount           int64         `json:"amount"` // minor units
	Currency         string        `json:"currency,omitempty"`
	OfferTitle       string        `json:"offer_title,omitempty"`
	UserEmail        string        `json:"user_email,omitempty"`
	PlanID           string        `json:"plan_id"`
	PlanName         string        `json:"plan_name,omitempty"`
	CheckoutURL      string        `json:"checkout_url,omitempty"`
	PaymentSessionID string        `json:"payment_session_id,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	ExpiresAt        time.Time     `json:"expires_at"`
}

// ExpiredAt reports whether the session is past its lifetime at now.
// Both lazy eviction and the periodic sweep use this boundary.
func (s *CheckoutSession) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func (s *CheckoutSession) IsReady() bool {
	return s.Status == SessionReady && s.CheckoutURL != ""
}

// NewSession carries what the orchestrator knows when an attempt starts.
type NewSession struct {
	OrderID    string
	Amount     int64
	Currency   string
	OfferTitle string
	UserEmail  string
	Plan       Plan
}

// SessionHandle identifies one attempt; a newer Create for the same order
// invalidates older handles.
type SessionHandle struct {
	OrderID   string
	AttemptID string
	ExpiresAt time.Time
}
