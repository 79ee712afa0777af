package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Event types the payment platform sends when money has been captured.
var paymentSucceededTypes = map[string]struct{}{
	"payment.succeeded": {},
	"payment_succeeded": {},
	"payment.paid":      {},
}

// Metadata keys, most specific first. Older checkout links carry the order
// platform's own names (deal_number, user_email).
var (
	orderIDKeys   = []string{"orderId", "order_id", "deal_number", "dealNumber"}
	userEmailKeys = []string{"userEmail", "user_email", "email"}
)

// WebhookEvent is an inbound payment-platform event. It is untrusted until
// its signature has been verified.
type WebhookEvent struct {
	Type string           `json:"type"`
	Data WebhookEventData `json:"data"`
}

type WebhookEventData struct {
	ID       string         `json:"id"`
	Amount   json.Number    `json:"amount"`
	Currency string         `json:"currency"`
	Metadata map[string]any `json:"metadata"`
}

// ParseWebhookEvent decodes a raw webhook body.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	ev.Type = strings.TrimSpace(ev.Type)
	return &ev, nil
}

func (e *WebhookEvent) IsPaymentSucceeded() bool {
	_, ok := paymentSucceededTypes[strings.ToLower(e.Type)]
	return ok
}

func (e *WebhookEvent) OrderID() string   { return e.metaString(orderIDKeys...) }
func (e *WebhookEvent) UserEmail() string { return e.metaString(userEmailKeys...) }

// AmountMinor returns data.amount in minor units; fractional values are rounded.
func (e *WebhookEvent) AmountMinor() (int64, error) {
	if e.Data.Amount == "" {
		return 0, nil
	}
	if n, err := e.Data.Amount.Int64(); err == nil {
		return n, nil
	}
	f, err := e.Data.Amount.Float64()
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", e.Data.Amount, err)
	}
	return int64(math.Round(f)), nil
}

func (e *WebhookEvent) metaString(keys ...string) string {
	for _, k := range keys {
		v, ok := e.Data.Metadata[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = fmt.Sprintf("%.0f", t)
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
