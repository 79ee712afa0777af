package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"checkout-bridge/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*WhopGateway)(nil)

// Whop responses have carried the hosted link under different names over time.
var checkoutURLFields = []string{"checkout_url", "purchase_url", "url", "checkout_link"}

// WhopGateway creates hosted checkout sessions through the Whop REST API.
type WhopGateway struct {
	apiKey    string
	companyID string
	baseURL   string
	client    *http.Client
}

func NewWhopGateway(apiKey, companyID, baseURL string, timeout time.Duration) (*WhopGateway, error) {
	if apiKey == "" {
		return nil, errors.New("whop api key empty")
	}
	if baseURL == "" {
		baseURL = "https://api.whop.com/v2"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid whop base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WhopGateway{
		apiKey:    apiKey,
		companyID: companyID,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
	}, nil
}

func (w *WhopGateway) Name() string { return "whop" }

func (w *WhopGateway) CreateCheckoutSession(ctx context.Context, req adapter.CheckoutRequest) (adapter.CheckoutLink, error) {
	if req.PlanID == "" {
		return adapter.CheckoutLink{}, errors.New("whop: plan id empty")
	}
	payload := map[string]any{
		"plan_id":  req.PlanID,
		"metadata": req.Metadata,
	}
	if req.RedirectURL != "" {
		payload["redirect_url"] = req.RedirectURL
	}
	if req.CancelURL != "" {
		payload["cancel_url"] = req.CancelURL
	}
	if w.companyID != "" {
		payload["company_id"] = w.companyID
	}
	b, _ := json.Marshal(payload)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/checkout_sessions", bytes.NewReader(b))
	if err != nil {
		return adapter.CheckoutLink{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return adapter.CheckoutLink{}, fmt.Errorf("whop request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return adapter.CheckoutLink{}, fmt.Errorf("whop read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return adapter.CheckoutLink{}, fmt.Errorf("whop http %d: %s", resp.StatusCode, providerMessage(body))
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return adapter.CheckoutLink{}, fmt.Errorf("whop decode: %w", err)
	}
	link := adapter.CheckoutLink{CheckoutURL: firstString(out, checkoutURLFields...)}
	if link.CheckoutURL == "" {
		return adapter.CheckoutLink{}, errors.New("whop response has no checkout url")
	}
	link.SessionID = firstString(out, "id")
	return link, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// providerMessage pulls a human readable reason out of an error body.
func providerMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Message != "" {
			return e.Message
		}
		switch v := e.Error.(type) {
		case string:
			return v
		case map[string]any:
			if s, ok := v["message"].(string); ok {
				return s
			}
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
