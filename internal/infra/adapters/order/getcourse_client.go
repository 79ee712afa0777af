package order

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"checkout-bridge/internal/domain/model"
	"checkout-bridge/internal/domain/ports/adapter"
)

var _ adapter.OrderPlatform = (*GetCourseClient)(nil)

// GetCourse deal statuses and payment fields used when a deal is paid.
const (
	dealStatusPaid        = "payed"
	paymentStatusAccepted = "accepted"
	paymentTypeCard       = "CARD"
)

// GetCourseClient marks deals paid through the GetCourse import API.
type GetCourseClient struct {
	apiKey   string
	endpoint string
	client   *http.Client
	now      func() time.Time
}

// NewGetCourseClient targets https://{account}.getcourse.ru unless baseURL is set.
func NewGetCourseClient(account, apiKey, baseURL string, timeout time.Duration) (*GetCourseClient, error) {
	if apiKey == "" {
		return nil, errors.New("getcourse api key empty")
	}
	if baseURL == "" {
		if account == "" {
			return nil, errors.New("getcourse account empty")
		}
		baseURL = fmt.Sprintf("https://%s.getcourse.ru", account)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid getcourse url: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GetCourseClient{
		apiKey:   apiKey,
		endpoint: strings.TrimRight(baseURL, "/") + "/pl/api/deals",
		client:   &http.Client{Timeout: timeout},
		now:      time.Now,
	}, nil
}

func (c *GetCourseClient) Name() string { return "getcourse" }

type dealParams struct {
	User struct {
		Email string `json:"email"`
	} `json:"user"`
	Deal struct {
		DealNumber string `json:"deal_number"`
		DealStatus string `json:"deal_status"`
	} `json:"deal"`
	Payment *dealPayment `json:"payment,omitempty"`
}

type dealPayment struct {
	PaymentID     string      `json:"payment_id,omitempty"`
	PaymentAmount json.Number `json:"payment_amount"`
	PaymentStatus string      `json:"payment_status"`
	PaymentType   string      `json:"payment_type"`
	PaymentDate   string      `json:"payment_date"`
}

func (c *GetCourseClient) UpdateOrderStatus(ctx context.Context, u model.SettlementUpdate) error {
	if u.OrderID == "" || u.UserEmail == "" {
		return errors.New("getcourse: deal number and email required")
	}
	if u.Status != model.OrderStatusPaid {
		return fmt.Errorf("getcourse: unsupported order status %q", u.Status)
	}

	var p dealParams
	p.User.Email = u.UserEmail
	p.Deal.DealNumber = u.OrderID
	p.Deal.DealStatus = dealStatusPaid
	p.Payment = &dealPayment{
		PaymentID:     u.PaymentID,
		PaymentAmount: model.MajorNumber(u.Amount),
		PaymentStatus: paymentStatusAccepted,
		PaymentType:   paymentTypeCard,
		PaymentDate:   c.now().UTC().Format(time.RFC3339),
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("action", "add")
	form.Set("key", c.apiKey)
	form.Set("params", base64.StdEncoding.EncodeToString(raw))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("getcourse request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("getcourse http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		Success      *bool  `json:"success"`
		ErrorMessage string `json:"error_message"`
		Result       struct {
			Success      *bool  `json:"success"`
			Error        bool   `json:"error"`
			ErrorMessage string `json:"error_message"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("getcourse decode: %w", err)
	}
	if out.Success != nil && !*out.Success {
		return fmt.Errorf("getcourse rejected: %s", orUnknown(out.ErrorMessage))
	}
	if out.Result.Error || (out.Result.Success != nil && !*out.Result.Success) {
		return fmt.Errorf("getcourse deal error: %s", orUnknown(out.Result.ErrorMessage))
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown error"
	}
	return s
}
