package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"checkout-bridge/internal/domain"
	"checkout-bridge/internal/domain/model"
	"checkout-bridge/internal/domain/ports/adapter"
	"checkout-bridge/internal/domain/ports/repository"
	"checkout-bridge/internal/infra/logging"
	"checkout-bridge/internal/infra/metrics"
)

// CheckoutRequest is an inbound create-checkout call. Amount is kept raw so
// formatting like "$997" can be stripped here.
type CheckoutRequest struct {
	OrderID    string
	UserEmail  string
	UserPhone  string
	UserName   string
	Amount     string
	OfferTitle string
	Currency   string
}

// PreparedCheckout is a validated request with a Pending session behind it.
type PreparedCheckout struct {
	Handle  model.SessionHandle
	Request CheckoutRequest
	Amount  int64
	Plan    model.Plan
}

type CheckoutResult struct {
	OrderID          string
	CheckoutURL      string
	PaymentSessionID string
	Plan             model.Plan
	Amount           int64
	Currency         string
	ExpiresAt        time.Time
}

type CheckoutOptions struct {
	RequireAmount   bool
	DefaultCurrency string
	SuccessURL      string
	CancelURL       string
	Source          string // metadata "source" tag
	DevMode         bool   // log PII unredacted
}

// CheckoutUseCase turns an order into a hosted checkout link.
type CheckoutUseCase interface {
	// Prepare validates the request, picks a plan and opens a Pending session.
	Prepare(ctx context.Context, req CheckoutRequest) (*PreparedCheckout, error)
	// Complete makes the single payment-platform call and finalizes the session.
	Complete(ctx context.Context, p *PreparedCheckout) (*CheckoutResult, error)
	// CreateCheckout is Prepare followed by Complete.
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
}

var _ CheckoutUseCase = (*checkoutUC)(nil)

type checkoutUC struct {
	store   repository.SessionStore
	plans   PlanSelector
	gateway adapter.PaymentGateway
	opts    CheckoutOptions
	log     *zerolog.Logger
}

func NewCheckoutUseCase(store repository.SessionStore, plans PlanSelector, gateway adapter.PaymentGateway, opts CheckoutOptions, logger *zerolog.Logger) *checkoutUC {
	l := logger.With().Str("component", "CheckoutUseCase").Logger()
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "USD"
	}
	return &checkoutUC{store: store, plans: plans, gateway: gateway, opts: opts, log: &l}
}

func (u *checkoutUC) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	p, err := u.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return u.Complete(ctx, p)
}

func (u *checkoutUC) Prepare(ctx context.Context, req CheckoutRequest) (*PreparedCheckout, error) {
	req = normalize(req, u.opts.DefaultCurrency)

	var missing []string
	if req.OrderID == "" {
		missing = append(missing, "orderId")
	}
	if req.UserEmail == "" {
		missing = append(missing, "userEmail")
	}
	if u.opts.RequireAmount && req.Amount == "" {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		metrics.IncCheckout("invalid")
		return nil, &domain.ValidationError{Missing: missing}
	}

	log := logging.With(logging.WithOrderID(ctx, req.OrderID), u.log)

	amount, ok := model.ParseMinorUnits(req.Amount)
	if !ok {
		// best effort: an unreadable amount routes to the lowest band
		metrics.IncAmountParseFallback()
		log.Warn().Str("raw_amount", req.Amount).Msg("amount not parseable; using 0")
		amount = 0
	}

	plan := u.plans.Select(amount)
	h, err := u.store.Create(ctx, model.NewSession{
		OrderID:    req.OrderID,
		Amount:     amount,
		Currency:   req.Currency,
		OfferTitle: req.OfferTitle,
		UserEmail:  req.UserEmail,
		Plan:       plan,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	log.Info().
		Str("attempt_id", h.AttemptID).
		Str("plan_id", plan.ID).
		Str("amount", model.FormatMajor(amount)).
		Str("email", logging.Redact(req.UserEmail, u.opts.DevMode)).
		Msg("checkout session pending")

	return &PreparedCheckout{Handle: h, Request: req, Amount: amount, Plan: plan}, nil
}

func (u *checkoutUC) Complete(ctx context.Context, p *PreparedCheckout) (*CheckoutResult, error) {
	log := logging.With(logging.WithOrderID(ctx, p.Request.OrderID), u.log)

	start := time.Now()
	link, err := u.gateway.CreateCheckoutSession(ctx, adapter.CheckoutRequest{
		PlanID:      p.Plan.ID,
		Amount:      p.Amount,
		Currency:    p.Request.Currency,
		Metadata:    u.metadata(p.Request),
		RedirectURL: u.opts.SuccessURL,
		CancelURL:   u.opts.CancelURL,
	})
	metrics.ObserveUpstream(u.gateway.Name(), time.Since(start), err == nil)
	if err != nil {
		// the caller may retry right away, so leave nothing behind
		if ferr := u.store.MarkFailed(context.WithoutCancel(ctx), p.Handle); ferr != nil {
			log.Error().Err(ferr).Msg("mark session failed")
		}
		metrics.IncCheckout("failed")
		log.Error().Err(err).Str("plan_id", p.Plan.ID).Msg("payment platform checkout failed")
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrUpstream, u.gateway.Name(), err)
	}

	ok, err := u.store.MarkReady(ctx, p.Handle, link.CheckoutURL, link.SessionID)
	if err != nil {
		metrics.IncCheckout("failed")
		return nil, fmt.Errorf("mark session ready: %w", err)
	}
	if !ok {
		metrics.IncCheckout("superseded")
		log.Warn().Str("attempt_id", p.Handle.AttemptID).Msg("session replaced or expired; discarding checkout link")
		return nil, domain.ErrSessionSuperseded
	}

	metrics.IncCheckout("ready")
	log.Info().Str("payment_session_id", link.SessionID).Msg("checkout session ready")

	return &CheckoutResult{
		OrderID:          p.Request.OrderID,
		CheckoutURL:      link.CheckoutURL,
		PaymentSessionID: link.SessionID,
		Plan:             p.Plan,
		Amount:           p.Amount,
		Currency:         p.Request.Currency,
		ExpiresAt:        p.Handle.ExpiresAt,
	}, nil
}

func (u *checkoutUC) metadata(r CheckoutRequest) map[string]string {
	m := map[string]string{
		"order_id":    r.OrderID,
		"deal_number": r.OrderID,
		"user_email":  r.UserEmail,
		"currency":    r.Currency,
	}
	if u.opts.Source != "" {
		m["source"] = u.opts.Source
	}
	for k, v := range map[string]string{
		"user_name":   r.UserName,
		"user_phone":  r.UserPhone,
		"offer_title": r.OfferTitle,
	} {
		if v != "" {
			m[k] = v
		}
	}
	return m
}

func normalize(r CheckoutRequest, defCurrency string) CheckoutRequest {
	r.OrderID = strings.TrimSpace(r.OrderID)
	r.UserEmail = strings.TrimSpace(r.UserEmail)
	r.UserPhone = strings.TrimSpace(r.UserPhone)
	r.UserName = strings.TrimSpace(r.UserName)
	r.Amount = strings.TrimSpace(r.Amount)
	r.OfferTitle = strings.TrimSpace(r.OfferTitle)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if r.Currency == "" {
		r.Currency = defCurrency
	}
	return r
}
