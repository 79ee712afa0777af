package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"checkout-bridge/internal/domain"
	"checkout-bridge/internal/domain/model"
	"checkout-bridge/internal/domain/ports/repository"
	"checkout-bridge/internal/infra/metrics"
)

type PollState string

const (
	PollWaiting   PollState = "waiting"
	PollPreparing PollState = "preparing"
	PollReady     PollState = "ready"
	PollExpired   PollState = "expired"
)

const (
	msgWaiting   = "Waiting for order confirmation..."
	msgPreparing = "Preparing payment link..."
)

// CheckoutStatus is what a polling client sees for one order.
type CheckoutStatus struct {
	State       PollState
	Message     string
	OrderID     string
	CheckoutURL string
	Amount      int64
	Currency    string
	OfferTitle  string
	PlanName    string
	ExpiresAt   time.Time
}

func (s *CheckoutStatus) Ready() bool { return s.State == PollReady }

type StatusUseCase interface {
	Poll(ctx context.Context, orderID string) (*CheckoutStatus, error)
}

var _ StatusUseCase = (*statusUC)(nil)

type statusUC struct {
	store repository.SessionStore
	log   *zerolog.Logger
}

func NewStatusUseCase(store repository.SessionStore, logger *zerolog.Logger) *statusUC {
	l := logger.With().Str("component", "StatusUseCase").Logger()
	return &statusUC{store: store, log: &l}
}

func (u *statusUC) Poll(ctx context.Context, orderID string) (*CheckoutStatus, error) {
	if orderID == "" {
		return nil, &domain.ValidationError{Missing: []string{"orderId"}}
	}

	s, err := u.store.Get(ctx, orderID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		metrics.IncStatusPoll(string(PollWaiting))
		return &CheckoutStatus{State: PollWaiting, Message: msgWaiting, OrderID: orderID}, nil
	case errors.Is(err, domain.ErrSessionExpired):
		metrics.IncStatusPoll(string(PollExpired))
		u.log.Info().Str("order_id", orderID).Msg("checkout expired")
		return &CheckoutStatus{State: PollExpired, OrderID: orderID}, nil
	case err != nil:
		return nil, err
	}

	st := &CheckoutStatus{
		OrderID:    s.OrderID,
		Amount:     s.Amount,
		Currency:   s.Currency,
		OfferTitle: s.OfferTitle,
		PlanName:   s.PlanName,
		ExpiresAt:  s.ExpiresAt,
	}
	if s.Status == model.SessionReady && s.CheckoutURL != "" {
		st.State = PollReady
		st.CheckoutURL = s.CheckoutURL
	} else {
		st.State = PollPreparing
		st.Message = msgPreparing
	}
	metrics.IncStatusPoll(string(st.State))
	return st, nil
}
