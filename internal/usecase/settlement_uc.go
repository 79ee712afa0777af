package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"checkout-bridge/internal/domain"
	"checkout-bridge/internal/domain/model"
	"checkout-bridge/internal/domain/ports/adapter"
	"checkout-bridge/internal/infra/metrics"
)

type RelayOutcome string

const (
	RelayDelivered RelayOutcome = "delivered"
	RelayFailed    RelayOutcome = "failed"
	RelaySkipped   RelayOutcome = "skipped" // success event without enough metadata
	RelayIgnored   RelayOutcome = "ignored" // not a payment success event
)

// SettlementUseCase forwards verified payment events to the order platform.
// Callers must verify the webhook signature before calling HandleEvent.
type SettlementUseCase interface {
	HandleEvent(ctx context.Context, ev *model.WebhookEvent) (RelayOutcome, error)
}

var _ SettlementUseCase = (*settlementUC)(nil)

type settlementUC struct {
	orders adapter.OrderPlatform
	log    *zerolog.Logger
}

func NewSettlementUseCase(orders adapter.OrderPlatform, logger *zerolog.Logger) *settlementUC {
	l := logger.With().Str("component", "SettlementUseCase").Logger()
	return &settlementUC{orders: orders, log: &l}
}

// HandleEvent returns a non-nil error only with RelayFailed. The webhook
// boundary acknowledges the sender either way.
func (u *settlementUC) HandleEvent(ctx context.Context, ev *model.WebhookEvent) (RelayOutcome, error) {
	if ev == nil || !ev.IsPaymentSucceeded() {
		typ := ""
		if ev != nil {
			typ = ev.Type
		}
		u.log.Debug().Str("type", typ).Msg("ignoring webhook event")
		metrics.IncRelay(string(RelayIgnored))
		return RelayIgnored, nil
	}

	orderID, email := ev.OrderID(), ev.UserEmail()
	log := u.log.With().Str("order_id", orderID).Str("payment_id", ev.Data.ID).Logger()

	if orderID == "" || email == "" {
		log.Warn().
			Bool("has_order_id", orderID != "").
			Bool("has_email", email != "").
			Msg("payment event missing order metadata; relay skipped")
		metrics.IncRelay(string(RelaySkipped))
		return RelaySkipped, nil
	}

	amount, err := ev.AmountMinor()
	if err != nil {
		log.Warn().Err(err).Msg("unreadable payment amount; relaying 0")
		amount = 0
	}

	start := time.Now()
	err = u.orders.UpdateOrderStatus(ctx, model.SettlementUpdate{
		OrderID:   orderID,
		UserEmail: email,
		Status:    model.OrderStatusPaid,
		PaymentID: ev.Data.ID,
		Amount:    amount,
		Currency:  ev.Data.Currency,
	})
	if err != nil {
		log.Error().
			Err(err).
			Bool("reconcile", true).
			Str("amount", model.FormatMajor(amount)).
			Dur("took", time.Since(start)).
			Msg("order platform update failed")
		metrics.IncRelay(string(RelayFailed))
		return RelayFailed, fmt.Errorf("%w: %s: %w", domain.ErrRelay, u.orders.Name(), err)
	}

	log.Info().Str("platform", u.orders.Name()).Dur("took", time.Since(start)).Msg("order marked paid")
	metrics.IncRelay(string(RelayDelivered))
	return RelayDelivered, nil
}
