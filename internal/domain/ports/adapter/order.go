package adapter

import (
	"context"

	"checkout-bridge/internal/domain/model"
)

// OrderPlatform is the hex port for the order/CRM system of record.
type OrderPlatform interface {
	Name() string
	UpdateOrderStatus(ctx context.Context, u model.SettlementUpdate) error
}
