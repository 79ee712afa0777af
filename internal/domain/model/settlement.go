package model

type OrderStatus string

const (
	OrderStatusPaid OrderStatus = "paid"
)

// SettlementUpdate is what the order platform is told after a payment settles.
type SettlementUpdate struct {
	OrderID   string
	UserEmail string
	Status    OrderStatus
	PaymentID string
	Amount    int64 // minor units
	Currency  string
}
