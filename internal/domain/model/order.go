package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus describes checkout lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPendingPayment         OrderStatus = "PENDING_PAYMENT"
	OrderStatusAwaitingPayment        OrderStatus = "AWAITING_PAYMENT"
	OrderStatusStockReservationFailed OrderStatus = "STOCK_RESERVATION_FAILED"
	OrderStatusPaid                   OrderStatus = "PAID"
	OrderStatusPaymentFailed          OrderStatus = "PAYMENT_FAILED"
	OrderStatusExpired                OrderStatus = "EXPIRED"
	OrderStatusCancelled              OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingPayment: {
		OrderStatusAwaitingPayment,
		OrderStatusStockReservationFailed,
		OrderStatusCancelled,
	},
	OrderStatusAwaitingPayment: {
		OrderStatusPaid,
		OrderStatusPaymentFailed,
		OrderStatusExpired,
		OrderStatusCancelled,
	},
	// A failed payment may be retried after stock is reserved again.
	OrderStatusPaymentFailed: {
		OrderStatusAwaitingPayment,
		OrderStatusExpired,
		OrderStatusCancelled,
	},
}

// IsTerminal reports whether no transition may leave the status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusPaid, OrderStatusCancelled, OrderStatusExpired, OrderStatusStockReservationFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPendingPayment, OrderStatusAwaitingPayment, OrderStatusStockReservationFailed,
		OrderStatusPaid, OrderStatusPaymentFailed, OrderStatusExpired, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Order is a priced purchase created from a user's cart.
type Order struct {
	ID              uuid.UUID
	UserID          int64
	Currency        string
	SubTotal        decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal
	Status          OrderStatus
	IsStockReserved bool
	PaymentIntentID string
	PaymentAttempt  int
	ClientSecret    string
	PaymentURL      string
	ExpiresAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	IsDeleted       bool
	Items           []OrderItem
}

// OrderItem is an immutable line of an order with prices snapshotted at checkout.
type OrderItem struct {
	ID                 uuid.UUID
	OrderID            uuid.UUID
	ProductVariationID uuid.UUID
	Quantity           int
	UnitPrice          decimal.Decimal
	DiscountType       DiscountType
	DiscountValue      decimal.Decimal
	SubTotal           decimal.Decimal
	Discount           decimal.Decimal
	LineTotal          decimal.Decimal
}

// CartLine is a single checkout request line.
type CartLine struct {
	ProductVariationID uuid.UUID
	Quantity           int
}

// HasReservation reports whether the order still holds stock for its items.
func (o *Order) HasReservation() bool {
	return o.IsStockReserved && !o.Status.IsTerminal()
}
