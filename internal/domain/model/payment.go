package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IntentStatus mirrors the status of a payment intent at the gateway.
type IntentStatus string

const (
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentProcessing            IntentStatus = "processing"
	IntentSucceeded             IntentStatus = "succeeded"
	IntentCanceled              IntentStatus = "canceled"
	IntentFailed                IntentStatus = "failed"
)

// IsPending reports whether the intent may still be paid.
func (s IntentStatus) IsPending() bool {
	switch s {
	case IntentRequiresPaymentMethod, IntentRequiresConfirmation, IntentRequiresAction, IntentProcessing:
		return true
	default:
		return false
	}
}

// IsSucceeded reports whether money was collected.
func (s IntentStatus) IsSucceeded() bool {
	return s == IntentSucceeded
}

// IsFailed reports whether the intent ended without collecting money.
func (s IntentStatus) IsFailed() bool {
	return s == IntentCanceled || s == IntentFailed
}

// IsTerminal reports whether the gateway will not change the intent anymore.
func (s IntentStatus) IsTerminal() bool {
	return s.IsSucceeded() || s.IsFailed()
}

// Valid reports whether s is a status the gateway is known to report.
func (s IntentStatus) Valid() bool {
	return s.IsPending() || s.IsTerminal()
}

// IntentRequest carries everything the gateway needs to create an intent.
type IntentRequest struct {
	AmountMinor    int64
	Currency       string
	CorrelationID  uuid.UUID
	IdempotencyKey string
}

// PaymentIntent is the gateway-side object collecting payment for one order.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	PaymentURL   string
	Status       IntentStatus
}

// PaymentIntentRecord is the audit row kept for each intent created for an order.
type PaymentIntentRecord struct {
	ID           string
	OrderID      uuid.UUID
	Attempt      int
	AmountMinor  int64
	Currency     string
	Status       IntentStatus
	CreatedAt    time.Time
	SupersededAt *time.Time
}

// RetryPaymentPayload is returned to clients re-entering the payment step.
type RetryPaymentPayload struct {
	OrderID         uuid.UUID
	IsPaymentNeeded bool
	ClientSecret    string
	PaymentURL      string
}

// OrderEventType names notifications published on order transitions.
type OrderEventType string

const (
	OrderEventPaid          OrderEventType = "order.paid"
	OrderEventPaymentFailed OrderEventType = "order.payment_failed"
	OrderEventExpired       OrderEventType = "order.expired"
)

// OrderEvent is dispatched after a transition has been committed.
type OrderEvent struct {
	Type       OrderEventType  `json:"type"`
	OrderID    uuid.UUID       `json:"order_id"`
	UserID     int64           `json:"user_id"`
	Status     OrderStatus     `json:"status"`
	Total      decimal.Decimal `json:"total"`
	Currency   string          `json:"currency"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewOrderEvent builds an event from the order state.
func NewOrderEvent(kind OrderEventType, order *Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:       kind,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		Total:      order.Total,
		Currency:   order.Currency,
		OccurredAt: at.UTC(),
	}
}
