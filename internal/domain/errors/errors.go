package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/polkiloo/ordercheckout/internal/domain/model"
)

var (
	ErrAlreadyExists      = errors.New("already exists")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrTooManyLines       = errors.New("too many cart lines")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidPrice       = errors.New("invalid unit price")
	ErrProductNotFound    = errors.New("product variation not found")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrPaymentInProgress  = errors.New("payment in progress")
)

// InvalidDiscountError rejects a discount before any side effect takes place.
type InvalidDiscountError struct {
	VariationID uuid.UUID
	Reason      string
}

func (e *InvalidDiscountError) Error() string {
	if e.VariationID == uuid.Nil {
		return "invalid discount: " + e.Reason
	}
	return fmt.Sprintf("invalid discount for variation %s: %s", e.VariationID, e.Reason)
}

// LineError attaches the offending variation to a line validation failure.
type LineError struct {
	VariationID uuid.UUID
	Err         error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("variation %s: %v", e.VariationID, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// StockShortage describes one line that could not be reserved.
type StockShortage struct {
	VariationID uuid.UUID
	Requested   int
	Available   int
}

// OutOfStockError reports every line of an order that exceeded available stock.
type OutOfStockError struct {
	OrderID uuid.UUID
	Lines   []StockShortage
}

func (e *OutOfStockError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", l.VariationID, l.Requested, l.Available))
	}
	return fmt.Sprintf("order %s: insufficient stock for %s", e.OrderID, strings.Join(parts, ", "))
}

// PaymentGatewayError wraps a failed exchange with the payment gateway.
type PaymentGatewayError struct {
	Op         string
	OrderID    uuid.UUID
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *PaymentGatewayError) Error() string {
	msg := "payment gateway " + e.Op
	if e.OrderID != uuid.Nil {
		msg += " for order " + e.OrderID.String()
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PaymentGatewayError) Unwrap() error { return e.Err }

// InvalidStateTransitionError reports a transition the state machine forbids.
type InvalidStateTransitionError struct {
	OrderID uuid.UUID
	From    model.OrderStatus
	To      model.OrderStatus
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot transition from %s to %s", e.OrderID, e.From, e.To)
}

// OrderNotFoundError reports a missing, deleted or foreign order.
type OrderNotFoundError struct {
	OrderID uuid.UUID
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("order %s not found", e.OrderID)
}

// Is makes OrderNotFoundError match ErrNotFound.
func (e *OrderNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// WithOrderID fills the order id of a gateway error raised below the lifecycle layer.
func WithOrderID(err error, orderID uuid.UUID) error {
	var gwErr *PaymentGatewayError
	if errors.As(err, &gwErr) && gwErr.OrderID == uuid.Nil {
		gwErr.OrderID = orderID
	}
	return err
}
