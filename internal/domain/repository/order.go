package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/polkiloo/ordercheckout/internal/domain/model"
)

// OrderRepository serves reads and housekeeping that need no order lock.
type OrderRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Order, error)
	// SelectExpired lists orders waiting for payment whose expiry is not after now,
	// skipping orders whose sweep was deferred past now.
	SelectExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	// DeferSweep keeps the order out of SelectExpired until the given time.
	DeferSweep(ctx context.Context, id uuid.UUID, until time.Time) error
	// SoftDelete hides a terminal order owned by userID.
	SoftDelete(ctx context.Context, id uuid.UUID, userID int64) (model.Outcome, error)
}

// OrderTxRepository mutates orders inside a transaction.
type OrderTxRepository interface {
	Insert(ctx context.Context, order *model.Order) error
	// Lock loads the order with its items and holds its row lock until the transaction ends.
	Lock(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// LockByIntent locks the order that ever owned the given payment intent.
	LockByIntent(ctx context.Context, intentID string) (*model.Order, error)
	// UpdateStatus moves the order to status only when its current status is one of expected.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, expected ...model.OrderStatus) (bool, error)
	// SetStockReserved flips the reservation flag and reports whether it changed.
	SetStockReserved(ctx context.Context, id uuid.UUID, reserved bool) (bool, error)
	SetPayment(ctx context.Context, id uuid.UUID, intent model.PaymentIntent, attempt int) error
	// SetExpiry sets a new payment deadline and clears any deferred sweep.
	SetExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
}

// PaymentIntentRepository keeps the audit trail of intents created per order.
type PaymentIntentRepository interface {
	Record(ctx context.Context, record model.PaymentIntentRecord) error
	// SetStatus records the latest gateway status unless the intent already settled.
	SetStatus(ctx context.Context, intentID string, status model.IntentStatus) error
	Supersede(ctx context.Context, intentID string, at time.Time) error
}
