package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/polkiloo/ordercheckout/internal/domain/model"
)

// AuthFacade describes authentication capabilities required by handlers.
type AuthFacade interface {
	Register(ctx context.Context, login, password string) (string, error)
	Authenticate(ctx context.Context, login, password string) (string, error)
	ParseToken(token string) (int64, error)
}

// OrderFacade encapsulates order operations exposed via HTTP.
type OrderFacade interface {
	Checkout(ctx context.Context, userID int64, lines []model.CartLine) (*model.Order, error)
	Orders(ctx context.Context, userID int64) ([]model.Order, error)
	Order(ctx context.Context, userID int64, orderID uuid.UUID) (*model.Order, error)
	RetryPayment(ctx context.Context, userID int64, orderID uuid.UUID) (model.RetryPaymentPayload, error)
	Cancel(ctx context.Context, userID int64, orderID uuid.UUID) (*model.Order, error)
	DeleteOrder(ctx context.Context, userID int64, orderID uuid.UUID) (model.Outcome, error)
}

// PaymentFacade applies payment status reports from the gateway.
type PaymentFacade interface {
	ConfirmPayment(ctx context.Context, intentID string, status model.IntentStatus) (model.Outcome, error)
}

// HealthFacade reports readiness of backing services.
type HealthFacade interface {
	Health(ctx context.Context) error
}

// CheckoutFacade aggregates the full set of operations used across handlers.
type CheckoutFacade interface {
	AuthFacade
	OrderFacade
	PaymentFacade
	HealthFacade
}
