package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/polkiloo/ordercheckout/internal/domain/model"
	"github.com/polkiloo/ordercheckout/internal/usecase"
)

// HealthChecker reports whether backing infrastructure is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CheckoutFacade is the single entry point used by HTTP handlers and the expiry sweeper.
type CheckoutFacade struct {
	auth      *usecase.AuthUseCase
	lifecycle *usecase.OrderLifecycle
	health    HealthChecker
}

func NewCheckoutFacade(auth *usecase.AuthUseCase, lifecycle *usecase.OrderLifecycle, health HealthChecker) *CheckoutFacade {
	return &CheckoutFacade{auth: auth, lifecycle: lifecycle, health: health}
}

func (f *CheckoutFacade) Register(ctx context.Context, login, password string) (string, error) {
	session, err := f.auth.Register(ctx, login, password)
	if err != nil {
		return "", err
	}
	return session.Token, nil
}

func (f *CheckoutFacade) Authenticate(ctx context.Context, login, password string) (string, error) {
	session, err := f.auth.Authenticate(ctx, login, password)
	if err != nil {
		return "", err
	}
	return session.Token, nil
}

func (f *CheckoutFacade) ParseToken(token string) (int64, error) {
	return f.auth.ParseToken(token)
}

func (f *CheckoutFacade) Checkout(ctx context.Context, userID int64, lines []model.CartLine) (*model.Order, error) {
	return f.lifecycle.Checkout(ctx, userID, lines)
}

func (f *CheckoutFacade) Orders(ctx context.Context, userID int64) ([]model.Order, error) {
	return f.lifecycle.Orders(ctx, userID)
}

func (f *CheckoutFacade) Order(ctx context.Context, userID int64, orderID uuid.UUID) (*model.Order, error) {
	return f.lifecycle.Order(ctx, userID, orderID)
}

func (f *CheckoutFacade) RetryPayment(ctx context.Context, userID int64, orderID uuid.UUID) (model.RetryPaymentPayload, error) {
	return f.lifecycle.RetryPayment(ctx, userID, orderID)
}

func (f *CheckoutFacade) Cancel(ctx context.Context, userID int64, orderID uuid.UUID) (*model.Order, error) {
	return f.lifecycle.Cancel(ctx, userID, orderID)
}

func (f *CheckoutFacade) DeleteOrder(ctx context.Context, userID int64, orderID uuid.UUID) (model.Outcome, error) {
	return f.lifecycle.DeleteOrder(ctx, userID, orderID)
}

func (f *CheckoutFacade) ConfirmPayment(ctx context.Context, intentID string, status model.IntentStatus) (model.Outcome, error) {
	return f.lifecycle.ConfirmPayment(ctx, intentID, status)
}

func (f *CheckoutFacade) ExpiredOrders(ctx context.Context, limit int) ([]uuid.UUID, error) {
	return f.lifecycle.ExpiredOrders(ctx, limit)
}

// DeferExpiry postpones the next expiry attempt of an order.
func (f *CheckoutFacade) DeferExpiry(ctx context.Context, orderID uuid.UUID, delay time.Duration) error {
	return f.lifecycle.DeferExpiry(ctx, orderID, delay)
}

func (f *CheckoutFacade) Expire(ctx context.Context, orderID uuid.UUID) (model.Outcome, error) {
	return f.lifecycle.Expire(ctx, orderID)
}

// Health succeeds when no checker is configured.
func (f *CheckoutFacade) Health(ctx context.Context) error {
	if f.health == nil {
		return nil
	}
	return f.health.HealthCheck(ctx)
}
