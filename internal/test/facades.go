package test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/polkiloo/ordercheckout/internal/domain/model"
)

// AuthFacadeStub provides controllable registration and login.
type AuthFacadeStub struct {
	RegisterFn     func(context.Context, string, string) (string, error)
	AuthenticateFn func(context.Context, string, string) (string, error)
	ParseFn        func(string) (int64, error)
}

// Register delegates to RegisterFn or returns a fixed token.
func (s AuthFacadeStub) Register(ctx context.Context, login, password string) (string, error) {
	if s.RegisterFn != nil {
		return s.RegisterFn(ctx, login, password)
	}
	return "token", nil
}

// Authenticate delegates to AuthenticateFn or returns a fixed token.
func (s AuthFacadeStub) Authenticate(ctx context.Context, login, password string) (string, error) {
	if s.AuthenticateFn != nil {
		return s.AuthenticateFn(ctx, login, password)
	}
	return "token", nil
}

// ParseToken resolves every token to user 1 unless ParseFn is set.
func (s AuthFacadeStub) ParseToken(token string) (int64, error) {
	if s.ParseFn != nil {
		return s.ParseFn(token)
	}
	return 1, nil
}

// OrderFacadeStub provides controllable behaviour for order endpoints.
type OrderFacadeStub struct {
	CheckoutFn     func(context.Context, int64, []model.CartLine) (*model.Order, error)
	OrdersFn       func(context.Context, int64) ([]model.Order, error)
	OrderFn        func(context.Context, int64, uuid.UUID) (*model.Order, error)
	RetryPaymentFn func(context.Context, int64, uuid.UUID) (model.RetryPaymentPayload, error)
	CancelFn       func(context.Context, int64, uuid.UUID) (*model.Order, error)
	DeleteFn       func(context.Context, int64, uuid.UUID) (model.Outcome, error)
}

// Checkout returns an awaiting order built from the lines by default.
func (s OrderFacadeStub) Checkout(ctx context.Context, userID int64, lines []model.CartLine) (*model.Order, error) {
	if s.CheckoutFn != nil {
		return s.CheckoutFn(ctx, userID, lines)
	}
	order := &model.Order{ID: uuid.New(), UserID: userID, Status: model.OrderStatusAwaitingPayment, Currency: "usd"}
	for _, l := range lines {
		order.Items = append(order.Items, model.OrderItem{ProductVariationID: l.ProductVariationID, Quantity: l.Quantity})
	}
	return order, nil
}

// Orders returns predefined orders for given user.
func (s OrderFacadeStub) Orders(ctx context.Context, userID int64) ([]model.Order, error) {
	if s.OrdersFn != nil {
		return s.OrdersFn(ctx, userID)
	}
	return []model.Order{{ID: uuid.New(), UserID: userID, Status: model.OrderStatusPaid, CreatedAt: time.Unix(0, 0)}}, nil
}

// Order returns a single order owned by userID.
func (s OrderFacadeStub) Order(ctx context.Context, userID int64, orderID uuid.UUID) (*model.Order, error) {
	if s.OrderFn != nil {
		return s.OrderFn(ctx, userID, orderID)
	}
	return &model.Order{ID: orderID, UserID: userID, Status: model.OrderStatusAwaitingPayment}, nil
}

// RetryPayment returns a payload requiring payment by default.
func (s OrderFacadeStub) RetryPayment(ctx context.Context, userID int64, orderID uuid.UUID) (model.RetryPaymentPayload, error) {
	if s.RetryPaymentFn != nil {
		return s.RetryPaymentFn(ctx, userID, orderID)
	}
	return model.RetryPaymentPayload{OrderID: orderID, IsPaymentNeeded: true, ClientSecret: "secret", PaymentURL: "https://pay.test/" + orderID.String()}, nil
}

// Cancel returns a cancelled order by default.
func (s OrderFacadeStub) Cancel(ctx context.Context, userID int64, orderID uuid.UUID) (*model.Order, error) {
	if s.CancelFn != nil {
		return s.CancelFn(ctx, userID, orderID)
	}
	return &model.Order{ID: orderID, UserID: userID, Status: model.OrderStatusCancelled}, nil
}

// DeleteOrder reports OK by default.
func (s OrderFacadeStub) DeleteOrder(ctx context.Context, userID int64, orderID uuid.UUID) (model.Outcome, error) {
	if s.DeleteFn != nil {
		return s.DeleteFn(ctx, userID, orderID)
	}
	return model.OutcomeOK, nil
}

// PaymentFacadeStub simulates webhook confirmation.
type PaymentFacadeStub struct {
	ConfirmFn func(context.Context, string, model.IntentStatus) (model.Outcome, error)
}

// ConfirmPayment delegates to ConfirmFn or reports OK.
func (s PaymentFacadeStub) ConfirmPayment(ctx context.Context, intentID string, status model.IntentStatus) (model.Outcome, error) {
	if s.ConfirmFn != nil {
		return s.ConfirmFn(ctx, intentID, status)
	}
	return model.OutcomeOK, nil
}

// HealthFacadeStub reports the configured error.
type HealthFacadeStub struct {
	Err error
}

// Health returns Err.
func (s HealthFacadeStub) Health(context.Context) error {
	return s.Err
}

// CheckoutFacadeStub aggregates every handler facade stub.
type CheckoutFacadeStub struct {
	AuthFacadeStub
	OrderFacadeStub
	PaymentFacadeStub
	HealthFacadeStub
}

// ExpireCall stores information about Expire invocations.
type ExpireCall struct {
	OrderID uuid.UUID
	Outcome model.Outcome
}

// DeferCall records a postponed expiry.
type DeferCall struct {
	OrderID uuid.UUID
	Delay   time.Duration
}

// ExpiryFacadeStub mimics sweeper interactions with the checkout facade.
type ExpiryFacadeStub struct {
	Batches       [][]uuid.UUID
	ExpiredFn     func(context.Context, int) ([]uuid.UUID, error)
	ExpireFn      func(context.Context, uuid.UUID) (model.Outcome, error)
	DeferFn       func(context.Context, uuid.UUID, time.Duration) error
	Calls         []ExpireCall
	Deferrals     []DeferCall
	mu            sync.Mutex
	selectedCount int32
}

// Lock exposes internal mutex for external synchronization.
func (s *ExpiryFacadeStub) Lock() { s.mu.Lock() }

// Unlock releases previously acquired lock.
func (s *ExpiryFacadeStub) Unlock() { s.mu.Unlock() }

// ExpiredOrders returns batches from the configured queue, then nothing.
func (s *ExpiryFacadeStub) ExpiredOrders(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if s.ExpiredFn != nil {
		return s.ExpiredFn(ctx, limit)
	}
	call := atomic.AddInt32(&s.selectedCount, 1)
	if int(call) <= len(s.Batches) {
		return s.Batches[call-1], nil
	}
	return nil, nil
}

// Expire records the call and reports OK unless ExpireFn is set.
func (s *ExpiryFacadeStub) Expire(ctx context.Context, orderID uuid.UUID) (model.Outcome, error) {
	outcome, err := model.OutcomeOK, error(nil)
	if s.ExpireFn != nil {
		outcome, err = s.ExpireFn(ctx, orderID)
	}
	if err != nil {
		return outcome, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, ExpireCall{OrderID: orderID, Outcome: outcome})
	return outcome, nil
}

// DeferExpiry records the deferral unless DeferFn fails it.
func (s *ExpiryFacadeStub) DeferExpiry(ctx context.Context, orderID uuid.UUID, delay time.Duration) error {
	if s.DeferFn != nil {
		if err := s.DeferFn(ctx, orderID, delay); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deferrals = append(s.Deferrals, DeferCall{OrderID: orderID, Delay: delay})
	return nil
}

// Deferred returns a copy of recorded deferrals.
func (s *ExpiryFacadeStub) Deferred() []DeferCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DeferCall(nil), s.Deferrals...)
}

// Expired returns a copy of recorded calls.
func (s *ExpiryFacadeStub) Expired() []ExpireCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ExpireCall(nil), s.Calls...)
}
