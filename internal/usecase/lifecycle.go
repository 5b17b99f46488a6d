package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/polkiloo/ordercheckout/internal/config"
	domainErrors "github.com/polkiloo/ordercheckout/internal/domain/errors"
	"github.com/polkiloo/ordercheckout/internal/domain/model"
	"github.com/polkiloo/ordercheckout/internal/domain/repository"
	"github.com/polkiloo/ordercheckout/internal/metrics"
	"github.com/polkiloo/ordercheckout/internal/pricing"
)

// Clock returns the current time.
type Clock func() time.Time

// Notifier publishes committed order transitions. Delivery failures never affect the order.
type Notifier interface {
	Notify(ctx context.Context, event model.OrderEvent)
}

// LifecycleParams lists OrderLifecycle dependencies.
type LifecycleParams struct {
	fx.In

	Repositories repository.Factory
	Pricing      *pricing.Engine
	Reservations *ReservationManager
	Payments     *PaymentOrchestrator
	Notifier     Notifier
	Config       *config.Config
	Logger       *slog.Logger
	Metrics      *metrics.Metrics `optional:"true"`
	Clock        Clock            `optional:"true"`
}

// OrderLifecycle owns every order state change. Each change runs in one
// transaction holding the order row lock.
type OrderLifecycle struct {
	orders       repository.OrderRepository
	catalog      repository.CatalogRepository
	tx           repository.Transactor
	pricing      *pricing.Engine
	reservations *ReservationManager
	payments     *PaymentOrchestrator
	notifier     Notifier
	metrics      *metrics.Metrics
	logger       *slog.Logger
	currency     string
	expiry       time.Duration
	now          Clock
}

// NewOrderLifecycle constructs OrderLifecycle.
func NewOrderLifecycle(p LifecycleParams) *OrderLifecycle {
	now := p.Clock
	if now == nil {
		now = time.Now
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	currency := model.DefaultCurrency
	if p.Config.Currency != "" {
		currency = p.Config.Currency
	}
	return &OrderLifecycle{
		orders:       p.Repositories.Orders(),
		catalog:      p.Repositories.Catalog(),
		tx:           p.Repositories,
		pricing:      p.Pricing,
		reservations: p.Reservations,
		payments:     p.Payments,
		notifier:     p.Notifier,
		metrics:      p.Metrics,
		logger:       logger,
		currency:     currency,
		expiry:       p.Config.PaymentExpiry,
		now:          now,
	}
}

type transitionRecord struct {
	orderID  uuid.UUID
	from, to model.OrderStatus
}

// effects collects what must happen once a transaction has committed.
type effects struct {
	transitions []transitionRecord
	events      []model.OrderEvent
}

// Checkout prices the cart, reserves stock and opens a payment intent.
// When the gateway fails the committed order is returned along with the error.
func (l *OrderLifecycle) Checkout(ctx context.Context, userID int64, lines []model.CartLine) (*model.Order, error) {
	if err := ValidateCart(lines); err != nil {
		l.metrics.Checkout("rejected")
		return nil, err
	}

	snapshot, err := l.catalog.Snapshot(ctx, variationIDs(lines))
	if err != nil {
		return nil, fmt.Errorf("catalog snapshot: %w", err)
	}

	order, err := l.priceOrder(userID, lines, snapshot)
	if err != nil {
		l.metrics.Checkout("rejected")
		return nil, err
	}

	err = l.tx.WithinTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := l.reservations.Reserve(ctx, tx, order.ID, order.Items); err != nil {
			return err
		}
		order.Status = model.OrderStatusAwaitingPayment
		order.IsStockReserved = true
		return tx.Orders().Insert(ctx, order)
	})
	if err != nil {
		var oos *domainErrors.OutOfStockError
		if errors.As(err, &oos) {
			l.recordReservationFailure(ctx, order)
			l.metrics.Checkout("out_of_stock")
		}
		return nil, err
	}
	l.publish(ctx, &effects{transitions: []transitionRecord{
		{orderID: order.ID, from: model.OrderStatusPendingPayment, to: model.OrderStatusAwaitingPayment},
	}})

	eff := &effects{}
	var result *model.Order
	err = l.tx.WithinTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		locked, err := l.lock(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		res, err := l.payments.CreateOrRetrieveIntent(ctx, tx, locked)
		if err != nil {
			return err
		}
		if res.Succeeded {
			if err := l.markPaid(ctx, tx, locked, eff); err != nil {
				return err
			}
		}
		result = locked
		return nil
	})
	if err != nil {
		l.logger.Warn("payment step failed, order awaits retry",
			slog.String("order_id", order.ID.String()),
			slog.String("error", err.Error()),
		)
		l.metrics.Checkout("payment_pending")
		return order, domainErrors.WithOrderID(err, order.ID)
	}

	l.publish(ctx, eff)
	l.metrics.Checkout("created")
	return result, nil
}

// RetryPayment re-enters the payment step of an order owned by userID.
func (l *OrderLifecycle) RetryPayment(ctx context.Context, userID int64, orderID uuid.UUID) (model.RetryPaymentPayload, error) {
	var payload model.RetryPaymentPayload
	eff := &effects{}
	err := l.tx.WithinTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		order, err := l.lockOwned(ctx, tx, userID, orderID)
		if err != nil {
			return err
		}

		switch order.Status {
		case model.OrderStatusPaid:
			payload = model.RetryPaymentPayload{OrderID: order.ID}
			return nil
		case model.OrderStatusAwaitingPayment:
		case model.OrderStatusPaymentFailed:
			if err := l.reopen(ctx, tx, order, eff); err != nil {
				return err
			}
		default:
			return &domainErrors.InvalidStateTransitionError{
				OrderID: order.ID,
				From:    order.Status,
				To:      model.OrderStatusAwaitingPayment,
			}
		}

		p, err := l.payments.RetryPayment(ctx, tx, order)
		if err != nil {
			return err
		}
		if !p.IsPaymentNeeded {
			if err := l.markPaid(ctx, tx, order, eff); err != nil {
				return err
			}
		}
		payload = p
		return nil
	})
	if err != nil {
		return model.RetryPaymentPayload{}, err
	}
	l.publish(ctx, eff)
	return payload, nil
}

// ConfirmPayment applies a gateway status report for intentID.
// Duplicate, late and superseded reports leave the order unchanged.
func (l *OrderLifecycle) ConfirmPayment(ctx context.Context, intentID string, status model.IntentStatus) (model.Outcome, error) {
	if intentID == "" {
		return model.OutcomeNotFound, nil
	}

	outcome := model.OutcomeUnchanged
	eff := &effects{}
	err := l.tx.WithinTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		order, err := tx.Orders().LockByIntent(ctx, intentID)
		if err != nil {
			if errors.Is(err, domainErrors.ErrNotFound) {
				outcome = model.OutcomeNotFound
				return nil
			}
			return err
		}
		if err := tx.Intents().SetStatus(ctx, intentID, status); err != nil {
			return err
		}

		attrs := []any{
			slog.String("order_id", order.ID.String()),
			slog.String("intent_id", intentID),
			slog.String("intent_status", string(status)),
			slog.String("order_status", string(order.Status)),
		}
		if order.PaymentIntentID != intentID {
			l.logger.Info("ignoring report for superseded intent", attrs...)
			return nil
		}

		switch {
		case status.IsSucceeded():
			if order.Status != model.OrderStatusAwaitingPayment {
				if order.Status != model.OrderStatusPaid {
					l.logger.Error("payment collected for order not awaiting payment", attrs...)
				}
				return nil
			}
			outcome = model.OutcomeOK
			return l.markPaid(ctx, tx, order, eff)
		case status.IsFailed():
			if order.Status != model.OrderStatusAwaitingPayment {
				return nil
			}
			outcome = model.OutcomeOK
			return l.markPaymentFailed(ctx, tx, order, eff)
		}
		return nil
	})
	if err != nil {
		return model.OutcomeUnchanged, err
	}
	l.publish(ctx, eff)
	return outcome, nil
}

// Cancel releases the order's stock and closes it. Cancelling a cancelled order is a no-op.
// If the gateway reports the order paid, the order becomes PAID and an
// InvalidStateTransitionError is returned.
func (l *OrderLifecycle) Cancel(ctx context.Context, userID int64, orderID uuid.UUID) (*model.Order, error) {
	var (
		result     *model.Order
		reconciled bool
	)
	eff := &effects{}
	err := l.tx.WithinTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		order, err := l.lockOwned(ctx, tx, userID, orderID)
		if err != nil {
			return err
		}
		result = order
		if order.Status == model.OrderStatusCancelled {
			return nil
		}
		if !order.Status.CanTransitionTo(model.OrderStatusCancelled) {
			return &domainErrors.InvalidStateTransitionError{OrderID: order.ID, From: order.Status, To: model.OrderStatusCancelled}
		}

		paid, err := l.settleIntent(ctx, tx, order)
		if err != nil {
			return err
		}
		if paid {
			reconciled = true
			return l.markPaid(ctx, tx, order, eff)
		}
		if _, err := l.reservations.Release(ctx, tx, order); err != nil {
			return err
		}
		return l.transition(ctx, tx, order, model.OrderStatusCancelled, eff)
	})
	if err != nil {
		return nil, err
	}
	l.publish(ctx, eff)
	if reconciled {
		return result, &domainErrors.InvalidStateTransitionError{
			OrderID: result.ID,
			From:    model.OrderStatusPaid,
			To:      model.OrderStatusCancelled,
		}
	}
	return result, nil
}

// Expire closes an unpaid order past its deadline. Orders paid at the gateway are
// reconciled to PAID instead.
func (l *OrderLifecycle) Expire(ctx context.Context, orderID uuid.UUID) (model.Outcome, error) {
	outcome := model.OutcomeUnchanged
	eff := &effects{}
	err := l.tx.WithinTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		order, err := tx.Orders().Lock(ctx, orderID)
		if err != nil {
			if errors.Is(err, domainErrors.ErrNotFound) {
				outcome = model.OutcomeNotFound
				return nil
			}
			return err
		}
		if order.Status != model.OrderStatusAwaitingPayment && order.Status != model.OrderStatusPaymentFailed {
			return nil
		}
		if l.now().Before(order.ExpiresAt) {
			return nil
		}

		paid, err := l.settleIntent(ctx, tx, order)
		if err != nil {
			return err
		}
		outcome = model.OutcomeOK
		if paid {
			l.logger.Info("expiring order was paid at the gateway", slog.String("order_id", order.ID.String()))
			return l.markPaid(ctx, tx, order, eff)
		}
		if _, err := l.reservations.Release(ctx, tx, order); err != nil {
			return err
		}
		if err := l.transition(ctx, tx, order, model.OrderStatusExpired, eff); err != nil {
			return err
		}
		eff.events = append(eff.events, model.NewOrderEvent(model.OrderEventExpired, order, l.now()))
		return nil
	})
	if err != nil {
		return model.OutcomeUnchanged, err
	}
	l.publish(ctx, eff)
	return outcome, nil
}

// Order returns an order visible to userID.
func (l *OrderLifecycle) Order(ctx context.Context, userID int64, orderID uuid.UUID) (*model.Order, error) {
	order, err := l.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return nil, &domainErrors.OrderNotFoundError{OrderID: orderID}
		}
		return nil, err
	}
	if order.UserID != userID || order.IsDeleted {
		return nil, &domainErrors.OrderNotFoundError{OrderID: orderID}
	}
	return order, nil
}

// Orders lists the user's orders, newest first.
func (l *OrderLifecycle) Orders(ctx context.Context, userID int64) ([]model.Order, error) {
	return l.orders.ListByUser(ctx, userID)
}

// DeleteOrder hides a terminal order from its owner.
func (l *OrderLifecycle) DeleteOrder(ctx context.Context, userID int64, orderID uuid.UUID) (model.Outcome, error) {
	return l.orders.SoftDelete(ctx, orderID, userID)
}

// ExpiredOrders lists at most limit orders due for expiry.
func (l *OrderLifecycle) ExpiredOrders(ctx context.Context, limit int) ([]uuid.UUID, error) {
	return l.orders.SelectExpired(ctx, l.now(), limit)
}

// DeferExpiry keeps orderID out of ExpiredOrders for delay.
func (l *OrderLifecycle) DeferExpiry(ctx context.Context, orderID uuid.UUID, delay time.Duration) error {
	return l.orders.DeferSweep(ctx, orderID, l.now().Add(delay))
}

func (l *OrderLifecycle) priceOrder(userID int64, lines []model.CartLine, snapshot map[uuid.UUID]model.ProductVariation) (*model.Order, error) {
	now := l.now()
	order := &model.Order{
		ID:        uuid.New(),
		UserID:    userID,
		Currency:  l.currency,
		Status:    model.OrderStatusPendingPayment,
		ExpiresAt: now.Add(l.expiry),
		CreatedAt: now,
		UpdatedAt: now,
		Items:     make([]model.OrderItem, 0, len(lines)),
	}

	summaries := make([]model.PriceSummary, 0, len(lines))
	for _, line := range lines {
		variation, ok := snapshot[line.ProductVariationID]
		if !ok {
			return nil, &domainErrors.LineError{VariationID: line.ProductVariationID, Err: domainErrors.ErrProductNotFound}
		}
		summary, err := l.pricing.ComputeLine(variation.UnitPrice, variation.Discount, line.Quantity)
		if err != nil {
			var discountErr *domainErrors.InvalidDiscountError
			if errors.As(err, &discountErr) {
				discountErr.VariationID = line.ProductVariationID
				return nil, discountErr
			}
			return nil, &domainErrors.LineError{VariationID: line.ProductVariationID, Err: err}
		}
		summaries = append(summaries, summary)

		discount := variation.Discount
		if discount.Type == "" {
			discount = model.NoDiscount
		}
		order.Items = append(order.Items, model.OrderItem{
			ID:                 uuid.New(),
			OrderID:            order.ID,
			ProductVariationID: line.ProductVariationID,
			Quantity:           line.Quantity,
			UnitPrice:          summary.UnitPrice,
			DiscountType:       discount.Type,
			DiscountValue:      discount.Value,
			SubTotal:           summary.SubTotal,
			Discount:           summary.Discount,
			LineTotal:          summary.Total,
		})
	}

	totals := l.pricing.Aggregate(summaries)
	order.SubTotal = totals.SubTotal
	order.Discount = totals.Discount
	order.Total = totals.Total
	return order, nil
}

func (l *OrderLifecycle) recordReservationFailure(ctx context.Context, order *model.Order) {
	failed := *order
	failed.Status = model.OrderStatusStockReservationFailed
	failed.IsStockReserved = false
	err := l.tx.WithinTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.Orders().Insert(ctx, &failed)
	})
	if err != nil {
		l.logger.Error("failed to record stock reservation failure",
			slog.String("order_id", order.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	l.publish(ctx, &effects{transitions: []transitionRecord{
		{orderID: order.ID, from: model.OrderStatusPendingPayment, to: model.OrderStatusStockReservationFailed},
	}})
}

func (l *OrderLifecycle) lock(ctx context.Context, tx repository.Tx, orderID uuid.UUID) (*model.Order, error) {
	order, err := tx.Orders().Lock(ctx, orderID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return nil, &domainErrors.OrderNotFoundError{OrderID: orderID}
		}
		return nil, err
	}
	return order, nil
}

func (l *OrderLifecycle) lockOwned(ctx context.Context, tx repository.Tx, userID int64, orderID uuid.UUID) (*model.Order, error) {
	order, err := l.lock(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID || order.IsDeleted {
		return nil, &domainErrors.OrderNotFoundError{OrderID: orderID}
	}
	return order, nil
}

// reopen moves a failed order back to AWAITING_PAYMENT with stock held again.
func (l *OrderLifecycle) reopen(ctx context.Context, tx repository.Tx, order *model.Order, eff *effects) error {
	if err := l.reservations.Reserve(ctx, tx, order.ID, order.Items); err != nil {
		return err
	}
	if _, err := tx.Orders().SetStockReserved(ctx, order.ID, true); err != nil {
		return err
	}
	order.IsStockReserved = true
	if err := l.transition(ctx, tx, order, model.OrderStatusAwaitingPayment, eff); err != nil {
		return err
	}
	order.ExpiresAt = l.now().Add(l.expiry)
	return tx.Orders().SetExpiry(ctx, order.ID, order.ExpiresAt)
}

// settleIntent makes sure the current intent can no longer collect money and
// reports whether it already did. An intent the gateway cannot cancel yet fails
// with ErrPaymentInProgress and the order must be left as it is.
func (l *OrderLifecycle) settleIntent(ctx context.Context, tx repository.Tx, order *model.Order) (bool, error) {
	if order.Status != model.OrderStatusAwaitingPayment || order.PaymentIntentID == "" {
		return false, nil
	}
	status, err := l.payments.IntentStatus(ctx, order)
	if err == nil && status.IsPending() {
		status, err = l.payments.CancelIntent(ctx, order)
	}
	if err != nil {
		if !intentGone(err) {
			return false, err
		}
		l.logger.Warn("payment gateway no longer knows the intent",
			slog.String("order_id", order.ID.String()),
			slog.String("intent_id", order.PaymentIntentID),
		)
		status = model.IntentCanceled
	}
	if status.IsPending() {
		return false, &domainErrors.PaymentGatewayError{
			Op:      "cancel intent",
			OrderID: order.ID,
			Err:     fmt.Errorf("%w: intent %s is %s", domainErrors.ErrPaymentInProgress, order.PaymentIntentID, status),
		}
	}
	if err := tx.Intents().SetStatus(ctx, order.PaymentIntentID, status); err != nil {
		return false, err
	}
	return status.IsSucceeded(), nil
}

// intentGone reports a gateway answer saying the intent does not exist.
func intentGone(err error) bool {
	var gwErr *domainErrors.PaymentGatewayError
	return errors.As(err, &gwErr) && errors.Is(err, domainErrors.ErrNotFound)
}

func (l *OrderLifecycle) markPaid(ctx context.Context, tx repository.Tx, order *model.Order, eff *effects) error {
	if err := l.transition(ctx, tx, order, model.OrderStatusPaid, eff); err != nil {
		return err
	}
	// the sale consumes the reservation; stock is not returned
	if _, err := tx.Orders().SetStockReserved(ctx, order.ID, false); err != nil {
		return err
	}
	order.IsStockReserved = false
	eff.events = append(eff.events, model.NewOrderEvent(model.OrderEventPaid, order, l.now()))
	return nil
}

func (l *OrderLifecycle) markPaymentFailed(ctx context.Context, tx repository.Tx, order *model.Order, eff *effects) error {
	if _, err := l.reservations.Release(ctx, tx, order); err != nil {
		return err
	}
	if err := l.transition(ctx, tx, order, model.OrderStatusPaymentFailed, eff); err != nil {
		return err
	}
	eff.events = append(eff.events, model.NewOrderEvent(model.OrderEventPaymentFailed, order, l.now()))
	return nil
}

func (l *OrderLifecycle) transition(ctx context.Context, tx repository.Tx, order *model.Order, to model.OrderStatus, eff *effects) error {
	from := order.Status
	if !from.CanTransitionTo(to) {
		return &domainErrors.InvalidStateTransitionError{OrderID: order.ID, From: from, To: to}
	}
	ok, err := tx.Orders().UpdateStatus(ctx, order.ID, to, from)
	if err != nil {
		return fmt.Errorf("update status of order %s: %w", order.ID, err)
	}
	if !ok {
		return &domainErrors.InvalidStateTransitionError{OrderID: order.ID, From: from, To: to}
	}
	order.Status = to
	order.UpdatedAt = l.now()
	eff.transitions = append(eff.transitions, transitionRecord{orderID: order.ID, from: from, to: to})
	return nil
}

func (l *OrderLifecycle) publish(ctx context.Context, eff *effects) {
	for _, t := range eff.transitions {
		l.metrics.Transition(string(t.from), string(t.to))
		l.logger.Info("order transitioned",
			slog.String("order_id", t.orderID.String()),
			slog.String("from", string(t.from)),
			slog.String("to", string(t.to)),
		)
	}
	notifyCtx := context.WithoutCancel(ctx)
	for _, event := range eff.events {
		l.notifier.Notify(notifyCtx, event)
	}
}
