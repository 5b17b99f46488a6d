package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/ordercheckout/internal/domain/errors"
	"github.com/polkiloo/ordercheckout/internal/domain/model"
	"github.com/polkiloo/ordercheckout/internal/domain/repository"
)

// PaymentGateway talks to the external payment provider. Amounts are integer minor units.
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, req model.IntentRequest) (model.PaymentIntent, error)
	GetIntentStatus(ctx context.Context, intentID string) (model.IntentStatus, error)
	CancelPaymentIntent(ctx context.Context, intentID string) (model.IntentStatus, error)
}

// IntentResult describes what CreateOrRetrieveIntent did.
type IntentResult struct {
	Intent  model.PaymentIntent
	Created bool
	// Succeeded is set when the order is already paid at the gateway
	// or has nothing to pay.
	Succeeded bool
}

// PaymentOrchestrator keeps at most one live payment intent per order.
type PaymentOrchestrator struct {
	gateway PaymentGateway
	logger  *slog.Logger
	now     func() time.Time
}

// NewPaymentOrchestrator constructs PaymentOrchestrator.
func NewPaymentOrchestrator(gateway PaymentGateway, logger *slog.Logger) *PaymentOrchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentOrchestrator{gateway: gateway, logger: logger, now: time.Now}
}

// CreateOrRetrieveIntent returns the order's pending intent or creates a new one.
// The order must be locked by tx.
func (p *PaymentOrchestrator) CreateOrRetrieveIntent(ctx context.Context, tx repository.Tx, order *model.Order) (IntentResult, error) {
	amount, err := model.ToMinorUnits(order.Total, order.Currency)
	if err != nil {
		return IntentResult{}, fmt.Errorf("order %s amount: %w", order.ID, err)
	}
	if amount == 0 {
		return IntentResult{Succeeded: true}, nil
	}

	attempt := order.PaymentAttempt + 1
	if order.PaymentIntentID != "" {
		status, err := p.gateway.GetIntentStatus(ctx, order.PaymentIntentID)
		if err != nil {
			return IntentResult{}, gatewayError("get intent", order.ID, err)
		}
		current := currentIntent(order, status)
		switch {
		case status.IsSucceeded():
			return IntentResult{Intent: current, Succeeded: true}, nil
		case !status.IsFailed():
			return IntentResult{Intent: current}, nil
		}

		if err := tx.Intents().SetStatus(ctx, order.PaymentIntentID, status); err != nil {
			return IntentResult{}, err
		}
		if err := tx.Intents().Supersede(ctx, order.PaymentIntentID, p.now()); err != nil {
			return IntentResult{}, err
		}
		p.logger.Info("superseding payment intent",
			slog.String("order_id", order.ID.String()),
			slog.String("intent_id", order.PaymentIntentID),
			slog.String("intent_status", string(status)),
		)
	}

	intent, err := p.gateway.CreatePaymentIntent(ctx, model.IntentRequest{
		AmountMinor:    amount,
		Currency:       order.Currency,
		CorrelationID:  order.ID,
		IdempotencyKey: IdempotencyKey(order.ID, attempt),
	})
	if err != nil {
		return IntentResult{}, gatewayError("create intent", order.ID, err)
	}

	if err := tx.Orders().SetPayment(ctx, order.ID, intent, attempt); err != nil {
		return IntentResult{}, err
	}
	if err := tx.Intents().Record(ctx, model.PaymentIntentRecord{
		ID:          intent.ID,
		OrderID:     order.ID,
		Attempt:     attempt,
		AmountMinor: amount,
		Currency:    order.Currency,
		Status:      intent.Status,
		CreatedAt:   p.now(),
	}); err != nil {
		return IntentResult{}, err
	}

	order.PaymentIntentID = intent.ID
	order.PaymentAttempt = attempt
	order.ClientSecret = intent.ClientSecret
	order.PaymentURL = intent.PaymentURL

	return IntentResult{Intent: intent, Created: true, Succeeded: intent.Status.IsSucceeded()}, nil
}

// RetryPayment returns what the client needs to complete payment of order.
func (p *PaymentOrchestrator) RetryPayment(ctx context.Context, tx repository.Tx, order *model.Order) (model.RetryPaymentPayload, error) {
	if order.Status == model.OrderStatusPaid {
		return model.RetryPaymentPayload{OrderID: order.ID}, nil
	}
	res, err := p.CreateOrRetrieveIntent(ctx, tx, order)
	if err != nil {
		return model.RetryPaymentPayload{}, err
	}
	if res.Succeeded {
		return model.RetryPaymentPayload{OrderID: order.ID}, nil
	}
	return model.RetryPaymentPayload{
		OrderID:         order.ID,
		IsPaymentNeeded: true,
		ClientSecret:    res.Intent.ClientSecret,
		PaymentURL:      res.Intent.PaymentURL,
	}, nil
}

// IntentStatus asks the gateway for the state of the order's current intent.
func (p *PaymentOrchestrator) IntentStatus(ctx context.Context, order *model.Order) (model.IntentStatus, error) {
	status, err := p.gateway.GetIntentStatus(ctx, order.PaymentIntentID)
	if err != nil {
		return "", gatewayError("get intent", order.ID, err)
	}
	return status, nil
}

// CancelIntent stops the order's current intent from collecting money.
func (p *PaymentOrchestrator) CancelIntent(ctx context.Context, order *model.Order) (model.IntentStatus, error) {
	status, err := p.gateway.CancelPaymentIntent(ctx, order.PaymentIntentID)
	if err != nil {
		return "", gatewayError("cancel intent", order.ID, err)
	}
	return status, nil
}

// IdempotencyKey identifies one intent creation attempt of an order.
func IdempotencyKey(orderID uuid.UUID, attempt int) string {
	return fmt.Sprintf("%s:%d", orderID, attempt)
}

func currentIntent(order *model.Order, status model.IntentStatus) model.PaymentIntent {
	return model.PaymentIntent{
		ID:           order.PaymentIntentID,
		ClientSecret: order.ClientSecret,
		PaymentURL:   order.PaymentURL,
		Status:       status,
	}
}

func gatewayError(op string, orderID uuid.UUID, err error) error {
	var gwErr *domainErrors.PaymentGatewayError
	if errors.As(err, &gwErr) {
		return domainErrors.WithOrderID(err, orderID)
	}
	return &domainErrors.PaymentGatewayError{Op: op, OrderID: orderID, Err: err}
}
