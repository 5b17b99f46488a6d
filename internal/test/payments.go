package test

import (
	"context"
	"fmt"
	"sync"

	domainErrors "github.com/polkiloo/ordercheckout/internal/domain/errors"
	"github.com/polkiloo/ordercheckout/internal/domain/model"
)

// GatewayStub is an in-memory payment gateway honouring idempotency keys.
type GatewayStub struct {
	CreateFn func(context.Context, model.IntentRequest) (model.PaymentIntent, error)
	StatusFn func(context.Context, string) (model.IntentStatus, error)
	CancelFn func(context.Context, string) (model.IntentStatus, error)

	mu       sync.Mutex
	intents  map[string]model.PaymentIntent
	byKey    map[string]string
	requests []model.IntentRequest
	next     int

	StatusCalls int
	CancelCalls int
}

// NewGatewayStub constructs an empty gateway.
func NewGatewayStub() *GatewayStub {
	return &GatewayStub{intents: make(map[string]model.PaymentIntent), byKey: make(map[string]string)}
}

// CreatePaymentIntent returns the intent already created for the idempotency key or a new one.
func (g *GatewayStub) CreatePaymentIntent(ctx context.Context, req model.IntentRequest) (model.PaymentIntent, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	if g.CreateFn != nil {
		return g.CreateFn(ctx, req)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.byKey[req.IdempotencyKey]; ok {
		return g.intents[id], nil
	}
	g.next++
	id := fmt.Sprintf("pi_%d", g.next)
	intent := model.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		PaymentURL:   "https://pay.example.test/" + id,
		Status:       model.IntentRequiresPaymentMethod,
	}
	g.intents[id] = intent
	g.byKey[req.IdempotencyKey] = id
	return intent, nil
}

// GetIntentStatus reports the stored intent status.
func (g *GatewayStub) GetIntentStatus(ctx context.Context, intentID string) (model.IntentStatus, error) {
	g.mu.Lock()
	g.StatusCalls++
	g.mu.Unlock()
	if g.StatusFn != nil {
		return g.StatusFn(ctx, intentID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[intentID]
	if !ok {
		return "", &domainErrors.PaymentGatewayError{Op: "get intent", StatusCode: 404, Err: domainErrors.ErrNotFound}
	}
	return intent.Status, nil
}

// CancelPaymentIntent cancels a pending intent.
func (g *GatewayStub) CancelPaymentIntent(ctx context.Context, intentID string) (model.IntentStatus, error) {
	g.mu.Lock()
	g.CancelCalls++
	g.mu.Unlock()
	if g.CancelFn != nil {
		return g.CancelFn(ctx, intentID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[intentID]
	if !ok {
		return "", &domainErrors.PaymentGatewayError{Op: "cancel intent", StatusCode: 404, Err: domainErrors.ErrNotFound}
	}
	if intent.Status.IsPending() {
		intent.Status = model.IntentCanceled
		g.intents[intentID] = intent
	}
	return intent.Status, nil
}

// SetStatus changes an intent as if the customer acted on it.
func (g *GatewayStub) SetStatus(intentID string, status model.IntentStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent := g.intents[intentID]
	intent.ID = intentID
	intent.Status = status
	g.intents[intentID] = intent
}

// Requests returns every create request received.
func (g *GatewayStub) Requests() []model.IntentRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]model.IntentRequest(nil), g.requests...)
}

// IntentCount returns the number of distinct intents created.
func (g *GatewayStub) IntentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.intents)
}

// NotifierStub records dispatched order events.
type NotifierStub struct {
	mu     sync.Mutex
	events []model.OrderEvent
}

// Notify stores the event.
func (n *NotifierStub) Notify(ctx context.Context, event model.OrderEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

// Events returns the recorded events in dispatch order.
func (n *NotifierStub) Events() []model.OrderEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.OrderEvent(nil), n.events...)
}
