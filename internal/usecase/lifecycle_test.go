package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/polkiloo/ordercheckout/internal/config"
	domainErrors "github.com/polkiloo/ordercheckout/internal/domain/errors"
	"github.com/polkiloo/ordercheckout/internal/domain/model"
	"github.com/polkiloo/ordercheckout/internal/metrics"
	"github.com/polkiloo/ordercheckout/internal/pricing"
	testhelpers "github.com/polkiloo/ordercheckout/internal/test"
)

const testUser int64 = 7

type harness struct {
	store     *testhelpers.MemoryStore
	gateway   *testhelpers.GatewayStub
	notifier  *testhelpers.NotifierStub
	lifecycle *OrderLifecycle

	mu  sync.Mutex
	now time.Time
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    testhelpers.NewMemoryStore(),
		gateway:  testhelpers.NewGatewayStub(),
		notifier: &testhelpers.NotifierStub{},
		now:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	logger := discardLogger()
	h.lifecycle = NewOrderLifecycle(LifecycleParams{
		Repositories: h.store,
		Pricing:      pricing.NewEngine(pricing.PolicyReject, "usd"),
		Reservations: NewReservationManager(logger),
		Payments:     NewPaymentOrchestrator(h.gateway, logger),
		Notifier:     h.notifier,
		Config:       &config.Config{Currency: "usd", PaymentExpiry: 30 * time.Minute},
		Logger:       logger,
		Metrics:      metrics.New(),
		Clock:        h.clock,
	})
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

func (h *harness) addVariation(price string, discount model.Discount, available int) uuid.UUID {
	id := uuid.New()
	h.store.AddVariation(model.ProductVariation{
		ID:        id,
		SKU:       "SKU-" + id.String()[:8],
		UnitPrice: decimal.RequireFromString(price),
		Discount:  discount,
		Available: available,
	})
	return id
}

func (h *harness) checkout(t *testing.T, lines ...model.CartLine) *model.Order {
	t.Helper()
	order, err := h.lifecycle.Checkout(context.Background(), testUser, lines)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	return order
}

func (h *harness) stored(t *testing.T, id uuid.UUID) *model.Order {
	t.Helper()
	order := h.store.Order(id)
	if order == nil {
		t.Fatalf("order %s not stored", id)
	}
	return order
}

func (h *harness) eventTypes() []model.OrderEventType {
	var out []model.OrderEventType
	for _, e := range h.notifier.Events() {
		out = append(out, e.Type)
	}
	return out
}

func line(id uuid.UUID, qty int) model.CartLine {
	return model.CartLine{ProductVariationID: id, Quantity: qty}
}

func tenPercent() model.Discount {
	return model.Discount{Type: model.DiscountPercentage, Value: decimal.NewFromInt(10)}
}

func TestCheckoutTenPercentScenario(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("10.00", tenPercent(), 5)

	order := h.checkout(t, line(variation, 3))

	if order.Status != model.OrderStatusAwaitingPayment || !order.IsStockReserved {
		t.Fatalf("unexpected order state %s reserved=%v", order.Status, order.IsStockReserved)
	}
	if !order.Total.Equal(decimal.RequireFromString("27.00")) || !order.Discount.Equal(decimal.RequireFromString("3.00")) {
		t.Fatalf("unexpected totals %s / %s", order.Total, order.Discount)
	}
	if order.ClientSecret == "" || order.PaymentURL == "" || order.PaymentAttempt != 1 {
		t.Fatalf("payment details missing: %+v", order)
	}
	if len(order.Items) != 1 || !order.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")) || order.Items[0].DiscountType != model.DiscountPercentage {
		t.Fatalf("unexpected items %+v", order.Items)
	}
	if !order.ExpiresAt.Equal(h.clock().Add(30 * time.Minute)) {
		t.Fatalf("unexpected expiry %s", order.ExpiresAt)
	}

	reqs := h.gateway.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one intent request, got %d", len(reqs))
	}
	want := model.IntentRequest{AmountMinor: 2700, Currency: "usd", CorrelationID: order.ID, IdempotencyKey: order.ID.String() + ":1"}
	if reqs[0] != want {
		t.Fatalf("unexpected intent request %+v", reqs[0])
	}

	if got := h.store.Available(variation); got != 2 {
		t.Fatalf("expected 2 units left, got %d", got)
	}
	rec, ok := h.store.Intent(order.PaymentIntentID)
	if !ok || rec.OrderID != order.ID || rec.AmountMinor != 2700 || rec.Attempt != 1 {
		t.Fatalf("intent not recorded: %+v", rec)
	}
}

func TestCheckoutRejectsBeforeSideEffects(t *testing.T) {
	h := newHarness(t)
	plain := h.addVariation("5.00", model.NoDiscount, 10)
	overDiscounted := h.addVariation("5.00", model.Discount{Type: model.DiscountFixedAmount, Value: decimal.NewFromInt(11)}, 10)

	_, err := h.lifecycle.Checkout(context.Background(), testUser, []model.CartLine{line(plain, 1), line(overDiscounted, 2)})
	var discountErr *domainErrors.InvalidDiscountError
	if !errors.As(err, &discountErr) || discountErr.VariationID != overDiscounted {
		t.Fatalf("expected InvalidDiscountError naming the line, got %v", err)
	}

	missing := uuid.New()
	_, err = h.lifecycle.Checkout(context.Background(), testUser, []model.CartLine{line(missing, 1)})
	var lineErr *domainErrors.LineError
	if !errors.As(err, &lineErr) || lineErr.VariationID != missing || !errors.Is(err, domainErrors.ErrProductNotFound) {
		t.Fatalf("expected unknown product error, got %v", err)
	}

	if _, err := h.lifecycle.Checkout(context.Background(), testUser, nil); !errors.Is(err, domainErrors.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if _, err := h.lifecycle.Checkout(context.Background(), testUser, []model.CartLine{line(plain, 0)}); !errors.Is(err, domainErrors.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}

	if n := len(h.store.AllOrders()); n != 0 {
		t.Fatalf("expected no orders, got %d", n)
	}
	if h.store.Available(plain) != 10 || h.store.Available(overDiscounted) != 10 {
		t.Fatal("stock must be untouched")
	}
	if len(h.gateway.Requests()) != 0 {
		t.Fatal("gateway must not be called")
	}
}

func TestCheckoutOutOfStockIsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	plenty := h.addVariation("1.00", model.NoDiscount, 5)
	scarce := h.addVariation("2.00", model.NoDiscount, 1)

	_, err := h.lifecycle.Checkout(context.Background(), testUser, []model.CartLine{line(plenty, 2), line(scarce, 2), line(scarce, 1)})
	var oos *domainErrors.OutOfStockError
	if !errors.As(err, &oos) {
		t.Fatalf("expected OutOfStockError, got %v", err)
	}
	if len(oos.Lines) != 1 || oos.Lines[0] != (domainErrors.StockShortage{VariationID: scarce, Requested: 3, Available: 1}) {
		t.Fatalf("unexpected shortages %+v", oos.Lines)
	}
	if h.store.Available(plenty) != 5 || h.store.Available(scarce) != 1 {
		t.Fatal("reservation must be all-or-nothing")
	}

	orders := h.store.AllOrders()
	if len(orders) != 1 || orders[0].ID != oos.OrderID {
		t.Fatalf("expected one audit order, got %+v", orders)
	}
	if orders[0].Status != model.OrderStatusStockReservationFailed || orders[0].IsStockReserved {
		t.Fatalf("unexpected audit order state %s", orders[0].Status)
	}
	if len(h.gateway.Requests()) != 0 {
		t.Fatal("gateway must not be called")
	}
}

func TestCheckoutLastUnitRace(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("3.00", model.NoDiscount, 1)

	const buyers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		short     int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.lifecycle.Checkout(context.Background(), testUser, []model.CartLine{line(variation, 1)})
			mu.Lock()
			defer mu.Unlock()
			var oos *domainErrors.OutOfStockError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &oos):
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || short != buyers-1 {
		t.Fatalf("expected exactly one winner, got %d winners and %d out of stock", succeeded, short)
	}
	if h.store.Available(variation) != 0 {
		t.Fatalf("stock must never go negative, got %d", h.store.Available(variation))
	}
}

func TestCheckoutGatewayFailureKeepsOrderRetryable(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("4.00", model.NoDiscount, 3)
	h.gateway.CreateFn = func(context.Context, model.IntentRequest) (model.PaymentIntent, error) {
		return model.PaymentIntent{}, &domainErrors.PaymentGatewayError{Op: "create intent", StatusCode: 503}
	}

	order, err := h.lifecycle.Checkout(context.Background(), testUser, []model.CartLine{line(variation, 2)})
	var gwErr *domainErrors.PaymentGatewayError
	if !errors.As(err, &gwErr) || gwErr.OrderID == uuid.Nil {
		t.Fatalf("expected PaymentGatewayError with order id, got %v", err)
	}
	if order == nil || order.ID != gwErr.OrderID {
		t.Fatalf("expected committed order along with the error, got %+v", order)
	}
	stored := h.stored(t, order.ID)
	if stored.Status != model.OrderStatusAwaitingPayment || !stored.IsStockReserved || stored.PaymentIntentID != "" {
		t.Fatalf("unexpected stored order %+v", stored)
	}
	if h.store.Available(variation) != 1 {
		t.Fatal("stock must stay reserved")
	}

	h.gateway.CreateFn = nil
	payload, err := h.lifecycle.RetryPayment(context.Background(), testUser, order.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !payload.IsPaymentNeeded || payload.ClientSecret == "" || payload.OrderID != order.ID {
		t.Fatalf("unexpected payload %+v", payload)
	}
	for _, req := range h.gateway.Requests() {
		if req.IdempotencyKey != order.ID.String()+":1" {
			t.Fatalf("retry after a failed create must reuse the key, got %s", req.IdempotencyKey)
		}
	}
}

func TestRetryPaymentIsIdempotent(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("4.00", model.NoDiscount, 3)
	order := h.checkout(t, line(variation, 1))

	first, err := h.lifecycle.RetryPayment(context.Background(), testUser, order.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	second, err := h.lifecycle.RetryPayment(context.Background(), testUser, order.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if first != second || first.ClientSecret != order.ClientSecret {
		t.Fatalf("retries must return the same intent: %+v %+v", first, second)
	}
	if h.gateway.IntentCount() != 1 || len(h.gateway.Requests()) != 1 {
		t.Fatalf("expected a single intent, got %d", h.gateway.IntentCount())
	}
}

func TestRetryPaymentAfterLostCreateResponse(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("4.00", model.NoDiscount, 3)
	lost := true
	h.gateway.CreateFn = func(ctx context.Context, req model.IntentRequest) (model.PaymentIntent, error) {
		h.gateway.CreateFn = nil
		intent, err := h.gateway.CreatePaymentIntent(ctx, req)
		if lost {
			lost = false
			return model.PaymentIntent{}, &domainErrors.PaymentGatewayError{Op: "create intent", Err: context.DeadlineExceeded}
		}
		return intent, err
	}

	order, err := h.lifecycle.Checkout(context.Background(), testUser, []model.CartLine{line(variation, 1)})
	if err == nil {
		t.Fatal("expected gateway error")
	}
	payload, err := h.lifecycle.RetryPayment(context.Background(), testUser, order.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if h.gateway.IntentCount() != 1 {
		t.Fatalf("lost response must not create a second intent, got %d", h.gateway.IntentCount())
	}
	if payload.ClientSecret != "pi_1_secret" {
		t.Fatalf("unexpected client secret %q", payload.ClientSecret)
	}
}

func TestRetryPaymentReconcilesSucceededIntent(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("4.00", model.NoDiscount, 3)
	order := h.checkout(t, line(variation, 1))
	h.gateway.SetStatus(order.PaymentIntentID, model.IntentSucceeded)

	payload, err := h.lifecycle.RetryPayment(context.Background(), testUser, order.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if payload.IsPaymentNeeded {
		t.Fatal("paid order needs no payment")
	}
	if stored := h.stored(t, order.ID); stored.Status != model.OrderStatusPaid {
		t.Fatalf("expected PAID, got %s", stored.Status)
	}

	requests := len(h.gateway.Requests())
	payload, err = h.lifecycle.RetryPayment(context.Background(), testUser, order.ID)
	if err != nil || payload.IsPaymentNeeded {
		t.Fatalf("expected no payment needed, got %+v, %v", payload, err)
	}
	if len(h.gateway.Requests()) != requests {
		t.Fatal("paid order must not reach the gateway")
	}
	if types := h.eventTypes(); len(types) != 1 || types[0] != model.OrderEventPaid {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestRetryPaymentAfterFailedPayment(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("4.00", model.NoDiscount, 3)
	order := h.checkout(t, line(variation, 2))
	firstIntent := order.PaymentIntentID

	h.gateway.SetStatus(firstIntent, model.IntentFailed)
	outcome, err := h.lifecycle.ConfirmPayment(context.Background(), firstIntent, model.IntentFailed)
	if err != nil || outcome != model.OutcomeOK {
		t.Fatalf("expected OK, got %s, %v", outcome, err)
	}
	stored := h.stored(t, order.ID)
	if stored.Status != model.OrderStatusPaymentFailed || stored.IsStockReserved {
		t.Fatalf("unexpected state after failure %+v", stored)
	}
	if h.store.Available(variation) != 3 {
		t.Fatal("failed payment must release stock")
	}

	h.advance(10 * time.Minute)
	payload, err := h.lifecycle.RetryPayment(context.Background(), testUser, order.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	stored = h.stored(t, order.ID)
	if !payload.IsPaymentNeeded || stored.PaymentIntentID == firstIntent || stored.PaymentAttempt != 2 {
		t.Fatalf("expected a fresh intent, got %+v", stored)
	}
	if stored.Status != model.OrderStatusAwaitingPayment || !stored.IsStockReserved || h.store.Available(variation) != 1 {
		t.Fatalf("retry must re-reserve stock: %+v", stored)
	}
	if !stored.ExpiresAt.Equal(h.clock().Add(30 * time.Minute)) {
		t.Fatalf("retry must extend the deadline, got %s", stored.ExpiresAt)
	}
	if rec, _ := h.store.Intent(firstIntent); rec.SupersededAt == nil {
		t.Fatal("old intent must be superseded")
	}
	reqs := h.gateway.Requests()
	if reqs[len(reqs)-1].IdempotencyKey != order.ID.String()+":2" {
		t.Fatalf("unexpected idempotency key %s", reqs[len(reqs)-1].IdempotencyKey)
	}

	if outcome, _ := h.lifecycle.ConfirmPayment(context.Background(), firstIntent, model.IntentSucceeded); outcome != model.OutcomeUnchanged {
		t.Fatalf("superseded intent must not change the order, got %s", outcome)
	}
	if outcome, _ := h.lifecycle.ConfirmPayment(context.Background(), stored.PaymentIntentID, model.IntentSucceeded); outcome != model.OutcomeOK {
		t.Fatalf("current intent must pay the order, got %s", outcome)
	}
	if h.stored(t, order.ID).Status != model.OrderStatusPaid {
		t.Fatal("expected PAID")
	}
}

func TestRetryPaymentAfterFailureWithoutStock(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("4.00", model.NoDiscount, 1)
	order := h.checkout(t, line(variation, 1))
	h.gateway.SetStatus(order.PaymentIntentID, model.IntentFailed)
	if _, err := h.lifecycle.ConfirmPayment(context.Background(), order.PaymentIntentID, model.IntentFailed); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	h.checkout(t, line(variation, 1))

	_, err := h.lifecycle.RetryPayment(context.Background(), testUser, order.ID)
	var oos *domainErrors.OutOfStockError
	if !errors.As(err, &oos) {
		t.Fatalf("expected OutOfStockError, got %v", err)
	}
	if stored := h.stored(t, order.ID); stored.Status != model.OrderStatusPaymentFailed || stored.IsStockReserved {
		t.Fatalf("order must stay PAYMENT_FAILED, got %+v", stored)
	}
}

func TestRetryPaymentRejectsClosedAndForeignOrders(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("4.00", model.NoDiscount, 3)
	order := h.checkout(t, line(variation, 1))

	if _, err := h.lifecycle.RetryPayment(context.Background(), testUser+1, order.ID); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("foreign order must look absent, got %v", err)
	}
	var notFound *domainErrors.OrderNotFoundError
	if _, err := h.lifecycle.RetryPayment(context.Background(), testUser, uuid.New()); !errors.As(err, &notFound) {
		t.Fatalf("expected OrderNotFoundError, got %v", err)
	}

	if _, err := h.lifecycle.Cancel(context.Background(), testUser, order.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	var transitionErr *domainErrors.InvalidStateTransitionError
	if _, err := h.lifecycle.RetryPayment(context.Background(), testUser, order.ID); !errors.As(err, &transitionErr) {
		t.Fatalf("expected InvalidStateTransitionError, got %v", err)
	}
	if transitionErr.From != model.OrderStatusCancelled {
		t.Fatalf("unexpected transition error %v", transitionErr)
	}
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("4.00", model.NoDiscount, 3)
	order := h.checkout(t, line(variation, 2))

	cases := []struct {
		intent string
		status model.IntentStatus
		want   model.Outcome
	}{
		{intent: order.PaymentIntentID, status: model.IntentProcessing, want: model.OutcomeUnchanged},
		{intent: order.PaymentIntentID, status: model.IntentSucceeded, want: model.OutcomeOK},
		{intent: order.PaymentIntentID, status: model.IntentSucceeded, want: model.OutcomeUnchanged},
		{intent: order.PaymentIntentID, status: model.IntentFailed, want: model.OutcomeUnchanged},
		{intent: "pi_unknown", status: model.IntentSucceeded, want: model.OutcomeNotFound},
		{intent: "", status: model.IntentSucceeded, want: model.OutcomeNotFound},
	}
	for _, tc := range cases {
		outcome, err := h.lifecycle.ConfirmPayment(context.Background(), tc.intent, tc.status)
		if err != nil {
			t.Fatalf("confirm %s/%s failed: %v", tc.intent, tc.status, err)
		}
		if outcome != tc.want {
			t.Fatalf("confirm %s/%s: expected %s, got %s", tc.intent, tc.status, tc.want, outcome)
		}
	}

	stored := h.stored(t, order.ID)
	if stored.Status != model.OrderStatusPaid || stored.IsStockReserved {
		t.Fatalf("unexpected paid order %+v", stored)
	}
	if h.store.Available(variation) != 1 {
		t.Fatal("payment consumes the reservation")
	}
	if types := h.eventTypes(); len(types) != 1 || types[0] != model.OrderEventPaid {
		t.Fatalf("expected a single paid event, got %v", types)
	}
	if rec, _ := h.store.Intent(order.PaymentIntentID); rec.Status != model.IntentSucceeded {
		t.Fatalf("late reports must not rewrite a settled intent, got %s", rec.Status)
	}
}

func TestConfirmPaymentStorageFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("4.00", model.NoDiscount, 3)
	order := h.checkout(t, line(variation, 2))

	h.store.Fail["Increment"] = errors.New("disk full")
	if _, err := h.lifecycle.ConfirmPayment(context.Background(), order.PaymentIntentID, model.IntentFailed); err == nil {
		t.Fatal("expected storage error")
	}
	stored := h.stored(t, order.ID)
	if stored.Status != model.OrderStatusAwaitingPayment || !stored.IsStockReserved {
		t.Fatalf("failed confirmation must leave the order untouched: %+v", stored)
	}
	if len(h.notifier.Events()) != 0 {
		t.Fatal("no event may be sent for a rolled back transition")
	}

	delete(h.store.Fail, "Increment")
	if outcome, err := h.lifecycle.ConfirmPayment(context.Background(), order.PaymentIntentID, model.IntentFailed); err != nil || outcome != model.OutcomeOK {
		t.Fatalf("redelivery must apply, got %s, %v", outcome, err)
	}
	if h.store.Available(variation) != 3 {
		t.Fatal("stock must be released exactly once")
	}
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("4.00", model.NoDiscount, 3)
	order := h.checkout(t, line(variation, 2))

	cancelled, err := h.lifecycle.Cancel(context.Background(), testUser, order.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != model.OrderStatusCancelled || h.store.Available(variation) != 3 {
		t.Fatalf("cancel must release stock, got %s / %d", cancelled.Status, h.store.Available(variation))
	}
	if h.gateway.CancelCalls != 1 {
		t.Fatalf("pending intent must be cancelled at the gateway, got %d calls", h.gateway.CancelCalls)
	}

	again, err := h.lifecycle.Cancel(context.Background(), testUser, order.ID)
	if err != nil || again.Status != model.OrderStatusCancelled {
		t.Fatalf("repeated cancel must be a no-op, got %v", err)
	}
	if h.store.Available(variation) != 3 {
		t.Fatal("repeated cancel must not return stock twice")
	}
}

func TestCancelReconcilesPaidIntent(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("4.00", model.NoDiscount, 3)
	order := h.checkout(t, line(variation, 1))
	h.gateway.SetStatus(order.PaymentIntentID, model.IntentSucceeded)

	_, err := h.lifecycle.Cancel(context.Background(), testUser, order.ID)
	var transitionErr *domainErrors.InvalidStateTransitionError
	if !errors.As(err, &transitionErr) || transitionErr.From != model.OrderStatusPaid {
		t.Fatalf("expected PAID -> CANCELLED rejection, got %v", err)
	}
	if h.stored(t, order.ID).Status != model.OrderStatusPaid || h.store.Available(variation) != 2 {
		t.Fatal("order paid at the gateway must become PAID")
	}

	if _, err := h.lifecycle.Cancel(context.Background(), testUser, order.ID); !errors.As(err, &transitionErr) {
		t.Fatalf("cancel of a paid order must fail, got %v", err)
	}
}

func TestCancelGatewayFailureKeepsOrder(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("4.00", model.NoDiscount, 3)
	order := h.checkout(t, line(variation, 1))
	h.gateway.StatusFn = func(context.Context, string) (model.IntentStatus, error) {
		return "", errors.New("connection reset")
	}

	_, err := h.lifecycle.Cancel(context.Background(), testUser, order.ID)
	var gwErr *domainErrors.PaymentGatewayError
	if !errors.As(err, &gwErr) || gwErr.OrderID != order.ID {
		t.Fatalf("expected PaymentGatewayError for the order, got %v", err)
	}
	if stored := h.stored(t, order.ID); stored.Status != model.OrderStatusAwaitingPayment || !stored.IsStockReserved {
		t.Fatalf("order must stay untouched, got %+v", stored)
	}
}

func TestExpireScenario(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("4.00", model.NoDiscount, 3)
	order := h.checkout(t, line(variation, 2))

	if outcome, err := h.lifecycle.Expire(context.Background(), order.ID); err != nil || outcome != model.OutcomeUnchanged {
		t.Fatalf("order before deadline must be unchanged, got %s, %v", outcome, err)
	}
	if ids, _ := h.lifecycle.ExpiredOrders(context.Background(), 10); len(ids) != 0 {
		t.Fatalf("nothing is due yet, got %v", ids)
	}

	h.advance(31 * time.Minute)
	ids, err := h.lifecycle.ExpiredOrders(context.Background(), 10)
	if err != nil || len(ids) != 1 || ids[0] != order.ID {
		t.Fatalf("expected the order to be due, got %v, %v", ids, err)
	}

	outcome, err := h.lifecycle.Expire(context.Background(), order.ID)
	if err != nil || outcome != model.OutcomeOK {
		t.Fatalf("expected OK, got %s, %v", outcome, err)
	}
	stored := h.stored(t, order.ID)
	if stored.Status != model.OrderStatusExpired || stored.IsStockReserved || h.store.Available(variation) != 3 {
		t.Fatalf("expiry must release stock, got %+v", stored)
	}
	if status, _ := h.gateway.GetIntentStatus(context.Background(), order.PaymentIntentID); status != model.IntentCanceled {
		t.Fatalf("expired order intent must be cancelled, got %s", status)
	}
	if types := h.eventTypes(); len(types) != 1 || types[0] != model.OrderEventExpired {
		t.Fatalf("unexpected events %v", types)
	}

	if outcome, _ := h.lifecycle.Expire(context.Background(), order.ID); outcome != model.OutcomeUnchanged {
		t.Fatalf("second expiry must be unchanged, got %s", outcome)
	}
	if outcome, _ := h.lifecycle.Expire(context.Background(), uuid.New()); outcome != model.OutcomeNotFound {
		t.Fatalf("unknown order must be not found, got %s", outcome)
	}
}

func TestExpireReconcilesPaidIntent(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("4.00", model.NoDiscount, 3)
	order := h.checkout(t, line(variation, 1))
	h.gateway.SetStatus(order.PaymentIntentID, model.IntentSucceeded)
	h.advance(time.Hour)

	if outcome, err := h.lifecycle.Expire(context.Background(), order.ID); err != nil || outcome != model.OutcomeOK {
		t.Fatalf("expected OK, got %s, %v", outcome, err)
	}
	if h.stored(t, order.ID).Status != model.OrderStatusPaid || h.store.Available(variation) != 2 {
		t.Fatal("paid order must not expire")
	}
}

func TestExpirePaymentFailedOrder(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("4.00", model.NoDiscount, 3)
	order := h.checkout(t, line(variation, 1))
	if _, err := h.lifecycle.ConfirmPayment(context.Background(), order.PaymentIntentID, model.IntentFailed); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	statusCalls := h.gateway.StatusCalls
	h.advance(time.Hour)

	if outcome, err := h.lifecycle.Expire(context.Background(), order.ID); err != nil || outcome != model.OutcomeOK {
		t.Fatalf("expected OK, got %s, %v", outcome, err)
	}
	if h.stored(t, order.ID).Status != model.OrderStatusExpired || h.store.Available(variation) != 3 {
		t.Fatal("failed order must expire without returning stock twice")
	}
	if h.gateway.StatusCalls != statusCalls {
		t.Fatal("failed intent needs no gateway round trip")
	}
}

func TestCancelKeepsOrderWhileIntentProcessing(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("4.00", model.NoDiscount, 1)
	order := h.checkout(t, line(variation, 1))
	h.gateway.SetStatus(order.PaymentIntentID, model.IntentProcessing)
	h.gateway.CancelFn = func(context.Context, string) (model.IntentStatus, error) {
		return model.IntentProcessing, nil
	}

	_, err := h.lifecycle.Cancel(context.Background(), testUser, order.ID)
	var gwErr *domainErrors.PaymentGatewayError
	if !errors.Is(err, domainErrors.ErrPaymentInProgress) || !errors.As(err, &gwErr) || gwErr.OrderID != order.ID {
		t.Fatalf("expected payment in progress for the order, got %v", err)
	}
	if stored := h.stored(t, order.ID); stored.Status != model.OrderStatusAwaitingPayment || !stored.IsStockReserved {
		t.Fatalf("order must keep waiting with its reservation, got %+v", stored)
	}
	if h.store.Available(variation) != 0 {
		t.Fatal("stock must stay reserved while the payment may still succeed")
	}

	outcome, err := h.lifecycle.ConfirmPayment(context.Background(), order.PaymentIntentID, model.IntentSucceeded)
	if err != nil || outcome != model.OutcomeOK {
		t.Fatalf("late success must pay the order, got %s, %v", outcome, err)
	}
	if stored := h.stored(t, order.ID); stored.Status != model.OrderStatusPaid || h.store.Available(variation) != 0 {
		t.Fatalf("expected PAID with stock consumed, got %+v", stored)
	}
}

func TestExpireKeepsOrderWhileIntentProcessing(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("4.00", model.NoDiscount, 2)
	order := h.checkout(t, line(variation, 2))
	h.gateway.SetStatus(order.PaymentIntentID, model.IntentProcessing)
	h.gateway.CancelFn = func(context.Context, string) (model.IntentStatus, error) {
		return model.IntentProcessing, nil
	}
	h.advance(time.Hour)

	outcome, err := h.lifecycle.Expire(context.Background(), order.ID)
	if !errors.Is(err, domainErrors.ErrPaymentInProgress) || outcome != model.OutcomeUnchanged {
		t.Fatalf("expected payment in progress, got %s, %v", outcome, err)
	}
	if stored := h.stored(t, order.ID); stored.Status != model.OrderStatusAwaitingPayment || !stored.IsStockReserved {
		t.Fatalf("order must not expire while the intent can still collect, got %+v", stored)
	}
	if len(h.notifier.Events()) != 0 {
		t.Fatalf("no event expected, got %v", h.eventTypes())
	}

	h.gateway.CancelFn = nil
	if outcome, err := h.lifecycle.Expire(context.Background(), order.ID); err != nil || outcome != model.OutcomeOK {
		t.Fatalf("expected expiry once the intent is cancellable, got %s, %v", outcome, err)
	}
	if h.stored(t, order.ID).Status != model.OrderStatusExpired || h.store.Available(variation) != 2 {
		t.Fatal("expired order must return its stock")
	}
}

func TestExpireTreatsUnknownIntentAsCanceled(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("4.00", model.NoDiscount, 3)
	order := h.checkout(t, line(variation, 1))
	h.gateway.StatusFn = func(context.Context, string) (model.IntentStatus, error) {
		return "", &domainErrors.PaymentGatewayError{Op: "get intent", StatusCode: 404, Err: domainErrors.ErrNotFound}
	}
	h.advance(time.Hour)

	if outcome, err := h.lifecycle.Expire(context.Background(), order.ID); err != nil || outcome != model.OutcomeOK {
		t.Fatalf("expected OK, got %s, %v", outcome, err)
	}
	if h.stored(t, order.ID).Status != model.OrderStatusExpired || h.store.Available(variation) != 3 {
		t.Fatal("order with an unknown intent must expire")
	}
	if rec, ok := h.store.Intent(order.PaymentIntentID); !ok || rec.Status != model.IntentCanceled {
		t.Fatalf("intent must be recorded as canceled, got %+v", rec)
	}
	if h.gateway.CancelCalls != 0 {
		t.Fatal("an unknown intent needs no cancel call")
	}
}

func TestDeferredExpiryLetsLaterOrdersThrough(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("4.00", model.NoDiscount, 2)
	stuck := h.checkout(t, line(variation, 1))
	h.advance(time.Minute)
	healthy := h.checkout(t, line(variation, 1))
	h.gateway.StatusFn = func(_ context.Context, intentID string) (model.IntentStatus, error) {
		if intentID == stuck.PaymentIntentID {
			return "", &domainErrors.PaymentGatewayError{Op: "get intent", StatusCode: 500, Err: errors.New("internal error")}
		}
		return model.IntentRequiresPaymentMethod, nil
	}
	h.advance(time.Hour)
	ctx := context.Background()

	ids, err := h.lifecycle.ExpiredOrders(ctx, 1)
	if err != nil || len(ids) != 1 || ids[0] != stuck.ID {
		t.Fatalf("expected the oldest order first, got %v, %v", ids, err)
	}
	if _, err := h.lifecycle.Expire(ctx, stuck.ID); err == nil {
		t.Fatal("expected expiry of the stuck order to fail")
	}
	if err := h.lifecycle.DeferExpiry(ctx, stuck.ID, 10*time.Minute); err != nil {
		t.Fatalf("defer failed: %v", err)
	}

	ids, err = h.lifecycle.ExpiredOrders(ctx, 1)
	if err != nil || len(ids) != 1 || ids[0] != healthy.ID {
		t.Fatalf("deferred order must not hide the next one, got %v, %v", ids, err)
	}
	if outcome, err := h.lifecycle.Expire(ctx, healthy.ID); err != nil || outcome != model.OutcomeOK {
		t.Fatalf("expected OK, got %s, %v", outcome, err)
	}

	h.advance(11 * time.Minute)
	ids, err = h.lifecycle.ExpiredOrders(ctx, 1)
	if err != nil || len(ids) != 1 || ids[0] != stuck.ID {
		t.Fatalf("deferred order must come back after the delay, got %v, %v", ids, err)
	}
	if err := h.lifecycle.DeferExpiry(ctx, uuid.New(), time.Minute); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found for an unknown order, got %v", err)
	}
}

func TestZeroTotalOrderIsPaidImmediately(t *testing.T) {
	h := newHarness(t)
	free := h.addVariation("5.00", model.Discount{Type: model.DiscountPercentage, Value: decimal.NewFromInt(100)}, 2)

	order := h.checkout(t, line(free, 1))
	if order.Status != model.OrderStatusPaid || len(h.gateway.Requests()) != 0 {
		t.Fatalf("free order must skip the gateway, got %s", order.Status)
	}
	if h.store.Available(free) != 1 {
		t.Fatal("free order still consumes stock")
	}
}

func TestOrderQueriesAndSoftDelete(t *testing.T) {
	h := newHarness(t)
	variation := h.addVariation("4.00", model.NoDiscount, 5)
	first := h.checkout(t, line(variation, 1))
	h.advance(time.Minute)
	second := h.checkout(t, line(variation, 1))

	orders, err := h.lifecycle.Orders(context.Background(), testUser)
	if err != nil || len(orders) != 2 || orders[0].ID != second.ID {
		t.Fatalf("expected newest first, got %v, %v", orders, err)
	}
	if _, err := h.lifecycle.Order(context.Background(), testUser+1, first.ID); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("foreign order must be hidden, got %v", err)
	}

	if outcome, _ := h.lifecycle.DeleteOrder(context.Background(), testUser, first.ID); outcome != model.OutcomeConflict {
		t.Fatalf("open order cannot be deleted, got %s", outcome)
	}
	if _, err := h.lifecycle.Cancel(context.Background(), testUser, first.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if outcome, _ := h.lifecycle.DeleteOrder(context.Background(), testUser, first.ID); outcome != model.OutcomeOK {
		t.Fatalf("expected OK, got %s", outcome)
	}
	if outcome, _ := h.lifecycle.DeleteOrder(context.Background(), testUser, first.ID); outcome != model.OutcomeNotFound {
		t.Fatalf("deleted order must be not found, got %s", outcome)
	}
	if _, err := h.lifecycle.Order(context.Background(), testUser, first.ID); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("deleted order must be hidden, got %v", err)
	}
	if orders, _ := h.lifecycle.Orders(context.Background(), testUser); len(orders) != 1 {
		t.Fatalf("deleted order must not be listed, got %d", len(orders))
	}
	if got, err := h.lifecycle.Order(context.Background(), testUser, second.ID); err != nil || got.ID != second.ID {
		t.Fatalf("expected second order, got %v", err)
	}
}
