//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/polkiloo/ordercheckout/internal/config"
	domainErrors "github.com/polkiloo/ordercheckout/internal/domain/errors"
	"github.com/polkiloo/ordercheckout/internal/domain/model"
	"github.com/polkiloo/ordercheckout/internal/pricing"
	testhelpers "github.com/polkiloo/ordercheckout/internal/test"
	"github.com/polkiloo/ordercheckout/internal/usecase"
)

func startPostgres(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("checkout"),
		tcpostgres.WithUsername("checkout"),
		tcpostgres.WithPassword("checkout"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	storage, err := New(ctx, dsn, discardLogger)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(storage.Close)
	return storage
}

func seedUser(t *testing.T, s *Storage, login string) int64 {
	t.Helper()
	user, err := s.Users().Create(context.Background(), login, "hash")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user.ID
}

func seedVariation(t *testing.T, s *Storage, price string, available int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	const query = `INSERT INTO product_variations (id, sku, unit_price, available) VALUES ($1, $2, $3, $4)`
	if _, err := s.pool.Exec(context.Background(), query, id, "SKU-"+id.String()[:8], decimal.RequireFromString(price), available); err != nil {
		t.Fatalf("seed variation: %v", err)
	}
	return id
}

func newLifecycle(s *Storage, gateway usecase.PaymentGateway) *usecase.OrderLifecycle {
	return usecase.NewOrderLifecycle(usecase.LifecycleParams{
		Repositories: s,
		Pricing:      pricing.NewEngine(pricing.PolicyReject, "usd"),
		Reservations: usecase.NewReservationManager(discardLogger),
		Payments:     usecase.NewPaymentOrchestrator(gateway, discardLogger),
		Notifier:     &testhelpers.NotifierStub{},
		Config:       &config.Config{Currency: "usd", PaymentExpiry: 30 * time.Minute},
		Logger:       discardLogger,
	})
}

func TestIntegrationLastUnitRace(t *testing.T) {
	storage := startPostgres(t)
	lifecycle := newLifecycle(storage, testhelpers.NewGatewayStub())
	variation := seedVariation(t, storage, "10.00", 1)

	const buyers = 8
	users := make([]int64, buyers)
	for i := range users {
		users[i] = seedUser(t, storage, "buyer-"+uuid.NewString()[:8])
	}

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		succeeded  int
		outOfStock int
	)
	for _, userID := range users {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := lifecycle.Checkout(context.Background(), userID, []model.CartLine{{ProductVariationID: variation, Quantity: 1}})
			mu.Lock()
			defer mu.Unlock()
			var oos *domainErrors.OutOfStockError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &oos):
				outOfStock++
			default:
				t.Errorf("unexpected checkout error: %v", err)
			}
		}(userID)
	}
	wg.Wait()

	if succeeded != 1 || outOfStock != buyers-1 {
		t.Fatalf("expected exactly one winner, got %d succeeded and %d out of stock", succeeded, outOfStock)
	}

	var available int
	if err := storage.pool.QueryRow(context.Background(), `SELECT available FROM product_variations WHERE id=$1`, variation).Scan(&available); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if available != 0 {
		t.Fatalf("expected stock 0, got %d", available)
	}

	var failed int
	if err := storage.pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM orders WHERE status='STOCK_RESERVATION_FAILED'`).Scan(&failed); err != nil {
		t.Fatalf("count audit orders: %v", err)
	}
	if failed != buyers-1 {
		t.Fatalf("expected %d audit orders, got %d", buyers-1, failed)
	}
}

func TestIntegrationConfirmAndExpire(t *testing.T) {
	storage := startPostgres(t)
	gateway := testhelpers.NewGatewayStub()
	lifecycle := newLifecycle(storage, gateway)
	variation := seedVariation(t, storage, "10.00", 5)
	userID := seedUser(t, storage, "payer")
	ctx := context.Background()

	paid, err := lifecycle.Checkout(ctx, userID, []model.CartLine{{ProductVariationID: variation, Quantity: 2}})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	outcome, err := lifecycle.ConfirmPayment(ctx, paid.PaymentIntentID, model.IntentSucceeded)
	if err != nil || outcome != model.OutcomeOK {
		t.Fatalf("confirm: %v %v", outcome, err)
	}
	if outcome, _ := lifecycle.ConfirmPayment(ctx, paid.PaymentIntentID, model.IntentSucceeded); outcome != model.OutcomeUnchanged {
		t.Fatalf("expected duplicate confirmation to be unchanged, got %v", outcome)
	}

	stale, err := lifecycle.Checkout(ctx, userID, []model.CartLine{{ProductVariationID: variation, Quantity: 3}})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if _, err := storage.pool.Exec(ctx, `UPDATE orders SET expires_at = NOW() - INTERVAL '1 minute' WHERE id=$1`, stale.ID); err != nil {
		t.Fatalf("backdate order: %v", err)
	}
	due, err := lifecycle.ExpiredOrders(ctx, 10)
	if err != nil || len(due) != 1 || due[0] != stale.ID {
		t.Fatalf("expected stale order due, got %v err=%v", due, err)
	}
	if err := lifecycle.DeferExpiry(ctx, stale.ID, time.Hour); err != nil {
		t.Fatalf("defer expiry: %v", err)
	}
	if due, err := lifecycle.ExpiredOrders(ctx, 10); err != nil || len(due) != 0 {
		t.Fatalf("expected deferred order hidden from the sweep, got %v err=%v", due, err)
	}
	if outcome, err := lifecycle.Expire(ctx, stale.ID); err != nil || outcome != model.OutcomeOK {
		t.Fatalf("expire: %v %v", outcome, err)
	}

	reloaded, err := lifecycle.Order(ctx, userID, stale.ID)
	if err != nil || reloaded.Status != model.OrderStatusExpired || reloaded.IsStockReserved {
		t.Fatalf("unexpected expired order: %+v err=%v", reloaded, err)
	}
	var available int
	if err := storage.pool.QueryRow(ctx, `SELECT available FROM product_variations WHERE id=$1`, variation).Scan(&available); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if available != 3 {
		t.Fatalf("expected paid units consumed and expired units released, got %d", available)
	}
}
