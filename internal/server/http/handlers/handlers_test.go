package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/ordercheckout/internal/domain/errors"
	"github.com/polkiloo/ordercheckout/internal/domain/model"
	"github.com/polkiloo/ordercheckout/internal/server/http/dto"
	"github.com/polkiloo/ordercheckout/internal/server/http/middleware"
	testhelpers "github.com/polkiloo/ordercheckout/internal/test"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testUserID int64 = 7

// performRequest serves target through a router holding handler at route, as an authenticated user.
func performRequest(t *testing.T, method, route, target string, handler gin.HandlerFunc, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.Handle(method, route, func(c *gin.Context) {
		c.Set(middleware.UserIDContextKey, testUserID)
		handler(c)
	})

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var jsonHeaders = map[string]string{"Content-Type": "application/json"}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var body dto.ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", resp.Body.String(), err)
	}
	return body
}

func TestCurrentUserID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := CurrentUserID(c); got != 0 {
		t.Fatalf("expected 0 when not set, got %d", got)
	}

	c.Set(middleware.UserIDContextKey, int64(42))
	if got := CurrentUserID(c); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestAuthHandlerRegisterScenario(t *testing.T) {
	login := testhelpers.RandomASCIIString(7, 14)
	password := testhelpers.RandomASCIIString(16, 32)
	body, _ := json.Marshal(dto.AuthRequest{Login: login, Password: password})
	handler := NewAuthHandler(testhelpers.AuthFacadeStub{RegisterFn: func(ctx context.Context, gotLogin, gotPassword string) (string, error) {
		if gotLogin != login || gotPassword != password {
			t.Fatalf("unexpected credentials passed to facade: %q %q", gotLogin, gotPassword)
		}
		return "session-token", nil
	}})
	resp := performRequest(t, http.MethodPost, "/register", "/register", handler.Register, body, jsonHeaders)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("Authorization"); got != "Bearer session-token" {
		t.Fatalf("unexpected authorization header %q", got)
	}
	var session dto.AuthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &session); err != nil || session.Token != "session-token" {
		t.Fatalf("expected token in body, got %s (%v)", resp.Body.String(), err)
	}
	result := resp.Result()
	t.Cleanup(func() {
		_ = result.Body.Close()
	})
	found := false
	for _, cookie := range result.Cookies() {
		if cookie.Name == "ordercheckout_token" && cookie.Value == "session-token" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected auth cookie named ordercheckout_token")
	}
}

func TestAuthHandlerFailures(t *testing.T) {
	fail := func(err error) func(context.Context, string, string) (string, error) {
		return func(context.Context, string, string) (string, error) { return "", err }
	}
	valid := []byte(`{"login":"a","password":"b"}`)

	tests := []struct {
		name   string
		login  bool
		facade testhelpers.AuthFacadeStub
		body   []byte
		status int
	}{
		{name: "register bad json", body: []byte("not json"), status: http.StatusBadRequest},
		{name: "register invalid credentials", body: valid, facade: testhelpers.AuthFacadeStub{RegisterFn: fail(domainErrors.ErrInvalidCredentials)}, status: http.StatusBadRequest},
		{name: "register already exists", body: valid, facade: testhelpers.AuthFacadeStub{RegisterFn: fail(domainErrors.ErrAlreadyExists)}, status: http.StatusConflict},
		{name: "register internal", body: valid, facade: testhelpers.AuthFacadeStub{RegisterFn: fail(errors.New("boom"))}, status: http.StatusInternalServerError},
		{name: "login ok", login: true, body: valid, status: http.StatusOK},
		{name: "login bad json", login: true, body: []byte("not json"), status: http.StatusBadRequest},
		{name: "login invalid", login: true, body: valid, facade: testhelpers.AuthFacadeStub{AuthenticateFn: fail(domainErrors.ErrInvalidCredentials)}, status: http.StatusUnauthorized},
		{name: "login internal", login: true, body: valid, facade: testhelpers.AuthFacadeStub{AuthenticateFn: fail(errors.New("boom"))}, status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(tt.facade)
			handler := h.Register
			if tt.login {
				handler = h.Login
			}
			resp := performRequest(t, http.MethodPost, "/auth", "/auth", handler, tt.body, jsonHeaders)
			if resp.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, resp.Code)
			}
		})
	}
}

func TestOrderHandlerCheckout(t *testing.T) {
	variation := uuid.New()
	expires := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	var gotLines []model.CartLine
	facade := testhelpers.OrderFacadeStub{CheckoutFn: func(_ context.Context, userID int64, lines []model.CartLine) (*model.Order, error) {
		if userID != testUserID {
			t.Fatalf("unexpected user %d", userID)
		}
		gotLines = lines
		return &model.Order{
			ID:              uuid.New(),
			Currency:        "usd",
			SubTotal:        decimal.RequireFromString("30"),
			Discount:        decimal.RequireFromString("3"),
			Total:           decimal.RequireFromString("27"),
			Status:          model.OrderStatusAwaitingPayment,
			IsStockReserved: true,
			ClientSecret:    "pi_1_secret",
			PaymentURL:      "https://pay.test/pi_1",
			ExpiresAt:       expires,
			Items: []model.OrderItem{{
				ProductVariationID: variation,
				Quantity:           3,
				UnitPrice:          decimal.RequireFromString("10.00"),
				DiscountType:       model.DiscountPercentage,
				DiscountValue:      decimal.RequireFromString("10"),
				SubTotal:           decimal.RequireFromString("30"),
				Discount:           decimal.RequireFromString("3"),
				LineTotal:          decimal.RequireFromString("27"),
			}},
		}, nil
	}}

	body := []byte(`{"items":[{"product_variation_id":"` + variation.String() + `","quantity":3}]}`)
	resp := performRequest(t, http.MethodPost, "/orders", "/orders", NewOrderHandler(facade).Checkout, body, jsonHeaders)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(gotLines) != 1 || gotLines[0].ProductVariationID != variation || gotLines[0].Quantity != 3 {
		t.Fatalf("unexpected cart lines %+v", gotLines)
	}

	var order dto.OrderResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &order); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if order.Total != "27.00" || order.Discount != "3.00" || order.SubTotal != "30.00" {
		t.Fatalf("expected amounts at currency scale, got %+v", order)
	}
	if order.ClientSecret != "pi_1_secret" || order.ExpiresAt == nil || !order.ExpiresAt.Equal(expires) {
		t.Fatalf("expected payment details, got %+v", order)
	}
	if len(order.Items) != 1 || order.Items[0].LineTotal != "27.00" || order.Items[0].DiscountType != string(model.DiscountPercentage) {
		t.Fatalf("unexpected items %+v", order.Items)
	}
}

func TestOrderHandlerCheckoutFailures(t *testing.T) {
	variation := uuid.New()
	orderID := uuid.New()
	validBody := []byte(`{"items":[{"product_variation_id":"` + variation.String() + `","quantity":1}]}`)
	fail := func(err error) testhelpers.OrderFacadeStub {
		return testhelpers.OrderFacadeStub{CheckoutFn: func(context.Context, int64, []model.CartLine) (*model.Order, error) {
			return nil, err
		}}
	}

	tests := []struct {
		name      string
		facade    testhelpers.OrderFacadeStub
		body      []byte
		status    int
		orderID   string
		variation string
	}{
		{name: "bad json", body: []byte("{"), status: http.StatusBadRequest},
		{name: "bad variation id", body: []byte(`{"items":[{"product_variation_id":"nope","quantity":1}]}`), status: http.StatusBadRequest},
		{name: "empty cart", body: []byte(`{"items":[]}`), facade: fail(domainErrors.ErrEmptyCart), status: http.StatusBadRequest},
		{name: "invalid quantity", body: validBody, facade: fail(&domainErrors.LineError{VariationID: variation, Err: domainErrors.ErrInvalidQuantity}), status: http.StatusBadRequest, variation: variation.String()},
		{name: "unknown product", body: validBody, facade: fail(&domainErrors.LineError{VariationID: variation, Err: domainErrors.ErrProductNotFound}), status: http.StatusUnprocessableEntity, variation: variation.String()},
		{name: "invalid discount", body: validBody, facade: fail(&domainErrors.InvalidDiscountError{VariationID: variation, Reason: "exceeds subtotal"}), status: http.StatusUnprocessableEntity, variation: variation.String()},
		{name: "out of stock", body: validBody, facade: fail(&domainErrors.OutOfStockError{OrderID: orderID, Lines: []domainErrors.StockShortage{{VariationID: variation, Requested: 1}}}), status: http.StatusConflict, orderID: orderID.String()},
		{name: "gateway", body: validBody, facade: testhelpers.OrderFacadeStub{CheckoutFn: func(context.Context, int64, []model.CartLine) (*model.Order, error) {
			return &model.Order{ID: orderID}, &domainErrors.PaymentGatewayError{Op: "create_intent", OrderID: orderID, Err: domainErrors.ErrGatewayUnavailable}
		}}, status: http.StatusBadGateway, orderID: orderID.String()},
		{name: "internal", body: validBody, facade: fail(errors.New("boom")), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := performRequest(t, http.MethodPost, "/orders", "/orders", NewOrderHandler(tt.facade).Checkout, tt.body, jsonHeaders)
			if resp.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, resp.Code)
			}
			if tt.orderID == "" && tt.variation == "" {
				return
			}
			body := decodeError(t, resp)
			if body.OrderID != tt.orderID || body.ProductVariationID != tt.variation {
				t.Fatalf("unexpected error body %+v", body)
			}
		})
	}
}

func TestOutOfStockResponseNamesShortages(t *testing.T) {
	variation := uuid.New()
	facade := testhelpers.OrderFacadeStub{CheckoutFn: func(context.Context, int64, []model.CartLine) (*model.Order, error) {
		return nil, &domainErrors.OutOfStockError{OrderID: uuid.New(), Lines: []domainErrors.StockShortage{{VariationID: variation, Requested: 3, Available: 1}}}
	}}
	body := []byte(`{"items":[{"product_variation_id":"` + variation.String() + `","quantity":3}]}`)
	resp := performRequest(t, http.MethodPost, "/orders", "/orders", NewOrderHandler(facade).Checkout, body, jsonHeaders)

	errBody := decodeError(t, resp)
	if len(errBody.Shortages) != 1 || errBody.Shortages[0].ProductVariationID != variation.String() ||
		errBody.Shortages[0].Requested != 3 || errBody.Shortages[0].Available != 1 {
		t.Fatalf("unexpected shortages %+v", errBody.Shortages)
	}
}

func TestGatewayErrorSetsRetryAfter(t *testing.T) {
	orderID := uuid.New()
	facade := testhelpers.OrderFacadeStub{RetryPaymentFn: func(context.Context, int64, uuid.UUID) (model.RetryPaymentPayload, error) {
		return model.RetryPaymentPayload{}, &domainErrors.PaymentGatewayError{Op: "create_intent", OrderID: orderID, StatusCode: 429, RetryAfter: 1500 * time.Millisecond}
	}}
	resp := performRequest(t, http.MethodPost, "/orders/:id/payment", "/orders/"+orderID.String()+"/payment", NewOrderHandler(facade).RetryPayment, nil, nil)
	if resp.Code != http.StatusBadGateway || resp.Header().Get("Retry-After") != "2" {
		t.Fatalf("expected 502 with Retry-After 2, got %d %q", resp.Code, resp.Header().Get("Retry-After"))
	}
}

func TestOrderHandlerList(t *testing.T) {
	handler := NewOrderHandler(testhelpers.OrderFacadeStub{OrdersFn: func(context.Context, int64) ([]model.Order, error) {
		return []model.Order{{ID: uuid.New(), Status: model.OrderStatusPaid}, {ID: uuid.New(), Status: model.OrderStatusCancelled}}, nil
	}})
	resp := performRequest(t, http.MethodGet, "/orders", "/orders", handler.List, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var orders []dto.OrderResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &orders); err != nil || len(orders) != 2 {
		t.Fatalf("unexpected body %s (%v)", resp.Body.String(), err)
	}
	if orders[0].ExpiresAt != nil || orders[0].ClientSecret != "" {
		t.Fatalf("terminal orders must not expose payment details: %+v", orders[0])
	}

	empty := NewOrderHandler(testhelpers.OrderFacadeStub{OrdersFn: func(context.Context, int64) ([]model.Order, error) {
		return nil, nil
	}})
	if resp := performRequest(t, http.MethodGet, "/orders", "/orders", empty.List, nil, nil); resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", resp.Code)
	}

	failing := NewOrderHandler(testhelpers.OrderFacadeStub{OrdersFn: func(context.Context, int64) ([]model.Order, error) {
		return nil, errors.New("boom")
	}})
	if resp := performRequest(t, http.MethodGet, "/orders", "/orders", failing.List, nil, nil); resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", resp.Code)
	}
}

func TestOrderHandlerGet(t *testing.T) {
	id := uuid.New()
	handler := NewOrderHandler(testhelpers.OrderFacadeStub{OrderFn: func(_ context.Context, _ int64, orderID uuid.UUID) (*model.Order, error) {
		if orderID != id {
			return nil, &domainErrors.OrderNotFoundError{OrderID: orderID}
		}
		return &model.Order{ID: id, Status: model.OrderStatusAwaitingPayment}, nil
	}})

	if resp := performRequest(t, http.MethodGet, "/orders/:id", "/orders/"+id.String(), handler.Get, nil, nil); resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if resp := performRequest(t, http.MethodGet, "/orders/:id", "/orders/not-a-uuid", handler.Get, nil, nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	other := uuid.New()
	resp := performRequest(t, http.MethodGet, "/orders/:id", "/orders/"+other.String(), handler.Get, nil, nil)
	if resp.Code != http.StatusNotFound || decodeError(t, resp).OrderID != other.String() {
		t.Fatalf("expected 404 naming the order, got %d %s", resp.Code, resp.Body.String())
	}
}

func TestOrderHandlerRetryPayment(t *testing.T) {
	id := uuid.New()
	handler := NewOrderHandler(testhelpers.OrderFacadeStub{})
	resp := performRequest(t, http.MethodPost, "/orders/:id/payment", "/orders/"+id.String()+"/payment", handler.RetryPayment, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var payload dto.RetryPaymentResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.OrderID != id.String() || !payload.IsPaymentNeeded || payload.ClientSecret == "" {
		t.Fatalf("unexpected payload %+v", payload)
	}

	conflict := NewOrderHandler(testhelpers.OrderFacadeStub{RetryPaymentFn: func(_ context.Context, _ int64, orderID uuid.UUID) (model.RetryPaymentPayload, error) {
		return model.RetryPaymentPayload{}, &domainErrors.InvalidStateTransitionError{OrderID: orderID, From: model.OrderStatusExpired, To: model.OrderStatusAwaitingPayment}
	}})
	if resp := performRequest(t, http.MethodPost, "/orders/:id/payment", "/orders/"+id.String()+"/payment", conflict.RetryPayment, nil, nil); resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
}

func TestOrderHandlerCancel(t *testing.T) {
	id := uuid.New()
	resp := performRequest(t, http.MethodPost, "/orders/:id/cancel", "/orders/"+id.String()+"/cancel", NewOrderHandler(testhelpers.OrderFacadeStub{}).Cancel, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	paid := NewOrderHandler(testhelpers.OrderFacadeStub{CancelFn: func(_ context.Context, _ int64, orderID uuid.UUID) (*model.Order, error) {
		return nil, &domainErrors.InvalidStateTransitionError{OrderID: orderID, From: model.OrderStatusPaid, To: model.OrderStatusCancelled}
	}})
	resp = performRequest(t, http.MethodPost, "/orders/:id/cancel", "/orders/"+id.String()+"/cancel", paid.Cancel, nil, nil)
	if resp.Code != http.StatusConflict || decodeError(t, resp).OrderID != id.String() {
		t.Fatalf("expected 409 naming the order, got %d", resp.Code)
	}

	processing := NewOrderHandler(testhelpers.OrderFacadeStub{CancelFn: func(_ context.Context, _ int64, orderID uuid.UUID) (*model.Order, error) {
		return nil, &domainErrors.PaymentGatewayError{
			Op:      "cancel intent",
			OrderID: orderID,
			Err:     fmt.Errorf("%w: intent pi_1 is processing", domainErrors.ErrPaymentInProgress),
		}
	}})
	resp = performRequest(t, http.MethodPost, "/orders/:id/cancel", "/orders/"+id.String()+"/cancel", processing.Cancel, nil, nil)
	body := decodeError(t, resp)
	if resp.Code != http.StatusConflict || body.OrderID != id.String() || body.Error != "payment in progress" {
		t.Fatalf("expected 409 payment in progress, got %d %+v", resp.Code, body)
	}
}

func TestOrderHandlerDelete(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		outcome model.Outcome
		err     error
		status  int
	}{
		{outcome: model.OutcomeOK, status: http.StatusNoContent},
		{outcome: model.OutcomeNotFound, status: http.StatusNotFound},
		{outcome: model.OutcomeConflict, status: http.StatusConflict},
		{err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		handler := NewOrderHandler(testhelpers.OrderFacadeStub{DeleteFn: func(context.Context, int64, uuid.UUID) (model.Outcome, error) {
			return tt.outcome, tt.err
		}})
		resp := performRequest(t, http.MethodDelete, "/orders/:id", "/orders/"+id.String(), handler.Delete, nil, nil)
		if resp.Code != tt.status {
			t.Fatalf("outcome %v: expected status %d, got %d", tt.outcome, tt.status, resp.Code)
		}
	}
}

func TestWebhookHandler(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	validBody := []byte(`{"intent_id":"pi_1","status":"succeeded"}`)
	signed := map[string]string{SignatureHeader: "valid"}
	confirm := func(outcome model.Outcome, err error) testhelpers.PaymentFacadeStub {
		return testhelpers.PaymentFacadeStub{ConfirmFn: func(_ context.Context, intentID string, status model.IntentStatus) (model.Outcome, error) {
			if intentID != "pi_1" || status != model.IntentSucceeded {
				t.Fatalf("unexpected report %q %q", intentID, status)
			}
			return outcome, err
		}}
	}

	tests := []struct {
		name    string
		facade  testhelpers.PaymentFacadeStub
		body    []byte
		headers map[string]string
		status  int
		outcome string
	}{
		{name: "applied", facade: confirm(model.OutcomeOK, nil), body: validBody, headers: signed, status: http.StatusOK, outcome: "ok"},
		{name: "duplicate", facade: confirm(model.OutcomeUnchanged, nil), body: validBody, headers: signed, status: http.StatusOK, outcome: "unchanged"},
		{name: "unknown intent", facade: confirm(model.OutcomeNotFound, nil), body: validBody, headers: signed, status: http.StatusNotFound, outcome: "not_found"},
		{name: "missing signature", body: validBody, status: http.StatusUnauthorized},
		{name: "bad signature", body: validBody, headers: map[string]string{SignatureHeader: "forged"}, status: http.StatusUnauthorized},
		{name: "malformed", body: []byte(`{"status":"succeeded"}`), headers: signed, status: http.StatusBadRequest},
		{name: "unknown status", body: []byte(`{"intent_id":"pi_1","status":"refunded"}`), headers: signed, status: http.StatusBadRequest},
		{name: "gateway failure", facade: confirm(model.OutcomeUnchanged, &domainErrors.PaymentGatewayError{Op: "cancel_intent"}), body: validBody, headers: signed, status: http.StatusBadGateway},
		{name: "storage failure", facade: confirm(model.OutcomeUnchanged, errors.New("boom")), body: validBody, headers: signed, status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewWebhookHandler(tt.facade, testhelpers.VerifierStub{}, logger)
			resp := performRequest(t, http.MethodPost, "/webhook", "/webhook", handler.Payment, tt.body, tt.headers)
			if resp.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, resp.Code)
			}
			if tt.outcome == "" {
				return
			}
			var ack dto.PaymentWebhookResponse
			if err := json.Unmarshal(resp.Body.Bytes(), &ack); err != nil || ack.Outcome != tt.outcome {
				t.Fatalf("expected outcome %q, got %+v (%v)", tt.outcome, ack, err)
			}
		})
	}
}

func TestWebhookVerifiesRawBody(t *testing.T) {
	body := []byte(`{"intent_id":"pi_1","status":"failed"}`)
	var verified []byte
	verifier := testhelpers.VerifierStub{VerifyFn: func(payload []byte, signature string) bool {
		verified = payload
		return signature == "sha256=abc"
	}}
	handler := NewWebhookHandler(testhelpers.PaymentFacadeStub{}, verifier, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	resp := performRequest(t, http.MethodPost, "/webhook", "/webhook", handler.Payment, body, map[string]string{SignatureHeader: "sha256=abc"})
	if resp.Code != http.StatusOK || !bytes.Equal(verified, body) {
		t.Fatalf("expected raw body verified, got %d %q", resp.Code, verified)
	}
}

func TestHealthHandler(t *testing.T) {
	if resp := performRequest(t, http.MethodGet, "/healthz", "/healthz", NewHealthHandler(testhelpers.HealthFacadeStub{}).Check, nil, nil); resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	down := NewHealthHandler(testhelpers.HealthFacadeStub{Err: errors.New("db down")})
	if resp := performRequest(t, http.MethodGet, "/healthz", "/healthz", down.Check, nil, nil); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", resp.Code)
	}
}
