// Package gateway is the HTTP client of the external payment provider.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	domainErrors "github.com/polkiloo/ordercheckout/internal/domain/errors"
	"github.com/polkiloo/ordercheckout/internal/domain/model"
	"github.com/polkiloo/ordercheckout/internal/metrics"
)

const (
	opCreate = "create_intent"
	opStatus = "get_intent"
	opCancel = "cancel_intent"

	defaultRetryAfter = 5 * time.Second
	maxErrorBody      = 4 << 10
)

// Options tune the client; zero values fall back to defaults.
type Options struct {
	APIKey  string
	Timeout time.Duration
	Metrics *metrics.Metrics
	// Transport replaces the base round tripper wrapped by tracing.
	Transport http.RoundTripper
	// Breaker overrides the circuit breaker settings.
	Breaker *gobreaker.Settings
}

// HTTPClient implements the payment gateway REST API. Requests are never re-sent:
// an open breaker fails fast instead.
type HTTPClient struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type createRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	PaymentURL   string `json:"payment_url"`
	Status       string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// statusError marks a response the breaker should not count as a gateway outage.
type statusError struct {
	code int
}

func (e *statusError) Error() string { return http.StatusText(e.code) }

// NewHTTPClient creates a gateway client with tracing transport and circuit breaker.
func NewHTTPClient(baseURL string, logger *slog.Logger, opts Options) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("gateway url must be absolute")
	}
	if logger == nil {
		logger = slog.Default()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	c := &HTTPClient{
		baseURL: parsed,
		apiKey:  opts.APIKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(base),
		},
		metrics: opts.Metrics,
		logger:  logger,
	}

	settings := gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	if opts.Breaker != nil {
		settings = *opts.Breaker
	}
	settings.IsSuccessful = func(err error) bool {
		var se *statusError
		return err == nil || errors.As(err, &se)
	}
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn("circuit breaker state changed",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	}
	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](settings)
	return c, nil
}

// CreatePaymentIntent creates an intent. Repeating the idempotency key returns the same intent.
func (c *HTTPClient) CreatePaymentIntent(ctx context.Context, req model.IntentRequest) (model.PaymentIntent, error) {
	body, err := json.Marshal(createRequest{
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Metadata: map[string]string{"order_id": req.CorrelationID.String()},
	})
	if err != nil {
		return model.PaymentIntent{}, err
	}

	headers := http.Header{}
	if req.IdempotencyKey != "" {
		headers.Set("Idempotency-Key", req.IdempotencyKey)
	}

	var data intentResponse
	if err := c.do(ctx, opCreate, http.MethodPost, c.endpoint("v1", "payment_intents"), body, headers, &data); err != nil {
		return model.PaymentIntent{}, err
	}
	if data.ID == "" {
		return model.PaymentIntent{}, &domainErrors.PaymentGatewayError{Op: opCreate, Err: errors.New("response without intent id")}
	}
	return model.PaymentIntent{
		ID:           data.ID,
		ClientSecret: data.ClientSecret,
		PaymentURL:   data.PaymentURL,
		Status:       c.status(data.Status),
	}, nil
}

// GetIntentStatus reads the current intent status.
func (c *HTTPClient) GetIntentStatus(ctx context.Context, intentID string) (model.IntentStatus, error) {
	var data intentResponse
	if err := c.do(ctx, opStatus, http.MethodGet, c.endpoint("v1", "payment_intents", intentID), nil, nil, &data); err != nil {
		return "", err
	}
	return c.status(data.Status), nil
}

// CancelPaymentIntent cancels a pending intent and returns the resulting status.
func (c *HTTPClient) CancelPaymentIntent(ctx context.Context, intentID string) (model.IntentStatus, error) {
	var data intentResponse
	if err := c.do(ctx, opCancel, http.MethodPost, c.endpoint("v1", "payment_intents", intentID, "cancel"), nil, nil, &data); err != nil {
		return "", err
	}
	return c.status(data.Status), nil
}

func (c *HTTPClient) endpoint(parts ...string) string {
	endpoint := *c.baseURL
	endpoint.Path = path.Join(append([]string{endpoint.Path}, parts...)...)
	return endpoint.String()
}

// status maps an unknown gateway status to processing so the order keeps waiting.
func (c *HTTPClient) status(raw string) model.IntentStatus {
	s := model.IntentStatus(raw)
	if !s.Valid() {
		c.logger.Warn("unknown payment intent status", slog.String("status", raw))
		return model.IntentProcessing
	}
	return s
}

func (c *HTTPClient) do(ctx context.Context, op, method, endpoint string, body []byte, headers http.Header, out any) (err error) {
	start := time.Now()
	defer func() { c.metrics.GatewayCall(op, err, time.Since(start)) }()

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		for key, values := range headers {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, fmt.Errorf("gateway responded %s", resp.Status)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return resp, &statusError{code: resp.StatusCode}
		}
		return resp, nil
	})
	if resp != nil {
		defer resp.Body.Close()
	}

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &domainErrors.PaymentGatewayError{Op: op, Err: fmt.Errorf("%w: %v", domainErrors.ErrGatewayUnavailable, err)}
		}
		if resp == nil {
			return &domainErrors.PaymentGatewayError{Op: op, Err: err}
		}
		return c.responseError(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domainErrors.PaymentGatewayError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *HTTPClient) responseError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := resp.Status
	var payload errorResponse
	if json.Unmarshal(raw, &payload) == nil && payload.Error.Message != "" {
		message = payload.Error.Message
	}

	gwErr := &domainErrors.PaymentGatewayError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(message)}
	switch resp.StatusCode {
	case http.StatusNotFound:
		gwErr.Err = fmt.Errorf("%w: %s", domainErrors.ErrNotFound, message)
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		gwErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}

	c.logger.Error("payment gateway request failed",
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
		slog.String("message", message),
	)
	return gwErr
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return defaultRetryAfter
}
