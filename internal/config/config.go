package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application level configuration loaded from .env, environment and flags.
type Config struct {
	RunAddress            string
	GRPCAddress           string
	DatabaseURI           string
	PaymentGatewayAddress string
	PaymentGatewayKey     string
	PaymentGatewayTimeout time.Duration
	WebhookSecret         string
	JWTSecret             string
	Currency              string
	DiscountPolicy        string
	PaymentExpiry         time.Duration
	SweepInterval         time.Duration
	SweepBatch            int
	WorkerPoolSize        int
	ShutdownTimeout       time.Duration
	KafkaBrokers          []string
	NotificationTopic     string
	RedisAddress          string
	LogLevel              string
}

const (
	defaultRunAddress        = ":8080"
	defaultJWTSecret         = "change-me-in-production"
	defaultGatewayTimeout    = 10 * time.Second
	defaultCurrency          = "usd"
	defaultDiscountPolicy    = "reject"
	defaultPaymentExpiry     = 30 * time.Minute
	defaultSweepInterval     = time.Minute
	defaultSweepBatch        = 32
	defaultWorkerPoolSize    = 4
	defaultShutdownTimeout   = 10 * time.Second
	defaultNotificationTopic = "order-events"
	defaultLogLevel          = "info"
)

// Load parses configuration from an optional .env file, environment variables and flags.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(os.Args[1:], os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:            getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		GRPCAddress:           getString(lookup, "GRPC_ADDRESS", ""),
		DatabaseURI:           getString(lookup, "DATABASE_URI", ""),
		PaymentGatewayAddress: getString(lookup, "PAYMENT_GATEWAY_ADDRESS", ""),
		PaymentGatewayKey:     getString(lookup, "PAYMENT_GATEWAY_KEY", ""),
		PaymentGatewayTimeout: getDuration(lookup, "PAYMENT_GATEWAY_TIMEOUT", defaultGatewayTimeout),
		WebhookSecret:         getString(lookup, "PAYMENT_WEBHOOK_SECRET", ""),
		JWTSecret:             getString(lookup, "JWT_SECRET", defaultJWTSecret),
		Currency:              getString(lookup, "CURRENCY", defaultCurrency),
		DiscountPolicy:        getString(lookup, "DISCOUNT_POLICY", defaultDiscountPolicy),
		PaymentExpiry:         getDuration(lookup, "PAYMENT_EXPIRY", defaultPaymentExpiry),
		SweepInterval:         getDuration(lookup, "EXPIRY_SWEEP_INTERVAL", defaultSweepInterval),
		SweepBatch:            getInt(lookup, "EXPIRY_SWEEP_BATCH", defaultSweepBatch),
		WorkerPoolSize:        getInt(lookup, "WORKER_POOL_SIZE", defaultWorkerPoolSize),
		ShutdownTimeout:       getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		NotificationTopic:     getString(lookup, "NOTIFICATION_TOPIC", defaultNotificationTopic),
		RedisAddress:          getString(lookup, "REDIS_ADDRESS", ""),
		LogLevel:              getString(lookup, "LOG_LEVEL", defaultLogLevel),
	}

	fs := flag.NewFlagSet("ordercheckout", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		gatewayTimeoutStr  = cfg.PaymentGatewayTimeout.String()
		paymentExpiryStr   = cfg.PaymentExpiry.String()
		sweepIntervalStr   = cfg.SweepInterval.String()
		shutdownTimeoutStr = cfg.ShutdownTimeout.String()
		kafkaBrokersStr    = getString(lookup, "KAFKA_BROKERS", "")
	)

	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	fs.StringVar(&cfg.GRPCAddress, "grpc-address", cfg.GRPCAddress, "gRPC health server listen address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	fs.StringVar(&cfg.PaymentGatewayAddress, "g", cfg.PaymentGatewayAddress, "Payment gateway base URL")
	fs.StringVar(&cfg.PaymentGatewayKey, "gateway-key", cfg.PaymentGatewayKey, "Payment gateway API key")
	fs.StringVar(&gatewayTimeoutStr, "gateway-timeout", gatewayTimeoutStr, "Payment gateway request timeout")
	fs.StringVar(&cfg.WebhookSecret, "webhook-secret", cfg.WebhookSecret, "Secret verifying payment webhooks")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "Secret for signing auth tokens")
	fs.StringVar(&cfg.Currency, "currency", cfg.Currency, "ISO currency of all orders")
	fs.StringVar(&cfg.DiscountPolicy, "discount-policy", cfg.DiscountPolicy, "Fixed discount above subtotal: reject or clamp")
	fs.StringVar(&paymentExpiryStr, "payment-expiry", paymentExpiryStr, "Time an order may wait for payment")
	fs.StringVar(&sweepIntervalStr, "sweep-interval", sweepIntervalStr, "Interval between expiry sweeps")
	fs.IntVar(&cfg.SweepBatch, "sweep-batch", cfg.SweepBatch, "Maximum orders expired per sweep")
	fs.IntVar(&cfg.WorkerPoolSize, "worker-pool", cfg.WorkerPoolSize, "Number of concurrent expiry workers")
	fs.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")
	fs.StringVar(&kafkaBrokersStr, "kafka-brokers", kafkaBrokersStr, "Comma separated Kafka brokers for order events")
	fs.StringVar(&cfg.NotificationTopic, "notification-topic", cfg.NotificationTopic, "Kafka topic for order events")
	fs.StringVar(&cfg.RedisAddress, "redis", cfg.RedisAddress, "Redis address for the expiry sweep lease")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if cfg.PaymentGatewayTimeout, err = time.ParseDuration(gatewayTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid gateway timeout: %w", err)
	}
	if cfg.PaymentExpiry, err = time.ParseDuration(paymentExpiryStr); err != nil {
		return nil, fmt.Errorf("invalid payment expiry: %w", err)
	}
	if cfg.SweepInterval, err = time.ParseDuration(sweepIntervalStr); err != nil {
		return nil, fmt.Errorf("invalid sweep interval: %w", err)
	}
	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	cfg.KafkaBrokers = splitList(kafkaBrokersStr)

	secrets := []struct {
		env    string
		target *string
	}{
		{"JWT_SECRET_FILE", &cfg.JWTSecret},
		{"PAYMENT_GATEWAY_KEY_FILE", &cfg.PaymentGatewayKey},
		{"PAYMENT_WEBHOOK_SECRET_FILE", &cfg.WebhookSecret},
	}
	for _, s := range secrets {
		file, ok := lookup(s.env)
		if !ok || file == "" {
			continue
		}
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", strings.ToLower(s.env), err)
		}
		*s.target = strings.TrimSpace(string(content))
	}

	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = defaultSweepBatch
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.PaymentExpiry <= 0 {
		cfg.PaymentExpiry = defaultPaymentExpiry
	}
	if cfg.PaymentGatewayTimeout <= 0 {
		cfg.PaymentGatewayTimeout = defaultGatewayTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.NotificationTopic == "" {
		cfg.NotificationTopic = defaultNotificationTopic
	}
	cfg.Currency = strings.ToLower(strings.TrimSpace(cfg.Currency))
	if len(cfg.Currency) != 3 {
		return nil, fmt.Errorf("currency must be a three letter ISO code, got %q", cfg.Currency)
	}

	switch cfg.DiscountPolicy = strings.ToLower(strings.TrimSpace(cfg.DiscountPolicy)); cfg.DiscountPolicy {
	case "reject", "clamp":
	default:
		return nil, fmt.Errorf("discount policy must be reject or clamp, got %q", cfg.DiscountPolicy)
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI must be provided")
	}
	if cfg.PaymentGatewayAddress == "" {
		return nil, fmt.Errorf("payment gateway address must be provided")
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("payment webhook secret must be provided")
	}

	return cfg, nil
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
