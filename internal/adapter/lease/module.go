package lease

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/polkiloo/ordercheckout/internal/config"
	"github.com/polkiloo/ordercheckout/internal/worker"
)

// Lease is a sweep lease owning a connection that must be closed on shutdown.
type Lease interface {
	worker.Lease
	Close() error
}

// Module provides the expiry sweep lease.
var Module = fx.Options(
	fx.Provide(
		newLease,
		func(l Lease) worker.Lease { return l },
	),
	fx.Invoke(registerLifecycle),
)

type leaseParams struct {
	fx.In

	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

func newLease(p leaseParams) (Lease, error) {
	if p.Config.RedisAddress == "" {
		p.Logger.Info("no redis configured, expiry sweep runs without a lease")
		return Local{}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: p.Config.RedisAddress})
	if err := client.Ping(p.Ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	// two intervals let the holder renew on its next tick before the lease lapses
	return NewRedisLease(client, SweepKey, 2*p.Config.SweepInterval), nil
}

func registerLifecycle(lc fx.Lifecycle, l Lease, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("closing sweep lease")
			return l.Close()
		},
	})
}
