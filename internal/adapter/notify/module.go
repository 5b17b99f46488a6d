package notify

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/ordercheckout/internal/config"
	"github.com/polkiloo/ordercheckout/internal/usecase"
)

// Dispatcher is a notifier owning a connection that must be closed on shutdown.
type Dispatcher interface {
	usecase.Notifier
	Close() error
}

// Module provides the order event dispatcher.
var Module = fx.Options(
	fx.Provide(
		newDispatcher,
		func(d Dispatcher) usecase.Notifier { return d },
	),
	fx.Invoke(registerLifecycle),
)

func newDispatcher(cfg *config.Config, logger *slog.Logger) Dispatcher {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("no kafka brokers configured, order events are logged only")
		return NewLogDispatcher(logger)
	}
	return NewKafkaDispatcher(cfg.KafkaBrokers, cfg.NotificationTopic, logger)
}

func registerLifecycle(lc fx.Lifecycle, d Dispatcher, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("closing order event dispatcher")
			return d.Close()
		},
	})
}
