package gateway

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/ordercheckout/internal/config"
	"github.com/polkiloo/ordercheckout/internal/metrics"
)

// Module exposes the payment gateway client to fx graph.
var Module = fx.Provide(newClient)

type clientParams struct {
	fx.In

	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

func newClient(p clientParams) (*HTTPClient, error) {
	return NewHTTPClient(p.Config.PaymentGatewayAddress, p.Logger, Options{
		APIKey:  p.Config.PaymentGatewayKey,
		Timeout: p.Config.PaymentGatewayTimeout,
		Metrics: p.Metrics,
	})
}
