package di

import (
	"go.uber.org/fx"

	"github.com/polkiloo/ordercheckout/internal/adapter/gateway"
	"github.com/polkiloo/ordercheckout/internal/adapter/lease"
	"github.com/polkiloo/ordercheckout/internal/adapter/notify"
	"github.com/polkiloo/ordercheckout/internal/app"
	"github.com/polkiloo/ordercheckout/internal/config"
	"github.com/polkiloo/ordercheckout/internal/logger"
	"github.com/polkiloo/ordercheckout/internal/metrics"
	"github.com/polkiloo/ordercheckout/internal/pkg/auth"
	"github.com/polkiloo/ordercheckout/internal/pricing"
	"github.com/polkiloo/ordercheckout/internal/server/grpchealth"
	"github.com/polkiloo/ordercheckout/internal/server/http/handlers"
	"github.com/polkiloo/ordercheckout/internal/server/http/router"
	"github.com/polkiloo/ordercheckout/internal/storage/postgres"
	"github.com/polkiloo/ordercheckout/internal/usecase"
)

// Module assembles the whole checkout service graph. Extra options are appended last,
// so tests can swap adapters with fx.Replace.
func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		metrics.Module,
		auth.Module,
		pricing.Module,
		postgres.Module,
		gateway.Module,
		notify.Module,
		lease.Module,
		usecase.Module,
		fx.Provide(
			func(c *gateway.HTTPClient) usecase.PaymentGateway { return c },
			func(s *postgres.Storage) app.HealthChecker { return s },
			func(f *app.CheckoutFacade) handlers.CheckoutFacade { return f },
			func(f *app.CheckoutFacade) grpchealth.Checker { return f },
		),
		router.Module,
		grpchealth.Module,
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}
