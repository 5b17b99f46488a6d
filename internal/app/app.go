package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/polkiloo/ordercheckout/internal/config"
	"github.com/polkiloo/ordercheckout/internal/usecase"
	"github.com/polkiloo/ordercheckout/internal/worker"
)

const readHeaderTimeout = 5 * time.Second

// Module wires application services, runtime components, and lifecycle hooks.
var Module = fx.Options(
	fx.Provide(
		newCheckoutFacade,
		newHTTPServer,
		newExpirySweeper,
	),
	fx.Invoke(registerLifecycle),
)

type facadeParams struct {
	fx.In

	Auth      *usecase.AuthUseCase
	Lifecycle *usecase.OrderLifecycle
	Health    HealthChecker `optional:"true"`
}

func newCheckoutFacade(p facadeParams) *CheckoutFacade {
	return NewCheckoutFacade(p.Auth, p.Lifecycle, p.Health)
}

type serverParams struct {
	fx.In

	Config *config.Config
	Router *gin.Engine
}

func newHTTPServer(p serverParams) *http.Server {
	return &http.Server{
		Addr:              p.Config.RunAddress,
		Handler:           p.Router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

type workerParams struct {
	fx.In

	Facade *CheckoutFacade
	Config *config.Config
	Logger *slog.Logger
	Lease  worker.Lease `optional:"true"`
}

func newExpirySweeper(p workerParams) *worker.ExpirySweeper {
	sweeper := worker.NewExpirySweeper(
		p.Facade,
		p.Config.SweepInterval,
		p.Config.SweepBatch,
		p.Config.WorkerPoolSize,
		p.Logger,
	)
	if p.Lease != nil {
		sweeper.SetLease(p.Lease)
	}
	return sweeper
}

type lifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *slog.Logger
	Server     *http.Server
	Sweeper    *worker.ExpirySweeper
	Config     *config.Config
}

func registerLifecycle(p lifecycleParams) {
	var cancelSweep context.CancelFunc

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Logger.Info("starting ordercheckout", slog.String("addr", p.Server.Addr))

			// the start context expires once startup completes
			sweepCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			cancelSweep = cancel
			p.Sweeper.Start(sweepCtx)

			go func() {
				if err := p.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					p.Logger.Error("http server terminated", slog.String("error", err.Error()))
					_ = p.Shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx := ctx
			cancel := func() {}
			if _, ok := ctx.Deadline(); !ok {
				shutdownCtx, cancel = context.WithTimeout(ctx, p.Config.ShutdownTimeout)
			}
			defer cancel()

			// stop accepting webhooks and checkouts before the sweeper drains
			if err := p.Server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			p.Sweeper.Stop()
			if cancelSweep != nil {
				cancelSweep()
			}
			p.Logger.Info("ordercheckout stopped")
			return nil
		},
	})
}
