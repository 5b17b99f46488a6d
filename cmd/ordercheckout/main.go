// Command ordercheckout serves the checkout and payment API and runs the expiry sweeper.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/fx"

	"github.com/polkiloo/ordercheckout/internal/di"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := fx.New(
		fx.Provide(func() context.Context { return ctx }),
		di.Module(),
	)

	if code := run(ctx, app); code != 0 {
		stop()
		exit(code)
	}
}
