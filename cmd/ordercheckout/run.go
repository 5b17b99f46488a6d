package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/fx"
)

var (
	exit             = os.Exit
	stderr io.Writer = os.Stderr
)

type application interface {
	Start(context.Context) error
	Stop(context.Context) error
	Done() <-chan os.Signal
}

var _ application = (*fx.App)(nil)

// run blocks until ctx is cancelled or the app asks to shut down, and returns the exit code.
func run(ctx context.Context, app application) int {
	if err := app.Start(ctx); err != nil {
		fmt.Fprintf(stderr, "failed to start ordercheckout: %v\n", err)
		return 1
	}

	select {
	case <-ctx.Done():
	case <-app.Done():
	}

	if err := app.Stop(context.Background()); err != nil {
		fmt.Fprintf(stderr, "failed to stop ordercheckout: %v\n", err)
		return 1
	}
	return 0
}
