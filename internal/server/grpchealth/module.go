package grpchealth

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"go.uber.org/fx"
	"google.golang.org/grpc"

	"github.com/polkiloo/ordercheckout/internal/config"
)

const probeInterval = 5 * time.Second

// Module provides the gRPC health server and serves it when an address is configured.
var Module = fx.Options(
	fx.Provide(newServer),
	fx.Invoke(registerLifecycle),
)

type serverParams struct {
	fx.In

	Checker Checker
	Logger  *slog.Logger
}

func newServer(p serverParams) *Server {
	return New(p.Checker, probeInterval, p.Logger)
}

type lifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Server     *Server
	Config     *config.Config
	Logger     *slog.Logger
}

func registerLifecycle(p lifecycleParams) {
	if p.Config.GRPCAddress == "" {
		return
	}
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			lis, err := net.Listen("tcp", p.Config.GRPCAddress)
			if err != nil {
				return err
			}
			p.Logger.Info("grpc health server listening", slog.String("addr", lis.Addr().String()))
			go func() {
				if err := p.Server.Serve(context.WithoutCancel(ctx), lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
					p.Logger.Error("grpc health server failed", slog.String("error", err.Error()))
					_ = p.Shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("stopping grpc health server")
			return p.Server.Stop(ctx)
		},
	})
}
