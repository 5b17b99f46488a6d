// Package grpchealth serves the standard grpc.health.v1 service so orchestrators
// can probe the process over gRPC. Status follows the same check as /healthz.
package grpchealth

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported alongside the overall ("") status.
const ServiceName = "ordercheckout.Checkout"

const probeTimeout = 2 * time.Second

// Checker reports whether the service can take traffic.
type Checker interface {
	Health(ctx context.Context) error
}

// Server wraps a grpc.Server exposing only the health service.
type Server struct {
	server   *grpc.Server
	health   *health.Server
	checker  Checker
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

// New builds a server that re-probes checker every interval.
func New(checker Checker, interval time.Duration, logger *slog.Logger) *Server {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	s := &Server{
		server:   grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler())),
		health:   health.NewServer(),
		checker:  checker,
		interval: interval,
		logger:   logger,
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Serve probes once, keeps probing in the background and serves lis until Stop.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return grpc.ErrServerStopped
	}
	probeCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	s.probe(probeCtx)
	go s.watch(probeCtx)

	return s.server.Serve(lis)
}

// Stop reports NOT_SERVING, then drains open streams until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.health.Shutdown()

	s.mu.Lock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.wg.Wait()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		<-done
		return ctx.Err()
	}
}

func (s *Server) watch(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

func (s *Server) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := s.checker.Health(ctx); err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("health probe failed", slog.String("error", err.Error()))
		}
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
