// Package grpc serves the operational gRPC surface: the standard health
// service, driven by the same readiness probe as /readyz, plus reflection.
package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name clients may query besides "".
const ServiceName = "marketplace.Messaging"

type HealthServer struct {
	Probe    func(ctx context.Context) error
	Interval time.Duration
	Logger   *slog.Logger

	server *grpc.Server
	health *health.Server
}

func NewHealthServer(probe func(ctx context.Context) error, interval time.Duration, logger *slog.Logger) *HealthServer {
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return &HealthServer{
		Probe:    probe,
		Interval: interval,
		Logger:   logger,
		server:   srv,
		health:   hs,
	}
}

// Serve blocks until ctx is cancelled or the listener fails.
func (s *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	s.refresh(ctx)
	go s.watch(ctx)
	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.server.GracefulStop()
	}()
	if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *HealthServer) watch(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *HealthServer) refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.Probe != nil {
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.Probe(probeCtx)
		cancel()
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			if s.Logger != nil && ctx.Err() == nil {
				s.Logger.WarnContext(ctx, "readiness probe failed", "err", err)
			}
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
