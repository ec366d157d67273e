package grpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"chat-server/internal/observability"
)

// ServiceName is the health service name reported next to the overall ("") status.
const ServiceName = "chat-server"

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// HealthServer serves grpc.health.v1.Health on the internal port.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	checks map[string]Check
	logger *slog.Logger
}

func NewHealthServer(checks map[string]Check, logger *slog.Logger) *HealthServer {
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	s := &HealthServer{server: server, health: hs, checks: checks, logger: logger}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	return s
}

func (s *HealthServer) Serve(lis net.Listener) error {
	s.logger.Info("grpc health server listening", "addr", lis.Addr().String())
	return s.server.Serve(lis)
}

// Refresh runs every check once and publishes the combined status.
func (s *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.Warn("health check failed", "check", name, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.setStatus(status)
	return status
}

// Watch refreshes the status every interval until ctx is done.
func (s *HealthServer) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, interval/2)
			s.Refresh(checkCtx)
			cancel()
		}
	}
}

// Shutdown flips every service to NOT_SERVING and stops the server gracefully.
func (s *HealthServer) Shutdown() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

func (s *HealthServer) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
