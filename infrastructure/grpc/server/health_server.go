package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health entry of the relay, next to the server wide "" entry.
const ServiceName = "chat.relay"

// HealthServer exposes grpc.health.v1 for orchestrators and load balancers.
// Its worker polls ready and flips the serving status accordingly.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	ready    func() bool
	interval time.Duration
	log      *slog.Logger
}

func NewHealthServer(ready func() bool, interval time.Duration, log *slog.Logger) *HealthServer {
	s := &HealthServer{
		server:   grpc.NewServer(),
		health:   health.NewServer(),
		ready:    ready,
		interval: interval,
		log:      log,
	}
	grpc_health_v1.RegisterHealthServer(s.server, s.health)
	s.refresh()
	return s
}

// Serve blocks until the listener fails or Stop is called.
func (s *HealthServer) Serve(lis net.Listener) error {
	s.log.Info("gRPC health server listening", "addr", lis.Addr().String())
	return s.server.Serve(lis)
}

// Run keeps the status in sync with readiness until ctx is done,
// then reports NOT_SERVING so that traffic drains during shutdown.
func (s *HealthServer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return nil
		case <-ticker.C:
			s.refresh()
		}
	}
}

func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

func (s *HealthServer) refresh() {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if !s.ready() {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
