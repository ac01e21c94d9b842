package health

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"kepler-fleet/internal/models"
)

// ServiceName is the health service name reported for a camera's worker.
func ServiceName(cameraID int) string {
	return fmt.Sprintf("camera-%d", cameraID)
}

// Service serves the standard gRPC health protocol. The empty service name
// reports the supervisor itself; each camera reports SERVING while its worker
// is live.
type Service struct {
	hs  *health.Server
	srv *grpc.Server
	lis net.Listener
	log zerolog.Logger
}

func NewService(logger zerolog.Logger) *Service {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return &Service{hs: hs, log: logger}
}

// Health exposes the underlying health server.
func (s *Service) Health() healthpb.HealthServer {
	return s.hs
}

func (s *Service) Publish(ev models.WorkerEvent) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ev.Kind == models.EventStarted {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.hs.SetServingStatus(ServiceName(ev.CameraID), status)
}

// Serve listens on addr and serves in the background.
func (s *Service) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen for gRPC health on %s: %w", addr, err)
	}
	s.lis = lis
	s.srv = grpc.NewServer()
	healthpb.RegisterHealthServer(s.srv, s.hs)

	go func() {
		if err := s.srv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
			s.log.Error().Err(err).Msg("gRPC health server stopped")
		}
	}()
	s.log.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server listening")
	return nil
}

// Addr is the bound address once Serve succeeded.
func (s *Service) Addr() string {
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// Shutdown marks everything NOT_SERVING and stops the server, forcing it
// when ctx ends first.
func (s *Service) Shutdown(ctx context.Context) error {
	s.hs.Shutdown()
	if s.srv == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.srv.Stop()
		return ctx.Err()
	}
}
