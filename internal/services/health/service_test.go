package health

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"kepler-fleet/internal/models"
)

func check(t *testing.T, s *Service, name string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	t.Helper()
	resp, err := s.Health().Check(context.Background(), &healthpb.HealthCheckRequest{Service: name})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

func TestOverallServing(t *testing.T) {
	s := NewService(zerolog.Nop())
	st, err := check(t, s, "")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if st != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("Expected SERVING, got %v", st)
	}
}

func TestCameraFollowsEvents(t *testing.T) {
	s := NewService(zerolog.Nop())

	if _, err := check(t, s, ServiceName(1)); status.Code(err) != codes.NotFound {
		t.Fatalf("Expected NotFound before any event, got %v", err)
	}

	s.Publish(models.WorkerEvent{CameraID: 1, Kind: models.EventStarted})
	if st, _ := check(t, s, "camera-1"); st != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("Expected SERVING after start, got %v", st)
	}

	s.Publish(models.WorkerEvent{CameraID: 1, Kind: models.EventCrashed})
	if st, _ := check(t, s, "camera-1"); st != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("Expected NOT_SERVING after crash, got %v", st)
	}
}

func TestServeOverNetwork(t *testing.T) {
	s := NewService(zerolog.Nop())
	if err := s.Serve("127.0.0.1:0"); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	defer s.Shutdown(context.Background())

	conn, err := grpc.NewClient(s.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("Expected SERVING, got %v", resp.GetStatus())
	}
}

func TestShutdownWithoutServe(t *testing.T) {
	s := NewService(zerolog.Nop())
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if st, _ := check(t, s, ""); st != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("Expected NOT_SERVING after shutdown, got %v", st)
	}
}
