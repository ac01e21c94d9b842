package messaging

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"kepler-fleet/internal/config"
)

func TestSubject(t *testing.T) {
	if got := Subject("fleet.workers", 7); got != "fleet.workers.7" {
		t.Errorf("Expected fleet.workers.7, got %s", got)
	}
}

func TestNewServiceUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.NatsURL = "nats://127.0.0.1:1"
	cfg.NatsConnectTimeout = 200 * time.Millisecond

	svc, err := NewService(cfg, zerolog.Nop())
	if err == nil {
		svc.Shutdown(t.Context())
		t.Fatal("Expected connection error")
	}
}

func TestNilConnection(t *testing.T) {
	var s Service
	if s.IsConnected() {
		t.Error("Expected disconnected")
	}
	if err := s.Shutdown(t.Context()); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
}
