package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"kepler-fleet/internal/config"
	"kepler-fleet/internal/models"
)

// Service publishes worker events to NATS, one subject per camera.
type Service struct {
	conn    *nats.Conn
	subject string
	log     zerolog.Logger
}

func NewService(cfg *config.Config, logger zerolog.Logger) (*Service, error) {
	opts := []nats.Option{
		nats.Name("kepler-fleet-" + cfg.InstanceID),
		nats.Timeout(cfg.NatsConnectTimeout),
		nats.ReconnectWait(cfg.NatsReconnectWait),
		nats.MaxReconnects(cfg.NatsMaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.NatsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.NatsURL, err)
	}

	logger.Info().Str("url", cfg.NatsURL).Str("subject", cfg.NatsSubject).Msg("NATS connection established")

	return &Service{
		conn:    conn,
		subject: cfg.NatsSubject,
		log:     logger,
	}, nil
}

// Subject is the subject a camera's events are published on.
func Subject(prefix string, cameraID int) string {
	return fmt.Sprintf("%s.%d", prefix, cameraID)
}

// Publish sends ev as JSON. Failures are logged; the supervisor never waits
// on the broker.
func (s *Service) Publish(ev models.WorkerEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to encode worker event")
		return
	}
	if err := s.conn.Publish(Subject(s.subject, ev.CameraID), payload); err != nil {
		s.log.Warn().Err(err).Int("camera_id", ev.CameraID).Str("kind", string(ev.Kind)).Msg("Failed to publish worker event")
	}
}

func (s *Service) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

func (s *Service) Shutdown(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	// Try graceful drain, fall back to immediate close
	if err := s.conn.Drain(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to drain NATS connection gracefully, closing immediately")
		s.conn.Close()
		return nil
	}
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for s.conn.IsDraining() {
		select {
		case <-ctx.Done():
			s.conn.Close()
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}
