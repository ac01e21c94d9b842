package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"kepler-fleet/internal/config"
)

func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	return log.With().Str("instance_id", cfg.InstanceID).Str("service", service).Logger()
}

func WithCamera(base zerolog.Logger, cameraID int) zerolog.Logger {
	return base.With().Int("camera_id", cameraID).Logger()
}
