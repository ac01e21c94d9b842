package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"kepler-fleet/internal/config"
	"kepler-fleet/internal/logging"
	"kepler-fleet/internal/services/camera"
	"kepler-fleet/internal/services/catalog"
	"kepler-fleet/internal/services/events"
	"kepler-fleet/internal/services/health"
	"kepler-fleet/internal/services/messaging"
	"kepler-fleet/internal/services/metrics"
	"kepler-fleet/internal/services/store"
	"kepler-fleet/internal/services/supervisor"
	"kepler-fleet/internal/ws"
)

// eventHistory is how many recent worker events are replayed to new
// websocket clients.
const eventHistory = 100

// ServiceContainer holds all services
type ServiceContainer struct {
	Config     *config.Config
	Store      *store.Store
	Events     *events.Bus
	Supervisor *supervisor.Supervisor
	Cameras    *camera.Registry
	Models     *catalog.Registry
	Metrics    *metrics.Collector
	Health     *health.Service
	Hub        *ws.Hub
	Messaging  *messaging.Service // nil unless NATS is enabled
}

// NewServiceContainer loads the persisted configuration and wires every
// service. Optional integrations that fail to come up are logged and skipped.
func NewServiceContainer(cfg *config.Config) (*ServiceContainer, error) {
	st := store.New(cfg.ConfigDir, logging.NewServiceLogger(cfg, "store"))
	if err := st.Load(); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	bus := events.NewBus(eventHistory, logging.NewServiceLogger(cfg, "events"))
	sup := supervisor.New(supervisor.DefaultOptions(cfg), st, bus, logging.NewServiceLogger(cfg, "supervisor"))

	sc := &ServiceContainer{
		Config:     cfg,
		Store:      st,
		Events:     bus,
		Supervisor: sup,
		Cameras:    camera.NewRegistry(camera.DefaultOptions(cfg), st, sup, logging.NewServiceLogger(cfg, "cameras")),
		Models:     catalog.NewRegistry(st, cfg.WorkerDir, cfg.CustomModelsDir, logging.NewServiceLogger(cfg, "models")),
		Health:     health.NewService(logging.NewServiceLogger(cfg, "health")),
		Hub:        ws.NewHub(logging.NewServiceLogger(cfg, "events_ws")),
	}
	sc.Metrics = metrics.NewCollector(fleetGauges{sc})

	bus.Subscribe(sc.Metrics)
	bus.Subscribe(sc.Health)
	bus.Subscribe(sc.Hub)

	if cfg.NatsEnabled {
		msg, err := messaging.NewService(cfg, logging.NewServiceLogger(cfg, "messaging"))
		if err != nil {
			log.Warn().Err(err).Msg("NATS unavailable, worker events will not be published")
		} else {
			sc.Messaging = msg
			bus.Subscribe(msg)
		}
	}

	if cfg.GRPCEnabled {
		if err := sc.Health.Serve(fmt.Sprintf("%s:%d", cfg.Host, cfg.GRPCPort)); err != nil {
			return nil, err
		}
	}

	return sc, nil
}

// Shutdown stops every worker first, then the integrations that report on them.
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	var errs []error
	if sc.Supervisor != nil {
		if err := sc.Supervisor.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("supervisor: %w", err))
		}
	}
	if sc.Hub != nil {
		sc.Hub.Close()
	}
	if sc.Health != nil {
		if err := sc.Health.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("health: %w", err))
		}
	}
	if sc.Messaging != nil {
		if err := sc.Messaging.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("messaging: %w", err))
		}
	}
	return errors.Join(errs...)
}

type fleetGauges struct{ sc *ServiceContainer }

func (g fleetGauges) RunningCount() int { return g.sc.Supervisor.RunningCount() }
func (g fleetGauges) CameraCount() int  { return len(g.sc.Store.Cameras()) }
