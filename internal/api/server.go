package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"kepler-fleet/internal/api/handlers"
	"kepler-fleet/internal/api/middleware"
	"kepler-fleet/internal/config"
	"kepler-fleet/internal/services"
	"kepler-fleet/internal/ws"
)

type Server struct {
	config    *config.Config
	container *services.ServiceContainer
	router    *gin.Engine
	server    *http.Server

	healthHandler *handlers.HealthHandler
	cameraHandler *handlers.CameraHandler
	modelHandler  *handlers.ModelHandler
	systemHandler *handlers.SystemHandler
	logHandler    *handlers.LogHandler
	eventsHandler *ws.Handler
}

func NewServer(cfg *config.Config, container *services.ServiceContainer) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.MaxMultipartMemory = 32 << 20

	events := ws.NewHandler(container.Hub)
	events.Replay = container.Events.Recent

	return &Server{
		config:        cfg,
		container:     container,
		router:        router,
		healthHandler: handlers.NewHealthHandler(cfg),
		cameraHandler: handlers.NewCameraHandler(container.Cameras, container.Supervisor),
		modelHandler:  handlers.NewModelHandler(container.Models),
		systemHandler: handlers.NewSystemHandler(cfg, container.Store, container.Supervisor),
		logHandler:    handlers.NewLogHandler(cfg.LogDir, container.Cameras),
		eventsHandler: events,
	}
}

func (s *Server) Setup() error {
	s.setupMiddleware()

	s.setupRoutes()

	if s.config.SwaggerEnabled {
		s.setupSwagger()
	}

	s.server = &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestContext())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("Starting fleet supervisor API")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping fleet supervisor API")
	return s.server.Shutdown(ctx)
}
