package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kepler-fleet/internal/api/middleware"
	"kepler-fleet/internal/services/metrics"
)

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.InstanceInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)

	api := s.router.Group("/api")

	cameras := api.Group("/cameras")
	{
		cameras.GET("", s.cameraHandler.ListCameras)
		cameras.POST("", s.cameraHandler.AddCamera)
		cameras.POST("/start-all", s.cameraHandler.StartAll)
		cameras.POST("/stop-all", s.cameraHandler.StopAll)
		cameras.PUT("/:id", s.cameraHandler.UpdateCamera)
		cameras.DELETE("/:id", s.cameraHandler.DeleteCamera)
		cameras.POST("/:id/start", s.cameraHandler.StartCamera)
		cameras.POST("/:id/stop", s.cameraHandler.StopCamera)
		cameras.POST("/:id/restart", s.cameraHandler.RestartCamera)
		cameras.GET("/:id/check", s.cameraHandler.CheckCamera)
		cameras.GET("/:id/process", s.cameraHandler.ProcessStats)
		cameras.PUT("/:id/settings", s.cameraHandler.UpdateSettings)
		cameras.GET("/:id/detection-config", s.cameraHandler.GetDetectionConfig)
		cameras.POST("/:id/detection-config", s.cameraHandler.SetDetectionConfig)
		cameras.GET("/:id/log", s.logHandler.GetCameraLog)
		cameras.GET("/:id/log/download", s.logHandler.DownloadCameraLog)
	}

	models := api.Group("/models")
	{
		models.GET("", s.modelHandler.ListModels)
		models.POST("", s.modelHandler.AddModel)
		models.GET("/:id/names", s.modelHandler.ModelNames)
		models.DELETE("/:id", s.modelHandler.DeleteModel)

		upload := models.Group("", middleware.MaxBodyBytes(s.config.MaxUploadBytes))
		upload.POST("/upload", s.modelHandler.UploadModel)
		upload.PUT("/:id", s.modelHandler.UpdateModel)
	}

	api.GET("/status", s.systemHandler.FleetStatus)
	api.GET("/events", gin.WrapH(s.eventsHandler))

	system := s.router.Group("/system")
	{
		system.GET("/stats", s.systemHandler.GetStats)
	}

	if s.config.MetricsEnabled {
		reg := metrics.NewRegistry(s.container.Metrics)
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}
}
