package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kepler-fleet/internal/config"
)

type HealthHandler struct {
	cfg *config.Config
}

func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{cfg: cfg}
}

type HealthResponse struct {
	Status     string `json:"status" example:"healthy"`
	InstanceID string `json:"instance_id" example:"fleet-1"`
}

type InstanceInfoResponse struct {
	InstanceID  string   `json:"instance_id" example:"fleet-1"`
	Status      string   `json:"status" example:"running"`
	Version     string   `json:"version" example:"1.0.0"`
	Environment string   `json:"environment" example:"development"`
	Features    []string `json:"features"`
}

// @Summary Health check
// @Description Check if the supervisor is healthy and responsive
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		InstanceID: h.cfg.InstanceID,
	})
}

// @Summary Instance information
// @Description Basic instance information and enabled integrations
// @Tags health
// @Produce json
// @Success 200 {object} InstanceInfoResponse
// @Router / [get]
func (h *HealthHandler) InstanceInfo(c *gin.Context) {
	features := []string{"worker_supervisor", "model_catalog", "event_stream"}
	if h.cfg.MetricsEnabled {
		features = append(features, "metrics")
	}
	if h.cfg.NatsEnabled {
		features = append(features, "nats_events")
	}
	if h.cfg.GRPCEnabled {
		features = append(features, "grpc_health")
	}
	c.JSON(http.StatusOK, InstanceInfoResponse{
		InstanceID:  h.cfg.InstanceID,
		Status:      "running",
		Version:     h.cfg.Version,
		Environment: h.cfg.Environment,
		Features:    features,
	})
}
