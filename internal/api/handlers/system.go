package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"kepler-fleet/internal/config"
	"kepler-fleet/internal/models"
	"kepler-fleet/internal/services/store"
	"kepler-fleet/internal/services/supervisor"
)

// SystemHandler handles fleet status and process diagnostics
type SystemHandler struct {
	cfg     *config.Config
	store   *store.Store
	sup     *supervisor.Supervisor
	started time.Time
}

func NewSystemHandler(cfg *config.Config, st *store.Store, sup *supervisor.Supervisor) *SystemHandler {
	return &SystemHandler{cfg: cfg, store: st, sup: sup, started: time.Now()}
}

type CameraStatus struct {
	ID           int                `json:"id"`
	Name         string             `json:"name"`
	Running      bool               `json:"running"`
	State        models.WorkerState `json:"state"`
	PID          int                `json:"pid,omitempty"`
	LastExitCode *int               `json:"lastExitCode,omitempty"`
}

type FleetStatusResponse struct {
	TotalCameras   int                   `json:"totalCameras"`
	RunningCameras int                   `json:"runningCameras"`
	Cameras        []CameraStatus        `json:"cameras"`
	Workers        []models.ProcessStats `json:"workers"`
}

// @Summary Fleet status
// @Description Every camera's worker state plus live process figures
// @Tags system
// @Produce json
// @Success 200 {object} FleetStatusResponse
// @Router /api/status [get]
func (h *SystemHandler) FleetStatus(c *gin.Context) {
	cams := lo.Map(h.store.Cameras(), func(cam models.Camera, _ int) CameraStatus {
		st := h.sup.Status(cam.ID)
		return CameraStatus{
			ID:           cam.ID,
			Name:         cam.Name,
			Running:      h.sup.IsRunning(cam.ID),
			State:        st.State,
			PID:          st.PID,
			LastExitCode: st.LastExitCode,
		}
	})
	c.JSON(http.StatusOK, FleetStatusResponse{
		TotalCameras:   len(cams),
		RunningCameras: h.sup.RunningCount(),
		Cameras:        cams,
		Workers:        h.sup.AllProcessStats(),
	})
}

// @Summary Get system stats
// @Description Supervisor process statistics
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /system/stats [get]
func (h *SystemHandler) GetStats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats": gin.H{
			"instance_id":    h.cfg.InstanceID,
			"uptime_seconds": int64(time.Since(h.started).Seconds()),
			"memory_mb":      m.Alloc / 1024 / 1024,
			"cpu_cores":      runtime.NumCPU(),
			"goroutines":     runtime.NumGoroutine(),
			"go_version":     runtime.Version(),
			"workers":        h.sup.RunningCount(),
		},
		"timestamp": time.Now().Unix(),
	})
}
