package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"kepler-fleet/internal/logging"
	"kepler-fleet/internal/models"
	"kepler-fleet/internal/services/camera"
	"kepler-fleet/internal/services/supervisor"
)

type CameraHandler struct {
	cameras *camera.Registry
	sup     *supervisor.Supervisor
}

func NewCameraHandler(cameras *camera.Registry, sup *supervisor.Supervisor) *CameraHandler {
	return &CameraHandler{cameras: cameras, sup: sup}
}

type CameraResponse struct {
	Status string        `json:"status" example:"ok"`
	Camera models.Camera `json:"camera"`
}

type UpdateCameraResponse struct {
	Status    string              `json:"status" example:"ok"`
	Camera    models.Camera       `json:"camera"`
	Restarted bool                `json:"restarted"`
	Start     *models.StartResult `json:"start,omitempty"`
}

type StartAllResponse struct {
	Status  string               `json:"status" example:"ok"`
	Results []models.StartResult `json:"results"`
}

type StopAllResponse struct {
	Status  string              `json:"status" example:"ok"`
	Results []models.StopResult `json:"results"`
}

type SettingsResponse struct {
	Status   string                `json:"status" example:"ok"`
	Settings models.StreamSettings `json:"settings"`
}

type DetectionConfigResponse struct {
	Status    string                 `json:"status" example:"ok"`
	CameraID  int                    `json:"cameraId"`
	Config    models.DetectionConfig `json:"config"`
	Restarted bool                   `json:"restarted"`
	Start     *models.StartResult    `json:"start,omitempty"`
}

// ListCameras lists all cameras
// @Summary List cameras
// @Description Every configured camera with its worker state and stream URL
// @Tags cameras
// @Produce json
// @Success 200 {array} models.CameraView
// @Router /api/cameras [get]
func (h *CameraHandler) ListCameras(c *gin.Context) {
	c.JSON(http.StatusOK, h.cameras.List())
}

// AddCamera creates a camera
// @Summary Add a camera
// @Description Assigns the next id and the lowest free stream port
// @Tags cameras
// @Accept json
// @Produce json
// @Param request body models.CameraInput true "Camera"
// @Success 200 {object} CameraResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/cameras [post]
func (h *CameraHandler) AddCamera(c *gin.Context) {
	var in models.CameraInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	cam, err := h.cameras.Add(c.Request.Context(), in)
	if err != nil {
		respondError(c, err, "Failed to add camera")
		return
	}
	logging.SetCamera(c, cam.ID)
	logging.Info(c).Str("name", cam.Name).Int("port", cam.Port).Msg("Camera added")
	c.JSON(http.StatusOK, CameraResponse{Status: "ok", Camera: cam})
}

// UpdateCamera edits a camera
// @Summary Update a camera
// @Description Merges the provided fields; a running worker is restarted
// @Tags cameras
// @Accept json
// @Produce json
// @Param id path int true "Camera ID"
// @Param request body models.CameraInput true "Fields to change"
// @Success 200 {object} UpdateCameraResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/cameras/{id} [put]
func (h *CameraHandler) UpdateCamera(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	var in models.CameraInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.cameras.Update(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err, "Failed to update camera")
		return
	}
	c.JSON(http.StatusOK, UpdateCameraResponse{Status: "ok", Camera: res.Camera, Restarted: res.Restarted, Start: res.Start})
}

// DeleteCamera removes a camera
// @Summary Delete a camera
// @Description Stops its worker and removes the camera and its detection settings
// @Tags cameras
// @Param id path int true "Camera ID"
// @Success 200 {object} StatusResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/cameras/{id} [delete]
func (h *CameraHandler) DeleteCamera(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	if err := h.cameras.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete camera")
		return
	}
	logging.Info(c).Msg("Camera deleted")
	c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}

// StartCamera starts a camera's worker
// @Summary Start a camera
// @Tags workers
// @Produce json
// @Param id path int true "Camera ID"
// @Success 200 {object} models.StartResult
// @Failure 404 {object} ErrorResponse
// @Router /api/cameras/{id}/start [post]
func (h *CameraHandler) StartCamera(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	res, err := h.sup.Start(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to start camera")
		return
	}
	logging.Info(c).Str("status", res.Status).Msg("Start requested")
	c.JSON(http.StatusOK, res)
}

// StopCamera stops a camera's worker
// @Summary Stop a camera
// @Tags workers
// @Produce json
// @Param id path int true "Camera ID"
// @Success 200 {object} models.StopResult
// @Failure 404 {object} ErrorResponse
// @Router /api/cameras/{id}/stop [post]
func (h *CameraHandler) StopCamera(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	res, err := h.sup.Stop(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to stop camera")
		return
	}
	logging.Info(c).Str("status", res.Status).Msg("Stop requested")
	c.JSON(http.StatusOK, res)
}

// RestartCamera restarts a camera's worker
// @Summary Restart a camera
// @Description Stops the worker if running, waits the settle delay and starts it
// @Tags workers
// @Produce json
// @Param id path int true "Camera ID"
// @Success 200 {object} models.StartResult
// @Failure 404 {object} ErrorResponse
// @Router /api/cameras/{id}/restart [post]
func (h *CameraHandler) RestartCamera(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	res, err := h.sup.Restart(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to restart camera")
		return
	}
	c.JSON(http.StatusOK, res)
}

// StartAll starts every camera
// @Summary Start all cameras
// @Description Sequential, paced by the settle delay
// @Tags workers
// @Produce json
// @Success 200 {object} StartAllResponse
// @Router /api/cameras/start-all [post]
func (h *CameraHandler) StartAll(c *gin.Context) {
	results := h.sup.StartAll(c.Request.Context())
	c.JSON(http.StatusOK, StartAllResponse{Status: "ok", Results: results})
}

// StopAll stops every camera
// @Summary Stop all cameras
// @Tags workers
// @Produce json
// @Success 200 {object} StopAllResponse
// @Router /api/cameras/stop-all [post]
func (h *CameraHandler) StopAll(c *gin.Context) {
	results := h.sup.StopAll(c.Request.Context())
	c.JSON(http.StatusOK, StopAllResponse{Status: "ok", Results: results})
}

// CheckCamera probes a camera
// @Summary Check camera connectivity
// @Description TCP probe of the camera's RTSP port
// @Tags cameras
// @Produce json
// @Param id path int true "Camera ID"
// @Success 200 {object} camera.CheckResult
// @Failure 404 {object} ErrorResponse
// @Router /api/cameras/{id}/check [get]
func (h *CameraHandler) CheckCamera(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	res, err := h.cameras.Check(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to check camera")
		return
	}
	c.JSON(http.StatusOK, res)
}

// ProcessStats reports the worker's resource usage
// @Summary Worker process stats
// @Tags workers
// @Produce json
// @Param id path int true "Camera ID"
// @Success 200 {object} models.ProcessStats
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/cameras/{id}/process [get]
func (h *CameraHandler) ProcessStats(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	if _, err := h.cameras.Get(id); err != nil {
		respondError(c, err, "Failed to read process stats")
		return
	}
	stats, live, err := h.sup.ProcessStats(id)
	if err != nil {
		respondError(c, err, "Failed to read process stats")
		return
	}
	if !live {
		c.JSON(http.StatusNotFound, gin.H{"status": models.StopNotRunning, "cameraId": id})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// UpdateSettings merges display settings
// @Summary Update display settings
// @Description Merges the provided keys into the camera's display settings; the worker is not restarted
// @Tags cameras
// @Accept json
// @Produce json
// @Param id path int true "Camera ID"
// @Param request body models.StreamSettings true "Settings to change"
// @Success 200 {object} SettingsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/cameras/{id}/settings [put]
func (h *CameraHandler) UpdateSettings(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	patch, ok := readJSONBody(c)
	if !ok {
		return
	}
	settings, err := h.cameras.UpdateSettings(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err, "Failed to update settings")
		return
	}
	c.JSON(http.StatusOK, SettingsResponse{Status: "ok", Settings: settings})
}

// GetDetectionConfig returns detection settings
// @Summary Get detection settings
// @Tags detection
// @Produce json
// @Param id path int true "Camera ID"
// @Success 200 {object} models.DetectionConfig
// @Failure 404 {object} ErrorResponse
// @Router /api/cameras/{id}/detection-config [get]
func (h *CameraHandler) GetDetectionConfig(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	cfg, err := h.cameras.DetectionConfig(id)
	if err != nil {
		respondError(c, err, "Failed to read detection settings")
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// SetDetectionConfig replaces detection settings
// @Summary Set detection settings
// @Description Replaces the camera's detection settings; a running worker is restarted
// @Tags detection
// @Accept json
// @Produce json
// @Param id path int true "Camera ID"
// @Param request body models.DetectionConfig true "Detection settings"
// @Success 200 {object} DetectionConfigResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/cameras/{id}/detection-config [post]
func (h *CameraHandler) SetDetectionConfig(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	var cfg models.DetectionConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.cameras.SetDetectionConfig(c.Request.Context(), id, cfg)
	if err != nil {
		respondError(c, err, "Failed to save detection settings")
		return
	}
	logging.Info(c).Bool("restarted", res.Restarted).Msg("Detection settings saved")
	c.JSON(http.StatusOK, DetectionConfigResponse{
		Status:    "ok",
		CameraID:  id,
		Config:    res.Config,
		Restarted: res.Restarted,
		Start:     res.Start,
	})
}

func readJSONBody(c *gin.Context) (json.RawMessage, bool) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "failed to read request body")
		return nil, false
	}
	if !json.Valid(data) {
		badRequest(c, "request body must be a JSON object")
		return nil, false
	}
	return data, true
}
