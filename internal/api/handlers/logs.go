package handlers

import (
	"bufio"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"kepler-fleet/internal/services/camera"
	"kepler-fleet/pkg/logger"
)

const (
	defaultLogLines = 200
	maxLogLines     = 5000
)

// LogHandler serves the per-camera worker logs.
type LogHandler struct {
	logDir  string
	cameras *camera.Registry
}

func NewLogHandler(logDir string, cameras *camera.Registry) *LogHandler {
	return &LogHandler{logDir: logDir, cameras: cameras}
}

type CameraLogResponse struct {
	CameraID  int       `json:"cameraId"`
	SizeBytes int64     `json:"sizeBytes"`
	Modified  time.Time `json:"modified"`
	Lines     []string  `json:"lines"`
}

// GetCameraLog godoc
// @Summary Tail a camera's worker log
// @Description Last lines of the worker output and supervisor records for a camera
// @Tags logs
// @Produce json
// @Param id path int true "Camera ID"
// @Param lines query int false "Number of lines to return (default: 200)"
// @Success 200 {object} CameraLogResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/cameras/{id}/log [get]
func (h *LogHandler) GetCameraLog(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	if _, err := h.cameras.Get(id); err != nil {
		respondError(c, err, "Failed to read camera log")
		return
	}

	n := defaultLogLines
	if s := c.Query("lines"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			n = min(parsed, maxLogLines)
		}
	}

	path := logger.Path(h.logDir, id)
	stat, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no log recorded for this camera yet"})
		return
	}
	if err != nil {
		respondError(c, err, "Failed to stat camera log")
		return
	}

	lines, err := tail(path, n)
	if err != nil {
		respondError(c, err, "Failed to read camera log")
		return
	}
	c.JSON(http.StatusOK, CameraLogResponse{
		CameraID:  id,
		SizeBytes: stat.Size(),
		Modified:  stat.ModTime(),
		Lines:     lines,
	})
}

// DownloadCameraLog godoc
// @Summary Download a camera's worker log
// @Tags logs
// @Produce text/plain
// @Param id path int true "Camera ID"
// @Success 200 {file} text/plain
// @Failure 404 {object} ErrorResponse
// @Router /api/cameras/{id}/log/download [get]
func (h *LogHandler) DownloadCameraLog(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	path := logger.Path(h.logDir, id)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no log recorded for this camera yet"})
		return
	}
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.FileAttachment(path, "camera_"+strconv.Itoa(id)+".log")
}

// tail returns the last n lines of the file at path.
func tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(ring) == n {
			ring = append(ring[1:], sc.Text())
		} else {
			ring = append(ring, sc.Text())
		}
	}
	return ring, sc.Err()
}
