package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kepler-fleet/internal/logging"
	"kepler-fleet/internal/models"
)

type ErrorResponse struct {
	Error string `json:"error" example:"camera 7 not found"`
}

type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// statusFor maps an error class to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error, msg string) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logging.Error(c).Err(err).Str("path", c.FullPath()).Msg(msg)
	} else {
		logging.Debug(c).Err(err).Str("path", c.FullPath()).Msg(msg)
	}
	c.JSON(code, ErrorResponse{Error: models.Message(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// cameraID parses the :id path parameter and tags the request log with it.
func cameraID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		badRequest(c, "invalid camera id")
		return 0, false
	}
	logging.SetCamera(c, id)
	return id, true
}
