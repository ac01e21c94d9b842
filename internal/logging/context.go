package logging

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Keys under which middleware and handlers leave request facts on the gin
// context. middleware.RequestID and middleware.RequestContext write the
// first two.
const (
	KeyRequestID = "request_id"
	KeyStartTime = "start_time"
	keyTarget    = "fleet_target"
)

// target is what a request acts on: a camera, a model, or neither.
type target struct {
	cameraID int
	modelID  string
}

func targetOf(c *gin.Context) target {
	if v, ok := c.Get(keyTarget); ok {
		if t, ok := v.(target); ok {
			return t
		}
	}
	return target{}
}

// SetCamera tags the request with the camera it operates on.
func SetCamera(c *gin.Context, cameraID int) {
	t := targetOf(c)
	t.cameraID = cameraID
	c.Set(keyTarget, t)
}

// SetModel tags the request with the catalog model it operates on.
func SetModel(c *gin.Context, modelID string) {
	t := targetOf(c)
	t.modelID = modelID
	c.Set(keyTarget, t)
}

func annotate(c *gin.Context, e *zerolog.Event) *zerolog.Event {
	if c == nil {
		return e
	}
	if id := c.GetString(KeyRequestID); id != "" {
		e.Str("request_id", id)
	}
	t := targetOf(c)
	if t.cameraID > 0 {
		e.Int("camera_id", t.cameraID)
	}
	if t.modelID != "" {
		e.Str("model_id", t.modelID)
	}
	if started, ok := c.Get(KeyStartTime); ok {
		if at, ok := started.(time.Time); ok {
			e.Dur("elapsed", time.Since(at))
		}
	}
	return e
}

func Info(c *gin.Context) *zerolog.Event  { return annotate(c, log.Info()) }
func Debug(c *gin.Context) *zerolog.Event { return annotate(c, log.Debug()) }
func Warn(c *gin.Context) *zerolog.Event  { return annotate(c, log.Warn()) }
func Error(c *gin.Context) *zerolog.Event { return annotate(c, log.Error()) }
