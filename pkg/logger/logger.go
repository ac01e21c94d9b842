package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CameraLog is the append-only log sink of one camera's worker. The worker's
// stdout and stderr are pointed at File directly; supervisor lines are written
// through Logger as JSON lines into the same file.
type CameraLog struct {
	Logger zerolog.Logger

	file *os.File
	path string
	once sync.Once
}

// Path returns the log file location for a camera.
func Path(dir string, cameraID int) string {
	return filepath.Join(dir, fmt.Sprintf("camera_%d.log", cameraID))
}

// Open opens or creates the camera's log in append mode.
func Open(dir string, cameraID int) (*CameraLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := Path(dir, cameraID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	l := zerolog.New(f).With().
		Timestamp().
		Str("source", "supervisor").
		Int("camera_id", cameraID).
		Logger()

	return &CameraLog{Logger: l, file: f, path: path}, nil
}

// File is the handle to hand to a child process.
func (c *CameraLog) File() *os.File {
	return c.file
}

func (c *CameraLog) Path() string {
	return c.path
}

// Close writes a closing line and releases the file. Safe to call more than once.
func (c *CameraLog) Close() error {
	var err error
	c.once.Do(func() {
		c.Logger.Info().Time("closed_at", time.Now()).Msg("log closed")
		err = c.file.Close()
	})
	return err
}
