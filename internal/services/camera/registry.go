package camera

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"kepler-fleet/internal/config"
	"kepler-fleet/internal/logging"
	"kepler-fleet/internal/models"
	"kepler-fleet/internal/services/store"
	"kepler-fleet/internal/services/supervisor"
)

// Options configures the registry.
type Options struct {
	BasePort        int
	DefaultRTSPPort int
	StreamHost      string
	CheckTimeout    time.Duration
}

func DefaultOptions(cfg *config.Config) Options {
	return Options{
		BasePort:        cfg.BaseStreamPort,
		DefaultRTSPPort: cfg.DefaultRTSPPort,
		StreamHost:      cfg.StreamHost,
		CheckTimeout:    1 * time.Second,
	}
}

// Registry is the camera CRUD surface. Mutations of a camera that may have a
// live worker run under the supervisor's per-camera lock.
type Registry struct {
	opts  Options
	store *store.Store
	sup   *supervisor.Supervisor
	log   zerolog.Logger
}

func NewRegistry(opts Options, st *store.Store, sup *supervisor.Supervisor, logger zerolog.Logger) *Registry {
	return &Registry{opts: opts, store: st, sup: sup, log: logger}
}

// UpdateResult reports an update and, if the worker was running, its restart.
type UpdateResult struct {
	Camera    models.Camera       `json:"camera"`
	Restarted bool                `json:"restarted"`
	Start     *models.StartResult `json:"start,omitempty"`
}

// DetectionResult reports a detection settings write.
type DetectionResult struct {
	CameraID  int                    `json:"cameraId"`
	Config    models.DetectionConfig `json:"config"`
	Restarted bool                   `json:"restarted"`
	Start     *models.StartResult    `json:"start,omitempty"`
}

// CheckResult is the outcome of a connectivity probe.
type CheckResult struct {
	CameraID  int    `json:"cameraId"`
	IP        string `json:"ip"`
	Reachable bool   `json:"reachable"`
	Message   string `json:"message"`
}

// List returns every camera with its worker state.
func (r *Registry) List() []models.CameraView {
	return lo.Map(r.store.Cameras(), func(c models.Camera, _ int) models.CameraView {
		st := r.sup.Status(c.ID)
		return models.CameraView{
			Camera:    c,
			Running:   r.sup.IsRunning(c.ID),
			State:     st.State,
			StreamURL: r.StreamURL(c),
		}
	})
}

// StreamURL is where the camera's annotated stream is served.
func (r *Registry) StreamURL(c models.Camera) string {
	return fmt.Sprintf("http://%s/", net.JoinHostPort(r.opts.StreamHost, strconv.Itoa(c.Port)))
}

func (r *Registry) Get(id int) (models.Camera, error) {
	cam, ok := r.store.Camera(id)
	if !ok {
		return models.Camera{}, models.NotFoundf("camera %d not found", id)
	}
	return cam, nil
}

// Add creates a camera with the next id and the lowest free stream port.
func (r *Registry) Add(_ context.Context, in models.CameraInput) (models.Camera, error) {
	var missing []string
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.IP) == "" {
		missing = append(missing, "ip")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return models.Camera{}, models.Validationf("missing required fields: %s", strings.Join(missing, ", "))
	}

	var created models.Camera
	err := r.store.Mutate(func(st *store.State) (store.Resource, error) {
		cam := models.Camera{
			ID:       st.Cameras.NextCameraID,
			Name:     in.Name,
			IP:       in.IP,
			Port:     Allocate(UsedPorts(st.Cameras.Cameras), r.opts.BasePort),
			RTSPPort: in.RTSPPort,
			Username: in.Username,
			Password: in.Password,
			Path:     in.Path,
		}
		if cam.RTSPPort == 0 {
			cam.RTSPPort = r.opts.DefaultRTSPPort
		}
		if in.ModelID != nil {
			cam.ModelID = *in.ModelID
		}
		st.Cameras.NextCameraID++
		st.Cameras.Cameras = append(st.Cameras.Cameras, cam)
		created = cam
		return store.Cameras, nil
	})
	if err != nil {
		return models.Camera{}, err
	}

	log := logging.WithCamera(r.log, created.ID)
	log.Info().
		Str("name", created.Name).
		Int("port", created.Port).
		Msg("Camera added")
	return created, nil
}

// Update merges in over the camera. A running worker is stopped first and
// started again after the settle delay, also when persisting failed.
func (r *Registry) Update(ctx context.Context, id int, in models.CameraInput) (UpdateResult, error) {
	var res UpdateResult
	err := r.sup.Exclusive(ctx, id, func(w *supervisor.Locked) error {
		if _, ok := r.store.Camera(id); !ok {
			return models.NotFoundf("camera %d not found", id)
		}

		wasRunning := w.Running()
		if wasRunning {
			w.Stop(ctx)
		}

		mutErr := r.store.Mutate(func(st *store.State) (store.Resource, error) {
			cam := st.Camera(id)
			if cam == nil {
				return store.None, models.NotFoundf("camera %d not found", id)
			}
			*cam = cam.ApplyUpdate(in)
			res.Camera = *cam

			dirty := store.Cameras
			if in.ModelID != nil {
				det := st.Detection[id]
				det.ModelID = *in.ModelID
				st.Detection[id] = det
				dirty |= store.Detection
			}
			return dirty, nil
		})

		if wasRunning {
			w.Settle()
			start, err := w.Start(ctx)
			if err != nil {
				r.log.Error().Err(err).Int("camera_id", id).Msg("Failed to restart camera after update")
			} else {
				res.Restarted = true
				res.Start = &start
			}
		}
		return mutErr
	})
	if err != nil {
		return UpdateResult{}, err
	}

	log := logging.WithCamera(r.log, id)
	log.Info().Bool("restarted", res.Restarted).Msg("Camera updated")
	return res, nil
}

// Delete stops the camera's worker and removes the camera with its
// detection settings.
func (r *Registry) Delete(ctx context.Context, id int) error {
	err := r.sup.Exclusive(ctx, id, func(w *supervisor.Locked) error {
		if _, ok := r.store.Camera(id); !ok {
			return models.NotFoundf("camera %d not found", id)
		}
		if w.Running() {
			w.Stop(ctx)
		}
		return r.store.Mutate(func(st *store.State) (store.Resource, error) {
			st.Cameras.Cameras = lo.Reject(st.Cameras.Cameras, func(c models.Camera, _ int) bool { return c.ID == id })
			delete(st.Detection, id)
			return store.Cameras | store.Detection, nil
		})
	})
	if err != nil {
		return err
	}

	logDir := r.sup.Options().LogDir
	for _, p := range []string{supervisor.ConfigPath(logDir, id), supervisor.SettingsPath(logDir, id)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			r.log.Warn().Err(err).Str("file", p).Msg("Failed to remove worker option file")
		}
	}

	log := logging.WithCamera(r.log, id)
	log.Info().Msg("Camera deleted")
	return nil
}

// DetectionConfig returns the camera's detection settings, empty if never set.
func (r *Registry) DetectionConfig(id int) (models.DetectionConfig, error) {
	if _, ok := r.store.Camera(id); !ok {
		return models.DetectionConfig{}, models.NotFoundf("camera %d not found", id)
	}
	cfg, _ := r.store.DetectionConfig(id)
	return cfg, nil
}

// SetDetectionConfig replaces the camera's detection settings. A model id in
// cfg is copied onto the camera. A running worker is restarted.
func (r *Registry) SetDetectionConfig(ctx context.Context, id int, cfg models.DetectionConfig) (DetectionResult, error) {
	res := DetectionResult{CameraID: id, Config: cfg}
	err := r.sup.Exclusive(ctx, id, func(w *supervisor.Locked) error {
		err := r.store.Mutate(func(st *store.State) (store.Resource, error) {
			cam := st.Camera(id)
			if cam == nil {
				return store.None, models.NotFoundf("camera %d not found", id)
			}
			st.Detection[id] = cfg
			dirty := store.Detection
			if cfg.ModelID != "" {
				cam.ModelID = cfg.ModelID
				dirty |= store.Cameras
			}
			return dirty, nil
		})
		if err != nil {
			return err
		}

		if w.Running() {
			log := logging.WithCamera(r.log, id)
			log.Info().Msg("Restarting camera to apply detection settings")
			w.Stop(ctx)
			w.Settle()
			start, err := w.Start(ctx)
			if err != nil {
				return err
			}
			res.Restarted = true
			res.Start = &start
		}
		return nil
	})
	if err != nil {
		return DetectionResult{}, err
	}
	return res, nil
}

// UpdateSettings merges a partial display settings document into the
// camera. The running worker is not restarted.
func (r *Registry) UpdateSettings(_ context.Context, id int, patch json.RawMessage) (models.StreamSettings, error) {
	var merged models.StreamSettings
	err := r.store.Mutate(func(st *store.State) (store.Resource, error) {
		cam := st.Camera(id)
		if cam == nil {
			return store.None, models.NotFoundf("camera %d not found", id)
		}
		settings := models.DefaultStreamSettings()
		if cam.Settings != nil {
			settings = *cam.Settings
		}
		if err := json.Unmarshal(patch, &settings); err != nil {
			return store.None, models.Validationf("invalid settings: %v", err)
		}
		cam.Settings = &settings
		merged = settings
		return store.Cameras, nil
	})
	return merged, err
}

// Check probes the camera's RTSP port over TCP.
func (r *Registry) Check(ctx context.Context, id int) (CheckResult, error) {
	cam, err := r.Get(id)
	if err != nil {
		return CheckResult{}, err
	}

	addr := net.JoinHostPort(cam.IP, strconv.Itoa(cam.RTSPPort))
	d := net.Dialer{Timeout: r.opts.CheckTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	res := CheckResult{CameraID: id, IP: cam.IP}
	if err != nil {
		log := logging.WithCamera(r.log, id)
		log.Debug().Err(err).Str("addr", addr).Msg("Camera unreachable")
		res.Message = fmt.Sprintf("RTSP port %s not reachable over TCP", addr)
		return res, nil
	}
	conn.Close()
	res.Reachable = true
	res.Message = fmt.Sprintf("RTSP port %s reachable over TCP", addr)
	return res, nil
}
