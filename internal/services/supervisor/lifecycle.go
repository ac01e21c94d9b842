package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"kepler-fleet/internal/logging"
	"kepler-fleet/internal/models"
	"kepler-fleet/internal/services/catalog"
	"kepler-fleet/internal/services/store"
	"kepler-fleet/pkg/logger"
)

type signalKind int

const (
	sigTerm signalKind = iota
	sigKill
)

// ConfigPath is the detection options file handed to the worker.
func ConfigPath(logDir string, cameraID int) string {
	return filepath.Join(logDir, fmt.Sprintf("camera_%d_config.json", cameraID))
}

// SettingsPath is the display settings file read by the worker.
func SettingsPath(logDir string, cameraID int) string {
	return filepath.Join(logDir, fmt.Sprintf("camera_%d_settings.json", cameraID))
}

func (s *Supervisor) start(ctx context.Context, id int, sl *slot) (models.StartResult, error) {
	s.mu.Lock()
	closing := s.closing
	live := sl.handle != nil
	s.mu.Unlock()

	cam, ok := s.store.Camera(id)
	if !ok {
		return models.StartResult{}, models.NotFoundf("camera %d not found", id)
	}
	if live {
		return models.StartResult{Status: models.StartAlreadyRunning, Camera: &cam}, nil
	}
	if closing {
		return models.StartResult{Status: models.StartError, Camera: &cam, Error: ErrShuttingDown.Error(), Cause: ErrShuttingDown}, nil
	}

	log := logging.WithCamera(s.log, id)
	s.setState(sl, models.WorkerStarting)

	snap := s.store.Snapshot()
	model := catalog.Resolve(cam, snap.Catalog)
	configPath, err := s.writeWorkerFiles(cam, snap.Detection[id])
	if err != nil {
		s.setState(sl, models.WorkerFailed)
		log.Error().Err(err).Msg("Failed to write worker option files")
		return models.StartResult{}, models.Persistence("worker option files", err)
	}

	if err := checkExecutable(s.opts.WorkerBinary); err != nil {
		cause := models.ExecutableUnavailable(s.opts.WorkerBinary, err)
		s.setState(sl, models.WorkerFailed)
		log.Error().Err(err).Str("binary", s.opts.WorkerBinary).Msg("Worker executable unavailable")
		s.publish(models.WorkerEvent{CameraID: id, Kind: models.EventFailed, Error: models.Message(cause)})
		return models.StartResult{
			Status: models.StartError,
			Camera: &cam,
			Error:  models.Message(cause),
			Cause:  cause,
		}, nil
	}

	args := []string{
		strconv.Itoa(cam.Port),
		cam.RTSPURL(),
		cam.SafeName(),
		configPath,
		model.Config,
		model.Weights,
		model.NamesOrDefault(),
	}

	h, err := s.spawn(id, args)
	if err != nil {
		s.setState(sl, models.WorkerFailed)
		log.Error().Err(err).Msg("Failed to spawn worker")
		s.publish(models.WorkerEvent{CameraID: id, Kind: models.EventFailed, Error: err.Error()})
		return models.StartResult{Status: models.StartError, Camera: &cam, Error: err.Error(), Cause: err}, nil
	}

	s.mu.Lock()
	closing = s.closing
	if !closing {
		sl.handle = h
	}
	s.mu.Unlock()

	if closing {
		// Shutdown already collected the live workers; this one is ours to reap.
		log.Warn().Int("pid", h.pid).Msg("Supervisor shutting down, discarding new worker")
		s.discard(h)
		s.setState(sl, models.WorkerStopped)
		return models.StartResult{Status: models.StartError, Camera: &cam, Error: ErrShuttingDown.Error(), Cause: ErrShuttingDown}, nil
	}

	log.Info().
		Int("pid", h.pid).
		Int("port", cam.Port).
		Str("model", model.ID).
		Strs("args", redactArgs(args)).
		Msg("Worker spawned")

	grace := time.NewTimer(s.opts.StartGrace)
	defer grace.Stop()
	select {
	case <-h.done:
	case <-grace.C:
	}

	s.mu.Lock()
	alive := sl.handle == h
	interrupted := h.stopping.Load()
	switch {
	case interrupted:
	case alive:
		sl.state = models.WorkerRunning
	default:
		sl.state = models.WorkerFailed
	}
	s.mu.Unlock()

	if interrupted {
		log.Info().Int("pid", h.pid).Msg("Supervisor shut down during start grace")
		return models.StartResult{Status: models.StartError, Camera: &cam, Error: ErrShuttingDown.Error(), Cause: ErrShuttingDown}, nil
	}

	if !alive {
		// done is closed once the handle is reaped, so exitCode is final.
		<-h.done
		code := h.exitCode
		log.Error().Int("exit_code", code).Msg("Worker exited during start grace")
		s.publish(models.WorkerEvent{CameraID: id, Kind: models.EventFailed, PID: h.pid, ExitCode: &code})
		return models.StartResult{
			Status:   models.StartFailed,
			Camera:   &cam,
			ExitCode: &code,
			Cause:    models.WorkerCrashed(id, code),
		}, nil
	}

	log.Info().Int("pid", h.pid).Msg("Worker running")
	s.publish(models.WorkerEvent{CameraID: id, Kind: models.EventStarted, PID: h.pid})
	return models.StartResult{Status: models.StartStarted, Camera: &cam}, nil
}

func (s *Supervisor) stop(_ context.Context, id int, sl *slot) models.StopResult {
	s.mu.Lock()
	h := sl.handle
	if h == nil {
		s.mu.Unlock()
		return models.StopResult{Status: models.StopNotRunning}
	}
	h.stopping.Store(true)
	sl.state = models.WorkerStopping
	s.mu.Unlock()

	log := logging.WithCamera(s.log, id)
	log.Info().Int("pid", h.pid).Msg("Stopping worker")

	if err := h.signal(sigTerm); err != nil {
		log.Debug().Err(err).Msg("SIGTERM delivery failed")
	}

	grace := time.NewTimer(s.opts.StopGrace)
	defer grace.Stop()
	select {
	case <-h.done:
	case <-grace.C:
		log.Warn().Int("pid", h.pid).Dur("grace", s.opts.StopGrace).Msg("Worker ignored SIGTERM, killing")
		if err := h.signal(sigKill); err != nil {
			log.Debug().Err(err).Msg("SIGKILL delivery failed")
		}
		<-h.done
	}

	s.mu.Lock()
	if sl.handle == h {
		sl.handle = nil
	}
	sl.state = models.WorkerStopped
	s.mu.Unlock()

	return models.StopResult{Status: models.StopStopped}
}

// discard terminates a worker that was never registered in its slot, with
// the same TERM then KILL escalation as stop.
func (s *Supervisor) discard(h *handle) {
	h.stopping.Store(true)
	if err := h.signal(sigTerm); err != nil {
		s.log.Debug().Err(err).Int("camera_id", h.cameraID).Msg("SIGTERM delivery failed")
	}
	grace := time.NewTimer(s.opts.StopGrace)
	defer grace.Stop()
	select {
	case <-h.done:
	case <-grace.C:
		if err := h.signal(sigKill); err != nil {
			s.log.Debug().Err(err).Int("camera_id", h.cameraID).Msg("SIGKILL delivery failed")
		}
		<-h.done
	}
}

func (s *Supervisor) setState(sl *slot, st models.WorkerState) {
	s.mu.Lock()
	sl.state = st
	s.mu.Unlock()
}

// writeWorkerFiles materializes the two per-start files and returns the path
// of the detection options file.
func (s *Supervisor) writeWorkerFiles(cam models.Camera, det models.DetectionConfig) (string, error) {
	if err := os.MkdirAll(s.opts.LogDir, 0o755); err != nil {
		return "", err
	}

	detData, err := json.Marshal(det)
	if err != nil {
		return "", err
	}
	configPath := ConfigPath(s.opts.LogDir, cam.ID)
	if err := store.WriteFileAtomic(configPath, detData); err != nil {
		return "", err
	}

	settings := models.DefaultStreamSettings()
	if cam.Settings != nil {
		settings = *cam.Settings
	}
	setData, err := json.Marshal(settings)
	if err != nil {
		return "", err
	}
	if err := store.WriteFileAtomic(SettingsPath(s.opts.LogDir, cam.ID), setData); err != nil {
		return "", err
	}
	return configPath, nil
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return unix.Access(path, unix.X_OK)
}

// spawn starts the worker in its own process group with stdout and stderr
// appended to the camera log, and starts the exit observer.
func (s *Supervisor) spawn(id int, args []string) (*handle, error) {
	sink, err := logger.Open(s.opts.LogDir, id)
	if err != nil {
		return nil, fmt.Errorf("open worker log: %w", err)
	}

	cmd := exec.Command(s.opts.WorkerBinary, args...)
	cmd.Dir = s.opts.WorkerDir
	cmd.Env = append(os.Environ(), "LD_LIBRARY_PATH="+s.opts.LibraryPath)
	cmd.Stdout = sink.File()
	cmd.Stderr = sink.File()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	sink.Logger.Info().Str("binary", s.opts.WorkerBinary).Strs("args", redactArgs(args)).Msg("starting worker")

	if err := cmd.Start(); err != nil {
		sink.Logger.Error().Err(err).Msg("spawn failed")
		sink.Close()
		return nil, fmt.Errorf("start worker: %w", err)
	}

	pid := cmd.Process.Pid
	h := &handle{
		cameraID:  id,
		pid:       pid,
		startedAt: time.Now(),
		log:       sink,
		done:      make(chan struct{}),
	}
	h.signal = func(sig signalKind) error {
		unixSig := unix.SIGTERM
		if sig == sigKill {
			unixSig = unix.SIGKILL
		}
		if err := unix.Kill(-pid, unixSig); err != nil {
			if errors.Is(err, unix.ESRCH) {
				return cmd.Process.Signal(unixSig)
			}
			return err
		}
		return nil
	}

	go s.observe(cmd, h)
	return h, nil
}

// observe waits for the worker to exit, reaps its handle and reports the exit.
func (s *Supervisor) observe(cmd *exec.Cmd, h *handle) {
	err := cmd.Wait()
	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	h.exitCode = code

	s.mu.Lock()
	sl := s.slots[h.cameraID]
	starting := false
	if sl != nil {
		exit := code
		sl.lastExit = &exit
		if sl.handle == h {
			sl.handle = nil
			starting = sl.state == models.WorkerStarting
			if !starting {
				sl.state = models.WorkerStopped
			}
		}
	}
	s.mu.Unlock()
	close(h.done)

	log := logging.WithCamera(s.log, h.cameraID)
	h.log.Logger.Info().Int("exit_code", code).Bool("requested", h.stopping.Load()).Msg("worker exited")
	h.log.Close()

	switch {
	case h.stopping.Load():
		log.Info().Int("pid", h.pid).Int("exit_code", code).Msg("Worker stopped")
		s.publish(models.WorkerEvent{CameraID: h.cameraID, Kind: models.EventStopped, PID: h.pid, ExitCode: &code})
	case starting:
		// Reported by start as a failed start.
	case code == 0:
		log.Warn().Int("pid", h.pid).Msg("Worker exited")
		s.publish(models.WorkerEvent{CameraID: h.cameraID, Kind: models.EventExited, PID: h.pid, ExitCode: &code})
	default:
		log.Error().Err(models.WorkerCrashed(h.cameraID, code)).AnErr("wait", err).Int("pid", h.pid).Msg("Worker crashed")
		s.publish(models.WorkerEvent{CameraID: h.cameraID, Kind: models.EventCrashed, PID: h.pid, ExitCode: &code})
	}
}

// redactArgs masks the password in the RTSP URL argument.
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i, a := range out {
		u, err := url.Parse(a)
		if err != nil || u.Scheme != "rtsp" || u.User == nil {
			continue
		}
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
			out[i] = u.String()
		}
	}
	return out
}
