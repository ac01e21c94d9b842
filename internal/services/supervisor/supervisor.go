package supervisor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"kepler-fleet/internal/config"
	"kepler-fleet/internal/models"
	"kepler-fleet/internal/services/store"
	"kepler-fleet/pkg/logger"
)

// ErrShuttingDown is returned for starts requested after Shutdown began.
var ErrShuttingDown = errors.New("supervisor is shutting down")

// Publisher receives every worker lifecycle event.
type Publisher interface {
	Publish(ev models.WorkerEvent)
}

// Options holds the worker contract and the timing policy.
type Options struct {
	WorkerBinary string
	WorkerDir    string
	LibraryPath  string // Exported to the worker as LD_LIBRARY_PATH
	LogDir       string // Worker logs and per-start option files

	StartGrace    time.Duration // Worker must survive this long to count as started
	StopGrace     time.Duration // SIGTERM to SIGKILL escalation
	Settle        time.Duration // Pause between stop and start
	ShutdownGrace time.Duration
}

// DefaultOptions returns the production timing policy for cfg's layout.
func DefaultOptions(cfg *config.Config) Options {
	return Options{
		WorkerBinary:  cfg.WorkerBinary,
		WorkerDir:     cfg.WorkerDir,
		LibraryPath:   cfg.WorkerLibraryPath,
		LogDir:        cfg.LogDir,
		StartGrace:    2 * time.Second,
		StopGrace:     1 * time.Second,
		Settle:        1 * time.Second,
		ShutdownGrace: 2 * time.Second,
	}
}

// handle is a live worker process. exitCode is written once by the exit
// observer before done is closed.
type handle struct {
	cameraID  int
	pid       int
	startedAt time.Time
	log       *logger.CameraLog
	done      chan struct{}
	exitCode  int
	stopping  atomic.Bool
	signal    func(sig signalKind) error
}

// slot is the per-camera record. lock serializes lifecycle operations on the
// camera; the remaining fields are guarded by Supervisor.mu.
type slot struct {
	lock     chan struct{}
	state    models.WorkerState
	handle   *handle
	lastExit *int
}

// Supervisor owns every worker process of the fleet.
type Supervisor struct {
	opts   Options
	store  *store.Store
	events Publisher
	log    zerolog.Logger

	mu      sync.Mutex
	slots   map[int]*slot
	closing bool
}

func New(opts Options, st *store.Store, events Publisher, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		opts:   opts,
		store:  st,
		events: events,
		log:    logger,
		slots:  make(map[int]*slot),
	}
}

func (s *Supervisor) Options() Options {
	return s.opts
}

func (s *Supervisor) slot(id int) *slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[id]
	if !ok {
		sl = &slot{lock: make(chan struct{}, 1), state: models.WorkerStopped}
		s.slots[id] = sl
	}
	return sl
}

// Locked gives access to one camera's worker while its lock is held. It is
// only valid inside the Exclusive callback that produced it.
type Locked struct {
	s  *Supervisor
	id int
	sl *slot
}

// Exclusive runs fn while holding the lock of camera id. Waiting for the lock
// honors ctx; fn itself is not interrupted.
func (s *Supervisor) Exclusive(ctx context.Context, id int, fn func(w *Locked) error) error {
	sl := s.slot(id)
	select {
	case sl.lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-sl.lock }()
	return fn(&Locked{s: s, id: id, sl: sl})
}

func (w *Locked) CameraID() int {
	return w.id
}

// Running reports whether a worker handle exists for the camera.
func (w *Locked) Running() bool {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	return w.sl.handle != nil
}

func (w *Locked) Start(ctx context.Context) (models.StartResult, error) {
	return w.s.start(ctx, w.id, w.sl)
}

func (w *Locked) Stop(ctx context.Context) models.StopResult {
	return w.s.stop(ctx, w.id, w.sl)
}

// Restart stops a running worker, waits the settle delay and starts it again.
func (w *Locked) Restart(ctx context.Context) (models.StartResult, error) {
	if w.Running() {
		w.Stop(ctx)
		w.Settle()
	}
	return w.Start(ctx)
}

// Settle sleeps for the settle delay.
func (w *Locked) Settle() {
	time.Sleep(w.s.opts.Settle)
}

// Start starts the camera's worker unless one is already live.
func (s *Supervisor) Start(ctx context.Context, id int) (models.StartResult, error) {
	var res models.StartResult
	err := s.Exclusive(ctx, id, func(w *Locked) error {
		var err error
		res, err = w.Start(ctx)
		return err
	})
	return res, err
}

// Stop stops the camera's worker. A camera that is neither configured nor
// live is NotFound.
func (s *Supervisor) Stop(ctx context.Context, id int) (models.StopResult, error) {
	var res models.StopResult
	err := s.Exclusive(ctx, id, func(w *Locked) error {
		if !w.Running() {
			if _, ok := s.store.Camera(id); !ok {
				return models.NotFoundf("camera %d not found", id)
			}
		}
		res = w.Stop(ctx)
		return nil
	})
	return res, err
}

func (s *Supervisor) Restart(ctx context.Context, id int) (models.StartResult, error) {
	var res models.StartResult
	err := s.Exclusive(ctx, id, func(w *Locked) error {
		var err error
		res, err = w.Restart(ctx)
		return err
	})
	return res, err
}

// IsRunning reports whether the camera has a live worker.
func (s *Supervisor) IsRunning(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[id]
	return ok && sl.handle != nil
}

// RunningCount is the number of live workers.
func (s *Supervisor) RunningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sl := range s.slots {
		if sl.handle != nil {
			n++
		}
	}
	return n
}

// Status returns a snapshot of one camera's worker.
func (s *Supervisor) Status(id int) models.WorkerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked(id)
}

func (s *Supervisor) statusLocked(id int) models.WorkerStatus {
	st := models.WorkerStatus{CameraID: id, State: models.WorkerStopped}
	sl, ok := s.slots[id]
	if !ok {
		return st
	}
	st.State = sl.state
	if sl.lastExit != nil {
		code := *sl.lastExit
		st.LastExitCode = &code
	}
	if h := sl.handle; h != nil {
		st.PID = h.pid
		started := h.startedAt
		st.StartedAt = &started
	}
	return st
}

// Statuses returns snapshots of every camera the supervisor has seen, ordered by id.
func (s *Supervisor) Statuses() []models.WorkerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.WorkerStatus, 0, len(s.slots))
	for id := range s.slots {
		out = append(out, s.statusLocked(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CameraID < out[j].CameraID })
	return out
}

// liveIDs lists cameras with a worker handle, ordered by id.
func (s *Supervisor) liveIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int
	for id, sl := range s.slots {
		if sl.handle != nil {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

func (s *Supervisor) publish(ev models.WorkerEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if s.events != nil {
		s.events.Publish(ev)
	}
}
