package supervisor

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"

	"kepler-fleet/internal/models"
)

// StartAll starts every configured camera in list order, pausing for the
// settle delay between cameras.
func (s *Supervisor) StartAll(ctx context.Context) []models.StartResult {
	cams := s.store.Cameras()
	results := make([]models.StartResult, 0, len(cams))
	for i, cam := range cams {
		if i > 0 {
			time.Sleep(s.opts.Settle)
		}
		res, err := s.Start(ctx, cam.ID)
		if err != nil {
			c := cam
			res = models.StartResult{Status: models.StartError, Camera: &c, Error: err.Error(), Cause: err}
		}
		results = append(results, res)
	}
	return results
}

// StopAll stops every configured camera plus any live worker whose camera is
// no longer configured.
func (s *Supervisor) StopAll(ctx context.Context) []models.StopResult {
	ids := lo.Map(s.store.Cameras(), func(c models.Camera, _ int) int { return c.ID })
	ids = lo.Uniq(append(ids, s.liveIDs()...))
	sort.Ints(ids)

	results := make([]models.StopResult, 0, len(ids))
	for _, id := range ids {
		res, err := s.Stop(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Int("camera_id", id).Msg("Stop skipped")
			continue
		}
		res.CameraID = id
		results = append(results, res)
	}
	return results
}

// Shutdown refuses new starts, sends SIGTERM to every live worker, waits up to
// the shutdown grace (or ctx) and SIGKILLs the survivors.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	var live []*handle
	for _, sl := range s.slots {
		if sl.handle != nil {
			sl.handle.stopping.Store(true)
			sl.state = models.WorkerStopping
			live = append(live, sl.handle)
		}
	}
	s.mu.Unlock()

	if len(live) == 0 {
		return nil
	}
	s.log.Info().Int("workers", len(live)).Msg("Stopping all workers")

	for _, h := range live {
		if err := h.signal(sigTerm); err != nil {
			s.log.Debug().Err(err).Int("camera_id", h.cameraID).Msg("SIGTERM delivery failed")
		}
	}

	deadline := time.NewTimer(s.opts.ShutdownGrace)
	defer deadline.Stop()
	var ctxErr error
wait:
	for _, h := range live {
		select {
		case <-h.done:
		case <-deadline.C:
			break wait
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break wait
		}
	}

	var killed int
	for _, h := range live {
		select {
		case <-h.done:
			continue
		default:
		}
		killed++
		if err := h.signal(sigKill); err != nil {
			s.log.Warn().Err(err).Int("camera_id", h.cameraID).Msg("SIGKILL delivery failed")
		}
	}
	if killed > 0 {
		s.log.Warn().Int("workers", killed).Msg("Killed workers that ignored SIGTERM")
	}

	// SIGKILL cannot be ignored; the wait is short.
	for _, h := range live {
		<-h.done
	}
	return ctxErr
}
