package supervisor

import (
	"github.com/shirou/gopsutil/v3/process"

	"kepler-fleet/internal/models"
)

// ProcessStats samples CPU and memory of the camera's live worker. ok is false
// when no worker is live.
func (s *Supervisor) ProcessStats(id int) (stats models.ProcessStats, ok bool, err error) {
	s.mu.Lock()
	sl := s.slots[id]
	var h *handle
	if sl != nil {
		h = sl.handle
	}
	s.mu.Unlock()
	if h == nil {
		return models.ProcessStats{}, false, nil
	}

	stats = models.ProcessStats{CameraID: id, PID: h.pid, StartedAt: h.startedAt}

	p, err := process.NewProcess(int32(h.pid))
	if err != nil {
		return stats, true, err
	}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		stats.RSSBytes = mem.RSS
	}
	if n, err := p.NumThreads(); err == nil {
		stats.NumThreads = n
	}
	return stats, true, nil
}

// AllProcessStats samples every live worker. Workers that vanish while being
// sampled are skipped.
func (s *Supervisor) AllProcessStats() []models.ProcessStats {
	var out []models.ProcessStats
	for _, id := range s.liveIDs() {
		st, ok, err := s.ProcessStats(id)
		if !ok || err != nil {
			continue
		}
		out = append(out, st)
	}
	return out
}
