package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"kepler-fleet/internal/models"
)

// Fleet reports the live figures sampled on every scrape.
type Fleet interface {
	RunningCount() int
	CameraCount() int
}

var (
	workersRunningDesc = prometheus.NewDesc(
		"fleet_workers_running", "Number of live worker processes.", nil, nil,
	)
	camerasTotalDesc = prometheus.NewDesc(
		"fleet_cameras_total", "Number of configured cameras.", nil, nil,
	)
)

// Collector exposes fleet gauges and worker lifecycle counters. It is also
// an event subscriber.
type Collector struct {
	fleet  Fleet
	starts *prometheus.CounterVec
	exits  *prometheus.CounterVec
}

func NewCollector(fleet Fleet) *Collector {
	return &Collector{
		fleet: fleet,
		starts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_worker_starts_total",
			Help: "Worker start attempts by outcome.",
		}, []string{"outcome"}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_worker_exits_total",
			Help: "Worker terminations by kind.",
		}, []string{"kind"}),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- workersRunningDesc
	ch <- camerasTotalDesc
	c.starts.Describe(ch)
	c.exits.Describe(ch)
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(workersRunningDesc, prometheus.GaugeValue, float64(c.fleet.RunningCount()))
	ch <- prometheus.MustNewConstMetric(camerasTotalDesc, prometheus.GaugeValue, float64(c.fleet.CameraCount()))
	c.starts.Collect(ch)
	c.exits.Collect(ch)
}

func (c *Collector) Publish(ev models.WorkerEvent) {
	switch ev.Kind {
	case models.EventStarted, models.EventFailed:
		c.starts.WithLabelValues(string(ev.Kind)).Inc()
	case models.EventStopped, models.EventExited, models.EventCrashed:
		c.exits.WithLabelValues(string(ev.Kind)).Inc()
	}
}

// NewRegistry returns a registry holding c and the Go runtime collectors.
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}
