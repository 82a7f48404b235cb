package gateway

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IEBH/statesync/metric"
)

// Metrics holds the gateway's observability collectors
type Metrics struct {
	Saves          *prometheus.CounterVec
	SaveRejections prometheus.Counter
	SaveDuration   prometheus.Histogram
	Loads          *prometheus.CounterVec
}

// NewMetrics creates and registers gateway metrics with the registry.
// A nil registry returns nil metrics and the gateway logs only.
func NewMetrics(registry *metric.Registry) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		Saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statesync_saves_total",
			Help: "Completed save attempts by outcome",
		}, []string{"outcome"}),
		SaveRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statesync_save_rejections_total",
			Help: "Save requests rejected because another save was in flight",
		}),
		SaveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "statesync_save_duration_seconds",
			Help:    "Wall time of completed save attempts",
			Buckets: prometheus.DefBuckets,
		}),
		Loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statesync_loads_total",
			Help: "Load attempts by outcome (ok, absent, error)",
		}, []string{"outcome"}),
	}

	registrations := []struct {
		name      string
		collector prometheus.Collector
	}{
		{"saves_total", m.Saves},
		{"save_rejections_total", m.SaveRejections},
		{"save_duration_seconds", m.SaveDuration},
		{"loads_total", m.Loads},
	}
	for _, reg := range registrations {
		if err := registry.Register("gateway", reg.name, reg.collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}
