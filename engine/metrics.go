package syncengine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IEBH/statesync/metric"
)

// Metrics holds the orchestrator's observability counters
type Metrics struct {
	Sessions      prometheus.Counter
	AutosaveTicks prometheus.Counter
	ShortcutSaves prometheus.Counter
}

// NewMetrics creates and registers engine metrics with the registry.
// A nil registry returns nil metrics and the engine runs unmetered.
func NewMetrics(registry *metric.Registry) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		Sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statesync_sessions_total",
			Help: "Completed session initializations",
		}),
		AutosaveTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statesync_autosave_ticks_total",
			Help: "Autosave ticks that triggered a save attempt",
		}),
		ShortcutSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statesync_shortcut_saves_total",
			Help: "Save-hotkey presses accepted by the rate limiter",
		}),
	}

	registrations := []struct {
		name      string
		collector prometheus.Collector
	}{
		{"sessions_total", m.Sessions},
		{"autosave_ticks_total", m.AutosaveTicks},
		{"shortcut_saves_total", m.ShortcutSaves},
	}
	for _, reg := range registrations {
		if err := registry.Register("engine", reg.name, reg.collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}
