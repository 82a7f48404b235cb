package codec

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IEBH/statesync/metric"
)

// Metrics holds the codec's observability counters
type Metrics struct {
	Fallbacks *prometheus.CounterVec
}

// NewMetrics creates and registers codec metrics with the registry.
// A nil registry returns nil metrics; the codec then logs fallbacks only.
func NewMetrics(registry *metric.Registry) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statesync_codec_fallbacks_total",
			Help: "Subtrees returned unconverted after a traversal failure, by direction",
		}, []string{"direction"}),
	}

	if err := registry.Register("codec", "fallbacks_total", m.Fallbacks); err != nil {
		return nil, err
	}
	return m, nil
}
