package metric

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IEBH/statesync/errors"
)

// Registry manages the registration and lifecycle of engine metrics.
// It wraps a dedicated Prometheus registry so embedding applications that
// already expose their own metrics do not collide with the engine's.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	registered         map[string]prometheus.Collector
	mu                 sync.Mutex
}

// NewRegistry creates a metrics registry with Go runtime collectors attached
func NewRegistry() *Registry {
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{
		prometheusRegistry: promRegistry,
		registered:         make(map[string]prometheus.Collector),
	}
}

// PrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Register registers a collector under component.name, rejecting duplicates.
// Component names keep collisions diagnosable when several engine instances
// share one registry.
func (r *Registry) Register(component, name string, collector prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", component, name)

	if _, exists := r.registered[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for component %s", name, component),
			"Registry", "Register", "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegErr) {
			return errors.WrapInvalid(err, "Registry", "Register",
				fmt.Sprintf("prometheus conflict for metric %s", key))
		}
		return errors.WrapFatal(err, "Registry", "Register",
			"register collector with prometheus")
	}

	r.registered[key] = collector
	return nil
}

// Unregister removes a collector. Returns true if it was registered.
func (r *Registry) Unregister(component, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", component, name)
	collector, exists := r.registered[key]
	if !exists {
		return false
	}

	delete(r.registered, key)
	return r.prometheusRegistry.Unregister(collector)
}

// Handler returns an HTTP handler serving the registry's metrics
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prometheusRegistry, promhttp.HandlerOpts{})
}
