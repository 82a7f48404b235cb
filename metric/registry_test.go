package metric

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IEBH/statesync/errors"
)

func TestRegisterAndScrape(t *testing.T) {
	r := NewRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "statesync_test_total",
		Help: "Test counter",
	})
	require.NoError(t, r.Register("gateway", "test_total", counter))
	counter.Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	r.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "statesync_test_total 1")
}

func TestRegisterRejectsDuplicateKey(t *testing.T) {
	r := NewRegistry()

	first := prometheus.NewCounter(prometheus.CounterOpts{Name: "statesync_dup_total"})
	require.NoError(t, r.Register("gateway", "dup_total", first))

	second := prometheus.NewCounter(prometheus.CounterOpts{Name: "statesync_dup2_total"})
	err := r.Register("gateway", "dup_total", second)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegisterRejectsPrometheusConflict(t *testing.T) {
	r := NewRegistry()

	first := prometheus.NewCounter(prometheus.CounterOpts{Name: "statesync_conflict_total"})
	require.NoError(t, r.Register("gateway", "a", first))

	// Same prometheus name under a different registry key
	second := prometheus.NewCounter(prometheus.CounterOpts{Name: "statesync_conflict_total"})
	err := r.Register("gateway", "b", second)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "statesync_gone_total"})
	require.NoError(t, r.Register("gateway", "gone_total", counter))

	assert.True(t, r.Unregister("gateway", "gone_total"))
	assert.False(t, r.Unregister("gateway", "gone_total"))

	// Name is free again after unregistration
	assert.NoError(t, r.Register("gateway", "gone_total", counter))
}
