package syncengine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IEBH/statesync/metric"
	"github.com/IEBH/statesync/store"
	"github.com/IEBH/statesync/testutil"
	"github.com/IEBH/statesync/tracker"
)

func newTestEngine(t *testing.T, cfg Config, stores *store.Registry) *Engine {
	t.Helper()
	eng, err := New(cfg, stores)
	require.NoError(t, err)
	t.Cleanup(eng.Shutdown)
	return eng
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	registry := store.NewRegistry()

	_, err := New(Config{}, registry)
	assert.Error(t, err, "empty key prefix must fail")

	_, err = New(Config{KeyPrefix: "has spaces"}, registry)
	assert.Error(t, err)

	_, err = New(Config{KeyPrefix: "demo", AutoSaveInterval: -time.Second}, registry)
	assert.Error(t, err)

	_, err = New(Config{KeyPrefix: "demo"}, nil)
	assert.Error(t, err, "nil registry must fail")
}

func TestInitializationRequiresBothSignals(t *testing.T) {
	registry := store.NewRegistry()
	require.NoError(t, registry.Register(store.NewMapStore("a", map[string]any{"x": float64(1)})))

	fake := testutil.NewFakeHost("proj-1")
	eng := newTestEngine(t, Config{KeyPrefix: "demo"}, registry)

	// Ready alone does nothing: no host to talk to yet.
	eng.MarkHostReady()
	assert.Zero(t, fake.ReadCalls)
	assert.False(t, eng.SaveNow(context.Background()))

	// Binding completes the pair and initialization runs.
	require.NoError(t, eng.BindHost(fake))
	assert.Equal(t, 1, fake.ReadCalls, "initialization loads the document once")
	assert.True(t, eng.SaveNow(context.Background()))
}

func TestInitializationOrderIndependent(t *testing.T) {
	registry := store.NewRegistry()
	fake := testutil.NewFakeHost("proj-1")
	eng := newTestEngine(t, Config{KeyPrefix: "demo"}, registry)

	// Host first, ready second.
	require.NoError(t, eng.BindHost(fake))
	assert.Zero(t, fake.ReadCalls)
	eng.MarkHostReady()
	assert.Equal(t, 1, fake.ReadCalls)

	// Repeat signals are no-ops once initialized.
	eng.MarkHostReady()
	assert.Equal(t, 1, fake.ReadCalls)
	assert.Error(t, eng.BindHost(testutil.NewFakeHost("proj-2")))
}

func TestLoadAppliesSnapshotToMatchingStores(t *testing.T) {
	fake := testutil.NewFakeHost("proj-1")
	fake.Proj.Temp["demo"] = "file-1"
	doc := map[string]any{
		"a":      map[string]any{"x": float64(42), "extra": "kept"},
		"orphan": map[string]any{"y": float64(9)},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	fake.Files["proj-1/file-1"] = data

	registry := store.NewRegistry()
	a := store.NewMapStore("a", map[string]any{"x": float64(1), "untouched": "default"})
	require.NoError(t, registry.Register(a))

	eng := newTestEngine(t, Config{KeyPrefix: "demo"}, registry)
	eng.MarkHostReady()
	require.NoError(t, eng.BindHost(fake))

	// Persisted values overwrite defaults; keys absent from the document
	// keep their defaults; orphan entries are ignored.
	got, ok := a.Get("x")
	require.True(t, ok)
	assert.Equal(t, float64(42), got)
	got, ok = a.Get("untouched")
	require.True(t, ok)
	assert.Equal(t, "default", got)
	got, ok = a.Get("extra")
	require.True(t, ok)
	assert.Equal(t, "kept", got)

	assert.Equal(t, tracker.StatusSaved, eng.CurrentStatus())
}

func TestStoreChangeMarksUnsaved(t *testing.T) {
	registry := store.NewRegistry()
	a := store.NewMapStore("a", nil)
	require.NoError(t, registry.Register(a))

	fake := testutil.NewFakeHost("proj-1")
	eng := newTestEngine(t, Config{KeyPrefix: "demo"}, registry)
	eng.MarkHostReady()
	require.NoError(t, eng.BindHost(fake))

	// Nothing was persisted yet, so the in-memory defaults count as unsaved.
	assert.Equal(t, tracker.StatusUnsaved, eng.CurrentStatus())
	a.Set("x", 1)
	assert.Equal(t, tracker.StatusUnsaved, eng.CurrentStatus())

	assert.True(t, eng.SaveNow(context.Background()))
	assert.Equal(t, tracker.StatusSaved, eng.CurrentStatus())
}

func TestStatusStoreExcludedFromDocument(t *testing.T) {
	registry := store.NewRegistry()
	a := store.NewMapStore("a", map[string]any{"x": float64(1)})
	require.NoError(t, registry.Register(a))

	fake := testutil.NewFakeHost("proj-1")
	eng := newTestEngine(t, Config{KeyPrefix: "demo"}, registry)
	eng.MarkHostReady()
	require.NoError(t, eng.BindHost(fake))

	// The tracker registers itself as an observable store but must never
	// reach the persisted document.
	require.NotNil(t, registry.Get(tracker.StatusStoreID))
	require.True(t, eng.SaveNow(context.Background()))

	data, ok := fake.WrittenDocument()
	require.True(t, ok)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "a")
	assert.NotContains(t, doc, tracker.StatusStoreID)
}

func TestInitialNoticeShownOnce(t *testing.T) {
	registry := store.NewRegistry()
	fake := testutil.NewFakeHost("proj-1")
	eng := newTestEngine(t, Config{KeyPrefix: "demo", ShowInitialNotice: true}, registry)
	eng.MarkHostReady()
	require.NoError(t, eng.BindHost(fake))
	require.Len(t, fake.Notices, 1)

	// A second session on the same engine does not repeat the notice.
	eng.Shutdown()
	eng.MarkHostReady()
	require.NoError(t, eng.BindHost(fake))
	assert.Len(t, fake.Notices, 1)
}

func TestInitialNoticeWaitsForCapableHost(t *testing.T) {
	registry := store.NewRegistry()
	fake := testutil.NewFakeHost("proj-1")
	eng := newTestEngine(t, Config{KeyPrefix: "demo", ShowInitialNotice: true}, registry)

	// A host without the notifier capability must not consume the
	// one-time notice.
	eng.MarkHostReady()
	require.NoError(t, eng.BindHost(fake.WithoutProvisioning()))
	assert.Empty(t, fake.Notices)

	// The next session on a capable host still shows it.
	eng.Shutdown()
	eng.MarkHostReady()
	require.NoError(t, eng.BindHost(fake))
	assert.Len(t, fake.Notices, 1)
}

func TestSaveShortcutTriggersSave(t *testing.T) {
	registry := store.NewRegistry()
	a := store.NewMapStore("a", map[string]any{"x": float64(1)})
	require.NoError(t, registry.Register(a))

	fake := testutil.NewFakeHost("proj-1")
	eng := newTestEngine(t, Config{KeyPrefix: "demo", SaveHotkeyEnabled: true}, registry)
	eng.MarkHostReady()
	require.NoError(t, eng.BindHost(fake))

	fake.TriggerSaveShortcut()
	assert.Eventually(t, func() bool {
		_, ok := fake.WrittenDocument()
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestShortcutNotRegisteredWhenDisabled(t *testing.T) {
	registry := store.NewRegistry()
	fake := testutil.NewFakeHost("proj-1")
	eng := newTestEngine(t, Config{KeyPrefix: "demo"}, registry)
	eng.MarkHostReady()
	require.NoError(t, eng.BindHost(fake))

	fake.TriggerSaveShortcut()
	time.Sleep(20 * time.Millisecond)
	_, ok := fake.WrittenDocument()
	assert.False(t, ok, "no save should run without the hotkey enabled")
}

func TestCloseGuardReflectsStatus(t *testing.T) {
	registry := store.NewRegistry()
	a := store.NewMapStore("a", nil)
	require.NoError(t, registry.Register(a))

	fake := testutil.NewFakeHost("proj-1")
	eng := newTestEngine(t, Config{KeyPrefix: "demo"}, registry)
	eng.MarkHostReady()
	require.NoError(t, eng.BindHost(fake))
	require.True(t, fake.HasCloseGuard())

	require.True(t, eng.SaveNow(context.Background()))
	assert.True(t, fake.TriggerBeforeClose(), "saved state closes freely")
	a.Set("x", 1)
	assert.False(t, fake.TriggerBeforeClose(), "unsaved state blocks close")
	require.True(t, eng.SaveNow(context.Background()))
	assert.True(t, fake.TriggerBeforeClose())
}

func TestAutosavePersistsDirtyState(t *testing.T) {
	registry := store.NewRegistry()
	a := store.NewMapStore("a", nil)
	require.NoError(t, registry.Register(a))

	fake := testutil.NewFakeHost("proj-1")
	eng := newTestEngine(t, Config{KeyPrefix: "demo", AutoSaveInterval: 10 * time.Millisecond}, registry)
	eng.MarkHostReady()
	require.NoError(t, eng.BindHost(fake))

	a.Set("x", float64(7))
	assert.Eventually(t, func() bool {
		return eng.CurrentStatus() == tracker.StatusSaved
	}, time.Second, 5*time.Millisecond)

	data, ok := fake.WrittenDocument()
	require.True(t, ok)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, map[string]any{"x": float64(7)}, doc["a"])
}

func TestShutdownStopsObservation(t *testing.T) {
	registry := store.NewRegistry()
	a := store.NewMapStore("a", nil)
	require.NoError(t, registry.Register(a))

	fake := testutil.NewFakeHost("proj-1")
	eng := newTestEngine(t, Config{KeyPrefix: "demo", SaveHotkeyEnabled: true}, registry)
	eng.MarkHostReady()
	require.NoError(t, eng.BindHost(fake))
	require.True(t, eng.SaveNow(context.Background()))

	eng.Shutdown()
	eng.Shutdown() // idempotent

	// Changes after shutdown no longer dirty the tracker, the status
	// store is unregistered, and saves are refused.
	a.Set("x", 1)
	assert.Equal(t, tracker.StatusSaved, eng.CurrentStatus())
	assert.Nil(t, registry.Get(tracker.StatusStoreID))
	assert.False(t, eng.SaveNow(context.Background()))
}

func TestMetricsRegistered(t *testing.T) {
	registry := store.NewRegistry()
	metrics := metric.NewRegistry()

	eng, err := New(Config{KeyPrefix: "demo"}, registry, WithMetricsRegistry(metrics))
	require.NoError(t, err)
	t.Cleanup(eng.Shutdown)
	require.NotNil(t, eng.metrics)

	eng.MarkHostReady()
	require.NoError(t, eng.BindHost(testutil.NewFakeHost("proj-1")))

	families, err := metrics.PrometheusRegistry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	assert.True(t, names["statesync_sessions_total"])
}

// TestFullRoundTrip walks the complete lifecycle: two stores, one save, one
// document, and a fresh engine that reproduces the values from disk.
func TestFullRoundTrip(t *testing.T) {
	fake := testutil.NewFakeHost("proj-1")

	first := store.NewRegistry()
	a1 := store.NewMapStore("a", map[string]any{"x": float64(1)})
	b1 := store.NewMapStore("b", map[string]any{"y": []any{float64(1), float64(2)}})
	require.NoError(t, first.Register(a1))
	require.NoError(t, first.Register(b1))

	eng1 := newTestEngine(t, Config{KeyPrefix: "demo"}, first)
	eng1.MarkHostReady()
	require.NoError(t, eng1.BindHost(fake))
	require.True(t, eng1.SaveNow(context.Background()))
	eng1.Shutdown()
	assert.Equal(t, 1, fake.WriteCalls, "one save, one whole-document write")

	data, ok := fake.WrittenDocument()
	require.True(t, ok)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, map[string]any{"x": float64(1)}, doc["a"])
	assert.Equal(t, map[string]any{"y": []any{float64(1), float64(2)}}, doc["b"])

	// Fresh engine, fresh stores with zero-value defaults, same host:
	// loading must reproduce the saved values.
	second := store.NewRegistry()
	a2 := store.NewMapStore("a", map[string]any{"x": float64(0)})
	b2 := store.NewMapStore("b", nil)
	require.NoError(t, second.Register(a2))
	require.NoError(t, second.Register(b2))

	eng2 := newTestEngine(t, Config{KeyPrefix: "demo"}, second)
	eng2.MarkHostReady()
	require.NoError(t, eng2.BindHost(fake))

	got, okA := a2.Get("x")
	require.True(t, okA)
	assert.Equal(t, float64(1), got)
	got, okB := b2.Get("y")
	require.True(t, okB)
	assert.Equal(t, []any{float64(1), float64(2)}, got)
	assert.Equal(t, 1, fake.CreateCalls, "both sessions share one provisioned file")
}
