package syncengine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/IEBH/statesync/codec"
	"github.com/IEBH/statesync/errors"
	"github.com/IEBH/statesync/gateway"
	"github.com/IEBH/statesync/host"
	"github.com/IEBH/statesync/metric"
	"github.com/IEBH/statesync/resolver"
	"github.com/IEBH/statesync/store"
	"github.com/IEBH/statesync/tracker"
)

// initialNotice is shown at most once per engine through the host's
// optional Notifier capability.
const initialNotice = "State sync is active: changes are saved to this project automatically."

// Engine orchestrates the full sync lifecycle over a registry of live
// stores. All exported methods are safe for concurrent use.
type Engine struct {
	cfg       Config
	stores    *store.Registry
	logger    *slog.Logger
	metricReg *metric.Registry
	metrics   *Metrics

	tracker *tracker.Tracker

	mu          sync.Mutex
	hostHandle  host.Host
	hostReady   bool
	initialized bool
	noticeShown bool

	gw  *gateway.Gateway
	res *resolver.Resolver

	unsubscribes    []func()
	removeShortcut  func()
	removeCloseHook func()

	autosaveStop chan struct{}
	autosaveDone chan struct{}

	// hotkeyLimit throttles save-shortcut presses so key repeat cannot
	// flood the gateway with rejected requests.
	hotkeyLimit *rate.Limiter
}

// Option customizes engine construction.
type Option func(*Engine)

// WithLogger sets the engine's logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetricsRegistry enables metric collection on the given registry.
// Without it the engine runs unmetered.
func WithMetricsRegistry(reg *metric.Registry) Option {
	return func(e *Engine) {
		e.metricReg = reg
	}
}

// New creates an engine over the given store registry. The configuration is
// validated eagerly; an invalid configuration fails construction.
func New(cfg Config, stores *store.Registry, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Engine", "New", "configuration rejected")
	}
	if stores == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Engine", "New", "store registry required")
	}

	e := &Engine{
		cfg:         cfg,
		stores:      stores,
		logger:      slog.Default(),
		tracker:     tracker.New(),
		hotkeyLimit: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.metricReg != nil {
		m, err := NewMetrics(e.metricReg)
		if err != nil {
			return nil, errors.Wrap(err, "Engine", "New", "metric registration failed")
		}
		e.metrics = m
	}

	e.logger = e.logger.With("component", "syncengine")
	return e, nil
}

// MarkHostReady signals that the host environment has finished its own
// startup. Initialization runs when both this signal and a bound host are
// present, in either arrival order. Calling it again after initialization
// is a no-op.
func (e *Engine) MarkHostReady() {
	e.mu.Lock()
	e.hostReady = true
	e.mu.Unlock()
	e.tryInitialize()
}

// BindHost attaches the host environment. Rebinding after initialization is
// rejected; binding before MarkHostReady is fine and simply defers
// initialization until the ready signal arrives.
func (e *Engine) BindHost(h host.Host) error {
	if h == nil {
		return errors.WrapInvalid(errors.ErrHostNotBound, "Engine", "BindHost", "nil host")
	}

	e.mu.Lock()
	if e.initialized {
		e.mu.Unlock()
		return errors.WrapInvalid(errors.ErrHostNotBound, "Engine", "BindHost", "engine already initialized")
	}
	e.hostHandle = h
	e.mu.Unlock()

	e.tryInitialize()
	return nil
}

// SaveNow collects all observed state and persists it as one document.
// Returns true only on a fully successful write; false covers both failures
// and rejection because another save is already in flight. Before
// initialization it returns false without touching the host.
func (e *Engine) SaveNow(ctx context.Context) bool {
	e.mu.Lock()
	gw := e.gw
	e.mu.Unlock()

	if gw == nil {
		e.logger.Debug("save skipped: engine not initialized")
		return false
	}
	return gw.Save(ctx, e.collect())
}

// CurrentStatus returns the engine's save status.
func (e *Engine) CurrentStatus() tracker.Status {
	return e.tracker.Status()
}

// StatusStore exposes the tracker as an observable store so applications
// can render the save status reactively.
func (e *Engine) StatusStore() store.Store {
	return e.tracker
}

// Shutdown tears the engine down: the autosave ticker stops, host listeners
// and store subscriptions are removed, and the ready/initialized flags reset
// so a fresh BindHost/MarkHostReady pair could start a new session. It is
// idempotent and never blocks on in-flight saves; the last save status stays
// readable afterwards.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	stop := e.autosaveStop
	done := e.autosaveDone
	e.autosaveStop = nil
	e.autosaveDone = nil

	unsubs := e.unsubscribes
	e.unsubscribes = nil
	removeShortcut := e.removeShortcut
	e.removeShortcut = nil
	removeCloseHook := e.removeCloseHook
	e.removeCloseHook = nil

	wasInitialized := e.initialized
	e.initialized = false
	e.hostReady = false
	e.hostHandle = nil
	e.gw = nil
	e.res = nil
	e.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	if removeShortcut != nil {
		removeShortcut()
	}
	if removeCloseHook != nil {
		removeCloseHook()
	}
	for _, unsub := range unsubs {
		unsub()
	}
	e.stores.Unregister(tracker.StatusStoreID)

	if wasInitialized {
		e.logger.Info("engine shut down")
	}
}

// tryInitialize runs session initialization exactly once, when both the
// ready signal and a host binding are present.
func (e *Engine) tryInitialize() {
	e.mu.Lock()
	if e.initialized || !e.hostReady || e.hostHandle == nil {
		e.mu.Unlock()
		return
	}
	e.initialized = true
	h := e.hostHandle
	e.mu.Unlock()

	e.initializeSession(context.Background(), h)
}

// initializeSession wires the persistence pipeline, loads persisted state
// onto the live stores, and installs host listeners and the autosave
// ticker.
func (e *Engine) initializeSession(ctx context.Context, h host.Host) {
	_ = h.ShowProgress(ctx, &host.ProgressOptions{Text: "Loading saved state"})
	defer func() { _ = h.ShowProgress(ctx, nil) }()

	var codecMetrics *codec.Metrics
	var gwMetrics *gateway.Metrics
	if e.metricReg != nil {
		codecMetrics, _ = codec.NewMetrics(e.metricReg)
		gwMetrics, _ = gateway.NewMetrics(e.metricReg)
	}

	res := resolver.New(e.cfg.KeyPrefix, e.cfg.PerUserState, h, e.logger)
	gw := gateway.New(res, codec.New(e.logger, codecMetrics), h, e.tracker, e.logger, gwMetrics)

	e.mu.Lock()
	e.res = res
	e.gw = gw
	e.mu.Unlock()

	// The status store is observable like any other store but never part
	// of a snapshot: persisting it would dirty itself on every save.
	if err := e.stores.Register(e.tracker); err != nil {
		e.logger.Debug("status store already registered", "error", err)
	}

	e.subscribeStores()

	snap := gw.Load(ctx)
	e.applySnapshot(snap)
	e.tracker.SetLoaded(snap != nil)

	e.installHostHooks(ctx, h)
	e.startAutosave()

	if e.metrics != nil {
		e.metrics.Sessions.Inc()
	}
	e.logger.Info("session initialized",
		"prefix", e.cfg.KeyPrefix,
		"loaded", snap != nil,
		"stores", e.stores.Len())
}

// subscribeStores marks the tracker dirty on any change from any observed
// store. The status store itself is excluded so status transitions cannot
// feed back into the dirty state.
func (e *Engine) subscribeStores() {
	var unsubs []func()
	for id, s := range e.stores.List() {
		if id == tracker.StatusStoreID {
			continue
		}
		unsubs = append(unsubs, s.Subscribe(e.tracker.MarkDirty))
	}

	e.mu.Lock()
	e.unsubscribes = unsubs
	e.mu.Unlock()
}

// applySnapshot merges each snapshot entry into the matching live store.
// Entries without a live store are ignored; live stores without an entry
// keep their defaults.
func (e *Engine) applySnapshot(snap store.Snapshot) {
	if snap == nil {
		return
	}
	for id, raw := range snap {
		if id == tracker.StatusStoreID {
			continue
		}
		s := e.stores.Get(id)
		if s == nil {
			e.logger.Debug("snapshot entry has no live store", "store", id)
			continue
		}
		patch, ok := raw.(map[string]any)
		if !ok {
			e.logger.Warn("snapshot entry is not a mapping, skipping", "store", id)
			continue
		}
		s.ApplyPartial(patch)
	}
}

// installHostHooks registers the optional host listeners: the one-time
// notice, the save hotkey, and the close guard. Each capability is probed
// by interface assertion and skipped when absent.
func (e *Engine) installHostHooks(ctx context.Context, h host.Host) {
	if e.cfg.ShowInitialNotice {
		// The one-time flag is consumed only once a capable host gets the
		// notice; a host without the capability leaves it pending for a
		// later session that can display it.
		if n, ok := h.(host.Notifier); ok {
			e.mu.Lock()
			shown := e.noticeShown
			e.noticeShown = true
			e.mu.Unlock()

			if !shown {
				if err := n.Notify(ctx, initialNotice); err != nil {
					e.logger.Warn("initial notice failed", "error", err)
				}
			}
		}
	}

	if e.cfg.SaveHotkeyEnabled {
		if src, ok := h.(host.SaveShortcutSource); ok {
			remove := src.OnSaveShortcut(func() {
				if !e.hotkeyLimit.Allow() {
					return
				}
				if e.metrics != nil {
					e.metrics.ShortcutSaves.Inc()
				}
				go e.SaveNow(context.Background())
			})
			e.mu.Lock()
			e.removeShortcut = remove
			e.mu.Unlock()
		}
	}

	if guard, ok := h.(host.CloseGuard); ok {
		remove := guard.OnBeforeClose(func() bool {
			return e.tracker.Status() == tracker.StatusSaved
		})
		e.mu.Lock()
		e.removeCloseHook = remove
		e.mu.Unlock()
	}
}

// startAutosave launches the periodic save loop when configured. Ticks with
// nothing unsaved are skipped so an idle session never touches the host.
func (e *Engine) startAutosave() {
	if e.cfg.AutoSaveInterval <= 0 {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	e.mu.Lock()
	e.autosaveStop = stop
	e.autosaveDone = done
	e.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(e.cfg.AutoSaveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if e.tracker.Status() == tracker.StatusSaved {
					continue
				}
				if e.metrics != nil {
					e.metrics.AutosaveTicks.Inc()
				}
				e.SaveNow(context.Background())
			}
		}
	}()
}

// collect gathers every registered store's current state, keyed by store
// identifier. The status store is excluded from the document.
func (e *Engine) collect() store.Snapshot {
	snap := make(store.Snapshot)
	for id, s := range e.stores.List() {
		if id == tracker.StatusStoreID {
			continue
		}
		snap[id] = s.CurrentState()
	}
	return snap
}
