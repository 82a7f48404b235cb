package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IEBH/statesync/codec"
	"github.com/IEBH/statesync/host"
	"github.com/IEBH/statesync/resolver"
	"github.com/IEBH/statesync/store"
	"github.com/IEBH/statesync/tracker"
)

// Gateway owns the engine's persistence operations and the single in-flight
// save guard. Safe for concurrent use.
type Gateway struct {
	resolver   *resolver.Resolver
	codec      *codec.Codec
	hostHandle host.Host
	tracker    *tracker.Tracker
	logger     *slog.Logger
	metrics    *Metrics

	saving atomic.Bool
}

// New creates a gateway. All dependencies except metrics are required;
// a nil logger falls back to slog.Default().
func New(
	res *resolver.Resolver,
	c *codec.Codec,
	h host.Host,
	tr *tracker.Tracker,
	logger *slog.Logger,
	metrics *Metrics,
) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		resolver:   res,
		codec:      c,
		hostHandle: h,
		tracker:    tr,
		logger:     logger,
		metrics:    metrics,
	}
}

// Load reads and decodes the persisted state document. A nil return means
// "no prior state": the document does not exist yet, is empty, or could not
// be read. Load never returns an error; failures other than absence are
// logged and degrade to nil.
func (g *Gateway) Load(ctx context.Context) store.Snapshot {
	loc, err := g.resolver.Locator(ctx)
	if err != nil {
		g.logger.Warn("load skipped: locator unavailable", "error", err)
		g.countLoad("error")
		return nil
	}

	data, err := g.hostHandle.ReadFile(ctx, loc.Path())
	if err != nil {
		if host.IsNotFound(err) {
			g.logger.Debug("no persisted state yet", "path", loc.Path())
			g.countLoad("absent")
			return nil
		}
		g.logger.Warn("load failed, falling back to defaults",
			"path", loc.Path(),
			"error", err)
		g.countLoad("error")
		return nil
	}

	// A freshly provisioned file has no content yet
	if len(data) == 0 {
		g.countLoad("absent")
		return nil
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		g.logger.Warn("load failed: document is not valid JSON",
			"path", loc.Path(),
			"error", err)
		g.countLoad("error")
		return nil
	}

	decoded, ok := g.codec.Decode(raw).(map[string]any)
	if !ok {
		g.logger.Warn("load failed: decoded document is not a mapping", "path", loc.Path())
		g.countLoad("error")
		return nil
	}

	g.countLoad("ok")
	return store.Snapshot(decoded)
}

// Save encodes and writes the snapshot as one whole document. At most one
// save runs at a time: a request arriving while another is in flight returns
// false immediately without touching the host. Returns true only on a fully
// successful write.
func (g *Gateway) Save(ctx context.Context, snap store.Snapshot) bool {
	if !g.saving.CompareAndSwap(false, true) {
		g.logger.Debug("save rejected: another save is in flight")
		if g.metrics != nil {
			g.metrics.SaveRejections.Inc()
		}
		return false
	}

	start := time.Now()
	success := false

	g.tracker.BeginSave()
	_ = g.hostHandle.ShowProgress(ctx, &host.ProgressOptions{Text: "Saving state"})

	// Cleanup runs on every exit path: resolve the tracker, clear the
	// guard, dismiss the progress indicator.
	defer func() {
		g.tracker.FinishSave(success)
		g.saving.Store(false)
		_ = g.hostHandle.ShowProgress(ctx, nil)

		if g.metrics != nil {
			outcome := "error"
			if success {
				outcome = "ok"
			}
			g.metrics.Saves.WithLabelValues(outcome).Inc()
			g.metrics.SaveDuration.Observe(time.Since(start).Seconds())
		}
	}()

	loc, err := g.resolver.Locator(ctx)
	if err != nil {
		g.logger.Error("save failed: locator unavailable", "error", err)
		return false
	}

	data, err := json.Marshal(g.codec.Encode(map[string]any(snap)))
	if err != nil {
		g.logger.Error("save failed: snapshot not serializable", "error", err)
		return false
	}

	if err := g.hostHandle.WriteFile(ctx, loc.Path(), data); err != nil {
		g.logger.Error("save failed: host write error",
			"path", loc.Path(),
			"error", err)
		return false
	}

	g.logger.Info("state saved",
		"path", loc.Path(),
		"bytes", len(data),
		"duration", time.Since(start))
	success = true
	return true
}

func (g *Gateway) countLoad(outcome string) {
	if g.metrics != nil {
		g.metrics.Loads.WithLabelValues(outcome).Inc()
	}
}
