// Package syncengine provides the top-level sync orchestrator: it observes a
// registry of live stores, mirrors their collected state to a single JSON
// document through the persistence gateway, and applies a freshly loaded
// snapshot back onto live stores at session start.
//
// # Lifecycle
//
// An engine is constructed once from a validated Config and a store
// registry, then attached to its host environment in either order:
//
//	eng, err := syncengine.New(cfg, stores)
//	…
//	eng.MarkHostReady()
//	err = eng.BindHost(h)
//
// Session initialization runs exactly once, as soon as both the ready signal
// and a host binding are present; attempts before that are safely skipped,
// not errors. Initialization loads the persisted snapshot and applies each
// entry to the matching live store with a partial merge. Snapshot entries
// with no matching live store are silently ignored, and live stores absent
// from the snapshot keep their defaults — which stores exist at load time
// therefore shapes the outcome, a behavior inherited from the original
// design and deliberately preserved.
//
// # Saving
//
// SaveNow collects every registered store's current state (excluding the
// engine's own status store) and hands it to the gateway, whose in-flight
// guard makes overlapping requests collapse to one write. The optional
// autosave ticker calls the same path on an interval, skipping ticks when
// the status is already Saved. A startup load racing an early SaveNow is
// not ordered by the engine; this is a known, documented race.
//
// Shutdown stops the ticker, removes host listeners, drops store
// subscriptions, and resets the ready/initialized flags. It is idempotent
// and leaves the last save status readable.
package syncengine
