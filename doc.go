// Package statesync mirrors in-memory observable state stores to a single
// external JSON document through a pluggable host file API.
//
// # Architecture
//
// The module is a set of small packages orchestrated by the sync engine:
//
//	┌─────────────────────────────────────┐
//	│          Sync Engine                │  Lifecycle, autosave,
//	│  (bind, ready, save, status)        │  host hooks
//	└─────────────────────────────────────┘
//	           ↓ collects / applies
//	┌─────────────────────────────────────┐
//	│        Store Registry               │  Observable stores
//	│   (subscribe, snapshot, patch)      │  (application state)
//	└─────────────────────────────────────┘
//	           ↓ persists via
//	┌─────────────────────────────────────┐
//	│      Persistence Gateway            │  Single in-flight save,
//	│    (codec + resolver + host)        │  whole-document writes
//	└─────────────────────────────────────┘
//
// The codec makes map and set containers survive the JSON round trip by
// tagging them with sentinel fields; the resolver binds a logical key
// prefix to a concrete backing file, provisioning one on first use; the
// tracker exposes the saved/unsaved/saving status as an observable store
// of its own.
//
// Hosts implement a small mandatory interface (read, write, identity,
// progress, project) plus optional capabilities discovered by interface
// assertion: file creation, metadata writes, notices, save shortcuts, and
// close guards. The natshost package provides a production host backed by
// NATS JetStream key/value buckets; testutil provides an in-memory fake.
//
// # Usage
//
//	registry := store.NewRegistry()
//	_ = registry.Register(store.NewMapStore("settings", nil))
//
//	eng, err := syncengine.New(syncengine.Config{KeyPrefix: "myapp"}, registry)
//	if err != nil {
//		return err
//	}
//	if err := eng.BindHost(h); err != nil {
//		return err
//	}
//	eng.MarkHostReady()
//	defer eng.Shutdown()
//
// Stores dirty the tracker as they change; saves run on demand, on the
// autosave interval, or from a host save shortcut, and always write the
// whole document.
package statesync
