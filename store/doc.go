// Package store defines the observed-store capability surface the sync engine
// consumes, plus a thread-safe registry of live stores and a concrete
// map-backed store implementation.
//
// # Capability surface
//
// The engine never depends on a particular store framework. Anything that can
// report an identifier, expose its current state as a tree, notify on change,
// and accept a partial update can participate in synchronization:
//
//	type Store interface {
//	    Identifier() string
//	    CurrentState() map[string]any
//	    Subscribe(onChange func()) (unsubscribe func())
//	    ApplyPartial(patch map[string]any)
//	}
//
// # Registry
//
// Registry replaces ambient global store discovery with explicit dependency
// injection: the embedding application registers each store it wants mirrored,
// and hands the registry to the engine at construction. Registration is
// rejected for empty identifiers and duplicates.
//
// # MapStore
//
// MapStore is a self-contained observable store backed by a map tree. It is
// used by the test suite and the demo binary, and is a reasonable default for
// embedders without their own store framework. State reads return deep copies;
// partial application merges nested mappings and replaces everything else.
package store
