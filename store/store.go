package store

// Store is the capability surface an observable unit of application state must
// expose to participate in synchronization. Implementations must be safe for
// concurrent use.
type Store interface {
	// Identifier returns the unique string naming this store. It doubles as
	// the snapshot key the store's state is persisted under, so it must be
	// stable across sessions.
	Identifier() string

	// CurrentState returns the store's serializable state tree. The returned
	// tree must be safe for the caller to hold; implementations should copy.
	CurrentState() map[string]any

	// Subscribe registers a change callback and returns a function that
	// removes it. The callback carries no payload; the engine only needs to
	// know that the store is dirty, not what changed.
	Subscribe(onChange func()) (unsubscribe func())

	// ApplyPartial merges a partial state tree into the store. Keys absent
	// from the patch are left untouched.
	ApplyPartial(patch map[string]any)
}

// Snapshot is the complete collected state of all observed stores at one
// instant, keyed by store identifier. It is the exact structure persisted to
// the backing document.
type Snapshot map[string]any
