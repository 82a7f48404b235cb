package store

import (
	"fmt"
	"maps"
	"sync"

	"github.com/IEBH/statesync/errors"
)

// Registry manages the set of live stores the engine observes and mirrors.
// It provides thread-safe registration and lookup. The embedding application
// owns the registry and hands it to the engine explicitly; there is no global
// registry.
type Registry struct {
	stores map[string]Store
	mu     sync.RWMutex
}

// NewRegistry creates a new empty store registry
func NewRegistry() *Registry {
	return &Registry{
		stores: make(map[string]Store),
	}
}

// Register adds a store to the registry.
// Returns an error for a nil store, an empty identifier, or a duplicate.
func (r *Registry) Register(s Store) error {
	if s == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "store validation")
	}
	id := s.Identifier()
	if id == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "identifier validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[id]; exists {
		msg := fmt.Errorf("store '%s': %w", id, errors.ErrStoreExists)
		return errors.WrapInvalid(msg, "Registry", "Register", "duplicate store check")
	}

	r.stores[id] = s
	return nil
}

// Unregister removes a store from the registry. Unknown identifiers are a
// no-op so teardown paths stay idempotent.
func (r *Registry) Unregister(id string) {
	if id == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, id)
}

// Get retrieves a store by identifier. Returns nil if not registered.
func (r *Registry) Get(id string) Store {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stores[id]
}

// List returns all registered stores keyed by identifier.
// The map is a copy to prevent external modification.
func (r *Registry) List() map[string]Store {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]Store, len(r.stores))
	maps.Copy(result, r.stores)
	return result
}

// Len returns the number of registered stores
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores)
}
