package store

import "sync"

// MapStore is an observable store backed by a map tree. It implements the
// Store interface and is safe for concurrent use.
//
// Reads return deep copies of plain mappings and sequences; leaf values of
// other types (dates, extended containers) are shared by reference, matching
// the engine's treatment of them as opaque leaves.
type MapStore struct {
	id      string
	mu      sync.RWMutex
	state   map[string]any
	subs    map[int]func()
	nextSub int
}

// NewMapStore creates a map-backed store with the given identifier and
// initial state. A nil initial state starts empty.
func NewMapStore(id string, initial map[string]any) *MapStore {
	state := copyTree(initial)
	if state == nil {
		state = make(map[string]any)
	}
	return &MapStore{
		id:    id,
		state: state,
		subs:  make(map[int]func()),
	}
}

// Identifier returns the store's unique name
func (m *MapStore) Identifier() string {
	return m.id
}

// CurrentState returns a copy of the store's state tree
func (m *MapStore) CurrentState() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyTree(m.state)
}

// Set assigns a single top-level key and notifies subscribers
func (m *MapStore) Set(key string, value any) {
	m.mu.Lock()
	m.state[key] = value
	m.mu.Unlock()

	m.notify()
}

// Get returns the value at a top-level key
func (m *MapStore) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.state[key]
	return v, ok
}

// ApplyPartial merges a partial state tree into the store and notifies
// subscribers. Nested mappings merge recursively; any other value replaces
// the existing one. Keys absent from the patch are untouched.
func (m *MapStore) ApplyPartial(patch map[string]any) {
	if len(patch) == 0 {
		return
	}

	m.mu.Lock()
	mergeTree(m.state, patch)
	m.mu.Unlock()

	m.notify()
}

// Subscribe registers a change callback and returns its removal function.
// The removal function is idempotent.
func (m *MapStore) Subscribe(onChange func()) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = onChange
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// notify invokes subscribers outside the state lock so a callback may read
// the store without deadlocking.
func (m *MapStore) notify() {
	m.mu.RLock()
	callbacks := make([]func(), 0, len(m.subs))
	for _, fn := range m.subs {
		callbacks = append(callbacks, fn)
	}
	m.mu.RUnlock()

	for _, fn := range callbacks {
		fn()
	}
}

// mergeTree merges src into dst in place. Mappings merge recursively; other
// values replace.
func mergeTree(dst, src map[string]any) {
	for key, value := range src {
		if srcMap, ok := value.(map[string]any); ok {
			if dstMap, ok := dst[key].(map[string]any); ok {
				mergeTree(dstMap, srcMap)
				continue
			}
		}
		dst[key] = value
	}
}

// copyTree deep-copies plain mappings and sequences; other values pass
// through by reference.
func copyTree(tree map[string]any) map[string]any {
	if tree == nil {
		return nil
	}
	result := make(map[string]any, len(tree))
	for key, value := range tree {
		result[key] = copyValue(value)
	}
	return result
}

func copyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return copyTree(v)
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = copyValue(item)
		}
		return result
	default:
		return value
	}
}
