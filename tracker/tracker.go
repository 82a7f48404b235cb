package tracker

import "sync"

// Status is the engine's save status
type Status int

const (
	// StatusSaved means the persisted document reflects all observed state
	StatusSaved Status = iota
	// StatusUnsaved means at least one observed store changed since the
	// last successful save, or no save has happened yet
	StatusUnsaved
	// StatusSaving means a save operation is in flight
	StatusSaving
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusSaved:
		return "saved"
	case StatusUnsaved:
		return "unsaved"
	case StatusSaving:
		return "saving"
	default:
		return "unknown"
	}
}

// StatusStoreID is the identifier the tracker's backing status store is
// registered under. The engine excludes this identifier from snapshots.
const StatusStoreID = "sync-status"

// Tracker is the engine's dirty-state machine. The zero value starts at
// StatusSaved and is ready to use.
type Tracker struct {
	mu      sync.Mutex
	status  Status
	subs    map[int]func()
	nextSub int
}

// New creates a tracker starting at StatusSaved
func New() *Tracker {
	return &Tracker{
		subs: make(map[int]func()),
	}
}

// Status returns the current save status
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// MarkDirty records an observed store change. Saved becomes Unsaved; a
// change arriving while a save is in flight does not transition the status —
// the save outcome alone decides where the machine lands.
func (t *Tracker) MarkDirty() {
	t.transition(func(s Status) (Status, bool) {
		if s == StatusSaved {
			return StatusUnsaved, true
		}
		return s, false
	})
}

// BeginSave transitions to Saving as a save operation enters
func (t *Tracker) BeginSave() {
	t.transition(func(s Status) (Status, bool) {
		return StatusSaving, s != StatusSaving
	})
}

// FinishSave resolves an in-flight save: Saved on success, Unsaved on
// failure. Ignored unless a save is actually in flight.
func (t *Tracker) FinishSave(ok bool) {
	t.transition(func(s Status) (Status, bool) {
		if s != StatusSaving {
			return s, false
		}
		if ok {
			return StatusSaved, true
		}
		return StatusUnsaved, true
	})
}

// SetLoaded records the outcome of the startup load: a non-nil snapshot
// means the persisted document and live state agree (Saved); no prior state
// means the defaults are considered unsaved until first explicit save.
// Ignored while a save is in flight.
func (t *Tracker) SetLoaded(found bool) {
	t.transition(func(s Status) (Status, bool) {
		if s == StatusSaving {
			return s, false
		}
		if found {
			return StatusSaved, s != StatusSaved
		}
		return StatusUnsaved, s != StatusUnsaved
	})
}

// transition applies fn under the lock and notifies subscribers outside it
// when the status changed.
func (t *Tracker) transition(fn func(Status) (Status, bool)) {
	t.mu.Lock()
	next, changed := fn(t.status)
	t.status = next

	var callbacks []func()
	if changed {
		callbacks = make([]func(), 0, len(t.subs))
		for _, sub := range t.subs {
			callbacks = append(callbacks, sub)
		}
	}
	t.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// Identifier implements store.Store
func (t *Tracker) Identifier() string {
	return StatusStoreID
}

// CurrentState implements store.Store, exposing the status as a state tree
func (t *Tracker) CurrentState() map[string]any {
	return map[string]any{"status": t.Status().String()}
}

// Subscribe implements store.Store; callbacks fire on every status change
func (t *Tracker) Subscribe(onChange func()) func() {
	t.mu.Lock()
	if t.subs == nil {
		t.subs = make(map[int]func())
	}
	id := t.nextSub
	t.nextSub++
	t.subs[id] = onChange
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// ApplyPartial implements store.Store. The status machine is authoritative;
// external patches are ignored.
func (t *Tracker) ApplyPartial(map[string]any) {}
