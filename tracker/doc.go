// Package tracker owns the engine's save status: a three-state machine
// (Saved / Unsaved / Saving) that is the single source of truth consulted
// before every autosave cycle.
//
// All mutation goes through the Tracker's transition methods; observers never
// write the status directly. While a save is in flight, change notifications
// do not transition the status — the save's outcome alone decides whether the
// machine lands on Saved or Unsaved.
//
// The Tracker also implements store.Store under the identifier
// StatusStoreID, so embedding UIs can observe save status exactly like any
// other store. The engine excludes this store from snapshots and from dirty
// subscriptions to avoid a feedback cycle.
package tracker
