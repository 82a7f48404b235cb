// Package gateway wraps the host's file primitives into the engine's two
// persistence operations: Load and Save.
//
// Load never fails its caller. A missing document — including the very first
// session, before anything was saved — yields a nil snapshot; any other read
// failure is logged and also yields nil, because absence of state is always
// recoverable by falling back to default in-memory state.
//
// Save enforces at-most-one concurrent persistence operation with an atomic
// in-flight guard: a save requested while another is in flight is rejected
// immediately with no queueing and no error, and the caller is expected to
// retry later (the next autosave tick or an explicit user action). Cleanup —
// clearing the guard and dismissing the host progress indicator — runs on
// every exit path.
package gateway
