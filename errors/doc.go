// Package errors provides standardized error handling patterns for statesync
// components.
//
// # Overview
//
// The errors package implements a three-class error classification system for
// the persistence engine: Transient (temporary, the save can be retried on the
// next autosave tick), Invalid (bad input or configuration, non-retryable), and
// Fatal (missing host capability or project identity, the operation cannot
// proceed at all).
//
// No classified error is fatal to the embedding process. The worst-case outcome
// of any engine failure is "changes remain unsaved and the status store says
// so" — components degrade to a false/nil return plus a log entry rather than
// raising faults across the engine boundary.
//
// # Error Classification
//
//   - Transient: host I/O failures during read/write (retry on next save cycle)
//   - Invalid: malformed configuration, invalid store registration, bad input
//   - Fatal: missing host capability, project without an id, unbound host
//
// # Usage
//
// Wrap errors at component boundaries with context:
//
//	if err := host.WriteFile(ctx, path, data); err != nil {
//	    return errors.WrapTransient(err, "Gateway", "Save", "write document")
//	}
//
// Callers branch on class, never on message text:
//
//	if errors.IsFatal(err) {
//	    // configuration problem, surface to the embedder
//	}
package errors
