// Package testutil provides shared fakes for the statesync test suites.
//
// FakeHost is an in-memory implementation of the full host capability
// surface with error injection, call counting, and optional-capability
// toggles, so tests can exercise every failure mode the engine is specified
// to survive without a real host environment.
package testutil
