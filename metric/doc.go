// Package metric manages Prometheus metric registration for the sync engine.
//
// The engine's observability sink is optional: every component that records
// metrics accepts a nil *Registry and degrades to logging only. When a
// registry is supplied, each component registers its collectors under a
// component name so duplicate registration is caught at startup rather than
// at scrape time.
//
// Handler exposes the registry's metrics over HTTP for scraping; the demo
// binary mounts it at /metrics.
package metric
