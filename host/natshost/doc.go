// Package natshost adapts NATS JetStream key/value buckets into the host
// capability surface: state documents live in one bucket keyed by their
// resolved path, and project metadata lives in a second bucket under
// compare-and-set protection so concurrent writers cannot drop entries.
//
// The adapter implements the optional FileCreator and MetadataWriter
// capabilities, so engines running against it can provision new backing
// files on first use. Progress reporting degrades to structured log lines;
// a headless service has nothing to render.
package natshost
