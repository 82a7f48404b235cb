// Package resolver derives the stable storage key a state document lives
// under and lazily provisions the backing file that key maps to.
//
// The storage key is either the configured prefix alone, or
// "prefix-<userID>" when per-user state is enabled; the identity lookup
// happens once and is memoized for the resolver's lifetime. The key → file-id
// mapping is persisted in the host's project scratch metadata, so repeated
// sessions reuse the same backing file instead of provisioning a new one.
//
// Provisioning a new file exercises the host's optional FileCreator and
// MetadataWriter capabilities; their absence is a fatal configuration error
// at that moment, not a soft failure.
package resolver
