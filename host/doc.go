// Package host defines the capability surface the sync engine requires from
// its embedding environment: user identity, file read/write, progress
// signaling, and a project descriptor with mutable scratch metadata.
//
// # Required and optional capabilities
//
// Host is the mandatory surface. Two capabilities are optional and asserted
// by interface only when needed:
//
//   - FileCreator: provisioning a brand-new backing file. Its absence is
//     fatal only at the moment a new file must be created.
//   - MetadataWriter: persisting the storage-key → file-id mapping into
//     project metadata. Same fatality rule.
//
// Two further optional capabilities let a host wire user interaction:
//
//   - SaveShortcutSource delivers save-hotkey presses.
//   - CloseGuard lets the engine veto (or warn about) closing with unsaved
//     changes.
//
// # "Not found" detection
//
// Hosts should return ErrFileNotFound (possibly wrapped) when a read targets
// a file that does not exist yet. IsNotFound also falls back to matching
// common "not found" message patterns for hosts that surface their backend's
// raw errors; the pattern match is an acknowledged fragility kept for
// compatibility with such hosts, not a recommended mechanism.
package host
