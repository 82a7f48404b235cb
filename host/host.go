package host

import (
	"context"
	"errors"
	"strings"
)

// Identity describes the host's current user
type Identity struct {
	ID string
}

// ProgressOptions configures a host progress indicator. A nil options value
// passed to ShowProgress dismisses the indicator.
type ProgressOptions struct {
	Text string
}

// Project is the host's project descriptor. ID must be non-empty for storage
// provisioning to work; Temp is host-managed scratch metadata that survives
// process restarts (the engine stores its storage-key → file-id mapping
// there). A nil Temp is auto-created by the resolver.
type Project struct {
	ID   string
	Temp map[string]string
}

// Host is the mandatory capability surface the engine binds to
type Host interface {
	// Identity returns the current user's identity. Required only when the
	// engine is configured for per-user state.
	Identity(ctx context.Context) (Identity, error)

	// ReadFile returns the contents of the file at path. A file that does
	// not exist yet must yield an error satisfying IsNotFound.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile replaces the contents of the file at path. The document is
	// always written whole; there are no incremental writes.
	WriteFile(ctx context.Context, path string, data []byte) error

	// ShowProgress displays a progress indicator, or dismisses it when
	// opts is nil.
	ShowProgress(ctx context.Context, opts *ProgressOptions) error

	// Project returns the host's project descriptor
	Project() *Project
}

// FileCreator is the optional capability to provision a new backing file.
// Absence is fatal only when a new file must be created.
type FileCreator interface {
	CreateFile(ctx context.Context, path string) error
}

// MetadataWriter is the optional capability to persist a project metadata
// entry. Absence is fatal only when a new file id must be recorded.
type MetadataWriter interface {
	SetProjectMetadata(ctx context.Context, key, value string) error
}

// Notifier is the optional capability to show the user an informational
// notice. Hosts without it simply never show notices.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// SaveShortcutSource is the optional capability to deliver save-hotkey
// presses. The returned function removes the listener.
type SaveShortcutSource interface {
	OnSaveShortcut(fn func()) (remove func())
}

// CloseGuard is the optional capability to consult the engine before the
// host closes. The callback returns true when closing is safe.
type CloseGuard interface {
	OnBeforeClose(fn func() bool) (remove func())
}

// ErrFileNotFound indicates a read of a file that does not exist yet.
// For the engine this is not a true error: absence of state is always
// recoverable by falling back to default in-memory state.
var ErrFileNotFound = errors.New("file not found")

// IsNotFound reports whether an error indicates a missing file. It prefers
// the structured ErrFileNotFound and falls back to message-pattern matching
// for hosts that pass through raw backend errors.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrFileNotFound) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") ||
		strings.Contains(msg, "no such file") ||
		strings.Contains(msg, "does not exist")
}
