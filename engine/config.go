package syncengine

import (
	"fmt"
	"time"

	"github.com/IEBH/statesync/errors"
)

// Config is the engine's immutable construction configuration.
// Validation is eager: an invalid config fails construction closed and no
// partial engine is produced.
type Config struct {
	// KeyPrefix is the logical name state documents are stored under.
	// Required; restricted to alphanumerics, dash, underscore and dot so
	// it can embed safely in file identifiers and metadata keys.
	KeyPrefix string

	// PerUserState scopes the storage key to the host's current user
	PerUserState bool

	// AutoSaveInterval enables periodic background saves when positive;
	// zero disables autosave entirely.
	AutoSaveInterval time.Duration

	// ShowInitialNotice shows a one-time informational notice after the
	// first successful session initialization
	ShowInitialNotice bool

	// SaveHotkeyEnabled registers a save-shortcut listener when the host
	// supports one
	SaveHotkeyEnabled bool
}

// maxKeyPrefixLength bounds the prefix so synthesized file identifiers stay
// within conservative host path limits.
const maxKeyPrefixLength = 128

// Validate checks the configuration, returning an invalid-class error on the
// first problem found
func (c Config) Validate() error {
	if c.KeyPrefix == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "key prefix required")
	}
	if len(c.KeyPrefix) > maxKeyPrefixLength {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "key prefix too long")
	}
	for _, r := range c.KeyPrefix {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.') {
			return errors.WrapInvalid(
				fmt.Errorf("%w: key prefix contains %q", errors.ErrInvalidConfig, r),
				"Config", "Validate", "key prefix characters")
		}
	}
	if c.AutoSaveInterval < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "negative autosave interval")
	}
	return nil
}
