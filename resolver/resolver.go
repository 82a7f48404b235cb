package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/IEBH/statesync/errors"
	"github.com/IEBH/statesync/host"
)

// Locator is the resolved physical address of a backing file
type Locator struct {
	ProjectID string
	FileID    string
}

// Path returns the host path of the backing file
func (l Locator) Path() string {
	return l.ProjectID + "/" + l.FileID
}

// Resolver derives storage keys and provisions backing file locators.
// Safe for concurrent use.
type Resolver struct {
	keyPrefix  string
	perUser    bool
	hostHandle host.Host
	logger     *slog.Logger

	mu       sync.Mutex
	userID   string
	resolved bool

	// provMu serializes locator lookup-then-provision so concurrent saves
	// share one backing file instead of each creating their own.
	provMu sync.Mutex
}

// New creates a resolver. The host handle must outlive the resolver.
func New(keyPrefix string, perUser bool, h host.Host, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		keyPrefix:  keyPrefix,
		perUser:    perUser,
		hostHandle: h,
		logger:     logger,
	}
}

// Key returns the storage key the state document is stored under. Without
// per-user state this is the prefix alone and involves no host call. With
// per-user state the first call performs one identity lookup and memoizes
// the result for the resolver's lifetime; a failed lookup propagates and is
// not cached.
func (r *Resolver) Key(ctx context.Context) (string, error) {
	if !r.perUser {
		return r.keyPrefix, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.resolved {
		if r.hostHandle == nil {
			return "", errors.WrapFatal(errors.ErrHostNotBound, "Resolver", "Key", "identity lookup")
		}
		identity, err := r.hostHandle.Identity(ctx)
		if err != nil {
			return "", errors.Wrap(
				fmt.Errorf("%w: %w", errors.ErrIdentityUnavailable, err),
				"Resolver", "Key", "identity lookup")
		}
		if identity.ID == "" {
			return "", errors.Wrap(errors.ErrIdentityUnavailable, "Resolver", "Key", "identity lookup")
		}
		r.userID = identity.ID
		r.resolved = true
	}

	return r.keyPrefix + "-" + r.userID, nil
}

// Locator resolves the backing file for the current storage key, creating it
// on first need. The key → file-id mapping lives in the project's Temp
// metadata, so an existing mapping is reused and repeated calls return the
// identical locator without duplicate file creation.
func (r *Resolver) Locator(ctx context.Context) (Locator, error) {
	key, err := r.Key(ctx)
	if err != nil {
		return Locator{}, err
	}

	if r.hostHandle == nil {
		return Locator{}, errors.WrapFatal(errors.ErrHostNotBound, "Resolver", "Locator", "project lookup")
	}

	project := r.hostHandle.Project()
	if project == nil || project.ID == "" {
		return Locator{}, errors.WrapFatal(errors.ErrProjectIDMissing, "Resolver", "Locator", "project validation")
	}

	// The Temp check and the provisioning below must be one atomic step:
	// two callers racing past the check would each create a distinct file
	// and the metadata would keep only one of them.
	r.provMu.Lock()
	defer r.provMu.Unlock()

	if project.Temp == nil {
		project.Temp = make(map[string]string)
	}

	if fileID, exists := project.Temp[key]; exists {
		return Locator{ProjectID: project.ID, FileID: fileID}, nil
	}

	// First need: provision a new backing file. Both optional capabilities
	// are mandatory at this point; check them before any side effect.
	creator, ok := r.hostHandle.(host.FileCreator)
	if !ok {
		return Locator{}, errors.WrapFatal(
			fmt.Errorf("%w: FileCreator", errors.ErrCapabilityMissing),
			"Resolver", "Locator", "capability check")
	}
	writer, ok := r.hostHandle.(host.MetadataWriter)
	if !ok {
		return Locator{}, errors.WrapFatal(
			fmt.Errorf("%w: MetadataWriter", errors.ErrCapabilityMissing),
			"Resolver", "Locator", "capability check")
	}

	fileID := r.keyPrefix + "-" + uuid.NewString()
	loc := Locator{ProjectID: project.ID, FileID: fileID}

	if err := creator.CreateFile(ctx, loc.Path()); err != nil {
		return Locator{}, errors.WrapTransient(err, "Resolver", "Locator", "create backing file")
	}
	if err := writer.SetProjectMetadata(ctx, key, fileID); err != nil {
		return Locator{}, errors.WrapTransient(err, "Resolver", "Locator", "persist file id")
	}
	project.Temp[key] = fileID

	r.logger.Info("provisioned backing file",
		"storage_key", key,
		"file_id", fileID,
		"project_id", project.ID)

	return loc, nil
}
