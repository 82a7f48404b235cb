package natshost

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/IEBH/statesync/errors"
	"github.com/IEBH/statesync/host"
	"github.com/IEBH/statesync/pkg/retry"
)

var (
	_ host.Host           = (*Host)(nil)
	_ host.FileCreator    = (*Host)(nil)
	_ host.MetadataWriter = (*Host)(nil)
)

// Config holds the connection and bucket settings for a NATS-backed host
type Config struct {
	// URL is the NATS server address
	URL string

	// DocumentsBucket is the KV bucket holding state documents
	DocumentsBucket string

	// MetadataBucket is the KV bucket holding per-project metadata
	MetadataBucket string

	// ProjectID scopes all documents and metadata. Required.
	ProjectID string

	// UserID is the identity reported to per-user engines. Optional;
	// identity requests fail when it is empty.
	UserID string

	// ConnectTimeout bounds the initial connection. Defaults to 5s.
	ConnectTimeout time.Duration

	// OperationTimeout bounds each KV operation. Defaults to 5s.
	OperationTimeout time.Duration
}

// Validate checks the configuration, returning an invalid-class error on
// the first problem found
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "natshost.Config", "Validate", "url required")
	}
	if c.DocumentsBucket == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "natshost.Config", "Validate", "documents bucket required")
	}
	if c.MetadataBucket == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "natshost.Config", "Validate", "metadata bucket required")
	}
	if c.ProjectID == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "natshost.Config", "Validate", "project id required")
	}
	if c.DocumentsBucket == c.MetadataBucket {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "natshost.Config", "Validate", "buckets must differ")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = 5 * time.Second
	}
	return c
}

// Host is a NATS JetStream KV implementation of the host capability
// surface. Safe for concurrent use.
type Host struct {
	cfg    Config
	logger *slog.Logger

	conn *nats.Conn
	docs jetstream.KeyValue
	meta jetstream.KeyValue

	// casRetry governs metadata compare-and-set retries under contention
	casRetry retry.Config

	mu   sync.Mutex
	proj *host.Project
}

// Connect dials the NATS server, provisions both KV buckets, and loads the
// project's metadata into memory. The returned host must be closed when no
// longer needed.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "natshost")

	conn, err := nats.Connect(cfg.URL,
		nats.Timeout(cfg.ConnectTimeout),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
	)
	if err != nil {
		return nil, errors.WrapTransient(err, "natshost", "Connect", "nats connection failed")
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, errors.WrapFatal(err, "natshost", "Connect", "jetstream unavailable")
	}

	h := &Host{
		cfg:      cfg,
		logger:   logger,
		conn:     conn,
		casRetry: retry.DefaultConfig(),
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	h.docs, err = js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.DocumentsBucket,
		Description: "state documents",
	})
	if err != nil {
		conn.Close()
		return nil, errors.WrapTransient(err, "natshost", "Connect", "documents bucket unavailable")
	}

	h.meta, err = js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.MetadataBucket,
		Description: "project metadata",
	})
	if err != nil {
		conn.Close()
		return nil, errors.WrapTransient(err, "natshost", "Connect", "metadata bucket unavailable")
	}

	temp, err := h.loadMetadata(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}
	h.proj = &host.Project{ID: cfg.ProjectID, Temp: temp}

	logger.Info("connected",
		"url", cfg.URL,
		"project", cfg.ProjectID,
		"metadata_entries", len(temp))
	return h, nil
}

// Close drains the NATS connection
func (h *Host) Close() error {
	return h.conn.Drain()
}

// Identity implements host.Host
func (h *Host) Identity(context.Context) (host.Identity, error) {
	if h.cfg.UserID == "" {
		return host.Identity{}, errors.WrapTransient(
			errors.ErrIdentityUnavailable, "natshost", "Identity", "no user configured")
	}
	return host.Identity{ID: h.cfg.UserID}, nil
}

// ReadFile implements host.Host. A missing document yields an error
// satisfying host.IsNotFound.
func (h *Host) ReadFile(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := h.opContext(ctx)
	defer cancel()

	entry, err := h.docs.Get(ctx, documentKey(path))
	if err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, fmt.Errorf("read %s: %w", path, host.ErrFileNotFound)
		}
		return nil, errors.WrapTransient(err, "natshost", "ReadFile", "kv get failed")
	}
	return entry.Value(), nil
}

// WriteFile implements host.Host with last-writer-wins semantics; the
// engine's own in-flight guard already serializes writers.
func (h *Host) WriteFile(ctx context.Context, path string, data []byte) error {
	ctx, cancel := h.opContext(ctx)
	defer cancel()

	rev, err := h.docs.Put(ctx, documentKey(path), data)
	if err != nil {
		return errors.WrapTransient(err, "natshost", "WriteFile", "kv put failed")
	}
	h.logger.Debug("document written", "path", path, "bytes", len(data), "revision", rev)
	return nil
}

// CreateFile implements host.FileCreator. Creating a document that already
// exists is not an error; the existing content is kept.
func (h *Host) CreateFile(ctx context.Context, path string) error {
	ctx, cancel := h.opContext(ctx)
	defer cancel()

	_, err := h.docs.Create(ctx, documentKey(path), []byte{})
	if err != nil && !stderrors.Is(err, jetstream.ErrKeyExists) {
		return errors.WrapTransient(err, "natshost", "CreateFile", "kv create failed")
	}
	return nil
}

// ShowProgress implements host.Host. A headless service has no progress
// surface, so indicators degrade to debug log lines.
func (h *Host) ShowProgress(_ context.Context, opts *host.ProgressOptions) error {
	if opts == nil {
		h.logger.Debug("progress dismissed")
	} else {
		h.logger.Debug("progress", "text", opts.Text)
	}
	return nil
}

// Project implements host.Host
func (h *Host) Project() *host.Project {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.proj
}

// SetProjectMetadata implements host.MetadataWriter. The whole metadata map
// is stored as one JSON document and updated under compare-and-set, retried
// on revision conflicts so concurrent writers merge rather than clobber.
func (h *Host) SetProjectMetadata(ctx context.Context, key, value string) error {
	err := retry.Do(ctx, h.casRetry, func() error {
		opCtx, cancel := h.opContext(ctx)
		defer cancel()

		temp := make(map[string]string)
		var revision uint64

		entry, err := h.meta.Get(opCtx, h.metadataKey())
		switch {
		case err == nil:
			if err := json.Unmarshal(entry.Value(), &temp); err != nil {
				return retry.NonRetryable(fmt.Errorf("metadata document corrupt: %w", err))
			}
			revision = entry.Revision()
		case stderrors.Is(err, jetstream.ErrKeyNotFound):
			// first metadata entry for this project
		default:
			return err
		}

		temp[key] = value
		data, err := json.Marshal(temp)
		if err != nil {
			return retry.NonRetryable(err)
		}

		if revision == 0 {
			_, err = h.meta.Create(opCtx, h.metadataKey(), data)
			if stderrors.Is(err, jetstream.ErrKeyExists) {
				return fmt.Errorf("metadata created concurrently: %w", err)
			}
		} else {
			_, err = h.meta.Update(opCtx, h.metadataKey(), data, revision)
		}
		return err
	})
	if err != nil {
		return errors.WrapTransient(err, "natshost", "SetProjectMetadata", "cas update failed")
	}

	h.mu.Lock()
	if h.proj.Temp == nil {
		h.proj.Temp = make(map[string]string)
	}
	h.proj.Temp[key] = value
	h.mu.Unlock()

	h.logger.Debug("metadata updated", "key", key)
	return nil
}

func (h *Host) loadMetadata(ctx context.Context) (map[string]string, error) {
	entry, err := h.meta.Get(ctx, h.metadataKey())
	if err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return make(map[string]string), nil
		}
		return nil, errors.WrapTransient(err, "natshost", "Connect", "metadata load failed")
	}

	temp := make(map[string]string)
	if err := json.Unmarshal(entry.Value(), &temp); err != nil {
		return nil, errors.WrapFatal(err, "natshost", "Connect", "metadata document corrupt")
	}
	return temp, nil
}

func (h *Host) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.cfg.OperationTimeout)
}

func (h *Host) metadataKey() string {
	return "temp." + h.cfg.ProjectID
}

// documentKey maps a resolved "project/file" path onto a KV key. Slashes
// are valid KV key characters, so the mapping is the identity; the function
// exists to keep the key scheme in one place.
func documentKey(path string) string {
	return path
}
