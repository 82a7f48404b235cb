package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/IEBH/statesync/host"
)

var (
	_ host.Host               = (*FakeHost)(nil)
	_ host.FileCreator        = (*FakeHost)(nil)
	_ host.MetadataWriter     = (*FakeHost)(nil)
	_ host.Notifier           = (*FakeHost)(nil)
	_ host.SaveShortcutSource = (*FakeHost)(nil)
	_ host.CloseGuard         = (*FakeHost)(nil)
	_ host.Host               = (*bareHost)(nil)
)

// FakeHost is an in-memory host implementing the full capability surface.
// Error fields inject failures; counters record calls for verification.
// All fields must be configured before handing the fake to the engine.
type FakeHost struct {
	mu sync.Mutex

	// Identity
	UserID      string
	IdentityErr error

	// Project descriptor returned by Project()
	Proj *host.Project

	// File storage, keyed by path
	Files map[string][]byte

	// Error injection
	ReadErr     error
	WriteErr    error
	CreateErr   error
	MetadataErr error

	// RawNotFound makes missing-file reads return a backend-style message
	// error instead of the structured host.ErrFileNotFound
	RawNotFound bool

	// WriteGate, when non-nil, blocks WriteFile until the channel is
	// closed. Used to hold a save in flight.
	WriteGate chan struct{}

	// CreateGate, when non-nil, blocks CreateFile until the channel is
	// closed. Used to hold a provisioning step in flight.
	CreateGate chan struct{}

	// Call counters
	IdentityCalls     int
	ReadCalls         int
	WriteCalls        int
	CreateCalls       int
	MetadataCalls     int
	ProgressShown     int
	ProgressDismissed int

	// Notices shown via the Notifier capability, in order
	Notices []string

	// Interaction listeners
	shortcutFns   []func()
	beforeCloseFn func() bool
}

// NewFakeHost creates a fake host with an empty file system and the given
// project id
func NewFakeHost(projectID string) *FakeHost {
	return &FakeHost{
		UserID: "user-1",
		Proj:   &host.Project{ID: projectID, Temp: make(map[string]string)},
		Files:  make(map[string][]byte),
	}
}

// Identity implements host.Host
func (f *FakeHost) Identity(_ context.Context) (host.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.IdentityCalls++
	if f.IdentityErr != nil {
		return host.Identity{}, f.IdentityErr
	}
	return host.Identity{ID: f.UserID}, nil
}

// ReadFile implements host.Host
func (f *FakeHost) ReadFile(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ReadCalls++
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}

	data, exists := f.Files[path]
	if !exists {
		if f.RawNotFound {
			return nil, fmt.Errorf("key not found: %s", path)
		}
		return nil, fmt.Errorf("read %s: %w", path, host.ErrFileNotFound)
	}

	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// WriteFile implements host.Host
func (f *FakeHost) WriteFile(_ context.Context, path string, data []byte) error {
	f.mu.Lock()
	gate := f.WriteGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.WriteCalls++
	if f.WriteErr != nil {
		return f.WriteErr
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	f.Files[path] = stored
	return nil
}

// ShowProgress implements host.Host
func (f *FakeHost) ShowProgress(_ context.Context, opts *host.ProgressOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if opts == nil {
		f.ProgressDismissed++
	} else {
		f.ProgressShown++
	}
	return nil
}

// Project implements host.Host
func (f *FakeHost) Project() *host.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Proj
}

// Notify implements host.Notifier
func (f *FakeHost) Notify(_ context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Notices = append(f.Notices, message)
	return nil
}

// CreateFile implements host.FileCreator
func (f *FakeHost) CreateFile(_ context.Context, path string) error {
	f.mu.Lock()
	gate := f.CreateGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.CreateCalls++
	if f.CreateErr != nil {
		return f.CreateErr
	}
	if _, exists := f.Files[path]; !exists {
		f.Files[path] = []byte{}
	}
	return nil
}

// SetProjectMetadata implements host.MetadataWriter
func (f *FakeHost) SetProjectMetadata(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.MetadataCalls++
	if f.MetadataErr != nil {
		return f.MetadataErr
	}
	if f.Proj.Temp == nil {
		f.Proj.Temp = make(map[string]string)
	}
	f.Proj.Temp[key] = value
	return nil
}

// OnSaveShortcut implements host.SaveShortcutSource
func (f *FakeHost) OnSaveShortcut(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.shortcutFns = append(f.shortcutFns, fn)
	idx := len(f.shortcutFns) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.shortcutFns[idx] = nil
	}
}

// OnBeforeClose implements host.CloseGuard
func (f *FakeHost) OnBeforeClose(fn func() bool) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.beforeCloseFn = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.beforeCloseFn = nil
	}
}

// TriggerSaveShortcut fires all registered save-shortcut listeners
func (f *FakeHost) TriggerSaveShortcut() {
	f.mu.Lock()
	fns := make([]func(), 0, len(f.shortcutFns))
	for _, fn := range f.shortcutFns {
		if fn != nil {
			fns = append(fns, fn)
		}
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// TriggerBeforeClose consults the close guard; returns true when no guard
// is registered, matching a host that closes freely.
func (f *FakeHost) TriggerBeforeClose() bool {
	f.mu.Lock()
	fn := f.beforeCloseFn
	f.mu.Unlock()

	if fn == nil {
		return true
	}
	return fn()
}

// HasCloseGuard reports whether a close-guard listener is registered
func (f *FakeHost) HasCloseGuard() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.beforeCloseFn != nil
}

// WrittenDocument returns the single stored file's contents, failing the
// lookup when the file count differs from one.
func (f *FakeHost) WrittenDocument() ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var doc []byte
	count := 0
	for _, data := range f.Files {
		if len(data) > 0 {
			doc = data
			count++
		}
	}
	return doc, count == 1
}

// bareHost exposes only the mandatory surface of a FakeHost, hiding the
// optional provisioning capabilities.
type bareHost struct {
	f *FakeHost
}

// WithoutProvisioning returns a view of the fake that does not implement
// FileCreator or MetadataWriter, for testing capability-absence paths.
func (f *FakeHost) WithoutProvisioning() host.Host {
	return &bareHost{f: f}
}

func (b *bareHost) Identity(ctx context.Context) (host.Identity, error) {
	return b.f.Identity(ctx)
}

func (b *bareHost) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return b.f.ReadFile(ctx, path)
}

func (b *bareHost) WriteFile(ctx context.Context, path string, data []byte) error {
	return b.f.WriteFile(ctx, path, data)
}

func (b *bareHost) ShowProgress(ctx context.Context, opts *host.ProgressOptions) error {
	return b.f.ShowProgress(ctx, opts)
}

func (b *bareHost) Project() *host.Project {
	return b.f.Project()
}
