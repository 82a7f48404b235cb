package resolver

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncerrors "github.com/IEBH/statesync/errors"
	"github.com/IEBH/statesync/testutil"
)

func TestKeyWithoutPerUserState(t *testing.T) {
	fake := testutil.NewFakeHost("proj-1")
	r := New("demo", false, fake, slog.Default())

	key, err := r.Key(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "demo", key)
	assert.Equal(t, 0, fake.IdentityCalls, "shared state must not hit the identity service")
}

func TestKeyPerUserStateMemoizesIdentity(t *testing.T) {
	fake := testutil.NewFakeHost("proj-1")
	fake.UserID = "alice"
	r := New("demo", true, fake, slog.Default())

	for range 3 {
		key, err := r.Key(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "demo-alice", key)
	}
	assert.Equal(t, 1, fake.IdentityCalls, "identity lookup memoized after first call")
}

func TestKeyIdentityFailurePropagatesAndIsNotCached(t *testing.T) {
	fake := testutil.NewFakeHost("proj-1")
	fake.IdentityErr = errors.New("identity service offline")
	r := New("demo", true, fake, slog.Default())

	_, err := r.Key(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, syncerrors.ErrIdentityUnavailable))

	// A later call retries the lookup once the host recovers
	fake.IdentityErr = nil
	key, err := r.Key(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "demo-user-1", key)
	assert.Equal(t, 2, fake.IdentityCalls)
}

func TestKeyEmptyIdentityFails(t *testing.T) {
	fake := testutil.NewFakeHost("proj-1")
	fake.UserID = ""
	r := New("demo", true, fake, slog.Default())

	_, err := r.Key(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, syncerrors.ErrIdentityUnavailable))
}

func TestLocatorProvisionsOnce(t *testing.T) {
	fake := testutil.NewFakeHost("proj-1")
	r := New("demo", false, fake, slog.Default())

	first, err := r.Locator(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "proj-1", first.ProjectID)
	assert.True(t, strings.HasPrefix(first.FileID, "demo-"))
	assert.Equal(t, 1, fake.CreateCalls)
	assert.Equal(t, 1, fake.MetadataCalls)

	second, err := r.Locator(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second, "same key and metadata must yield the identical locator")
	assert.Equal(t, 1, fake.CreateCalls, "no duplicate file creation")
}

func TestLocatorConcurrentResolutionSharesOneFile(t *testing.T) {
	fake := testutil.NewFakeHost("proj-1")
	fake.CreateGate = make(chan struct{})
	r := New("demo", false, fake, slog.Default())

	// Hold the first provision open inside CreateFile while a second
	// resolution arrives; both must come back with the same backing file.
	type result struct {
		loc Locator
		err error
	}
	results := make(chan result, 2)
	for range 2 {
		go func() {
			loc, err := r.Locator(context.Background())
			results <- result{loc: loc, err: err}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(fake.CreateGate)

	first := <-results
	second := <-results
	require.NoError(t, first.err)
	require.NoError(t, second.err)
	assert.Equal(t, first.loc, second.loc, "same key must yield the identical locator")
	assert.Equal(t, 1, fake.CreateCalls, "no duplicate file creation")
	assert.Equal(t, 1, fake.MetadataCalls)
}

func TestLocatorReusesPersistedMapping(t *testing.T) {
	fake := testutil.NewFakeHost("proj-1")
	fake.Proj.Temp["demo"] = "demo-preexisting"
	r := New("demo", false, fake, slog.Default())

	loc, err := r.Locator(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "demo-preexisting", loc.FileID)
	assert.Equal(t, "proj-1/demo-preexisting", loc.Path())
	assert.Equal(t, 0, fake.CreateCalls)
}

func TestLocatorMissingProjectIDIsFatal(t *testing.T) {
	fake := testutil.NewFakeHost("")
	r := New("demo", false, fake, slog.Default())

	_, err := r.Locator(context.Background())
	require.Error(t, err)
	assert.True(t, syncerrors.IsFatal(err))
	assert.True(t, errors.Is(err, syncerrors.ErrProjectIDMissing))
}

func TestLocatorAutoCreatesTempMapping(t *testing.T) {
	fake := testutil.NewFakeHost("proj-1")
	fake.Proj.Temp = nil
	r := New("demo", false, fake, slog.Default())

	_, err := r.Locator(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, fake.Proj.Temp)
}

func TestLocatorMissingCapabilitiesIsFatal(t *testing.T) {
	fake := testutil.NewFakeHost("proj-1")
	r := New("demo", false, fake.WithoutProvisioning(), slog.Default())

	_, err := r.Locator(context.Background())
	require.Error(t, err)
	assert.True(t, syncerrors.IsFatal(err))
	assert.True(t, errors.Is(err, syncerrors.ErrCapabilityMissing))
	assert.Equal(t, 0, fake.CreateCalls, "capability check precedes side effects")
}

func TestLocatorCreateFailureIsTransient(t *testing.T) {
	fake := testutil.NewFakeHost("proj-1")
	fake.CreateErr = errors.New("quota exceeded")
	r := New("demo", false, fake, slog.Default())

	_, err := r.Locator(context.Background())
	require.Error(t, err)
	assert.True(t, syncerrors.IsTransient(err))

	// Recovery provisions cleanly on the next attempt
	fake.CreateErr = nil
	loc, err := r.Locator(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, loc.FileID)
}

func TestLocatorKeysAreScopedPerUser(t *testing.T) {
	fake := testutil.NewFakeHost("proj-1")
	fake.UserID = "alice"
	r := New("demo", true, fake, slog.Default())

	_, err := r.Locator(context.Background())
	require.NoError(t, err)

	_, exists := fake.Proj.Temp["demo-alice"]
	assert.True(t, exists, "mapping stored under the per-user key")
}

func TestNilHostFailsClosed(t *testing.T) {
	r := New("demo", true, nil, slog.Default())

	_, err := r.Key(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, syncerrors.ErrHostNotBound))

	_, err = r.Locator(context.Background())
	require.Error(t, err)
}
