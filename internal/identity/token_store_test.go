package identity_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daap14/affconsole/internal/identity"
)

func sampleSession() *identity.Session {
	return &identity.Session{
		User:         &identity.User{ID: "u-1", Email: "ana@example.com"},
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
}

func TestFileStore_RoundTripAndPermissions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store, err := identity.NewFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())

	_, err = store.Load()
	assert.ErrorIs(t, err, identity.ErrNoStoredSession)

	require.NoError(t, store.Save(sampleSession()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "u-1", loaded.User.ID)
	assert.Equal(t, "refresh", loaded.RefreshToken)

	require.NoError(t, store.Delete())
	require.NoError(t, store.Delete())
	_, err = store.Load()
	assert.ErrorIs(t, err, identity.ErrNoStoredSession)
}

func TestFileStore_CorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	store, err := identity.NewFileStore(path)
	require.NoError(t, err)

	_, err = store.Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, identity.ErrNoStoredSession)
}

func TestMemoryStore_CopiesSessions(t *testing.T) {
	t.Parallel()

	store := &identity.MemoryStore{}
	sess := sampleSession()
	require.NoError(t, store.Save(sess))

	sess.User.Email = "changed@example.com"
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", loaded.User.Email)

	require.NoError(t, store.Delete())
	_, err = store.Load()
	assert.ErrorIs(t, err, identity.ErrNoStoredSession)
}

func TestSession_IsExpired(t *testing.T) {
	t.Parallel()

	assert.False(t, (&identity.Session{AccessToken: "a"}).IsExpired())
	assert.True(t, (&identity.Session{AccessToken: "a", ExpiresAt: time.Now().Add(-time.Minute)}).IsExpired())
	assert.False(t, sampleSession().IsExpired())
}
