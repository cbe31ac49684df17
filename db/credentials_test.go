package db

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"sheetboard/errs"
	"sheetboard/models"
)

func tempUsersPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "users.json")
}

func TestNewFileCredentialStore_SeedsDefaultsWhenAbsent(t *testing.T) {
	path := tempUsersPath(t)

	store, err := NewFileCredentialStore(path, false)
	require.NoError(t, err)

	admin, found := store.Get(DefaultAdminUser)
	require.True(t, found, "default admin should be seeded")
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, admin.HasPermission(models.PermManageUsers))

	entry, found := store.Get(DefaultEntryUser)
	require.True(t, found, "default entry user should be seeded")
	assert.Equal(t, models.RoleDataEntry, entry.Role)
	assert.True(t, entry.HasPermission(models.PermEdit))
	assert.False(t, entry.HasPermission(models.PermSync))

	// The seed must be persisted before the constructor returns.
	_, err = os.Stat(path)
	require.NoError(t, err, "seeded store should be written to disk")
}

func TestNewFileCredentialStore_RecoversFromMalformedFile(t *testing.T) {
	path := tempUsersPath(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	store, err := NewFileCredentialStore(path, false)
	require.NoError(t, err, "a malformed store must be recovered, not fatal")

	_, found := store.Get(DefaultAdminUser)
	assert.True(t, found, "defaults should be reseeded after malformed file")
}

func TestAuthenticate_PlaintextComparison(t *testing.T) {
	store, err := NewFileCredentialStore(tempUsersPath(t), false)
	require.NoError(t, err)

	user, err := store.Authenticate(DefaultAdminUser, "admin123")
	require.NoError(t, err)
	assert.Equal(t, DefaultAdminUser, user.Username)

	_, err = store.Authenticate(DefaultAdminUser, "wrong")
	assert.ErrorIs(t, err, errs.ErrBadCredential)

	_, err = store.Authenticate("nobody", "admin123")
	assert.ErrorIs(t, err, errs.ErrBadCredential)
}

func TestAuthenticate_AcceptsBcryptHashedPassword(t *testing.T) {
	store, err := NewFileCredentialStore(tempUsersPath(t), false)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, store.Put(models.UserRecord{
		Username:    "hashed",
		Password:    string(hash),
		Role:        models.RoleViewer,
		Permissions: []string{models.PermView},
		CreatedAt:   time.Now().UTC(),
	}))

	_, err = store.Authenticate("hashed", "s3cret")
	assert.NoError(t, err)

	_, err = store.Authenticate("hashed", string(hash))
	assert.ErrorIs(t, err, errs.ErrBadCredential, "the hash itself must not work as a password")
}

func TestPutAndDelete_PersistAcrossReload(t *testing.T) {
	path := tempUsersPath(t)

	store, err := NewFileCredentialStore(path, false)
	require.NoError(t, err)
	require.NoError(t, store.Put(models.UserRecord{
		Username:    "viewer1",
		Password:    "pw",
		Role:        models.RoleViewer,
		Permissions: []string{models.PermView},
	}))

	reloaded, err := NewFileCredentialStore(path, false)
	require.NoError(t, err)
	rec, found := reloaded.Get("viewer1")
	require.True(t, found)
	assert.Equal(t, models.RoleViewer, rec.Role)
	assert.False(t, rec.CreatedAt.IsZero(), "Put should stamp CreatedAt")

	require.NoError(t, reloaded.Delete("viewer1"))
	reloaded2, err := NewFileCredentialStore(path, false)
	require.NoError(t, err)
	_, found = reloaded2.Get("viewer1")
	assert.False(t, found)
}

func TestDelete_UnknownUser(t *testing.T) {
	store, err := NewFileCredentialStore(tempUsersPath(t), false)
	require.NoError(t, err)
	assert.Error(t, store.Delete("ghost"))
}
