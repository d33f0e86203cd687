package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/GriffinCanCode/stubterm/backend/internal/shared/types"
	"github.com/fernet/fernet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates an in-memory store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{Path: ":memory:", Quiet: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newShell(location string) *types.Shell {
	return &types.Shell{Location: location, Type: types.ShellPosix, Encoding: "utf-8"}
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	a := newShell("http://a/x.php")
	require.NoError(t, store.Create(ctx, a, "fp-a"))
	b := newShell("http://b/x.php")
	require.NoError(t, store.Create(ctx, b, "fp-b"))

	assert.Equal(t, uint(1), a.ID)
	assert.Equal(t, uint(2), b.ID)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestDeletedIDsAreNotReused(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	a := newShell("http://a/x.php")
	require.NoError(t, store.Create(ctx, a, "fp-a"))
	require.NoError(t, store.Delete(ctx, a.ID))

	b := newShell("http://b/x.php")
	require.NoError(t, store.Create(ctx, b, "fp-b"))
	assert.Equal(t, uint(2), b.ID)
}

func TestCreateRejectsDuplicateFingerprint(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newShell("http://a/x.php"), "same"))
	err := store.Create(ctx, newShell("http://a/x.php"), "same")

	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, uint(1), dup.ExistingID)

	// The failed insert does not consume an id.
	c := newShell("http://c/x.php")
	require.NoError(t, store.Create(ctx, c, "other"))
	assert.Equal(t, uint(2), c.ID)
}

func TestCredentialSealedAtRest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	shell := newShell("http://a/x.php")
	shell.Credential = "c2VjcmV0"
	require.NoError(t, store.Create(ctx, shell, "fp"))

	var row Shell
	require.NoError(t, store.db.First(&row, shell.ID).Error)
	assert.NotEqual(t, "c2VjcmV0", row.Credential)
	assert.NotEmpty(t, row.Credential)

	loaded, err := store.Get(ctx, shell.ID)
	require.NoError(t, err)
	assert.Equal(t, "c2VjcmV0", loaded.Credential)
}

func TestGetUnknown(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(context.Background(), 42), ErrNotFound)
	assert.ErrorIs(t, store.SetStatus(context.Background(), 42, types.StatusDead, time.Now()), ErrNotFound)
}

func TestListFiltersAndOrders(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	win := &types.Shell{Location: "http://iis/x.aspx", Type: types.ShellWindows, Label: "Billing IIS"}
	require.NoError(t, store.Create(ctx, newShell("http://one/x.php"), "1"))
	require.NoError(t, store.Create(ctx, win, "2"))
	require.NoError(t, store.Create(ctx, newShell("http://three/x.php"), "3"))
	require.NoError(t, store.SetStatus(ctx, 3, types.StatusAlive, time.Now()))

	all, err := store.List(ctx, types.ShellFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uint{1, 2, 3}, []uint{all[0].ID, all[1].ID, all[2].ID})

	windows, err := store.List(ctx, types.ShellFilter{Type: types.ShellWindows})
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, uint(2), windows[0].ID)

	alive, err := store.List(ctx, types.ShellFilter{Status: types.StatusAlive})
	require.NoError(t, err)
	require.Len(t, alive, 1)
	assert.NotNil(t, alive[0].LastSeenAt)

	byLabel, err := store.List(ctx, types.ShellFilter{Query: "billing"})
	require.NoError(t, err)
	require.Len(t, byLabel, 1)
	assert.Equal(t, "Billing IIS", byLabel[0].Label)
}

func TestUpdate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	a := newShell("http://a/x.php")
	require.NoError(t, store.Create(ctx, a, "fp-a"))
	b := newShell("http://b/x.php")
	require.NoError(t, store.Create(ctx, b, "fp-b"))

	a.Note = "db server"
	a.Encoding = "gbk"
	require.NoError(t, store.Update(ctx, a, "fp-a"))

	loaded, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "db server", loaded.Note)
	assert.Equal(t, "gbk", loaded.Encoding)
	assert.Equal(t, types.StatusUnknown, loaded.Status)

	var dup *DuplicateError
	require.ErrorAs(t, store.Update(ctx, a, "fp-b"), &dup)
	assert.Equal(t, b.ID, dup.ExistingID)

	ghost := newShell("http://ghost/x.php")
	ghost.ID = 99
	assert.ErrorIs(t, store.Update(ctx, ghost, "fp-ghost"), ErrNotFound)
}

func TestFernetKeyPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shells.db")
	ctx := context.Background()

	first, err := Open(Config{Path: path, Quiet: true})
	require.NoError(t, err)
	shell := newShell("http://a/x.php")
	shell.Credential = "a2V5"
	require.NoError(t, first.Create(ctx, shell, "fp"))
	require.NoError(t, first.Close())

	second, err := Open(Config{Path: path, Quiet: true})
	require.NoError(t, err)
	defer second.Close()

	loaded, err := second.Get(ctx, shell.ID)
	require.NoError(t, err)
	assert.Equal(t, "a2V5", loaded.Credential)

	next := newShell("http://b/x.php")
	require.NoError(t, second.Create(ctx, next, "fp2"))
	assert.Equal(t, uint(2), next.ID)
}

func TestExplicitKeyMismatch(t *testing.T) {
	var k1, k2 fernet.Key
	require.NoError(t, k1.Generate())
	require.NoError(t, k2.Generate())

	sealer, err := NewSealer(k1.Encode())
	require.NoError(t, err)
	token, err := sealer.Seal("secret")
	require.NoError(t, err)

	other, err := NewSealer(k2.Encode())
	require.NoError(t, err)
	_, err = other.Open(token)
	assert.True(t, errors.Is(err, ErrUnsealable))

	_, err = NewSealer("not a key")
	assert.Error(t, err)
}

func TestSettings(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.SetSetting("profile", "default"))
	require.NoError(t, store.SetSetting("profile", "custom"))
	value, err := store.GetSetting("profile")
	require.NoError(t, err)
	assert.Equal(t, "custom", value)
}
