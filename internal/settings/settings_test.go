package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equicloud/equicloud/internal/identity"
	"github.com/equicloud/equicloud/internal/storagetest"
)

func TestPutThenGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := New(storagetest.New())

	written, err := svc.Put(ctx, "42", []byte{0x00, 0x01, 0x02})
	require.NoError(t, err)
	assert.Greater(t, written, int64(0))

	data, updatedAt, ok, err := svc.Get(ctx, "42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{0x00, 0x01, 0x02}, data)
	assert.Equal(t, written, updatedAt)
}

func TestGetMissingReturnsNotOK(t *testing.T) {
	ctx := context.Background()
	svc := New(storagetest.New())
	_, _, ok, err := svc.Get(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLegacyMigrationOnGet(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New()
	svc := New(store)

	uid := "42"
	kLegacy := identity.StorageKeyLegacy(uid)
	require.NoError(t, store.PutSettings(ctx, kLegacy, []byte("X"), 100, 200))

	data, updatedAt, ok, err := svc.Get(ctx, uid)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("X"), data)
	assert.Equal(t, int64(200), updatedAt)

	// The row now lives under the current key with created_at preserved; legacy is gone.
	kNew := identity.StorageKey(uid)
	row, err := store.GetSettings(ctx, kNew)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, int64(100), row.CreatedAt)

	legacyRow, err := store.GetSettings(ctx, kLegacy)
	require.NoError(t, err)
	assert.Nil(t, legacyRow)
}

func TestPutCleansUpLegacyRow(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New()
	svc := New(store)

	uid := "42"
	kLegacy := identity.StorageKeyLegacy(uid)
	require.NoError(t, store.PutSettings(ctx, kLegacy, []byte("old"), 1, 2))

	_, err := svc.Put(ctx, uid, []byte("new"))
	require.NoError(t, err)

	legacyRow, err := store.GetSettings(ctx, kLegacy)
	require.NoError(t, err)
	assert.Nil(t, legacyRow)
}

func TestDeleteRemovesSettings(t *testing.T) {
	ctx := context.Background()
	svc := New(storagetest.New())
	_, err := svc.Put(ctx, "42", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "42"))
	_, _, ok, err := svc.Get(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)
}
