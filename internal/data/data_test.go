package data

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equicloud/equicloud/internal/codec"
	"github.com/equicloud/equicloud/internal/storagetest"
)

func newService() *Service {
	return New(storagetest.New(), codec.New(true, 3))
}

func TestPutThenGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	version, _, err := svc.Put(ctx, "u1", "cfg/main", []byte("hello"), codec.Checksum([]byte("hello")))
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	entry, err := svc.Get(ctx, "u1", "cfg/main")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []byte("hello"), entry.Value)
	assert.Equal(t, "2cf24dba5fb0a30e", entry.Checksum)
}

func TestPutIncrementsVersion(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, _, err := svc.Put(ctx, "u1", "k", []byte("hello"), codec.Checksum([]byte("hello")))
	require.NoError(t, err)
	v2, _, err := svc.Put(ctx, "u1", "k", []byte("world"), codec.Checksum([]byte("world")))
	require.NoError(t, err)
	assert.Equal(t, int64(2), v2)
}

func TestPutPreservesCreatedAt(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New()
	svc := New(store, codec.New(true, 3))

	_, _, err := svc.Put(ctx, "u1", "k", []byte("a"), codec.Checksum([]byte("a")))
	require.NoError(t, err)
	row1, err := store.GetDataEntry(ctx, "u1", "k")
	require.NoError(t, err)

	_, _, err = svc.Put(ctx, "u1", "k", []byte("b"), codec.Checksum([]byte("b")))
	require.NoError(t, err)
	row2, err := store.GetDataEntry(ctx, "u1", "k")
	require.NoError(t, err)

	assert.Equal(t, row1.CreatedAt, row2.CreatedAt)
}

func TestPutWithQuotaRejectsOverLimit(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, _, err := svc.PutWithQuota(ctx, "u1", "a", make([]byte, 60), codec.Checksum(make([]byte, 60)), 100)
	require.NoError(t, err)

	_, _, err = svc.PutWithQuota(ctx, "u1", "b", make([]byte, 50), codec.Checksum(make([]byte, 50)), 100)
	assert.True(t, errors.Is(err, ErrQuotaExceeded))
}

func TestPutWithQuotaAllowsReplacementFreeingSpace(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, _, err := svc.PutWithQuota(ctx, "u1", "a", make([]byte, 60), codec.Checksum(make([]byte, 60)), 100)
	require.NoError(t, err)

	// Replacing "a" with 80 bytes: 60 freed, 80 used, 80 <= 100.
	_, _, err = svc.PutWithQuota(ctx, "u1", "a", make([]byte, 80), codec.Checksum(make([]byte, 80)), 100)
	assert.NoError(t, err)
}

func TestGetManyOmitsMissingKeys(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, _, err := svc.Put(ctx, "u1", "present", []byte("x"), codec.Checksum([]byte("x")))
	require.NoError(t, err)

	entries, err := svc.GetMany(ctx, "u1", []string{"present", "absent"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "present", entries[0].Key)
}

func TestPutBatchAssignsResolvedVersions(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	uploads := []BatchUpload{
		{Key: "a", Value: []byte("va"), Checksum: codec.Checksum([]byte("va")), NextVer: 1, CreatedAt: 1000},
		{Key: "b", Value: []byte("vb"), Checksum: codec.Checksum([]byte("vb")), NextVer: 3, CreatedAt: 2000},
	}
	results, err := svc.PutBatch(ctx, "u1", uploads)
	require.NoError(t, err)
	require.Len(t, results, 2)

	entry, err := svc.Get(ctx, "u1", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(3), entry.Version)
	assert.Equal(t, int64(2000), entry.CreatedAt)
}

func TestDeleteAllRemovesEveryKey(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, _, _ = svc.Put(ctx, "u1", "a", []byte("x"), codec.Checksum([]byte("x")))
	_, _, _ = svc.Put(ctx, "u1", "b", []byte("y"), codec.Checksum([]byte("y")))
	require.NoError(t, svc.DeleteAll(ctx, "u1"))

	manifest, err := svc.Manifest(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, manifest)
}
