// Package data implements the multi-key per-user surface: per-key
// version allocation, quota enforcement, and batch variants used by the
// delta-sync engine.
package data

import (
	"context"
	"time"

	"github.com/equicloud/equicloud/internal/codec"
	"github.com/equicloud/equicloud/internal/storage"
)

// ErrQuotaExceeded is returned by PutWithQuota when a write would push the
// user's total stored bytes over the configured ceiling.
var ErrQuotaExceeded = quotaError{}

type quotaError struct{}

func (quotaError) Error() string { return "total storage limit exceeded" }

// Entry is a data row as returned to callers, already decompressed.
type Entry struct {
	Key       string
	Value     []byte
	Version   int64
	Checksum  string
	SizeBytes int32
	CreatedAt int64
	UpdatedAt int64
}

// BatchUpload is one caller-supplied entry for PutBatch: the value and its
// caller-declared checksum, plus the pre-resolved (version, createdAt) the
// engine already computed.
type BatchUpload struct {
	Key        string
	Value      []byte
	Checksum   string
	NextVer    int64
	CreatedAt  int64
}

// BatchResult is what PutBatch reports per successfully written key.
type BatchResult struct {
	Key       string
	Version   int64
	UpdatedAt int64
}

// Service is the per-user data surface, backed by a Store and a Codec.
type Service struct {
	store storage.Store
	codec *codec.Codec
}

func New(store storage.Store, c *codec.Codec) *Service {
	return &Service{store: store, codec: c}
}

func now() int64 { return time.Now().UnixMilli() }

// Manifest returns every row for uid minus its value.
func (s *Service) Manifest(ctx context.Context, uid string) ([]storage.ManifestEntry, error) {
	return s.store.GetManifest(ctx, uid)
}

// Get returns one key's entry, decompressed, or nil if absent.
func (s *Service) Get(ctx context.Context, uid, key string) (*Entry, error) {
	row, err := s.store.GetDataEntry(ctx, uid, key)
	if err != nil || row == nil {
		return nil, err
	}
	return s.toEntry(row), nil
}

// GetMany fans out a concurrent read over keys; missing keys are omitted.
func (s *Service) GetMany(ctx context.Context, uid string, keys []string) ([]Entry, error) {
	rows, err := s.store.GetDataEntries(ctx, uid, keys)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for i := range rows {
		out = append(out, *s.toEntry(&rows[i]))
	}
	return out, nil
}

func (s *Service) toEntry(row *storage.DataEntry) *Entry {
	return &Entry{
		Key:       row.Key,
		Value:     s.codec.Decompress(row.Value),
		Version:   row.Version,
		Checksum:  row.Checksum,
		SizeBytes: row.SizeBytes,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

// Put reads the current (version, created_at) then upserts with version+1.
// There is no compare-and-set: concurrent writers to the same (uid, key)
// race and the last upsert wins.
func (s *Service) Put(ctx context.Context, uid, key string, value []byte, checksum string) (version int64, updatedAt int64, err error) {
	existing, err := s.store.GetDataEntry(ctx, uid, key)
	if err != nil {
		return 0, 0, err
	}

	ts := now()
	createdAt := ts
	version = 1
	if existing != nil {
		createdAt = existing.CreatedAt
		version = existing.Version + 1
	}

	stored := s.codec.Compress(value)
	row := storage.DataEntry{
		UserID: uid, Key: key, Value: stored, Version: version,
		Checksum: checksum, SizeBytes: int32(len(value)),
		CreatedAt: createdAt, UpdatedAt: ts,
	}
	if err := s.store.PutDataEntry(ctx, row); err != nil {
		return 0, 0, err
	}
	return version, ts, nil
}

// PutWithQuota behaves like Put but rejects with ErrQuotaExceeded, without
// writing, if the user's post-write total would exceed maxTotalBytes.
func (s *Service) PutWithQuota(ctx context.Context, uid, key string, value []byte, checksum string, maxTotalBytes int64) (version int64, updatedAt int64, err error) {
	total, err := s.store.SumSizeBytes(ctx, uid)
	if err != nil {
		return 0, 0, err
	}
	existing, err := s.store.GetDataEntry(ctx, uid, key)
	if err != nil {
		return 0, 0, err
	}

	existingSize := int64(0)
	if existing != nil {
		existingSize = int64(existing.SizeBytes)
	}
	newTotal := total - existingSize + int64(len(value))
	if newTotal > maxTotalBytes {
		return 0, 0, ErrQuotaExceeded
	}

	ts := now()
	createdAt := ts
	version = 1
	if existing != nil {
		createdAt = existing.CreatedAt
		version = existing.Version + 1
	}

	stored := s.codec.Compress(value)
	row := storage.DataEntry{
		UserID: uid, Key: key, Value: stored, Version: version,
		Checksum: checksum, SizeBytes: int32(len(value)),
		CreatedAt: createdAt, UpdatedAt: ts,
	}
	if err := s.store.PutDataEntry(ctx, row); err != nil {
		return 0, 0, err
	}
	return version, ts, nil
}

// PutBatch compresses and upserts a pre-resolved set of entries concurrently
// via the store. Callers (the sync engine) have already computed each
// entry's next version and preserved created_at.
func (s *Service) PutBatch(ctx context.Context, uid string, uploads []BatchUpload) ([]BatchResult, error) {
	ts := now()
	rows := make([]storage.DataEntry, 0, len(uploads))
	for _, u := range uploads {
		rows = append(rows, storage.DataEntry{
			UserID: uid, Key: u.Key, Value: s.codec.Compress(u.Value),
			Version: u.NextVer, Checksum: u.Checksum, SizeBytes: int32(len(u.Value)),
			CreatedAt: u.CreatedAt, UpdatedAt: ts,
		})
	}
	if err := s.store.PutDataEntries(ctx, rows); err != nil {
		return nil, err
	}
	results := make([]BatchResult, 0, len(uploads))
	for _, u := range uploads {
		results = append(results, BatchResult{Key: u.Key, Version: u.NextVer, UpdatedAt: ts})
	}
	return results, nil
}

// VersionsBatch fans out a concurrent (version, created_at) lookup; keys
// with no existing row are absent from the returned map.
func (s *Service) VersionsBatch(ctx context.Context, uid string, keys []string) (map[string]storage.VersionInfo, error) {
	return s.store.GetVersions(ctx, uid, keys)
}

// Delete removes one key.
func (s *Service) Delete(ctx context.Context, uid, key string) error {
	return s.store.DeleteDataEntry(ctx, uid, key)
}

// DeleteAll removes every key for uid.
func (s *Service) DeleteAll(ctx context.Context, uid string) error {
	return s.store.DeleteAllDataEntries(ctx, uid)
}
