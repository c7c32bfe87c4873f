// Package storagetest provides an in-memory storage.Store double used by
// the service-layer test suites, so they exercise real concurrency and
// migration logic without a live cluster.
package storagetest

import (
	"context"
	"sync"

	"github.com/equicloud/equicloud/internal/identity"
	"github.com/equicloud/equicloud/internal/storage"
)

type dataKey struct {
	userID string
	key    string
}

// MemStore is a goroutine-safe in-memory storage.Store.
type MemStore struct {
	mu       sync.Mutex
	settings map[string]storage.UserSettings
	data     map[dataKey]storage.DataEntry
	PingErr  error
}

func New() *MemStore {
	return &MemStore{
		settings: make(map[string]storage.UserSettings),
		data:     make(map[dataKey]storage.DataEntry),
	}
}

func (m *MemStore) GetSettingsMetadata(_ context.Context, key string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.settings[key]
	if !ok {
		return 0, false, nil
	}
	return row.UpdatedAt, true, nil
}

func (m *MemStore) GetSettings(_ context.Context, key string) (*storage.UserSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.settings[key]
	if !ok {
		return nil, nil
	}
	cp := row
	return &cp, nil
}

func (m *MemStore) PutSettings(_ context.Context, key string, settings []byte, createdAt, updatedAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = storage.UserSettings{ID: key, Settings: settings, CreatedAt: createdAt, UpdatedAt: updatedAt}
	return nil
}

func (m *MemStore) DeleteSettings(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.settings, key)
	return nil
}

func (m *MemStore) GetManifest(_ context.Context, userID string) ([]storage.ManifestEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ManifestEntry
	for k, e := range m.data {
		if k.userID == userID {
			out = append(out, storage.ManifestEntry{
				Key: e.Key, Version: e.Version, Checksum: e.Checksum,
				SizeBytes: e.SizeBytes, UpdatedAt: e.UpdatedAt,
			})
		}
	}
	return out, nil
}

func (m *MemStore) GetDataEntry(_ context.Context, userID, key string) (*storage.DataEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[dataKey{userID, key}]
	if !ok {
		return nil, nil
	}
	cp := e
	return &cp, nil
}

func (m *MemStore) GetDataEntries(ctx context.Context, userID string, keys []string) ([]storage.DataEntry, error) {
	var out []storage.DataEntry
	for _, k := range keys {
		e, _ := m.GetDataEntry(ctx, userID, k)
		if e != nil {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *MemStore) PutDataEntry(_ context.Context, e storage.DataEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[dataKey{e.UserID, e.Key}] = e
	return nil
}

func (m *MemStore) PutDataEntries(ctx context.Context, entries []storage.DataEntry) error {
	for _, e := range entries {
		if err := m.PutDataEntry(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemStore) DeleteDataEntry(_ context.Context, userID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, dataKey{userID, key})
	return nil
}

func (m *MemStore) DeleteAllDataEntries(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if k.userID == userID {
			delete(m.data, k)
		}
	}
	return nil
}

func (m *MemStore) SumSizeBytes(ctx context.Context, userID string) (int64, error) {
	entries, _ := m.GetManifest(ctx, userID)
	var total int64
	for _, e := range entries {
		total += int64(e.SizeBytes)
	}
	return total, nil
}

func (m *MemStore) GetVersions(_ context.Context, userID string, keys []string) (map[string]storage.VersionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]storage.VersionInfo, len(keys))
	for _, k := range keys {
		if e, ok := m.data[dataKey{userID, k}]; ok {
			out[k] = storage.VersionInfo{Version: e.Version, CreatedAt: e.CreatedAt}
		}
	}
	return out, nil
}

func (m *MemStore) Ping(_ context.Context) error {
	return m.PingErr
}

func (m *MemStore) CountStats(_ context.Context) (currentUsers, legacyUsers, dataEntries int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.settings {
		if identity.IsLegacyKey(id) {
			legacyUsers++
		} else {
			currentUsers++
		}
	}
	dataEntries = int64(len(m.data))
	return currentUsers, legacyUsers, dataEntries, nil
}

func (m *MemStore) Close() {}
