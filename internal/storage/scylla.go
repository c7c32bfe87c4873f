package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"

	"github.com/equicloud/equicloud/internal/identity"
	"github.com/equicloud/equicloud/internal/metrics"
)

const (
	stmtGetSettingsMetadata = `SELECT updated_at FROM users WHERE id = ?`
	stmtGetSettings         = `SELECT settings, created_at, updated_at FROM users WHERE id = ?`
	stmtPutSettings         = `INSERT INTO users (id, settings, created_at, updated_at) VALUES (?, ?, ?, ?)`
	stmtDeleteSettings      = `DELETE FROM users WHERE id = ?`

	stmtGetManifest   = `SELECT key, version, checksum, size_bytes, updated_at FROM data WHERE user_id = ?`
	stmtGetDataEntry  = `SELECT value, version, checksum, size_bytes, created_at, updated_at FROM data WHERE user_id = ? AND key = ?`
	stmtPutDataEntry  = `INSERT INTO data (user_id, key, value, version, checksum, size_bytes, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	stmtDeleteData    = `DELETE FROM data WHERE user_id = ? AND key = ?`
	stmtDeleteAllData = `DELETE FROM data WHERE user_id = ?`
	stmtGetVersion    = `SELECT version, created_at FROM data WHERE user_id = ? AND key = ?`
	stmtPing          = `SELECT now() FROM system.local`

	stmtScanUserIDs  = `SELECT id FROM users`
	stmtScanDataKeys = `SELECT key FROM data`
)

// ScyllaStore implements Store over a gocql session. Queries are declared as
// package constants and issued through session.Query, which gocql prepares
// and caches on first use — there is no separate prepare step to run at
// construction, but the set of statements is fixed and known up front.
type ScyllaStore struct {
	session *gocql.Session
}

// ScyllaConfig configures the cluster connection.
type ScyllaConfig struct {
	Hosts          []string
	Keyspace       string
	Username       string
	Password       string
	ConnectTimeout int // milliseconds
	PoolSize       int
}

// NewScyllaStore connects to the cluster and returns a Store.
func NewScyllaStore(cfg ScyllaConfig) (*ScyllaStore, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.NumConns = cfg.PoolSize
	if cfg.ConnectTimeout > 0 {
		cluster.ConnectTimeout = time.Duration(cfg.ConnectTimeout) * time.Millisecond
	}
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("storage: connect to cluster: %w", err)
	}
	return &ScyllaStore{session: session}, nil
}

func (s *ScyllaStore) Close() {
	s.session.Close()
}

// CountStats does a full scan of both tables, classifying each settings row
// by its key scheme. It is run on a slow periodic cadence by the metrics
// collector, never on a request path, since it visits every partition.
func (s *ScyllaStore) CountStats(ctx context.Context) (currentUsers, legacyUsers, dataEntries int64, err error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageOpDuration, "count_stats")

	iter := s.session.Query(stmtScanUserIDs).WithContext(ctx).Iter()
	var id string
	for iter.Scan(&id) {
		if identity.IsLegacyKey(id) {
			legacyUsers++
		} else {
			currentUsers++
		}
	}
	if err := iter.Close(); err != nil {
		return 0, 0, 0, fmt.Errorf("storage: count users: %w", err)
	}

	dataIter := s.session.Query(stmtScanDataKeys).WithContext(ctx).Iter()
	var k string
	for dataIter.Scan(&k) {
		dataEntries++
	}
	if err := dataIter.Close(); err != nil {
		return 0, 0, 0, fmt.Errorf("storage: count data entries: %w", err)
	}
	return currentUsers, legacyUsers, dataEntries, nil
}

func (s *ScyllaStore) Ping(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageOpDuration, "ping")
	var discard interface{}
	return s.session.Query(stmtPing).WithContext(ctx).Scan(&discard)
}

func (s *ScyllaStore) GetSettingsMetadata(ctx context.Context, key string) (int64, bool, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageOpDuration, "get_settings_metadata")
	var updatedAt int64
	err := s.session.Query(stmtGetSettingsMetadata, key).WithContext(ctx).Scan(&updatedAt)
	if err == gocql.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("storage: get settings metadata: %w", err)
	}
	return updatedAt, true, nil
}

func (s *ScyllaStore) GetSettings(ctx context.Context, key string) (*UserSettings, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageOpDuration, "get_settings")
	var settings []byte
	var createdAt, updatedAt int64
	err := s.session.Query(stmtGetSettings, key).WithContext(ctx).Scan(&settings, &createdAt, &updatedAt)
	if err == gocql.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get settings: %w", err)
	}
	return &UserSettings{ID: key, Settings: settings, CreatedAt: createdAt, UpdatedAt: updatedAt}, nil
}

func (s *ScyllaStore) PutSettings(ctx context.Context, key string, settings []byte, createdAt, updatedAt int64) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageOpDuration, "put_settings")
	if err := s.session.Query(stmtPutSettings, key, settings, createdAt, updatedAt).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("storage: put settings: %w", err)
	}
	return nil
}

func (s *ScyllaStore) DeleteSettings(ctx context.Context, key string) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageOpDuration, "delete_settings")
	if err := s.session.Query(stmtDeleteSettings, key).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("storage: delete settings: %w", err)
	}
	return nil
}

func (s *ScyllaStore) GetManifest(ctx context.Context, userID string) ([]ManifestEntry, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageOpDuration, "get_manifest")
	iter := s.session.Query(stmtGetManifest, userID).WithContext(ctx).Iter()
	var entries []ManifestEntry
	var e ManifestEntry
	for iter.Scan(&e.Key, &e.Version, &e.Checksum, &e.SizeBytes, &e.UpdatedAt) {
		entries = append(entries, e)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("storage: get manifest: %w", err)
	}
	return entries, nil
}

func (s *ScyllaStore) GetDataEntry(ctx context.Context, userID, key string) (*DataEntry, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageOpDuration, "get_data_entry")
	var e DataEntry
	err := s.session.Query(stmtGetDataEntry, userID, key).WithContext(ctx).
		Scan(&e.Value, &e.Version, &e.Checksum, &e.SizeBytes, &e.CreatedAt, &e.UpdatedAt)
	if err == gocql.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get data entry: %w", err)
	}
	e.UserID = userID
	e.Key = key
	return &e, nil
}

// fanOutResult carries a positional result from a concurrent per-key op so
// results can be reassembled in key order.
type fanOutResult[T any] struct {
	idx   int
	value T
	ok    bool
	err   error
}

// GetDataEntries fans out one read per key concurrently; missing keys are
// silently omitted from the result, matching the multi-get semantics the
// data service and sync engine rely on. If any single read fails, the whole
// call returns that error and no entries.
func (s *ScyllaStore) GetDataEntries(ctx context.Context, userID string, keys []string) ([]DataEntry, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageOpDuration, "get_data_entries")

	results := make(chan fanOutResult[DataEntry], len(keys))
	var wg sync.WaitGroup
	for i, k := range keys {
		wg.Add(1)
		go func(idx int, key string) {
			defer wg.Done()
			e, err := s.GetDataEntry(ctx, userID, key)
			if err != nil {
				results <- fanOutResult[DataEntry]{idx: idx, err: err}
				return
			}
			if e == nil {
				results <- fanOutResult[DataEntry]{idx: idx}
				return
			}
			results <- fanOutResult[DataEntry]{idx: idx, value: *e, ok: true}
		}(i, k)
	}
	wg.Wait()
	close(results)

	ordered := make([]*DataEntry, len(keys))
	for r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("storage: get data entries: %w", r.err)
		}
		if r.ok {
			v := r.value
			ordered[r.idx] = &v
		}
	}
	out := make([]DataEntry, 0, len(keys))
	for _, e := range ordered {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *ScyllaStore) PutDataEntry(ctx context.Context, e DataEntry) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageOpDuration, "put_data_entry")
	err := s.session.Query(stmtPutDataEntry,
		e.UserID, e.Key, e.Value, e.Version, e.Checksum, e.SizeBytes, e.CreatedAt, e.UpdatedAt,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("storage: put data entry: %w", err)
	}
	return nil
}

// PutDataEntries issues one upsert per entry concurrently. These are
// independent idempotent upserts, not a server-side batch: the surrounding
// sync engine supplies logical atomicity via its version discipline.
func (s *ScyllaStore) PutDataEntries(ctx context.Context, entries []DataEntry) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageOpDuration, "put_data_entries")

	errs := make(chan error, len(entries))
	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(entry DataEntry) {
			defer wg.Done()
			errs <- s.PutDataEntry(ctx, entry)
		}(e)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *ScyllaStore) DeleteDataEntry(ctx context.Context, userID, key string) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageOpDuration, "delete_data_entry")
	if err := s.session.Query(stmtDeleteData, userID, key).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("storage: delete data entry: %w", err)
	}
	return nil
}

func (s *ScyllaStore) DeleteAllDataEntries(ctx context.Context, userID string) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageOpDuration, "delete_all_data_entries")
	if err := s.session.Query(stmtDeleteAllData, userID).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("storage: delete all data entries: %w", err)
	}
	return nil
}

func (s *ScyllaStore) SumSizeBytes(ctx context.Context, userID string) (int64, error) {
	entries, err := s.GetManifest(ctx, userID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		total += int64(e.SizeBytes)
	}
	return total, nil
}

// GetVersions fans out a version/created_at lookup per key concurrently.
// Keys with no existing row are simply absent from the returned map.
func (s *ScyllaStore) GetVersions(ctx context.Context, userID string, keys []string) (map[string]VersionInfo, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageOpDuration, "get_versions")

	type kv struct {
		key string
		vi  VersionInfo
		ok  bool
		err error
	}
	results := make(chan kv, len(keys))
	var wg sync.WaitGroup
	for _, k := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			var v int64
			var created int64
			err := s.session.Query(stmtGetVersion, userID, key).WithContext(ctx).Scan(&v, &created)
			if err == gocql.ErrNotFound {
				results <- kv{key: key}
				return
			}
			if err != nil {
				results <- kv{key: key, err: err}
				return
			}
			results <- kv{key: key, vi: VersionInfo{Version: v, CreatedAt: created}, ok: true}
		}(k)
	}
	wg.Wait()
	close(results)

	out := make(map[string]VersionInfo, len(keys))
	for r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("storage: get versions: %w", r.err)
		}
		if r.ok {
			out[r.key] = r.vi
		}
	}
	return out, nil
}
