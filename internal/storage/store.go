// Package storage wraps a wide-column store (ScyllaDB/Cassandra via gocql)
// behind prepared statements, exposing typed CRUD over the users and data
// tables. All operations are independent, idempotent
// upserts or point deletes — there is no cross-row transactionality.
package storage

import "context"

// UserSettings is one row of the users table.
type UserSettings struct {
	ID        string
	Settings  []byte
	CreatedAt int64
	UpdatedAt int64
}

// DataEntry is one row of the data table.
type DataEntry struct {
	UserID    string
	Key       string
	Value     []byte
	Version   int64
	Checksum  string
	SizeBytes int32
	CreatedAt int64
	UpdatedAt int64
}

// ManifestEntry is a DataEntry without its value, used for manifests.
type ManifestEntry struct {
	Key       string
	Version   int64
	Checksum  string
	SizeBytes int32
	UpdatedAt int64
}

// VersionInfo is the pre-write state the engine needs to allocate the next
// version while preserving created_at.
type VersionInfo struct {
	Version   int64
	CreatedAt int64
}

// Store is the typed storage adapter the settings, data, and sync services
// are built on.
type Store interface {
	// Settings (users table)
	GetSettingsMetadata(ctx context.Context, key string) (updatedAt int64, ok bool, err error)
	GetSettings(ctx context.Context, key string) (*UserSettings, error)
	PutSettings(ctx context.Context, key string, settings []byte, createdAt, updatedAt int64) error
	DeleteSettings(ctx context.Context, key string) error

	// Data (data table)
	GetManifest(ctx context.Context, userID string) ([]ManifestEntry, error)
	GetDataEntry(ctx context.Context, userID, key string) (*DataEntry, error)
	GetDataEntries(ctx context.Context, userID string, keys []string) ([]DataEntry, error)
	PutDataEntry(ctx context.Context, e DataEntry) error
	PutDataEntries(ctx context.Context, entries []DataEntry) error
	DeleteDataEntry(ctx context.Context, userID, key string) error
	DeleteAllDataEntries(ctx context.Context, userID string) error
	SumSizeBytes(ctx context.Context, userID string) (int64, error)
	GetVersions(ctx context.Context, userID string, keys []string) (map[string]VersionInfo, error)

	// Health
	Ping(ctx context.Context) error
	Close()

	// CountStats scans both tables for the periodic metrics collector: how
	// many users have a settings row under each key scheme, and how many
	// data rows exist in total.
	CountStats(ctx context.Context) (currentUsers, legacyUsers, dataEntries int64, err error)
}
