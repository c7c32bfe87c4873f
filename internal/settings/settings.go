// Package settings implements the single-blob-per-user surface, with
// transparent legacy-to-current key migration on every read.
package settings

import (
	"context"
	"time"

	"github.com/equicloud/equicloud/internal/identity"
	"github.com/equicloud/equicloud/internal/log"
	"github.com/equicloud/equicloud/internal/metrics"
	"github.com/equicloud/equicloud/internal/storage"
)

// Service is the settings surface for one user, backed by a Store.
type Service struct {
	store storage.Store
}

func New(store storage.Store) *Service {
	return &Service{store: store}
}

func now() int64 { return time.Now().UnixMilli() }

// HeadMetadata returns the updated_at timestamp for uid's settings blob,
// falling back to the legacy row's updated_at if only the legacy key has a
// row. It does not migrate or modify any row.
func (s *Service) HeadMetadata(ctx context.Context, uid string) (updatedAt int64, ok bool, err error) {
	kNew := identity.StorageKey(uid)
	updatedAt, ok, err = s.store.GetSettingsMetadata(ctx, kNew)
	if err != nil || ok {
		return updatedAt, ok, err
	}

	kLegacy := identity.StorageKeyLegacy(uid)
	if kLegacy == kNew {
		return 0, false, nil
	}
	updatedAt, ok, err = s.store.GetSettingsMetadata(ctx, kLegacy)
	if err != nil || !ok {
		return 0, false, err
	}
	// A head request has no value to copy into the current key; the actual
	// migration happens on the next Get or Put for this user.
	return updatedAt, true, nil
}

// Get returns uid's settings blob and its updated_at, migrating a legacy row
// to the current key on hit. Migration failures are logged but never fail
// the read: the legacy value is still returned.
func (s *Service) Get(ctx context.Context, uid string) (data []byte, updatedAt int64, ok bool, err error) {
	kNew := identity.StorageKey(uid)
	row, err := s.store.GetSettings(ctx, kNew)
	if err != nil {
		return nil, 0, false, err
	}
	if row != nil {
		return row.Settings, row.UpdatedAt, true, nil
	}

	kLegacy := identity.StorageKeyLegacy(uid)
	if kLegacy == kNew {
		return nil, 0, false, nil
	}
	legacyRow, err := s.store.GetSettings(ctx, kLegacy)
	if err != nil {
		return nil, 0, false, err
	}
	if legacyRow == nil {
		return nil, 0, false, nil
	}

	if migrateErr := s.store.PutSettings(ctx, kNew, legacyRow.Settings, legacyRow.CreatedAt, legacyRow.UpdatedAt); migrateErr != nil {
		log.Logger.Warn().Err(migrateErr).Str("user_key", kNew).Msg("settings: failed to migrate legacy row")
	} else if delErr := s.store.DeleteSettings(ctx, kLegacy); delErr != nil {
		log.Logger.Warn().Err(delErr).Str("legacy_key", kLegacy).Msg("settings: failed to delete legacy row after migration")
	} else {
		metrics.LegacyMigrationsTotal.Inc()
	}

	return legacyRow.Settings, legacyRow.UpdatedAt, true, nil
}

// Put writes uid's settings blob and opportunistically cleans up any legacy
// row for the same user, swallowing cleanup failures (logged at warn).
func (s *Service) Put(ctx context.Context, uid string, data []byte) (updatedAt int64, err error) {
	kNew := identity.StorageKey(uid)
	existing, err := s.store.GetSettings(ctx, kNew)
	if err != nil {
		return 0, err
	}

	ts := now()
	createdAt := ts
	if existing != nil {
		createdAt = existing.CreatedAt
	}

	if err := s.store.PutSettings(ctx, kNew, data, createdAt, ts); err != nil {
		return 0, err
	}

	s.cleanupLegacy(ctx, uid, kNew)
	return ts, nil
}

// Delete removes uid's settings blob and any legacy row.
func (s *Service) Delete(ctx context.Context, uid string) error {
	kNew := identity.StorageKey(uid)
	if err := s.store.DeleteSettings(ctx, kNew); err != nil {
		return err
	}
	s.cleanupLegacy(ctx, uid, kNew)
	return nil
}

func (s *Service) cleanupLegacy(ctx context.Context, uid, kNew string) {
	kLegacy := identity.StorageKeyLegacy(uid)
	if kLegacy == kNew {
		return
	}
	if err := s.store.DeleteSettings(ctx, kLegacy); err != nil {
		log.Logger.Warn().Err(err).Str("legacy_key", kLegacy).Msg("settings: legacy cleanup failed")
	}
}
