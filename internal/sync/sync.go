// Package sync implements the delta-sync reconciliation algorithm: diff
// a client-declared manifest against the authoritative server manifest,
// compute downloads, admit and persist uploads under quota and dominance
// rules, and project the post-sync manifest without re-reading storage.
package sync

import (
	"context"
	"time"

	"github.com/equicloud/equicloud/internal/codec"
	"github.com/equicloud/equicloud/internal/data"
	"github.com/equicloud/equicloud/internal/keyvalidate"
	"github.com/equicloud/equicloud/internal/log"
	"github.com/equicloud/equicloud/internal/metrics"
	"github.com/equicloud/equicloud/internal/storage"
)

// ClientManifestEntry is one entry of the client-declared manifest.
type ClientManifestEntry struct {
	Key      string
	Version  int64
	Checksum string
}

// Upload is one client-supplied value to admit.
type Upload struct {
	Key      string
	Value    []byte
	Checksum string
}

// Request is the full sync payload.
type Request struct {
	ClientManifest []ClientManifestEntry
	Uploads        []Upload
}

// Download is a full entry returned to the client because it lacked or had
// a stale copy.
type Download struct {
	Key      string
	Value    []byte
	Version  int64
	Checksum string
}

// UploadResult reports one successfully admitted and persisted upload.
type UploadResult struct {
	Key      string
	Version  int64
	Checksum string
}

// SyncError is one per-key failure; the HTTP status for the overall sync
// stays 200, since a sync may partially succeed.
type SyncError struct {
	Key   string
	Error string
}

// Response is the full sync result.
type Response struct {
	ServerManifest []storage.ManifestEntry
	Downloads      []Download
	Uploaded       []UploadResult
	Errors         []SyncError
}

// Limits bounds the per-value and per-user storage ceilings step 3 enforces.
type Limits struct {
	MaxPerKeyBytes   int64
	MaxBackupBytes   int64
	DatastoreEnabled bool
}

// Engine composes the data service and store into the reconciliation
// algorithm.
type Engine struct {
	store    storage.Store
	dataSvc  *data.Service
	limits   Limits
}

func New(store storage.Store, dataSvc *data.Service, limits Limits) *Engine {
	return &Engine{store: store, dataSvc: dataSvc, limits: limits}
}

func now() int64 { return time.Now().UnixMilli() }

// Sync runs the full five-step reconciliation for uid.
func (e *Engine) Sync(ctx context.Context, uid string, req Request) (*Response, error) {
	// Step 1 — load server manifest. A failure here aborts the whole request.
	serverManifest, err := e.store.GetManifest(ctx, uid)
	if err != nil {
		return nil, err
	}

	serverIdx := make(map[string]storage.ManifestEntry, len(serverManifest))
	for _, se := range serverManifest {
		serverIdx[se.Key] = se
	}
	clientIdx := make(map[string]ClientManifestEntry, len(req.ClientManifest))
	for _, c := range req.ClientManifest {
		clientIdx[c.Key] = c
	}

	resp := &Response{}

	// Step 2 — determine downloads.
	var keysToDownload []string
	for _, s := range serverManifest {
		c, ok := clientIdx[s.Key]
		uptodate := ok && c.Version >= s.Version && c.Checksum == s.Checksum
		if !uptodate {
			keysToDownload = append(keysToDownload, s.Key)
		}
	}
	if len(keysToDownload) > 0 {
		entries, err := e.dataSvc.GetMany(ctx, uid, keysToDownload)
		if err != nil {
			for _, k := range keysToDownload {
				resp.Errors = append(resp.Errors, SyncError{Key: k, Error: "Failed to download"})
			}
		} else {
			for _, en := range entries {
				resp.Downloads = append(resp.Downloads, Download{
					Key: en.Key, Value: en.Value, Version: en.Version, Checksum: en.Checksum,
				})
			}
			metrics.SyncDownloadsTotal.Add(float64(len(entries)))
		}
	}

	// Step 3 — admit uploads.
	var runningTotal int64
	for _, s := range serverManifest {
		runningTotal += int64(s.SizeBytes)
	}

	var validUploads []Upload
	for _, u := range req.Uploads {
		if err := keyvalidate.Validate(u.Key, e.limits.DatastoreEnabled); err != nil {
			resp.Errors = append(resp.Errors, SyncError{Key: u.Key, Error: err.Error()})
			metrics.SyncUploadsTotal.WithLabelValues("rejected").Inc()
			continue
		}
		if int64(len(u.Value)) > e.limits.MaxPerKeyBytes {
			resp.Errors = append(resp.Errors, SyncError{Key: u.Key, Error: "Value exceeds 1MB limit"})
			metrics.SyncUploadsTotal.WithLabelValues("rejected").Inc()
			continue
		}
		if codec.Checksum(u.Value) != u.Checksum {
			resp.Errors = append(resp.Errors, SyncError{Key: u.Key, Error: "Checksum mismatch"})
			metrics.SyncUploadsTotal.WithLabelValues("rejected").Inc()
			continue
		}

		s, serverHas := serverIdx[u.Key]
		if serverHas {
			c, clientHas := clientIdx[u.Key]
			dominated := !clientHas || c.Version <= s.Version
			if dominated {
				metrics.SyncUploadsTotal.WithLabelValues("dropped_dominance").Inc()
				continue
			}
		}

		existingSize := int64(0)
		if serverHas {
			existingSize = int64(s.SizeBytes)
		}
		newTotal := runningTotal - existingSize + int64(len(u.Value))
		if newTotal > e.limits.MaxBackupBytes {
			resp.Errors = append(resp.Errors, SyncError{Key: u.Key, Error: "Total storage limit exceeded"})
			metrics.SyncUploadsTotal.WithLabelValues("rejected").Inc()
			continue
		}

		runningTotal = newTotal
		validUploads = append(validUploads, u)
	}

	// Step 4 — persist uploads.
	updatedKeys := make(map[string]UploadResult)
	if len(validUploads) > 0 {
		keys := make([]string, len(validUploads))
		for i, u := range validUploads {
			keys[i] = u.Key
		}

		versions, err := e.dataSvc.VersionsBatch(ctx, uid, keys)
		if err != nil {
			log.Logger.Error().Err(err).Str("user_key", uid).Msg("sync: versions_batch failed")
			for _, u := range validUploads {
				resp.Errors = append(resp.Errors, SyncError{Key: u.Key, Error: "Failed to save"})
			}
			validUploads = nil
		}

		if len(validUploads) > 0 {
			batch := make([]data.BatchUpload, 0, len(validUploads))
			nowTS := now()
			for _, u := range validUploads {
				vi, existed := versions[u.Key]
				nextVer := int64(1)
				createdAt := nowTS
				if existed {
					nextVer = vi.Version + 1
					createdAt = vi.CreatedAt
				}
				batch = append(batch, data.BatchUpload{
					Key: u.Key, Value: u.Value, Checksum: u.Checksum,
					NextVer: nextVer, CreatedAt: createdAt,
				})
			}

			results, err := e.dataSvc.PutBatch(ctx, uid, batch)
			if err != nil {
				// Asymmetric with the versions_batch failure above: a
				// put_batch failure is logged only, never surfaced per key.
				log.Logger.Error().Err(err).Str("user_key", uid).Msg("sync: put_batch failed")
			} else {
				for _, r := range results {
					for _, b := range batch {
						if b.Key == r.Key {
							updatedKeys[r.Key] = UploadResult{Key: r.Key, Version: r.Version, Checksum: b.Checksum}
							resp.Uploaded = append(resp.Uploaded, UploadResult{Key: r.Key, Version: r.Version, Checksum: b.Checksum})
							metrics.SyncUploadsTotal.WithLabelValues("accepted").Inc()
						}
					}
				}
			}
		}
	}

	// Step 5 — project manifest without re-reading storage.
	if len(updatedKeys) == 0 {
		resp.ServerManifest = serverManifest
		return resp, nil
	}

	nowTS := now()
	projected := make([]storage.ManifestEntry, 0, len(serverManifest))
	seen := make(map[string]bool, len(updatedKeys))
	for _, entry := range serverManifest {
		if r, ok := updatedKeys[entry.Key]; ok {
			var sizeBytes int32
			for _, u := range validUploads {
				if u.Key == entry.Key {
					sizeBytes = int32(len(u.Value))
				}
			}
			entry.Version = r.Version
			entry.Checksum = r.Checksum
			entry.SizeBytes = sizeBytes
			entry.UpdatedAt = nowTS
			seen[entry.Key] = true
		}
		projected = append(projected, entry)
	}
	for key, r := range updatedKeys {
		if seen[key] {
			continue
		}
		var sizeBytes int32
		for _, u := range validUploads {
			if u.Key == key {
				sizeBytes = int32(len(u.Value))
			}
		}
		projected = append(projected, storage.ManifestEntry{
			Key: key, Version: r.Version, Checksum: r.Checksum,
			SizeBytes: sizeBytes, UpdatedAt: nowTS,
		})
	}
	resp.ServerManifest = projected
	return resp, nil
}
