package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/equicloud/equicloud/internal/log"
	"github.com/equicloud/equicloud/internal/sync"
)

type wireClientManifestEntry struct {
	Key      string `json:"key"`
	Version  int64  `json:"version"`
	Checksum string `json:"checksum"`
}

type wireUploadEntry struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Checksum string `json:"checksum"`
}

type wireSyncRequest struct {
	ClientManifest []wireClientManifestEntry `json:"client_manifest"`
	Uploads        []wireUploadEntry         `json:"uploads"`
}

type wireManifestEntry struct {
	Key       string `json:"key"`
	Version   int64  `json:"version"`
	Checksum  string `json:"checksum"`
	SizeBytes int32  `json:"size_bytes"`
	UpdatedAt int64  `json:"updated_at"`
}

type wireDownloadEntry struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Version  int64  `json:"version"`
	Checksum string `json:"checksum"`
}

type wireUploadResult struct {
	Key      string `json:"key"`
	Version  int64  `json:"version"`
	Checksum string `json:"checksum"`
}

type wireSyncError struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

type wireSyncResponse struct {
	ServerManifest []wireManifestEntry `json:"server_manifest"`
	Downloads      []wireDownloadEntry `json:"downloads"`
	Uploaded       []wireUploadResult  `json:"uploaded"`
	Errors         []wireSyncError     `json:"errors"`
}

func (h *handlers) postSync(w http.ResponseWriter, r *http.Request) {
	var req wireSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	engineReq := sync.Request{
		ClientManifest: make([]sync.ClientManifestEntry, len(req.ClientManifest)),
		Uploads:        make([]sync.Upload, 0, len(req.Uploads)),
	}
	for i, c := range req.ClientManifest {
		engineReq.ClientManifest[i] = sync.ClientManifestEntry{Key: c.Key, Version: c.Version, Checksum: c.Checksum}
	}
	for _, u := range req.Uploads {
		value, err := base64.StdEncoding.DecodeString(u.Value)
		if err != nil {
			continue
		}
		engineReq.Uploads = append(engineReq.Uploads, sync.Upload{Key: u.Key, Value: value, Checksum: u.Checksum})
	}

	uid := userIDFromContext(r)
	resp, err := h.sync().Sync(r.Context(), uid, engineReq)
	if err != nil {
		log.Logger.Error().Err(err).Msg("httpapi: sync failed")
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	out := wireSyncResponse{
		ServerManifest: make([]wireManifestEntry, len(resp.ServerManifest)),
		Downloads:      make([]wireDownloadEntry, len(resp.Downloads)),
		Uploaded:       make([]wireUploadResult, len(resp.Uploaded)),
		Errors:         make([]wireSyncError, len(resp.Errors)),
	}
	for i, e := range resp.ServerManifest {
		out.ServerManifest[i] = wireManifestEntry{
			Key: e.Key, Version: e.Version, Checksum: e.Checksum,
			SizeBytes: e.SizeBytes, UpdatedAt: e.UpdatedAt,
		}
	}
	for i, d := range resp.Downloads {
		out.Downloads[i] = wireDownloadEntry{
			Key: d.Key, Value: base64.StdEncoding.EncodeToString(d.Value),
			Version: d.Version, Checksum: d.Checksum,
		}
	}
	for i, u := range resp.Uploaded {
		out.Uploaded[i] = wireUploadResult{Key: u.Key, Version: u.Version, Checksum: u.Checksum}
	}
	for i, e := range resp.Errors {
		out.Errors[i] = wireSyncError{Key: e.Key, Error: e.Error}
	}

	writeJSON(w, http.StatusOK, out)
}
