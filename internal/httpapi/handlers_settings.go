package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/equicloud/equicloud/internal/apierr"
	"github.com/equicloud/equicloud/internal/log"
)

func (h *handlers) headSettings(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)
	updatedAt, ok, err := h.settings().HeadMetadata(r.Context(), uid)
	if err != nil {
		log.Logger.Error().Err(err).Msg("httpapi: head settings failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("ETag", strconv.FormatInt(updatedAt, 10))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)
	value, updatedAt, ok, err := h.settings().Get(r.Context(), uid)
	if err != nil {
		log.Logger.Error().Err(err).Msg("httpapi: get settings failed")
		writeAPIErr(w, apierr.Internal, "Failed to retrieve settings")
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	etag := strconv.FormatInt(updatedAt, 10)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(value)
}

func (h *handlers) putSettings(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Content-Type") != "application/octet-stream" {
		writeAPIErr(w, apierr.UnsupportedMedia, "Content type must be application/octet-stream")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.cfg().MaxBackupSizeBytes+1))
	if err != nil {
		writeAPIErr(w, apierr.Internal, "Failed to read body")
		return
	}
	if int64(len(body)) > h.cfg().MaxBackupSizeBytes {
		writeAPIErr(w, apierr.TooLarge, "Settings are too large")
		return
	}

	uid := userIDFromContext(r)
	written, err := h.settings().Put(r.Context(), uid, body)
	if err != nil {
		log.Logger.Error().Err(err).Msg("httpapi: put settings failed")
		writeAPIErr(w, apierr.Internal, "Failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"written": written})
}

// deleteSettings removes both the settings blob and the full data-key
// namespace for the user: spec.md §6 describes the endpoint as "remove
// user blob + data", a full-account wipe rather than just the one blob.
func (h *handlers) deleteSettings(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)
	if err := h.settings().Delete(r.Context(), uid); err != nil {
		log.Logger.Error().Err(err).Msg("httpapi: delete settings failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if err := h.data().DeleteAll(r.Context(), uid); err != nil {
		log.Logger.Error().Err(err).Msg("httpapi: delete data failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
