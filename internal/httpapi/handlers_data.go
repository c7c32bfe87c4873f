package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/equicloud/equicloud/internal/apierr"
	"github.com/equicloud/equicloud/internal/codec"
	"github.com/equicloud/equicloud/internal/data"
	"github.com/equicloud/equicloud/internal/keyvalidate"
	"github.com/equicloud/equicloud/internal/log"
)

func dataKeyFromPath(r *http.Request) string {
	return chi.URLParam(r, "*")
}

func (h *handlers) validateDataKey(w http.ResponseWriter, r *http.Request, key string) bool {
	if err := keyvalidate.Validate(key, h.cfg().DatastoreEnabled); err != nil {
		if ve, ok := err.(*keyvalidate.Error); ok && ve.Kind == keyvalidate.DatastoreDisabled {
			writeAPIErr(w, apierr.Forbidden, "DataStore sync is disabled")
			return false
		}
		writeAPIErr(w, apierr.Validation, err.Error())
		return false
	}
	return true
}

func (h *handlers) getData(w http.ResponseWriter, r *http.Request) {
	key := dataKeyFromPath(r)
	if !h.validateDataKey(w, r, key) {
		return
	}

	uid := userIDFromContext(r)
	entry, err := h.data().Get(r.Context(), uid, key)
	if err != nil {
		log.Logger.Error().Err(err).Msg("httpapi: get data failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if entry == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if r.Header.Get("If-None-Match") == entry.Checksum {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("ETag", entry.Checksum)
	w.Header().Set("X-Version", strconv.FormatInt(entry.Version, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(entry.Value)
}

func (h *handlers) putData(w http.ResponseWriter, r *http.Request) {
	key := dataKeyFromPath(r)
	if !h.validateDataKey(w, r, key) {
		return
	}

	if r.Header.Get("Content-Type") != "application/octet-stream" {
		writeAPIErr(w, apierr.UnsupportedMedia, "Content type must be application/octet-stream")
		return
	}

	maxSize := h.cfg().MaxKeySizeBytes
	if strings.HasPrefix(key, keyvalidate.DatastorePrefix) {
		maxSize = h.cfg().MaxDatastoreKeySizeBytes
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSize+1))
	if err != nil {
		writeAPIErr(w, apierr.Internal, "Failed to read body")
		return
	}
	if int64(len(body)) > maxSize {
		limitMB := maxSize / 1024 / 1024
		writeAPIErr(w, apierr.TooLarge, "Value exceeds "+strconv.FormatInt(limitMB, 10)+"MB limit")
		return
	}

	checksum := codec.Checksum(body)
	uid := userIDFromContext(r)
	version, updatedAt, err := h.data().PutWithQuota(r.Context(), uid, key, body, checksum, h.cfg().MaxBackupSizeBytes)
	if err != nil {
		if err == data.ErrQuotaExceeded {
			writeAPIErr(w, apierr.TooLarge, "Total storage limit exceeded")
			return
		}
		log.Logger.Error().Err(err).Msg("httpapi: put data failed")
		writeAPIErr(w, apierr.Internal, "Failed to save data")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": version, "checksum": checksum, "updated_at": updatedAt,
	})
}

func (h *handlers) deleteData(w http.ResponseWriter, r *http.Request) {
	key := dataKeyFromPath(r)
	if !h.validateDataKey(w, r, key) {
		return
	}

	uid := userIDFromContext(r)
	if err := h.data().Delete(r.Context(), uid, key); err != nil {
		log.Logger.Error().Err(err).Msg("httpapi: delete data failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getManifest(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)
	entries, err := h.data().Manifest(r.Context(), uid)
	if err != nil {
		log.Logger.Error().Err(err).Msg("httpapi: get manifest failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	var total int64
	for _, e := range entries {
		total += int64(e.SizeBytes)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries, "total_size": total})
}
