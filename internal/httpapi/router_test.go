package httpapi

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/equicloud/equicloud/internal/codec"
	"github.com/equicloud/equicloud/internal/config"
	"github.com/equicloud/equicloud/internal/data"
	"github.com/equicloud/equicloud/internal/identity"
	"github.com/equicloud/equicloud/internal/oauth"
	"github.com/equicloud/equicloud/internal/settings"
	"github.com/equicloud/equicloud/internal/storagetest"
	"github.com/equicloud/equicloud/internal/sync"
)

const testUserID = "user-7"

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	store := storagetest.New()
	c := codec.New(false, 0)
	cfg := &config.Config{
		MaxBackupSizeBytes:       1024,
		MaxKeySizeBytes:          1024,
		MaxDatastoreKeySizeBytes: 1024,
		DatastoreEnabled:         true,
	}
	dataSvc := data.New(store, c)
	return NewRouter(Deps{
		Config:   cfg,
		Settings: settings.New(store),
		Data:     dataSvc,
		Sync: sync.New(store, dataSvc, sync.Limits{
			MaxPerKeyBytes:   cfg.MaxKeySizeBytes,
			MaxBackupBytes:   cfg.MaxBackupSizeBytes,
			DatastoreEnabled: cfg.DatastoreEnabled,
		}),
		Exchanger: oauth.NewDiscordExchanger("cid", "secret", "https://example.com/v1/oauth/callback", ""),
	})
}

func authHeader(uid string) string {
	token := base64.StdEncoding.EncodeToString([]byte(identity.Secret(uid) + ":" + uid))
	return "Bearer " + token
}

func TestHealthEndpoint(t *testing.T) {
	r := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSettingsRequiresAuth(t *testing.T) {
	r := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/settings", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSettingsRoundTripAndETag(t *testing.T) {
	r := testRouter(t)

	put := httptest.NewRequest(http.MethodPut, "/v1/settings", bytes.NewReader([]byte("blob-data")))
	put.Header.Set("Content-Type", "application/octet-stream")
	put.Header.Set("Authorization", authHeader(testUserID))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, put)
	require.Equal(t, http.StatusOK, w.Code)

	get := httptest.NewRequest(http.MethodGet, "/v1/settings", nil)
	get.Header.Set("Authorization", authHeader(testUserID))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, get)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "blob-data", w.Body.String())
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	get2 := httptest.NewRequest(http.MethodGet, "/v1/settings", nil)
	get2.Header.Set("Authorization", authHeader(testUserID))
	get2.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, get2)
	require.Equal(t, http.StatusNotModified, w.Code)
}

func TestDataPutGetWithVersionAndChecksum(t *testing.T) {
	r := testRouter(t)

	put := httptest.NewRequest(http.MethodPut, "/v2/data/mykey", bytes.NewReader([]byte("payload")))
	put.Header.Set("Content-Type", "application/octet-stream")
	put.Header.Set("Authorization", authHeader(testUserID))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, put)
	require.Equal(t, http.StatusOK, w.Code)

	get := httptest.NewRequest(http.MethodGet, "/v2/data/mykey", nil)
	get.Header.Set("Authorization", authHeader(testUserID))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, get)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "payload", w.Body.String())
	require.Equal(t, "1", w.Header().Get("X-Version"))
	require.NotEmpty(t, w.Header().Get("ETag"))
}

func TestDeleteSettingsAlsoWipesData(t *testing.T) {
	r := testRouter(t)

	put := httptest.NewRequest(http.MethodPut, "/v1/settings", bytes.NewReader([]byte("blob-data")))
	put.Header.Set("Content-Type", "application/octet-stream")
	put.Header.Set("Authorization", authHeader(testUserID))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, put)
	require.Equal(t, http.StatusOK, w.Code)

	putData := httptest.NewRequest(http.MethodPut, "/v2/data/mykey", bytes.NewReader([]byte("payload")))
	putData.Header.Set("Content-Type", "application/octet-stream")
	putData.Header.Set("Authorization", authHeader(testUserID))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, putData)
	require.Equal(t, http.StatusOK, w.Code)

	del := httptest.NewRequest(http.MethodDelete, "/v1/settings", nil)
	del.Header.Set("Authorization", authHeader(testUserID))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, del)
	require.Equal(t, http.StatusNoContent, w.Code)

	getSettings := httptest.NewRequest(http.MethodGet, "/v1/settings", nil)
	getSettings.Header.Set("Authorization", authHeader(testUserID))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, getSettings)
	require.Equal(t, http.StatusNotFound, w.Code)

	getData := httptest.NewRequest(http.MethodGet, "/v2/data/mykey", nil)
	getData.Header.Set("Authorization", authHeader(testUserID))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, getData)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDataDatastoreKeyRequiresFlag(t *testing.T) {
	store := storagetest.New()
	c := codec.New(false, 0)
	cfg := &config.Config{MaxKeySizeBytes: 1024, MaxDatastoreKeySizeBytes: 1024, DatastoreEnabled: false, MaxBackupSizeBytes: 1024}
	dataSvc := data.New(store, c)
	disabled := NewRouter(Deps{
		Config:   cfg,
		Settings: settings.New(store),
		Data:     dataSvc,
		Sync: sync.New(store, dataSvc, sync.Limits{
			MaxPerKeyBytes:   cfg.MaxKeySizeBytes,
			MaxBackupBytes:   cfg.MaxBackupSizeBytes,
			DatastoreEnabled: cfg.DatastoreEnabled,
		}),
		Exchanger: oauth.NewDiscordExchanger("cid", "secret", "https://example.com/v1/oauth/callback", ""),
	})

	put := httptest.NewRequest(http.MethodPut, "/v2/data/dataStore/x", bytes.NewReader([]byte("v")))
	put.Header.Set("Content-Type", "application/octet-stream")
	put.Header.Set("Authorization", authHeader(testUserID))
	w := httptest.NewRecorder()
	disabled.ServeHTTP(w, put)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestPutDataRejectsWrongContentType(t *testing.T) {
	r := testRouter(t)
	put := httptest.NewRequest(http.MethodPut, "/v2/data/mykey", bytes.NewReader([]byte("payload")))
	put.Header.Set("Content-Type", "text/plain")
	put.Header.Set("Authorization", authHeader(testUserID))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, put)
	require.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}
