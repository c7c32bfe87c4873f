package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/equicloud/equicloud/internal/apierr"
	"github.com/equicloud/equicloud/internal/config"
	"github.com/equicloud/equicloud/internal/data"
	"github.com/equicloud/equicloud/internal/identity"
	"github.com/equicloud/equicloud/internal/oauth"
	"github.com/equicloud/equicloud/internal/settings"
	"github.com/equicloud/equicloud/internal/sync"
)

func userSecret(userID string) string { return identity.Secret(userID) }

type handlers struct {
	deps Deps
}

func (h *handlers) cfg() *config.Config         { return h.deps.Config }
func (h *handlers) settings() *settings.Service { return h.deps.Settings }
func (h *handlers) data() *data.Service         { return h.deps.Data }
func (h *handlers) sync() *sync.Engine          { return h.deps.Sync }
func (h *handlers) exchanger() *oauth.DiscordExchanger { return h.deps.Exchanger }

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAPIErr maps an apierr.Kind to its HTTP status in one place for
// responses carrying a JSON error body. Bodiless statuses (404, 304, some
// 500s) and the sync handler's errors are written with explicit codes.
func writeAPIErr(w http.ResponseWriter, kind apierr.Kind, msg string) {
	writeError(w, apierr.StatusCode(kind), msg)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) root(w http.ResponseWriter, r *http.Request) {
	if h.cfg().APIRootRedirectURL != "" {
		http.Redirect(w, r, h.cfg().APIRootRedirectURL, http.StatusMovedPermanently)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name": "equicloud",
		"endpoints": []string{
			"/health", "/v1/oauth/settings", "/v1/oauth/callback",
			"/v1/settings", "/v2/manifest", "/v2/data/{key}", "/v2/sync",
		},
	})
}

func (h *handlers) oauthSettings(w http.ResponseWriter, r *http.Request) {
	clientID, redirectURI := h.exchanger().Settings()
	writeJSON(w, http.StatusOK, map[string]string{"clientId": clientID, "redirectUri": redirectURI})
}

func (h *handlers) oauthCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		writeJSON(w, http.StatusOK, map[string]string{"error": errParam})
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusOK, map[string]string{"error": "Missing code"})
		return
	}

	userID, err := h.exchanger().Exchange(r.Context(), code)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"secret": userSecret(userID)})
}
