package httpapi

import (
	"context"
	"net/http"

	"github.com/equicloud/equicloud/internal/apierr"
	"github.com/equicloud/equicloud/internal/auth"
	"github.com/equicloud/equicloud/internal/log"
	"github.com/equicloud/equicloud/internal/metrics"
)

type ctxKey int

const userIDKey ctxKey = iota

func (h *handlers) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result, ok := auth.Verify(r.Header.Get("Authorization"))
		if !ok {
			writeAPIErr(w, apierr.Unauthorized, "unauthorized")
			return
		}
		if result.Legacy {
			metrics.LegacyAuthTotal.Inc()
			log.Logger.Warn().Str("user_id", result.UserID).Msg("httpapi: request authenticated with legacy secret")
		}
		ctx := context.WithValue(r.Context(), userIDKey, result.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFromContext(r *http.Request) string {
	v, _ := r.Context().Value(userIDKey).(string)
	return v
}
