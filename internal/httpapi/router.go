// Package httpapi exposes the settings, data, sync, auth, and health
// components over HTTP. Handlers are thin: decode and validate wire shapes,
// call the service layer, encode the response. No business logic lives
// here.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/equicloud/equicloud/internal/config"
	"github.com/equicloud/equicloud/internal/data"
	"github.com/equicloud/equicloud/internal/log"
	"github.com/equicloud/equicloud/internal/metrics"
	"github.com/equicloud/equicloud/internal/oauth"
	"github.com/equicloud/equicloud/internal/settings"
	"github.com/equicloud/equicloud/internal/sync"
)

// Deps bundles everything the router needs to wire handlers.
type Deps struct {
	Config    *config.Config
	Settings  *settings.Service
	Data      *data.Service
	Sync      *sync.Engine
	Exchanger *oauth.DiscordExchanger
}

// NewRouter builds the full chi router.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)

	if len(deps.Config.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.Config.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "HEAD", "PUT", "DELETE", "POST"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "If-None-Match"},
			ExposedHeaders:   []string{"ETag", "X-Version"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	if deps.Config.RateLimitEnabled {
		limiter := NewRateLimiter(deps.Config.RateLimitPerSecond, deps.Config.RateLimitBurst)
		limiter.StartCleanupJob(nil)
		r.Use(limiter.Middleware)
	}

	h := &handlers{deps: deps}

	r.Get("/health", h.health)
	r.Get("/", h.root)
	if deps.Config.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Get("/v1/oauth/settings", h.oauthSettings)
	r.Get("/v1/oauth/callback", h.oauthCallback)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Head("/v1/settings", h.headSettings)
		r.Get("/v1/settings", h.getSettings)
		r.Put("/v1/settings", h.putSettings)
		r.Delete("/v1/settings", h.deleteSettings)

		r.Get("/v2/manifest", h.getManifest)
		r.Get("/v2/data/*", h.getData)
		r.Put("/v2/data/*", h.putData)
		r.Delete("/v2/data/*", h.deleteData)

		r.Post("/v2/sync", h.postSync)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("httpapi: request")
		metrics.APIRequestsTotal.WithLabelValues(r.URL.Path, http.StatusText(ww.Status())).Inc()
		metrics.APIRequestDuration.WithLabelValues(r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
