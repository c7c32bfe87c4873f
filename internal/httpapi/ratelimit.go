package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/equicloud/equicloud/internal/log"
	"github.com/equicloud/equicloud/internal/metrics"
)

// RateLimiter tracks one token-bucket limiter per client IP.
type RateLimiter struct {
	perSecond float64
	burst     int

	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiter builds a limiter admitting perSecond requests/s per client
// IP with the given burst.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		perSecond: perSecond,
		burst:     burst,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the request from r's client IP is within budget,
// creating a fresh bucket for IPs seen for the first time.
func (rl *RateLimiter) Allow(r *http.Request) bool {
	ip := clientIP(r)

	rl.mu.RLock()
	limiter, ok := rl.limiters[ip]
	rl.mu.RUnlock()

	if !ok {
		rl.mu.Lock()
		limiter, ok = rl.limiters[ip]
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(rl.perSecond), rl.burst)
			rl.limiters[ip] = limiter
		}
		rl.mu.Unlock()
	}

	return limiter.Allow()
}

// Cleanup drops every tracked limiter once the map grows past a threshold,
// bounding memory from long-lived processes seeing many distinct IPs.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.limiters) > 10000 {
		rl.limiters = make(map[string]*rate.Limiter)
	}
}

// StartCleanupJob runs Cleanup hourly until stop is closed (a nil stop
// channel never closes).
func (rl *RateLimiter) StartCleanupJob(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Hour)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				rl.Cleanup()
			}
		}
	}()
}

// Middleware returns an http middleware enforcing the limiter, responding
// 429 and incrementing the rejection counter when exceeded.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(r) {
			metrics.RateLimitRejectionsTotal.Inc()
			log.Logger.Warn().Str("client_ip", clientIP(r)).Msg("httpapi: rate limit exceeded")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
