package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"fintrack/internal/ratelimit"
)

type contextKey string

const ownerKey contextKey = "owner"

// ownerFromContext returns the authenticated owner id set by ownerAuth.
func ownerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey).(string)
	return owner
}

// ownerAuth requires the X-Owner-ID header. Authentication itself lives in
// an external gateway; this layer only trusts the id it forwards.
func ownerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID := r.Header.Get("X-Owner-ID")
		if ownerID == "" {
			writeError(w, http.StatusUnauthorized, "missing owner identity")
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey, ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimited limits requests per owner, falling back to the remote
// address before authentication.
func rateLimited(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	extractKey := func(r *http.Request) string {
		if owner := r.Header.Get("X-Owner-ID"); owner != "" {
			return owner
		}
		return r.RemoteAddr
	}
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	}
	return limiter.Middleware(extractKey, onLimit)
}

// requestLogging logs one line per request.
func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.InfoContext(r.Context(), "Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
