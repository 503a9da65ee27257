package routing

import (
	"crypto/rand"
	"net/http"
	"time"

	"github.com/aandrewmolt/kpi-dashboard/internal/respond"
	"github.com/gorilla/mux"
	"github.com/oklog/ulid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the per-request ULID.
const RequestIDHeader = "X-Request-ID"

// requestIDMiddleware tags each request with a ULID and stores a logger
// carrying it in the request context.
func requestIDMiddleware(log zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = ulid.MustNew(ulid.Timestamp(start), rand.Reader).String()
			}
			w.Header().Set(RequestIDHeader, id)

			reqLog := log.With().
				Str("request_id", id).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()
			next.ServeHTTP(w, r.WithContext(reqLog.WithContext(r.Context())))

			reqLog.Debug().Dur("took", time.Since(start)).Msg("request served")
		})
	}
}

// rateLimitMiddleware rejects requests beyond the limiter's budget with 429.
func rateLimitMiddleware(limiter *rate.Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				zerolog.Ctx(r.Context()).Warn().Msg("rate limited")
				respond.Error(w, r, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
