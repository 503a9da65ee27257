package lockservice

import (
	"context"
	"errors"
	"net/http"

	"github.com/aandrewmolt/kpi-dashboard/internal/respond"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// ConflictMessage is the body text of the response sent when the lock
// could not be obtained in time.
const ConflictMessage = "another request is currently modifying this resource, please retry"

// IDVar is the mux path variable the middleware reads the resource id from.
const IDVar = "id"

// Middleware returns a mux middleware that holds the lock on
// (resourceType, {id}) for the duration of every mutating request.
//
// Read-only methods and requests without an id pass straight through.
// The lock is released when the wrapped handler returns, whichever way
// it returns. A timed-out acquisition is answered with 409 Conflict and
// the wrapped handler is never called.
func (lm *ResourceLockManager) Middleware(resourceType string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isMutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			id := mux.Vars(r)[IDVar]
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			key := NewLockKey(resourceType, id)
			log := lm.requestLogger(r.Context())

			err := lm.Acquire(r.Context(), key, 0)
			switch {
			case err == nil:
			case errors.Is(err, ErrLockTimeout):
				log.Warn().
					Str("resource_type", resourceType).
					Str("resource_id", id).
					Str("method", r.Method).
					Msg("lock conflict")
				respond.Error(w, r, http.StatusConflict, ConflictMessage)
				return
			default:
				lm.opts.ErrorHandler(w, r, err)
				return
			}
			defer lm.Release(key)

			log.Debug().
				Str("resource_type", resourceType).
				Str("resource_id", id).
				Str("method", r.Method).
				Msg("holding lock for request")
			next.ServeHTTP(w, r)
		})
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func (lm *ResourceLockManager) requestLogger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &lm.log
}

// defaultErrorHandler answers unexpected acquisition errors with a 500.
// A client that went away while waiting gets nothing written.
func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("client gone while waiting for lock")
		return
	}
	zerolog.Ctx(r.Context()).Error().Err(err).Msg("lock acquisition failed")
	respond.Error(w, r, http.StatusInternalServerError, err.Error())
}
