package routing

import (
	"errors"
	"net/http"

	"github.com/aandrewmolt/kpi-dashboard/internal/respond"
	"github.com/aandrewmolt/kpi-dashboard/internal/store"
	"github.com/rs/zerolog"
)

// writeStoreError maps store errors onto status codes.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		respond.Error(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidRecord):
		respond.Error(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrTableLocked):
		respond.Error(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("store operation failed")
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}
