package routing

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/aandrewmolt/kpi-dashboard/internal/lockservice"
	"github.com/aandrewmolt/kpi-dashboard/internal/respond"
	"github.com/aandrewmolt/kpi-dashboard/internal/store"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

// resourceHandler serves the CRUD routes of one table. Mutations with an
// id run inside the lock middleware, so each handler here is a plain
// read-modify-write.
type resourceHandler struct {
	table *store.Table
}

func (h *resourceHandler) list(w http.ResponseWriter, r *http.Request) {
	records, err := h.table.List(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, records)
}

func (h *resourceHandler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.table.Get(r.Context(), mux.Vars(r)[lockservice.IDVar])
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, rec)
}

func (h *resourceHandler) create(w http.ResponseWriter, r *http.Request) {
	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	rec, err := h.table.Create(r.Context(), rec)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusCreated, rec)
}

func (h *resourceHandler) replace(w http.ResponseWriter, r *http.Request) {
	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	rec, err := h.table.Replace(r.Context(), mux.Vars(r)[lockservice.IDVar], rec)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, rec)
}

func (h *resourceHandler) update(w http.ResponseWriter, r *http.Request) {
	patch, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	rec, err := h.table.Update(r.Context(), mux.Vars(r)[lockservice.IDVar], patch)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, rec)
}

func (h *resourceHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.table.Delete(r.Context(), mux.Vars(r)[lockservice.IDVar]); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeRecord reads a JSON object body. On failure it has already
// written a 400.
func decodeRecord(w http.ResponseWriter, r *http.Request) (store.Record, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return nil, false
	}
	var rec store.Record
	if err := json.Unmarshal(body, &rec); err != nil || rec == nil {
		respond.Error(w, r, http.StatusBadRequest, store.ErrInvalidRecord.Error())
		return nil, false
	}
	return rec, true
}
