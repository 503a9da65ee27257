package routing

import (
	"net/http"

	"github.com/aandrewmolt/kpi-dashboard/internal/lockservice"
	"github.com/aandrewmolt/kpi-dashboard/internal/respond"
	"github.com/aandrewmolt/kpi-dashboard/internal/store"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Locks   *lockservice.ResourceLockManager
	Store   *store.Store
	Log     zerolog.Logger
	Limiter *rate.Limiter // nil disables rate limiting
}

// SetupRouting adds all the routes on the http server.
func SetupRouting(d Deps, r *mux.Router) (*mux.Router, error) {
	r.Use(requestIDMiddleware(d.Log))
	if d.Limiter != nil {
		r.Use(rateLimitMiddleware(d.Limiter))
	}

	r.HandleFunc("/health", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/locks", makeListLocksHandler(d.Locks)).Methods(http.MethodGet)
	r.HandleFunc("/api/locks/{type}/{id}", makeCheckLockHandler(d.Locks)).Methods(http.MethodGet)

	for _, res := range store.Resources {
		table, err := d.Store.Table(res.Collection)
		if err != nil {
			return nil, err
		}
		sub := r.PathPrefix("/api/" + res.Collection).Subrouter()
		sub.Use(d.Locks.Middleware(res.Type))

		h := &resourceHandler{table: table}
		sub.HandleFunc("", h.list).Methods(http.MethodGet)
		sub.HandleFunc("", h.create).Methods(http.MethodPost)
		sub.HandleFunc("/{id}", h.get).Methods(http.MethodGet)
		sub.HandleFunc("/{id}", h.replace).Methods(http.MethodPut)
		sub.HandleFunc("/{id}", h.update).Methods(http.MethodPatch)
		sub.HandleFunc("/{id}", h.delete).Methods(http.MethodDelete)
	}
	return r, nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
