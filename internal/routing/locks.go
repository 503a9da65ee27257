package routing

import (
	"net/http"

	"github.com/aandrewmolt/kpi-dashboard/internal/lockservice"
	"github.com/aandrewmolt/kpi-dashboard/internal/respond"
	"github.com/gorilla/mux"
)

type lockView struct {
	ResourceType string `json:"resourceType"`
	ResourceID   string `json:"resourceId"`
	AcquiredAt   string `json:"acquiredAt"`
	AgeMillis    int64  `json:"ageMs"`
}

type lockCheck struct {
	ResourceType string `json:"resourceType"`
	ResourceID   string `json:"resourceId"`
	Locked       bool   `json:"locked"`
}

// makeListLocksHandler reports the held locks. Diagnostic only.
func makeListLocksHandler(lm *lockservice.ResourceLockManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := lm.Now()
		entries := lm.Locks()
		views := make([]lockView, 0, len(entries))
		for _, e := range entries {
			views = append(views, lockView{
				ResourceType: e.Key.ResourceType,
				ResourceID:   e.Key.ResourceID,
				AcquiredAt:   e.AcquiredAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
				AgeMillis:    e.Age(now).Milliseconds(),
			})
		}
		respond.JSON(w, r, http.StatusOK, views)
	}
}

func makeCheckLockHandler(lm *lockservice.ResourceLockManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		key := lockservice.NewLockKey(vars["type"], vars["id"])
		respond.JSON(w, r, http.StatusOK, lockCheck{
			ResourceType: key.ResourceType,
			ResourceID:   key.ResourceID,
			Locked:       lm.IsLocked(key),
		})
	}
}
