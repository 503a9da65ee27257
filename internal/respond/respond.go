// Package respond writes the dashboard's JSON responses.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// JSON writes v as the JSON body with the given status. An encoding
// failure is logged on the request logger; the status is already sent.
func JSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Int("status", status).
			Msg("writing response body")
	}
}

// Error writes {"error": msg} with the given status.
func Error(w http.ResponseWriter, r *http.Request, status int, msg string) {
	JSON(w, r, status, map[string]string{"error": msg})
}
