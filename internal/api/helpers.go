package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vdavid/mailtrace/internal/logging"
)

// WriteJSONResponse encodes v and writes it with status 200. The body is
// encoded before anything is written, so an encoding failure still produces
// a clean 500 instead of a partial response.
func WriteJSONResponse(w http.ResponseWriter, v any) bool {
	return writeJSON(w, http.StatusOK, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) bool {
	body, err := json.Marshal(v)
	if err != nil {
		logging.Component("api").WithError(err).Error("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return false
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		logging.Component("api").WithError(err).Warn("Failed to write response")
		return false
	}
	return true
}

// ParseLimitParam reads the "limit" query parameter, falling back to
// defaultLimit when it is missing, not a number or not positive.
func ParseLimitParam(r *http.Request, defaultLimit int) int {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	return limit
}
