package jam

import (
	"encoding/json"
	"errors"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeOpError maps a controller failure onto the response; unknown errors
// stay opaque.
func writeOpError(w http.ResponseWriter, err error) {
	var oe *OpError
	if errors.As(err, &oe) {
		writeJSON(w, HTTPStatus(err), map[string]string{
			"error": oe.Msg,
			"kind":  string(oe.Kind),
		})
		return
	}
	writeError(w, http.StatusInternalServerError, "database error")
}
