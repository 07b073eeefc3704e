package jam

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// PATCH /sessions/{id}/queue/order
func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	var body struct {
		Entries []EntryOrder `json:"entries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.ctrl.Reorder(r.Context(), sessionID, body.Entries, actorFromRequest(r)); err != nil {
		if ErrKind(err) == "" {
			log.Printf("jam-service: reorder session %s: %v", sessionID, err)
		}
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// GET /sessions/{id}/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := s.ctrl.History(r.Context(), sessionID, limit)
	if err != nil {
		if ErrKind(err) == "" {
			log.Printf("jam-service: history session %s: %v", sessionID, err)
		}
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// GET /sessions/{id}/state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	state, err := s.ctrl.State(r.Context(), sessionID)
	if err != nil {
		if ErrKind(err) == "" {
			log.Printf("jam-service: state session %s: %v", sessionID, err)
		}
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
