package jam

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// actorFromRequest reads the gateway-injected user context. Playback
// operations work without one on host-less sessions.
func actorFromRequest(r *http.Request) *string {
	if userID := r.Header.Get("X-User-Id"); userID != "" {
		return &userID
	}
	return nil
}

type playbackOp func(ctx context.Context, sessionID string, actorID *string) (*SessionState, error)

func (s *Server) runPlayback(w http.ResponseWriter, r *http.Request, name string, op playbackOp) {
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	state, err := op(r.Context(), sessionID, actorFromRequest(r))
	if err != nil {
		if ErrKind(err) == "" {
			log.Printf("jam-service: %s session %s: %v", name, sessionID, err)
		}
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// POST /sessions/{id}/start
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.runPlayback(w, r, "start", s.ctrl.Start)
}

// POST /sessions/{id}/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.runPlayback(w, r, "stop", s.ctrl.Stop)
}

// POST /sessions/{id}/next
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.runPlayback(w, r, "next", s.ctrl.Next)
}

// POST /sessions/{id}/previous
func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	s.runPlayback(w, r, "previous", s.ctrl.Previous)
}

// POST /sessions/{id}/pause
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.runPlayback(w, r, "pause", s.ctrl.Pause)
}

// POST /sessions/{id}/resume
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.runPlayback(w, r, "resume", s.ctrl.Resume)
}
