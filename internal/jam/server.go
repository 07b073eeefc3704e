package jam

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Server struct {
	ctrl *Controller
}

func NewServer(ctrl *Controller) *Server {
	return &Server{ctrl: ctrl}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Post("/sessions/{id}/start", s.handleStart)
		r.Post("/sessions/{id}/stop", s.handleStop)
		r.Post("/sessions/{id}/next", s.handleNext)
		r.Post("/sessions/{id}/previous", s.handlePrevious)
		r.Post("/sessions/{id}/pause", s.handlePause)
		r.Post("/sessions/{id}/resume", s.handleResume)

		r.Patch("/sessions/{id}/queue/order", s.handleReorder)
		r.Get("/sessions/{id}/history", s.handleHistory)
		r.Get("/sessions/{id}/state", s.handleState)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "jam-service",
	})
}
