package gateway

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"jam-session-service/internal/jam"
)

const (
	defaultRateLimit  = 10
	defaultRateWindow = 10 * time.Second
)

// Config tunes the gateway surface.
type Config struct {
	// AllowedOrigin restricts the ws handshake; empty allows any origin.
	AllowedOrigin string
	RateLimit     int
	RateWindow    time.Duration
}

// Server exposes the controller's effects to connected clients. It never
// holds playback state itself: every push is built from a fresh store read
// or arrives pre-built over the redis bridge.
type Server struct {
	hub      *Hub
	ctrl     *jam.Controller
	resolver TokenResolver
	rdb      *redis.Client
	cfg      Config
}

func NewServer(hub *Hub, ctrl *jam.Controller, resolver TokenResolver, rdb *redis.Client, cfg Config) *Server {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = defaultRateWindow
	}
	return &Server{
		hub:      hub,
		ctrl:     ctrl,
		resolver: resolver,
		rdb:      rdb,
		cfg:      cfg,
	}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok","service":"jam-gateway"}`))
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if s.cfg.AllowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == s.cfg.AllowedOrigin
		},
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("jam-service: ws upgrade: %v", err)
		return
	}

	client := &Client{
		id:      uuid.NewString(),
		hub:     s.hub,
		gw:      s,
		conn:    conn,
		send:    make(chan []byte, 256),
		state:   StateConnected,
		limiter: newRateLimiter(s.cfg.RateLimit, s.cfg.RateWindow),
	}

	// Opportunistic handshake auth: a bad or missing credential leaves the
	// connection anonymous instead of rejecting it.
	if token := bearerToken(r); token != "" && s.resolver != nil {
		if identity, err := s.resolver.Resolve(token); err == nil {
			client.identity = &identity
			client.state = StateAuthenticated
		}
	}

	s.hub.Register(client)

	s.sendTo(client, MsgWelcome, map[string]any{
		"connectionId":  client.id,
		"authenticated": client.identity != nil,
		"now":           time.Now().UTC().Format(time.RFC3339Nano),
	})

	go client.writePump()
	go client.readPump()
}

func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func roleRoom(sessionID string, role Role) string {
	return jam.RoleRoom(sessionID, strings.ToLower(string(role)))
}

// sendTo emits to a single connection, best-effort.
func (s *Server) sendTo(c *Client, typ string, payload any) {
	data, err := marshalFrame(typ, payload)
	if err != nil {
		log.Printf("jam-service: marshal %s frame: %v", typ, err)
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// emitRoom emits to every member of one room.
func (s *Server) emitRoom(room, typ string, payload any) {
	data, err := marshalFrame(typ, payload)
	if err != nil {
		log.Printf("jam-service: marshal %s frame: %v", typ, err)
		return
	}
	s.hub.Broadcast(room, data)
}

func (s *Server) sendError(c *Client, op string, err error) {
	kind := jam.ErrKind(err)
	msg := err.Error()
	if kind == "" {
		msg = "internal error"
	}
	s.sendTo(c, MsgError, errorPayload{Op: op, Kind: string(kind), Error: msg})
}

func (s *Server) sendAck(c *Client, op string, role Role, payload any) {
	s.sendTo(c, MsgAck, ackPayload{Op: op, Role: role, Payload: payload})
}
