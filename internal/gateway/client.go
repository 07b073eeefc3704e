package gateway

import (
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// ConnState is the explicit connection lifecycle. Role only exists in the
// joined state, so an unauthenticated HOST is unrepresentable.
type ConnState int

const (
	StateConnected ConnState = iota
	StateAuthenticated
	StateJoined
)

type Role string

const (
	RoleHost        Role = "HOST"
	RoleParticipant Role = "PARTICIPANT"
	RoleObserver    Role = "OBSERVER"
)

// Client is one live transport session. The lifecycle fields (state,
// identity, session, role, limiter) are owned by the readPump goroutine;
// the hub goroutine only ever touches the send channel and room tables.
type Client struct {
	id   string
	hub  *Hub
	gw   *Server
	conn *websocket.Conn
	send chan []byte

	state     ConnState
	identity  *string
	sessionID string
	role      Role
	limiter   *rateLimiter
}

func (c *Client) readPump() {
	defer func() {
		c.gw.handleDisconnect(c)
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("jam-service: ws read %s: %v", c.id, err)
			}
			return
		}
		c.gw.handleMessage(c, message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
