package jam

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// Event types fanned out to connected clients.
const (
	EventPlaybackChanged      = "playback.state_changed"
	EventQueueOrderChanged    = "queue.order_changed"
	EventEntryUpdated         = "entry.updated"
	EventSessionStatusChanged = "session.status_changed"
	EventStateSync            = "state.sync"
	EventParticipantConnected = "participant.connected"
	EventParticipantGone      = "participant.disconnected"
	EventSessionJoined        = "session.joined"
	EventSessionLeft          = "session.left"
	EventEntryReady           = "entry.ready"
)

// BroadcastChannel is the redis pub/sub channel bridging controller events
// to every gateway process.
const BroadcastChannel = "broadcast"

// Room addressing. A joined connection belongs to the session room plus
// exactly one role sub-room.
func SessionRoom(sessionID string) string { return "session:" + sessionID }

func RoleRoom(sessionID, role string) string {
	return "session:" + sessionID + ":" + role
}

// Event is what the controller reports after a committed transaction: what
// happened, not who gets told.
type Event struct {
	Type      string
	SessionID string
	Payload   any
}

// Envelope is the room-addressed wire form published to redis.
type Envelope struct {
	Room    string          `json:"room"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Dispatcher maps domain events to room addresses and publishes them. A nil
// dispatcher (or one without redis, as in most tests) drops events.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// rooms decides the fan-out targets for an event type.
func (d *Dispatcher) rooms(ev Event) []string {
	switch ev.Type {
	case EventParticipantConnected, EventParticipantGone, EventEntryReady:
		return []string{RoleRoom(ev.SessionID, "host")}
	default:
		return []string{SessionRoom(ev.SessionID)}
	}
}

func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.rdb == nil {
		return
	}
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		log.Printf("jam-service: marshal event payload: %v", err)
		return
	}
	for _, room := range d.rooms(ev) {
		data, err := json.Marshal(Envelope{Room: room, Type: ev.Type, Payload: payload})
		if err != nil {
			log.Printf("jam-service: marshal event: %v", err)
			continue
		}
		if err := d.rdb.Publish(ctx, BroadcastChannel, string(data)).Err(); err != nil {
			log.Printf("jam-service: publish event: %v", err)
		}
	}
}
