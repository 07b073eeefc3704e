package gateway

import (
	"encoding/json"

	"jam-session-service/internal/jam"
)

// Inbound frame types.
const (
	MsgJoin         = "join"
	MsgLeave        = "leave"
	MsgRequestState = "request_state"
	MsgSignalReady  = "signal_ready"
	MsgHistory      = "history"

	MsgStart    = "playback.start"
	MsgStop     = "playback.stop"
	MsgNext     = "playback.next"
	MsgPrevious = "playback.previous"
	MsgPause    = "playback.pause"
	MsgResume   = "playback.resume"
	MsgReorder  = "queue.reorder"
)

// Outbound frame types besides the jam event vocabulary.
const (
	MsgWelcome = "welcome"
	MsgAck     = "ack"
	MsgError   = "error"
)

// Frame is the wire shape in both directions.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type joinPayload struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token,omitempty"`
}

type leavePayload struct {
	SessionID string `json:"sessionId"`
}

type requestStatePayload struct {
	SessionID string `json:"sessionId"`
}

type signalReadyPayload struct {
	SessionID string `json:"sessionId"`
	EntryID   string `json:"entryId"`
}

type historyPayload struct {
	SessionID string `json:"sessionId"`
	Limit     int    `json:"limit,omitempty"`
}

type playbackPayload struct {
	SessionID string `json:"sessionId"`
}

type reorderPayload struct {
	SessionID string           `json:"sessionId"`
	Entries   []jam.EntryOrder `json:"entries"`
}

type errorPayload struct {
	Op    string `json:"op,omitempty"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

type ackPayload struct {
	Op      string `json:"op"`
	Role    Role   `json:"role,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

func marshalFrame(typ string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(Frame{Type: typ, Payload: raw})
}
