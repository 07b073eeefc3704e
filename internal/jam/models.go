package jam

import (
	"encoding/json"
	"time"
)

// Session is one live jam event. Lifecycle status and playback state are
// separate axes: a session can be LIVE while playback is PAUSED or STOPPED.
type Session struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`        // "DRAFT" | "ACTIVE" | "LIVE" | "FINISHED"
	PlaybackState  string    `json:"playbackState"` // "STOPPED" | "PLAYING" | "PAUSED"
	HostID         *string   `json:"hostId,omitempty"`
	CurrentEntryID *string   `json:"currentEntryId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// QueueEntry is one song's slot in a session's running order.
// Positions are 1-based and unique per session.
type QueueEntry struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"sessionId"`
	SongID      string     `json:"songId"`
	Position    int        `json:"position"`
	Status      string     `json:"status"` // "SUGGESTED" | "SCHEDULED" | "IN_PROGRESS" | "COMPLETED" | "CANCELED"
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	PausedAt    *time.Time `json:"pausedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`

	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
}

// ActionLogEntry is one append-only audit row, written in the same
// transaction as the playback mutation it documents.
type ActionLogEntry struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionId"`
	EntryID   *string         `json:"entryId,omitempty"`
	Kind      string          `json:"kind"`
	ActorID   *string         `json:"actorId,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`

	// Enrichment for History reads.
	SongTitle     string `json:"songTitle,omitempty"`
	SongArtist    string `json:"songArtist,omitempty"`
	PerformerName string `json:"performerName,omitempty"`
}

// SessionState is the full read projection pushed to connected clients.
type SessionState struct {
	Session   Session      `json:"session"`
	Current   *QueueEntry  `json:"current,omitempty"`
	UpNext    []QueueEntry `json:"upNext"`
	Played    []QueueEntry `json:"played"`
	Suggested []QueueEntry `json:"suggested"`
}

// EntryOrder is one (entry, position) pair of a Reorder request.
type EntryOrder struct {
	EntryID  string `json:"entryId"`
	Position int    `json:"position"`
}

const (
	SessionDraft    = "DRAFT"
	SessionActive   = "ACTIVE"
	SessionLive     = "LIVE"
	SessionFinished = "FINISHED"
)

const (
	PlaybackStopped = "STOPPED"
	PlaybackPlaying = "PLAYING"
	PlaybackPaused  = "PAUSED"
)

const (
	EntrySuggested  = "SUGGESTED"
	EntryScheduled  = "SCHEDULED"
	EntryInProgress = "IN_PROGRESS"
	EntryCompleted  = "COMPLETED"
	EntryCanceled   = "CANCELED"
)
