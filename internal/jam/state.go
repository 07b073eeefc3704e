package jam

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Session reads one session row. A syntactically invalid id cannot name a
// session, so it maps to not found before touching the store.
func (c *Controller) Session(ctx context.Context, sessionID string) (*Session, error) {
	if uuid.Validate(sessionID) != nil {
		return nil, Errf(KindNotFound, "session not found")
	}
	var s Session
	err := c.db.QueryRow(ctx, `
		SELECT id, name, status, playback_state, host_id, current_entry_id, created_at
		FROM sessions
		WHERE id = $1
	`, sessionID).Scan(&s.ID, &s.Name, &s.Status, &s.PlaybackState, &s.HostID, &s.CurrentEntryID, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, Errf(KindNotFound, "session not found")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// State builds the full read projection fanned out to connected clients.
// Rooms are read-only views of the same storage; this is the only shape the
// gateway ever pushes.
func (c *Controller) State(ctx context.Context, sessionID string) (*SessionState, error) {
	sess, err := c.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state := &SessionState{
		Session:   *sess,
		UpNext:    []QueueEntry{},
		Played:    []QueueEntry{},
		Suggested: []QueueEntry{},
	}

	rows, err := c.db.Query(ctx, `
		SELECT qe.id, qe.session_id, qe.song_id, qe.position, qe.status,
		       qe.started_at, qe.paused_at, qe.completed_at, qe.created_at,
		       s.title, s.artist
		FROM queue_entries qe
		JOIN songs s ON s.id = qe.song_id
		WHERE qe.session_id = $1
		ORDER BY qe.position ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var e QueueEntry
		if err := rows.Scan(
			&e.ID, &e.SessionID, &e.SongID, &e.Position, &e.Status,
			&e.StartedAt, &e.PausedAt, &e.CompletedAt, &e.CreatedAt,
			&e.Title, &e.Artist,
		); err != nil {
			return nil, err
		}
		switch e.Status {
		case EntryInProgress:
			cur := e
			state.Current = &cur
		case EntryScheduled:
			state.UpNext = append(state.UpNext, e)
		case EntryCompleted:
			state.Played = append(state.Played, e)
		case EntrySuggested:
			state.Suggested = append(state.Suggested, e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Most recently completed first.
	sort.SliceStable(state.Played, func(i, j int) bool {
		a, b := state.Played[i].CompletedAt, state.Played[j].CompletedAt
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.After(*b)
	})

	return state, nil
}

// Entry finds one entry anywhere in the projection.
func (s *SessionState) Entry(id string) *QueueEntry {
	if s.Current != nil && s.Current.ID == id {
		return s.Current
	}
	for _, bucket := range [][]QueueEntry{s.UpNext, s.Played, s.Suggested} {
		for i := range bucket {
			if bucket[i].ID == id {
				return &bucket[i]
			}
		}
	}
	return nil
}

// EntryInSession reports whether the queue entry belongs to the session.
func (c *Controller) EntryInSession(ctx context.Context, sessionID, entryID string) (bool, error) {
	if uuid.Validate(sessionID) != nil || uuid.Validate(entryID) != nil {
		return false, nil
	}
	var id string
	err := c.db.QueryRow(ctx, `
		SELECT id FROM queue_entries WHERE id = $1 AND session_id = $2
	`, entryID, sessionID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
