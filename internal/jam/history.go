package jam

import (
	"context"
)

const (
	historyDefaultLimit = 20
	historyMaxLimit     = 100
)

// History returns the most recent action-log entries for a session, newest
// first, enriched with the referenced song and the approved performer tied
// to that queue entry when one exists.
func (c *Controller) History(ctx context.Context, sessionID string, limit int) ([]ActionLogEntry, error) {
	if _, err := c.Session(ctx, sessionID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = historyDefaultLimit
	}
	if limit > historyMaxLimit {
		limit = historyMaxLimit
	}

	rows, err := c.db.Query(ctx, `
		SELECT a.id, a.session_id, a.entry_id, a.kind, a.actor_id, a.metadata, a.created_at,
		       COALESCE(s.title, ''), COALESCE(s.artist, ''),
		       COALESCE((
		           SELECT p.display_name FROM participants p
		           WHERE p.queue_entry_id = a.entry_id AND p.status = 'APPROVED'
		           ORDER BY p.created_at ASC
		           LIMIT 1
		       ), '')
		FROM action_log a
		LEFT JOIN queue_entries qe ON qe.id = a.entry_id
		LEFT JOIN songs s ON s.id = qe.song_id
		WHERE a.session_id = $1
		ORDER BY a.created_at DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []ActionLogEntry{}
	for rows.Next() {
		var e ActionLogEntry
		if err := rows.Scan(
			&e.ID, &e.SessionID, &e.EntryID, &e.Kind, &e.ActorID, &e.Metadata, &e.CreatedAt,
			&e.SongTitle, &e.SongArtist, &e.PerformerName,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
