package jam

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Reorder applies the given position values atomically. Entries not
// mentioned keep their prior relative order and are appended after the
// reordered set when their old position collides with a requested one.
// Playback and the current entry are untouched.
func (c *Controller) Reorder(ctx context.Context, sessionID string, orders []EntryOrder, actorID *string) error {
	if err := c.checkHost(ctx, sessionID, actorID); err != nil {
		return err
	}

	if len(orders) == 0 {
		return Errf(KindBadRequest, "empty reorder request")
	}

	requested := make(map[string]int, len(orders))
	taken := make(map[int]bool, len(orders))
	for _, o := range orders {
		if o.EntryID == "" {
			return Errf(KindBadRequest, "missing entry id")
		}
		if o.Position < 1 {
			return Errf(KindBadRequest, "position must be >= 1 for entry %s", o.EntryID)
		}
		if _, dup := requested[o.EntryID]; dup {
			return Errf(KindBadRequest, "duplicate entry id %s", o.EntryID)
		}
		if taken[o.Position] {
			return Errf(KindBadRequest, "duplicate position %d", o.Position)
		}
		requested[o.EntryID] = o.Position
		taken[o.Position] = true
	}

	tx, err := c.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := lockSession(ctx, tx, sessionID); err != nil {
		return err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, position FROM queue_entries
		WHERE session_id = $1
		ORDER BY position ASC
		FOR UPDATE
	`, sessionID)
	if err != nil {
		return err
	}
	type slot struct {
		id  string
		pos int
	}
	var existing []slot
	for rows.Next() {
		var s slot
		if err := rows.Scan(&s.id, &s.pos); err != nil {
			rows.Close()
			return err
		}
		existing = append(existing, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	known := make(map[string]bool, len(existing))
	for _, s := range existing {
		known[s.id] = true
	}
	var offenders []string
	for _, o := range orders {
		if !known[o.EntryID] {
			offenders = append(offenders, o.EntryID)
		}
	}
	if len(offenders) > 0 {
		return Errf(KindBadRequest, "entries not in session: %s", strings.Join(offenders, ", "))
	}

	// Final layout: requested values as given, unmentioned entries keeping
	// their old position unless it is now taken, then appended after.
	finals := make(map[string]int, len(existing))
	maxPos := 0
	for pos := range taken {
		if pos > maxPos {
			maxPos = pos
		}
	}
	var displaced []string
	for _, s := range existing {
		if pos, ok := requested[s.id]; ok {
			finals[s.id] = pos
			continue
		}
		if !taken[s.pos] {
			finals[s.id] = s.pos
			taken[s.pos] = true
			if s.pos > maxPos {
				maxPos = s.pos
			}
			continue
		}
		displaced = append(displaced, s.id)
	}
	for _, id := range displaced {
		maxPos++
		finals[id] = maxPos
	}

	// Park every row on the negative range first so the (session, position)
	// unique index never trips mid-rewrite.
	if _, err := tx.Exec(ctx, `
		UPDATE queue_entries
		SET position = -position
		WHERE session_id = $1
	`, sessionID); err != nil {
		return err
	}
	for id, pos := range finals {
		if _, err := tx.Exec(ctx, `
			UPDATE queue_entries
			SET position = $3
			WHERE id = $2 AND session_id = $1
		`, sessionID, id, pos); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	c.events.Emit(ctx, Event{Type: EventQueueOrderChanged, SessionID: sessionID, Payload: map[string]any{
		"sessionId": sessionID,
		"orders":    orders,
	}})
	return nil
}
