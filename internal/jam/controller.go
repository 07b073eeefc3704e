package jam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Controller serializes every transition of a session's playback state.
// All cross-operation ordering comes from the store: each mutation runs as
// one transaction with FOR UPDATE row locks, so two concurrent operations
// on the same session serialize there and the loser sees a clean
// precondition failure. The controller never talks to connections; on
// success it emits a domain event and the dispatcher decides who gets told.
type Controller struct {
	db     DB
	events *Dispatcher
}

func NewController(db DB, events *Dispatcher) *Controller {
	return &Controller{db: db, events: events}
}

type sessionRow struct {
	status   string
	playback string
	current  *string
}

// lockSession reads the session row under FOR UPDATE inside tx.
func lockSession(ctx context.Context, tx pgx.Tx, sessionID string) (*sessionRow, error) {
	var row sessionRow
	err := tx.QueryRow(ctx, `
		SELECT status, playback_state, current_entry_id
		FROM sessions
		WHERE id = $1
		FOR UPDATE
	`, sessionID).Scan(&row.status, &row.playback, &row.current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, Errf(KindNotFound, "session not found")
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// checkHost enforces host ownership before any mutation is attempted,
// against a freshly read session. A host-less session is open to anyone.
func (c *Controller) checkHost(ctx context.Context, sessionID string, actorID *string) error {
	if uuid.Validate(sessionID) != nil {
		return Errf(KindNotFound, "session not found")
	}
	var hostID *string
	err := c.db.QueryRow(ctx, `
		SELECT host_id FROM sessions WHERE id = $1
	`, sessionID).Scan(&hostID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Errf(KindNotFound, "session not found")
	}
	if err != nil {
		return err
	}
	if hostID != nil && actorID != nil && *actorID != *hostID {
		return Errf(KindForbidden, "only the session host may control playback")
	}
	return nil
}

// insertLog appends one audit row within the surrounding transaction.
func insertLog(ctx context.Context, tx pgx.Tx, sessionID string, entryID *string, kind string, actorID *string, meta map[string]any) error {
	if meta == nil {
		meta = map[string]any{}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal log metadata: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO action_log (session_id, entry_id, kind, actor_id, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, sessionID, entryID, kind, actorID, data)
	return err
}

// Start begins playback on the lowest-positioned SCHEDULED entry.
func (c *Controller) Start(ctx context.Context, sessionID string, actorID *string) (*SessionState, error) {
	if err := c.checkHost(ctx, sessionID, actorID); err != nil {
		return nil, err
	}

	tx, err := c.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	sess, err := lockSession(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.status != SessionActive && sess.status != SessionLive {
		return nil, Errf(KindInvalidState, "session is not active")
	}
	if sess.playback == PlaybackPlaying {
		return nil, Errf(KindInvalidState, "already playing")
	}

	var entryID string
	err = tx.QueryRow(ctx, `
		SELECT id FROM queue_entries
		WHERE session_id = $1 AND status = 'SCHEDULED'
		ORDER BY position ASC
		LIMIT 1
		FOR UPDATE
	`, sessionID).Scan(&entryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, Errf(KindInvalidState, "no scheduled entries to play")
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := tx.Exec(ctx, `
		UPDATE queue_entries
		SET status = 'IN_PROGRESS', started_at = $2, paused_at = NULL
		WHERE id = $1
	`, entryID, now); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE sessions
		SET status = 'LIVE', playback_state = 'PLAYING', current_entry_id = $2
		WHERE id = $1
	`, sessionID, entryID); err != nil {
		return nil, err
	}
	if err := insertLog(ctx, tx, sessionID, &entryID, "start", actorID, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return c.finish(ctx, sessionID, sess.status != SessionLive, entryID)
}

// Stop completes the current entry (if any) and finalizes the session.
func (c *Controller) Stop(ctx context.Context, sessionID string, actorID *string) (*SessionState, error) {
	if err := c.checkHost(ctx, sessionID, actorID); err != nil {
		return nil, err
	}

	tx, err := c.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	sess, err := lockSession(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.playback == PlaybackStopped {
		return nil, Errf(KindInvalidState, "already stopped")
	}

	now := time.Now()
	if sess.current != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE queue_entries
			SET status = 'COMPLETED', completed_at = $2, paused_at = NULL
			WHERE id = $1
		`, *sess.current, now); err != nil {
			return nil, err
		}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE sessions
		SET status = 'FINISHED', playback_state = 'STOPPED', current_entry_id = NULL
		WHERE id = $1
	`, sessionID); err != nil {
		return nil, err
	}
	if err := insertLog(ctx, tx, sessionID, sess.current, "stop", actorID, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	var touched []string
	if sess.current != nil {
		touched = append(touched, *sess.current)
	}
	return c.finish(ctx, sessionID, true, touched...)
}

// Next completes the current entry and advances to the next SCHEDULED one.
// With nothing left to play, playback stops but the session status stays
// as-is: auto-stop at end of queue is distinct from a host-finalized Stop.
func (c *Controller) Next(ctx context.Context, sessionID string, actorID *string) (*SessionState, error) {
	if err := c.checkHost(ctx, sessionID, actorID); err != nil {
		return nil, err
	}

	tx, err := c.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	sess, err := lockSession(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.playback == PlaybackStopped || sess.current == nil {
		return nil, Errf(KindInvalidState, "nothing is playing")
	}

	now := time.Now()
	if _, err := tx.Exec(ctx, `
		UPDATE queue_entries
		SET status = 'COMPLETED', completed_at = $2, paused_at = NULL
		WHERE id = $1
	`, *sess.current, now); err != nil {
		return nil, err
	}

	var nextID string
	err = tx.QueryRow(ctx, `
		SELECT id FROM queue_entries
		WHERE session_id = $1 AND status = 'SCHEDULED'
		ORDER BY position ASC
		LIMIT 1
		FOR UPDATE
	`, sessionID).Scan(&nextID)

	meta := map[string]any{"from": *sess.current}
	touched := []string{*sess.current}
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// End of queue.
		if _, err := tx.Exec(ctx, `
			UPDATE sessions
			SET playback_state = 'STOPPED', current_entry_id = NULL
			WHERE id = $1
		`, sessionID); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if _, err := tx.Exec(ctx, `
			UPDATE queue_entries
			SET status = 'IN_PROGRESS', started_at = $2, paused_at = NULL
			WHERE id = $1
		`, nextID, now); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE sessions
			SET playback_state = 'PLAYING', current_entry_id = $2
			WHERE id = $1
		`, sessionID, nextID); err != nil {
			return nil, err
		}
		meta["to"] = nextID
		touched = append(touched, nextID)
	}

	if err := insertLog(ctx, tx, sessionID, sess.current, "next", actorID, meta); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return c.finish(ctx, sessionID, false, touched...)
}

// Previous reverts the current entry to SCHEDULED and restarts the
// highest-positioned COMPLETED entry, falling back to the lowest SCHEDULED
// one besides the current.
func (c *Controller) Previous(ctx context.Context, sessionID string, actorID *string) (*SessionState, error) {
	if err := c.checkHost(ctx, sessionID, actorID); err != nil {
		return nil, err
	}

	tx, err := c.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	sess, err := lockSession(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.playback == PlaybackStopped || sess.current == nil {
		return nil, Errf(KindInvalidState, "nothing is playing")
	}

	// Pick the target before touching the current entry so the fallback
	// can't land on the entry being reverted.
	var targetID string
	completed := true
	err = tx.QueryRow(ctx, `
		SELECT id FROM queue_entries
		WHERE session_id = $1 AND status = 'COMPLETED'
		ORDER BY position DESC
		LIMIT 1
		FOR UPDATE
	`, sessionID).Scan(&targetID)
	if errors.Is(err, pgx.ErrNoRows) {
		completed = false
		err = tx.QueryRow(ctx, `
			SELECT id FROM queue_entries
			WHERE session_id = $1 AND status = 'SCHEDULED' AND id <> $2
			ORDER BY position ASC
			LIMIT 1
			FOR UPDATE
		`, sessionID, *sess.current).Scan(&targetID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Errf(KindNoAvailableEntry, "no entry to go back to")
		}
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := tx.Exec(ctx, `
		UPDATE queue_entries
		SET status = 'SCHEDULED', started_at = NULL, paused_at = NULL
		WHERE id = $1
	`, *sess.current); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE queue_entries
		SET status = 'IN_PROGRESS', started_at = $2, paused_at = NULL, completed_at = NULL
		WHERE id = $1
	`, targetID, now); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE sessions
		SET playback_state = 'PLAYING', current_entry_id = $2
		WHERE id = $1
	`, sessionID, targetID); err != nil {
		return nil, err
	}

	meta := map[string]any{"from": *sess.current, "to": targetID, "replayed": completed}
	if err := insertLog(ctx, tx, sessionID, sess.current, "previous", actorID, meta); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return c.finish(ctx, sessionID, false, *sess.current, targetID)
}

// Pause marks the current entry paused without leaving it.
func (c *Controller) Pause(ctx context.Context, sessionID string, actorID *string) (*SessionState, error) {
	if err := c.checkHost(ctx, sessionID, actorID); err != nil {
		return nil, err
	}

	tx, err := c.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	sess, err := lockSession(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.playback != PlaybackPlaying || sess.current == nil {
		return nil, Errf(KindInvalidState, "not playing")
	}

	now := time.Now()
	if _, err := tx.Exec(ctx, `
		UPDATE queue_entries SET paused_at = $2 WHERE id = $1
	`, *sess.current, now); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE sessions SET playback_state = 'PAUSED' WHERE id = $1
	`, sessionID); err != nil {
		return nil, err
	}
	if err := insertLog(ctx, tx, sessionID, sess.current, "pause", actorID, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return c.finish(ctx, sessionID, false, *sess.current)
}

// Resume continues a paused entry.
func (c *Controller) Resume(ctx context.Context, sessionID string, actorID *string) (*SessionState, error) {
	if err := c.checkHost(ctx, sessionID, actorID); err != nil {
		return nil, err
	}

	tx, err := c.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	sess, err := lockSession(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.playback != PlaybackPaused || sess.current == nil {
		return nil, Errf(KindInvalidState, "not paused")
	}

	if _, err := tx.Exec(ctx, `
		UPDATE queue_entries SET paused_at = NULL WHERE id = $1
	`, *sess.current); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE sessions SET playback_state = 'PLAYING' WHERE id = $1
	`, sessionID); err != nil {
		return nil, err
	}
	if err := insertLog(ctx, tx, sessionID, sess.current, "resume", actorID, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return c.finish(ctx, sessionID, false, *sess.current)
}

// finish reads the post-commit projection and emits the matching events.
// touched lists the queue entries the operation moved between statuses.
func (c *Controller) finish(ctx context.Context, sessionID string, statusChanged bool, touched ...string) (*SessionState, error) {
	state, err := c.State(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.events.Emit(ctx, Event{Type: EventPlaybackChanged, SessionID: sessionID, Payload: state})
	if statusChanged {
		c.events.Emit(ctx, Event{Type: EventSessionStatusChanged, SessionID: sessionID, Payload: state.Session})
	}
	for _, id := range touched {
		if e := state.Entry(id); e != nil {
			c.events.Emit(ctx, Event{Type: EventEntryUpdated, SessionID: sessionID, Payload: e})
		}
	}
	return state, nil
}
