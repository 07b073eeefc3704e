package jam

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

func AutoMigrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS pgcrypto`); err != nil {
		log.Printf("jam-service: migrate pgcrypto: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS sessions (
          id             uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          name           TEXT NOT NULL DEFAULT '',
          status         TEXT NOT NULL DEFAULT 'DRAFT',
          playback_state TEXT NOT NULL DEFAULT 'STOPPED',
          host_id        TEXT,
          created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		log.Printf("jam-service: migrate sessions: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS songs (
          id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          title       TEXT NOT NULL,
          artist      TEXT NOT NULL DEFAULT '',
          duration_ms INT NOT NULL DEFAULT 0,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS queue_entries (
          id           uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          session_id   uuid NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
          song_id      uuid NOT NULL REFERENCES songs(id),
          position     INT NOT NULL,
          status       TEXT NOT NULL DEFAULT 'SCHEDULED',
          started_at   TIMESTAMPTZ,
          paused_at    TIMESTAMPTZ,
          completed_at TIMESTAMPTZ,
          created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return err
	}

	// sessions and queue_entries reference each other; the second edge is added after both exist.
	if _, err := pool.Exec(ctx, `
		ALTER TABLE sessions ADD COLUMN IF NOT EXISTS current_entry_id uuid REFERENCES queue_entries(id) ON DELETE SET NULL;
	`); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_entries_session_position
      ON queue_entries(session_id, position)
    `); err != nil {
		return err
	}

	// At most one IN_PROGRESS entry per session.
	if _, err := pool.Exec(ctx, `
      CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_entries_one_in_progress
      ON queue_entries(session_id) WHERE status = 'IN_PROGRESS'
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS participants (
          id             uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          session_id     uuid NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
          queue_entry_id uuid REFERENCES queue_entries(id) ON DELETE CASCADE,
          user_id        TEXT NOT NULL,
          display_name   TEXT NOT NULL DEFAULT '',
          status         TEXT NOT NULL DEFAULT 'PENDING',
          created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS action_log (
          id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          session_id uuid NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
          entry_id   uuid REFERENCES queue_entries(id) ON DELETE SET NULL,
          kind       TEXT NOT NULL,
          actor_id   TEXT,
          metadata   JSONB NOT NULL DEFAULT '{}',
          created_at TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_action_log_session_created
      ON action_log(session_id, created_at DESC)
    `); err != nil {
		return err
	}

	return nil
}
