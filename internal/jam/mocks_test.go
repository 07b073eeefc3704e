package jam

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeStore implements DB against in-memory session/queue state, matching
// statements by SQL substring. It lets the controller tests run the real
// transition logic without Postgres.
type fakeStore struct {
	sess    *memSession // nil means the session does not exist
	entries []*memEntry
	logs    []memLog

	commits   int
	rollbacks int
	beginErr  error
	commitErr error
}

type memSession struct {
	status   string
	playback string
	host     *string
	current  *string
}

type memEntry struct {
	id          string
	songID      string
	position    int
	status      string
	startedAt   *time.Time
	pausedAt    *time.Time
	completedAt *time.Time
}

type memLog struct {
	entryID *string
	kind    string
	actorID *string
	meta    []byte
}

const testSessionID = "11111111-1111-1111-1111-111111111111"

func newFakeStore(status, playback string, host *string) *fakeStore {
	return &fakeStore{
		sess: &memSession{status: status, playback: playback, host: host},
	}
}

func (f *fakeStore) addEntry(id string, position int, status string) *memEntry {
	e := &memEntry{id: id, songID: "song-" + id, position: position, status: status}
	f.entries = append(f.entries, e)
	return e
}

func (f *fakeStore) entry(id string) *memEntry {
	for _, e := range f.entries {
		if e.id == id {
			return e
		}
	}
	return nil
}

func (f *fakeStore) setCurrent(id string) {
	f.sess.current = &id
}

// --- DB interface ---

func (f *fakeStore) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, f.exec(sql, args...)
}

func (f *fakeStore) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return f.query(sql, args...)
}

func (f *fakeStore) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return f.queryRow(sql, args...)
}

func (f *fakeStore) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return &fakeTx{store: f}, nil
}

type fakeTx struct {
	pgx.Tx // unused methods panic if called
	store  *fakeStore
	done   bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.store.commitErr != nil {
		return t.store.commitErr
	}
	t.done = true
	t.store.commits++
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.done {
		t.store.rollbacks++
	}
	return nil
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, t.store.exec(sql, args...)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.store.query(sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.store.queryRow(sql, args...)
}

// --- statement matching ---

func normalizeSQL(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (f *fakeStore) queryRow(sql string, args ...any) pgx.Row {
	q := normalizeSQL(sql)
	switch {
	case strings.Contains(q, "SELECT host_id"):
		if f.sess == nil {
			return errRow{pgx.ErrNoRows}
		}
		return valueRow{optStr(f.sess.host)}

	case strings.Contains(q, "SELECT status, playback_state"):
		if f.sess == nil {
			return errRow{pgx.ErrNoRows}
		}
		return valueRow{f.sess.status, f.sess.playback, optStr(f.sess.current)}

	case strings.Contains(q, "SELECT id, name, status"):
		if f.sess == nil {
			return errRow{pgx.ErrNoRows}
		}
		return valueRow{testSessionID, "Test Jam", f.sess.status, f.sess.playback,
			optStr(f.sess.host), optStr(f.sess.current), time.Now()}

	case strings.Contains(q, "WHERE id = $1 AND session_id = $2"):
		id, _ := args[0].(string)
		if e := f.entry(id); e != nil && args[1] == testSessionID {
			return valueRow{e.id}
		}
		return errRow{pgx.ErrNoRows}

	case strings.Contains(q, "status = 'SCHEDULED' AND id <>"):
		exclude, _ := args[1].(string)
		if e := f.lowestScheduled(exclude); e != nil {
			return valueRow{e.id}
		}
		return errRow{pgx.ErrNoRows}

	case strings.Contains(q, "status = 'SCHEDULED'"):
		if e := f.lowestScheduled(""); e != nil {
			return valueRow{e.id}
		}
		return errRow{pgx.ErrNoRows}

	case strings.Contains(q, "status = 'COMPLETED'"):
		var best *memEntry
		for _, e := range f.entries {
			if e.status == EntryCompleted && (best == nil || e.position > best.position) {
				best = e
			}
		}
		if best == nil {
			return errRow{pgx.ErrNoRows}
		}
		return valueRow{best.id}
	}
	return errRow{fmt.Errorf("unexpected query: %s", q)}
}

func (f *fakeStore) lowestScheduled(exclude string) *memEntry {
	var best *memEntry
	for _, e := range f.entries {
		if e.status != EntryScheduled || e.id == exclude {
			continue
		}
		if best == nil || e.position < best.position {
			best = e
		}
	}
	return best
}

func (f *fakeStore) exec(sql string, args ...any) error {
	q := normalizeSQL(sql)
	switch {
	case strings.Contains(q, "INSERT INTO action_log"):
		f.logs = append(f.logs, memLog{
			entryID: asStrPtr(args[1]),
			kind:    args[2].(string),
			actorID: asStrPtr(args[3]),
			meta:    args[4].([]byte),
		})

	case strings.Contains(q, "SET status = 'IN_PROGRESS'"):
		e := f.entry(args[0].(string))
		e.status = EntryInProgress
		t := args[1].(time.Time)
		e.startedAt = &t
		e.pausedAt = nil
		if strings.Contains(q, "completed_at = NULL") {
			e.completedAt = nil
		}

	case strings.Contains(q, "SET status = 'COMPLETED'"):
		e := f.entry(args[0].(string))
		e.status = EntryCompleted
		t := args[1].(time.Time)
		e.completedAt = &t
		e.pausedAt = nil

	case strings.Contains(q, "SET status = 'SCHEDULED'"):
		e := f.entry(args[0].(string))
		e.status = EntryScheduled
		e.startedAt = nil
		e.pausedAt = nil

	case strings.Contains(q, "UPDATE sessions"):
		switch {
		case strings.Contains(q, "'LIVE'"):
			f.sess.status = SessionLive
			f.sess.playback = PlaybackPlaying
			f.setCurrent(args[1].(string))
		case strings.Contains(q, "'FINISHED'"):
			f.sess.status = SessionFinished
			f.sess.playback = PlaybackStopped
			f.sess.current = nil
		case strings.Contains(q, "playback_state = 'STOPPED'"):
			f.sess.playback = PlaybackStopped
			f.sess.current = nil
		case strings.Contains(q, "current_entry_id = $2"):
			f.sess.playback = PlaybackPlaying
			f.setCurrent(args[1].(string))
		case strings.Contains(q, "'PAUSED'"):
			f.sess.playback = PlaybackPaused
		case strings.Contains(q, "'PLAYING'"):
			f.sess.playback = PlaybackPlaying
		}

	case strings.Contains(q, "SET paused_at = $2"):
		e := f.entry(args[0].(string))
		t := args[1].(time.Time)
		e.pausedAt = &t

	case strings.Contains(q, "SET paused_at = NULL"):
		f.entry(args[0].(string)).pausedAt = nil

	case strings.Contains(q, "SET position = -position"):
		for _, e := range f.entries {
			e.position = -e.position
		}

	case strings.Contains(q, "SET position = $3"):
		f.entry(args[1].(string)).position = args[2].(int)

	default:
		return fmt.Errorf("unexpected exec: %s", q)
	}
	return nil
}

func (f *fakeStore) query(sql string, args ...any) (pgx.Rows, error) {
	q := normalizeSQL(sql)
	switch {
	case strings.Contains(q, "FROM queue_entries qe"):
		sorted := f.sortedEntries()
		rows := &sliceRows{}
		for _, e := range sorted {
			rows.data = append(rows.data, []any{
				e.id, testSessionID, e.songID, e.position, e.status,
				optTime(e.startedAt), optTime(e.pausedAt), optTime(e.completedAt), time.Now(),
				"Title " + e.id, "Artist " + e.id,
			})
		}
		return rows, nil

	case strings.Contains(q, "SELECT id, position FROM queue_entries"):
		sorted := f.sortedEntries()
		rows := &sliceRows{}
		for _, e := range sorted {
			rows.data = append(rows.data, []any{e.id, e.position})
		}
		return rows, nil

	case strings.Contains(q, "FROM action_log a"):
		limit := args[1].(int)
		rows := &sliceRows{}
		for i := len(f.logs) - 1; i >= 0 && len(rows.data) < limit; i-- {
			l := f.logs[i]
			rows.data = append(rows.data, []any{
				fmt.Sprintf("log-%d", i), testSessionID, optStr(l.entryID), l.kind,
				optStr(l.actorID), json.RawMessage(l.meta), time.Now(),
				"", "", "",
			})
		}
		return rows, nil
	}
	return nil, fmt.Errorf("unexpected query: %s", q)
}

func (f *fakeStore) sortedEntries() []*memEntry {
	sorted := make([]*memEntry, len(f.entries))
	copy(sorted, f.entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].position < sorted[j].position })
	return sorted
}

// --- row/rows helpers ---

type errRow struct{ err error }

func (r errRow) Scan(dest ...any) error { return r.err }

type valueRow []any

func (r valueRow) Scan(dest ...any) error {
	if len(dest) != len(r) {
		return fmt.Errorf("column count mismatch: %d != %d", len(dest), len(r))
	}
	for i, v := range r {
		if err := assign(dest[i], v); err != nil {
			return err
		}
	}
	return nil
}

type sliceRows struct {
	pgx.Rows
	data [][]any
	idx  int
}

func (r *sliceRows) Next() bool {
	r.idx++
	return r.idx <= len(r.data)
}

func (r *sliceRows) Scan(dest ...any) error {
	return valueRow(r.data[r.idx-1]).Scan(dest...)
}

func (r *sliceRows) Close()     {}
func (r *sliceRows) Err() error { return nil }

func assign(dest, v any) error {
	switch d := dest.(type) {
	case *string:
		if v == nil {
			*d = ""
			return nil
		}
		*d = v.(string)
	case **string:
		if v == nil {
			*d = nil
			return nil
		}
		s := v.(string)
		*d = &s
	case *int:
		*d = v.(int)
	case *time.Time:
		*d = v.(time.Time)
	case **time.Time:
		if v == nil {
			*d = nil
			return nil
		}
		t := v.(time.Time)
		*d = &t
	case *json.RawMessage:
		if v == nil {
			*d = nil
			return nil
		}
		*d = v.(json.RawMessage)
	default:
		return fmt.Errorf("unsupported scan destination %T", dest)
	}
	return nil
}

func optStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func optTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}

func asStrPtr(v any) *string {
	if v == nil {
		return nil
	}
	if p, ok := v.(*string); ok {
		return p
	}
	s := v.(string)
	return &s
}

func strPtr(s string) *string { return &s }
