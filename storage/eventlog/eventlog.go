// Package eventlog persists committed audit events in SQLite so operators can
// page through merchant history without replaying the ledger.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"gotsol/core/types"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Entry is a persisted audit event.
type Entry struct {
	ID         string
	Sequence   int64
	Type       string
	Merchant   string
	Attributes map[string]string
	RecordedAt time.Time
}

// Event converts the entry back into its event form.
func (e Entry) Event() types.Event {
	return types.Event{Type: e.Type, Attributes: e.Attributes}
}

// Filter narrows a List query. Zero values match everything.
type Filter struct {
	Type     string
	Merchant string
	// After returns only entries with a larger sequence number.
	After int64
	Limit int
}

// Log is an append-only SQLite event store.
type Log struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Option customises a Log.
type Option func(*Log)

// WithClock sets the clock stamped into RecordedAt.
func WithClock(clock clockwork.Clock) Option {
	return func(l *Log) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// Open opens or creates the event log at path.
func Open(path string, opts ...Option) (*Log, error) {
	if path == "" {
		return nil, errors.New("eventlog: path required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time.
	db.SetMaxOpenConns(1)
	log := &Log{db: db, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(log)
	}
	if err := log.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return log, nil
}

func (l *Log) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            id TEXT NOT NULL UNIQUE,
            type TEXT NOT NULL,
            merchant TEXT NOT NULL DEFAULT '',
            attributes BLOB NOT NULL,
            recorded_at INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS events_merchant ON events(merchant, seq);`,
		`CREATE INDEX IF NOT EXISTS events_type ON events(type, seq);`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the database handle.
func (l *Log) Close() error { return l.db.Close() }

// HandleEvents appends evts in one transaction. It satisfies the processor's
// event sink interface.
func (l *Log) HandleEvents(ctx context.Context, evts []types.Event) error {
	if len(evts) == 0 {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	const stmt = `INSERT INTO events(id, type, merchant, attributes, recorded_at) VALUES (?, ?, ?, ?, ?)`
	now := l.clock.Now().UTC().UnixNano()
	for _, evt := range evts {
		attrs, err := json.Marshal(evt.Attributes)
		if err != nil {
			return fmt.Errorf("eventlog: encode %s: %w", evt.Type, err)
		}
		if _, err := tx.ExecContext(ctx, stmt, uuid.NewString(), evt.Type, evt.Attributes["merchant"], attrs, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// List returns entries in commit order.
func (l *Log) List(ctx context.Context, filter Filter) ([]Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	query := `SELECT seq, id, type, merchant, attributes, recorded_at FROM events WHERE seq > ?`
	args := []any{filter.After}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, filter.Type)
	}
	if filter.Merchant != "" {
		query += ` AND merchant = ?`
		args = append(args, filter.Merchant)
	}
	query += ` ORDER BY seq ASC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			entry Entry
			attrs []byte
			nanos int64
		)
		if err := rows.Scan(&entry.Sequence, &entry.ID, &entry.Type, &entry.Merchant, &attrs, &nanos); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(attrs, &entry.Attributes); err != nil {
			return nil, fmt.Errorf("eventlog: decode %s: %w", entry.ID, err)
		}
		entry.RecordedAt = time.Unix(0, nanos).UTC()
		out = append(out, entry)
	}
	return out, rows.Err()
}
