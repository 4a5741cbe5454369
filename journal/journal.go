// Package journal persists agent diagnostic events to a local SQLite
// file using the pure-Go driver. Zero CGO required.
//
// The Journal implements parley.EventSink, so it can be registered in
// AgentConfig.Observability.Sinks to record every emitted event for
// later inspection.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	parley "github.com/parley-ai/parley"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Option configures a Journal.
type Option func(*Journal)

// WithLogger sets a structured logger for the journal.
// When set, the journal emits debug logs for writes and reads.
// If not set, no logs are emitted.
func WithLogger(l *slog.Logger) Option {
	return func(j *Journal) { j.logger = l }
}

// Journal records agent events in a local SQLite file.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ parley.EventSink = (*Journal)(nil)

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Open creates a Journal using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so
// that all goroutines serialize through one connection, eliminating
// SQLITE_BUSY errors caused by concurrent writers.
func Open(dbPath string, opts ...Option) *Journal {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("journal: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	j := &Journal{db: db, logger: nopLogger}
	for _, o := range opts {
		o(j)
	}
	j.logger.Debug("journal: opened", "path", dbPath)
	return j
}

// Init creates the events table.
func (j *Journal) Init(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		correlation_id TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("journal: init: %w", err)
	}
	_, err = j.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_events_name ON events(name)`)
	if err != nil {
		return fmt.Errorf("journal: init index: %w", err)
	}
	j.logger.Debug("journal: init complete")
	return nil
}

// Write stores a single event. It satisfies parley.EventSink and never
// returns; persistence failures are logged and dropped so that a broken
// journal cannot affect a conversation turn.
func (j *Journal) Write(name string, payload map[string]any) {
	correlationID, _ := payload["correlation_id"].(string)
	raw, err := json.Marshal(payload)
	if err != nil {
		// Payloads come from emitEvent and are JSON-safe in practice.
		raw = []byte(fmt.Sprintf("%q", fmt.Sprintf("%v", payload)))
	}
	_, err = j.db.Exec(
		`INSERT INTO events (id, name, correlation_id, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		parley.NewID(), name, correlationID, string(raw), time.Now().Unix(),
	)
	if err != nil {
		j.logger.Warn("journal: write failed", "event", name, "error", err)
		return
	}
	j.logger.Debug("journal: event recorded", "event", name)
}

// Entry is a persisted event row.
type Entry struct {
	ID            string
	Name          string
	CorrelationID string
	Payload       map[string]any
	CreatedAt     time.Time
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, name, correlation_id, payload, created_at
		 FROM events ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var payload string
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Name, &e.CorrelationID, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			e.Payload = map[string]any{"raw": payload}
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ByCorrelation returns all events for one conversation turn, oldest first.
func (j *Journal) ByCorrelation(ctx context.Context, correlationID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, name, correlation_id, payload, created_at
		 FROM events WHERE correlation_id = ? ORDER BY created_at ASC, id ASC`, correlationID)
	if err != nil {
		return nil, fmt.Errorf("journal: by correlation: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var payload string
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Name, &e.CorrelationID, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			e.Payload = map[string]any{"raw": payload}
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}
