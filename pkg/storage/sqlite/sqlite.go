// Package sqlite provides a SQLite-backed storage driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/misaka-coder/chronos/pkg/llm"
	"github.com/misaka-coder/chronos/pkg/storage"
)

// Driver implements storage.Driver using SQLite via database/sql.
type Driver struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Driver created with NewDriver.
type Option func(*Driver)

// WithClock overrides the timestamp source used by AppendTurn.
// Tests use this to insert turns at deterministic times.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		d.now = now
	}
}

// NewDriver creates a new SQLite-backed store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string, opts ...Option) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite-specific pragmas. WAL keeps readers (history, recall) from
	// blocking the append path; in-memory databases ignore it.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	d := &Driver{db: db, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return d, nil
}

// migrate creates the necessary tables if they don't exist.
func (d *Driver) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		compacted INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_chat_turns_user_ts ON chat_turns(user_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_chat_turns_ts ON chat_turns(timestamp);

	CREATE TABLE IF NOT EXISTS summaries (
		date_key TEXT PRIMARY KEY,
		content TEXT NOT NULL
	);
	`

	_, err := d.db.Exec(schema)
	return err
}

// AppendTurn inserts a turn with the next id and the current timestamp.
func (d *Driver) AppendTurn(ctx context.Context, userID, role, content string) (*llm.ChatTurn, error) {
	ts := d.now().Unix()

	query := `INSERT INTO chat_turns (user_id, role, content, timestamp) VALUES (?, ?, ?, ?)`

	res, err := d.db.ExecContext(ctx, query, userID, role, content, ts)
	if err != nil {
		return nil, storage.Unavailable("append turn", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, storage.Unavailable("append turn id", err)
	}

	return &llm.ChatTurn{
		ID:        id,
		UserID:    userID,
		Role:      role,
		Content:   content,
		Timestamp: ts,
	}, nil
}

// RecentTurns returns up to limit turns for a user, newest first.
func (d *Driver) RecentTurns(ctx context.Context, userID string, limit int) ([]llm.ChatTurn, error) {
	query := `
	SELECT id, user_id, role, content, timestamp, compacted FROM chat_turns
	WHERE user_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`

	rows, err := d.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, storage.Unavailable("recent turns", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

// UncompactedTurns returns all not-yet-compacted turns for a user, oldest first.
func (d *Driver) UncompactedTurns(ctx context.Context, userID string) ([]llm.ChatTurn, error) {
	query := `
	SELECT id, user_id, role, content, timestamp, compacted FROM chat_turns
	WHERE user_id = ? AND compacted = 0 ORDER BY timestamp ASC, id ASC`

	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, storage.Unavailable("uncompacted turns", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

// MarkCompacted flips the compacted flag for the given ids. Idempotent.
func (d *Driver) MarkCompacted(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`UPDATE chat_turns SET compacted = 1 WHERE id IN (%s)`, placeholders)

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return storage.Unavailable("mark compacted", err)
	}

	return nil
}

// TurnsOnDate returns every turn across all users whose timestamp falls
// within the local calendar day, oldest first.
func (d *Driver) TurnsOnDate(ctx context.Context, day time.Time) ([]llm.ChatTurn, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	query := `
	SELECT id, user_id, role, content, timestamp, compacted FROM chat_turns
	WHERE timestamp >= ? AND timestamp < ? ORDER BY timestamp ASC, id ASC`

	rows, err := d.db.QueryContext(ctx, query, start.Unix(), end.Unix())
	if err != nil {
		return nil, storage.Unavailable("turns on date", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

// SaveSummary upserts the summary for a date key (last write wins).
func (d *Driver) SaveSummary(ctx context.Context, dateKey, content string) error {
	query := `INSERT OR REPLACE INTO summaries (date_key, content) VALUES (?, ?)`

	if _, err := d.db.ExecContext(ctx, query, dateKey, content); err != nil {
		return storage.Unavailable("save summary", err)
	}

	return nil
}

// GetSummary retrieves the summary for a date key.
func (d *Driver) GetSummary(ctx context.Context, dateKey string) (*llm.Summary, error) {
	query := `SELECT date_key, content FROM summaries WHERE date_key = ?`

	var s llm.Summary
	err := d.db.QueryRowContext(ctx, query, dateKey).Scan(&s.DateKey, &s.Content)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{DateKey: dateKey}
	}
	if err != nil {
		return nil, storage.Unavailable("get summary", err)
	}

	return &s, nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}

func scanTurns(rows *sql.Rows) ([]llm.ChatTurn, error) {
	turns := []llm.ChatTurn{}
	for rows.Next() {
		var t llm.ChatTurn
		var compacted int
		if err := rows.Scan(&t.ID, &t.UserID, &t.Role, &t.Content, &t.Timestamp, &compacted); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Compacted = compacted != 0
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("iterate turns", err)
	}

	return turns, nil
}
