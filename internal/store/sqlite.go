package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection with initialization logic.
type DB struct {
	*sql.DB
}

// Open creates or opens the SQLite database at the given path, runs schema
// initialization, and configures WAL mode for concurrent reads.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &DB{db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS events (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  external_uid TEXT NOT NULL,
  date_begin INTEGER NOT NULL,
  date_end INTEGER NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  organizer_name TEXT NOT NULL DEFAULT '',
  organizer_uid TEXT NOT NULL DEFAULT '',
  entrance_fee TEXT NOT NULL DEFAULT '0'
);

CREATE INDEX IF NOT EXISTS idx_events_date_end ON events(date_end);
CREATE INDEX IF NOT EXISTS idx_events_date_begin ON events(date_begin);

CREATE TABLE IF NOT EXISTS pos_sessions (
  id TEXT PRIMARY KEY,
  config_name TEXT NOT NULL,
  event_id INTEGER,
  started_at INTEGER NOT NULL,
  ended_at INTEGER
);

CREATE TABLE IF NOT EXISTS orders (
  uid TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  name TEXT NOT NULL,
  event_id INTEGER,
  state TEXT NOT NULL DEFAULT 'draft',
  payload TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  paid_at INTEGER,
  FOREIGN KEY (session_id) REFERENCES pos_sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_orders_session ON orders(session_id);
CREATE INDEX IF NOT EXISTS idx_orders_event ON orders(event_id);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// runMigrations applies schema changes made after the initial release. Each
// step is idempotent so it is safe to call on every open.
func runMigrations(db *sql.DB) error {
	// v1: orders.state was added after the first register rollout.
	hasState, err := columnExists(db, "orders", "state")
	if err != nil {
		return fmt.Errorf("check state column: %w", err)
	}
	if !hasState {
		if _, err := db.Exec(`ALTER TABLE orders ADD COLUMN state TEXT NOT NULL DEFAULT 'draft'`); err != nil {
			return fmt.Errorf("run migration v1: %w", err)
		}
	}

	// v2: event tags written as 0 by old clients mean no event.
	for _, table := range []string{"pos_sessions", "orders"} {
		if _, err := db.Exec(fmt.Sprintf(`UPDATE %s SET event_id = NULL WHERE event_id <= 0`, table)); err != nil {
			return fmt.Errorf("run migration v2 on %s: %w", table, err)
		}
	}

	// v3: descriptive event columns published with event changes.
	for _, col := range []struct{ name, def string }{
		{"location", "TEXT NOT NULL DEFAULT ''"},
		{"description", "TEXT NOT NULL DEFAULT ''"},
		{"organizer_name", "TEXT NOT NULL DEFAULT ''"},
		{"organizer_uid", "TEXT NOT NULL DEFAULT ''"},
		{"entrance_fee", "TEXT NOT NULL DEFAULT '0'"},
	} {
		exists, err := columnExists(db, "events", col.name)
		if err != nil {
			return fmt.Errorf("check %s column: %w", col.name, err)
		}
		if exists {
			continue
		}
		if _, err := db.Exec(fmt.Sprintf(`ALTER TABLE events ADD COLUMN %s %s`, col.name, col.def)); err != nil {
			return fmt.Errorf("run migration v3 on %s: %w", col.name, err)
		}
	}
	return nil
}

// columnExists checks if a column exists in a table. It closes the rows
// cursor before returning, avoiding deadlocks with MaxOpenConns(1).
func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(
		fmt.Sprintf("SELECT name FROM pragma_table_info('%s') WHERE name = ?", table),
		column,
	)
	if err != nil {
		return false, err
	}
	found := rows.Next()
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, err
	}
	return found, nil
}
