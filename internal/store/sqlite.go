// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Opens the database with WAL and immediate transactions, creates schema and runs migrations

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// busyTimeoutMillis is how long a writer waits on a locked database before failing
const busyTimeoutMillis = 5000

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed. ":memory:" opens a private
// in-memory database restricted to a single connection.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	memory := path == ":memory:"
	if !memory {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every connection to :memory: is its own database
	if memory {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// dsn builds a connection string that applies the pragmas to every pooled
// connection. Transactions take the write lock up front (_txlock=immediate) so
// concurrent provisioning waits on busy_timeout instead of failing on upgrade.
func dsn(path string) string {
	params := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeoutMillis),
		"_pragma=foreign_keys(1)",
		"_txlock=immediate",
	}
	if path != ":memory:" {
		params = append(params, "_pragma=journal_mode(WAL)")
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS companies (
			id         TEXT PRIMARY KEY,
			public_key TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS agents (
			id         TEXT PRIMARY KEY,
			company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
			name       TEXT NOT NULL,
			available  INTEGER NOT NULL DEFAULT 0,
			position   INTEGER NOT NULL,

			UNIQUE(company_id, position)
		);

		CREATE INDEX IF NOT EXISTS idx_agents_company ON agents(company_id, position);

		CREATE TABLE IF NOT EXISTS customers (
			id         TEXT PRIMARY KEY,
			device_id  TEXT NOT NULL,
			company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL,

			UNIQUE(device_id, company_id)
		);

		CREATE TABLE IF NOT EXISTS conversations (
			id          TEXT PRIMARY KEY,
			company_id  TEXT NOT NULL REFERENCES companies(id),
			agent_id    TEXT NOT NULL REFERENCES agents(id),
			customer_id TEXT NOT NULL REFERENCES customers(id),
			timestamp   INTEGER NOT NULL,
			archived    INTEGER NOT NULL DEFAULT 0
		);

		-- At most one active conversation per customer and company
		CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_active
			ON conversations(customer_id, company_id) WHERE archived = 0;

		CREATE INDEX IF NOT EXISTS idx_conversations_agent ON conversations(agent_id);

		CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			position        INTEGER NOT NULL,
			author          TEXT NOT NULL,
			timestamp       INTEGER NOT NULL,
			content         TEXT NOT NULL,

			CHECK (author IN ('agent', 'customer')),
			UNIQUE(conversation_id, position)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, position);
	`

	_, err := s.db.Exec(schema)
	return err
}

// columnMigration adds a column that arrived after a database was created
type columnMigration struct {
	table  string
	column string
	apply  string
}

// migrations is empty until a column is added to a table that already ships
// in createSchema. New columns go in both places: createSchema for fresh
// databases, here for existing ones.
var migrations []columnMigration

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	return s.applyMigrations(migrations)
}

func (s *SQLiteStore) applyMigrations(pending []columnMigration) error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	for _, m := range pending {
		var exists int
		err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column).Scan(&exists)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("checking %s.%s: %w", m.table, m.column, err)
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", m.table)
	}

	return nil
}

// Ping checks that the database is reachable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// boolToInt converts a bool to SQLite's integer representation
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
