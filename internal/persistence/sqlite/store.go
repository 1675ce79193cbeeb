package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// dateLayout is the storage form of civil dates. Timestamps use RFC3339.
const dateLayout = "2006-01-02"

// Store bundles the SQLite-backed repositories behind a single connection
// pool and owns schema migration.
type Store struct {
	pool *ConnectionPool

	users       *UserRepository
	teams       *TeamRepository
	shifts      *ShiftRepository
	patterns    *PatternRepository
	assignments *AssignmentRepository
	exceptions  *ExceptionRepository
	sessions    *SessionRepository
}

// Open opens the database and constructs the repositories. The schema is
// not touched; call Migrate before first use.
func Open(config Config) (*Store, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}

	return &Store{
		pool:        pool,
		users:       NewUserRepository(pool),
		teams:       NewTeamRepository(pool),
		shifts:      NewShiftRepository(pool),
		patterns:    NewPatternRepository(pool),
		assignments: NewAssignmentRepository(pool),
		exceptions:  NewExceptionRepository(pool),
		sessions:    NewSessionRepository(pool),
	}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Ping tests the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Pool exposes the connection pool for callers composing their own
// transactions.
func (s *Store) Pool() *ConnectionPool {
	return s.pool
}

func (s *Store) Users() *UserRepository             { return s.users }
func (s *Store) Teams() *TeamRepository             { return s.teams }
func (s *Store) Shifts() *ShiftRepository           { return s.shifts }
func (s *Store) Patterns() *PatternRepository       { return s.patterns }
func (s *Store) Assignments() *AssignmentRepository { return s.assignments }
func (s *Store) Exceptions() *ExceptionRepository   { return s.exceptions }
func (s *Store) Sessions() *SessionRepository       { return s.sessions }

// schemaStatements holds the schema in execution order. Every statement is
// idempotent so Migrate can run on every startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		display_name  TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		is_admin      INTEGER NOT NULL DEFAULT 0,
		disabled      INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS teams (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		parent_id  TEXT REFERENCES teams(id),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS shifts (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		starts_at  TEXT NOT NULL,
		ends_at    TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS patterns (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		frequency    TEXT NOT NULL,
		interval_value INTEGER NOT NULL DEFAULT 1,
		start_date   TEXT NOT NULL,
		end_kind     TEXT NOT NULL,
		end_count    INTEGER,
		end_until    TEXT,
		shift_id     TEXT REFERENCES shifts(id),
		days_of_week INTEGER NOT NULL DEFAULT 0,
		week_start   INTEGER NOT NULL DEFAULT 1,
		by_month_day INTEGER,
		by_month     INTEGER,
		cycle_length INTEGER NOT NULL DEFAULT 0,
		active       INTEGER NOT NULL DEFAULT 1,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pattern_days (
		pattern_id TEXT NOT NULL REFERENCES patterns(id) ON DELETE CASCADE,
		day_number INTEGER NOT NULL,
		shift_id   TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (pattern_id, day_number)
	)`,
	`CREATE TABLE IF NOT EXISTS assignments (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id),
		team_id    TEXT NOT NULL REFERENCES teams(id),
		pattern_id TEXT NOT NULL REFERENCES patterns(id),
		start_date TEXT NOT NULL,
		end_date   TEXT,
		priority   TEXT NOT NULL,
		status     TEXT NOT NULL,
		active     INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_user ON assignments(user_id, start_date)`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_team ON assignments(team_id, start_date)`,
	`CREATE TABLE IF NOT EXISTS exceptions (
		id                  TEXT PRIMARY KEY,
		user_id             TEXT NOT NULL REFERENCES users(id),
		target_date         TEXT NOT NULL,
		type                TEXT NOT NULL,
		status              TEXT NOT NULL,
		priority            TEXT NOT NULL,
		requires_approval   INTEGER NOT NULL DEFAULT 1,
		new_shift_id        TEXT REFERENCES shifts(id),
		swap_with_user_id   TEXT REFERENCES users(id),
		replacement_user_id TEXT REFERENCES users(id),
		reduced_start       TEXT,
		reduced_end         TEXT,
		reason              TEXT,
		active              INTEGER NOT NULL DEFAULT 1,
		approved_by         TEXT,
		approved_at         TEXT,
		created_at          TEXT NOT NULL,
		updated_at          TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_exceptions_user_date ON exceptions(user_id, target_date)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL REFERENCES users(id),
		token       TEXT NOT NULL UNIQUE,
		fingerprint TEXT NOT NULL DEFAULT '',
		expires_at  TEXT NOT NULL,
		revoked_at  TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id)`,
}

// Migrate applies the schema inside a single transaction.
func (s *Store) Migrate(ctx context.Context) error {
	return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, statement := range schemaStatements {
			if _, err := tx.Exec(statement); err != nil {
				return fmt.Errorf("schema statement failed: %w", err)
			}
		}
		return nil
	})
}

// formatDate stores a civil date without its time-of-day component.
func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// parseDate reads a stored civil date back as midnight UTC.
func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

// parseTimePtr parses an RFC3339 timestamp and returns a pointer to it.
func parseTimePtr(s string) (*time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseDatePtr parses a stored civil date and returns a pointer to it.
func parseDatePtr(s string) (*time.Time, error) {
	t, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nullString wraps an optional column value.
func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

// nullInt wraps an optional integer column value.
func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	i := int(ni.Int64)
	return &i
}
