package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is wrapped by every lookup that matches no row.
var ErrNotFound = errors.New("not found")

// Store wraps access to the SQLite database and keeps the cached progress
// counters of assignments and milestones derived from task state.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open initializes a new SQLite store and runs the required migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection serializes every transaction, so concurrent toggles
	// on one assignment cannot lose counter updates.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{db: conn, logger: logger, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SetClock replaces the time source used for timestamps and risk evaluation.
func (s *Store) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.now = now
}

// Now returns the store's current time in UTC.
func (s *Store) Now() time.Time {
	return s.now().UTC()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS assignments (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            title TEXT NOT NULL,
            description TEXT,
            due_date DATETIME NOT NULL,
            raw_context TEXT,
            parsed_data TEXT,
            status TEXT NOT NULL DEFAULT 'pending'
                CHECK (status IN ('pending', 'in_progress', 'at_risk', 'completed')),
            total_estimated_minutes INTEGER NOT NULL DEFAULT 0 CHECK (total_estimated_minutes >= 0),
            completed_tasks_count INTEGER NOT NULL DEFAULT 0 CHECK (completed_tasks_count >= 0),
            total_tasks_count INTEGER NOT NULL DEFAULT 0 CHECK (total_tasks_count >= 0),
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            CHECK (completed_tasks_count <= total_tasks_count)
        );`,
		`CREATE TABLE IF NOT EXISTS milestones (
            id TEXT PRIMARY KEY,
            assignment_id TEXT NOT NULL,
            title TEXT NOT NULL,
            description TEXT,
            order_index INTEGER NOT NULL DEFAULT 0 CHECK (order_index >= 0),
            progress INTEGER NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(assignment_id) REFERENCES assignments(id) ON DELETE CASCADE
        );`,
		`CREATE TABLE IF NOT EXISTS tasks (
            id TEXT PRIMARY KEY,
            milestone_id TEXT NOT NULL,
            title TEXT NOT NULL,
            description TEXT,
            estimated_minutes INTEGER NOT NULL DEFAULT 15 CHECK (estimated_minutes BETWEEN 1 AND 65535),
            is_completed BOOLEAN NOT NULL DEFAULT 0,
            completed_at DATETIME,
            context_hint TEXT,
            order_index INTEGER NOT NULL DEFAULT 0 CHECK (order_index >= 0),
            mastery_assessment TEXT,
            understanding_score INTEGER CHECK (understanding_score BETWEEN 0 AND 100),
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            CHECK ((is_completed = 1) = (completed_at IS NOT NULL)),
            FOREIGN KEY(milestone_id) REFERENCES milestones(id) ON DELETE CASCADE
        );`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
            id TEXT PRIMARY KEY,
            assignment_id TEXT NOT NULL,
            task_id TEXT,
            role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
            content TEXT NOT NULL,
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(assignment_id) REFERENCES assignments(id) ON DELETE CASCADE,
            FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE SET NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_user_status ON assignments(user_id, status);`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_due_date ON assignments(due_date);`,
		`CREATE INDEX IF NOT EXISTS idx_milestones_assignment_order ON milestones(assignment_id, order_index);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_milestone_order ON tasks(milestone_id, order_index);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks(is_completed);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_assignment ON chat_messages(assignment_id, created_at);`,
		`CREATE TRIGGER IF NOT EXISTS trg_assignments_updated
            AFTER UPDATE ON assignments
            FOR EACH ROW BEGIN
                UPDATE assignments SET updated_at = CURRENT_TIMESTAMP WHERE id = OLD.id;
            END;`,
		`CREATE TRIGGER IF NOT EXISTS trg_milestones_updated
            AFTER UPDATE ON milestones
            FOR EACH ROW BEGIN
                UPDATE milestones SET updated_at = CURRENT_TIMESTAMP WHERE id = OLD.id;
            END;`,
		`CREATE TRIGGER IF NOT EXISTS trg_tasks_updated
            AFTER UPDATE ON tasks
            FOR EACH ROW BEGIN
                UPDATE tasks SET updated_at = CURRENT_TIMESTAMP WHERE id = OLD.id;
            END;`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// inTx runs fn inside one transaction, rolling back on any error.
// fn must only use tx; the pool has a single connection.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// notFound maps sql.ErrNoRows to ErrNotFound for the named entity.
func notFound(entity string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %w", entity, ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", entity, err)
}

func affectedOrNotFound(entity string, res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s %w", entity, ErrNotFound)
	}
	return nil
}

// nullableJSON stores empty or literal null documents as SQL NULL.
func nullableJSON(j types.JSONText) any {
	if len(j) == 0 || string(j) == "null" {
		return nil
	}
	return string(j)
}

// nullableString trims the value and stores blank text as SQL NULL.
func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return v
}
