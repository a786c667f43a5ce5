// Package sqlitestore provides the SQLite-backed moderation store.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"inkwell/internal/moderation"

	"github.com/XSAM/otelsql"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Store implements moderation.Store on a single SQLite database.
type Store struct {
	db *sql.DB
}

// Ensure Store implements the interface at compile time.
var _ moderation.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
// Write transactions begin IMMEDIATE so concurrent writers serialise on
// the database lock instead of failing at commit.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := otelsql.Open("sqlite", dsn,
		otelsql.WithAttributes(attribute.String("db.system", "sqlite")),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open DB: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: migrate: %w", err)
	}

	log.Info().Str("path", path).Msg("sqlitestore: database opened")
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Update runs fn inside a write transaction, committing only if fn succeeds.
func (s *Store) Update(ctx context.Context, fn func(tx moderation.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&txn{ctx: ctx, q: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Warn().Err(rbErr).Msg("sqlitestore: rollback failed")
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// View runs fn against the database without a transaction. Each statement
// sees a consistent snapshot under WAL, and readers never wait on writers.
func (s *Store) View(ctx context.Context, fn func(tx moderation.Tx) error) error {
	return fn(&txn{ctx: ctx, q: s.db, readOnly: true})
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txn implements moderation.Tx on either a *sql.Tx or the bare *sql.DB.
type txn struct {
	ctx      context.Context
	q        queryer
	readOnly bool
}

var errReadOnly = errors.New("sqlitestore: write in read-only transaction")

func (t *txn) exec(query string, args ...any) (sql.Result, error) {
	if t.readOnly {
		return nil, errReadOnly
	}
	return t.q.ExecContext(t.ctx, query, args...)
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT    NOT NULL UNIQUE COLLATE NOCASE CHECK(length(username) > 0),
		email         TEXT    NOT NULL DEFAULT '' COLLATE NOCASE,
		password_hash TEXT    NOT NULL DEFAULT '',
		role          TEXT    NOT NULL DEFAULT 'USER' CHECK(role IN ('USER', 'ADMIN')),
		is_banned     INTEGER NOT NULL DEFAULT 0,
		banned_until  TEXT,
		ban_reason    TEXT    NOT NULL DEFAULT '',
		created_at    TEXT    NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email) WHERE email != '';

	CREATE TABLE IF NOT EXISTS posts (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		author_id  INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title      TEXT    NOT NULL DEFAULT '',
		hidden     INTEGER NOT NULL DEFAULT 0,
		created_at TEXT    NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author_id);

	CREATE TABLE IF NOT EXISTS reports (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		reported_type TEXT    NOT NULL CHECK(reported_type IN ('USER', 'POST')),
		reported_id   INTEGER NOT NULL,
		reporter_id   INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		reason        TEXT    NOT NULL,
		description   TEXT    NOT NULL,
		status        TEXT    NOT NULL DEFAULT 'PENDING'
			CHECK(status IN ('PENDING', 'UNDER_REVIEW', 'RESOLVED', 'DISMISSED')),
		created_at    TEXT    NOT NULL,
		admin_notes   TEXT    NOT NULL DEFAULT '',
		action        TEXT    NOT NULL DEFAULT 'NONE',
		resolved_by   INTEGER REFERENCES users(id) ON DELETE SET NULL,
		resolved_at   TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_reports_active
		ON reports(reporter_id, reported_type, reported_id)
		WHERE status IN ('PENDING', 'UNDER_REVIEW');
	CREATE INDEX IF NOT EXISTS idx_reports_status_created ON reports(status, created_at);
	CREATE INDEX IF NOT EXISTS idx_reports_reporter_created ON reports(reporter_id, created_at);

	CREATE TABLE IF NOT EXISTS moderation_audit_log (
		id          TEXT    PRIMARY KEY,
		action      TEXT    NOT NULL,
		actor_id    INTEGER NOT NULL,
		target_type TEXT    NOT NULL DEFAULT '',
		target_id   INTEGER NOT NULL DEFAULT 0,
		reason      TEXT    NOT NULL DEFAULT '',
		details     TEXT    NOT NULL DEFAULT '{}',
		timestamp   TEXT    NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON moderation_audit_log(timestamp);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
