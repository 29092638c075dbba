// Package sqlite provides the embedded file-backed storage backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dreamwell/sleepdiary/internal/app/domain/entry"
	"github.com/dreamwell/sleepdiary/internal/app/domain/user"
	"github.com/dreamwell/sleepdiary/internal/app/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	username   TEXT UNIQUE NOT NULL,
	password   TEXT NOT NULL,
	sec_q      INTEGER NOT NULL DEFAULT 0,
	sec_a      TEXT NOT NULL DEFAULT '',
	is_admin   INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entries (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	date        TEXT NOT NULL,
	bed_time    TEXT NOT NULL,
	wake_time   TEXT NOT NULL,
	duration    REAL NOT NULL,
	screen_time REAL NOT NULL,
	energy      INTEGER NOT NULL,
	notes       TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	UNIQUE(user_id, date)
);
`

// Store implements storage.Store backed by an embedded SQLite database.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if necessary) the database file at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// A single writer avoids SQLITE_BUSY under concurrent upserts; reads
	// still proceed via WAL.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- UserStore ---------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	isAdmin := 0
	if u.IsAdmin {
		isAdmin = 1
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, sec_q, sec_a, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, u.Username, u.PasswordHash, u.SecurityQuestion, u.SecurityAnswer, isAdmin, u.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, storage.ErrDuplicateUsername
		}
		return user.User{}, err
	}

	u.ID, err = result.LastInsertId()
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password, sec_q, sec_a, is_admin, created_at
		FROM users
		WHERE username = ?
	`, username)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password, sec_q, sec_a, is_admin, created_at
		FROM users
		WHERE id = ?
	`, id)
	return scanUser(row)
}

func (s *Store) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = ? WHERE username = ?
	`, passwordHash, username)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListNonAdminUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password, sec_q, sec_a, is_admin, created_at
		FROM users
		WHERE is_admin = 0
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- EntryStore --------------------------------------------------------------

func (s *Store) UpsertEntry(ctx context.Context, e entry.Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (user_id, date, bed_time, wake_time, duration, screen_time, energy, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			bed_time    = excluded.bed_time,
			wake_time   = excluded.wake_time,
			duration    = excluded.duration,
			screen_time = excluded.screen_time,
			energy      = excluded.energy,
			notes       = excluded.notes
	`, e.UserID, e.Date, e.BedTime, e.WakeTime, e.Duration, e.ScreenTime, e.Energy, e.Notes, e.CreatedAt.Format(time.RFC3339))
	return err
}

func (s *Store) ListEntries(ctx context.Context, userID int64) ([]entry.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, date, bed_time, wake_time, duration, screen_time, energy, notes, created_at
		FROM entries
		WHERE user_id = ?
		ORDER BY date DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []entry.Entry
	for rows.Next() {
		var (
			e         entry.Entry
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Date, &e.BedTime, &e.WakeTime, &e.Duration, &e.ScreenTime, &e.Energy, &e.Notes, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) DeleteEntry(ctx context.Context, entryID, userID int64) error {
	// Missing and non-owned rows fall through silently; both match zero rows.
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM entries WHERE id = ? AND user_id = ?
	`, entryID, userID)
	return err
}

// --- helpers -----------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (user.User, error) {
	var (
		u         user.User
		isAdmin   int
		createdAt string
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.SecurityQuestion, &u.SecurityAnswer, &isAdmin, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, storage.ErrNotFound
	}
	if err != nil {
		return user.User{}, err
	}
	u.IsAdmin = isAdmin != 0
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return u, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
