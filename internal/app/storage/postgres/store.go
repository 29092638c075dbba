// Package postgres provides the networked relational storage backend.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/dreamwell/sleepdiary/internal/app/domain/entry"
	"github.com/dreamwell/sleepdiary/internal/app/domain/user"
	"github.com/dreamwell/sleepdiary/internal/app/storage"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         BIGSERIAL PRIMARY KEY,
	username   TEXT UNIQUE NOT NULL,
	password   TEXT NOT NULL,
	sec_q      INTEGER NOT NULL DEFAULT 0,
	sec_a      TEXT NOT NULL DEFAULT '',
	is_admin   BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS entries (
	id          BIGSERIAL PRIMARY KEY,
	user_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	date        TEXT NOT NULL,
	bed_time    TEXT NOT NULL,
	wake_time   TEXT NOT NULL,
	duration    DOUBLE PRECISION NOT NULL,
	screen_time DOUBLE PRECISION NOT NULL,
	energy      INTEGER NOT NULL,
	notes       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(user_id, date)
);
`

// Store implements storage.Store backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to the database at dsn, verifies the connection, and ensures
// the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
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

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password, sec_q, sec_a, is_admin, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, u.Username, u.PasswordHash, u.SecurityQuestion, u.SecurityAnswer, u.IsAdmin, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return user.User{}, storage.ErrDuplicateUsername
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password, sec_q, sec_a, is_admin, created_at
		FROM users
		WHERE username = $1
	`, username)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password, sec_q, sec_a, is_admin, created_at
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (s *Store) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, passwordHash)
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
		WHERE is_admin = FALSE
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
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, date) DO UPDATE SET
			bed_time    = excluded.bed_time,
			wake_time   = excluded.wake_time,
			duration    = excluded.duration,
			screen_time = excluded.screen_time,
			energy      = excluded.energy,
			notes       = excluded.notes
	`, e.UserID, e.Date, e.BedTime, e.WakeTime, e.Duration, e.ScreenTime, e.Energy, e.Notes, e.CreatedAt)
	return err
}

func (s *Store) ListEntries(ctx context.Context, userID int64) ([]entry.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, date, bed_time, wake_time, duration, screen_time, energy, notes, created_at
		FROM entries
		WHERE user_id = $1
		ORDER BY date DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []entry.Entry
	for rows.Next() {
		var e entry.Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Date, &e.BedTime, &e.WakeTime, &e.Duration, &e.ScreenTime, &e.Energy, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) DeleteEntry(ctx context.Context, entryID, userID int64) error {
	// Missing and non-owned rows both affect zero rows; neither is an error.
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM entries WHERE id = $1 AND user_id = $2
	`, entryID, userID)
	return err
}

// --- helpers -----------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.SecurityQuestion, &u.SecurityAnswer, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, storage.ErrNotFound
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}
