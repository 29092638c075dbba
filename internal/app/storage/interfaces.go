package storage

import (
	"context"
	"errors"

	"github.com/dreamwell/sleepdiary/internal/app/domain/entry"
	"github.com/dreamwell/sleepdiary/internal/app/domain/user"
)

// Sentinel errors shared by all backends. Services translate these into the
// public error taxonomy; backends never return taxonomy errors themselves.
var (
	// ErrNotFound reports an absent user or entry.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicateUsername reports a violation of the case-folded username
	// uniqueness constraint.
	ErrDuplicateUsername = errors.New("storage: username already exists")
)

// UserStore persists user records and password hashes.
type UserStore interface {
	// CreateUser inserts u and returns it with ID and CreatedAt populated.
	// Returns ErrDuplicateUsername when the username is taken.
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	// GetUserByUsername looks up the already lower-cased username.
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	GetUserByID(ctx context.Context, id int64) (user.User, error)
	// UpdatePassword replaces the stored hash. Returns ErrNotFound for an
	// unknown username. The write is durable before the call returns.
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	// ListNonAdminUsers returns non-admin users in creation order.
	ListNonAdminUsers(ctx context.Context) ([]user.User, error)
	// DeleteUser removes the user and cascades deletion of their entries.
	DeleteUser(ctx context.Context, id int64) error
}

// EntryStore persists per-user, per-date sleep entries.
type EntryStore interface {
	// UpsertEntry atomically inserts e or replaces the existing entry for
	// (e.UserID, e.Date), preserving the original ID and CreatedAt on
	// replace. Concurrent upserts for the same key serialise to one whole
	// write; the uniqueness invariant is never violated.
	UpsertEntry(ctx context.Context, e entry.Entry) error
	// ListEntries returns the user's entries ordered by date descending.
	ListEntries(ctx context.Context, userID int64) ([]entry.Entry, error)
	// DeleteEntry removes the entry only when it belongs to userID. A
	// missing or non-owned id is a silent no-op.
	DeleteEntry(ctx context.Context, entryID, userID int64) error
}

// Store is the full persistence contract a backend must satisfy.
type Store interface {
	UserStore
	EntryStore
}
