// Package memory provides an in-memory storage backend. It is safe for
// concurrent use and optionally persists JSON snapshots to disk so data
// survives restarts, accepting up to one flush interval of loss.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dreamwell/sleepdiary/internal/app/domain/entry"
	"github.com/dreamwell/sleepdiary/internal/app/domain/user"
	"github.com/dreamwell/sleepdiary/internal/app/storage"
)

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu          sync.RWMutex
	nextUserID  int64
	nextEntryID int64
	users       map[int64]user.User
	byUsername  map[string]int64
	entries     map[int64]entry.Entry
	byUserDate  map[entryKey]int64

	snapshotPath string
	dirty        bool
}

type entryKey struct {
	userID int64
	date   string
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextUserID:  1,
		nextEntryID: 1,
		users:       make(map[int64]user.User),
		byUsername:  make(map[string]int64),
		entries:     make(map[int64]entry.Entry),
		byUserDate:  make(map[entryKey]int64),
	}
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[u.Username]; exists {
		return user.User{}, storage.ErrDuplicateUsername
	}

	u.ID = s.nextUserID
	s.nextUserID++
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	s.users[u.ID] = u
	s.byUsername[u.Username] = u.ID
	s.dirty = true
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) GetUserByID(_ context.Context, id int64) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) UpdatePassword(_ context.Context, username, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byUsername[username]
	if !ok {
		return storage.ErrNotFound
	}
	u := s.users[id]
	u.PasswordHash = passwordHash
	s.users[id] = u
	s.dirty = true
	return nil
}

func (s *Store) ListNonAdminUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []user.User
	for _, u := range s.users {
		if !u.IsAdmin {
			result = append(result, u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.users, id)
	delete(s.byUsername, u.Username)
	for entryID, e := range s.entries {
		if e.UserID == id {
			delete(s.entries, entryID)
			delete(s.byUserDate, entryKey{userID: id, date: e.Date})
		}
	}
	s.dirty = true
	return nil
}

// EntryStore implementation ---------------------------------------------------

func (s *Store) UpsertEntry(_ context.Context, e entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entryKey{userID: e.UserID, date: e.Date}
	if existingID, ok := s.byUserDate[key]; ok {
		existing := s.entries[existingID]
		e.ID = existing.ID
		e.CreatedAt = existing.CreatedAt
		s.entries[existingID] = e
		s.dirty = true
		return nil
	}

	e.ID = s.nextEntryID
	s.nextEntryID++
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.entries[e.ID] = e
	s.byUserDate[key] = e.ID
	s.dirty = true
	return nil
}

func (s *Store) ListEntries(_ context.Context, userID int64) ([]entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []entry.Entry
	for _, e := range s.entries {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date > result[j].Date })
	return result, nil
}

func (s *Store) DeleteEntry(_ context.Context, entryID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[entryID]
	if !ok || e.UserID != userID {
		// Deliberately indistinguishable from a successful delete.
		return nil
	}
	delete(s.entries, entryID)
	delete(s.byUserDate, entryKey{userID: userID, date: e.Date})
	s.dirty = true
	return nil
}
