package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dreamwell/sleepdiary/internal/app/domain/entry"
	"github.com/dreamwell/sleepdiary/internal/app/domain/user"
)

// snapshot is the on-disk representation of the whole store.
type snapshot struct {
	NextUserID  int64         `json:"next_user_id"`
	NextEntryID int64         `json:"next_entry_id"`
	Users       []user.User   `json:"users"`
	Entries     []entry.Entry `json:"entries"`
}

// Open creates a store bound to a snapshot file, loading existing state when
// the file is present. Pass path="" for a purely ephemeral store.
func Open(path string) (*Store, error) {
	s := New()
	s.snapshotPath = path
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}

	s.nextUserID = snap.NextUserID
	s.nextEntryID = snap.NextEntryID
	if s.nextUserID < 1 {
		s.nextUserID = 1
	}
	if s.nextEntryID < 1 {
		s.nextEntryID = 1
	}
	for _, u := range snap.Users {
		s.users[u.ID] = u
		s.byUsername[u.Username] = u.ID
	}
	for _, e := range snap.Entries {
		s.entries[e.ID] = e
		s.byUserDate[entryKey{userID: e.UserID, date: e.Date}] = e.ID
	}
	return s, nil
}

// Flush writes the current state to the snapshot file if anything changed
// since the last flush. The write goes through a temp file and rename so a
// crash mid-flush never corrupts the previous snapshot. A failed write leaves
// the store marked dirty, so the next flush retries.
func (s *Store) Flush() error {
	if s.snapshotPath == "" {
		return nil
	}

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	snap := snapshot{
		NextUserID:  s.nextUserID,
		NextEntryID: s.nextEntryID,
	}
	for _, u := range s.users {
		snap.Users = append(snap.Users, u)
	}
	for _, e := range s.entries {
		snap.Entries = append(snap.Entries, e)
	}
	s.dirty = false
	s.mu.Unlock()

	if err := s.writeSnapshot(snap); err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) writeSnapshot(snap snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.snapshotPath)
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.snapshotPath)
}
