// Package entries manages per-user, per-day sleep entries.
package entries

import (
	"context"
	"errors"
	"strings"

	"github.com/dreamwell/sleepdiary/internal/app/domain/entry"
	"github.com/dreamwell/sleepdiary/internal/app/storage"
	apperrors "github.com/dreamwell/sleepdiary/internal/errors"
	"github.com/dreamwell/sleepdiary/pkg/logger"
)

// Input carries the mutable fields of an entry submission.
type Input struct {
	Date       string
	BedTime    string
	WakeTime   string
	Duration   *float64
	ScreenTime *float64
	Energy     *int
	Notes      string
}

// Service validates entry submissions and delegates to the store.
type Service struct {
	provider storage.Provider
	log      *logger.Logger
}

// New constructs an entries service.
func New(provider storage.Provider, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("entries")
	}
	return &Service{provider: provider, log: log}
}

func (s *Service) store() (storage.Store, error) {
	store, err := s.provider.Store()
	if errors.Is(err, storage.ErrNotReady) {
		return nil, apperrors.NotReady("storage is initialising, retry shortly")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return store, nil
}

// Upsert inserts or replaces the caller's entry for the submitted date. A
// second submission for the same date overwrites all mutable fields while
// keeping the original id and creation time.
func (s *Service) Upsert(ctx context.Context, userID int64, in Input) error {
	in.Date = strings.TrimSpace(in.Date)
	if in.Date == "" || in.BedTime == "" || in.WakeTime == "" ||
		in.Duration == nil || in.ScreenTime == nil || in.Energy == nil {
		return apperrors.InvalidInput("missing fields")
	}
	if *in.Duration < 0 || *in.ScreenTime < 0 {
		return apperrors.InvalidInput("duration and screen time must be non-negative")
	}

	store, err := s.store()
	if err != nil {
		return err
	}

	err = store.UpsertEntry(ctx, entry.Entry{
		UserID:     userID,
		Date:       in.Date,
		BedTime:    in.BedTime,
		WakeTime:   in.WakeTime,
		Duration:   *in.Duration,
		ScreenTime: *in.ScreenTime,
		Energy:     *in.Energy,
		Notes:      in.Notes,
	})
	if err != nil {
		return apperrors.Internal(err)
	}

	s.log.Debugf("entry upserted for user %d date %s", userID, in.Date)
	return nil
}

// List returns the user's entries, newest date first.
func (s *Service) List(ctx context.Context, userID int64) ([]entry.Entry, error) {
	store, err := s.store()
	if err != nil {
		return nil, err
	}

	list, err := store.ListEntries(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return list, nil
}

// Delete removes the entry when it belongs to userID. Missing and non-owned
// ids succeed without effect so callers cannot probe for other users' entry
// ids.
func (s *Service) Delete(ctx context.Context, entryID, userID int64) error {
	store, err := s.store()
	if err != nil {
		return err
	}

	if err := store.DeleteEntry(ctx, entryID, userID); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}
