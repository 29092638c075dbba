// Package admin implements administrator-only user management.
package admin

import (
	"context"
	"errors"
	"time"

	"github.com/dreamwell/sleepdiary/internal/app/domain/entry"
	"github.com/dreamwell/sleepdiary/internal/app/services/auth"
	"github.com/dreamwell/sleepdiary/internal/app/storage"
	apperrors "github.com/dreamwell/sleepdiary/internal/errors"
	"github.com/dreamwell/sleepdiary/pkg/logger"
)

// UserReport is a non-admin user with their entries, as returned to the
// admin dashboard. Password hashes and security answers never leave the
// service.
type UserReport struct {
	ID        int64         `json:"id"`
	Username  string        `json:"username"`
	CreatedAt time.Time     `json:"createdAt"`
	Entries   []entry.Entry `json:"entries"`
}

// Service exposes admin-only operations over the stores.
type Service struct {
	provider storage.Provider
	auth     *auth.Service
	log      *logger.Logger
}

// New constructs an admin service. Password resets go through the auth
// service so hashing policy stays in one place.
func New(provider storage.Provider, authSvc *auth.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("admin")
	}
	return &Service{provider: provider, auth: authSvc, log: log}
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

// ListUsers returns every non-admin user with their entries attached.
func (s *Service) ListUsers(ctx context.Context) ([]UserReport, error) {
	store, err := s.store()
	if err != nil {
		return nil, err
	}

	users, err := store.ListNonAdminUsers(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	reports := make([]UserReport, 0, len(users))
	for _, u := range users {
		list, err := store.ListEntries(ctx, u.ID)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		if list == nil {
			list = []entry.Entry{}
		}
		reports = append(reports, UserReport{
			ID:        u.ID,
			Username:  u.Username,
			CreatedAt: u.CreatedAt,
			Entries:   list,
		})
	}
	return reports, nil
}

// ResetPassword sets a new password for username without knowing the old one.
func (s *Service) ResetPassword(ctx context.Context, username, newPassword string) error {
	if err := s.auth.AdminResetPassword(ctx, username, newPassword); err != nil {
		return err
	}
	s.log.Infof("admin reset password for %s", username)
	return nil
}
