// Package auth owns credentials, sessions, and password recovery.
package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dreamwell/sleepdiary/internal/app/domain/user"
	"github.com/dreamwell/sleepdiary/internal/app/storage"
	apperrors "github.com/dreamwell/sleepdiary/internal/errors"
	"github.com/dreamwell/sleepdiary/pkg/logger"
)

const (
	// ReservedAdminUsername cannot be registered; it is seeded at startup.
	ReservedAdminUsername = "admin"
	// DefaultAdminPassword is a known-weak bootstrap credential. It exists
	// so a fresh deployment is reachable and is expected to be rotated
	// immediately via /api/change-password.
	DefaultAdminPassword = "admin123"

	minPasswordLength = 4
	bcryptCost        = 10
)

// Service implements registration, login, password changes, session tokens,
// and the security-question recovery flow.
type Service struct {
	provider storage.Provider
	secret   []byte
	log      *logger.Logger
}

// New constructs an auth service signing tokens with secret.
func New(provider storage.Provider, secret []byte, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &Service{provider: provider, secret: secret, log: log}
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

// Register creates an account and returns it with a signed session token.
func (s *Service) Register(ctx context.Context, username, password string, secQ int, secA string) (user.User, string, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return user.User{}, "", apperrors.InvalidInput("missing fields")
	}
	if username == ReservedAdminUsername {
		return user.User{}, "", apperrors.InvalidInput("username not allowed")
	}
	if len(password) < minPasswordLength {
		return user.User{}, "", apperrors.InvalidInput("password must be at least %d characters", minPasswordLength)
	}
	if secQ < 0 || secQ >= len(SecurityQuestions) {
		return user.User{}, "", apperrors.InvalidInput("invalid security question")
	}

	store, err := s.store()
	if err != nil {
		return user.User{}, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return user.User{}, "", apperrors.Internal(err)
	}

	created, err := store.CreateUser(ctx, user.User{
		Username:         username,
		PasswordHash:     string(hash),
		SecurityQuestion: secQ,
		SecurityAnswer:   normalizeAnswer(secA),
	})
	if errors.Is(err, storage.ErrDuplicateUsername) {
		return user.User{}, "", apperrors.Conflict("username already taken")
	}
	if err != nil {
		return user.User{}, "", apperrors.Internal(err)
	}

	token, err := s.IssueToken(created)
	if err != nil {
		return user.User{}, "", err
	}

	s.log.Infof("user %s registered", created.Username)
	return created, token, nil
}

// Login verifies credentials and returns the user with a session token.
// Unknown usernames and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (user.User, string, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return user.User{}, "", apperrors.InvalidInput("missing fields")
	}

	store, err := s.store()
	if err != nil {
		return user.User{}, "", err
	}

	u, err := store.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, "", apperrors.Unauthorized("invalid credentials")
	}
	if err != nil {
		return user.User{}, "", apperrors.Internal(err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return user.User{}, "", apperrors.Unauthorized("invalid credentials")
	}

	token, err := s.IssueToken(u)
	if err != nil {
		return user.User{}, "", err
	}

	s.log.Infof("user %s logged in", u.Username)
	return u, token, nil
}

// ChangePassword rotates the caller's password after verifying the current
// one. The new hash is durable before the call returns.
func (s *Service) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return apperrors.InvalidInput("missing fields")
	}
	if len(newPassword) < minPasswordLength {
		return apperrors.InvalidInput("password must be at least %d characters", minPasswordLength)
	}

	store, err := s.store()
	if err != nil {
		return err
	}

	u, err := store.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.Unauthorized("invalid credentials")
	}
	if err != nil {
		return apperrors.Internal(err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)) != nil {
		return apperrors.Unauthorized("current password is incorrect")
	}

	return s.setPassword(ctx, store, u.Username, newPassword)
}

// AdminResetPassword replaces a user's password without the current one.
// Unlike recovery, any account can be reset, including the admin itself.
func (s *Service) AdminResetPassword(ctx context.Context, username, newPassword string) error {
	username = normalizeUsername(username)
	if username == "" || newPassword == "" {
		return apperrors.InvalidInput("missing fields")
	}
	if len(newPassword) < minPasswordLength {
		return apperrors.InvalidInput("password must be at least %d characters", minPasswordLength)
	}

	store, err := s.store()
	if err != nil {
		return err
	}

	u, err := store.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NotFound("user not found")
	}
	if err != nil {
		return apperrors.Internal(err)
	}

	return s.setPassword(ctx, store, u.Username, newPassword)
}

func (s *Service) setPassword(ctx context.Context, store storage.Store, username, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return apperrors.Internal(err)
	}
	if err := store.UpdatePassword(ctx, username, string(hash)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("user not found")
		}
		return apperrors.Internal(err)
	}
	s.log.Infof("password updated for %s", username)
	return nil
}

func normalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// SeedAdmin creates the reserved admin account with the documented default
// password if it does not exist yet. Called once during storage
// initialisation, before the store is published.
func SeedAdmin(ctx context.Context, store storage.UserStore, log *logger.Logger) error {
	if log == nil {
		log = logger.NewDefault("auth")
	}

	_, err := store.GetUserByUsername(ctx, ReservedAdminUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultAdminPassword), bcryptCost)
	if err != nil {
		return err
	}

	if _, err := store.CreateUser(ctx, user.User{
		Username:     ReservedAdminUsername,
		PasswordHash: string(hash),
		IsAdmin:      true,
	}); err != nil && !errors.Is(err, storage.ErrDuplicateUsername) {
		return err
	}

	log.Warnf("admin account seeded with the default password; change it immediately")
	return nil
}
