package auth

import (
	"context"
	"errors"

	"github.com/dreamwell/sleepdiary/internal/app/domain/user"
	"github.com/dreamwell/sleepdiary/internal/app/storage"
	apperrors "github.com/dreamwell/sleepdiary/internal/errors"
)

// SecurityQuestions is the fixed, ordered list users pick from at
// registration. The stored index resolves into this list; changing the order
// would silently re-map every account, so entries are append-only.
var SecurityQuestions = []string{
	"What was the name of your first pet?",
	"What is your mother's maiden name?",
	"What city were you born in?",
	"What was the name of your primary school?",
	"What is your favourite book?",
}

// recoverableUser loads the user for the recovery flow. Absent users, the
// admin account, and accounts without a security answer are all NotFound so
// the endpoint leaks nothing about which condition failed.
func (s *Service) recoverableUser(ctx context.Context, store storage.Store, username string) (user.User, error) {
	u, err := store.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, apperrors.NotFound("user not found")
	}
	if err != nil {
		return user.User{}, apperrors.Internal(err)
	}
	if u.IsAdmin {
		return user.User{}, apperrors.NotFound("user not found")
	}
	if u.SecurityAnswer == "" {
		return user.User{}, apperrors.NotFound("no security question set")
	}
	return u, nil
}

// RecoveryQuestion returns the security question text for username.
func (s *Service) RecoveryQuestion(ctx context.Context, username string) (string, error) {
	username = normalizeUsername(username)
	if username == "" {
		return "", apperrors.InvalidInput("missing username")
	}

	store, err := s.store()
	if err != nil {
		return "", err
	}

	u, err := s.recoverableUser(ctx, store, username)
	if err != nil {
		return "", err
	}

	// An out-of-range index means corrupted registration data, not a user
	// error; fail loudly.
	if u.SecurityQuestion < 0 || u.SecurityQuestion >= len(SecurityQuestions) {
		return "", apperrors.Internal(errors.New("security question index out of range"))
	}
	return SecurityQuestions[u.SecurityQuestion], nil
}

// RecoverPassword resets the password when the security answer matches. The
// flow is stateless: the client re-supplies the username in each step, and no
// intermediate state is persisted between the two calls. Attempts are not
// rate limited.
func (s *Service) RecoverPassword(ctx context.Context, username, answer, newPassword string) error {
	username = normalizeUsername(username)
	if username == "" || answer == "" || newPassword == "" {
		return apperrors.InvalidInput("missing fields")
	}
	if len(newPassword) < minPasswordLength {
		return apperrors.InvalidInput("password must be at least %d characters", minPasswordLength)
	}

	store, err := s.store()
	if err != nil {
		return err
	}

	u, err := s.recoverableUser(ctx, store, username)
	if err != nil {
		return err
	}

	if normalizeAnswer(answer) != u.SecurityAnswer {
		return apperrors.Unauthorized("incorrect answer")
	}

	return s.setPassword(ctx, store, u.Username, newPassword)
}
