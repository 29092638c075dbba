package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dreamwell/sleepdiary/internal/app/domain/user"
	apperrors "github.com/dreamwell/sleepdiary/internal/errors"
)

// tokenTTL is how long issued sessions remain valid. Rotating the signing
// secret invalidates all outstanding tokens, which is acceptable.
const tokenTTL = 7 * 24 * time.Hour

// Claims are the signed session claims carried by every bearer token.
type Claims struct {
	UserID   int64  `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// Identity is a validated session identity.
type Identity struct {
	UserID   int64
	Username string
	IsAdmin  bool
}

// IssueToken signs a session token for u.
func (s *Service) IssueToken(u user.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   u.ID,
		Username: u.Username,
		IsAdmin:  u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", apperrors.Internal(err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a bearer token, returning the identity it
// carries. Missing, malformed, and expired tokens all fail Unauthorized.
func (s *Service) ValidateToken(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, apperrors.Unauthorized("no token provided")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.Unauthorized("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, apperrors.Unauthorized("invalid or expired token").WithCause(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return Identity{}, apperrors.Unauthorized("invalid or expired token")
	}

	return Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		IsAdmin:  claims.IsAdmin,
	}, nil
}
