package user

import "time"

// User is a registered diary account. Usernames are stored lower-cased and
// are unique across the store; the reserved "admin" account carries IsAdmin.
type User struct {
	ID               int64
	Username         string
	PasswordHash     string
	SecurityQuestion int
	SecurityAnswer   string
	IsAdmin          bool
	CreatedAt        time.Time
}
