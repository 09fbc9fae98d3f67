package domain

import (
	"strings"
	"time"
)

type User struct {
	ID           string
	Email        string // unique, stored lower case
	FirstName    string
	LastName     string
	PasswordHash string // argon2id PHC string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName is the display name carried in session tokens. Falls back to
// the email when no name is on file.
func (u User) FullName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Email
	}
	return name
}

// NormalizeEmail is the canonical form used for lookups and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
