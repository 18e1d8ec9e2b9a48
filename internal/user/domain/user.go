package domain

import (
	"errors"
	"strings"
	"time"
)

// User is an account that can sign in. PasswordHash is empty for OAuth-only accounts.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	// TwoFactorVerifiedAt is stamped whenever a second factor (email code or passkey) succeeds; nil until then.
	TwoFactorVerifiedAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// NormalizeEmail lower-cases and trims email; all lookups and inserts go through it.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// HasPassword reports whether the account can sign in with a password.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != ""
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Role != RoleUser && u.Role != RoleAdmin {
		return errors.New("role must be user or admin")
	}
	return nil
}
