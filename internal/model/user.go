package model

import "time"

// User mirrors a row of the `users` table.  AccountType holds one of the
// authz role names; it is the only source of truth for authorization.
type User struct {
	ID           uint64    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AccountType  string    `json:"account_type"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PasswordResetToken models a row of `password_reset_tokens`.  Only the
// SHA-256 hex digest of the emailed token is stored.
type PasswordResetToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at time now.
func (t PasswordResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
