package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/conference-cms/internal/model"
)

// ResetTokenRepo persists password reset tokens (SHA-256 hashes only).
type ResetTokenRepo struct{ DB *sql.DB }

func NewResetTokenRepo(db *sql.DB) *ResetTokenRepo { return &ResetTokenRepo{DB: db} }

// Replace deletes every token of the user and stores the new one, so at
// most one token per user is ever live.
func (r *ResetTokenRepo) Replace(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM password_reset_tokens WHERE user_id=?", userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO password_reset_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp.UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByHash looks a token up without mutating anything.
func (r *ResetTokenRepo) GetByHash(ctx context.Context, tokenHash string) (model.PasswordResetToken, error) {
	var t model.PasswordResetToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, expires_at, created_at FROM password_reset_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PasswordResetToken{}, ErrNotFound
	}
	return t, err
}

// Consume deletes the token and sets the new password hash in one
// transaction.  A token already deleted by a concurrent reset yields
// ErrNotFound and the password is left untouched.
func (r *ResetTokenRepo) Consume(ctx context.Context, token model.PasswordResetToken, passwordHash string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "DELETE FROM password_reset_tokens WHERE id=?", token.ID)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	res, err = tx.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=CURRENT_TIMESTAMP WHERE id=?", passwordHash, token.UserID)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}
