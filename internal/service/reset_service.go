package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/conference-cms/internal/model"
	"github.com/iliyamo/conference-cms/internal/queue"
	"github.com/iliyamo/conference-cms/internal/repository"
	"github.com/iliyamo/conference-cms/internal/utils"
)

// ResetRequestedMessage is returned for every reset request so that the
// response never reveals whether an account exists.
const ResetRequestedMessage = "If that email is registered, a password reset link has been sent."

// ResetService drives the Requested -> Verified -> Consumed password reset
// flow.
type ResetService struct {
	Users       UserStore
	Tokens      ResetTokenStore
	Notify      Notifier
	TTLMin      int
	FrontendURL string
	BcryptCost  int
	Now         func() time.Time
}

func (s *ResetService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RequestReset issues a new token for email, replacing any older one, and
// queues the reset mail.  Unknown addresses are silently ignored.  Mail
// failures are logged only; they must not change what the caller sees.
func (s *ResetService) RequestReset(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return invalid("email is required")
	}
	u, err := s.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	raw, err := utils.NewResetToken()
	if err != nil {
		return err
	}
	exp := s.now().UTC().Add(time.Duration(s.TTLMin) * time.Minute)
	if err := s.Tokens.Replace(ctx, u.ID, utils.HashToken(raw), exp); err != nil {
		return err
	}

	msg := queue.PasswordResetMail{
		To:        u.Email,
		Link:      strings.TrimRight(s.FrontendURL, "/") + "/reset-password/" + raw,
		ExpiresAt: exp,
	}
	if s.Notify != nil {
		if err := s.Notify.PasswordReset(ctx, msg); err != nil {
			log.Printf("password reset: mail for user %d not sent: %v", u.ID, err)
		}
	}
	return nil
}

// Verify reports whether raw is a live token without consuming it.
func (s *ResetService) Verify(ctx context.Context, raw string) error {
	_, err := s.lookup(ctx, raw)
	return err
}

// Reset sets a new password and consumes the token.  Checks run in the
// order unknown token, expired token, weak password.
func (s *ResetService) Reset(ctx context.Context, raw, newPassword string) error {
	tok, err := s.lookup(ctx, raw)
	if err != nil {
		return err
	}
	if len(newPassword) < utils.MinResetPasswordLen {
		return ErrWeakPassword
	}
	hash, err := utils.HashPassword(newPassword, s.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.Tokens.Consume(ctx, tok, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	return nil
}

func (s *ResetService) lookup(ctx context.Context, raw string) (model.PasswordResetToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.PasswordResetToken{}, ErrInvalidToken
	}
	tok, err := s.Tokens.GetByHash(ctx, utils.HashToken(raw))
	if errors.Is(err, repository.ErrNotFound) {
		return model.PasswordResetToken{}, ErrInvalidToken
	}
	if err != nil {
		return model.PasswordResetToken{}, err
	}
	if tok.Expired(s.now()) {
		return model.PasswordResetToken{}, ErrExpiredToken
	}
	return tok, nil
}
