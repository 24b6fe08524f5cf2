// Package service holds the business rules: who may do what to users and
// content, the draft/publish lifecycle and the password reset flow.
package service

import (
	"errors"

	"github.com/iliyamo/conference-cms/internal/authz"
	"github.com/iliyamo/conference-cms/internal/repository"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidOperation   = authz.ErrInvalidOperation
	ErrInvalidToken       = errors.New("invalid or already used token")
	ErrExpiredToken       = errors.New("token has expired")
	ErrWeakPassword       = errors.New("password is too short")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotFound           = repository.ErrNotFound
	ErrConflict           = repository.ErrEmailExists
)

// FieldError is a validation failure whose message is safe to show to the
// client.  errors.Is(err, ErrValidation) holds for every FieldError.
type FieldError struct{ Msg string }

func (e *FieldError) Error() string        { return e.Msg }
func (e *FieldError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error { return &FieldError{Msg: msg} }
