package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"

	"github.com/iliyamo/conference-cms/internal/authz"
	"github.com/iliyamo/conference-cms/internal/model"
	"github.com/iliyamo/conference-cms/internal/repository"
	"github.com/iliyamo/conference-cms/internal/utils"
)

// UserService manages accounts and issues access tokens.
type UserService struct {
	Users        UserStore
	JWTSecret    string
	AccessTTLMin int
	BcryptCost   int

	decoyOnce sync.Once
	decoy     string
}

// NewUser is the input for account creation.
type NewUser struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	AccountType string `json:"account_type"`
}

// ProfileUpdate changes the caller's own email and/or password.  Empty
// fields keep their current value.
type ProfileUpdate struct {
	Email           string `json:"email"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login checks credentials and returns a signed identity token.  Unknown
// email and wrong password yield the same error.
func (s *UserService) Login(ctx context.Context, email, password string) (utils.AccessToken, model.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return utils.AccessToken{}, model.User{}, invalid("email and password are required")
	}
	u, err := s.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		// same bcrypt work as a wrong password
		utils.VerifyPassword(s.decoyHash(), password)
		return utils.AccessToken{}, model.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return utils.AccessToken{}, model.User{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return utils.AccessToken{}, model.User{}, ErrInvalidCredentials
	}
	tok, err := utils.NewAccessToken(s.JWTSecret, u.ID, s.AccessTTLMin)
	if err != nil {
		return utils.AccessToken{}, model.User{}, err
	}
	return tok, u, nil
}

// Get returns one account.
func (s *UserService) Get(ctx context.Context, id uint64) (model.User, error) {
	return s.Users.GetByID(ctx, id)
}

// Actor resolves the current role of a user from the credential store.
func (s *UserService) Actor(ctx context.Context, id uint64) (authz.Actor, error) {
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		return authz.Actor{}, err
	}
	role, ok := authz.ParseRole(u.AccountType)
	if !ok {
		return authz.Actor{}, authz.ErrUnknownRole
	}
	return authz.Actor{ID: u.ID, Role: role}, nil
}

// List returns every account.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.Users.List(ctx)
}

// Create validates and stores a new account.  The route is gated to
// super_admin; the CLI calls it directly to bootstrap the first account.
func (s *UserService) Create(ctx context.Context, in NewUser) (model.User, error) {
	email := repository.NormalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return model.User{}, err
	}
	if len(in.Password) < utils.MinPasswordLen {
		return model.User{}, invalid("password must be at least 6 characters")
	}
	role := authz.RoleOrganizer
	if in.AccountType != "" {
		r, ok := authz.ParseRole(in.AccountType)
		if !ok {
			return model.User{}, invalid("account_type must be organizer, admin or super_admin")
		}
		role = r
	}
	hash, err := utils.HashPassword(in.Password, s.BcryptCost)
	if err != nil {
		return model.User{}, err
	}
	return s.Users.Create(ctx, email, hash, string(role))
}

// Promote makes the target a super_admin.  Promoting a super_admin again
// is a no-op.
func (s *UserService) Promote(ctx context.Context, actor authz.Actor, targetID uint64) (model.User, error) {
	target, err := s.targetForRoleChange(ctx, actor, targetID)
	if err != nil {
		return model.User{}, err
	}
	return s.setRole(ctx, target, authz.RoleSuperAdmin)
}

// Demote sets a super_admin or admin target to admin.  Organizers are
// already below admin and cannot be demoted.
func (s *UserService) Demote(ctx context.Context, actor authz.Actor, targetID uint64) (model.User, error) {
	target, err := s.targetForRoleChange(ctx, actor, targetID)
	if err != nil {
		return model.User{}, err
	}
	if !authz.AtLeast(authz.Role(target.AccountType), authz.RoleAdmin) {
		return model.User{}, invalid("only admins and super admins can be demoted")
	}
	return s.setRole(ctx, target, authz.RoleAdmin)
}

// Delete removes the target account.
func (s *UserService) Delete(ctx context.Context, actor authz.Actor, targetID uint64) error {
	if _, err := s.targetForRoleChange(ctx, actor, targetID); err != nil {
		return err
	}
	return s.Users.Delete(ctx, targetID)
}

// UpdateProfile changes the caller's own credentials after re-checking the
// current password.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint64, in ProfileUpdate) (model.User, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	if in.CurrentPassword == "" {
		return model.User{}, invalid("current_password is required")
	}
	if !utils.VerifyPassword(u.PasswordHash, in.CurrentPassword) {
		return model.User{}, ErrInvalidCredentials
	}

	email := u.Email
	if strings.TrimSpace(in.Email) != "" {
		email = repository.NormalizeEmail(in.Email)
		if err := validateEmail(email); err != nil {
			return model.User{}, err
		}
	}
	hash := u.PasswordHash
	if in.NewPassword != "" {
		if len(in.NewPassword) < utils.MinPasswordLen {
			return model.User{}, invalid("password must be at least 6 characters")
		}
		if hash, err = utils.HashPassword(in.NewPassword, s.BcryptCost); err != nil {
			return model.User{}, err
		}
	}
	if email == u.Email && in.NewPassword == "" {
		return model.User{}, invalid("nothing to update")
	}

	if err := s.Users.UpdateCredentials(ctx, userID, email, hash); err != nil {
		return model.User{}, err
	}
	return s.Users.GetByID(ctx, userID)
}

// targetForRoleChange applies the checks shared by promote, demote and
// delete: caller is super_admin, target is not the caller, target exists.
func (s *UserService) targetForRoleChange(ctx context.Context, actor authz.Actor, targetID uint64) (model.User, error) {
	if err := authz.ForbidSelfTarget(actor.ID, targetID); err != nil {
		return model.User{}, err
	}
	if !authz.AtLeast(actor.Role, authz.RoleSuperAdmin) {
		return model.User{}, ErrForbidden
	}
	return s.Users.GetByID(ctx, targetID)
}

func (s *UserService) setRole(ctx context.Context, target model.User, role authz.Role) (model.User, error) {
	if target.AccountType == string(role) {
		return target, nil
	}
	if err := s.Users.UpdateAccountType(ctx, target.ID, string(role)); err != nil {
		return model.User{}, err
	}
	target.AccountType = string(role)
	return target, nil
}

// decoyHash is a hash at the configured cost that no password matches.
func (s *UserService) decoyHash() string {
	s.decoyOnce.Do(func() {
		random, _ := utils.NewResetToken()
		s.decoy, _ = utils.HashPassword(random, s.BcryptCost)
	})
	return s.decoy
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("email is not valid")
	}
	return nil
}
