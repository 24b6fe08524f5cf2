package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/conference-cms/internal/model"
)

const userColumns = "id, email, password_hash, account_type, created_at, updated_at"

// UserRepo is the credential store.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NormalizeEmail trims and lower-cases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a user with an already hashed password.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash, accountType string) (model.User, error) {
	email = NormalizeEmail(email)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, account_type) VALUES (?,?,?)",
		email, passwordHash, accountType)
	if err != nil {
		if isDuplicate(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email))
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// List returns every user ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateAccountType sets the role of a user.  Setting the current value
// again succeeds (the DSN enables clientFoundRows).
func (r *UserRepo) UpdateAccountType(ctx context.Context, id uint64, accountType string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET account_type=?, updated_at=CURRENT_TIMESTAMP WHERE id=?", accountType, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// UpdateCredentials replaces a user's email and password hash.
func (r *UserRepo) UpdateCredentials(ctx context.Context, id uint64, email, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email=?, password_hash=?, updated_at=CURRENT_TIMESTAMP WHERE id=?",
		NormalizeEmail(email), passwordHash, id)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	return requireAffected(res)
}

// Delete removes a user.  Reset tokens go with it via ON DELETE CASCADE.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.AccountType, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
