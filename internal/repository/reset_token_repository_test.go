package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/conference-cms/internal/model"
)

func TestResetTokenRepo_ReplaceDropsOlderTokens(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	exp := time.Now().Add(time.Hour)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM password_reset_tokens WHERE user_id").
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO password_reset_tokens").
		WithArgs(3, "abc", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectCommit()

	require.NoError(t, NewResetTokenRepo(db).Replace(context.Background(), 3, "abc", exp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetTokenRepo_GetByHashNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, user_id, token_hash").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "created_at"}))

	_, err = NewResetTokenRepo(db).GetByHash(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResetTokenRepo_Consume(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tok := model.PasswordResetToken{ID: 5, UserID: 3}
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM password_reset_tokens WHERE id").
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs("newhash", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewResetTokenRepo(db).Consume(context.Background(), tok, "newhash"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetTokenRepo_ConsumeAlreadyUsed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM password_reset_tokens WHERE id").
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = NewResetTokenRepo(db).Consume(context.Background(), model.PasswordResetToken{ID: 5, UserID: 3}, "newhash")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
