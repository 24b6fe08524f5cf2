package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/conference-cms/internal/service/servicetest"
)

type resetFixture struct {
	users  *UserService
	reset  *ResetService
	tokens *servicetest.ResetTokens
	notify *servicetest.Notifier
	now    time.Time
}

func newResetFixture(t *testing.T) *resetFixture {
	t.Helper()
	f := &resetFixture{notify: &servicetest.Notifier{}, now: time.Now()}
	users, store := newUserService()
	f.users = users
	f.tokens = servicetest.NewResetTokens(store)
	f.reset = &ResetService{
		Users:       store,
		Tokens:      f.tokens,
		Notify:      f.notify,
		TTLMin:      60,
		FrontendURL: "http://localhost:3000/",
		BcryptCost:  bcrypt.MinCost,
		Now:         func() time.Time { return f.now },
	}
	mustCreate(t, users, "ada@x.com", "secret1", "organizer")
	return f
}

func (f *resetFixture) lastRaw(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.notify.Resets)
	link := f.notify.Resets[len(f.notify.Resets)-1].Link
	require.True(t, strings.HasPrefix(link, "http://localhost:3000/reset-password/"), link)
	return strings.TrimPrefix(link, "http://localhost:3000/reset-password/")
}

func TestResetService_UnknownEmailIsSilent(t *testing.T) {
	f := newResetFixture(t)
	require.NoError(t, f.reset.RequestReset(context.Background(), "ghost@x.com"))
	assert.Empty(t, f.notify.Resets)
	assert.Equal(t, 0, f.tokens.Count())
}

func TestResetService_MailFailureIsHidden(t *testing.T) {
	f := newResetFixture(t)
	f.notify.Err = errors.New("broker down")
	assert.NoError(t, f.reset.RequestReset(context.Background(), "ada@x.com"))
	assert.Equal(t, 1, f.tokens.Count())
}

func TestResetService_NewRequestSupersedesOld(t *testing.T) {
	f := newResetFixture(t)
	ctx := context.Background()

	require.NoError(t, f.reset.RequestReset(ctx, "ada@x.com"))
	first := f.lastRaw(t)
	require.NoError(t, f.reset.RequestReset(ctx, "ada@x.com"))
	second := f.lastRaw(t)

	assert.Equal(t, 1, f.tokens.Count())
	assert.ErrorIs(t, f.reset.Verify(ctx, first), ErrInvalidToken)
	assert.NoError(t, f.reset.Verify(ctx, second))
}

func TestResetService_ResetIsSingleUse(t *testing.T) {
	f := newResetFixture(t)
	ctx := context.Background()
	require.NoError(t, f.reset.RequestReset(ctx, "ada@x.com"))
	raw := f.lastRaw(t)

	assert.ErrorIs(t, f.reset.Reset(ctx, raw, "short"), ErrWeakPassword)
	require.NoError(t, f.reset.Reset(ctx, raw, "longenough"))
	assert.ErrorIs(t, f.reset.Reset(ctx, raw, "longenough2"), ErrInvalidToken)

	_, _, err := f.users.Login(ctx, "ada@x.com", "longenough")
	assert.NoError(t, err)
	_, _, err = f.users.Login(ctx, "ada@x.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResetService_Expired(t *testing.T) {
	f := newResetFixture(t)
	ctx := context.Background()
	require.NoError(t, f.reset.RequestReset(ctx, "ada@x.com"))
	raw := f.lastRaw(t)

	f.now = f.now.Add(61 * time.Minute)
	assert.ErrorIs(t, f.reset.Verify(ctx, raw), ErrExpiredToken)
	assert.ErrorIs(t, f.reset.Reset(ctx, raw, "longenough"), ErrExpiredToken)
}

func TestResetService_UnknownToken(t *testing.T) {
	f := newResetFixture(t)
	ctx := context.Background()
	assert.ErrorIs(t, f.reset.Verify(ctx, ""), ErrInvalidToken)
	assert.ErrorIs(t, f.reset.Reset(ctx, "deadbeef", "longenough"), ErrInvalidToken)
}

func TestResetService_ExpiryFollowsServiceClock(t *testing.T) {
	f := newResetFixture(t)
	f.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, f.reset.RequestReset(context.Background(), "ada@x.com"))

	require.Len(t, f.notify.Resets, 1)
	assert.Equal(t, f.now.Add(time.Hour), f.notify.Resets[0].ExpiresAt)

	// still valid one minute before expiry, rejected at it
	raw := f.lastRaw(t)
	f.now = f.now.Add(59 * time.Minute)
	assert.NoError(t, f.reset.Verify(context.Background(), raw))
	f.now = f.now.Add(time.Minute)
	assert.ErrorIs(t, f.reset.Verify(context.Background(), raw), ErrExpiredToken)
}
