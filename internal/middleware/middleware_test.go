package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/conference-cms/internal/authz"
	"github.com/iliyamo/conference-cms/internal/config"
	"github.com/iliyamo/conference-cms/internal/repository"
	"github.com/iliyamo/conference-cms/internal/utils"
)

type mockLookup struct {
	mock.Mock
}

func (m *mockLookup) Actor(ctx context.Context, id uint64) (authz.Actor, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(authz.Actor), args.Error(1)
}

func okHandler(c echo.Context) error {
	id, _ := UserID(c)
	actor, _ := CurrentActor(c)
	return c.JSON(http.StatusOK, echo.Map{"user_id": id, "role": actor.Role})
}

func serve(h echo.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = h(c)
	return rec
}

func TestJWTAuth(t *testing.T) {
	tok, err := utils.NewAccessToken("secret", 7, 5)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusForbidden},
		{"not bearer", "Basic abc", http.StatusForbidden},
		{"bad token", "Bearer nope", http.StatusForbidden},
		{"valid", "Bearer " + tok.Token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := serve(JWTAuth("secret")(okHandler), req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Contains(t, rec.Body.String(), `"user_id":7`)
			} else {
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestRequireRoleReadsCurrentRole(t *testing.T) {
	tests := []struct {
		name  string
		actor authz.Actor
		err   error
		want  int
	}{
		{"meets threshold", authz.Actor{ID: 7, Role: authz.RoleSuperAdmin}, nil, http.StatusOK},
		{"demoted since login", authz.Actor{ID: 7, Role: authz.RoleAdmin}, nil, http.StatusForbidden},
		{"deleted account", authz.Actor{}, repository.ErrNotFound, http.StatusForbidden},
		{"garbage role", authz.Actor{}, authz.ErrUnknownRole, http.StatusForbidden},
		{"store failure", authz.Actor{}, errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(mockLookup)
			users.On("Actor", mock.Anything, uint64(7)).Return(tt.actor, tt.err).Once()

			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/users", nil), rec)
			c.Set("user_id", uint64(7))

			require.NoError(t, RequireRole(users, authz.RoleSuperAdmin)(okHandler)(c))
			assert.Equal(t, tt.want, rec.Code)
			users.AssertExpectations(t)
		})
	}
}

func TestRequireRoleWithoutIdentity(t *testing.T) {
	users := new(mockLookup)
	rec := serve(RequireRole(users, authz.RoleOrganizer)(okHandler), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	users.AssertNotCalled(t, "Actor", mock.Anything, mock.Anything)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/login")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_route"}
	assert.Equal(t, "rl:ip:10.0.0.1:route:POST /api/login", buildRateKey(cfg, c))

	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:anon", buildRateKey(cfg, c))
	c.Set("user_id", uint64(3))
	assert.Equal(t, "rl:user:3", buildRateKey(cfg, c))
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 0, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(1))
	assert.Equal(t, 6, retryAfterSeconds(5001))
}

func TestTokenBucketWithoutRedisPassesThrough(t *testing.T) {
	mw := NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil)
	rec := serve(mw(okHandler), httptest.NewRequest(http.MethodPost, "/api/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": []string{"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"items":[]}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"items":[]}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 0})
	assert.False(t, ok)
	_, _, _, ok = decodePayload([]byte{0, 0, 0, 200, 0, 0, 1, 0})
	assert.False(t, ok)
}

func TestCacheKeyDistinguishesQueryAndPath(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cms:public", KeyStrategy: "route_query"}
	key := func(target string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/api/public/events/:id")
		return cacheKeyFrom(cfg, c)
	}
	assert.NotEqual(t, key("/api/public/events/1"), key("/api/public/events/2"))
	assert.NotEqual(t, key("/api/public/events?page=1"), key("/api/public/events?page=2"))
	assert.Regexp(t, `^cms:public:[0-9a-f]{40}$`, key("/api/public/events/1"))
}

func TestResponseCacheDisabled(t *testing.T) {
	var nilCache *ResponseCache
	assert.NoError(t, nilCache.Purge(context.Background()))

	rc := NewResponseCache(config.CacheConfig{Enabled: true}, nil)
	assert.NoError(t, rc.Purge(context.Background()))
	rec := serve(rc.Middleware()(okHandler), httptest.NewRequest(http.MethodGet, "/api/public/events", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestCaptureWriterTruncates(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	assert.False(t, cw.truncated)
	_, _ = cw.Write([]byte("def"))
	assert.True(t, cw.truncated)
	assert.Equal(t, "abcdef", rec.Body.String())
}
