package middleware

// identity.go defines the context keys set by JWTAuth and RequireRole and
// the accessors handlers use to read them.

import (
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/conference-cms/internal/authz"
)

const (
    userIDKey = "user_id"
    actorKey  = "actor"
)

// UserID returns the authenticated user id stored by JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
    switch v := c.Get(userIDKey).(type) {
    case uint64:
        return v, v != 0
    case string:
        n, err := strconv.ParseUint(v, 10, 64)
        return n, err == nil && n != 0
    }
    return 0, false
}

// CurrentActor returns the caller with the role RequireRole loaded from the
// database.
func CurrentActor(c echo.Context) (authz.Actor, bool) {
    a, ok := c.Get(actorKey).(authz.Actor)
    return a, ok
}

// rateSubject identifies the caller for rate limit keys; "anon" before login.
func rateSubject(c echo.Context) string {
    if id, ok := UserID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "anon"
}
