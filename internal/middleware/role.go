package middleware // middleware provides shared request processing for handlers

import (
    "context"
    "errors"
    "log"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/conference-cms/internal/authz"
    "github.com/iliyamo/conference-cms/internal/repository"
)

// ActorLookup resolves a user id to its current role.  service.UserService
// implements it against the users table.
type ActorLookup interface {
    Actor(ctx context.Context, id uint64) (authz.Actor, error)
}

// RequireRole returns a middleware that re-reads the caller's account on
// every request and rejects it with 403 unless its current role ranks at
// least min.  A demoted or deleted user therefore loses access immediately,
// whatever their token says.  It must run after JWTAuth; on success the
// resolved actor is available through CurrentActor.
func RequireRole(users ActorLookup, min authz.Role) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            id, ok := UserID(c)
            if !ok {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
            }

            ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
            defer cancel()
            actor, err := users.Actor(ctx, id)
            if err != nil {
                if errors.Is(err, repository.ErrNotFound) || errors.Is(err, authz.ErrUnknownRole) {
                    return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
                }
                log.Printf("role check for user %d failed: %v", id, err)
                return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
            }
            if !authz.AtLeast(actor.Role, min) {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
            }
            c.Set(actorKey, actor)
            return next(c)
        }
    }
}
