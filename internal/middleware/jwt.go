package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/conference-cms/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores the token's subject under "user_id" (as uint64).  The token says
// nothing about the caller's role; RequireRole resolves that from the
// database.  Missing and invalid tokens are both answered with 403.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

            id, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid or expired token"})
            }
            c.Set(userIDKey, id)
            return next(c)
        }
    }
}
