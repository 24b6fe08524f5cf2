package handler

import (
    "errors"
    "log"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/conference-cms/internal/authz"
    "github.com/iliyamo/conference-cms/internal/middleware"
    "github.com/iliyamo/conference-cms/internal/service"
    "github.com/iliyamo/conference-cms/internal/storage"
)

// respondError converts a service error to the JSON {"error": msg} reply.
// Unexpected errors are logged in full and reported as a generic 500.
func respondError(c echo.Context, err error) error {
    var fe *service.FieldError
    switch {
    case errors.As(err, &fe):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": fe.Msg})
    case errors.Is(err, service.ErrConflict):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "email already exists"})
    case errors.Is(err, service.ErrWeakPassword):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
    case errors.Is(err, service.ErrInvalidToken),
        errors.Is(err, service.ErrExpiredToken):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.Is(err, storage.ErrUnsupportedImage),
        errors.Is(err, storage.ErrImageTooLarge):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrInvalidCredentials):
        return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrInvalidOperation):
        return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case errors.Is(err, service.ErrNotFound),
        errors.Is(err, storage.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
    }
    log.Printf("%s %s: %v", c.Request().Method, c.Path(), err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    return id, err == nil && id > 0
}

// pageParams reads ?page and ?page_size; bad values fall back to defaults.
func pageParams(c echo.Context) (int, int) {
    page, _ := strconv.Atoi(c.QueryParam("page"))
    size, _ := strconv.Atoi(c.QueryParam("page_size"))
    return service.NormalizePage(page, size)
}

// actor returns the caller resolved by RequireRole.
func actor(c echo.Context) (authz.Actor, error) {
    a, ok := middleware.CurrentActor(c)
    if !ok {
        return authz.Actor{}, service.ErrForbidden
    }
    return a, nil
}
