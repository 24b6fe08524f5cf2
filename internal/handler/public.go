package handler

import (
    "context"
    "errors"
    "io"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/conference-cms/internal/storage"
)

// PublicConfig returns the settings the public site needs at load time.
func PublicConfig(recaptchaSiteKey string) echo.HandlerFunc {
    return func(c echo.Context) error {
        return c.JSON(http.StatusOK, echo.Map{"recaptcha_site_key": recaptchaSiteKey})
    }
}

// ImageOpener reads stored images.  storage.ImageStore implements it.
type ImageOpener interface {
    Open(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// Image streams an uploaded image: GET /api/images/*.
func Image(store ImageOpener) echo.HandlerFunc {
    return func(c echo.Context) error {
        key := "images/" + c.Param("*")
        if store == nil || !storage.ValidKey(key) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
        }

        ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
        defer cancel()

        rc, ct, err := store.Open(ctx, key)
        if err != nil {
            if errors.Is(err, storage.ErrNotFound) {
                return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
            }
            return respondError(c, err)
        }
        defer rc.Close()
        c.Response().Header().Set("Cache-Control", "public, max-age=86400")
        return c.Stream(http.StatusOK, ct, rc)
    }
}
