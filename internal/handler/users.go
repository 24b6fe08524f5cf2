package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/conference-cms/internal/authz"
    "github.com/iliyamo/conference-cms/internal/middleware"
    "github.com/iliyamo/conference-cms/internal/model"
    "github.com/iliyamo/conference-cms/internal/service"
)

// UserHandler exposes account administration.  Routes are mounted behind
// RequireRole(super_admin) except UpdateProfile, which any role may call
// for their own account.
type UserHandler struct {
    Users *service.UserService
}

func NewUserHandler(u *service.UserService) *UserHandler { return &UserHandler{Users: u} }

func (h *UserHandler) List(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    users, err := h.Users.List(ctx)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Create(c echo.Context) error {
    var req service.NewUser
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.Create(ctx, req)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, u)
}

func (h *UserHandler) Promote(c echo.Context) error {
    return h.changeRole(c, h.Users.Promote)
}

func (h *UserHandler) Demote(c echo.Context) error {
    return h.changeRole(c, h.Users.Demote)
}

func (h *UserHandler) Delete(c echo.Context) error {
    a, err := actor(c)
    if err != nil {
        return respondError(c, err)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Users.Delete(ctx, a, id); err != nil {
        return respondError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// UpdateProfile changes the caller's own email and/or password.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
    id, ok := middleware.UserID(c)
    if !ok {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }
    var req service.ProfileUpdate
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.UpdateProfile(ctx, id, req)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) changeRole(c echo.Context, change func(context.Context, authz.Actor, uint64) (model.User, error)) error {
    a, err := actor(c)
    if err != nil {
        return respondError(c, err)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := change(ctx, a, id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, u)
}
