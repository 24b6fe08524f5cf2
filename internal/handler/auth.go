package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/conference-cms/internal/middleware"
    "github.com/iliyamo/conference-cms/internal/model"
    "github.com/iliyamo/conference-cms/internal/service"
)

// AuthHandler serves login, the current user and the password reset flow.
type AuthHandler struct {
    Users *service.UserService
    Reset *service.ResetService
}

func NewAuthHandler(u *service.UserService, r *service.ResetService) *AuthHandler {
    return &AuthHandler{Users: u, Reset: r}
}

type loginReq struct {
    Email    string `json:"email"`
    Password string `json:"password"`
}

type loginResp struct {
    Token   string     `json:"token"`
    Expires time.Time  `json:"expires"`
    User    model.User `json:"user"`
}

type emailReq struct {
    Email string `json:"email"`
}

type resetReq struct {
    Token       string `json:"token"`
    NewPassword string `json:"new_password"`
    Password    string `json:"password"` // accepted as an alias of new_password
}

// Login: verify credentials and return an access token.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    tok, u, err := h.Users.Login(ctx, req.Email, req.Password)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, loginResp{Token: tok.Token, Expires: tok.Exp, User: u})
}

// Me returns the authenticated user's account.
func (h *AuthHandler) Me(c echo.Context) error {
    id, ok := middleware.UserID(c)
    if !ok {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.Get(ctx, id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, u)
}

// RequestPasswordReset always answers with the same message so the
// response does not reveal which accounts exist.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
    var req emailReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Reset.RequestReset(ctx, req.Email); err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": service.ResetRequestedMessage})
}

// VerifyResetToken checks a token without consuming it.
func (h *AuthHandler) VerifyResetToken(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Reset.Verify(ctx, c.Param("token")); err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"valid": true})
}

// ResetPassword consumes a token and sets the new password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
    var req resetReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    pw := req.NewPassword
    if pw == "" {
        pw = req.Password
    }
    if err := h.Reset.Reset(ctx, req.Token, pw); err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "password has been reset"})
}
