package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/conference-cms/internal/authz"
    "github.com/iliyamo/conference-cms/internal/handler"
    "github.com/iliyamo/conference-cms/internal/middleware"
    "github.com/iliyamo/conference-cms/internal/model"
    "github.com/iliyamo/conference-cms/internal/service"
)

// Deps is everything the routes need.  Optional fields (DB, Images,
// RateLimit, Cache) may be left nil; the routes then degrade gracefully.
type Deps struct {
    JWTSecret        string
    RecaptchaSiteKey string

    DB           handler.Pinger
    Users        *service.UserService
    Reset        *service.ResetService
    Events       *service.ContentService[model.Event, *model.Event]
    Publications *service.ContentService[model.Publication, *model.Publication]

    Images      handler.ImageStore
    ImageOpener handler.ImageOpener

    RateLimit echo.MiddlewareFunc
    Cache     *middleware.ResponseCache
}

// Register mounts every route on e.
func Register(e *echo.Echo, d Deps) {
    rateLimit := d.RateLimit
    if rateLimit == nil {
        rateLimit = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    registerPublic(e, d)
    registerAuth(e, d, rateLimit)
    registerUsers(e, d)
    registerEvents(e, d)
    registerPublications(e, d)
}

// authed returns the middleware pair every protected route uses: verify the
// token, then load the caller's current role and require at least min.
func authed(d Deps, min authz.Role) []echo.MiddlewareFunc {
    return []echo.MiddlewareFunc{
        middleware.JWTAuth(d.JWTSecret),
        middleware.RequireRole(d.Users, min),
    }
}

func registerPublic(e *echo.Echo, d Deps) {
    e.GET("/healthz", handler.Health(d.DB))

    ev := handler.NewContentHandler(d.Events, handler.EventBinder, nil)
    pub := handler.NewContentHandler(d.Publications, handler.PublicationBinder, nil)

    // published content only; cached in Redis and purged on every change
    g := e.Group("/api/public", d.Cache.Middleware())
    g.GET("/config", handler.PublicConfig(d.RecaptchaSiteKey))
    g.GET("/events", ev.List)
    g.GET("/events/:id", ev.Get)
    g.GET("/publications", pub.List)
    g.GET("/publications/:id", pub.Get)

    e.GET("/api/images/*", handler.Image(d.ImageOpener))
}

func registerAuth(e *echo.Echo, d Deps, rateLimit echo.MiddlewareFunc) {
    a := handler.NewAuthHandler(d.Users, d.Reset)
    e.POST("/api/login", a.Login, rateLimit)
    e.POST("/api/request-password-reset", a.RequestPasswordReset, rateLimit)
    e.GET("/api/verify-reset-token/:token", a.VerifyResetToken)
    e.POST("/api/reset-password", a.ResetPassword, rateLimit)
    e.GET("/api/me", a.Me, authed(d, authz.RoleOrganizer)...)
}

func registerUsers(e *echo.Echo, d Deps) {
    u := handler.NewUserHandler(d.Users)

    // any role, own account only
    e.PUT("/api/users/update-profile", u.UpdateProfile, authed(d, authz.RoleOrganizer)...)

    g := e.Group("/api/users", authed(d, authz.RoleSuperAdmin)...)
    g.GET("", u.List)
    g.POST("", u.Create)
    g.POST("/:id/promote", u.Promote)
    g.POST("/:id/demote", u.Demote)
    g.DELETE("/:id", u.Delete)
}

func registerEvents(e *echo.Echo, d Deps) {
    h := handler.NewContentHandler(d.Events, handler.EventBinder, d.Images)
    // no group middleware here: a group-level Use on "/api" would also
    // catch unknown /api paths and answer them with 403 instead of 404
    mw := authed(d, authz.RoleOrganizer)
    g := e.Group("/api")

    g.POST("/drafts", h.SaveDraft, mw...)
    g.GET("/drafts", h.ListDrafts, mw...)
    g.GET("/drafts/:id", h.GetDraft, mw...)
    g.PUT("/drafts/:id", h.UpdateDraft, mw...)
    g.DELETE("/drafts/:id", h.DeleteDraft, mw...)
    g.POST("/drafts/:id/publish", h.PublishDraft, mw...)

    g.POST("/events", h.Create, mw...)
    g.GET("/events", h.List, mw...)
    g.GET("/events/:id", h.Get, mw...)
    g.PUT("/events/:id", h.Update, mw...)
    g.DELETE("/events/:id", h.Delete, mw...)
}

func registerPublications(e *echo.Echo, d Deps) {
    h := handler.NewContentHandler(d.Publications, handler.PublicationBinder, nil)
    g := e.Group("/api/publications", authed(d, authz.RoleAdmin)...)

    g.GET("/drafts", h.ListDrafts)
    g.POST("/drafts", h.SaveDraft)
    g.GET("/drafts/:id", h.GetDraft)
    g.PUT("/drafts/:id", h.UpdateDraft)
    g.DELETE("/drafts/:id", h.DeleteDraft)
    g.POST("/drafts/:id/publish", h.PublishDraft)

    g.GET("", h.List)
    g.POST("", h.Create)
    g.GET("/:id", h.Get)
    g.PUT("/:id", h.Update)
    g.DELETE("/:id", h.Delete)
}
