package handler

import (
    "context"
    "log"
    "mime/multipart"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/conference-cms/internal/authz"
    "github.com/iliyamo/conference-cms/internal/model"
    "github.com/iliyamo/conference-cms/internal/service"
)

// refs carries the ids a create request may reference: ID turns
// POST /drafts into an update, DraftID turns POST /events into a publish.
// Files are image uploads still to be stored.
type refs struct {
    ID      uint64
    DraftID uint64
    Files   []*multipart.FileHeader
}

// Binder decodes a request body into a content item.  It always returns a
// non-nil item on success and never touches storage; Files stays empty
// when refs.DraftID is set, since publishing ignores the body.
type Binder[P any] func(c echo.Context) (P, refs, error)

// ContentHandler serves drafts and published items of one kind through a
// service.ContentService.  All routes sit behind JWTAuth + RequireRole;
// the finer capability checks happen in the service.
// Images may be nil, in which case requests carrying files are rejected.
type ContentHandler[T any, P model.ContentPtr[T]] struct {
    Svc    *service.ContentService[T, P]
    Bind   Binder[P]
    Images ImageStore
}

func NewContentHandler[T any, P model.ContentPtr[T]](svc *service.ContentService[T, P], bind Binder[P], images ImageStore) *ContentHandler[T, P] {
    return &ContentHandler[T, P]{Svc: svc, Bind: bind, Images: images}
}

func timeout(c echo.Context) (context.Context, context.CancelFunc) {
    return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// persist runs save for item.  When the request carries files, check runs
// first and the files are uploaded only if it passes; uploads are deleted
// again if save fails.
func (h *ContentHandler[T, P]) persist(c echo.Context, item P, files []*multipart.FileHeader,
    check func(context.Context) error, save func(context.Context) (P, error)) (P, error) {
    var staged []string
    if len(files) > 0 {
        ctx, cancel := timeout(c)
        err := check(ctx)
        cancel()
        if err != nil {
            return nil, err
        }
        staged, err = h.stage(c.Request().Context(), item, files)
        if err != nil {
            h.discard(c, staged)
            return nil, err
        }
    }

    ctx, cancel := timeout(c)
    defer cancel()
    out, err := save(ctx)
    if err != nil {
        h.discard(c, staged)
        return nil, err
    }
    return out, nil
}

// stage uploads files and attaches their keys to item.  On error it
// returns the keys stored so far.
func (h *ContentHandler[T, P]) stage(ctx context.Context, item P, files []*multipart.FileHeader) ([]string, error) {
    owner, ok := any(item).(model.ImageOwner)
    if !ok {
        return nil, &service.FieldError{Msg: "images are not accepted here"}
    }
    if h.Images == nil {
        return nil, &service.FieldError{Msg: "image uploads are disabled"}
    }
    keys := make([]string, 0, len(files))
    for _, fh := range files {
        key, err := saveUpload(ctx, h.Images, fh)
        if err != nil {
            return keys, err
        }
        keys = append(keys, key)
    }
    owner.AddImages(keys...)
    return keys, nil
}

func (h *ContentHandler[T, P]) discard(c echo.Context, keys []string) {
    if len(keys) == 0 {
        return
    }
    ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), 10*time.Second)
    defer cancel()
    for _, k := range keys {
        if err := h.Images.Delete(ctx, k); err != nil {
            log.Printf("discard upload %s: %v", k, err)
        }
    }
}

// SaveDraft creates a draft, or updates the draft named by the body's id.
func (h *ContentHandler[T, P]) SaveDraft(c echo.Context) error {
    a, err := actor(c)
    if err != nil {
        return respondError(c, err)
    }
    item, r, err := h.Bind(c)
    if err != nil {
        return respondError(c, err)
    }

    if r.ID != 0 {
        out, err := h.editDraft(c, a, r.ID, item, r.Files)
        if err != nil {
            return respondError(c, err)
        }
        return c.JSON(http.StatusOK, out)
    }
    out, err := h.persist(c, item, r.Files,
        func(context.Context) error { return h.Svc.CheckCreate(a, model.StatusDraft, item) },
        func(ctx context.Context) (P, error) { return h.Svc.CreateDraft(ctx, a, item) })
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, out)
}

func (h *ContentHandler[T, P]) editDraft(c echo.Context, a authz.Actor, id uint64, item P, files []*multipart.FileHeader) (P, error) {
    return h.persist(c, item, files,
        func(ctx context.Context) error { return h.Svc.CheckEdit(ctx, a, id, model.StatusDraft, item) },
        func(ctx context.Context) (P, error) { return h.Svc.EditDraft(ctx, a, id, item) })
}

func (h *ContentHandler[T, P]) UpdateDraft(c echo.Context) error {
    a, err := actor(c)
    if err != nil {
        return respondError(c, err)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    item, r, err := h.Bind(c)
    if err != nil {
        return respondError(c, err)
    }

    out, err := h.editDraft(c, a, id, item, r.Files)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, out)
}

func (h *ContentHandler[T, P]) ListDrafts(c echo.Context) error {
    page, size := pageParams(c)
    ctx, cancel := timeout(c)
    defer cancel()

    out, err := h.Svc.ListDrafts(ctx, page, size)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, out)
}

func (h *ContentHandler[T, P]) GetDraft(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx, cancel := timeout(c)
    defer cancel()

    out, err := h.Svc.GetDraft(ctx, id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, out)
}

func (h *ContentHandler[T, P]) DeleteDraft(c echo.Context) error {
    a, err := actor(c)
    if err != nil {
        return respondError(c, err)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx, cancel := timeout(c)
    defer cancel()

    if err := h.Svc.DeleteDraft(ctx, a, id); err != nil {
        return respondError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// PublishDraft publishes the draft named in the path.
func (h *ContentHandler[T, P]) PublishDraft(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    return h.publish(c, id)
}

// Create publishes the draft named by draft_id, or creates an item
// directly in published state when no draft is referenced.
func (h *ContentHandler[T, P]) Create(c echo.Context) error {
    a, err := actor(c)
    if err != nil {
        return respondError(c, err)
    }
    item, r, err := h.Bind(c)
    if err != nil {
        return respondError(c, err)
    }
    if r.DraftID != 0 {
        return h.publish(c, r.DraftID)
    }

    out, err := h.persist(c, item, r.Files,
        func(context.Context) error { return h.Svc.CheckCreate(a, model.StatusPublished, item) },
        func(ctx context.Context) (P, error) { return h.Svc.CreatePublished(ctx, a, item) })
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, out)
}

func (h *ContentHandler[T, P]) publish(c echo.Context, id uint64) error {
    a, err := actor(c)
    if err != nil {
        return respondError(c, err)
    }
    ctx, cancel := timeout(c)
    defer cancel()

    out, err := h.Svc.Publish(ctx, a, id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, out)
}

func (h *ContentHandler[T, P]) List(c echo.Context) error {
    page, size := pageParams(c)
    ctx, cancel := timeout(c)
    defer cancel()

    out, err := h.Svc.ListPublished(ctx, page, size)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, out)
}

func (h *ContentHandler[T, P]) Get(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx, cancel := timeout(c)
    defer cancel()

    out, err := h.Svc.GetPublished(ctx, id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, out)
}

func (h *ContentHandler[T, P]) Update(c echo.Context) error {
    a, err := actor(c)
    if err != nil {
        return respondError(c, err)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    item, r, err := h.Bind(c)
    if err != nil {
        return respondError(c, err)
    }

    out, err := h.persist(c, item, r.Files,
        func(ctx context.Context) error { return h.Svc.CheckEdit(ctx, a, id, model.StatusPublished, item) },
        func(ctx context.Context) (P, error) { return h.Svc.EditPublished(ctx, a, id, item) })
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, out)
}

func (h *ContentHandler[T, P]) Delete(c echo.Context) error {
    a, err := actor(c)
    if err != nil {
        return respondError(c, err)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx, cancel := timeout(c)
    defer cancel()

    if err := h.Svc.DeletePublished(ctx, a, id); err != nil {
        return respondError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}
