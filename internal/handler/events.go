package handler

import (
    "context"
    "io"
    "mime/multipart"
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/conference-cms/internal/model"
    "github.com/iliyamo/conference-cms/internal/service"
    "github.com/iliyamo/conference-cms/internal/storage"
)

// ImageStore stores uploaded images and removes them again when the
// request that uploaded them fails.  storage.ImageStore implements it.
type ImageStore interface {
    Save(ctx context.Context, contentType string, r io.Reader, size int64) (string, error)
    Delete(ctx context.Context, key string) error
}

// maxUploadImages caps the number of files one request may attach.
const maxUploadImages = 10

type eventReq struct {
    ID          uint64   `json:"id"`
    DraftID     uint64   `json:"draft_id"`
    Title       string   `json:"title"`
    Date        string   `json:"date"`
    StartTime   string   `json:"start_time"`
    EndTime     string   `json:"end_time"`
    Venue       string   `json:"venue"`
    Speakers    string   `json:"speakers"`
    Theme       string   `json:"theme"`
    Category    string   `json:"category"`
    Description string   `json:"description"`
    Images      []string `json:"images"`
}

func (r eventReq) event() *model.Event {
    return &model.Event{
        Title:       strings.TrimSpace(r.Title),
        Date:        r.Date,
        StartTime:   r.StartTime,
        EndTime:     r.EndTime,
        Venue:       r.Venue,
        Speakers:    r.Speakers,
        Theme:       r.Theme,
        Category:    r.Category,
        Description: r.Description,
        Images:      model.StringList(r.Images),
    }
}

// EventBinder accepts JSON or a multipart form.  In a form, repeated
// "images" values keep previously uploaded keys and "images" file parts
// are returned in refs.Files for the handler to upload once the request
// has passed its checks.
func EventBinder(c echo.Context) (*model.Event, refs, error) {
    ct := c.Request().Header.Get(echo.HeaderContentType)
    if !strings.HasPrefix(ct, echo.MIMEMultipartForm) && !strings.HasPrefix(ct, echo.MIMEApplicationForm) {
        var req eventReq
        if err := c.Bind(&req); err != nil {
            return nil, refs{}, &service.FieldError{Msg: "invalid body"}
        }
        req.Images = cleanKeys(req.Images)
        return req.event(), refs{ID: req.ID, DraftID: req.DraftID}, nil
    }

    r := refs{ID: formID(c, "id"), DraftID: formID(c, "draft_id")}
    req := eventReq{
        Title:       c.FormValue("title"),
        Date:        c.FormValue("date"),
        StartTime:   c.FormValue("start_time"),
        EndTime:     c.FormValue("end_time"),
        Venue:       c.FormValue("venue"),
        Speakers:    c.FormValue("speakers"),
        Theme:       c.FormValue("theme"),
        Category:    c.FormValue("category"),
        Description: c.FormValue("description"),
    }
    form, err := c.MultipartForm()
    if err != nil {
        // urlencoded bodies have no files
        if params, perr := c.FormParams(); perr == nil {
            req.Images = cleanKeys(params["images"])
        }
        return req.event(), r, nil
    }
    req.Images = cleanKeys(form.Value["images"])
    if r.DraftID != 0 {
        return req.event(), r, nil
    }

    files := form.File["images"]
    if len(files) > maxUploadImages {
        return nil, refs{}, &service.FieldError{Msg: "too many images"}
    }
    for _, fh := range files {
        if fh.Size > storage.MaxImageSize {
            return nil, refs{}, storage.ErrImageTooLarge
        }
    }
    r.Files = files
    return req.event(), r, nil
}

func saveUpload(ctx context.Context, store ImageStore, fh *multipart.FileHeader) (string, error) {
    f, err := fh.Open()
    if err != nil {
        return "", err
    }
    defer f.Close()

    ct := fh.Header.Get(echo.HeaderContentType)
    if ct == "" || ct == "application/octet-stream" {
        head := make([]byte, 512)
        n, _ := io.ReadFull(f, head)
        ct = http.DetectContentType(head[:n])
        if _, err := f.Seek(0, io.SeekStart); err != nil {
            return "", err
        }
    }
    return store.Save(ctx, ct, f, fh.Size)
}

// cleanKeys keeps only keys that look like ones we issued.
func cleanKeys(vals []string) []string {
    out := make([]string, 0, len(vals))
    for _, v := range vals {
        if v = strings.TrimSpace(v); storage.ValidKey(v) {
            out = append(out, v)
        }
    }
    return out
}

func formID(c echo.Context, name string) uint64 {
    id, _ := strconv.ParseUint(strings.TrimSpace(c.FormValue(name)), 10, 64)
    return id
}
