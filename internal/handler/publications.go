package handler

import (
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/conference-cms/internal/model"
    "github.com/iliyamo/conference-cms/internal/service"
)

type publicationReq struct {
    ID          uint64 `json:"id"`
    DraftID     uint64 `json:"draft_id"`
    Title       string `json:"title"`
    Date        string `json:"date"`
    Description string `json:"description"`
    Link        string `json:"link"`
}

// PublicationBinder decodes a JSON publication.
func PublicationBinder(c echo.Context) (*model.Publication, refs, error) {
    var req publicationReq
    if err := c.Bind(&req); err != nil {
        return nil, refs{}, &service.FieldError{Msg: "invalid body"}
    }
    p := &model.Publication{
        Title:       strings.TrimSpace(req.Title),
        Date:        req.Date,
        Description: req.Description,
        Link:        strings.TrimSpace(req.Link),
    }
    return p, refs{ID: req.ID, DraftID: req.DraftID}, nil
}
