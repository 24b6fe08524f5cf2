package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/conference-cms/internal/authz"
	"github.com/iliyamo/conference-cms/internal/model"
	"github.com/iliyamo/conference-cms/internal/service"
	"github.com/iliyamo/conference-cms/internal/service/servicetest"
	"github.com/iliyamo/conference-cms/internal/storage"
)

func TestRespondError(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{&service.FieldError{Msg: "title is required"}, http.StatusBadRequest},
		{service.ErrConflict, http.StatusBadRequest},
		{service.ErrWeakPassword, http.StatusBadRequest},
		{service.ErrExpiredToken, http.StatusBadRequest},
		{storage.ErrUnsupportedImage, http.StatusBadRequest},
		{service.ErrInvalidCredentials, http.StatusForbidden},
		{service.ErrInvalidOperation, http.StatusForbidden},
		{fmt.Errorf("publish: %w", service.ErrForbidden), http.StatusForbidden},
		{service.ErrNotFound, http.StatusNotFound},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	e := echo.New()
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		require.NoError(t, respondError(c, tc.err))
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
		assert.Contains(t, rec.Body.String(), `"error"`)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, respondError(c, errors.New("dial tcp 10.0.0.5:3306")))
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

type fakeImages struct {
	saved   []string
	types   []string
	deleted []string
}

func (f *fakeImages) Save(_ context.Context, contentType string, r io.Reader, size int64) (string, error) {
	key, err := storage.NewImageKey(contentType, size)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	f.saved = append(f.saved, key)
	f.types = append(f.types, contentType)
	return key, nil
}

func (f *fakeImages) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

func multipartContext(t *testing.T, fields map[string][]string, files int) echo.Context {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, vals := range fields {
		for _, v := range vals {
			require.NoError(t, w.WriteField(k, v))
		}
	}
	for i := 0; i < files; i++ {
		fw, err := w.CreateFormFile("images", fmt.Sprintf("photo%d.png", i))
		require.NoError(t, err)
		_, err = fw.Write(pngBytes)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/drafts", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestEventBinderMultipart(t *testing.T) {
	kept := "images/" + uuid.NewString() + ".jpg"
	c := multipartContext(t, map[string][]string{
		"title":  {"  Keynote  "},
		"venue":  {"Hall A"},
		"images": {kept, "../../etc/passwd"},
	}, 2)

	ev, r, err := EventBinder(c)
	require.NoError(t, err)
	assert.Zero(t, r.ID)
	assert.Zero(t, r.DraftID)
	assert.Len(t, r.Files, 2)
	assert.Equal(t, "Keynote", ev.Title)
	assert.Equal(t, "Hall A", ev.Venue)
	// uploads are attached by the handler, not the binder
	assert.Equal(t, []string{kept}, []string(ev.Images))
}

func TestEventBinderTooManyImages(t *testing.T) {
	c := multipartContext(t, map[string][]string{"title": {"Keynote"}}, maxUploadImages+1)
	_, _, err := EventBinder(c)
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestEventBinderPublishSkipsUploads(t *testing.T) {
	c := multipartContext(t, map[string][]string{"draft_id": {"7"}}, 1)
	_, r, err := EventBinder(c)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), r.DraftID)
	assert.Empty(t, r.Files)
}

func TestEventBinderJSON(t *testing.T) {
	kept := "images/" + uuid.NewString() + ".webp"
	req := httptest.NewRequest(http.MethodPost, "/api/drafts",
		bytes.NewBufferString(`{"id":3,"title":"Panel","images":["`+kept+`","http://evil/x.png"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := echo.New().NewContext(req, httptest.NewRecorder())

	ev, r, err := EventBinder(c)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), r.ID)
	assert.Empty(t, r.Files)
	assert.Equal(t, "Panel", ev.Title)
	assert.Equal(t, []string{kept}, []string(ev.Images))
}

type eventHandlerFixture struct {
	h      *ContentHandler[model.Event, *model.Event]
	store  *servicetest.Content[model.Event, *model.Event]
	images *fakeImages
}

func newEventHandlerFixture() *eventHandlerFixture {
	store := servicetest.NewContent[model.Event]()
	images := &fakeImages{}
	svc := &service.ContentService[model.Event, *model.Event]{
		Kind:   "event",
		Store:  store,
		Notify: &servicetest.Notifier{},
		Images: images,
	}
	return &eventHandlerFixture{h: NewContentHandler(svc, EventBinder, images), store: store, images: images}
}

func asActor(c echo.Context, a authz.Actor) echo.Context {
	c.Set("actor", a)
	return c
}

func TestSaveDraftStoresUploads(t *testing.T) {
	f := newEventHandlerFixture()
	c := asActor(multipartContext(t, map[string][]string{"title": {"Keynote"}}, 2), authz.Actor{ID: 1, Role: authz.RoleOrganizer})

	require.NoError(t, f.h.SaveDraft(c))
	rec := c.Response().Writer.(*httptest.ResponseRecorder)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Len(t, f.images.saved, 2)
	assert.Equal(t, []string{"image/png", "image/png"}, f.images.types)
	assert.Empty(t, f.images.deleted)

	var got model.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, f.images.saved, []string(got.Images))
}

func TestUploadsWaitForChecks(t *testing.T) {
	organizer := authz.Actor{ID: 1, Role: authz.RoleOrganizer}
	cases := []struct {
		name   string
		fields map[string][]string
		actor  authz.Actor
		call   func(h *ContentHandler[model.Event, *model.Event]) echo.HandlerFunc
		code   int
	}{
		{"organizer creating published", map[string][]string{"title": {"Keynote"}}, organizer,
			func(h *ContentHandler[model.Event, *model.Event]) echo.HandlerFunc { return h.Create }, http.StatusForbidden},
		{"missing title", map[string][]string{"venue": {"Hall A"}}, organizer,
			func(h *ContentHandler[model.Event, *model.Event]) echo.HandlerFunc { return h.SaveDraft }, http.StatusBadRequest},
		{"unknown draft", map[string][]string{"id": {"99"}, "title": {"Keynote"}}, organizer,
			func(h *ContentHandler[model.Event, *model.Event]) echo.HandlerFunc { return h.SaveDraft }, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newEventHandlerFixture()
			c := asActor(multipartContext(t, tc.fields, 1), tc.actor)
			require.NoError(t, tc.call(f.h)(c))
			assert.Equal(t, tc.code, c.Response().Status)
			assert.Empty(t, f.images.saved)
		})
	}
}

func TestFailedSaveDiscardsUploads(t *testing.T) {
	f := newEventHandlerFixture()
	f.store.CreateErr = errors.New("deadlock found when trying to get lock")
	c := asActor(multipartContext(t, map[string][]string{"title": {"Keynote"}}, 2), authz.Actor{ID: 1, Role: authz.RoleOrganizer})

	require.NoError(t, f.h.SaveDraft(c))
	assert.Equal(t, http.StatusInternalServerError, c.Response().Status)
	require.Len(t, f.images.saved, 2)
	assert.ElementsMatch(t, f.images.saved, f.images.deleted)
}

func TestUploadsDisabled(t *testing.T) {
	f := newEventHandlerFixture()
	f.h.Images = nil
	c := asActor(multipartContext(t, map[string][]string{"title": {"Keynote"}}, 1), authz.Actor{ID: 1, Role: authz.RoleOrganizer})

	require.NoError(t, f.h.SaveDraft(c))
	assert.Equal(t, http.StatusBadRequest, c.Response().Status)
	_, total, err := f.store.List(context.Background(), model.StatusDraft, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

type fakeOpener map[string]string

func (f fakeOpener) Open(_ context.Context, key string) (io.ReadCloser, string, error) {
	body, ok := f[key]
	if !ok {
		return nil, "", storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewBufferString(body)), "image/png", nil
}

func TestImage(t *testing.T) {
	name := uuid.NewString() + ".png"
	opener := fakeOpener{"images/" + name: "png-bytes"}
	e := echo.New()
	e.GET("/api/images/*", Image(opener))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/images/"+name, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.NotEmpty(t, rec.Header().Get("Cache-Control"))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/images/"+uuid.NewString()+".png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/images/not-a-key.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
