package service

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/conference-cms/internal/authz"
	"github.com/iliyamo/conference-cms/internal/model"
	"github.com/iliyamo/conference-cms/internal/service/servicetest"
)

var (
	organizer  = authz.Actor{ID: 1, Role: authz.RoleOrganizer}
	organizer2 = authz.Actor{ID: 4, Role: authz.RoleOrganizer}
	admin      = authz.Actor{ID: 2, Role: authz.RoleAdmin}
	superAdmin = authz.Actor{ID: 3, Role: authz.RoleSuperAdmin}
)

type eventFixture struct {
	svc    *ContentService[model.Event, *model.Event]
	notify *servicetest.Notifier
	purger *servicetest.Purger
	images *servicetest.Images
}

func newEventFixture() *eventFixture {
	f := &eventFixture{notify: &servicetest.Notifier{}, purger: &servicetest.Purger{}, images: &servicetest.Images{}}
	f.svc = &ContentService[model.Event, *model.Event]{
		Kind:   "event",
		Store:  servicetest.NewContent[model.Event](),
		Notify: f.notify,
		Cache:  f.purger,
		Images: f.images,
	}
	return f
}

func TestContentService_DraftLifecycle(t *testing.T) {
	f := newEventFixture()
	ctx := context.Background()

	d, err := f.svc.CreateDraft(ctx, organizer, &model.Event{Title: "Opening"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, d.Status)
	assert.Equal(t, organizer.ID, d.CreatedBy)

	_, err = f.svc.EditDraft(ctx, organizer2, d.ID, &model.Event{Title: "Hijack"})
	assert.ErrorIs(t, err, ErrForbidden)

	e, err := f.svc.EditDraft(ctx, organizer, d.ID, &model.Event{Title: "Opening talk", Venue: "Hall A"})
	require.NoError(t, err)
	assert.Equal(t, "Opening talk", e.Title)
	assert.Equal(t, organizer.ID, e.CreatedBy)

	e, err = f.svc.EditDraft(ctx, admin, d.ID, &model.Event{Title: "Opening keynote"})
	require.NoError(t, err)
	assert.Equal(t, "Opening keynote", e.Title)

	_, err = f.svc.CreateDraft(ctx, organizer, &model.Event{})
	assert.ErrorIs(t, err, ErrValidation)

	assert.ErrorIs(t, f.svc.DeleteDraft(ctx, organizer2, d.ID), ErrForbidden)
	require.NoError(t, f.svc.DeleteDraft(ctx, organizer, d.ID))
	_, err = f.svc.GetDraft(ctx, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContentService_PublishRequiresPrivilege(t *testing.T) {
	f := newEventFixture()
	ctx := context.Background()
	d, err := f.svc.CreateDraft(ctx, organizer, &model.Event{Title: "Keynote"})
	require.NoError(t, err)

	_, err = f.svc.Publish(ctx, organizer, d.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Zero(t, f.purger.Count)

	p, err := f.svc.Publish(ctx, superAdmin, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, p.Status)
	assert.Equal(t, d.ID, p.ID)
	require.NotNil(t, p.PublishedBy)
	assert.Equal(t, superAdmin.ID, *p.PublishedBy)

	_, err = f.svc.GetDraft(ctx, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := f.svc.GetPublished(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Keynote", got.Title)

	_, err = f.svc.Publish(ctx, superAdmin, d.ID)
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, 1, f.purger.Count)
	require.Len(t, f.notify.Published, 1)
	assert.Equal(t, "event", f.notify.Published[0].Kind)
	assert.Equal(t, "Keynote", f.notify.Published[0].Title)
	assert.Equal(t, organizer.ID, f.notify.Published[0].CreatedBy)
}

func TestContentService_AdminMayPublish(t *testing.T) {
	f := newEventFixture()
	ctx := context.Background()
	d, err := f.svc.CreateDraft(ctx, organizer, &model.Event{Title: "Panel"})
	require.NoError(t, err)
	_, err = f.svc.Publish(ctx, admin, d.ID)
	assert.NoError(t, err)
}

func TestContentService_PublishedRules(t *testing.T) {
	f := newEventFixture()
	ctx := context.Background()

	_, err := f.svc.CreatePublished(ctx, organizer, &model.Event{Title: "Direct"})
	assert.ErrorIs(t, err, ErrForbidden)

	p, err := f.svc.CreatePublished(ctx, admin, &model.Event{Title: "Direct"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, p.Status)
	require.NotNil(t, p.PublishedAt)

	_, err = f.svc.EditPublished(ctx, organizer, p.ID, &model.Event{Title: "Changed"})
	assert.ErrorIs(t, err, ErrForbidden)
	e, err := f.svc.EditPublished(ctx, admin, p.ID, &model.Event{Title: "Changed"})
	require.NoError(t, err)
	assert.Equal(t, "Changed", e.Title)
	assert.Equal(t, model.StatusPublished, e.Status)

	assert.ErrorIs(t, f.svc.DeletePublished(ctx, admin, p.ID), ErrForbidden)
	require.NoError(t, f.svc.DeletePublished(ctx, superAdmin, p.ID))
	assert.ErrorIs(t, f.svc.DeletePublished(ctx, superAdmin, p.ID), ErrNotFound)

	// create, edit, delete
	assert.Equal(t, 3, f.purger.Count)
}

func (f *eventFixture) saveImages(t *testing.T, n int) []string {
	t.Helper()
	keys := make([]string, n)
	for i := range keys {
		k, err := f.images.Save(context.Background(), "image/png", strings.NewReader("png"), 3)
		require.NoError(t, err)
		keys[i] = k
	}
	return keys
}

func TestContentService_EditDropsReplacedImages(t *testing.T) {
	f := newEventFixture()
	ctx := context.Background()
	keys := f.saveImages(t, 3)

	d, err := f.svc.CreateDraft(ctx, organizer, &model.Event{Title: "Opening", Images: model.StringList(keys[:2])})
	require.NoError(t, err)

	// a rejected edit removes nothing
	_, err = f.svc.EditDraft(ctx, organizer2, d.ID, &model.Event{Title: "Opening"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, f.images.Deleted)

	_, err = f.svc.EditDraft(ctx, organizer, d.ID, &model.Event{Title: "Opening", Images: model.StringList{keys[1], keys[2]}})
	require.NoError(t, err)
	assert.Equal(t, []string{keys[0]}, f.images.Deleted)

	p, err := f.svc.Publish(ctx, superAdmin, d.ID)
	require.NoError(t, err)
	_, err = f.svc.EditPublished(ctx, admin, p.ID, &model.Event{Title: "Opening", Images: model.StringList{keys[2]}})
	require.NoError(t, err)
	assert.Equal(t, []string{keys[0], keys[1]}, f.images.Deleted)
}

func TestContentService_DeleteRemovesImages(t *testing.T) {
	f := newEventFixture()
	ctx := context.Background()
	keys := f.saveImages(t, 2)

	d, err := f.svc.CreateDraft(ctx, organizer, &model.Event{Title: "Draft", Images: model.StringList{keys[0]}})
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.DeleteDraft(ctx, organizer2, d.ID), ErrForbidden)
	require.NoError(t, f.svc.DeleteDraft(ctx, organizer, d.ID))
	assert.Equal(t, []string{keys[0]}, f.images.Deleted)

	p, err := f.svc.CreatePublished(ctx, admin, &model.Event{Title: "Live", Images: model.StringList{keys[1]}})
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.DeletePublished(ctx, admin, p.ID), ErrForbidden)
	require.NoError(t, f.svc.DeletePublished(ctx, superAdmin, p.ID))
	assert.Empty(t, f.images.Stored())
}

func TestContentService_Checks(t *testing.T) {
	f := newEventFixture()
	ctx := context.Background()

	assert.NoError(t, f.svc.CheckCreate(organizer, model.StatusDraft, &model.Event{Title: "A"}))
	assert.ErrorIs(t, f.svc.CheckCreate(organizer, model.StatusPublished, &model.Event{Title: "A"}), ErrForbidden)
	assert.ErrorIs(t, f.svc.CheckCreate(admin, model.StatusPublished, &model.Event{}), ErrValidation)

	d, err := f.svc.CreateDraft(ctx, organizer, &model.Event{Title: "A"})
	require.NoError(t, err)
	assert.NoError(t, f.svc.CheckEdit(ctx, organizer, d.ID, model.StatusDraft, &model.Event{Title: "B"}))
	assert.ErrorIs(t, f.svc.CheckEdit(ctx, organizer2, d.ID, model.StatusDraft, &model.Event{Title: "B"}), ErrForbidden)
	assert.ErrorIs(t, f.svc.CheckEdit(ctx, admin, d.ID, model.StatusPublished, &model.Event{Title: "B"}), ErrNotFound)
	assert.ErrorIs(t, f.svc.CheckEdit(ctx, organizer, d.ID, model.StatusPublished, &model.Event{Title: "B"}), ErrForbidden)

	got, err := f.svc.GetDraft(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)
}

func TestContentService_ListPaging(t *testing.T) {
	f := newEventFixture()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := f.svc.CreatePublished(ctx, superAdmin, &model.Event{Title: "E"})
		require.NoError(t, err)
	}
	_, err := f.svc.CreateDraft(ctx, organizer, &model.Event{Title: "draft"})
	require.NoError(t, err)

	page, err := f.svc.ListPublished(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.Page)

	drafts, err := f.svc.ListDrafts(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, drafts.Total)
	assert.Equal(t, DefaultPageSize, drafts.PageSize)
}

func TestNormalizePage(t *testing.T) {
	tests := []struct{ page, size, wantPage, wantSize int }{
		{0, 0, 1, DefaultPageSize},
		{3, 10, 3, 10},
		{-1, 500, 1, MaxPageSize},
		{math.MaxInt, 20, math.MaxInt32 / 20, 20},
		{math.MaxInt / 3, 0, math.MaxInt32 / DefaultPageSize, DefaultPageSize},
	}
	for _, tt := range tests {
		p, s := NormalizePage(tt.page, tt.size)
		assert.Equal(t, tt.wantPage, p)
		assert.Equal(t, tt.wantSize, s)
		assert.GreaterOrEqual(t, (p-1)*s, 0)
		assert.LessOrEqual(t, p*s, math.MaxInt32)
	}
}
