package service

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"github.com/iliyamo/conference-cms/internal/authz"
	"github.com/iliyamo/conference-cms/internal/model"
	"github.com/iliyamo/conference-cms/internal/queue"
	"github.com/iliyamo/conference-cms/internal/repository"
)

// Paging defaults for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NormalizePage clamps page and pageSize into their valid ranges.  page is
// capped so that page*pageSize, and with it the SQL offset, fits in an
// int32.
func NormalizePage(page, pageSize int) (int, int) {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	if maxPage := math.MaxInt32 / pageSize; page > maxPage {
		page = maxPage
	}
	return page, pageSize
}

// Page is one page of a listing.
type Page[P any] struct {
	Items    []P `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// ContentService implements the draft/publish lifecycle for one content
// kind.  Every mutating call takes the actor so that capability checks
// happen here, next to the state transition they guard.
type ContentService[T any, P model.ContentPtr[T]] struct {
	Kind   string
	Store  ContentStore[T, P]
	Notify Notifier
	Cache  CachePurger
	Images ImageRemover
	Now    func() time.Time
}

func (s *ContentService[T, P]) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// CheckCreate reports whether actor may create item in the given status,
// running the same checks as CreateDraft and CreatePublished without
// storing anything.
func (s *ContentService[T, P]) CheckCreate(actor authz.Actor, status model.Status, item P) error {
	allowed := authz.CanPublish(actor.Role)
	if status == model.StatusDraft {
		allowed = authz.AtLeast(actor.Role, authz.RoleOrganizer)
	}
	if !allowed {
		return ErrForbidden
	}
	if err := item.Validate(); err != nil {
		return invalid(err.Error())
	}
	return nil
}

// CheckEdit reports whether actor may replace item id in the given status
// with item, running the same checks as EditDraft and EditPublished.
func (s *ContentService[T, P]) CheckEdit(ctx context.Context, actor authz.Actor, id uint64, status model.Status, item P) error {
	_, err := s.editable(ctx, actor, id, status, item)
	return err
}

// CreateDraft stores item as a draft owned by the actor.
func (s *ContentService[T, P]) CreateDraft(ctx context.Context, actor authz.Actor, item P) (P, error) {
	if err := s.CheckCreate(actor, model.StatusDraft, item); err != nil {
		return nil, err
	}
	m := item.ContentMeta()
	*m = model.Meta{Status: model.StatusDraft, CreatedBy: actor.ID}
	return s.Store.Create(ctx, item)
}

// GetDraft returns a single draft.
func (s *ContentService[T, P]) GetDraft(ctx context.Context, id uint64) (P, error) {
	return s.Store.Get(ctx, id, model.StatusDraft)
}

// ListDrafts returns one page of drafts.
func (s *ContentService[T, P]) ListDrafts(ctx context.Context, page, pageSize int) (Page[P], error) {
	return s.list(ctx, model.StatusDraft, page, pageSize)
}

// EditDraft replaces the content fields of a draft in place.  Images the
// new version no longer lists are deleted from storage.
func (s *ContentService[T, P]) EditDraft(ctx context.Context, actor authz.Actor, id uint64, item P) (P, error) {
	return s.replace(ctx, actor, id, model.StatusDraft, item)
}

// DeleteDraft removes a draft and its images; same rule as editing it.
func (s *ContentService[T, P]) DeleteDraft(ctx context.Context, actor authz.Actor, id uint64) error {
	existing, err := s.Store.Get(ctx, id, model.StatusDraft)
	if err != nil {
		return err
	}
	if !authz.CanEditDraft(actor, existing.ContentMeta().CreatedBy) {
		return ErrForbidden
	}
	if err := s.Store.Delete(ctx, id, model.StatusDraft); err != nil {
		return err
	}
	s.dropImages(ctx, existing, nil)
	return nil
}

// Publish moves a draft to published atomically.
func (s *ContentService[T, P]) Publish(ctx context.Context, actor authz.Actor, id uint64) (P, error) {
	if !authz.CanPublish(actor.Role) {
		return nil, ErrForbidden
	}
	item, err := s.Store.Publish(ctx, id, actor.ID)
	if errors.Is(err, repository.ErrNotDraft) {
		return nil, invalid(s.Kind + " is already published")
	}
	if err != nil {
		return nil, err
	}
	s.published(ctx, item)
	return item, nil
}

// CreatePublished stores item directly in published state.
func (s *ContentService[T, P]) CreatePublished(ctx context.Context, actor authz.Actor, item P) (P, error) {
	if err := s.CheckCreate(actor, model.StatusPublished, item); err != nil {
		return nil, err
	}
	now := s.now()
	by := actor.ID
	*item.ContentMeta() = model.Meta{
		Status:      model.StatusPublished,
		CreatedBy:   actor.ID,
		PublishedBy: &by,
		PublishedAt: &now,
	}
	created, err := s.Store.Create(ctx, item)
	if err != nil {
		return nil, err
	}
	s.published(ctx, created)
	return created, nil
}

// GetPublished returns a single published item.
func (s *ContentService[T, P]) GetPublished(ctx context.Context, id uint64) (P, error) {
	return s.Store.Get(ctx, id, model.StatusPublished)
}

// ListPublished returns one page of published items.
func (s *ContentService[T, P]) ListPublished(ctx context.Context, page, pageSize int) (Page[P], error) {
	return s.list(ctx, model.StatusPublished, page, pageSize)
}

// EditPublished replaces the content fields of a published item.  Images
// the new version no longer lists are deleted from storage.
func (s *ContentService[T, P]) EditPublished(ctx context.Context, actor authz.Actor, id uint64, item P) (P, error) {
	updated, err := s.replace(ctx, actor, id, model.StatusPublished, item)
	if err != nil {
		return nil, err
	}
	s.purge(ctx)
	return updated, nil
}

// DeletePublished removes a published item and its images.
func (s *ContentService[T, P]) DeletePublished(ctx context.Context, actor authz.Actor, id uint64) error {
	if !authz.CanDelete(actor.Role) {
		return ErrForbidden
	}
	existing, err := s.Store.Get(ctx, id, model.StatusPublished)
	if err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, id, model.StatusPublished); err != nil {
		return err
	}
	s.purge(ctx)
	s.dropImages(ctx, existing, nil)
	return nil
}

// editable loads item id in status and applies the edit rules: published
// items need CanEditPublished, drafts CanEditDraft against their creator.
func (s *ContentService[T, P]) editable(ctx context.Context, actor authz.Actor, id uint64, status model.Status, item P) (P, error) {
	if status == model.StatusPublished && !authz.CanEditPublished(actor.Role) {
		return nil, ErrForbidden
	}
	existing, err := s.Store.Get(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if status == model.StatusDraft && !authz.CanEditDraft(actor, existing.ContentMeta().CreatedBy) {
		return nil, ErrForbidden
	}
	if err := item.Validate(); err != nil {
		return nil, invalid(err.Error())
	}
	return existing, nil
}

func (s *ContentService[T, P]) replace(ctx context.Context, actor authz.Actor, id uint64, status model.Status, item P) (P, error) {
	existing, err := s.editable(ctx, actor, id, status, item)
	if err != nil {
		return nil, err
	}
	*item.ContentMeta() = *existing.ContentMeta()
	updated, err := s.Store.Update(ctx, item)
	if err != nil {
		return nil, err
	}
	s.dropImages(ctx, existing, imageKeys(updated))
	return updated, nil
}

// dropImages deletes the stored images of before that keep does not list.
// Failures leave an orphaned object behind and are only logged.
func (s *ContentService[T, P]) dropImages(ctx context.Context, before P, keep []string) {
	if s.Images == nil {
		return
	}
	kept := make(map[string]bool, len(keep))
	for _, k := range keep {
		kept[k] = true
	}
	for _, k := range imageKeys(before) {
		if kept[k] {
			continue
		}
		if err := s.Images.Delete(ctx, k); err != nil {
			log.Printf("%s %d: delete image %s: %v", s.Kind, before.ContentMeta().ID, k, err)
		}
	}
}

func imageKeys(item any) []string {
	if o, ok := item.(model.ImageOwner); ok {
		return o.ImageKeys()
	}
	return nil
}

func (s *ContentService[T, P]) list(ctx context.Context, status model.Status, page, pageSize int) (Page[P], error) {
	page, pageSize = NormalizePage(page, pageSize)
	items, total, err := s.Store.List(ctx, status, page, pageSize)
	if err != nil {
		return Page[P]{}, err
	}
	return Page[P]{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// published runs the side effects of an item going public.  Neither
// failure undoes the publish.
func (s *ContentService[T, P]) published(ctx context.Context, item P) {
	s.purge(ctx)
	if s.Notify == nil {
		return
	}
	m := item.ContentMeta()
	ev := queue.ContentPublishedEvent{
		Kind:      s.Kind,
		ID:        m.ID,
		Title:     item.Headline(),
		CreatedBy: m.CreatedBy,
	}
	if m.PublishedBy != nil {
		ev.PublishedBy = *m.PublishedBy
	}
	if m.PublishedAt != nil {
		ev.PublishedAt = *m.PublishedAt
	}
	if err := s.Notify.ContentPublished(ctx, ev); err != nil {
		log.Printf("%s %d: publish notification failed: %v", s.Kind, m.ID, err)
	}
}

func (s *ContentService[T, P]) purge(ctx context.Context) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Purge(ctx); err != nil {
		log.Printf("cache purge after %s change failed: %v", s.Kind, err)
	}
}
