// Package servicetest provides in-memory stores and recorders for testing
// services and handlers without MySQL, RabbitMQ or Redis.
package servicetest

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/conference-cms/internal/model"
	"github.com/iliyamo/conference-cms/internal/queue"
	"github.com/iliyamo/conference-cms/internal/repository"
)

// Users is an in-memory service.UserStore.
type Users struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.User
}

func NewUsers() *Users { return &Users{byID: map[uint64]model.User{}} }

func (s *Users) Create(_ context.Context, email, passwordHash, accountType string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = repository.NormalizeEmail(email)
	for _, u := range s.byID {
		if u.Email == email {
			return model.User{}, repository.ErrEmailExists
		}
	}
	s.nextID++
	now := time.Now().UTC()
	u := model.User{ID: s.nextID, Email: email, PasswordHash: passwordHash, AccountType: accountType, CreatedAt: now, UpdatedAt: now}
	s.byID[u.ID] = u
	return u, nil
}

func (s *Users) GetByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = repository.NormalizeEmail(email)
	for _, u := range s.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *Users) GetByID(_ context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (s *Users) List(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Users) UpdateAccountType(_ context.Context, id uint64, accountType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.AccountType = accountType
	s.byID[id] = u
	return nil
}

func (s *Users) UpdateCredentials(_ context.Context, id uint64, email, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	email = repository.NormalizeEmail(email)
	for _, other := range s.byID {
		if other.ID != id && other.Email == email {
			return repository.ErrEmailExists
		}
	}
	u.Email, u.PasswordHash = email, passwordHash
	s.byID[id] = u
	return nil
}

func (s *Users) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

// ResetTokens is an in-memory service.ResetTokenStore.  Consume updates the
// password hash through the linked Users store.
type ResetTokens struct {
	mu     sync.Mutex
	nextID uint64
	byHash map[string]model.PasswordResetToken
	Users  *Users
}

func NewResetTokens(users *Users) *ResetTokens {
	return &ResetTokens{byHash: map[string]model.PasswordResetToken{}, Users: users}
}

func (s *ResetTokens) Replace(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h, t := range s.byHash {
		if t.UserID == userID {
			delete(s.byHash, h)
		}
	}
	s.nextID++
	s.byHash[tokenHash] = model.PasswordResetToken{ID: s.nextID, UserID: userID, TokenHash: tokenHash, ExpiresAt: exp, CreatedAt: time.Now().UTC()}
	return nil
}

func (s *ResetTokens) GetByHash(_ context.Context, tokenHash string) (model.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byHash[tokenHash]
	if !ok {
		return model.PasswordResetToken{}, repository.ErrNotFound
	}
	return t, nil
}

func (s *ResetTokens) Consume(ctx context.Context, token model.PasswordResetToken, passwordHash string) error {
	s.mu.Lock()
	t, ok := s.byHash[token.TokenHash]
	if !ok || t.ID != token.ID {
		s.mu.Unlock()
		return repository.ErrNotFound
	}
	delete(s.byHash, token.TokenHash)
	s.mu.Unlock()

	u, err := s.Users.GetByID(ctx, token.UserID)
	if err != nil {
		return err
	}
	return s.Users.UpdateCredentials(ctx, u.ID, u.Email, passwordHash)
}

// Count returns the number of stored tokens.
func (s *ResetTokens) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byHash)
}

// Content is an in-memory service.ContentStore for any content kind.
// CreateErr, when set, fails every Create.
type Content[T any, P model.ContentPtr[T]] struct {
	mu        sync.Mutex
	nextID    uint64
	items     map[uint64]P
	CreateErr error
}

func NewContent[T any, P model.ContentPtr[T]]() *Content[T, P] {
	return &Content[T, P]{items: map[uint64]P{}}
}

func clone[T any, P model.ContentPtr[T]](item P) P {
	cp := P(new(T))
	*cp = *item
	return cp
}

func (s *Content[T, P]) Create(_ context.Context, item P) (P, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	s.nextID++
	cp := clone[T, P](item)
	m := cp.ContentMeta()
	m.ID = s.nextID
	m.CreatedAt = time.Now().UTC()
	m.UpdatedAt = m.CreatedAt
	s.items[m.ID] = cp
	return clone[T, P](cp), nil
}

func (s *Content[T, P]) Get(_ context.Context, id uint64, status model.Status) (P, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok || it.ContentMeta().Status != status {
		return nil, repository.ErrNotFound
	}
	return clone[T, P](it), nil
}

func (s *Content[T, P]) List(_ context.Context, status model.Status, page, pageSize int) ([]P, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []P
	for _, it := range s.items {
		if it.ContentMeta().Status == status {
			all = append(all, clone[T, P](it))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ContentMeta().ID > all[j].ContentMeta().ID })
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []P{}, len(all), nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (s *Content[T, P]) Update(_ context.Context, item P) (P, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := item.ContentMeta()
	it, ok := s.items[m.ID]
	if !ok || it.ContentMeta().Status != m.Status {
		return nil, repository.ErrNotFound
	}
	cp := clone[T, P](item)
	cp.ContentMeta().UpdatedAt = time.Now().UTC()
	s.items[m.ID] = cp
	return clone[T, P](cp), nil
}

func (s *Content[T, P]) Publish(_ context.Context, id, publisherID uint64) (P, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	m := it.ContentMeta()
	if m.Status != model.StatusDraft {
		return nil, repository.ErrNotDraft
	}
	now := time.Now().UTC()
	m.Status = model.StatusPublished
	m.PublishedBy = &publisherID
	m.PublishedAt = &now
	return clone[T, P](it), nil
}

func (s *Content[T, P]) Delete(_ context.Context, id uint64, status model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok || it.ContentMeta().Status != status {
		return repository.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// Notifier records every notification it receives.  Err, when set, is
// returned from every call after recording.
type Notifier struct {
	mu        sync.Mutex
	Resets    []queue.PasswordResetMail
	Published []queue.ContentPublishedEvent
	Err       error
}

func (n *Notifier) PasswordReset(_ context.Context, m queue.PasswordResetMail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Resets = append(n.Resets, m)
	return n.Err
}

func (n *Notifier) ContentPublished(_ context.Context, ev queue.ContentPublishedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Published = append(n.Published, ev)
	return n.Err
}

// Purger counts cache purges.
type Purger struct {
	mu    sync.Mutex
	Count int
}

func (p *Purger) Purge(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Count++
	return nil
}

// Images is an in-memory image store that records saved and deleted keys.
type Images struct {
	mu      sync.Mutex
	Saved   []string
	Deleted []string
	objects map[string][]byte
}

func (m *Images) Save(_ context.Context, _ string, r io.Reader, _ int64) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := "images/" + uuid.NewString() + ".png"
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = b
	m.Saved = append(m.Saved, key)
	return key, nil
}

func (m *Images) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.Deleted = append(m.Deleted, key)
	return nil
}

// Stored returns the keys saved and not yet deleted.
func (m *Images) Stored() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
