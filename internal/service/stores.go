package service

import (
	"context"
	"time"

	"github.com/iliyamo/conference-cms/internal/model"
	"github.com/iliyamo/conference-cms/internal/queue"
)

// UserStore is implemented by repository.UserRepo.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash, accountType string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	List(ctx context.Context) ([]model.User, error)
	UpdateAccountType(ctx context.Context, id uint64, accountType string) error
	UpdateCredentials(ctx context.Context, id uint64, email, passwordHash string) error
	Delete(ctx context.Context, id uint64) error
}

// ResetTokenStore is implemented by repository.ResetTokenRepo.
type ResetTokenStore interface {
	Replace(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	GetByHash(ctx context.Context, tokenHash string) (model.PasswordResetToken, error)
	Consume(ctx context.Context, token model.PasswordResetToken, passwordHash string) error
}

// ContentStore is implemented by repository.ContentRepo.
type ContentStore[T any, P model.ContentPtr[T]] interface {
	Create(ctx context.Context, item P) (P, error)
	Get(ctx context.Context, id uint64, status model.Status) (P, error)
	List(ctx context.Context, status model.Status, page, pageSize int) ([]P, int, error)
	Update(ctx context.Context, item P) (P, error)
	Publish(ctx context.Context, id, publisherID uint64) (P, error)
	Delete(ctx context.Context, id uint64, status model.Status) error
}

// Notifier hands work to the background consumers.  queue.Publisher sends
// it through RabbitMQ; queue.Inline does it in-process.
type Notifier interface {
	PasswordReset(ctx context.Context, m queue.PasswordResetMail) error
	ContentPublished(ctx context.Context, ev queue.ContentPublishedEvent) error
}

// CachePurger drops cached public responses after published content changes.
type CachePurger interface {
	Purge(ctx context.Context) error
}

// ImageRemover deletes stored images.  storage.ImageStore implements it.
type ImageRemover interface {
	Delete(ctx context.Context, key string) error
}
