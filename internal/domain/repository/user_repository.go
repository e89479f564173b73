package repository

import (
	"context"
	"time"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

// UserRepository define el puerto de persistencia para User (DIP).
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	ListByCompany(ctx context.Context, companyID string) ([]*entity.User, error)
	CountByCompany(ctx context.Context, companyID string) (int, error)
	Delete(ctx context.Context, id string) error
	// ListDeletionDue usuarios cuyo deletion_scheduled_at ya pasó.
	ListDeletionDue(ctx context.Context, now time.Time) ([]*entity.User, error)
}
