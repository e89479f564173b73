package repository

import (
	"context"
	"time"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

// FollowUpFilter filtros del listado de relances.
type FollowUpFilter struct {
	Status     string
	ClientID   string
	SourceType string
	DueFrom    *time.Time
	DueTo      *time.Time // exclusivo
	Limit      int
	Offset     int
}

// FollowUpRepository relances y su historial.
type FollowUpRepository interface {
	Create(ctx context.Context, f *entity.FollowUp) error
	GetByID(ctx context.Context, companyID, id string) (*entity.FollowUp, error)
	Update(ctx context.Context, f *entity.FollowUp) error
	Delete(ctx context.Context, companyID, id string) error
	List(ctx context.Context, companyID string, f FollowUpFilter) ([]*entity.FollowUp, int, error)
	// ListDue relances automáticas abiertas de todos los tenants con due_date <= now y sin backoff pendiente.
	ListDue(ctx context.Context, now time.Time) ([]*entity.FollowUp, error)
	AddHistory(ctx context.Context, h *entity.FollowUpHistory) error
	ListHistory(ctx context.Context, companyID, followUpID string) ([]entity.FollowUpHistory, error)
	CountSent(ctx context.Context, followUpID string) (int, error)
	// CountSentSince envíos del tenant desde since (cuota mensual).
	CountSentSince(ctx context.Context, companyID string, since time.Time) (int, error)
	DeleteByCompany(ctx context.Context, companyID string) error
}
