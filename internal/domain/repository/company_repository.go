package repository

import (
	"context"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

// CompanyRepository define el puerto de persistencia para Company y sus ajustes (DIP).
// La implementación vive en infrastructure.
type CompanyRepository interface {
	Create(ctx context.Context, company *entity.Company) error
	GetByID(ctx context.Context, id string) (*entity.Company, error)
	GetByCode(ctx context.Context, code string) (*entity.Company, error)
	Update(ctx context.Context, company *entity.Company) error
	// GetSettings devuelve los ajustes normalizados; si no hay fila, los valores por defecto.
	GetSettings(ctx context.Context, companyID string) (*entity.CompanySettings, error)
	SaveSettings(ctx context.Context, settings *entity.CompanySettings) error
}

// SubscriptionRepository una suscripción por tenant.
type SubscriptionRepository interface {
	GetByCompany(ctx context.Context, companyID string) (*entity.Subscription, error)
	Upsert(ctx context.Context, sub *entity.Subscription) error
}
