package repository

import (
	"context"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

// ClientFilter filtros del listado de clientes.
type ClientFilter struct {
	Search string
	Type   string
	Limit  int
	Offset int
}

// ClientRepository persistencia de clientes; toda lectura va acotada por companyID.
type ClientRepository interface {
	Create(ctx context.Context, client *entity.Client) error
	GetByID(ctx context.Context, companyID, id string) (*entity.Client, error)
	// GetByEmail busca por email exacto en minúsculas.
	GetByEmail(ctx context.Context, companyID, email string) (*entity.Client, error)
	// GetByPhone busca por teléfono E.164.
	GetByPhone(ctx context.Context, companyID, phone string) (*entity.Client, error)
	Update(ctx context.Context, client *entity.Client) error
	Delete(ctx context.Context, companyID, id string) error
	List(ctx context.Context, companyID string, f ClientFilter) ([]*entity.Client, int, error)
	CountByCompany(ctx context.Context, companyID string) (int, error)
	DeleteByCompany(ctx context.Context, companyID string) error
}
