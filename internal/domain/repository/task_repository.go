package repository

import (
	"context"
	"time"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

// TaskRepository tareas internas.
type TaskRepository interface {
	Create(ctx context.Context, t *entity.Task) error
	GetByID(ctx context.Context, companyID, id string) (*entity.Task, error)
	Update(ctx context.Context, t *entity.Task) error
	Delete(ctx context.Context, companyID, id string) error
	List(ctx context.Context, companyID string) ([]*entity.Task, error)
	// ListOverdue tareas no terminadas de todos los tenants con due_date < day.
	ListOverdue(ctx context.Context, day time.Time) ([]*entity.Task, error)
	// ListOpenCritical tareas críticas no terminadas de todos los tenants.
	ListOpenCritical(ctx context.Context) ([]*entity.Task, error)
	DeleteByCompany(ctx context.Context, companyID string) error
}

// AppointmentRepository rendez-vous.
type AppointmentRepository interface {
	Create(ctx context.Context, a *entity.Appointment) error
	GetByID(ctx context.Context, companyID, id string) (*entity.Appointment, error)
	Update(ctx context.Context, a *entity.Appointment) error
	Delete(ctx context.Context, companyID, id string) error
	List(ctx context.Context, companyID string, from, to time.Time) ([]*entity.Appointment, error)
	// ListStartingBetween rendez-vous de todos los tenants que empiezan en [from, to).
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]*entity.Appointment, error)
	DeleteByCompany(ctx context.Context, companyID string) error
}
