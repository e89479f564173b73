package agenda

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/limits"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/plan"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// defaultWindow rango del listado cuando no se indica.
const defaultWindow = 30 * 24 * time.Hour

// AppointmentUseCase rendez-vous; requiere la funcionalidad appointments del plan.
type AppointmentUseCase struct {
	tx     repository.TxRunner
	repos  repository.Repos
	limits *limits.Service
	Clock  func() time.Time
}

// NewAppointmentUseCase construye el caso de uso.
func NewAppointmentUseCase(tx repository.TxRunner, repos repository.Repos, lim *limits.Service) *AppointmentUseCase {
	return &AppointmentUseCase{tx: tx, repos: repos, limits: lim, Clock: time.Now}
}

func (uc *AppointmentUseCase) tenant(ctx context.Context, actor *auth.Actor) (string, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return "", err
	}
	if err := uc.limits.RequireFeature(ctx, companyID, plan.FeatureAppointments); err != nil {
		return "", err
	}
	return companyID, nil
}

// List rendez-vous que empiezan en [from, to).
func (uc *AppointmentUseCase) List(ctx context.Context, actor *auth.Actor, rng dto.AppointmentRange) ([]dto.AppointmentResponse, error) {
	companyID, err := uc.tenant(ctx, actor)
	if err != nil {
		return nil, err
	}
	from := startOfDay(uc.Clock())
	if rng.From != nil {
		from = *rng.From
	}
	to := from.Add(defaultWindow)
	if rng.To != nil {
		to = *rng.To
	}
	if !to.After(from) {
		return nil, domain.Validation("to", "la fin de période doit suivre le début")
	}
	items, err := uc.repos.Appointments.List(ctx, companyID, from, to)
	if err != nil {
		return nil, err
	}
	names := map[string]string{}
	out := make([]dto.AppointmentResponse, 0, len(items))
	for _, a := range items {
		if _, ok := names[a.ClientID]; !ok && a.ClientID != "" {
			c, err := uc.repos.Clients.GetByID(ctx, companyID, a.ClientID)
			if err != nil {
				return nil, err
			}
			if c != nil {
				names[a.ClientID] = c.Name
			}
		}
		out = append(out, toAppointmentResponse(a, names[a.ClientID]))
	}
	return out, nil
}

// Create valida cliente, usuario y que el fin siga al inicio.
func (uc *AppointmentUseCase) Create(ctx context.Context, actor *auth.Actor, in dto.CreateAppointmentRequest) (*dto.AppointmentResponse, error) {
	companyID, err := uc.tenant(ctx, actor)
	if err != nil {
		return nil, err
	}
	now := uc.Clock()
	a := &entity.Appointment{
		ID:        uuid.New().String(),
		CompanyID: companyID,
		ClientID:  in.ClientID,
		UserID:    in.UserID,
		Title:     strings.TrimSpace(in.Title),
		Location:  strings.TrimSpace(in.Location),
		StartsAt:  in.StartsAt,
		EndsAt:    in.EndsAt,
		Notes:     strings.TrimSpace(in.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if a.UserID == "" {
		a.UserID = actor.UserID
	}
	clientName, err := uc.validate(ctx, uc.repos, a)
	if err != nil {
		return nil, err
	}
	if err := uc.repos.Appointments.Create(ctx, a); err != nil {
		return nil, err
	}
	res := toAppointmentResponse(a, clientName)
	return &res, nil
}

// Update campos opcionales.
func (uc *AppointmentUseCase) Update(ctx context.Context, actor *auth.Actor, id string, in dto.UpdateAppointmentRequest) (*dto.AppointmentResponse, error) {
	companyID, err := uc.tenant(ctx, actor)
	if err != nil {
		return nil, err
	}
	var (
		a          *entity.Appointment
		clientName string
	)
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		var err error
		if a, err = r.Appointments.GetByID(ctx, companyID, id); err != nil {
			return err
		}
		if a == nil {
			return domain.ErrNotFound
		}
		if in.ClientID != nil {
			a.ClientID = *in.ClientID
		}
		if in.UserID != nil {
			a.UserID = *in.UserID
		}
		if in.Title != nil {
			a.Title = strings.TrimSpace(*in.Title)
		}
		if in.Location != nil {
			a.Location = strings.TrimSpace(*in.Location)
		}
		if in.StartsAt != nil {
			a.StartsAt = *in.StartsAt
		}
		if in.EndsAt != nil {
			a.EndsAt = *in.EndsAt
		}
		if in.Notes != nil {
			a.Notes = strings.TrimSpace(*in.Notes)
		}
		if clientName, err = uc.validate(ctx, r, a); err != nil {
			return err
		}
		a.UpdatedAt = uc.Clock()
		return r.Appointments.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	res := toAppointmentResponse(a, clientName)
	return &res, nil
}

// Delete elimina el rendez-vous.
func (uc *AppointmentUseCase) Delete(ctx context.Context, actor *auth.Actor, id string) error {
	companyID, err := uc.tenant(ctx, actor)
	if err != nil {
		return err
	}
	a, err := uc.repos.Appointments.GetByID(ctx, companyID, id)
	if err != nil {
		return err
	}
	if a == nil {
		return domain.ErrNotFound
	}
	return uc.repos.Appointments.Delete(ctx, companyID, id)
}

func (uc *AppointmentUseCase) validate(ctx context.Context, r repository.Repos, a *entity.Appointment) (string, error) {
	if a.Title == "" {
		return "", domain.Validation("title", "le titre est obligatoire")
	}
	if !a.EndsAt.After(a.StartsAt) {
		return "", domain.Validation("ends_at", "la fin du rendez-vous doit suivre le début")
	}
	if err := checkMember(ctx, r, a.CompanyID, a.UserID, "user_id"); err != nil {
		return "", err
	}
	if a.ClientID == "" {
		return "", nil
	}
	c, err := r.Clients.GetByID(ctx, a.CompanyID, a.ClientID)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", domain.Validation("client_id", "client introuvable")
	}
	return c.Name, nil
}

func toAppointmentResponse(a *entity.Appointment, clientName string) dto.AppointmentResponse {
	return dto.AppointmentResponse{
		ID:         a.ID,
		ClientID:   a.ClientID,
		ClientName: clientName,
		UserID:     a.UserID,
		Title:      a.Title,
		Location:   a.Location,
		StartsAt:   a.StartsAt,
		EndsAt:     a.EndsAt,
		Notes:      a.Notes,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}
