package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// UserUseCase equipo de la empresa: el propietario da de alta colaboradores y
// gestiona sus permisos sobre tareas.
type UserUseCase struct {
	repo  repository.UserRepository
	log   zerolog.Logger
	Clock func() time.Time
}

// NewUserUseCase construye el caso de uso con el puerto de persistencia.
func NewUserUseCase(repo repository.UserRepository, log zerolog.Logger) *UserUseCase {
	return &UserUseCase{repo: repo, log: log, Clock: time.Now}
}

// List miembros del tenant del actor.
func (uc *UserUseCase) List(ctx context.Context, actor *auth.Actor) ([]dto.UserResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	users, err := uc.repo.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, memberResponse(u))
	}
	return out, nil
}

// Create alta de un colaborador con rol user.
func (uc *UserUseCase) Create(ctx context.Context, actor *auth.Actor, in dto.CreateMemberRequest) (*dto.UserResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	if !actor.IsOwner() {
		return nil, domain.ErrForbidden
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	existing, err := uc.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrEmailAlreadyExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := uc.Clock()
	u := &entity.User{
		ID:             uuid.New().String(),
		CompanyID:      companyID,
		Email:          email,
		PasswordHash:   string(hash),
		Name:           strings.TrimSpace(in.Name),
		Role:           entity.RoleUser,
		IsActive:       true,
		CanCreateTasks: in.CanCreateTasks,
		CanEditTasks:   in.CanEditTasks,
		CanDeleteTasks: in.CanDeleteTasks,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := uc.repo.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.ErrEmailAlreadyExists
		}
		return nil, err
	}
	uc.log.Info().Str("company_id", companyID).Str("user_id", u.ID).Msg("colaborador creado")
	res := memberResponse(u)
	return &res, nil
}

// Update permisos o estado de un colaborador. El propietario no puede desactivarse a sí mismo.
func (uc *UserUseCase) Update(ctx context.Context, actor *auth.Actor, id string, in dto.UpdateMemberRequest) (*dto.UserResponse, error) {
	u, err := uc.member(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if in.IsActive != nil && !*in.IsActive && u.ID == actor.UserID {
		return nil, domain.Validation("is_active", "vous ne pouvez pas désactiver votre propre compte")
	}
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if u.Role != entity.RoleOwner {
		if in.CanCreateTasks != nil {
			u.CanCreateTasks = *in.CanCreateTasks
		}
		if in.CanEditTasks != nil {
			u.CanEditTasks = *in.CanEditTasks
		}
		if in.CanDeleteTasks != nil {
			u.CanDeleteTasks = *in.CanDeleteTasks
		}
	}
	u.UpdatedAt = uc.Clock()
	if err := uc.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	res := memberResponse(u)
	return &res, nil
}

// Delete baja definitiva de un colaborador; el propietario no se borra por aquí.
func (uc *UserUseCase) Delete(ctx context.Context, actor *auth.Actor, id string) error {
	u, err := uc.member(ctx, actor, id)
	if err != nil {
		return err
	}
	if u.Role == entity.RoleOwner {
		return domain.Conflict(domain.CodeWrongState, "le propriétaire ne peut pas être supprimé")
	}
	return uc.repo.Delete(ctx, u.ID)
}

func (uc *UserUseCase) member(ctx context.Context, actor *auth.Actor, id string) (*entity.User, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	if !actor.IsOwner() {
		return nil, domain.ErrForbidden
	}
	u, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil || u.CompanyID != companyID {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func memberResponse(u *entity.User) dto.UserResponse {
	return dto.UserResponse{
		ID:             u.ID,
		CompanyID:      u.CompanyID,
		Email:          u.Email,
		Name:           u.Name,
		Role:           u.Role,
		IsActive:       u.IsActive,
		EmailVerified:  u.EmailVerified,
		CanCreateTasks: u.CanCreateTasks || u.Role == entity.RoleOwner,
		CanEditTasks:   u.CanEditTasks || u.Role == entity.RoleOwner,
		CanDeleteTasks: u.CanDeleteTasks || u.Role == entity.RoleOwner,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}
