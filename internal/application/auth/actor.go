package auth

import (
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

// Actor identidad resuelta de la petición. CompanyID vacío para super_admin.
type Actor struct {
	UserID    string
	CompanyID string
	Role      string
	Email     string
	Name      string
	// Permisos finos sobre tareas.
	CanCreateTasks bool
	CanEditTasks   bool
	CanDeleteTasks bool
}

// RequestMeta datos de red de la petición que se guardan en los registros de auditoría.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// IsSuperAdmin indica si el actor opera fuera de cualquier tenant.
func (a *Actor) IsSuperAdmin() bool {
	return a != nil && a.Role == entity.RoleSuperAdmin
}

// IsOwner indica si el actor es propietario de su empresa.
func (a *Actor) IsOwner() bool {
	return a != nil && a.Role == entity.RoleOwner
}

// RequireTenant devuelve el tenant del actor. super_admin no tiene tenant y recibe forbidden.
func RequireTenant(a *Actor) (string, error) {
	if a == nil {
		return "", domain.ErrUnauthorized
	}
	if a.IsSuperAdmin() || a.CompanyID == "" {
		return "", domain.ErrForbidden
	}
	return a.CompanyID, nil
}

// AssertAccess permite el acceso si la entidad pertenece al tenant del actor o si es super_admin.
func AssertAccess(a *Actor, tenantID string) error {
	if a == nil {
		return domain.ErrUnauthorized
	}
	if a.IsSuperAdmin() {
		return nil
	}
	if a.CompanyID == "" || a.CompanyID != tenantID {
		return domain.ErrForbidden
	}
	return nil
}

func actorFromUser(u *entity.User) *Actor {
	return &Actor{
		UserID:         u.ID,
		CompanyID:      u.CompanyID,
		Role:           u.Role,
		Email:          u.Email,
		Name:           u.Name,
		CanCreateTasks: u.CanCreateTasks || u.Role == entity.RoleOwner,
		CanEditTasks:   u.CanEditTasks || u.Role == entity.RoleOwner,
		CanDeleteTasks: u.CanDeleteTasks || u.Role == entity.RoleOwner,
	}
}
