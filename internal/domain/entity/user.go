package entity

import (
	"errors"
	"time"
)

// Roles válidos para User.
const (
	RoleSuperAdmin = "super_admin"
	RoleOwner      = "owner"
	RoleUser       = "user"
)

// DeletionGracePeriod ventana durante la cual una cuenta con borrado solicitado puede restaurarse.
const DeletionGracePeriod = 30 * 24 * time.Hour

// User usuario del sistema. super_admin no pertenece a ninguna empresa (CompanyID vacío).
type User struct {
	ID                       string
	CompanyID                string
	Email                    string
	PasswordHash             string // bcrypt, nunca plano después de persistir
	Name                     string
	Role                     string
	IsActive                 bool
	EmailVerified            bool
	EmailVerificationToken   string
	EmailVerificationExpires *time.Time
	PasswordResetToken       string
	PasswordResetExpires     *time.Time
	DeletionRequestedAt      *time.Time
	DeletionScheduledAt      *time.Time
	CanCreateTasks           bool
	CanEditTasks             bool
	CanDeleteTasks           bool
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// Validate comprueba el invariante rol / tenant.
func (u *User) Validate() error {
	switch u.Role {
	case RoleSuperAdmin:
		if u.CompanyID != "" {
			return errors.New("un super_admin ne peut pas appartenir à une entreprise")
		}
	case RoleOwner, RoleUser:
		if u.CompanyID == "" {
			return errors.New("l'utilisateur doit appartenir à une entreprise")
		}
	default:
		return errors.New("rôle inconnu")
	}
	return nil
}

// InDeletionGrace indica si la cuenta está en la ventana de borrado en now.
func (u *User) InDeletionGrace(now time.Time) bool {
	return u.DeletionRequestedAt != nil && u.DeletionScheduledAt != nil && now.Before(*u.DeletionScheduledAt)
}

// DeletionDue indica si la purga definitiva ya corresponde.
func (u *User) DeletionDue(now time.Time) bool {
	return u.DeletionScheduledAt != nil && !now.Before(*u.DeletionScheduledAt)
}
