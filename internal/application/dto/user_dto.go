package dto

import "time"

// RegisterRequest alta de una empresa con su propietario.
type RegisterRequest struct {
	CompanyName string `json:"company_name" validate:"required,min=1,max=200"`
	Sector      string `json:"sector" validate:"omitempty,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	Name        string `json:"name" validate:"omitempty,max=200"`
	Plan        string `json:"plan" validate:"omitempty,oneof=starter professional enterprise"`
}

// UserResponse salida de un usuario (sin password).
type UserResponse struct {
	ID                  string     `json:"id"`
	CompanyID           string     `json:"company_id,omitempty"`
	Email               string     `json:"email"`
	Name                string     `json:"name"`
	Role                string     `json:"role"`
	IsActive            bool       `json:"is_active"`
	EmailVerified       bool       `json:"email_verified"`
	CanCreateTasks      bool       `json:"can_create_tasks"`
	CanEditTasks        bool       `json:"can_edit_tasks"`
	CanDeleteTasks      bool       `json:"can_delete_tasks"`
	DeletionScheduledAt *time.Time `json:"deletion_scheduled_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// LoginRequest entrada para login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse salida con token JWT.
type LoginResponse struct {
	Token     string       `json:"access_token"`
	TokenType string       `json:"token_type"`
	User      UserResponse `json:"user"`
}

// DeletionResponse estado de una solicitud de borrado de cuenta.
type DeletionResponse struct {
	DeletionRequestedAt *time.Time `json:"deletion_requested_at"`
	DeletionScheduledAt *time.Time `json:"deletion_scheduled_at"`
}

// CreateMemberRequest alta de un colaborador en la empresa del propietario.
type CreateMemberRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Name           string `json:"name" validate:"omitempty,max=150"`
	Password       string `json:"password" validate:"required,min=8,max=72"`
	CanCreateTasks bool   `json:"can_create_tasks"`
	CanEditTasks   bool   `json:"can_edit_tasks"`
	CanDeleteTasks bool   `json:"can_delete_tasks"`
}

// UpdateMemberRequest permisos y estado de un colaborador (campos opcionales).
type UpdateMemberRequest struct {
	Name           *string `json:"name" validate:"omitempty,max=150"`
	IsActive       *bool   `json:"is_active"`
	CanCreateTasks *bool   `json:"can_create_tasks"`
	CanEditTasks   *bool   `json:"can_edit_tasks"`
	CanDeleteTasks *bool   `json:"can_delete_tasks"`
}
