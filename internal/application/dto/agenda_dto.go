package dto

import "time"

// CreateTaskRequest body para POST /tasks.
type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"omitempty,max=5000"`
	AssigneeID  string     `json:"assignee_id"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=normale haute critique"`
	DueDate     *time.Time `json:"due_date"`
}

// UpdateTaskRequest body para PATCH /tasks/:id.
type UpdateTaskRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	AssigneeID  *string    `json:"assignee_id"`
	Status      *string    `json:"status" validate:"omitempty,oneof='À faire' 'En cours' 'Terminé'"`
	Priority    *string    `json:"priority" validate:"omitempty,oneof=normale haute critique"`
	DueDate     *time.Time `json:"due_date"`
	ClearDue    bool       `json:"clear_due_date"`
}

// TaskResponse tarea en respuestas.
type TaskResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Overdue     bool       `json:"overdue"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateAppointmentRequest body para POST /appointments.
type CreateAppointmentRequest struct {
	ClientID string    `json:"client_id"`
	UserID   string    `json:"user_id"`
	Title    string    `json:"title" validate:"required,max=200"`
	Location string    `json:"location" validate:"omitempty,max=300"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required"`
	Notes    string    `json:"notes" validate:"omitempty,max=5000"`
}

// UpdateAppointmentRequest body para PATCH /appointments/:id.
type UpdateAppointmentRequest struct {
	ClientID *string    `json:"client_id"`
	UserID   *string    `json:"user_id"`
	Title    *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Location *string    `json:"location" validate:"omitempty,max=300"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	Notes    *string    `json:"notes" validate:"omitempty,max=5000"`
}

// AppointmentRange query de GET /appointments. Sin rango: los próximos 30 días.
type AppointmentRange struct {
	From *time.Time `query:"from"`
	To   *time.Time `query:"to"`
}

// AppointmentResponse rendez-vous en respuestas.
type AppointmentResponse struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id,omitempty"`
	ClientName string    `json:"client_name,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Title      string    `json:"title"`
	Location   string    `json:"location,omitempty"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
