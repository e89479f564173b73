package entity

import "time"

// Estados y prioridades de tarea.
const (
	TaskStatusTodo       = "À faire"
	TaskStatusInProgress = "En cours"
	TaskStatusDone       = "Terminé"

	TaskPriorityNormal   = "normale"
	TaskPriorityHigh     = "haute"
	TaskPriorityCritical = "critique"
)

// Task tarea interna del tenant.
type Task struct {
	ID          string
	CompanyID   string
	AssigneeID  string
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     *time.Time
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Appointment rendez-vous con un cliente.
type Appointment struct {
	ID        string
	CompanyID string
	ClientID  string
	UserID    string
	Title     string
	Location  string
	StartsAt  time.Time
	EndsAt    time.Time
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
