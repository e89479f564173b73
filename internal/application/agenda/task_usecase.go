// Package agenda tareas internas y rendez-vous del tenant, más los avisos diarios
// que el cron genera sobre ellos.
package agenda

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// TaskUseCase CRUD de tareas.
type TaskUseCase struct {
	tx    repository.TxRunner
	repos repository.Repos
	Clock func() time.Time
}

// NewTaskUseCase construye el caso de uso.
func NewTaskUseCase(tx repository.TxRunner, repos repository.Repos) *TaskUseCase {
	return &TaskUseCase{tx: tx, repos: repos, Clock: time.Now}
}

// List tareas del tenant; con mine solo las asignadas al actor.
func (uc *TaskUseCase) List(ctx context.Context, actor *auth.Actor, mine bool) ([]dto.TaskResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	tasks, err := uc.repos.Tasks.List(ctx, companyID)
	if err != nil {
		return nil, err
	}
	now := uc.Clock()
	out := make([]dto.TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		if mine && t.AssigneeID != actor.UserID {
			continue
		}
		out = append(out, toTaskResponse(t, now))
	}
	return out, nil
}

// Create sin asignado, la tarea es del creador.
func (uc *TaskUseCase) Create(ctx context.Context, actor *auth.Actor, in dto.CreateTaskRequest) (*dto.TaskResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	if !actor.CanCreateTasks {
		return nil, domain.ErrForbidden
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, domain.Validation("title", "le titre est obligatoire")
	}
	priority := in.Priority
	if priority == "" {
		priority = entity.TaskPriorityNormal
	}
	if !validPriority(priority) {
		return nil, domain.Validation("priority", "priorité inconnue")
	}
	assignee := in.AssigneeID
	if assignee == "" {
		assignee = actor.UserID
	}
	if err := checkMember(ctx, uc.repos, companyID, assignee, "assignee_id"); err != nil {
		return nil, err
	}
	now := uc.Clock()
	t := &entity.Task{
		ID:          uuid.New().String(),
		CompanyID:   companyID,
		AssigneeID:  assignee,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Status:      entity.TaskStatusTodo,
		Priority:    priority,
		DueDate:     in.DueDate,
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.repos.Tasks.Create(ctx, t); err != nil {
		return nil, err
	}
	res := toTaskResponse(t, now)
	return &res, nil
}

// Update campos opcionales. Sin permiso de edición, el asignado solo puede cambiar el estado.
func (uc *TaskUseCase) Update(ctx context.Context, actor *auth.Actor, id string, in dto.UpdateTaskRequest) (*dto.TaskResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	statusOnly := in.Title == nil && in.Description == nil && in.AssigneeID == nil &&
		in.Priority == nil && in.DueDate == nil && !in.ClearDue
	var t *entity.Task
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		var err error
		if t, err = r.Tasks.GetByID(ctx, companyID, id); err != nil {
			return err
		}
		if t == nil {
			return domain.ErrNotFound
		}
		if !actor.CanEditTasks && !(statusOnly && t.AssigneeID == actor.UserID) {
			return domain.ErrForbidden
		}
		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			if title == "" {
				return domain.Validation("title", "le titre est obligatoire")
			}
			t.Title = title
		}
		if in.Description != nil {
			t.Description = strings.TrimSpace(*in.Description)
		}
		if in.AssigneeID != nil {
			if err := checkMember(ctx, r, companyID, *in.AssigneeID, "assignee_id"); err != nil {
				return err
			}
			t.AssigneeID = *in.AssigneeID
		}
		if in.Status != nil {
			if !validTaskStatus(*in.Status) {
				return domain.Validation("status", "statut inconnu")
			}
			t.Status = *in.Status
		}
		if in.Priority != nil {
			if !validPriority(*in.Priority) {
				return domain.Validation("priority", "priorité inconnue")
			}
			t.Priority = *in.Priority
		}
		switch {
		case in.ClearDue:
			t.DueDate = nil
		case in.DueDate != nil:
			t.DueDate = in.DueDate
		}
		t.UpdatedAt = uc.Clock()
		return r.Tasks.Update(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	res := toTaskResponse(t, uc.Clock())
	return &res, nil
}

// Delete elimina la tarea.
func (uc *TaskUseCase) Delete(ctx context.Context, actor *auth.Actor, id string) error {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return err
	}
	if !actor.CanDeleteTasks {
		return domain.ErrForbidden
	}
	t, err := uc.repos.Tasks.GetByID(ctx, companyID, id)
	if err != nil {
		return err
	}
	if t == nil {
		return domain.ErrNotFound
	}
	return uc.repos.Tasks.Delete(ctx, companyID, id)
}

// checkMember userID vacío se acepta (sin asignar).
func checkMember(ctx context.Context, r repository.Repos, companyID, userID, field string) error {
	if userID == "" {
		return nil
	}
	u, err := r.Users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil || u.CompanyID != companyID {
		return domain.Validation(field, "utilisateur introuvable")
	}
	return nil
}

func toTaskResponse(t *entity.Task, now time.Time) dto.TaskResponse {
	return dto.TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		AssigneeID:  t.AssigneeID,
		Status:      t.Status,
		Priority:    t.Priority,
		DueDate:     t.DueDate,
		Overdue:     t.Status != entity.TaskStatusDone && t.DueDate != nil && t.DueDate.Before(startOfDay(now)),
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func validPriority(p string) bool {
	return p == entity.TaskPriorityNormal || p == entity.TaskPriorityHigh || p == entity.TaskPriorityCritical
}

func validTaskStatus(s string) bool {
	return s == entity.TaskStatusTodo || s == entity.TaskStatusInProgress || s == entity.TaskStatusDone
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
