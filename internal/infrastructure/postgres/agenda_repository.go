package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

var (
	_ repository.TaskRepository        = (*TaskRepo)(nil)
	_ repository.AppointmentRepository = (*AppointmentRepo)(nil)
)

// TaskRepo tareas internas.
type TaskRepo struct {
	q Querier
}

const taskColumns = `id, company_id, COALESCE(assignee_id::text, ''), title, description, status, priority, due_date,
	created_by, created_at, updated_at`

func scanTask(row pgx.Row) (*entity.Task, error) {
	var t entity.Task
	if err := row.Scan(&t.ID, &t.CompanyID, &t.AssigneeID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.DueDate,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepo) Create(ctx context.Context, t *entity.Task) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO tasks (id, company_id, assignee_id, title, description, status, priority, due_date, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		t.ID, t.CompanyID, nullIfEmpty(t.AssigneeID), t.Title, t.Description, t.Status, t.Priority, t.DueDate,
		t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	return wrap("insert task", err)
}

func (r *TaskRepo) GetByID(ctx context.Context, companyID, id string) (*entity.Task, error) {
	return one(r.q.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE company_id = $1 AND id = $2`, companyID, id),
		"get task", scanTask)
}

func (r *TaskRepo) Update(ctx context.Context, t *entity.Task) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE tasks SET assignee_id=$3, title=$4, description=$5, status=$6, priority=$7, due_date=$8, updated_at=$9
		WHERE company_id = $1 AND id = $2`,
		t.CompanyID, t.ID, nullIfEmpty(t.AssigneeID), t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.UpdatedAt)
	return affected(tag, err, "update task")
}

func (r *TaskRepo) Delete(ctx context.Context, companyID, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM tasks WHERE company_id = $1 AND id = $2`, companyID, id)
	return affected(tag, err, "delete task")
}

func (r *TaskRepo) List(ctx context.Context, companyID string) ([]*entity.Task, error) {
	rows, err := r.q.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE company_id = $1 ORDER BY created_at DESC`, companyID)
	return collect(rows, err, "list tasks", scanTask)
}

func (r *TaskRepo) ListOverdue(ctx context.Context, day time.Time) ([]*entity.Task, error) {
	rows, err := r.q.Query(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE status <> $1 AND due_date IS NOT NULL AND due_date < $2 ORDER BY due_date`, entity.TaskStatusDone, day)
	return collect(rows, err, "list overdue tasks", scanTask)
}

func (r *TaskRepo) ListOpenCritical(ctx context.Context) ([]*entity.Task, error) {
	rows, err := r.q.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status <> $1 AND priority = $2 ORDER BY created_at`,
		entity.TaskStatusDone, entity.TaskPriorityCritical)
	return collect(rows, err, "list critical tasks", scanTask)
}

func (r *TaskRepo) DeleteByCompany(ctx context.Context, companyID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM tasks WHERE company_id = $1`, companyID)
	return wrap("delete tasks", err)
}

// AppointmentRepo rendez-vous.
type AppointmentRepo struct {
	q Querier
}

const appointmentColumns = `id, company_id, COALESCE(client_id::text, ''), COALESCE(user_id::text, ''), title, location,
	starts_at, ends_at, notes, created_at, updated_at`

func scanAppointment(row pgx.Row) (*entity.Appointment, error) {
	var a entity.Appointment
	if err := row.Scan(&a.ID, &a.CompanyID, &a.ClientID, &a.UserID, &a.Title, &a.Location, &a.StartsAt, &a.EndsAt,
		&a.Notes, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AppointmentRepo) Create(ctx context.Context, a *entity.Appointment) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO appointments (id, company_id, client_id, user_id, title, location, starts_at, ends_at, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, a.CompanyID, nullIfEmpty(a.ClientID), nullIfEmpty(a.UserID), a.Title, a.Location, a.StartsAt, a.EndsAt,
		a.Notes, a.CreatedAt, a.UpdatedAt)
	return wrap("insert appointment", err)
}

func (r *AppointmentRepo) GetByID(ctx context.Context, companyID, id string) (*entity.Appointment, error) {
	return one(r.q.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE company_id = $1 AND id = $2`, companyID, id),
		"get appointment", scanAppointment)
}

func (r *AppointmentRepo) Update(ctx context.Context, a *entity.Appointment) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE appointments SET client_id=$3, user_id=$4, title=$5, location=$6, starts_at=$7, ends_at=$8, notes=$9, updated_at=$10
		WHERE company_id = $1 AND id = $2`,
		a.CompanyID, a.ID, nullIfEmpty(a.ClientID), nullIfEmpty(a.UserID), a.Title, a.Location, a.StartsAt, a.EndsAt, a.Notes, a.UpdatedAt)
	return affected(tag, err, "update appointment")
}

func (r *AppointmentRepo) Delete(ctx context.Context, companyID, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM appointments WHERE company_id = $1 AND id = $2`, companyID, id)
	return affected(tag, err, "delete appointment")
}

func (r *AppointmentRepo) List(ctx context.Context, companyID string, from, to time.Time) ([]*entity.Appointment, error) {
	rows, err := r.q.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments
		WHERE company_id = $1 AND starts_at >= $2 AND starts_at < $3 ORDER BY starts_at`, companyID, from, to)
	return collect(rows, err, "list appointments", scanAppointment)
}

func (r *AppointmentRepo) ListStartingBetween(ctx context.Context, from, to time.Time) ([]*entity.Appointment, error) {
	rows, err := r.q.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments
		WHERE starts_at >= $1 AND starts_at < $2 ORDER BY starts_at`, from, to)
	return collect(rows, err, "list upcoming appointments", scanAppointment)
}

func (r *AppointmentRepo) DeleteByCompany(ctx context.Context, companyID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM appointments WHERE company_id = $1`, companyID)
	return wrap("delete appointments", err)
}
