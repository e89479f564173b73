package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

var _ repository.UserRepository = (*UserRepo)(nil)

// UserRepo implementa repository.UserRepository con PostgreSQL.
type UserRepo struct {
	q Querier
}

const userColumns = `id, COALESCE(company_id::text, ''), email, password_hash, name, role, is_active, email_verified,
	email_verification_token, email_verification_expires, password_reset_token, password_reset_expires,
	deletion_requested_at, deletion_scheduled_at, can_create_tasks, can_edit_tasks, can_delete_tasks, created_at, updated_at`

func scanUser(row pgx.Row) (*entity.User, error) {
	var u entity.User
	err := row.Scan(&u.ID, &u.CompanyID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.IsActive, &u.EmailVerified,
		&u.EmailVerificationToken, &u.EmailVerificationExpires, &u.PasswordResetToken, &u.PasswordResetExpires,
		&u.DeletionRequestedAt, &u.DeletionScheduledAt, &u.CanCreateTasks, &u.CanEditTasks, &u.CanDeleteTasks, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	if err := u.Validate(); err != nil {
		return domain.NewError(domain.ErrInvalidInput, "invalid_role", err.Error())
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO users (id, company_id, email, password_hash, name, role, is_active, email_verified,
			email_verification_token, email_verification_expires, password_reset_token, password_reset_expires,
			deletion_requested_at, deletion_scheduled_at, can_create_tasks, can_edit_tasks, can_delete_tasks, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		u.ID, nullIfEmpty(u.CompanyID), strings.ToLower(u.Email), u.PasswordHash, u.Name, u.Role, u.IsActive, u.EmailVerified,
		u.EmailVerificationToken, u.EmailVerificationExpires, u.PasswordResetToken, u.PasswordResetExpires,
		u.DeletionRequestedAt, u.DeletionScheduledAt, u.CanCreateTasks, u.CanEditTasks, u.CanDeleteTasks, u.CreatedAt, u.UpdatedAt)
	return wrap("insert user", err)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return one(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id), "get user", scanUser)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return one(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email)), "get user by email", scanUser)
}

func (r *UserRepo) Update(ctx context.Context, u *entity.User) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE users SET email=$2, password_hash=$3, name=$4, role=$5, is_active=$6, email_verified=$7,
			email_verification_token=$8, email_verification_expires=$9, password_reset_token=$10, password_reset_expires=$11,
			deletion_requested_at=$12, deletion_scheduled_at=$13, can_create_tasks=$14, can_edit_tasks=$15, can_delete_tasks=$16,
			updated_at=$17
		WHERE id = $1`,
		u.ID, strings.ToLower(u.Email), u.PasswordHash, u.Name, u.Role, u.IsActive, u.EmailVerified,
		u.EmailVerificationToken, u.EmailVerificationExpires, u.PasswordResetToken, u.PasswordResetExpires,
		u.DeletionRequestedAt, u.DeletionScheduledAt, u.CanCreateTasks, u.CanEditTasks, u.CanDeleteTasks, u.UpdatedAt)
	return affected(tag, err, "update user")
}

func (r *UserRepo) ListByCompany(ctx context.Context, companyID string) ([]*entity.User, error) {
	rows, err := r.q.Query(ctx, `SELECT `+userColumns+` FROM users WHERE company_id = $1 ORDER BY created_at`, companyID)
	return collect(rows, err, "list users", scanUser)
}

func (r *UserRepo) CountByCompany(ctx context.Context, companyID string) (int, error) {
	return count(ctx, r.q, "count users", `SELECT count(*) FROM users WHERE company_id = $1`, companyID)
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return affected(tag, err, "delete user")
}

func (r *UserRepo) ListDeletionDue(ctx context.Context, now time.Time) ([]*entity.User, error) {
	rows, err := r.q.Query(ctx, `SELECT `+userColumns+` FROM users
		WHERE deletion_scheduled_at IS NOT NULL AND deletion_scheduled_at <= $1 ORDER BY deletion_scheduled_at`, now)
	return collect(rows, err, "list deletion due", scanUser)
}
