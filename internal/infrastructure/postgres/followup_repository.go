package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

var (
	_ repository.FollowUpRepository     = (*FollowUpRepo)(nil)
	_ repository.NotificationRepository = (*NotificationRepo)(nil)
)

// FollowUpRepo relances y su historial de envíos.
type FollowUpRepo struct {
	q Querier
}

const followUpColumns = `id, company_id, COALESCE(client_id::text, ''), type, source_type, source_id, source_label, due_date,
	actual_date, status, amount, auto_enabled, auto_frequency_days, auto_stop_on_response, auto_stop_on_paid,
	auto_stop_on_refused, failure_count, next_attempt_at, last_error, created_by, created_at, updated_at`

func scanFollowUp(row pgx.Row) (*entity.FollowUp, error) {
	var f entity.FollowUp
	if err := row.Scan(&f.ID, &f.CompanyID, &f.ClientID, &f.Type, &f.SourceType, &f.SourceID, &f.SourceLabel, &f.DueDate,
		&f.ActualDate, &f.Status, &f.Amount, &f.AutoEnabled, &f.AutoFrequencyDays, &f.AutoStopOnResponse, &f.AutoStopOnPaid,
		&f.AutoStopOnRefused, &f.FailureCount, &f.NextAttemptAt, &f.LastError, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FollowUpRepo) Create(ctx context.Context, f *entity.FollowUp) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO followups (id, company_id, client_id, type, source_type, source_id, source_label, due_date, actual_date,
			status, amount, auto_enabled, auto_frequency_days, auto_stop_on_response, auto_stop_on_paid, auto_stop_on_refused,
			failure_count, next_attempt_at, last_error, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		f.ID, f.CompanyID, nullIfEmpty(f.ClientID), f.Type, f.SourceType, f.SourceID, f.SourceLabel, f.DueDate, f.ActualDate,
		f.Status, f.Amount, f.AutoEnabled, f.AutoFrequencyDays, f.AutoStopOnResponse, f.AutoStopOnPaid, f.AutoStopOnRefused,
		f.FailureCount, f.NextAttemptAt, f.LastError, f.CreatedBy, f.CreatedAt, f.UpdatedAt)
	return wrap("insert followup", err)
}

func (r *FollowUpRepo) GetByID(ctx context.Context, companyID, id string) (*entity.FollowUp, error) {
	return one(r.q.QueryRow(ctx, `SELECT `+followUpColumns+` FROM followups WHERE company_id = $1 AND id = $2`, companyID, id),
		"get followup", scanFollowUp)
}

func (r *FollowUpRepo) Update(ctx context.Context, f *entity.FollowUp) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE followups SET client_id=$3, type=$4, source_type=$5, source_id=$6, source_label=$7, due_date=$8, actual_date=$9,
			status=$10, amount=$11, auto_enabled=$12, auto_frequency_days=$13, auto_stop_on_response=$14, auto_stop_on_paid=$15,
			auto_stop_on_refused=$16, failure_count=$17, next_attempt_at=$18, last_error=$19, updated_at=$20
		WHERE company_id = $1 AND id = $2`,
		f.CompanyID, f.ID, nullIfEmpty(f.ClientID), f.Type, f.SourceType, f.SourceID, f.SourceLabel, f.DueDate, f.ActualDate,
		f.Status, f.Amount, f.AutoEnabled, f.AutoFrequencyDays, f.AutoStopOnResponse, f.AutoStopOnPaid,
		f.AutoStopOnRefused, f.FailureCount, f.NextAttemptAt, f.LastError, f.UpdatedAt)
	return affected(tag, err, "update followup")
}

func (r *FollowUpRepo) Delete(ctx context.Context, companyID, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM followups WHERE company_id = $1 AND id = $2`, companyID, id)
	return affected(tag, err, "delete followup")
}

func (r *FollowUpRepo) List(ctx context.Context, companyID string, f repository.FollowUpFilter) ([]*entity.FollowUp, int, error) {
	w := &where{}
	w.add("company_id = ?", companyID)
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.ClientID != "" {
		w.add("client_id = ?", f.ClientID)
	}
	if f.SourceType != "" {
		w.add("source_type = ?", f.SourceType)
	}
	if f.DueFrom != nil {
		w.add("due_date >= ?", *f.DueFrom)
	}
	if f.DueTo != nil {
		w.add("due_date < ?", *f.DueTo)
	}
	total, err := count(ctx, r.q, "count followups", `SELECT count(*) FROM followups`+w.sql(), w.args...)
	if err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + followUpColumns + ` FROM followups` + w.sql() + ` ORDER BY due_date` + w.page(f.Limit, f.Offset)
	rows, err := r.q.Query(ctx, query, w.args...)
	list, err := collect(rows, err, "list followups", scanFollowUp)
	return list, total, err
}

func (r *FollowUpRepo) ListDue(ctx context.Context, now time.Time) ([]*entity.FollowUp, error) {
	rows, err := r.q.Query(ctx, `SELECT `+followUpColumns+` FROM followups
		WHERE auto_enabled AND status IN ($1, $2) AND due_date <= $3 AND (next_attempt_at IS NULL OR next_attempt_at <= $3)
		ORDER BY due_date`, entity.FollowUpToDo, entity.FollowUpWaiting, now)
	return collect(rows, err, "list due followups", scanFollowUp)
}

func (r *FollowUpRepo) AddHistory(ctx context.Context, h *entity.FollowUpHistory) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO followup_history (id, followup_id, company_id, message, channel, status, sent_by, sent_at, conversation_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		h.ID, h.FollowUpID, h.CompanyID, h.Message, h.Channel, h.Status, h.SentBy, h.SentAt, h.ConversationID)
	return wrap("insert followup history", err)
}

func (r *FollowUpRepo) ListHistory(ctx context.Context, companyID, followUpID string) ([]entity.FollowUpHistory, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, followup_id, company_id, message, channel, status, sent_by, sent_at, conversation_id
		FROM followup_history WHERE company_id = $1 AND followup_id = $2 ORDER BY sent_at`, companyID, followUpID)
	if err != nil {
		return nil, wrap("list followup history", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.FollowUpHistory, error) {
		var h entity.FollowUpHistory
		err := row.Scan(&h.ID, &h.FollowUpID, &h.CompanyID, &h.Message, &h.Channel, &h.Status, &h.SentBy, &h.SentAt, &h.ConversationID)
		return h, err
	})
	return out, wrap("list followup history", err)
}

func (r *FollowUpRepo) CountSent(ctx context.Context, followUpID string) (int, error) {
	return count(ctx, r.q, "count sent",
		`SELECT count(*) FROM followup_history WHERE followup_id = $1 AND status = $2`, followUpID, entity.HistorySent)
}

func (r *FollowUpRepo) CountSentSince(ctx context.Context, companyID string, since time.Time) (int, error) {
	return count(ctx, r.q, "count sent since",
		`SELECT count(*) FROM followup_history WHERE company_id = $1 AND status = $2 AND sent_at >= $3`,
		companyID, entity.HistorySent, since)
}

func (r *FollowUpRepo) DeleteByCompany(ctx context.Context, companyID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM followups WHERE company_id = $1`, companyID)
	return wrap("delete followups", err)
}

// ── Notificaciones ──

// NotificationRepo avisos; user_id NULL es visible para todo el tenant.
type NotificationRepo struct {
	q Querier
}

const notificationColumns = `id, company_id, COALESCE(user_id::text, ''), type, title, message, link, read, read_at,
	source_type, source_id, dedupe_day, created_at`

func scanNotification(row pgx.Row) (*entity.Notification, error) {
	var n entity.Notification
	if err := row.Scan(&n.ID, &n.CompanyID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Link, &n.Read, &n.ReadAt,
		&n.SourceType, &n.SourceID, &n.DedupeDay, &n.CreatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

const insertNotification = `INSERT INTO notifications (id, company_id, user_id, type, title, message, link, read, read_at,
	source_type, source_id, dedupe_day, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

func notificationArgs(n *entity.Notification) []any {
	var day *time.Time
	if n.DedupeDay != nil {
		d := dateOnly(*n.DedupeDay)
		day = &d
	}
	return []any{n.ID, n.CompanyID, nullIfEmpty(n.UserID), n.Type, n.Title, n.Message, n.Link, n.Read, n.ReadAt,
		n.SourceType, n.SourceID, day, n.CreatedAt}
}

func (r *NotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	_, err := r.q.Exec(ctx, insertNotification, notificationArgs(n)...)
	return wrap("insert notification", err)
}

// CreateDeduped el índice único parcial uq_notifications_dedupe decide; sin fila afectada ya existía.
func (r *NotificationRepo) CreateDeduped(ctx context.Context, n *entity.Notification) (bool, error) {
	if n.DedupeDay == nil {
		return true, r.Create(ctx, n)
	}
	tag, err := r.q.Exec(ctx, insertNotification+`
		ON CONFLICT (company_id, source_type, source_id, type, dedupe_day) WHERE dedupe_day IS NOT NULL DO NOTHING`,
		notificationArgs(n)...)
	if err != nil {
		return false, wrap("insert notification", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *NotificationRepo) List(ctx context.Context, companyID, userID string, unreadOnly bool, limit, offset int) ([]*entity.Notification, error) {
	w := &where{}
	w.add("company_id = ?", companyID)
	w.add("(user_id IS NULL OR user_id::text = ?)", userID)
	if unreadOnly {
		w.raw("NOT read")
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications` + w.sql() + ` ORDER BY created_at DESC` + w.page(limit, offset)
	rows, err := r.q.Query(ctx, query, w.args...)
	return collect(rows, err, "list notifications", scanNotification)
}

func (r *NotificationRepo) UnreadCount(ctx context.Context, companyID, userID string) (int, error) {
	return count(ctx, r.q, "count unread",
		`SELECT count(*) FROM notifications WHERE company_id = $1 AND (user_id IS NULL OR user_id::text = $2) AND NOT read`,
		companyID, userID)
}

func (r *NotificationRepo) MarkRead(ctx context.Context, companyID, userID, id string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE notifications SET read = TRUE, read_at = COALESCE(read_at, now())
		WHERE company_id = $1 AND (user_id IS NULL OR user_id::text = $2) AND id = $3`, companyID, userID, id)
	return affected(tag, err, "mark notification read")
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, companyID, userID string) error {
	_, err := r.q.Exec(ctx, `
		UPDATE notifications SET read = TRUE, read_at = now()
		WHERE company_id = $1 AND (user_id IS NULL OR user_id::text = $2) AND NOT read`, companyID, userID)
	return wrap("mark all read", err)
}
