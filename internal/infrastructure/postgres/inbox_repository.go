package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

var (
	_ repository.ConversationRepository = (*ConversationRepo)(nil)
	_ repository.FolderRepository       = (*FolderRepo)(nil)
	_ repository.IntegrationRepository  = (*IntegrationRepo)(nil)
)

// ── Conversaciones ──

// ConversationRepo hilos y mensajes de la bandeja.
type ConversationRepo struct {
	q Querier
}

const conversationColumns = `id, company_id, COALESCE(client_id::text, ''), subject, source, status, COALESCE(folder_id::text, ''),
	COALESCE(assignee_id::text, ''), is_urgent, unread_count, last_message_at, last_from_client, ai_classified,
	auto_reply_sent, auto_reply_pending, auto_reply_mode, pending_auto_reply_content, auto_reply_due_at,
	external_thread_id, created_at, updated_at`

func scanConversation(row pgx.Row) (*entity.Conversation, error) {
	var c entity.Conversation
	if err := row.Scan(&c.ID, &c.CompanyID, &c.ClientID, &c.Subject, &c.Source, &c.Status, &c.FolderID,
		&c.AssigneeID, &c.IsUrgent, &c.UnreadCount, &c.LastMessageAt, &c.LastFromClient, &c.AIClassified,
		&c.AutoReplySent, &c.AutoReplyPending, &c.AutoReplyMode, &c.PendingAutoReplyContent, &c.AutoReplyDueAt,
		&c.ExternalThreadID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ConversationRepo) Create(ctx context.Context, c *entity.Conversation) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO conversations (id, company_id, client_id, subject, source, status, folder_id, assignee_id, is_urgent,
			unread_count, last_message_at, last_from_client, ai_classified, auto_reply_sent, auto_reply_pending,
			auto_reply_mode, pending_auto_reply_content, auto_reply_due_at, external_thread_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		c.ID, c.CompanyID, nullIfEmpty(c.ClientID), c.Subject, c.Source, c.Status, nullIfEmpty(c.FolderID), nullIfEmpty(c.AssigneeID),
		c.IsUrgent, c.UnreadCount, c.LastMessageAt, c.LastFromClient, c.AIClassified, c.AutoReplySent, c.AutoReplyPending,
		c.AutoReplyMode, c.PendingAutoReplyContent, c.AutoReplyDueAt, c.ExternalThreadID, c.CreatedAt, c.UpdatedAt)
	return wrap("insert conversation", err)
}

func (r *ConversationRepo) GetByID(ctx context.Context, companyID, id string) (*entity.Conversation, error) {
	return one(r.q.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE company_id = $1 AND id = $2`, companyID, id),
		"get conversation", scanConversation)
}

// Update nunca toca auto_reply_sent: solo MarkAutoReplySent lo cambia.
func (r *ConversationRepo) Update(ctx context.Context, c *entity.Conversation) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE conversations SET client_id=$3, subject=$4, status=$5, folder_id=$6, assignee_id=$7, is_urgent=$8,
			unread_count=$9, last_message_at=$10, last_from_client=$11, ai_classified=$12, auto_reply_pending=$13,
			auto_reply_mode=$14, pending_auto_reply_content=$15, auto_reply_due_at=$16, external_thread_id=$17, updated_at=$18
		WHERE company_id = $1 AND id = $2`,
		c.CompanyID, c.ID, nullIfEmpty(c.ClientID), c.Subject, c.Status, nullIfEmpty(c.FolderID), nullIfEmpty(c.AssigneeID), c.IsUrgent,
		c.UnreadCount, c.LastMessageAt, c.LastFromClient, c.AIClassified, c.AutoReplyPending,
		c.AutoReplyMode, c.PendingAutoReplyContent, c.AutoReplyDueAt, c.ExternalThreadID, c.UpdatedAt)
	return affected(tag, err, "update conversation")
}

func (r *ConversationRepo) List(ctx context.Context, companyID string, f repository.ConversationFilter) ([]*entity.Conversation, int, error) {
	w := &where{}
	w.add("company_id = ?", companyID)
	if f.FolderID != "" {
		w.add("folder_id = ?", f.FolderID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.Source != "" {
		w.add("source = ?", f.Source)
	}
	if f.UnreadOnly {
		w.raw("unread_count > 0")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		w.add("subject ILIKE ?", "%"+escapeLike(s)+"%")
	}
	total, err := count(ctx, r.q, "count conversations", `SELECT count(*) FROM conversations`+w.sql(), w.args...)
	if err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + conversationColumns + ` FROM conversations` + w.sql() + ` ORDER BY last_message_at DESC` + w.page(f.Limit, f.Offset)
	rows, err := r.q.Query(ctx, query, w.args...)
	list, err := collect(rows, err, "list conversations", scanConversation)
	return list, total, err
}

func (r *ConversationRepo) latest(ctx context.Context, op, cond string, args ...any) (*entity.Conversation, error) {
	return one(r.q.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE `+cond+
		` ORDER BY last_message_at DESC LIMIT 1`, args...), op, scanConversation)
}

func (r *ConversationRepo) FindEmailThread(ctx context.Context, companyID, subject string) (*entity.Conversation, error) {
	return r.latest(ctx, "find email thread", `company_id = $1 AND source = $2 AND subject = $3`,
		companyID, entity.SourceEmail, subject)
}

func (r *ConversationRepo) FindByClientSource(ctx context.Context, companyID, clientID, source string) (*entity.Conversation, error) {
	return r.latest(ctx, "find conversation by client", `company_id = $1 AND client_id = $2 AND source = $3`,
		companyID, clientID, source)
}

func (r *ConversationRepo) FindByExternalThread(ctx context.Context, companyID, source, threadID string) (*entity.Conversation, error) {
	if threadID == "" {
		return nil, nil
	}
	return r.latest(ctx, "find conversation by thread", `company_id = $1 AND source = $2 AND external_thread_id = $3`,
		companyID, source, threadID)
}

// MarkAutoReplySent compare-and-set: de dos ejecuciones concurrentes solo una ve true.
func (r *ConversationRepo) MarkAutoReplySent(ctx context.Context, companyID, id string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE conversations SET auto_reply_sent = TRUE, auto_reply_pending = FALSE, auto_reply_due_at = NULL
		WHERE company_id = $1 AND id = $2 AND NOT auto_reply_sent`, companyID, id)
	if err != nil {
		return false, wrap("mark auto reply sent", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ConversationRepo) ListAutoReplyDue(ctx context.Context, now time.Time) ([]*entity.Conversation, error) {
	rows, err := r.q.Query(ctx, `SELECT `+conversationColumns+` FROM conversations
		WHERE NOT auto_reply_sent AND auto_reply_due_at IS NOT NULL AND auto_reply_due_at <= $1
		ORDER BY auto_reply_due_at`, now)
	return collect(rows, err, "list auto reply due", scanConversation)
}

func (r *ConversationRepo) ListUnclassified(ctx context.Context, companyID string, limit int) ([]*entity.Conversation, error) {
	w := &where{}
	w.add("company_id = ?", companyID)
	w.raw("folder_id IS NULL AND NOT ai_classified")
	query := `SELECT ` + conversationColumns + ` FROM conversations` + w.sql() + ` ORDER BY last_message_at` + w.page(limit, 0)
	rows, err := r.q.Query(ctx, query, w.args...)
	return collect(rows, err, "list unclassified", scanConversation)
}

func (r *ConversationRepo) ListForStatusSweep(ctx context.Context) ([]*entity.Conversation, error) {
	rows, err := r.q.Query(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE status NOT IN ($1, $2)`,
		entity.ConversationArchived, entity.ConversationSpam)
	return collect(rows, err, "list status sweep", scanConversation)
}

func (r *ConversationRepo) DeleteByCompany(ctx context.Context, companyID string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM inbox_messages WHERE company_id = $1`, companyID); err != nil {
		return wrap("delete messages", err)
	}
	_, err := r.q.Exec(ctx, `DELETE FROM conversations WHERE company_id = $1`, companyID)
	return wrap("delete conversations", err)
}

const messageColumns = `id, conversation_id, company_id, from_name, from_email, from_phone, subject, content, content_html,
	source, is_from_client, read, COALESCE(external_id, ''), external_metadata, attachments, sent_at, created_at`

func scanMessage(row pgx.Row) (*entity.InboxMessage, error) {
	var m entity.InboxMessage
	if err := row.Scan(&m.ID, &m.ConversationID, &m.CompanyID, &m.FromName, &m.FromEmail, &m.FromPhone, &m.Subject, &m.Content,
		&m.ContentHTML, &m.Source, &m.IsFromClient, &m.Read, &m.ExternalID, &m.ExternalMetadata, &m.Attachments,
		&m.SentAt, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// AddMessage en savepoint: el webhook y la sincronización IMAP pueden competir por el mismo external_id.
func (r *ConversationRepo) AddMessage(ctx context.Context, m *entity.InboxMessage) error {
	metadata := m.ExternalMetadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	attachments := m.Attachments
	if attachments == nil {
		attachments = []entity.Attachment{}
	}
	return savepoint(ctx, r.q, func(sp Querier) error {
		_, err := sp.Exec(ctx, `
			INSERT INTO inbox_messages (id, conversation_id, company_id, from_name, from_email, from_phone, subject, content,
				content_html, source, is_from_client, read, external_id, external_metadata, attachments, sent_at, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
			m.ID, m.ConversationID, m.CompanyID, m.FromName, m.FromEmail, m.FromPhone, m.Subject, m.Content,
			m.ContentHTML, m.Source, m.IsFromClient, m.Read, nullIfEmpty(m.ExternalID), metadata, attachments, m.SentAt, m.CreatedAt)
		return wrap("insert message", err)
	})
}

func (r *ConversationRepo) MessageExists(ctx context.Context, companyID, externalID string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inbox_messages WHERE company_id = $1 AND external_id = $2)`,
		companyID, externalID).Scan(&exists)
	return exists, wrap("message exists", err)
}

func (r *ConversationRepo) ListMessages(ctx context.Context, companyID, conversationID string) ([]*entity.InboxMessage, error) {
	rows, err := r.q.Query(ctx, `SELECT `+messageColumns+` FROM inbox_messages
		WHERE company_id = $1 AND conversation_id = $2 ORDER BY sent_at, created_at`, companyID, conversationID)
	return collect(rows, err, "list messages", scanMessage)
}

func (r *ConversationRepo) MarkMessagesRead(ctx context.Context, companyID, conversationID string) error {
	_, err := r.q.Exec(ctx, `UPDATE inbox_messages SET read = TRUE WHERE company_id = $1 AND conversation_id = $2 AND NOT read`,
		companyID, conversationID)
	return wrap("mark messages read", err)
}

func (r *ConversationRepo) ClientRepliedAfter(ctx context.Context, companyID, clientID string, after time.Time) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM inbox_messages m JOIN conversations c ON c.id = m.conversation_id
			WHERE m.company_id = $1 AND c.client_id = $2 AND m.is_from_client AND m.sent_at > $3
		)`, companyID, clientID, after).Scan(&exists)
	return exists, wrap("client replied after", err)
}

// ── Carpetas ──

// FolderRepo carpetas; ai_rules y auto_reply se guardan como JSONB.
type FolderRepo struct {
	q Querier
}

const folderColumns = `id, company_id, name, color, folder_type, is_system, ai_rules, auto_reply, created_at, updated_at`

func scanFolder(row pgx.Row) (*entity.InboxFolder, error) {
	var f entity.InboxFolder
	if err := row.Scan(&f.ID, &f.CompanyID, &f.Name, &f.Color, &f.FolderType, &f.IsSystem, &f.AIRules, &f.AutoReply,
		&f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FolderRepo) Create(ctx context.Context, f *entity.InboxFolder) error {
	_, err := r.q.Exec(ctx, `INSERT INTO inbox_folders (`+folderColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		f.ID, f.CompanyID, f.Name, f.Color, f.FolderType, f.IsSystem, f.AIRules, f.AutoReply, f.CreatedAt, f.UpdatedAt)
	return wrap("insert folder", err)
}

func (r *FolderRepo) GetByID(ctx context.Context, companyID, id string) (*entity.InboxFolder, error) {
	return one(r.q.QueryRow(ctx, `SELECT `+folderColumns+` FROM inbox_folders WHERE company_id = $1 AND id = $2`, companyID, id),
		"get folder", scanFolder)
}

func (r *FolderRepo) Update(ctx context.Context, f *entity.InboxFolder) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE inbox_folders SET name=$3, color=$4, folder_type=$5, is_system=$6, ai_rules=$7, auto_reply=$8, updated_at=$9
		WHERE company_id = $1 AND id = $2`,
		f.CompanyID, f.ID, f.Name, f.Color, f.FolderType, f.IsSystem, f.AIRules, f.AutoReply, f.UpdatedAt)
	return affected(tag, err, "update folder")
}

// Delete las conversaciones de la carpeta quedan sin carpeta (ON DELETE SET NULL).
func (r *FolderRepo) Delete(ctx context.Context, companyID, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM inbox_folders WHERE company_id = $1 AND id = $2`, companyID, id)
	return affected(tag, err, "delete folder")
}

func (r *FolderRepo) ListByCompany(ctx context.Context, companyID string) ([]entity.InboxFolder, error) {
	rows, err := r.q.Query(ctx, `SELECT `+folderColumns+` FROM inbox_folders WHERE company_id = $1 ORDER BY name`, companyID)
	list, err := collect(rows, err, "list folders", scanFolder)
	if err != nil {
		return nil, err
	}
	out := make([]entity.InboxFolder, 0, len(list))
	for _, f := range list {
		out = append(out, *f)
	}
	return out, nil
}

// ── Integraciones ──

// IntegrationRepo fuentes de mensajes; los secretos llegan ya cifrados.
type IntegrationRepo struct {
	q Querier
}

const integrationColumns = `id, company_id, kind, name, account_address, is_primary, is_active, imap_host, imap_port,
	smtp_host, smtp_port, use_ssl, username, password_enc, api_key_enc, api_secret_enc, webhook_secret_enc,
	sync_interval_minutes, last_sync_at, last_sync_status, last_sync_error, created_at, updated_at`

func scanIntegration(row pgx.Row) (*entity.InboxIntegration, error) {
	var i entity.InboxIntegration
	if err := row.Scan(&i.ID, &i.CompanyID, &i.Kind, &i.Name, &i.AccountAddress, &i.IsPrimary, &i.IsActive, &i.IMAPHost, &i.IMAPPort,
		&i.SMTPHost, &i.SMTPPort, &i.UseSSL, &i.Username, &i.PasswordEnc, &i.APIKeyEnc, &i.APISecretEnc, &i.WebhookSecretEnc,
		&i.SyncIntervalMinutes, &i.LastSyncAt, &i.LastSyncStatus, &i.LastSyncError, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *IntegrationRepo) Create(ctx context.Context, i *entity.InboxIntegration) error {
	_, err := r.q.Exec(ctx, `INSERT INTO inbox_integrations (`+integrationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		i.ID, i.CompanyID, i.Kind, i.Name, i.AccountAddress, i.IsPrimary, i.IsActive, i.IMAPHost, i.IMAPPort,
		i.SMTPHost, i.SMTPPort, i.UseSSL, i.Username, i.PasswordEnc, i.APIKeyEnc, i.APISecretEnc, i.WebhookSecretEnc,
		i.SyncIntervalMinutes, i.LastSyncAt, i.LastSyncStatus, i.LastSyncError, i.CreatedAt, i.UpdatedAt)
	return wrap("insert integration", err)
}

func (r *IntegrationRepo) GetByID(ctx context.Context, companyID, id string) (*entity.InboxIntegration, error) {
	return one(r.q.QueryRow(ctx, `SELECT `+integrationColumns+` FROM inbox_integrations WHERE company_id = $1 AND id = $2`, companyID, id),
		"get integration", scanIntegration)
}

func (r *IntegrationRepo) Update(ctx context.Context, i *entity.InboxIntegration) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE inbox_integrations SET name=$3, account_address=$4, is_primary=$5, is_active=$6, imap_host=$7, imap_port=$8,
			smtp_host=$9, smtp_port=$10, use_ssl=$11, username=$12, password_enc=$13, api_key_enc=$14, api_secret_enc=$15,
			webhook_secret_enc=$16, sync_interval_minutes=$17, updated_at=$18
		WHERE company_id = $1 AND id = $2`,
		i.CompanyID, i.ID, i.Name, i.AccountAddress, i.IsPrimary, i.IsActive, i.IMAPHost, i.IMAPPort,
		i.SMTPHost, i.SMTPPort, i.UseSSL, i.Username, i.PasswordEnc, i.APIKeyEnc, i.APISecretEnc,
		i.WebhookSecretEnc, i.SyncIntervalMinutes, i.UpdatedAt)
	return affected(tag, err, "update integration")
}

func (r *IntegrationRepo) Delete(ctx context.Context, companyID, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM inbox_integrations WHERE company_id = $1 AND id = $2`, companyID, id)
	return affected(tag, err, "delete integration")
}

func (r *IntegrationRepo) ListByCompany(ctx context.Context, companyID string) ([]*entity.InboxIntegration, error) {
	rows, err := r.q.Query(ctx, `SELECT `+integrationColumns+` FROM inbox_integrations WHERE company_id = $1 ORDER BY created_at`, companyID)
	return collect(rows, err, "list integrations", scanIntegration)
}

func (r *IntegrationRepo) ListActive(ctx context.Context) ([]*entity.InboxIntegration, error) {
	rows, err := r.q.Query(ctx, `SELECT `+integrationColumns+` FROM inbox_integrations WHERE is_active ORDER BY created_at`)
	return collect(rows, err, "list active integrations", scanIntegration)
}

// GetPrimary la principal activa del tipo; si ninguna lo es, la más antigua.
func (r *IntegrationRepo) GetPrimary(ctx context.Context, companyID, kind string) (*entity.InboxIntegration, error) {
	return one(r.q.QueryRow(ctx, `SELECT `+integrationColumns+` FROM inbox_integrations
		WHERE company_id = $1 AND kind = $2 AND is_active ORDER BY is_primary DESC, created_at LIMIT 1`, companyID, kind),
		"get primary integration", scanIntegration)
}

func (r *IntegrationRepo) FindByAddress(ctx context.Context, kind, address string) (*entity.InboxIntegration, error) {
	return one(r.q.QueryRow(ctx, `SELECT `+integrationColumns+` FROM inbox_integrations
		WHERE kind = $1 AND is_active AND account_address = $2 ORDER BY created_at LIMIT 1`, kind, address),
		"find integration by address", scanIntegration)
}

func (r *IntegrationRepo) UpdateSyncStatus(ctx context.Context, id string, at time.Time, status, errMsg string) error {
	tag, err := r.q.Exec(ctx, `UPDATE inbox_integrations SET last_sync_at = $2, last_sync_status = $3, last_sync_error = $4 WHERE id = $1`,
		id, at, status, errMsg)
	return affected(tag, err, "update sync status")
}
