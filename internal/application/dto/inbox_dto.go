package dto

import "time"

// ConversationFilter parámetros de consulta del listado de conversaciones.
type ConversationFilter struct {
	FolderID   string `query:"folder_id"`
	Status     string `query:"status"`
	Source     string `query:"source"`
	UnreadOnly bool   `query:"unread_only"`
	Search     string `query:"search" validate:"max=200"`
}

// ConversationResponse conversación en la bandeja.
type ConversationResponse struct {
	ID                      string     `json:"id"`
	ClientID                string     `json:"client_id,omitempty"`
	ClientName              string     `json:"client_name,omitempty"`
	Subject                 string     `json:"subject"`
	Source                  string     `json:"source"`
	Status                  string     `json:"status"`
	FolderID                string     `json:"folder_id,omitempty"`
	AssigneeID              string     `json:"assignee_id,omitempty"`
	IsUrgent                bool       `json:"is_urgent"`
	UnreadCount             int        `json:"unread_count"`
	LastMessageAt           time.Time  `json:"last_message_at"`
	AutoReplySent           bool       `json:"auto_reply_sent"`
	AutoReplyPending        bool       `json:"auto_reply_pending"`
	AutoReplyMode           string     `json:"auto_reply_mode,omitempty"`
	PendingAutoReplyContent string     `json:"pending_auto_reply_content,omitempty"`
	AutoReplyDueAt          *time.Time `json:"auto_reply_due_at,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
}

// ConversationListResponse listado paginado.
type ConversationListResponse struct {
	Items []ConversationResponse `json:"items"`
	Page  PageResponse           `json:"page"`
}

// AttachmentResponse adjunto con URL firmada de descarga.
type AttachmentResponse struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	URL         string `json:"url,omitempty"`
}

// InboxMessageResponse mensaje de una conversación.
type InboxMessageResponse struct {
	ID           string               `json:"id"`
	FromName     string               `json:"from_name,omitempty"`
	FromEmail    string               `json:"from_email,omitempty"`
	FromPhone    string               `json:"from_phone,omitempty"`
	Subject      string               `json:"subject,omitempty"`
	Content      string               `json:"content"`
	ContentHTML  string               `json:"content_html,omitempty"`
	Source       string               `json:"source"`
	IsFromClient bool                 `json:"is_from_client"`
	Read         bool                 `json:"read"`
	Attachments  []AttachmentResponse `json:"attachments,omitempty"`
	SentAt       time.Time            `json:"sent_at"`
}

// ConversationDetailResponse conversación con sus mensajes.
type ConversationDetailResponse struct {
	Conversation ConversationResponse   `json:"conversation"`
	Messages     []InboxMessageResponse `json:"messages"`
}

// ReplyRequest respuesta manual desde la bandeja.
type ReplyRequest struct {
	Content string `json:"content" validate:"required,max=20000"`
}

// UpdateConversationRequest cambios manuales (estado, carpeta, asignado).
type UpdateConversationRequest struct {
	Status     *string `json:"status,omitempty"`
	FolderID   *string `json:"folder_id,omitempty"`
	AssigneeID *string `json:"assignee_id,omitempty"`
}

// ApproveAutoReplyRequest aprobación de la respuesta pendiente; Content sustituye al borrador si viene.
type ApproveAutoReplyRequest struct {
	Content *string `json:"content,omitempty" validate:"omitempty,max=20000"`
}

// FolderFiltersRequest filtros de la etapa de reglas.
type FolderFiltersRequest struct {
	Keywords         []string `json:"keywords,omitempty"`
	KeywordsLocation string   `json:"keywords_location,omitempty" validate:"omitempty,oneof=subject content any"`
	SenderEmail      []string `json:"sender_email,omitempty"`
	SenderDomain     []string `json:"sender_domain,omitempty"`
	SenderPhone      []string `json:"sender_phone,omitempty"`
	MatchType        string   `json:"match_type,omitempty" validate:"omitempty,oneof=all any"`
}

// FolderAIRulesRequest reglas de clasificación.
type FolderAIRulesRequest struct {
	AutoClassify bool                 `json:"autoClassify"`
	Priority     int                  `json:"priority" validate:"min=0"`
	Context      string               `json:"context,omitempty" validate:"max=2000"`
	Filters      FolderFiltersRequest `json:"filters"`
}

// FolderAutoReplyRequest política de respuesta automática.
type FolderAutoReplyRequest struct {
	Enabled             bool   `json:"enabled"`
	Mode                string `json:"mode" validate:"omitempty,oneof=none approval auto"`
	Template            string `json:"template,omitempty" validate:"max=5000"`
	AIGenerate          bool   `json:"aiGenerate"`
	Delay               int    `json:"delay,omitempty" validate:"min=0,max=10080"`
	UseCompanyKnowledge bool   `json:"useCompanyKnowledge"`
}

// FolderRequest alta o modificación de carpeta.
type FolderRequest struct {
	Name       string                  `json:"name" validate:"required,max=100"`
	Color      string                  `json:"color,omitempty" validate:"max=20"`
	FolderType string                  `json:"folder_type,omitempty" validate:"max=50"`
	AIRules    *FolderAIRulesRequest   `json:"ai_rules,omitempty"`
	AutoReply  *FolderAutoReplyRequest `json:"auto_reply,omitempty"`
}

// FolderResponse carpeta.
type FolderResponse struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Color      string                 `json:"color,omitempty"`
	FolderType string                 `json:"folder_type,omitempty"`
	IsSystem   bool                   `json:"is_system"`
	AIRules    FolderAIRulesRequest   `json:"ai_rules"`
	AutoReply  FolderAutoReplyRequest `json:"auto_reply"`
}

// IntegrationRequest alta o modificación de integración. Los secretos vacíos en una
// modificación conservan el valor guardado.
type IntegrationRequest struct {
	Kind                string `json:"kind" validate:"required,oneof=imap sms whatsapp messenger email_webhook"`
	Name                string `json:"name" validate:"required,max=100"`
	AccountAddress      string `json:"account_address" validate:"required,max=255"`
	IsPrimary           bool   `json:"is_primary"`
	IsActive            *bool  `json:"is_active,omitempty"`
	IMAPHost            string `json:"imap_host,omitempty" validate:"omitempty,hostname|ip"`
	IMAPPort            int    `json:"imap_port,omitempty" validate:"min=0,max=65535"`
	SMTPHost            string `json:"smtp_host,omitempty" validate:"omitempty,hostname|ip"`
	SMTPPort            int    `json:"smtp_port,omitempty" validate:"min=0,max=65535"`
	UseSSL              bool   `json:"use_ssl"`
	Username            string `json:"username,omitempty" validate:"max=255"`
	Password            string `json:"password,omitempty"`
	APIKey              string `json:"api_key,omitempty"`
	APISecret           string `json:"api_secret,omitempty"`
	WebhookSecret       string `json:"webhook_secret,omitempty"`
	SyncIntervalMinutes int    `json:"sync_interval_minutes,omitempty" validate:"min=0,max=1440"`
}

// IntegrationResponse integración sin secretos.
type IntegrationResponse struct {
	ID                  string     `json:"id"`
	Kind                string     `json:"kind"`
	Name                string     `json:"name"`
	AccountAddress      string     `json:"account_address"`
	IsPrimary           bool       `json:"is_primary"`
	IsActive            bool       `json:"is_active"`
	IMAPHost            string     `json:"imap_host,omitempty"`
	IMAPPort            int        `json:"imap_port,omitempty"`
	SMTPHost            string     `json:"smtp_host,omitempty"`
	SMTPPort            int        `json:"smtp_port,omitempty"`
	UseSSL              bool       `json:"use_ssl"`
	Username            string     `json:"username,omitempty"`
	HasPassword         bool       `json:"has_password"`
	HasAPIKey           bool       `json:"has_api_key"`
	HasWebhookSecret    bool       `json:"has_webhook_secret"`
	SyncIntervalMinutes int        `json:"sync_interval_minutes"`
	LastSyncAt          *time.Time `json:"last_sync_at,omitempty"`
	LastSyncStatus      string     `json:"last_sync_status,omitempty"`
	LastSyncError       string     `json:"last_sync_error,omitempty"`
}

// SyncResponse resultado de una sincronización manual.
type SyncResponse struct {
	Fetched    int    `json:"fetched"`
	Ingested   int    `json:"ingested"`
	Duplicates int    `json:"duplicates"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// WebhookMessage cuerpo normalizado de los webhooks entrantes (SMS, WhatsApp, Messenger,
// email reenviado). Los adaptadores de proveedor lo rellenan desde su formato propio.
type WebhookMessage struct {
	MessageID string    `json:"message_id" validate:"required,max=255"`
	ThreadID  string    `json:"thread_id,omitempty"`
	From      string    `json:"from" validate:"required,max=255"`
	FromName  string    `json:"from_name,omitempty" validate:"max=255"`
	To        string    `json:"to" validate:"required,max=255"`
	Subject   string    `json:"subject,omitempty" validate:"max=998"`
	Text      string    `json:"text"`
	HTML      string    `json:"html,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WebhookResponse acuse del webhook.
type WebhookResponse struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Duplicate      bool   `json:"duplicate"`
}
