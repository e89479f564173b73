package entity

import "time"

// Orígenes de conversación / canales.
const (
	SourceEmail     = "email"
	SourceSMS       = "sms"
	SourceWhatsApp  = "whatsapp"
	SourceMessenger = "messenger"
	SourceForm      = "form"
	// SourceAutoReply marca los mensajes salientes generados por la respuesta automática.
	SourceAutoReply = "auto_reply"
)

// Canales de envío (relances).
const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
	ChannelCall     = "call"
)

// Estados de conversación. Archivé y Spam son manuales y nunca se recalculan.
const (
	ConversationToAnswer = "À répondre"
	ConversationWaiting  = "En attente"
	ConversationAnswered = "Répondu"
	ConversationResolved = "Résolu"
	ConversationUrgent   = "Urgent"
	ConversationArchived = "Archivé"
	ConversationSpam     = "Spam"
)

// Modos de respuesta automática.
const (
	AutoReplyNone     = "none"
	AutoReplyApproval = "approval"
	AutoReplyAuto     = "auto"
)

// Conversation hilo de mensajes de un tenant.
type Conversation struct {
	ID                      string
	CompanyID               string
	ClientID                string
	Subject                 string
	Source                  string
	Status                  string
	FolderID                string
	AssigneeID              string
	IsUrgent                bool
	UnreadCount             int
	LastMessageAt           time.Time
	LastFromClient          bool
	AIClassified            bool
	AutoReplySent           bool // monótono: false -> true una sola vez
	AutoReplyPending        bool
	AutoReplyMode           string
	PendingAutoReplyContent string
	AutoReplyDueAt          *time.Time // envío diferido (delay) en modo auto
	ExternalThreadID        string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Attachment adjunto persistido en el blob store.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	StorageKey  string `json:"storage_key"`
}

// InboxMessage mensaje de una conversación.
type InboxMessage struct {
	ID               string
	ConversationID   string
	CompanyID        string
	FromName         string
	FromEmail        string
	FromPhone        string
	Subject          string
	Content          string
	ContentHTML      string
	Source           string
	IsFromClient     bool
	Read             bool
	ExternalID       string // Message-ID o id del proveedor; vacío = NULL
	ExternalMetadata map[string]any
	Attachments      []Attachment
	SentAt           time.Time
	CreatedAt        time.Time
}

// FolderFilters gramática de filtros de la etapa de reglas.
type FolderFilters struct {
	Keywords         []string `json:"keywords,omitempty"`
	KeywordsLocation string   `json:"keywords_location,omitempty"` // subject | content | any
	SenderEmail      []string `json:"sender_email,omitempty"`
	SenderDomain     []string `json:"sender_domain,omitempty"`
	SenderPhone      []string `json:"sender_phone,omitempty"`
	MatchType        string   `json:"match_type,omitempty"` // all | any
}

// FolderAIRules reglas de clasificación de la carpeta.
type FolderAIRules struct {
	AutoClassify bool          `json:"autoClassify"`
	Priority     int           `json:"priority"`
	Context      string        `json:"context,omitempty"`
	Filters      FolderFilters `json:"filters"`
}

// FolderAutoReply política de respuesta automática de la carpeta. Delay en minutos.
type FolderAutoReply struct {
	Enabled             bool   `json:"enabled"`
	Mode                string `json:"mode"`
	Template            string `json:"template,omitempty"`
	AIGenerate          bool   `json:"aiGenerate"`
	Delay               int    `json:"delay,omitempty"`
	UseCompanyKnowledge bool   `json:"useCompanyKnowledge"`
}

// InboxFolder carpeta de la bandeja.
type InboxFolder struct {
	ID         string
	CompanyID  string
	Name       string
	Color      string
	FolderType string
	IsSystem   bool
	AIRules    FolderAIRules
	AutoReply  FolderAutoReply
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Tipos de integración.
const (
	IntegrationIMAP         = "imap"
	IntegrationSMS          = "sms"
	IntegrationWhatsApp     = "whatsapp"
	IntegrationMessenger    = "messenger"
	IntegrationEmailWebhook = "email_webhook"
)

// Estados de la última sincronización.
const (
	SyncStatusOK    = "ok"
	SyncStatusError = "error"
)

// InboxIntegration fuente de mensajes. Los secretos se guardan cifrados (pkg/secrets).
type InboxIntegration struct {
	ID                  string
	CompanyID           string
	Kind                string
	Name                string
	AccountAddress      string // email, número de teléfono/WhatsApp o id de página
	IsPrimary           bool
	IsActive            bool
	IMAPHost            string
	IMAPPort            int
	SMTPHost            string
	SMTPPort            int
	UseSSL              bool
	Username            string
	PasswordEnc         string
	APIKeyEnc           string
	APISecretEnc        string
	WebhookSecretEnc    string
	SyncIntervalMinutes int
	LastSyncAt          *time.Time
	LastSyncStatus      string
	LastSyncError       string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SyncDue indica si el intervalo configurado ya pasó desde la última sincronización.
func (i *InboxIntegration) SyncDue(now time.Time) bool {
	if i.LastSyncAt == nil {
		return true
	}
	interval := time.Duration(i.SyncIntervalMinutes) * time.Minute
	return !i.LastSyncAt.Add(interval).After(now)
}
