package repository

import (
	"context"
	"time"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

// ConversationFilter filtros del listado de conversaciones.
type ConversationFilter struct {
	FolderID   string
	Status     string
	Source     string
	UnreadOnly bool
	Search     string
	Limit      int
	Offset     int
}

// ConversationRepository hilos y mensajes de la bandeja.
type ConversationRepository interface {
	Create(ctx context.Context, c *entity.Conversation) error
	GetByID(ctx context.Context, companyID, id string) (*entity.Conversation, error)
	Update(ctx context.Context, c *entity.Conversation) error
	List(ctx context.Context, companyID string, f ConversationFilter) ([]*entity.Conversation, int, error)

	// FindEmailThread conversación email más reciente con el asunto exacto (ya normalizado).
	FindEmailThread(ctx context.Context, companyID, subject string) (*entity.Conversation, error)
	FindByClientSource(ctx context.Context, companyID, clientID, source string) (*entity.Conversation, error)
	FindByExternalThread(ctx context.Context, companyID, source, threadID string) (*entity.Conversation, error)

	// MarkAutoReplySent CAS false -> true; devuelve false si ya estaba enviada.
	MarkAutoReplySent(ctx context.Context, companyID, id string) (bool, error)
	// ListAutoReplyDue conversaciones con respuesta automática diferida vencida.
	ListAutoReplyDue(ctx context.Context, now time.Time) ([]*entity.Conversation, error)
	// ListUnclassified conversaciones del tenant sin carpeta ni clasificación IA.
	ListUnclassified(ctx context.Context, companyID string, limit int) ([]*entity.Conversation, error)
	// ListForStatusSweep conversaciones no manuales de todos los tenants.
	ListForStatusSweep(ctx context.Context) ([]*entity.Conversation, error)
	DeleteByCompany(ctx context.Context, companyID string) error

	// AddMessage devuelve domain.ErrDuplicate si external_id ya existe.
	AddMessage(ctx context.Context, m *entity.InboxMessage) error
	MessageExists(ctx context.Context, companyID, externalID string) (bool, error)
	ListMessages(ctx context.Context, companyID, conversationID string) ([]*entity.InboxMessage, error)
	MarkMessagesRead(ctx context.Context, companyID, conversationID string) error
	// ClientRepliedAfter true si el cliente escribió en alguna de sus conversaciones después de after.
	ClientRepliedAfter(ctx context.Context, companyID, clientID string, after time.Time) (bool, error)
}

// FolderRepository carpetas de la bandeja.
type FolderRepository interface {
	Create(ctx context.Context, f *entity.InboxFolder) error
	GetByID(ctx context.Context, companyID, id string) (*entity.InboxFolder, error)
	Update(ctx context.Context, f *entity.InboxFolder) error
	Delete(ctx context.Context, companyID, id string) error
	ListByCompany(ctx context.Context, companyID string) ([]entity.InboxFolder, error)
}

// IntegrationRepository fuentes de mensajes (IMAP, SMS, WhatsApp...).
type IntegrationRepository interface {
	Create(ctx context.Context, i *entity.InboxIntegration) error
	GetByID(ctx context.Context, companyID, id string) (*entity.InboxIntegration, error)
	Update(ctx context.Context, i *entity.InboxIntegration) error
	Delete(ctx context.Context, companyID, id string) error
	ListByCompany(ctx context.Context, companyID string) ([]*entity.InboxIntegration, error)
	// ListActive integraciones activas de todos los tenants.
	ListActive(ctx context.Context) ([]*entity.InboxIntegration, error)
	GetPrimary(ctx context.Context, companyID, kind string) (*entity.InboxIntegration, error)
	// FindByAddress resolución de tenant para webhooks entrantes.
	FindByAddress(ctx context.Context, kind, address string) (*entity.InboxIntegration, error)
	UpdateSyncStatus(ctx context.Context, id string, at time.Time, status, errMsg string) error
}
