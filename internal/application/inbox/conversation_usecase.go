package inbox

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/messaging"
	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	domaininbox "github.com/jhoicas/lokario-api/internal/domain/inbox"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// attachmentURLTTL validez de las URL firmadas de adjuntos.
const attachmentURLTTL = 15 * time.Minute

var validStatuses = map[string]bool{
	entity.ConversationToAnswer: true,
	entity.ConversationWaiting:  true,
	entity.ConversationAnswered: true,
	entity.ConversationResolved: true,
	entity.ConversationUrgent:   true,
	entity.ConversationArchived: true,
	entity.ConversationSpam:     true,
}

// ConversationUseCase lectura y acciones manuales sobre las conversaciones.
type ConversationUseCase struct {
	tx       repository.TxRunner
	repos    repository.Repos
	dispatch *messaging.Dispatcher
	replies  *AutoReplier
	blobs    ports.BlobStore
	log      zerolog.Logger
	Clock    func() time.Time
}

// NewConversationUseCase construye el caso de uso.
func NewConversationUseCase(tx repository.TxRunner, repos repository.Repos, dispatch *messaging.Dispatcher, replies *AutoReplier, blobs ports.BlobStore, log zerolog.Logger) *ConversationUseCase {
	return &ConversationUseCase{tx: tx, repos: repos, dispatch: dispatch, replies: replies, blobs: blobs, log: log, Clock: time.Now}
}

// List conversaciones del tenant, más recientes primero.
func (uc *ConversationUseCase) List(ctx context.Context, actor *auth.Actor, f dto.ConversationFilter, page dto.PageRequest) (*dto.ConversationListResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	page.DefaultPage()
	list, total, err := uc.repos.Conversations.List(ctx, companyID, repository.ConversationFilter{
		FolderID:   f.FolderID,
		Status:     f.Status,
		Source:     f.Source,
		UnreadOnly: f.UnreadOnly,
		Search:     strings.TrimSpace(f.Search),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		return nil, err
	}
	names := map[string]string{}
	out := &dto.ConversationListResponse{
		Items: make([]dto.ConversationResponse, 0, len(list)),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: total},
	}
	for _, c := range list {
		if _, ok := names[c.ClientID]; !ok && c.ClientID != "" {
			names[c.ClientID] = ""
			if cl, err := uc.repos.Clients.GetByID(ctx, companyID, c.ClientID); err == nil && cl != nil {
				names[c.ClientID] = cl.Name
			}
		}
		out.Items = append(out.Items, toConversationResponse(c, names[c.ClientID]))
	}
	return out, nil
}

// Get conversación con sus mensajes; los marca como leídos.
func (uc *ConversationUseCase) Get(ctx context.Context, actor *auth.Actor, id string) (*dto.ConversationDetailResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	var (
		conv     *entity.Conversation
		messages []*entity.InboxMessage
		client   *entity.Client
	)
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		var err error
		if conv, err = loadConversation(ctx, r, companyID, id); err != nil {
			return err
		}
		if messages, err = r.Conversations.ListMessages(ctx, companyID, id); err != nil {
			return err
		}
		if client, err = conversationClient(ctx, r, conv); err != nil {
			return err
		}
		if conv.UnreadCount == 0 {
			return nil
		}
		if err := r.Conversations.MarkMessagesRead(ctx, companyID, id); err != nil {
			return err
		}
		conv.UnreadCount = 0
		return r.Conversations.Update(ctx, conv)
	})
	if err != nil {
		return nil, err
	}

	name := ""
	if client != nil {
		name = client.Name
	}
	out := &dto.ConversationDetailResponse{
		Conversation: toConversationResponse(conv, name),
		Messages:     make([]dto.InboxMessageResponse, 0, len(messages)),
	}
	for _, m := range messages {
		out.Messages = append(out.Messages, uc.toMessageResponse(ctx, m))
	}
	return out, nil
}

// Reply envía una respuesta manual por el canal de la conversación.
func (uc *ConversationUseCase) Reply(ctx context.Context, actor *auth.Actor, id string, in dto.ReplyRequest) (*dto.InboxMessageResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, domain.Validation("content", "le message est vide")
	}
	if uc.dispatch == nil {
		return nil, domain.NewError(domain.ErrUpstream, domain.CodeChannelUnavailable, "aucun transport sortant configuré")
	}
	var msg *entity.InboxMessage
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		conv, err := loadConversation(ctx, r, companyID, id)
		if err != nil {
			return err
		}
		client, err := conversationClient(ctx, r, conv)
		if err != nil {
			return err
		}
		history, err := r.Conversations.ListMessages(ctx, companyID, id)
		if err != nil {
			return err
		}
		out := outgoingFor(conv, client, history, content)
		sent, err := uc.dispatch.Send(ctx, r, companyID, out)
		if err != nil {
			return err
		}

		now := uc.Clock()
		msg = &entity.InboxMessage{
			ID:             uuid.New().String(),
			ConversationID: conv.ID,
			CompanyID:      companyID,
			FromName:       actor.Name,
			Subject:        out.Subject,
			Content:        content,
			Source:         conv.Source,
			IsFromClient:   false,
			Read:           true,
			SentAt:         now,
			CreatedAt:      now,
		}
		senderIdentity(msg, sent)
		if err := r.Conversations.AddMessage(ctx, msg); err != nil {
			return err
		}
		conv.LastFromClient = false
		conv.LastMessageAt = now
		conv.AutoReplyPending = false
		conv.PendingAutoReplyContent = ""
		conv.AutoReplyDueAt = nil
		conv.Status = domaininbox.DeriveStatus(conv.Status, false, conv.IsUrgent, now, now)
		conv.UpdatedAt = now
		return r.Conversations.Update(ctx, conv)
	})
	if err != nil {
		return nil, err
	}
	res := uc.toMessageResponse(ctx, msg)
	return &res, nil
}

// Update cambios manuales de estado, carpeta o asignado.
func (uc *ConversationUseCase) Update(ctx context.Context, actor *auth.Actor, id string, in dto.UpdateConversationRequest) (*dto.ConversationResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	var conv *entity.Conversation
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		if conv, err = loadConversation(ctx, r, companyID, id); err != nil {
			return err
		}
		if in.Status != nil {
			if !validStatuses[*in.Status] {
				return domain.Validation("status", "statut de conversation inconnu")
			}
			conv.Status = *in.Status
		}
		if in.FolderID != nil {
			if *in.FolderID != "" {
				f, err := r.Folders.GetByID(ctx, companyID, *in.FolderID)
				if err != nil {
					return err
				}
				if f == nil {
					return domain.Validation("folder_id", "dossier introuvable")
				}
			}
			conv.FolderID = *in.FolderID
		}
		if in.AssigneeID != nil {
			if *in.AssigneeID != "" {
				u, err := r.Users.GetByID(ctx, *in.AssigneeID)
				if err != nil {
					return err
				}
				if u == nil || u.CompanyID != companyID {
					return domain.Validation("assignee_id", "utilisateur introuvable")
				}
			}
			conv.AssigneeID = *in.AssigneeID
		}
		conv.UpdatedAt = uc.Clock()
		return r.Conversations.Update(ctx, conv)
	})
	if err != nil {
		return nil, err
	}
	res := toConversationResponse(conv, "")
	return &res, nil
}

// ApproveAutoReply envía la respuesta automática pendiente, opcionalmente editada.
func (uc *ConversationUseCase) ApproveAutoReply(ctx context.Context, actor *auth.Actor, id string, in dto.ApproveAutoReplyRequest) (*dto.ConversationResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	conv, err := uc.replies.Approve(ctx, companyID, id, in.Content, actor.UserID)
	if err != nil {
		return nil, err
	}
	res := toConversationResponse(conv, "")
	return &res, nil
}

func loadConversation(ctx context.Context, r repository.Repos, companyID, id string) (*entity.Conversation, error) {
	c, err := r.Conversations.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (uc *ConversationUseCase) toMessageResponse(ctx context.Context, m *entity.InboxMessage) dto.InboxMessageResponse {
	res := dto.InboxMessageResponse{
		ID:           m.ID,
		FromName:     m.FromName,
		FromEmail:    m.FromEmail,
		FromPhone:    m.FromPhone,
		Subject:      m.Subject,
		Content:      m.Content,
		ContentHTML:  m.ContentHTML,
		Source:       m.Source,
		IsFromClient: m.IsFromClient,
		Read:         m.Read,
		SentAt:       m.SentAt,
	}
	for _, a := range m.Attachments {
		att := dto.AttachmentResponse{Filename: a.Filename, ContentType: a.ContentType, Size: a.Size}
		if uc.blobs != nil && a.StorageKey != "" {
			url, err := uc.blobs.SignURL(ctx, a.StorageKey, attachmentURLTTL)
			if err != nil {
				uc.log.Warn().Err(err).Str("key", a.StorageKey).Msg("inbox: URL de adjunto no firmada")
			}
			att.URL = url
		}
		res.Attachments = append(res.Attachments, att)
	}
	return res
}

func toConversationResponse(c *entity.Conversation, clientName string) dto.ConversationResponse {
	return dto.ConversationResponse{
		ID:                      c.ID,
		ClientID:                c.ClientID,
		ClientName:              clientName,
		Subject:                 c.Subject,
		Source:                  c.Source,
		Status:                  c.Status,
		FolderID:                c.FolderID,
		AssigneeID:              c.AssigneeID,
		IsUrgent:                c.IsUrgent,
		UnreadCount:             c.UnreadCount,
		LastMessageAt:           c.LastMessageAt,
		AutoReplySent:           c.AutoReplySent,
		AutoReplyPending:        c.AutoReplyPending,
		AutoReplyMode:           c.AutoReplyMode,
		PendingAutoReplyContent: c.PendingAutoReplyContent,
		AutoReplyDueAt:          c.AutoReplyDueAt,
		CreatedAt:               c.CreatedAt,
	}
}
