package inbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/lokario-api/internal/application/messaging"
	"github.com/jhoicas/lokario-api/internal/application/notification"
	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	domaininbox "github.com/jhoicas/lokario-api/internal/domain/inbox"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// Parámetros de generación de respuestas.
const (
	replyMaxTokens   = 500
	replyTemperature = 0.7
	replyTimeout     = 30 * time.Second
	replyHistory     = 20
)

// Decision resultado de evaluar la respuesta automática de una conversación.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionPending
	DecisionScheduled
)

// AutoReplier motor de respuesta automática por carpeta (none, approval, auto).
type AutoReplier struct {
	tx       repository.TxRunner
	llm      ports.LLMService
	model    string
	dispatch *messaging.Dispatcher
	log      zerolog.Logger
	Clock    func() time.Time
}

// NewAutoReplier construye el motor. llm nil limita las respuestas a plantillas fijas.
func NewAutoReplier(tx repository.TxRunner, llm ports.LLMService, model string, dispatch *messaging.Dispatcher, log zerolog.Logger) *AutoReplier {
	return &AutoReplier{tx: tx, llm: llm, model: model, dispatch: dispatch, log: log, Clock: time.Now}
}

// Evaluate aplica la política de la carpeta sobre la conversación (sin persistirla).
// En modo approval genera el borrador; en modo auto programa el envío en
// AutoReplyDueAt (ahora + delay). Los fallos de configuración o generación no alteran
// el estado y solo se registran.
func (a *AutoReplier) Evaluate(ctx context.Context, r repository.Repos, conv *entity.Conversation, folder *entity.InboxFolder, now time.Time) Decision {
	if conv.AutoReplySent || folder == nil || !folder.AutoReply.Enabled || !conv.LastFromClient {
		return DecisionNone
	}
	switch folder.AutoReply.Mode {
	case entity.AutoReplyApproval:
		if conv.AutoReplyPending {
			return DecisionNone
		}
		content, err := a.Generate(ctx, r, conv, folder)
		if err != nil {
			a.log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("inbox: borrador de respuesta no generado")
			return DecisionNone
		}
		conv.PendingAutoReplyContent = content
		conv.AutoReplyPending = true
		conv.AutoReplyMode = entity.AutoReplyApproval
		err = notification.Emit(ctx, r, notification.Event{
			CompanyID:  conv.CompanyID,
			UserID:     conv.AssigneeID,
			Type:       entity.NotificationAutoReplyPending,
			Title:      "Réponse automatique à valider",
			Message:    truncate(conv.Subject, 120),
			Link:       conversationLink(conv.ID),
			SourceType: "conversation",
			SourceID:   conv.ID,
		}, now)
		if err != nil {
			a.log.Warn().Err(err).Msg("inbox: notificación auto_reply_pending")
		}
		return DecisionPending
	case entity.AutoReplyAuto:
		if conv.AutoReplyDueAt != nil {
			return DecisionNone
		}
		due := now.Add(time.Duration(folder.AutoReply.Delay) * time.Minute)
		conv.AutoReplyDueAt = &due
		conv.AutoReplyMode = entity.AutoReplyAuto
		return DecisionScheduled
	default:
		return DecisionNone
	}
}

// Generate produce el texto de la respuesta. La plantilla de la carpeta es el prompt de
// sistema cuando aiGenerate está activo, y el texto literal en otro caso.
func (a *AutoReplier) Generate(ctx context.Context, r repository.Repos, conv *entity.Conversation, folder *entity.InboxFolder) (string, error) {
	template := strings.TrimSpace(folder.AutoReply.Template)
	if template == "" {
		return "", domain.NewError(domain.ErrInvalidInput, domain.CodePromptNotConfigured, "aucun modèle de réponse configuré pour ce dossier")
	}
	settings, err := r.Companies.GetSettings(ctx, conv.CompanyID)
	if err != nil {
		return "", err
	}
	if !folder.AutoReply.AIGenerate {
		return withSignature(template, settings), nil
	}
	if a.llm == nil {
		return "", generationFailed("aucun fournisseur IA configuré")
	}

	system := template
	if folder.AutoReply.UseCompanyKnowledge && strings.TrimSpace(settings.Inbox.CompanyKnowledge) != "" {
		system += "\n\nInformations sur l'entreprise :\n" + settings.Inbox.CompanyKnowledge
	}
	messages, err := r.Conversations.ListMessages(ctx, conv.CompanyID, conv.ID)
	if err != nil {
		return "", err
	}
	history := chatHistory(messages)
	if len(history) == 0 {
		return "", generationFailed("conversation vide")
	}

	callCtx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	out, err := a.llm.Complete(callCtx, ports.CompletionRequest{
		System:      system,
		Messages:    history,
		Model:       a.model,
		Temperature: replyTemperature,
		MaxTokens:   replyMaxTokens,
	})
	if err != nil {
		return "", generationFailed(err.Error())
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", generationFailed("réponse vide")
	}
	return withSignature(out, settings), nil
}

// SendDue envía las respuestas automáticas diferidas cuyo plazo venció. Devuelve el número enviado.
func (a *AutoReplier) SendDue(ctx context.Context, repos repository.Repos) (int, error) {
	now := a.Clock()
	due, err := repos.Conversations.ListAutoReplyDue(ctx, now)
	if err != nil {
		return 0, err
	}
	sent := 0
	var errs []error
	for _, c := range due {
		ok, err := a.SendScheduled(ctx, c.CompanyID, c.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("conversation %s: %w", c.ID, err))
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, errors.Join(errs...)
}

// SendScheduled genera y envía la respuesta automática programada de una conversación.
// La transacción reclama auto_reply_sent y registra el mensaje saliente; la transmisión
// ocurre después del commit. Un fallo antes del commit deja la conversación intacta y
// se reintenta en el siguiente tick; un fallo de transporte ya no se reintenta.
func (a *AutoReplier) SendScheduled(ctx context.Context, companyID, conversationID string) (bool, error) {
	var (
		conv *entity.Conversation
		send *messaging.Prepared
	)
	err := a.tx.Run(ctx, func(r repository.Repos) error {
		var err error
		conv, err = r.Conversations.GetByID(ctx, companyID, conversationID)
		if err != nil || conv == nil || conv.AutoReplySent || conv.AutoReplyDueAt == nil {
			return err
		}
		var folder *entity.InboxFolder
		if conv.FolderID != "" {
			if folder, err = r.Folders.GetByID(ctx, companyID, conv.FolderID); err != nil {
				return err
			}
		}
		if folder == nil || !folder.AutoReply.Enabled || folder.AutoReply.Mode != entity.AutoReplyAuto || !conv.LastFromClient {
			conv.AutoReplyDueAt = nil
			return r.Conversations.Update(ctx, conv)
		}
		content, err := a.Generate(ctx, r, conv, folder)
		if err != nil {
			if domain.CodeOf(err) == domain.CodePromptNotConfigured {
				a.log.Warn().Str("conversation_id", conv.ID).Msg("inbox: respuesta automática sin plantilla, se anula")
				conv.AutoReplyDueAt = nil
				return r.Conversations.Update(ctx, conv)
			}
			return err
		}
		send, err = a.record(ctx, r, conv, content)
		return err
	})
	if err != nil || send == nil {
		return false, err
	}
	if err := a.deliver(ctx, conv, send); err != nil {
		return false, err
	}
	return true, nil
}

// Approve envía el borrador pendiente (o el contenido editado). Solo una vez por conversación.
func (a *AutoReplier) Approve(ctx context.Context, companyID, conversationID string, edited *string, approver string) (*entity.Conversation, error) {
	var (
		out  *entity.Conversation
		send *messaging.Prepared
	)
	err := a.tx.Run(ctx, func(r repository.Repos) error {
		conv, err := r.Conversations.GetByID(ctx, companyID, conversationID)
		if err != nil {
			return err
		}
		if conv == nil {
			return domain.ErrNotFound
		}
		if conv.AutoReplySent {
			return domain.Conflict(domain.CodeWrongState, "la réponse automatique a déjà été envoyée")
		}
		if !conv.AutoReplyPending {
			return domain.Conflict(domain.CodeWrongState, "aucune réponse automatique en attente de validation")
		}
		content := conv.PendingAutoReplyContent
		if edited != nil {
			content = strings.TrimSpace(*edited)
		}
		if content == "" {
			return domain.Validation("content", "le contenu de la réponse est vide")
		}
		send, err = a.record(ctx, r, conv, content)
		if err != nil {
			return err
		}
		if send == nil {
			return domain.Conflict(domain.CodeWrongState, "la réponse automatique a déjà été envoyée")
		}
		a.log.Info().Str("conversation_id", conv.ID).Str("approved_by", approver).Msg("inbox: respuesta automática aprobada")
		out = conv
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := a.deliver(ctx, out, send); err != nil {
		return nil, err
	}
	return out, nil
}

// record reclama auto_reply_sent (CAS), resuelve el canal y registra el mensaje saliente
// en la transacción r. Devuelve nil sin error si otro worker ganó el CAS.
func (a *AutoReplier) record(ctx context.Context, r repository.Repos, conv *entity.Conversation, content string) (*messaging.Prepared, error) {
	won, err := r.Conversations.MarkAutoReplySent(ctx, conv.CompanyID, conv.ID)
	if err != nil || !won {
		return nil, err
	}
	if a.dispatch == nil {
		return nil, domain.NewError(domain.ErrUpstream, domain.CodeChannelUnavailable, "aucun transport sortant configuré")
	}
	client, err := conversationClient(ctx, r, conv)
	if err != nil {
		return nil, err
	}
	messages, err := r.Conversations.ListMessages(ctx, conv.CompanyID, conv.ID)
	if err != nil {
		return nil, err
	}
	out := outgoingFor(conv, client, messages, content)
	send, err := a.dispatch.Prepare(ctx, r, conv.CompanyID, out)
	if err != nil {
		return nil, err
	}

	now := a.Clock()
	msg := &entity.InboxMessage{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		CompanyID:      conv.CompanyID,
		Subject:        out.Subject,
		Content:        content,
		Source:         entity.SourceAutoReply,
		IsFromClient:   false,
		Read:           true,
		SentAt:         now,
		CreatedAt:      now,
	}
	senderIdentity(msg, &send.Sent)
	if err := r.Conversations.AddMessage(ctx, msg); err != nil {
		return nil, err
	}
	conv.AutoReplySent = true
	conv.AutoReplyPending = false
	conv.AutoReplyDueAt = nil
	conv.PendingAutoReplyContent = ""
	conv.LastFromClient = false
	conv.LastMessageAt = now
	conv.Status = domaininbox.DeriveStatus(conv.Status, false, conv.IsUrgent, now, now)
	conv.UpdatedAt = now
	return send, r.Conversations.Update(ctx, conv)
}

// deliver transmite una respuesta ya registrada. Si el transporte falla, auto_reply_sent
// sigue en true: se avisa al responsable de la conversación para que responda a mano.
func (a *AutoReplier) deliver(ctx context.Context, conv *entity.Conversation, send *messaging.Prepared) error {
	err := a.dispatch.Deliver(ctx, send)
	if err == nil {
		return nil
	}
	a.log.Error().Err(err).Str("conversation_id", conv.ID).Str("channel", send.Channel).Msg("inbox: respuesta automática registrada pero no transmitida")
	nerr := a.tx.Run(ctx, func(r repository.Repos) error {
		return notification.Emit(ctx, r, notification.Event{
			CompanyID:  conv.CompanyID,
			UserID:     conv.AssigneeID,
			Type:       entity.NotificationIntegrationError,
			Title:      "Échec d'envoi de la réponse automatique",
			Message:    truncate(conv.Subject, 120),
			Link:       conversationLink(conv.ID),
			SourceType: "conversation",
			SourceID:   conv.ID,
		}, a.Clock())
	})
	if nerr != nil {
		a.log.Warn().Err(nerr).Msg("inbox: notificación de envío fallido")
	}
	return err
}

func chatHistory(messages []*entity.InboxMessage) []ports.ChatMessage {
	if len(messages) > replyHistory {
		messages = messages[len(messages)-replyHistory:]
	}
	out := make([]ports.ChatMessage, 0, len(messages))
	for _, m := range messages {
		text := strings.TrimSpace(m.Content)
		if text == "" {
			continue
		}
		role := ports.RoleAssistant
		if m.IsFromClient {
			role = ports.RoleUser
		}
		out = append(out, ports.ChatMessage{Role: role, Content: text})
	}
	return out
}

func withSignature(text string, settings *entity.CompanySettings) string {
	if settings == nil || strings.TrimSpace(settings.Inbox.SignatureText) == "" {
		return text
	}
	return text + "\n\n" + strings.TrimSpace(settings.Inbox.SignatureText)
}

func generationFailed(detail string) error {
	return domain.NewError(domain.ErrUpstream, domain.CodeGenerationFailed, "génération de la réponse impossible: "+detail)
}

func conversationLink(id string) string { return "/inbox/conversations/" + id }
