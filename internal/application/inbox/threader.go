package inbox

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/lokario-api/internal/application/messaging"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	domaininbox "github.com/jhoicas/lokario-api/internal/domain/inbox"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
	"github.com/jhoicas/lokario-api/pkg/phone"
)

// identifyClient busca el cliente remitente (email en minúsculas o teléfono E.164) y crea
// uno mínimo si no existe. Devuelve nil si el mensaje no trae ninguna de las dos claves.
func identifyClient(ctx context.Context, r repository.Repos, msg domaininbox.InboundMessage, now time.Time) (*entity.Client, error) {
	email := strings.ToLower(strings.TrimSpace(msg.FromEmail))
	tel := phone.Normalize(msg.FromPhone)
	byPhone := msg.Source == entity.SourceSMS || msg.Source == entity.SourceWhatsApp

	if byPhone && tel != "" {
		c, err := r.Clients.GetByPhone(ctx, msg.CompanyID, tel)
		if err != nil || c != nil {
			return c, err
		}
	} else if email != "" {
		c, err := r.Clients.GetByEmail(ctx, msg.CompanyID, email)
		if err != nil || c != nil {
			return c, err
		}
	} else if tel != "" {
		c, err := r.Clients.GetByPhone(ctx, msg.CompanyID, tel)
		if err != nil || c != nil {
			return c, err
		}
	}
	if email == "" && tel == "" {
		return nil, nil
	}

	name := strings.TrimSpace(msg.FromName)
	if name == "" && email != "" {
		name = domaininbox.NameFromEmail(email)
	}
	if name == "" {
		name = tel
	}
	c := &entity.Client{
		ID:        uuid.New().String(),
		CompanyID: msg.CompanyID,
		Name:      name,
		Type:      entity.ClientTypeClient,
		Email:     email,
		Phone:     tel,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if byPhone {
		c.Email = ""
	}
	return c, r.Clients.Create(ctx, c)
}

// findThread conversación existente a la que pertenece el mensaje, o nil.
//   - email: mismo asunto normalizado (sin Re:/Fwd:) en el tenant;
//   - sms: cualquier conversación sms del mismo cliente;
//   - resto: identificador de hilo del proveedor si viene, si no (cliente, origen).
func findThread(ctx context.Context, r repository.Repos, msg domaininbox.InboundMessage, clientID, subject string) (*entity.Conversation, error) {
	switch msg.Source {
	case entity.SourceEmail:
		if subject != "" {
			return r.Conversations.FindEmailThread(ctx, msg.CompanyID, subject)
		}
	case entity.SourceSMS:
	default:
		if msg.ThreadID != "" {
			c, err := r.Conversations.FindByExternalThread(ctx, msg.CompanyID, msg.Source, msg.ThreadID)
			if err != nil || c != nil {
				return c, err
			}
		}
	}
	if clientID == "" {
		return nil, nil
	}
	return r.Conversations.FindByClientSource(ctx, msg.CompanyID, clientID, msg.Source)
}

// conversationClient cliente vinculado a la conversación (nil si no tiene).
func conversationClient(ctx context.Context, r repository.Repos, conv *entity.Conversation) (*entity.Client, error) {
	if conv.ClientID == "" {
		return nil, nil
	}
	return r.Clients.GetByID(ctx, conv.CompanyID, conv.ClientID)
}

// outgoingFor mensaje saliente por el canal del origen de la conversación.
func outgoingFor(conv *entity.Conversation, client *entity.Client, messages []*entity.InboxMessage, content string) messaging.Outgoing {
	out := messaging.Outgoing{Channel: messaging.ChannelForSource(conv.Source), Text: content}
	var last *entity.InboxMessage
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].IsFromClient {
			last = messages[i]
			break
		}
	}
	if out.Channel == entity.ChannelEmail {
		if client != nil {
			out.To = client.Email
		}
		if out.To == "" && last != nil {
			out.To = last.FromEmail
		}
		out.Subject = replySubject(conv.Subject)
		if last != nil {
			out.InReplyTo = last.ExternalID
		}
		return out
	}
	if client != nil {
		out.To = client.Phone
	}
	if out.To == "" && last != nil {
		out.To = last.FromPhone
	}
	return out
}

func replySubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "Re: votre message"
	}
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

func senderIdentity(msg *entity.InboxMessage, sent *messaging.Sent) {
	if sent == nil {
		return
	}
	if sent.Channel == entity.ChannelEmail {
		msg.FromEmail = sent.From
	} else {
		msg.FromPhone = sent.From
	}
}
