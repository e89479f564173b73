package inbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/lokario-api/internal/application/notification"
	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	domaininbox "github.com/jhoicas/lokario-api/internal/domain/inbox"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// maxClassifyBatches límite de lotes LLM por tenant y pasada.
const maxClassifyBatches = 5

var errDuplicateMessage = errors.New("inbox: mensaje duplicado")

// Outcome resultado de ingerir un mensaje.
type Outcome struct {
	ConversationID  string
	MessageID       string
	Duplicate       bool
	NewConversation bool
	FolderID        string
	NeedsAI         bool
	AutoReply       Decision
}

// Pipeline ingestión de un mensaje entrante: cliente, hilo, clasificación y respuesta
// automática en una única transacción.
type Pipeline struct {
	tx         repository.TxRunner
	blobs      ports.BlobStore
	classifier *Classifier
	replies    *AutoReplier
	log        zerolog.Logger
	Clock      func() time.Time
}

// NewPipeline construye el pipeline. blobs nil descarta los adjuntos.
func NewPipeline(tx repository.TxRunner, blobs ports.BlobStore, classifier *Classifier, replies *AutoReplier, log zerolog.Logger) *Pipeline {
	return &Pipeline{tx: tx, blobs: blobs, classifier: classifier, replies: replies, log: log, Clock: time.Now}
}

// Ingest procesa un mensaje. Los duplicados (mismo external_id en el tenant) se
// ignoran sin error. Una respuesta automática sin delay se envía tras el commit.
func (p *Pipeline) Ingest(ctx context.Context, msg domaininbox.InboundMessage) (*Outcome, error) {
	if msg.CompanyID == "" || msg.Source == "" {
		return nil, domain.Validation("company_id", "message entrant sans tenant ou sans source")
	}
	if msg.ExternalID != "" {
		dup := false
		err := p.tx.Run(ctx, func(r repository.Repos) error {
			var err error
			dup, err = r.Conversations.MessageExists(ctx, msg.CompanyID, msg.ExternalID)
			return err
		})
		if err != nil {
			return nil, err
		}
		if dup {
			return &Outcome{Duplicate: true}, nil
		}
	}

	now := p.Clock()
	if msg.SentAt.IsZero() || msg.SentAt.After(now) {
		msg.SentAt = now
	}
	attachments := p.storeAttachments(ctx, msg)

	out := &Outcome{}
	err := p.tx.Run(ctx, func(r repository.Repos) error {
		client, err := identifyClient(ctx, r, msg, now)
		if err != nil {
			return err
		}
		clientID := ""
		if client != nil {
			clientID = client.ID
		}

		subject := domaininbox.NormalizeSubject(msg.Subject)
		conv, err := findThread(ctx, r, msg, clientID, subject)
		if err != nil {
			return err
		}
		if conv == nil {
			conv = &entity.Conversation{
				ID:               uuid.New().String(),
				CompanyID:        msg.CompanyID,
				ClientID:         clientID,
				Subject:          subject,
				Source:           msg.Source,
				Status:           entity.ConversationToAnswer,
				ExternalThreadID: msg.ThreadID,
				AutoReplyMode:    entity.AutoReplyNone,
				CreatedAt:        now,
			}
			if conv.Subject == "" && msg.Source != entity.SourceEmail {
				conv.Subject = defaultSubject(msg.Source, client)
			}
			conv.LastMessageAt = msg.SentAt
			conv.UpdatedAt = now
			if err := r.Conversations.Create(ctx, conv); err != nil {
				return err
			}
			out.NewConversation = true
		}

		m := &entity.InboxMessage{
			ID:               uuid.New().String(),
			ConversationID:   conv.ID,
			CompanyID:        msg.CompanyID,
			FromName:         msg.FromName,
			FromEmail:        strings.ToLower(strings.TrimSpace(msg.FromEmail)),
			FromPhone:        msg.FromPhone,
			Subject:          strings.TrimSpace(msg.Subject),
			Content:          msg.ContentText,
			ContentHTML:      msg.ContentHTML,
			Source:           msg.Source,
			IsFromClient:     true,
			ExternalID:       msg.ExternalID,
			ExternalMetadata: msg.Metadata,
			Attachments:      attachments,
			SentAt:           msg.SentAt,
			CreatedAt:        now,
		}
		if err := r.Conversations.AddMessage(ctx, m); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				return errDuplicateMessage
			}
			return err
		}
		if conv.ClientID == "" {
			conv.ClientID = clientID
		}
		conv.UnreadCount++
		if !msg.SentAt.Before(conv.LastMessageAt) {
			conv.LastMessageAt = msg.SentAt
		}
		conv.LastFromClient = true

		folders, err := r.Folders.ListByCompany(ctx, msg.CompanyID)
		if err != nil {
			return err
		}
		folder, needsAI := p.classifier.Apply(conv, m, folders, now)
		out.AutoReply = p.replies.Evaluate(ctx, r, conv, folder, now)
		conv.UpdatedAt = now
		if err := r.Conversations.Update(ctx, conv); err != nil {
			return err
		}

		err = notification.Emit(ctx, r, notification.Event{
			CompanyID:  conv.CompanyID,
			UserID:     conv.AssigneeID,
			Type:       entity.NotificationNewMessage,
			Title:      "Nouveau message",
			Message:    truncate(firstNonEmpty(m.FromName, m.FromEmail, m.FromPhone)+" : "+firstNonEmpty(conv.Subject, m.Content), 160),
			Link:       conversationLink(conv.ID),
			SourceType: "conversation",
			SourceID:   conv.ID,
		}, now)
		if err != nil {
			return err
		}

		out.ConversationID = conv.ID
		out.MessageID = m.ID
		out.FolderID = conv.FolderID
		out.NeedsAI = needsAI
		return nil
	})
	if errors.Is(err, errDuplicateMessage) {
		return &Outcome{Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}

	p.log.Info().Str("company_id", msg.CompanyID).Str("conversation_id", out.ConversationID).
		Str("source", msg.Source).Str("folder_id", out.FolderID).Bool("new", out.NewConversation).
		Msg("inbox: mensaje ingerido")

	if out.AutoReply == DecisionScheduled {
		p.sendIfDue(ctx, msg.CompanyID, out.ConversationID)
	}
	return out, nil
}

// sendIfDue envía ya la respuesta automática cuando el delay de la carpeta es cero.
func (p *Pipeline) sendIfDue(ctx context.Context, companyID, conversationID string) {
	var due *time.Time
	_ = p.tx.Run(ctx, func(r repository.Repos) error {
		c, err := r.Conversations.GetByID(ctx, companyID, conversationID)
		if c != nil {
			due = c.AutoReplyDueAt
		}
		return err
	})
	if due == nil || due.After(p.Clock()) {
		return
	}
	if _, err := p.replies.SendScheduled(ctx, companyID, conversationID); err != nil {
		p.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("inbox: respuesta automática no enviada")
	}
}

// ClassifyPending etapa LLM por lotes para las conversaciones sin carpeta del tenant.
// Las asignadas pasan por el motor de respuesta automática.
func (p *Pipeline) ClassifyPending(ctx context.Context, companyID string) (int, error) {
	if !p.classifier.AIEnabled() {
		return 0, nil
	}
	assigned := 0
	for i := 0; i < maxClassifyBatches; i++ {
		var (
			folders []entity.InboxFolder
			batch   []Candidate
		)
		err := p.tx.Run(ctx, func(r repository.Repos) error {
			var err error
			if folders, err = r.Folders.ListByCompany(ctx, companyID); err != nil {
				return err
			}
			if len(domaininbox.AutoClassifyFolders(folders)) == 0 {
				return nil
			}
			convs, err := r.Conversations.ListUnclassified(ctx, companyID, ClassifyBatchSize)
			if err != nil {
				return err
			}
			for _, c := range convs {
				msgs, err := r.Conversations.ListMessages(ctx, companyID, c.ID)
				if err != nil {
					return err
				}
				cand := Candidate{ConversationID: c.ID, Subject: c.Subject}
				for j := len(msgs) - 1; j >= 0; j-- {
					if msgs[j].IsFromClient {
						cand.FromEmail = firstNonEmpty(msgs[j].FromEmail, msgs[j].FromPhone)
						cand.Content = msgs[j].Content
						break
					}
				}
				batch = append(batch, cand)
			}
			return nil
		})
		if err != nil || len(batch) == 0 {
			return assigned, err
		}

		suggestions, err := p.classifier.Suggest(ctx, folders, batch)
		if err != nil {
			return assigned, err
		}

		err = p.tx.Run(ctx, func(r repository.Repos) error {
			now := p.Clock()
			for _, cand := range batch {
				conv, err := r.Conversations.GetByID(ctx, companyID, cand.ConversationID)
				if err != nil {
					return err
				}
				if conv == nil || conv.FolderID != "" {
					continue
				}
				conv.AIClassified = true
				if id, ok := suggestions[conv.ID]; ok {
					conv.FolderID = id
					assigned++
					p.replies.Evaluate(ctx, r, conv, folderByID(folders, id), now)
				}
				conv.UpdatedAt = now
				if err := r.Conversations.Update(ctx, conv); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return assigned, err
		}
		if len(batch) < ClassifyBatchSize {
			break
		}
	}
	return assigned, nil
}

// SweepStatuses recalcula el estado derivado de las conversaciones no manuales.
func (p *Pipeline) SweepStatuses(ctx context.Context) (int, error) {
	changed := 0
	err := p.tx.Run(ctx, func(r repository.Repos) error {
		now := p.Clock()
		convs, err := r.Conversations.ListForStatusSweep(ctx)
		if err != nil {
			return err
		}
		for _, c := range convs {
			next := domaininbox.DeriveStatus(c.Status, c.LastFromClient, c.IsUrgent, c.LastMessageAt, now)
			if next == c.Status {
				continue
			}
			c.Status = next
			c.UpdatedAt = now
			if err := r.Conversations.Update(ctx, c); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	return changed, err
}

// storeAttachments sube los adjuntos al blob store. Un fallo descarta ese adjunto.
func (p *Pipeline) storeAttachments(ctx context.Context, msg domaininbox.InboundMessage) []entity.Attachment {
	if len(msg.Attachments) == 0 {
		return nil
	}
	if p.blobs == nil {
		p.log.Warn().Int("count", len(msg.Attachments)).Msg("inbox: sin blob store, adjuntos descartados")
		return nil
	}
	prefix := fmt.Sprintf("inbox/%s/%s", msg.CompanyID, uuid.New().String())
	out := make([]entity.Attachment, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		name := safeFilename(a.Filename)
		key := prefix + "/" + name
		ct := firstNonEmpty(a.ContentType, "application/octet-stream")
		if err := p.blobs.Put(ctx, key, bytes.NewReader(a.Data), ct); err != nil {
			p.log.Warn().Err(err).Str("filename", name).Msg("inbox: adjunto no almacenado")
			continue
		}
		out = append(out, entity.Attachment{Filename: name, ContentType: ct, Size: int64(len(a.Data)), StorageKey: key})
	}
	return out
}

func safeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return "piece-jointe"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r < 0x20:
			continue
		case r == ' ':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func defaultSubject(source string, client *entity.Client) string {
	label := map[string]string{
		entity.SourceSMS:       "SMS",
		entity.SourceWhatsApp:  "WhatsApp",
		entity.SourceMessenger: "Messenger",
		entity.SourceForm:      "Formulaire",
	}[source]
	if label == "" {
		label = "Message"
	}
	if client != nil && client.Name != "" {
		return label + " - " + client.Name
	}
	return label
}
