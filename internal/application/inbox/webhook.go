package inbox

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	domaininbox "github.com/jhoicas/lokario-api/internal/domain/inbox"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
	"github.com/jhoicas/lokario-api/pkg/phone"
	"github.com/jhoicas/lokario-api/pkg/secrets"
)

// providerKinds proveedor de la URL -> (tipo de integración, origen del mensaje).
var providerKinds = map[string][2]string{
	"sms":       {entity.IntegrationSMS, entity.SourceSMS},
	"whatsapp":  {entity.IntegrationWhatsApp, entity.SourceWhatsApp},
	"messenger": {entity.IntegrationMessenger, entity.SourceMessenger},
	"email":     {entity.IntegrationEmailWebhook, entity.SourceEmail},
}

// WebhookUseCase recepción de mensajes push. El tenant se resuelve por la dirección de destino.
type WebhookUseCase struct {
	repos        repository.Repos
	pipeline     *Pipeline
	cipher       *secrets.Cipher
	sharedSecret string
	log          zerolog.Logger
	Clock        func() time.Time
	// RequireSignature rechaza los cuerpos de integraciones sin secreto (ni propio ni compartido).
	RequireSignature bool
}

// NewWebhookUseCase construye el caso de uso. sharedSecret se usa cuando la integración no tiene secreto propio.
func NewWebhookUseCase(repos repository.Repos, pipeline *Pipeline, cipher *secrets.Cipher, sharedSecret string, log zerolog.Logger) *WebhookUseCase {
	return &WebhookUseCase{repos: repos, pipeline: pipeline, cipher: cipher, sharedSecret: sharedSecret, log: log, Clock: time.Now}
}

// Sign firma HMAC-SHA256 en hexadecimal, el formato que espera Receive.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Receive valida la firma, normaliza el mensaje y lo ingiere.
func (uc *WebhookUseCase) Receive(ctx context.Context, provider string, body []byte, signature string) (*dto.WebhookResponse, error) {
	kinds, ok := providerKinds[strings.ToLower(provider)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	kind, source := kinds[0], kinds[1]

	var in dto.WebhookMessage
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, domain.Validation("body", "corps JSON invalide")
	}
	if strings.TrimSpace(in.MessageID) == "" || strings.TrimSpace(in.From) == "" || strings.TrimSpace(in.To) == "" {
		return nil, domain.Validation("message_id", "message_id, from et to sont obligatoires")
	}

	address := strings.ToLower(strings.TrimSpace(in.To))
	if source == entity.SourceSMS || source == entity.SourceWhatsApp {
		address = phone.Normalize(in.To)
	}
	integ, err := uc.repos.Integrations.FindByAddress(ctx, kind, address)
	if err != nil {
		return nil, err
	}
	if integ == nil {
		uc.log.Warn().Str("provider", provider).Str("to", address).Msg("inbox: webhook sin integración")
		return nil, domain.ErrNotFound
	}

	secret := uc.cipher.Decrypt(integ.WebhookSecretEnc)
	if secret == "" {
		secret = uc.sharedSecret
	}
	if secret == "" {
		if uc.RequireSignature {
			uc.log.Warn().Str("provider", provider).Str("integration_id", integ.ID).Msg("inbox: webhook rechazado, integración sin secreto")
			return nil, domain.NewError(domain.ErrUnauthorized, domain.CodeInvalidSignature, "aucun secret de webhook configuré")
		}
		uc.log.Warn().Str("provider", provider).Str("integration_id", integ.ID).Msg("inbox: webhook aceptado sin firma")
	} else if !validSignature(secret, body, signature) {
		return nil, domain.NewError(domain.ErrUnauthorized, domain.CodeInvalidSignature, "signature du webhook invalide")
	}

	msg := domaininbox.InboundMessage{
		Source:      source,
		CompanyID:   integ.CompanyID,
		ExternalID:  strings.TrimSpace(in.MessageID),
		ThreadID:    in.ThreadID,
		FromName:    in.FromName,
		ToAddress:   address,
		Subject:     in.Subject,
		ContentText: in.Text,
		ContentHTML: in.HTML,
		SentAt:      in.Timestamp,
		Metadata:    map[string]any{"provider": provider, "integration_id": integ.ID},
	}
	if source == entity.SourceEmail {
		msg.FromEmail = in.From
	} else {
		msg.FromPhone = phone.Normalize(in.From)
	}

	out, err := uc.pipeline.Ingest(ctx, msg)
	if err != nil {
		return nil, err
	}
	if out.NeedsAI {
		if _, err := uc.pipeline.ClassifyPending(ctx, integ.CompanyID); err != nil {
			uc.log.Warn().Err(err).Str("company_id", integ.CompanyID).Msg("inbox: clasificación IA del webhook")
		}
	}
	return &dto.WebhookResponse{ConversationID: out.ConversationID, Duplicate: out.Duplicate}, nil
}

func validSignature(secret string, body []byte, signature string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) == 0 {
		return false
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	return hmac.Equal(got, want)
}
