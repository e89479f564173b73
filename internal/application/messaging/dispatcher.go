// Package messaging elige el transporte saliente de un tenant (SMTP de su integración
// principal, SMS o WhatsApp por Vonage) y envía el mensaje. Lo usan la respuesta
// automática, las respuestas manuales de la bandeja y las relances.
package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
	"github.com/jhoicas/lokario-api/pkg/secrets"
)

// Timeouts de los transportes salientes.
const (
	SMTPTimeout     = 30 * time.Second
	ProviderTimeout = 15 * time.Second
)

// Defaults remitentes del servidor cuando el tenant no tiene integración propia.
type Defaults struct {
	EmailFrom string
	EmailName string
	SMSFrom   string
}

// Outgoing mensaje a enviar. Channel: email | sms | whatsapp.
type Outgoing struct {
	Channel     string
	To          string
	Subject     string
	Text        string
	InReplyTo   string
	Attachments []ports.EmailAttachment
}

// Sent resultado de un envío: dirección o número remitente efectivamente usado.
type Sent struct {
	Channel string
	From    string
}

// Dispatcher envía por el canal pedido usando las credenciales (cifradas) del tenant.
type Dispatcher struct {
	email    ports.EmailSender
	text     ports.TextSender
	cipher   *secrets.Cipher
	defaults Defaults
	log      zerolog.Logger
}

// NewDispatcher construye el dispatcher. email o text pueden ser nil si el transporte no está configurado.
func NewDispatcher(email ports.EmailSender, text ports.TextSender, cipher *secrets.Cipher, defaults Defaults, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{email: email, text: text, cipher: cipher, defaults: defaults, log: log}
}

// ChannelForSource canal saliente que corresponde al origen de una conversación.
func ChannelForSource(source string) string {
	switch source {
	case entity.SourceSMS:
		return entity.ChannelSMS
	case entity.SourceWhatsApp:
		return entity.ChannelWhatsApp
	default:
		return entity.ChannelEmail
	}
}

// Prepared envío resuelto contra la integración del tenant. Deliver lo transmite sin
// tocar la base, de modo que puede ejecutarse después del commit.
type Prepared struct {
	Sent
	companyID string
	email     *ports.EmailMessage
	text      *ports.TextMessage
}

// Send resuelve la integración principal del canal y transmite.
func (d *Dispatcher) Send(ctx context.Context, r repository.Repos, companyID string, out Outgoing) (*Sent, error) {
	p, err := d.Prepare(ctx, r, companyID, out)
	if err != nil {
		return nil, err
	}
	if err := d.Deliver(ctx, p); err != nil {
		return nil, err
	}
	return &p.Sent, nil
}

// Prepare valida el destinatario y resuelve remitente y credenciales del canal.
func (d *Dispatcher) Prepare(ctx context.Context, r repository.Repos, companyID string, out Outgoing) (*Prepared, error) {
	if strings.TrimSpace(out.To) == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, domain.CodeNoRecipient, "aucun destinataire pour ce canal")
	}
	switch out.Channel {
	case entity.ChannelEmail:
		return d.prepareEmail(ctx, r, companyID, out)
	case entity.ChannelSMS, entity.ChannelWhatsApp:
		return d.prepareText(ctx, r, companyID, out)
	default:
		return nil, unavailable(fmt.Sprintf("canal %q non pris en charge pour l'envoi", out.Channel))
	}
}

// Deliver transmite un envío preparado.
func (d *Dispatcher) Deliver(ctx context.Context, p *Prepared) error {
	switch {
	case p.email != nil:
		sendCtx, cancel := context.WithTimeout(ctx, SMTPTimeout)
		defer cancel()
		if err := d.email.Send(sendCtx, *p.email); err != nil {
			d.log.Warn().Err(err).Str("company_id", p.companyID).Msg("messaging: envío email fallido")
			return fmt.Errorf("%w: smtp: %v", domain.ErrUpstream, err)
		}
	case p.text != nil:
		sendCtx, cancel := context.WithTimeout(ctx, ProviderTimeout)
		defer cancel()
		if err := d.text.Send(sendCtx, *p.text); err != nil {
			d.log.Warn().Err(err).Str("company_id", p.companyID).Str("channel", p.Channel).Msg("messaging: envío fallido")
			return fmt.Errorf("%w: %s: %v", domain.ErrUpstream, p.Channel, err)
		}
	default:
		return unavailable("envoi non préparé")
	}
	return nil
}

func (d *Dispatcher) prepareEmail(ctx context.Context, r repository.Repos, companyID string, out Outgoing) (*Prepared, error) {
	if d.email == nil {
		return nil, unavailable("aucun transport email configuré")
	}
	integ, err := r.Integrations.GetPrimary(ctx, companyID, entity.IntegrationIMAP)
	if err != nil {
		return nil, err
	}
	msg := ports.EmailMessage{
		From:        d.defaults.EmailFrom,
		FromName:    d.defaults.EmailName,
		To:          out.To,
		Subject:     out.Subject,
		Text:        out.Text,
		InReplyTo:   out.InReplyTo,
		Attachments: out.Attachments,
	}
	if integ != nil && integ.SMTPHost != "" {
		msg.From = integ.AccountAddress
		msg.FromName = integ.Name
		msg.Account = &ports.SMTPAccount{
			Host:     integ.SMTPHost,
			Port:     integ.SMTPPort,
			Username: integ.Username,
			Password: d.cipher.Decrypt(integ.PasswordEnc),
			UseSSL:   integ.UseSSL,
		}
	}
	if msg.From == "" {
		return nil, unavailable("aucune adresse d'expédition configurée")
	}
	return &Prepared{Sent: Sent{Channel: entity.ChannelEmail, From: msg.From}, companyID: companyID, email: &msg}, nil
}

func (d *Dispatcher) prepareText(ctx context.Context, r repository.Repos, companyID string, out Outgoing) (*Prepared, error) {
	if d.text == nil {
		return nil, unavailable("aucun fournisseur SMS/WhatsApp configuré")
	}
	kind := entity.IntegrationSMS
	if out.Channel == entity.ChannelWhatsApp {
		kind = entity.IntegrationWhatsApp
	}
	integ, err := r.Integrations.GetPrimary(ctx, companyID, kind)
	if err != nil {
		return nil, err
	}
	msg := ports.TextMessage{Channel: out.Channel, From: d.defaults.SMSFrom, To: out.To, Text: out.Text}
	if integ != nil {
		msg.From = integ.AccountAddress
		if integ.APIKeyEnc != "" {
			msg.Account = &ports.ProviderAccount{
				APIKey:    d.cipher.Decrypt(integ.APIKeyEnc),
				APISecret: d.cipher.Decrypt(integ.APISecretEnc),
			}
		}
	}
	if msg.From == "" || (integ == nil && out.Channel == entity.ChannelWhatsApp) {
		return nil, unavailable(fmt.Sprintf("aucune intégration %s active", kind))
	}
	return &Prepared{Sent: Sent{Channel: out.Channel, From: msg.From}, companyID: companyID, text: &msg}, nil
}

func unavailable(detail string) error {
	return domain.NewError(domain.ErrUpstream, domain.CodeChannelUnavailable, detail)
}
