// Package mail adaptadores de correo: envío SMTP (gomail) y lectura IMAP (go-imap).
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/pkg/config"
)

var _ ports.EmailSender = (*SMTPSender)(nil)

const (
	sendGridHost = "smtp.sendgrid.net"
	sendGridUser = "apikey"
)

// SMTPSender envía con la cuenta de la integración del tenant o, si no trae, con la del servidor.
type SMTPSender struct {
	defaults *ports.SMTPAccount
	log      zerolog.Logger
}

// NewSMTPSender cuenta por defecto desde la configuración. Con solo SENDGRID_API_KEY
// se usa el relay SMTP de SendGrid. Devuelve nil si no hay ningún transporte.
func NewSMTPSender(cfg config.SMTPConfig, log zerolog.Logger) *SMTPSender {
	var acc *ports.SMTPAccount
	switch {
	case cfg.Host != "":
		acc = &ports.SMTPAccount{Host: cfg.Host, Port: cfg.Port, Username: cfg.User, Password: cfg.Password, UseSSL: cfg.Port == 465}
	case cfg.SendGridAPIKey != "":
		acc = &ports.SMTPAccount{Host: sendGridHost, Port: 587, Username: sendGridUser, Password: cfg.SendGridAPIKey}
	}
	return &SMTPSender{defaults: acc, log: log}
}

// Send compone el MIME y lo entrega. gomail no acepta context: el envío corre aparte
// y Send vuelve al vencer ctx aunque la conexión siga abierta.
func (s *SMTPSender) Send(ctx context.Context, msg ports.EmailMessage) error {
	acc := msg.Account
	if acc == nil {
		acc = s.defaults
	}
	if acc == nil {
		return errors.New("smtp: aucun serveur configuré")
	}

	m := buildMessage(msg)
	d := gomail.NewDialer(acc.Host, acc.Port, acc.Username, acc.Password)
	d.SSL = acc.UseSSL
	d.TLSConfig = &tls.Config{ServerName: acc.Host, MinVersion: tls.VersionTLS12}

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp %s:%d: %w", acc.Host, acc.Port, err)
		}
		s.log.Debug().Str("to", msg.To).Str("host", acc.Host).Msg("smtp: email enviado")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp %s:%d: %w", acc.Host, acc.Port, ctx.Err())
	}
}

func buildMessage(msg ports.EmailMessage) *gomail.Message {
	m := gomail.NewMessage(gomail.SetCharset("UTF-8"))
	if msg.FromName != "" {
		m.SetAddressHeader("From", msg.From, msg.FromName)
	} else {
		m.SetHeader("From", msg.From)
	}
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.InReplyTo != "" {
		m.SetHeader("In-Reply-To", msg.InReplyTo)
		m.SetHeader("References", msg.InReplyTo)
	}

	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}

	for _, a := range msg.Attachments {
		data := a.Data
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}))
		}
		m.Attach(a.Filename, settings...)
	}
	return m
}
