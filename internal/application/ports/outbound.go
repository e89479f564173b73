package ports

import (
	"context"
	"io"
	"time"

	"github.com/jhoicas/lokario-api/internal/domain/inbox"
)

// SMTPAccount credenciales SMTP de una integración; nil usa la cuenta por defecto del servidor.
type SMTPAccount struct {
	Host     string
	Port     int
	Username string
	Password string
	UseSSL   bool
}

// EmailAttachment adjunto de un email saliente.
type EmailAttachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// EmailMessage email saliente.
type EmailMessage struct {
	From        string
	FromName    string
	To          string
	Subject     string
	Text        string
	HTML        string
	InReplyTo   string
	Attachments []EmailAttachment
	Account     *SMTPAccount
}

// EmailSender transporte SMTP.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// ProviderAccount credenciales de un proveedor SMS/WhatsApp; nil usa las del servidor.
type ProviderAccount struct {
	APIKey    string
	APISecret string
}

// TextMessage SMS o WhatsApp saliente. Channel: sms | whatsapp.
type TextMessage struct {
	Channel string
	From    string
	To      string
	Text    string
	Account *ProviderAccount
}

// TextSender transporte SMS/WhatsApp.
type TextSender interface {
	Send(ctx context.Context, msg TextMessage) error
}

// IMAPAccount parámetros de conexión de una integración IMAP.
type IMAPAccount struct {
	Host     string
	Port     int
	UseSSL   bool
	Username string
	Password string
}

// MailFetcher lee los mensajes no vistos de un buzón.
type MailFetcher interface {
	FetchUnseen(ctx context.Context, acc IMAPAccount, max int) ([]inbox.InboundMessage, error)
}

// BlobStore almacenamiento opaco de ficheros.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	SignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Locker cerrojo de ejecución única (cron). ok=false si otro proceso lo tiene.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}
