package inbox

import "time"

// InboundAttachment adjunto recibido, antes de subirlo al blob store.
type InboundAttachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// InboundMessage mensaje normalizado producido por los adaptadores (IMAP, webhooks).
type InboundMessage struct {
	Source      string
	CompanyID   string
	ExternalID  string
	ThreadID    string
	FromName    string
	FromEmail   string
	FromPhone   string
	ToAddress   string
	Subject     string
	ContentText string
	ContentHTML string
	SentAt      time.Time
	Attachments []InboundAttachment
	Metadata    map[string]any
}
