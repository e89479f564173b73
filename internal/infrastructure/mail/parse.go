package mail

import (
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/emersion/go-message"
	// Registra los decodificadores de charset (ISO-8859-1, Windows-1252...).
	_ "github.com/emersion/go-message/charset"
	gomsgmail "github.com/emersion/go-message/mail"

	"github.com/jhoicas/lokario-api/internal/domain/inbox"
)

// maxPartSize tope por parte MIME.
const maxPartSize = 20 << 20

// ParseMessage convierte un mensaje RFC 5322 en InboundMessage. Source y CompanyID los completa quien llama.
func ParseMessage(r io.Reader) (inbox.InboundMessage, error) {
	var out inbox.InboundMessage

	mr, err := gomsgmail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return out, fmt.Errorf("mime: %w", err)
	}
	defer mr.Close()
	h := mr.Header

	out.ExternalID, _ = h.MessageID()
	out.Subject, _ = h.Subject()
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		out.FromName = from[0].Name
		out.FromEmail = strings.ToLower(from[0].Address)
	}
	if to, err := h.AddressList("To"); err == nil && len(to) > 0 {
		out.ToAddress = strings.ToLower(to[0].Address)
	}
	if date, err := h.Date(); err == nil && !date.IsZero() {
		out.SentAt = date.UTC()
	} else {
		out.SentAt = time.Now().UTC()
	}

	meta := map[string]any{}
	if out.ExternalID != "" {
		meta["message_id"] = out.ExternalID
	}
	if ids, _ := h.MsgIDList("In-Reply-To"); len(ids) > 0 {
		meta["in_reply_to"] = ids[0]
		out.ThreadID = ids[0]
	}
	if refs, _ := h.MsgIDList("References"); len(refs) > 0 {
		// La raíz del hilo es la primera referencia.
		out.ThreadID = refs[0]
	}
	out.Metadata = meta

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			return out, fmt.Errorf("mime part: %w", err)
		}
		switch ph := p.Header.(type) {
		case *gomsgmail.InlineHeader:
			ct, _, _ := ph.ContentType()
			body, err := io.ReadAll(io.LimitReader(p.Body, maxPartSize))
			if err != nil {
				return out, fmt.Errorf("mime body: %w", err)
			}
			switch {
			case ct == "text/html" && out.ContentHTML == "":
				out.ContentHTML = string(body)
			case (ct == "text/plain" || ct == "") && out.ContentText == "":
				out.ContentText = string(body)
			}
		case *gomsgmail.AttachmentHeader:
			name, _ := ph.Filename()
			ct, _, _ := ph.ContentType()
			data, err := io.ReadAll(io.LimitReader(p.Body, maxPartSize))
			if err != nil {
				return out, fmt.Errorf("mime attachment: %w", err)
			}
			if name == "" {
				name = "piece-jointe" + extensionFor(ct)
			}
			out.Attachments = append(out.Attachments, inbox.InboundAttachment{Filename: name, ContentType: ct, Data: data})
		}
	}
	return out, nil
}

func extensionFor(contentType string) string {
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}
	return ""
}
