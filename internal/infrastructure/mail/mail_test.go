package mail_test

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/internal/infrastructure/mail"
	"github.com/jhoicas/lokario-api/pkg/config"
)

const multipartMsg = "From: \"Jeanne Martin\" <Jeanne.Martin@Example.fr>\r\n" +
	"To: contact@atelier.fr\r\n" +
	"Subject: =?UTF-8?Q?Demande_de_devis_=C3=A9lectricit=C3=A9?=\r\n" +
	"Date: Mon, 03 Mar 2025 09:15:00 +0100\r\n" +
	"Message-ID: <abc123@example.fr>\r\n" +
	"In-Reply-To: <prev@atelier.fr>\r\n" +
	"References: <root@atelier.fr> <prev@atelier.fr>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"XX\"\r\n" +
	"\r\n" +
	"--XX\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Bonjour, pouvez-vous passer jeudi ?\r\n" +
	"--XX\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"plan.pdf\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"JVBERi0xLjQK\r\n" +
	"--XX--\r\n"

func TestParseMessage_Multipart(t *testing.T) {
	msg, err := mail.ParseMessage(strings.NewReader(multipartMsg))
	require.NoError(t, err)

	assert.Equal(t, "abc123@example.fr", msg.ExternalID)
	assert.Equal(t, "Demande de devis électricité", msg.Subject)
	assert.Equal(t, "Jeanne Martin", msg.FromName)
	assert.Equal(t, "jeanne.martin@example.fr", msg.FromEmail)
	assert.Equal(t, "contact@atelier.fr", msg.ToAddress)
	assert.Equal(t, "2025-03-03T08:15:00Z", msg.SentAt.Format("2006-01-02T15:04:05Z07:00"))
	assert.Equal(t, "root@atelier.fr", msg.ThreadID)
	assert.Equal(t, "prev@atelier.fr", msg.Metadata["in_reply_to"])
	assert.Contains(t, msg.ContentText, "pouvez-vous passer jeudi")

	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "plan.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)
	assert.Equal(t, "%PDF-1.4\n", string(msg.Attachments[0].Data))
}

func TestParseMessage_SoloHTML(t *testing.T) {
	raw := "From: a@b.fr\r\nSubject: Test\r\nContent-Type: text/html; charset=iso-8859-1\r\n\r\n<p>R\xe9ponse</p>\r\n"
	msg, err := mail.ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Empty(t, msg.ContentText)
	assert.Contains(t, msg.ContentHTML, "Réponse")
	assert.False(t, msg.SentAt.IsZero())
}

func TestSMTPSender_SinServidor(t *testing.T) {
	s := mail.NewSMTPSender(config.SMTPConfig{}, zerolog.Nop())
	err := s.Send(context.Background(), ports.EmailMessage{From: "a@b.fr", To: "c@d.fr", Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aucun serveur")
}
