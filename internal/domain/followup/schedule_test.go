package followup_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/followup"
)

func TestChannel(t *testing.T) {
	methods := []string{entity.ChannelEmail, entity.ChannelSMS}
	assert.Equal(t, entity.ChannelEmail, followup.Channel(methods, 0))
	assert.Equal(t, entity.ChannelSMS, followup.Channel(methods, 1))
	assert.Equal(t, entity.ChannelSMS, followup.Channel(methods, 7))
	assert.Equal(t, entity.ChannelEmail, followup.Channel(nil, 3))
}

func TestNextDueDate(t *testing.T) {
	day := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	delays := []int{7, 14, 21}
	assert.Equal(t, day.AddDate(0, 0, 7), followup.NextDueDate(day, delays, 7, 0))
	assert.Equal(t, day.AddDate(0, 0, 14), followup.NextDueDate(day, delays, 7, 1))
	assert.Equal(t, day.AddDate(0, 0, 21), followup.NextDueDate(day, delays, 7, 5))
	assert.Equal(t, day.AddDate(0, 0, 3), followup.NextDueDate(day, nil, 3, 0))
}

func TestStopReason(t *testing.T) {
	f := &entity.FollowUp{AutoStopOnPaid: true, AutoStopOnRefused: true, AutoStopOnResponse: true}

	assert.Empty(t, followup.StopReason(f, 1, 3, followup.SourceState{InvoiceStatus: entity.InvoiceStatusSent}))
	assert.NotEmpty(t, followup.StopReason(f, 3, 3, followup.SourceState{}))
	assert.NotEmpty(t, followup.StopReason(f, 0, 3, followup.SourceState{InvoiceStatus: entity.InvoiceStatusPaid}))
	assert.NotEmpty(t, followup.StopReason(f, 0, 3, followup.SourceState{QuoteStatus: entity.QuoteStatusRefused}))
	assert.NotEmpty(t, followup.StopReason(f, 0, 3, followup.SourceState{ClientRepliedAfter: true}))

	f.AutoStopOnPaid = false
	assert.Empty(t, followup.StopReason(f, 0, 3, followup.SourceState{InvoiceStatus: entity.InvoiceStatusPaid}))
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 15*time.Minute, followup.Backoff(1))
	assert.Equal(t, 30*time.Minute, followup.Backoff(2))
	assert.Equal(t, 2*time.Hour, followup.Backoff(4))
	assert.Equal(t, 24*time.Hour, followup.Backoff(30))
}

func TestRender(t *testing.T) {
	tpl := entity.DefaultFollowUpTemplates()[entity.FollowUpTypeUnpaidInvoice]
	out, err := followup.Render(tpl, map[string]string{
		"client_name": "ACME", "source_label": "FAC-2025-0001", "amount": "329,94", "company_name": "Plomberie Martin",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "FAC-2025-0001")
	assert.Contains(t, out, "329,94 €")
	assert.NotContains(t, out, "{")

	_, err = followup.Render("Bonjour {inconnu}", map[string]string{})
	assert.Equal(t, domain.CodeTemplateNotConfigured, domain.CodeOf(err))

	_, err = followup.Render("  ", nil)
	assert.Equal(t, domain.CodeTemplateNotConfigured, domain.CodeOf(err))
}
