package inbox_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/inbox"
	"github.com/jhoicas/lokario-api/internal/application/limits"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

func (h *harness) integrations(t *testing.T) *inbox.IntegrationUseCase {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.repos.Subscriptions.Upsert(ctx, &entity.Subscription{
		ID: "s1", CompanyID: tenant, Plan: entity.PlanProfessional, Status: entity.SubscriptionActive,
	}))
	lim := limits.NewService(h.repos)
	lim.Clock = func() time.Time { return h.now }
	sync := inbox.NewSyncService(h.store, h.repos, nil, h.pipeline, h.cipher, zerolog.Nop())
	uc := inbox.NewIntegrationUseCase(h.store, h.repos, lim, h.cipher, sync, zerolog.Nop())
	uc.Clock = func() time.Time { return h.now }
	return uc
}

var owner = &auth.Actor{UserID: "owner", CompanyID: tenant, Role: entity.RoleOwner}

func TestWebhook_FirmaYTenantPorDestino(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	integ, err := h.integrations(t).Create(ctx, owner, dto.IntegrationRequest{
		Kind: entity.IntegrationSMS, Name: "Ligne atelier", AccountAddress: "06 98 76 54 32",
		IsPrimary: true, WebhookSecret: "s3cret",
	})
	require.NoError(t, err)
	assert.Equal(t, "+33698765432", integ.AccountAddress)
	assert.True(t, integ.HasWebhookSecret)

	hook := inbox.NewWebhookUseCase(h.repos, h.pipeline, h.cipher, "", zerolog.Nop())
	body, _ := json.Marshal(dto.WebhookMessage{
		MessageID: "vonage-1", From: "33612345678", To: "33698765432", Text: "Bonjour, dispo demain ?",
		Timestamp: t0,
	})

	_, err = hook.Receive(ctx, "sms", body, "deadbeef")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, domain.CodeInvalidSignature, domain.CodeOf(err))

	res, err := hook.Receive(ctx, "sms", body, "sha256="+inbox.Sign("s3cret", body))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	conv := h.conversation(t, res.ConversationID)
	assert.Equal(t, entity.SourceSMS, conv.Source)

	client, err := h.repos.Clients.GetByPhone(ctx, tenant, "+33612345678")
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, client.ID, conv.ClientID)

	again, err := hook.Receive(ctx, "sms", body, inbox.Sign("s3cret", body))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)

	_, err = hook.Receive(ctx, "fax", body, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWebhook_DestinoDesconocido(t *testing.T) {
	h := newHarness(t)
	hook := inbox.NewWebhookUseCase(h.repos, h.pipeline, h.cipher, "", zerolog.Nop())
	body, _ := json.Marshal(dto.WebhookMessage{MessageID: "x", From: "+33612345678", To: "+33799999999", Text: "?"})
	_, err := hook.Receive(context.Background(), "whatsapp", body, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWebhook_SinSecretoConfigurado(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.integrations(t).Create(ctx, owner, dto.IntegrationRequest{
		Kind: entity.IntegrationSMS, Name: "Ligne atelier", AccountAddress: "+33698765432", IsPrimary: true,
	})
	require.NoError(t, err)
	body, _ := json.Marshal(dto.WebhookMessage{MessageID: "nosig-1", From: "+33612345678", To: "+33698765432", Text: "Bonjour", Timestamp: t0})

	strict := inbox.NewWebhookUseCase(h.repos, h.pipeline, h.cipher, "", zerolog.Nop())
	strict.RequireSignature = true
	_, err = strict.Receive(ctx, "sms", body, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, domain.CodeInvalidSignature, domain.CodeOf(err))

	// Con el secreto compartido la firma vuelve a ser obligatoria y suficiente.
	shared := inbox.NewWebhookUseCase(h.repos, h.pipeline, h.cipher, "commun", zerolog.Nop())
	shared.RequireSignature = true
	_, err = shared.Receive(ctx, "sms", body, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	res, err := shared.Receive(ctx, "sms", body, inbox.Sign("commun", body))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)

	// Fuera de producción se acepta sin firma.
	lax := inbox.NewWebhookUseCase(h.repos, h.pipeline, h.cipher, "", zerolog.Nop())
	other, _ := json.Marshal(dto.WebhookMessage{MessageID: "nosig-2", From: "+33612345678", To: "+33698765432", Text: "Encore moi", Timestamp: t0})
	_, err = lax.Receive(ctx, "sms", other, "")
	require.NoError(t, err)
}

func TestIntegration_UnaPrincipalPorTipoYRespuestaPorSMS(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	uc := h.integrations(t)

	first, err := uc.Create(ctx, owner, dto.IntegrationRequest{Kind: entity.IntegrationSMS, Name: "A", AccountAddress: "+33700000001", IsPrimary: true})
	require.NoError(t, err)
	second, err := uc.Create(ctx, owner, dto.IntegrationRequest{Kind: entity.IntegrationSMS, Name: "B", AccountAddress: "+33700000002", IsPrimary: true, APIKey: "k", APISecret: "s"})
	require.NoError(t, err)

	list, err := uc.List(ctx, owner)
	require.NoError(t, err)
	primaries := map[string]bool{}
	for _, i := range list {
		primaries[i.ID] = i.IsPrimary
	}
	assert.False(t, primaries[first.ID])
	assert.True(t, primaries[second.ID])

	f := facturesFolder()
	f.AIRules.Filters = entity.FolderFilters{SenderPhone: []string{"+33612345678"}}
	f.AutoReply = entity.FolderAutoReply{Enabled: true, Mode: entity.AutoReplyAuto, Template: "Bien reçu."}
	h.folder(t, f)

	h.ingest(t, inboxSMS("sms-1", "+33612345678", "Bonjour"))
	require.Len(t, h.texts.sent, 1)
	sent := h.texts.sent[0]
	assert.Equal(t, entity.ChannelSMS, sent.Channel)
	assert.Equal(t, "+33700000002", sent.From)
	assert.Equal(t, "+33612345678", sent.To)
	require.NotNil(t, sent.Account)
	assert.Equal(t, "k", sent.Account.APIKey)
	assert.Zero(t, h.mailer.count())
}

func TestIntegration_SinPlanInbox(t *testing.T) {
	h := newHarness(t)
	lim := limits.NewService(h.repos)
	uc := inbox.NewIntegrationUseCase(h.store, h.repos, lim, h.cipher, nil, zerolog.Nop())
	_, err := uc.Create(context.Background(), owner, dto.IntegrationRequest{Kind: entity.IntegrationIMAP, Name: "Boîte", AccountAddress: "contact@atelier.fr"})
	assert.Equal(t, domain.CodeFeatureDisabled, domain.CodeOf(err))
}
