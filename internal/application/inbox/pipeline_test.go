package inbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/application/inbox"
	"github.com/jhoicas/lokario-api/internal/application/messaging"
	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	domaininbox "github.com/jhoicas/lokario-api/internal/domain/inbox"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
	"github.com/jhoicas/lokario-api/internal/testutil/memstore"
	"github.com/jhoicas/lokario-api/pkg/secrets"
)

const tenant = "T1"

var t0 = time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)

type fakeLLM struct {
	mu    sync.Mutex
	calls []ports.CompletionRequest
	reply func(req ports.CompletionRequest) (string, error)
}

func (f *fakeLLM) Complete(_ context.Context, req ports.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.reply == nil {
		return "Bonjour, merci pour votre message.", nil
	}
	return f.reply(req)
}

func (f *fakeLLM) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type captureMailer struct {
	mu   sync.Mutex
	err  error
	sent []ports.EmailMessage
}

func (m *captureMailer) Send(_ context.Context, msg ports.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type captureTexts struct {
	mu   sync.Mutex
	sent []ports.TextMessage
}

func (c *captureTexts) Send(_ context.Context, msg ports.TextMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

type harness struct {
	store    *memstore.Store
	repos    repository.Repos
	llm      *fakeLLM
	mailer   *captureMailer
	texts    *captureTexts
	cipher   *secrets.Cipher
	pipeline *inbox.Pipeline
	replies  *inbox.AutoReplier
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: memstore.New(), llm: &fakeLLM{}, mailer: &captureMailer{}, texts: &captureTexts{}, now: t0}
	h.repos = h.store.Repos()
	cipher, err := secrets.New("", zerolog.Nop())
	require.NoError(t, err)
	h.cipher = cipher
	clock := func() time.Time { return h.now }

	dispatch := messaging.NewDispatcher(h.mailer, h.texts, cipher, messaging.Defaults{EmailFrom: "noreply@lokario.fr", SMSFrom: "Lokario"}, zerolog.Nop())
	h.replies = inbox.NewAutoReplier(h.store, h.llm, "test-model", dispatch, zerolog.Nop())
	h.replies.Clock = clock
	classifier := inbox.NewClassifier(h.llm, "test-model", zerolog.Nop())
	h.pipeline = inbox.NewPipeline(h.store, nil, classifier, h.replies, zerolog.Nop())
	h.pipeline.Clock = clock
	return h
}

func (h *harness) folder(t *testing.T, f entity.InboxFolder) entity.InboxFolder {
	t.Helper()
	if f.CompanyID == "" {
		f.CompanyID = tenant
	}
	require.NoError(t, h.repos.Folders.Create(context.Background(), &f))
	return f
}

func (h *harness) ingest(t *testing.T, m domaininbox.InboundMessage) *inbox.Outcome {
	t.Helper()
	if m.CompanyID == "" {
		m.CompanyID = tenant
	}
	if m.Source == "" {
		m.Source = entity.SourceEmail
	}
	if m.SentAt.IsZero() {
		m.SentAt = h.now
	}
	out, err := h.pipeline.Ingest(context.Background(), m)
	require.NoError(t, err)
	return out
}

func (h *harness) conversation(t *testing.T, id string) *entity.Conversation {
	t.Helper()
	c, err := h.repos.Conversations.GetByID(context.Background(), tenant, id)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

func facturesFolder() entity.InboxFolder {
	return entity.InboxFolder{
		ID:   "f-factures",
		Name: "Factures",
		AIRules: entity.FolderAIRules{
			AutoClassify: true,
			Priority:     1,
			Filters:      entity.FolderFilters{Keywords: []string{"facture"}, KeywordsLocation: "any", MatchType: "any"},
		},
	}
}

func TestIngest_ReglaGanaSinLLM(t *testing.T) {
	h := newHarness(t)
	h.folder(t, facturesFolder())
	h.folder(t, entity.InboxFolder{ID: "f-devis", Name: "Devis", AIRules: entity.FolderAIRules{AutoClassify: true, Priority: 2, Context: "Demandes de devis"}})

	out := h.ingest(t, domaininbox.InboundMessage{
		ExternalID: "<m1@acme.tld>", FromEmail: "Compta@Acme.tld", FromName: "Compta Acme",
		Subject: "Votre Facture n°12", ContentText: "Bonjour, ci-joint.",
	})
	assert.True(t, out.NewConversation)
	assert.Equal(t, "f-factures", out.FolderID)
	assert.False(t, out.NeedsAI)
	assert.Zero(t, h.llm.count())

	conv := h.conversation(t, out.ConversationID)
	assert.Equal(t, entity.ConversationToAnswer, conv.Status)
	assert.Equal(t, 1, conv.UnreadCount)

	client, err := h.repos.Clients.GetByEmail(context.Background(), tenant, "compta@acme.tld")
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, "Compta Acme", client.Name)
	assert.Equal(t, client.ID, conv.ClientID)
}

func TestIngest_HiloPorAsuntoYDuplicados(t *testing.T) {
	h := newHarness(t)
	first := h.ingest(t, domaininbox.InboundMessage{ExternalID: "<a@x>", FromEmail: "jean.dupont@mail.fr", Subject: "Chantier cuisine", ContentText: "Bonjour"})
	h.now = h.now.Add(time.Hour)
	second := h.ingest(t, domaininbox.InboundMessage{ExternalID: "<b@x>", FromEmail: "jean.dupont@mail.fr", Subject: "RE: Fwd: Chantier cuisine", ContentText: "Relance"})
	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.False(t, second.NewConversation)

	dup := h.ingest(t, domaininbox.InboundMessage{ExternalID: "<b@x>", FromEmail: "jean.dupont@mail.fr", Subject: "Chantier cuisine"})
	assert.True(t, dup.Duplicate)

	conv := h.conversation(t, first.ConversationID)
	assert.Equal(t, 2, conv.UnreadCount)
	assert.Equal(t, h.now, conv.LastMessageAt)
	msgs, err := h.repos.Conversations.ListMessages(context.Background(), tenant, conv.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	client, err := h.repos.Clients.GetByEmail(context.Background(), tenant, "jean.dupont@mail.fr")
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, "jean dupont", client.Name)
}

func TestIngest_SMSAgrupaPorCliente(t *testing.T) {
	h := newHarness(t)
	a := h.ingest(t, domaininbox.InboundMessage{Source: entity.SourceSMS, ExternalID: "sms-1", FromPhone: "06 12 34 56 78", ContentText: "Bonjour"})
	b := h.ingest(t, domaininbox.InboundMessage{Source: entity.SourceSMS, ExternalID: "sms-2", FromPhone: "+33612345678", ContentText: "Vous êtes là ?"})
	assert.Equal(t, a.ConversationID, b.ConversationID)

	client, err := h.repos.Clients.GetByPhone(context.Background(), tenant, "+33612345678")
	require.NoError(t, err)
	require.NotNil(t, client)
}

func TestIngest_UrgenciaYNotificacion(t *testing.T) {
	h := newHarness(t)
	out := h.ingest(t, domaininbox.InboundMessage{ExternalID: "u1", FromEmail: "a@b.fr", Subject: "Chauffe-eau en panne", ContentText: "C'est urgent"})
	conv := h.conversation(t, out.ConversationID)
	assert.True(t, conv.IsUrgent)
	assert.Equal(t, entity.ConversationUrgent, conv.Status)

	list, err := h.repos.Notifications.List(context.Background(), tenant, "u", false, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, entity.NotificationNewMessage, list[0].Type)
}

func approvalFolder(template string) entity.InboxFolder {
	f := facturesFolder()
	f.AutoReply = entity.FolderAutoReply{Enabled: true, Mode: entity.AutoReplyApproval, Template: template}
	return f
}

func TestAutoReply_AprobacionEnviaUnaSolaVez(t *testing.T) {
	h := newHarness(t)
	h.folder(t, approvalFolder("Merci, nous vous répondons sous 24h."))
	ctx := context.Background()

	out := h.ingest(t, domaininbox.InboundMessage{ExternalID: "m1", FromEmail: "client@acme.tld", Subject: "Facture de mars", ContentText: "Bonjour"})
	assert.Equal(t, inbox.DecisionPending, out.AutoReply)

	conv := h.conversation(t, out.ConversationID)
	assert.True(t, conv.AutoReplyPending)
	assert.False(t, conv.AutoReplySent)
	assert.Equal(t, entity.AutoReplyApproval, conv.AutoReplyMode)
	assert.Equal(t, "Merci, nous vous répondons sous 24h.", conv.PendingAutoReplyContent)
	assert.Zero(t, h.mailer.count())

	pending, err := h.repos.Notifications.List(ctx, tenant, "u", true, 10, 0)
	require.NoError(t, err)
	types := map[string]bool{}
	for _, n := range pending {
		types[n.Type] = true
	}
	assert.True(t, types[entity.NotificationAutoReplyPending])

	approved, err := h.replies.Approve(ctx, tenant, conv.ID, nil, "owner")
	require.NoError(t, err)
	assert.True(t, approved.AutoReplySent)
	require.Equal(t, 1, h.mailer.count())
	assert.Equal(t, "client@acme.tld", h.mailer.sent[0].To)
	assert.Equal(t, "Re: Facture de mars", h.mailer.sent[0].Subject)
	assert.Equal(t, "m1", h.mailer.sent[0].InReplyTo)

	_, err = h.replies.Approve(ctx, tenant, conv.ID, nil, "owner")
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 1, h.mailer.count())

	conv = h.conversation(t, out.ConversationID)
	assert.True(t, conv.AutoReplySent)
	assert.False(t, conv.AutoReplyPending)
	assert.Equal(t, entity.ConversationAnswered, conv.Status)
	msgs, err := h.repos.Conversations.ListMessages(ctx, tenant, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.False(t, msgs[1].IsFromClient)
	assert.Equal(t, entity.SourceAutoReply, msgs[1].Source)
}

func TestAutoReply_SinPlantillaNoHaceNada(t *testing.T) {
	h := newHarness(t)
	h.folder(t, approvalFolder(""))
	out := h.ingest(t, domaininbox.InboundMessage{ExternalID: "m1", FromEmail: "client@acme.tld", Subject: "Facture", ContentText: "?"})
	assert.Equal(t, inbox.DecisionNone, out.AutoReply)
	conv := h.conversation(t, out.ConversationID)
	assert.False(t, conv.AutoReplyPending)
	assert.Empty(t, conv.PendingAutoReplyContent)
}

func TestAutoReply_GeneracionFallidaNoAlteraEstado(t *testing.T) {
	h := newHarness(t)
	f := approvalFolder("Tu es l'assistant de l'atelier.")
	f.AutoReply.AIGenerate = true
	h.folder(t, f)
	h.llm.reply = func(ports.CompletionRequest) (string, error) { return "   ", nil }

	out := h.ingest(t, domaininbox.InboundMessage{ExternalID: "m1", FromEmail: "client@acme.tld", Subject: "Facture", ContentText: "?"})
	assert.Equal(t, inbox.DecisionNone, out.AutoReply)
	assert.False(t, h.conversation(t, out.ConversationID).AutoReplyPending)
	assert.Equal(t, 1, h.llm.count())
}

func TestAutoReply_ModoAutoInmediatoUnaVezPorConversacion(t *testing.T) {
	h := newHarness(t)
	f := facturesFolder()
	f.AutoReply = entity.FolderAutoReply{Enabled: true, Mode: entity.AutoReplyAuto, Template: "Tu es l'assistant de l'atelier.", AIGenerate: true}
	h.folder(t, f)

	out := h.ingest(t, domaininbox.InboundMessage{ExternalID: "m1", FromEmail: "client@acme.tld", Subject: "Facture 12", ContentText: "Bonjour"})
	assert.Equal(t, inbox.DecisionScheduled, out.AutoReply)
	require.Equal(t, 1, h.mailer.count())
	assert.Equal(t, "Bonjour, merci pour votre message.", h.mailer.sent[0].Text)

	req := h.llm.calls[0]
	assert.Equal(t, "Tu es l'assistant de l'atelier.", req.System)
	assert.LessOrEqual(t, req.MaxTokens, 500)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, ports.RoleUser, req.Messages[0].Role)

	h.now = h.now.Add(time.Hour)
	h.ingest(t, domaininbox.InboundMessage{ExternalID: "m2", FromEmail: "client@acme.tld", Subject: "Re: Facture 12", ContentText: "Encore moi"})
	assert.Equal(t, 1, h.mailer.count())

	n, err := h.replies.SendDue(context.Background(), h.repos)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAutoReply_ModoAutoConRetraso(t *testing.T) {
	h := newHarness(t)
	f := facturesFolder()
	f.AutoReply = entity.FolderAutoReply{Enabled: true, Mode: entity.AutoReplyAuto, Template: "Bien reçu, nous revenons vers vous.", Delay: 10}
	h.folder(t, f)
	ctx := context.Background()

	out := h.ingest(t, domaininbox.InboundMessage{ExternalID: "m1", FromEmail: "client@acme.tld", Subject: "Facture", ContentText: "Bonjour"})
	assert.Zero(t, h.mailer.count())
	conv := h.conversation(t, out.ConversationID)
	require.NotNil(t, conv.AutoReplyDueAt)
	assert.Equal(t, t0.Add(10*time.Minute), *conv.AutoReplyDueAt)

	h.now = t0.Add(5 * time.Minute)
	n, err := h.replies.SendDue(ctx, h.repos)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.now = t0.Add(11 * time.Minute)
	n, err = h.replies.SendDue(ctx, h.repos)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, h.mailer.count())
	assert.Zero(t, h.llm.count(), "plantilla literal sin aiGenerate")

	n, err = h.replies.SendDue(ctx, h.repos)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func delayedAutoFolder() entity.InboxFolder {
	f := facturesFolder()
	f.AutoReply = entity.FolderAutoReply{Enabled: true, Mode: entity.AutoReplyAuto, Template: "Bien reçu, nous revenons vers vous.", Delay: 10}
	return f
}

func TestAutoReply_CommitFallidoNoEnvia(t *testing.T) {
	h := newHarness(t)
	h.folder(t, delayedAutoFolder())
	ctx := context.Background()
	h.ingest(t, domaininbox.InboundMessage{ExternalID: "m1", FromEmail: "client@acme.tld", Subject: "Facture", ContentText: "Bonjour"})

	h.now = t0.Add(11 * time.Minute)
	h.store.FailNextCommit = errors.New("connexion perdue pendant le commit")
	n, err := h.replies.SendDue(ctx, h.repos)
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Zero(t, h.mailer.count(), "sin commit no sale nada")
}

func TestAutoReply_FalloDeTransporteNoReenvia(t *testing.T) {
	h := newHarness(t)
	h.folder(t, delayedAutoFolder())
	ctx := context.Background()
	out := h.ingest(t, domaininbox.InboundMessage{ExternalID: "m1", FromEmail: "client@acme.tld", Subject: "Facture", ContentText: "Bonjour"})

	h.now = t0.Add(11 * time.Minute)
	h.mailer.err = errors.New("451 greylisted")
	n, err := h.replies.SendDue(ctx, h.repos)
	require.ErrorIs(t, err, domain.ErrUpstream)
	assert.Zero(t, n)

	conv := h.conversation(t, out.ConversationID)
	assert.True(t, conv.AutoReplySent)
	assert.Nil(t, conv.AutoReplyDueAt)
	msgs, err := h.repos.Conversations.ListMessages(ctx, tenant, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, entity.SourceAutoReply, msgs[1].Source)
	assert.Equal(t, "noreply@lokario.fr", msgs[1].FromEmail)

	list, err := h.repos.Notifications.List(ctx, tenant, "u", false, 10, 0)
	require.NoError(t, err)
	types := map[string]bool{}
	for _, notif := range list {
		types[notif.Type] = true
	}
	assert.True(t, types[entity.NotificationIntegrationError])

	h.mailer.err = nil
	h.now = t0.Add(20 * time.Minute)
	n, err = h.replies.SendDue(ctx, h.repos)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, h.mailer.count())
}

func TestAutoReply_AprobacionConTransporteCaido(t *testing.T) {
	h := newHarness(t)
	h.folder(t, approvalFolder("Merci, nous vous répondons sous 24h."))
	ctx := context.Background()
	out := h.ingest(t, domaininbox.InboundMessage{ExternalID: "m1", FromEmail: "client@acme.tld", Subject: "Facture de mars", ContentText: "Bonjour"})

	h.mailer.err = errors.New("connection reset by peer")
	_, err := h.replies.Approve(ctx, tenant, out.ConversationID, nil, "owner")
	require.ErrorIs(t, err, domain.ErrUpstream)

	h.mailer.err = nil
	_, err = h.replies.Approve(ctx, tenant, out.ConversationID, nil, "owner")
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Zero(t, h.mailer.count())
}

func TestClassifyPending_LLMPorLotes(t *testing.T) {
	h := newHarness(t)
	h.folder(t, facturesFolder())
	h.folder(t, entity.InboxFolder{ID: "f-devis", Name: "Devis", AIRules: entity.FolderAIRules{AutoClassify: true, Priority: 2, Context: "Demandes de devis et chiffrages"}})

	var convIDs []string
	for i, subject := range []string{"Demande de prix salle de bain", "Question horaires"} {
		out := h.ingest(t, domaininbox.InboundMessage{ExternalID: string(rune('a' + i)), FromEmail: "x@y.fr", Subject: subject, ContentText: subject})
		assert.True(t, out.NeedsAI)
		convIDs = append(convIDs, out.ConversationID)
	}
	assert.Zero(t, h.llm.count())

	h.llm.reply = func(req ports.CompletionRequest) (string, error) {
		assert.NotNil(t, req.Schema)
		assert.LessOrEqual(t, req.Temperature, 0.3)
		b, _ := json.Marshal(map[string]any{"assignments": []map[string]string{
			{"conversation_id": convIDs[0], "folder_id": "f-devis"},
			{"conversation_id": convIDs[1], "folder_id": "NONE"},
		}})
		return "```json\n" + string(b) + "\n```", nil
	}
	n, err := h.pipeline.ClassifyPending(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, h.llm.count())

	assigned := h.conversation(t, convIDs[0])
	assert.Equal(t, "f-devis", assigned.FolderID)
	assert.True(t, assigned.AIClassified)
	other := h.conversation(t, convIDs[1])
	assert.Empty(t, other.FolderID)
	assert.True(t, other.AIClassified)

	n, err = h.pipeline.ClassifyPending(context.Background(), tenant)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, h.llm.count(), "nada pendiente, sin llamada")
}

func TestSweepStatuses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	replied := t0.Add(-72 * time.Hour)
	require.NoError(t, h.repos.Conversations.Create(ctx, &entity.Conversation{
		ID: "c1", CompanyID: tenant, Source: entity.SourceEmail, Status: entity.ConversationAnswered, LastMessageAt: replied,
	}))
	require.NoError(t, h.repos.Conversations.Create(ctx, &entity.Conversation{
		ID: "c2", CompanyID: tenant, Source: entity.SourceEmail, Status: entity.ConversationArchived, LastMessageAt: replied,
	}))

	n, err := h.pipeline.SweepStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, entity.ConversationWaiting, h.conversation(t, "c1").Status)
	assert.Equal(t, entity.ConversationArchived, h.conversation(t, "c2").Status)
}

func inboxSMS(id, from, text string) domaininbox.InboundMessage {
	return domaininbox.InboundMessage{Source: entity.SourceSMS, ExternalID: id, FromPhone: from, ContentText: text}
}
