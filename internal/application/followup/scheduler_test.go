package followup_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/followup"
	"github.com/jhoicas/lokario-api/internal/application/limits"
	"github.com/jhoicas/lokario-api/internal/application/messaging"
	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/testutil/memstore"
	"github.com/jhoicas/lokario-api/pkg/secrets"
)

// miércoles
var start = time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)

type captureMailer struct {
	mu   sync.Mutex
	fail error
	sent []ports.EmailMessage
}

func (m *captureMailer) Send(_ context.Context, msg ports.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type harness struct {
	store     *memstore.Store
	mailer    *captureMailer
	scheduler *followup.Scheduler
	uc        *followup.UseCase
	actor     *auth.Actor
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: memstore.New(), mailer: &captureMailer{}, now: start}
	clock := func() time.Time { return h.now }
	repos := h.store.Repos()

	lim := limits.NewService(repos)
	lim.Clock = clock
	dispatch := messaging.NewDispatcher(h.mailer, nil, secrets.New("", zerolog.Nop()),
		messaging.Defaults{EmailFrom: "noreply@lokario.fr", EmailName: "Lokario"}, zerolog.Nop())

	h.scheduler = followup.NewScheduler(h.store, repos, lim, dispatch, zerolog.Nop())
	h.scheduler.Clock = clock
	h.uc = followup.NewUseCase(h.store, repos, lim, dispatch, zerolog.Nop())
	h.uc.Clock = clock

	ctx := context.Background()
	require.NoError(t, repos.Companies.Create(ctx, &entity.Company{ID: "T1", Code: "T1", Name: "Atelier T1", IsActive: true}))
	require.NoError(t, repos.Clients.Create(ctx, &entity.Client{
		ID: "c1", CompanyID: "T1", Name: "Acme SAS", Type: entity.ClientTypeClient, Email: "client@acme.tld",
	}))
	h.actor = &auth.Actor{UserID: "u1", CompanyID: "T1", Role: entity.RoleOwner}
	return h
}

func (h *harness) create(t *testing.T, req dto.CreateFollowUpRequest) *dto.FollowUpResponse {
	t.Helper()
	if req.ClientID == "" {
		req.ClientID = "c1"
	}
	if req.Type == "" {
		req.Type = entity.FollowUpTypeClientCheckIn
	}
	if req.DueDate == nil {
		due := h.now.Add(-time.Hour)
		req.DueDate = &due
	}
	f, err := h.uc.Create(context.Background(), h.actor, req)
	require.NoError(t, err)
	return f
}

func (h *harness) get(t *testing.T, id string) *dto.FollowUpDetailResponse {
	t.Helper()
	f, err := h.uc.Get(context.Background(), h.actor, id)
	require.NoError(t, err)
	return f
}

func TestScheduler_EnvioYReprogramacion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.create(t, dto.CreateFollowUpRequest{AutoEnabled: true, SourceLabel: "Chantier Dupont"})

	rep, err := h.scheduler.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Sent)
	require.Equal(t, 1, h.mailer.count())
	assert.Equal(t, "client@acme.tld", h.mailer.sent[0].To)
	assert.Equal(t, "Relance : Chantier Dupont", h.mailer.sent[0].Subject)
	assert.Contains(t, h.mailer.sent[0].Text, "Bonjour Acme SAS")
	assert.Contains(t, h.mailer.sent[0].Text, "Atelier T1")

	got := h.get(t, f.ID)
	assert.Equal(t, entity.FollowUpToDo, got.Status)
	assert.Equal(t, 1, got.SentCount)
	require.NotNil(t, got.ActualDate)
	assert.Equal(t, start, *got.ActualDate)
	assert.Equal(t, start.AddDate(0, 0, 7), got.DueDate)
	require.Len(t, got.History, 1)
	assert.Equal(t, followup.SystemSender, got.History[0].SentBy)
	assert.Equal(t, entity.ChannelEmail, got.History[0].Channel)

	rep, err = h.scheduler.RunDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Due, "no vuelve a enviarse antes del siguiente vencimiento")

	h.now = start.AddDate(0, 0, 7)
	rep, err = h.scheduler.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Sent)
	got = h.get(t, f.ID)
	assert.Equal(t, h.now.AddDate(0, 0, 14), got.DueDate)
}

func TestScheduler_MaximoDeRelances(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.create(t, dto.CreateFollowUpRequest{AutoEnabled: true})

	for i := 0; i < 3; i++ {
		rep, err := h.scheduler.RunDue(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, rep.Sent)
		h.now = h.get(t, f.ID).DueDate
	}
	rep, err := h.scheduler.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Stopped)
	assert.Equal(t, 3, h.mailer.count())
	assert.Equal(t, entity.FollowUpDone, h.get(t, f.ID).Status)
}

func TestScheduler_ParadaPorFacturaPagada(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Repos().Invoices.Create(ctx, &entity.Invoice{
		ID: "inv1", CompanyID: "T1", ClientID: "c1", Number: "FAC-2025-0001",
		InvoiceType: entity.InvoiceTypeInvoice, Status: entity.InvoiceStatusSent,
		IssueDate: start, TotalTTC: decimal.NewFromInt(120),
	}))
	f := h.create(t, dto.CreateFollowUpRequest{
		Type: entity.FollowUpTypeUnpaidInvoice, SourceType: entity.FollowUpSourceInvoice, SourceID: "inv1",
		AutoEnabled: true, AutoStopOnPaid: true,
	})
	assert.Equal(t, "FAC-2025-0001", f.SourceLabel)
	assert.True(t, decimal.NewFromInt(120).Equal(f.Amount))

	_, err := h.scheduler.RunDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, h.mailer.count())
	assert.Contains(t, h.mailer.sent[0].Text, "120.00 €")

	inv, err := h.store.Repos().Invoices.GetByID(ctx, "T1", "inv1", false)
	require.NoError(t, err)
	inv.Status = entity.InvoiceStatusPaid
	require.NoError(t, h.store.Repos().Invoices.Update(ctx, inv))

	h.now = start.AddDate(0, 0, 8)
	rep, err := h.scheduler.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Stopped)
	assert.Equal(t, 1, h.mailer.count())
	assert.Equal(t, entity.FollowUpDone, h.get(t, f.ID).Status)
}

func TestScheduler_FalloDeTransporteConBackoff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.create(t, dto.CreateFollowUpRequest{AutoEnabled: true})
	due := h.get(t, f.ID).DueDate

	h.mailer.fail = errors.New("connection refused")
	rep, err := h.scheduler.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)

	got := h.get(t, f.ID)
	assert.Equal(t, due, got.DueDate, "el estado de envío no cambia")
	assert.Empty(t, got.History)
	assert.Contains(t, got.LastError, "connection refused")

	h.now = start.Add(10 * time.Minute)
	rep, err = h.scheduler.RunDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Due, "backoff de 15 minutos")

	h.mailer.fail = nil
	h.now = start.Add(16 * time.Minute)
	rep, err = h.scheduler.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Sent)
	assert.Empty(t, h.get(t, f.ID).LastError)
}

func TestScheduler_PlantillaAusente(t *testing.T) {
	h := newHarness(t)
	f := h.create(t, dto.CreateFollowUpRequest{AutoEnabled: true, Type: "Type inconnu"})

	rep, err := h.scheduler.RunDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Zero(t, h.mailer.count())
	assert.Contains(t, h.get(t, f.ID).LastError, domain.CodeTemplateNotConfigured)
}

func TestFollowUp_EnvioManualCierraLaRelance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.create(t, dto.CreateFollowUpRequest{})

	rep, err := h.scheduler.RunDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Due, "una relance manual no la envía el planificador")

	got, err := h.uc.Send(ctx, h.actor, f.ID, dto.SendFollowUpRequest{Message: "Petit rappel"})
	require.NoError(t, err)
	assert.Equal(t, entity.FollowUpDone, got.Status)
	require.Len(t, got.History, 1)
	assert.Equal(t, "u1", got.History[0].SentBy)
	assert.Equal(t, "Petit rappel", h.mailer.sent[0].Text)

	_, err = h.uc.Send(ctx, h.actor, f.ID, dto.SendFollowUpRequest{})
	assert.Equal(t, domain.CodeWrongState, domain.CodeOf(err))
}

func TestFollowUp_LlamadaSinTransporte(t *testing.T) {
	h := newHarness(t)
	f := h.create(t, dto.CreateFollowUpRequest{})

	got, err := h.uc.Send(context.Background(), h.actor, f.ID, dto.SendFollowUpRequest{Channel: entity.ChannelCall, Message: "Appel, rappeler lundi"})
	require.NoError(t, err)
	assert.Zero(t, h.mailer.count())
	require.Len(t, got.History, 1)
	assert.Equal(t, entity.ChannelCall, got.History[0].Channel)
}

func TestFollowUp_StatsYSemana(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	amount := decimal.RequireFromString("50.5")

	overdue := start.AddDate(0, 0, -3)
	friday := start.AddDate(0, 0, 2)
	nextWeek := start.AddDate(0, 0, 7)
	today := start.Add(2 * time.Hour)
	h.create(t, dto.CreateFollowUpRequest{DueDate: &overdue, Amount: &amount})
	h.create(t, dto.CreateFollowUpRequest{DueDate: &friday, Amount: &amount})
	h.create(t, dto.CreateFollowUpRequest{DueDate: &nextWeek})
	done := h.create(t, dto.CreateFollowUpRequest{DueDate: &today})
	status := entity.FollowUpDone
	_, err := h.uc.Update(ctx, h.actor, done.ID, dto.UpdateFollowUpRequest{Status: &status})
	require.NoError(t, err)

	stats, err := h.uc.Stats(ctx, h.actor)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.ByStatus[entity.FollowUpToDo])
	assert.Equal(t, 1, stats.ByStatus[entity.FollowUpDone])
	assert.Equal(t, 1, stats.Overdue)
	assert.True(t, decimal.NewFromInt(101).Equal(stats.PendingAmount))

	week, err := h.uc.Weekly(ctx, h.actor)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", week.WeekStart)
	require.Len(t, week.Days, 7)
	assert.Len(t, week.Days[4].Items, 1, "viernes")
	assert.Empty(t, week.Days[2].Items, "la relance terminada no aparece")
}

func TestFollowUp_ClienteDeOtroTenant(t *testing.T) {
	h := newHarness(t)
	other := &auth.Actor{UserID: "u2", CompanyID: "T2", Role: entity.RoleOwner}
	_, err := h.uc.Create(context.Background(), other, dto.CreateFollowUpRequest{ClientID: "c1", Type: entity.FollowUpTypeOther})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	f := h.create(t, dto.CreateFollowUpRequest{})
	_, err = h.uc.Get(context.Background(), other, f.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
