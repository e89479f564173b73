package billing_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/billing"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/limits"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/testutil/memstore"
)

var fixedNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

type env struct {
	store    *memstore.Store
	limits   *limits.Service
	invoices *billing.InvoiceUseCase
	quotes   *billing.QuoteUseCase
	meta     auth.RequestMeta
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memstore.New()
	lim := limits.NewService(store.Repos())
	lim.Clock = func() time.Time { return fixedNow }
	inv := billing.NewInvoiceUseCase(store, store.Repos(), lim, zerolog.Nop())
	inv.Clock = func() time.Time { return fixedNow }
	q := billing.NewQuoteUseCase(store, store.Repos(), lim, zerolog.Nop())
	q.Clock = func() time.Time { return fixedNow }
	return &env{store: store, limits: lim, invoices: inv, quotes: q, meta: auth.RequestMeta{IP: "203.0.113.7", UserAgent: "test"}}
}

// seedTenant crea la empresa, un cliente y devuelve el actor propietario y el id del cliente.
func (e *env) seedTenant(t *testing.T, companyID string) (*auth.Actor, string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.store.Repos().Companies.Create(ctx, &entity.Company{
		ID: companyID, Code: companyID, Name: "Atelier " + companyID, Siren: "732829320",
		LegalForm: "SARL", Capital: decimal.NewFromInt(5000), IsActive: true,
	}))
	clientID := companyID + "-client"
	require.NoError(t, e.store.Repos().Clients.Create(ctx, &entity.Client{
		ID: clientID, CompanyID: companyID, Name: "Acme SAS", Type: entity.ClientTypeClient, Email: "client@acme.tld",
	}))
	return &auth.Actor{UserID: companyID + "-owner", CompanyID: companyID, Role: entity.RoleOwner}, clientID
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func twoLines() []dto.LineRequest {
	return []dto.LineRequest{
		{Description: "Développement", Quantity: d("2"), UnitPriceHT: d("100"), TaxRate: d("20")},
		{Description: "Livres", Quantity: d("1.5"), UnitPriceHT: d("80"), TaxRate: d("5.5")},
	}
}

func TestInvoice_TotalesYAvoir(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor, clientID := e.seedTenant(t, "T1")

	inv, err := e.invoices.Create(ctx, actor, e.meta, dto.CreateInvoiceRequest{
		ClientID: clientID,
		Lines:    twoLines(),
		Discount: &dto.DiscountRequest{Type: entity.DiscountPercentage, Value: d("10"), Label: "Fidélité"},
	})
	require.NoError(t, err)
	assert.Equal(t, "FAC-2025-0001", inv.Number)
	assert.Equal(t, entity.InvoiceStatusDraft, inv.Status)
	require.Len(t, inv.Lines, 2)
	assert.True(t, d("240.00").Equal(inv.Lines[0].TotalTTC))
	assert.True(t, d("6.60").Equal(inv.Lines[1].TaxAmount))
	assert.True(t, d("126.60").Equal(inv.Lines[1].TotalTTC))
	assert.True(t, d("320.00").Equal(inv.SubtotalHT))
	assert.True(t, d("46.60").Equal(inv.TotalTax))
	assert.True(t, d("329.94").Equal(inv.TotalTTC), inv.TotalTTC.String())
	require.NotNil(t, inv.Discount)
	assert.True(t, d("36.66").Equal(inv.Discount.Amount))
	require.NotNil(t, inv.DueDate)
	assert.Equal(t, "2025-04-14", inv.DueDate.Format("2006-01-02"))
	assert.True(t, d("12.15").Equal(inv.LatePenaltyRate))
	assert.True(t, d("40").Equal(inv.RecoveryFee))

	_, err = e.invoices.Send(ctx, actor, e.meta, inv.ID)
	require.NoError(t, err)

	credit, err := e.invoices.CreateCreditNote(ctx, actor, e.meta, inv.ID, dto.CreditNoteRequest{Amount: d("100.00")})
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceTypeCreditNote, credit.InvoiceType)
	assert.Equal(t, inv.ID, credit.OriginalInvoiceID)
	require.NotNil(t, credit.CreditAmount)
	assert.True(t, d("100.00").Equal(*credit.CreditAmount))
	assert.True(t, d("100.00").Equal(credit.TotalTTC))
	assert.Equal(t, "AVO-2025-0001-AVOIR", credit.Number)

	for _, id := range []string{inv.ID, credit.ID} {
		logs, err := e.invoices.AuditLogs(ctx, actor, id)
		require.NoError(t, err)
		found := false
		for _, l := range logs {
			if l.Action == entity.AuditCreditNoteCreated {
				found = true
				assert.Contains(t, l.Description, "100,00 €")
			}
		}
		assert.True(t, found, "credit_note_created ausente en %s", id)
	}
}

func TestInvoice_AvoirsAcumuladosNoSuperanElTotal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor, clientID := e.seedTenant(t, "T1")

	inv, err := e.invoices.Create(ctx, actor, e.meta, dto.CreateInvoiceRequest{ClientID: clientID, Lines: twoLines()})
	require.NoError(t, err)
	require.True(t, d("366.60").Equal(inv.TotalTTC), inv.TotalTTC.String())
	_, err = e.invoices.Send(ctx, actor, e.meta, inv.ID)
	require.NoError(t, err)

	_, err = e.invoices.CreateCreditNote(ctx, actor, e.meta, inv.ID, dto.CreditNoteRequest{Amount: d("300")})
	require.NoError(t, err)

	_, err = e.invoices.CreateCreditNote(ctx, actor, e.meta, inv.ID, dto.CreditNoteRequest{Amount: d("66.61")})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	var de *domain.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "amount", de.Field)

	second, err := e.invoices.CreateCreditNote(ctx, actor, e.meta, inv.ID, dto.CreditNoteRequest{Amount: d("66.60")})
	require.NoError(t, err)
	assert.Equal(t, "AVO-2025-0002-AVOIR", second.Number)

	_, err = e.invoices.CreateCreditNote(ctx, actor, e.meta, inv.ID, dto.CreditNoteRequest{Amount: d("0.01")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInvoice_NumeracionPorTenant(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a1, c1 := e.seedTenant(t, "T1")
	a2, c2 := e.seedTenant(t, "T2")

	i1, err := e.invoices.Create(ctx, a1, e.meta, dto.CreateInvoiceRequest{ClientID: c1, Lines: twoLines()})
	require.NoError(t, err)
	i2, err := e.invoices.Create(ctx, a2, e.meta, dto.CreateInvoiceRequest{ClientID: c2, Lines: twoLines()})
	require.NoError(t, err)
	assert.Equal(t, "FAC-2025-0001", i1.Number)
	assert.Equal(t, "FAC-2025-0001", i2.Number)

	i3, err := e.invoices.Create(ctx, a1, e.meta, dto.CreateInvoiceRequest{ClientID: c1, Lines: twoLines()})
	require.NoError(t, err)
	assert.Equal(t, "FAC-2025-0002", i3.Number)
}

func TestInvoice_OtroTenantNoVe(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a1, c1 := e.seedTenant(t, "T1")
	a2, _ := e.seedTenant(t, "T2")

	inv, err := e.invoices.Create(ctx, a1, e.meta, dto.CreateInvoiceRequest{ClientID: c1, Lines: twoLines()})
	require.NoError(t, err)

	_, err = e.invoices.Get(ctx, a2, inv.ID, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInvoice_BloqueadaTrasEnvio(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor, clientID := e.seedTenant(t, "T1")
	inv, err := e.invoices.Create(ctx, actor, e.meta, dto.CreateInvoiceRequest{ClientID: clientID, Lines: twoLines()})
	require.NoError(t, err)

	notes := "nouvelle note"
	_, err = e.invoices.Update(ctx, actor, e.meta, inv.ID, dto.UpdateInvoiceRequest{Notes: &notes})
	require.NoError(t, err)

	_, err = e.invoices.Send(ctx, actor, e.meta, inv.ID)
	require.NoError(t, err)

	_, err = e.invoices.Update(ctx, actor, e.meta, inv.ID, dto.UpdateInvoiceRequest{Notes: &notes})
	assert.ErrorIs(t, err, domain.ErrDocumentLocked)
	assert.ErrorIs(t, e.invoices.Delete(ctx, actor, e.meta, inv.ID), domain.ErrDocumentLocked)

	logs, err := e.invoices.AuditLogs(ctx, actor, inv.ID)
	require.NoError(t, err)
	var actions []string
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	assert.Contains(t, actions, entity.AuditCreated)
	assert.Contains(t, actions, entity.AuditFieldUpdated)
	assert.Contains(t, actions, entity.AuditStatusChanged)
}

func TestInvoice_UpdateSinCambiosNoAudita(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor, clientID := e.seedTenant(t, "T1")
	inv, err := e.invoices.Create(ctx, actor, e.meta, dto.CreateInvoiceRequest{ClientID: clientID, Lines: twoLines(), Notes: "x"})
	require.NoError(t, err)

	same := "x"
	_, err = e.invoices.Update(ctx, actor, e.meta, inv.ID, dto.UpdateInvoiceRequest{Notes: &same})
	require.NoError(t, err)

	logs, err := e.invoices.AuditLogs(ctx, actor, inv.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestInvoice_Pagos(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor, clientID := e.seedTenant(t, "T1")
	inv, err := e.invoices.Create(ctx, actor, e.meta, dto.CreateInvoiceRequest{ClientID: clientID, Lines: twoLines()})
	require.NoError(t, err)

	_, err = e.invoices.RecordPayment(ctx, actor, e.meta, inv.ID, dto.PaymentRequest{Amount: d("10")})
	assert.Equal(t, domain.CodeWrongState, domain.CodeOf(err))

	_, err = e.invoices.Send(ctx, actor, e.meta, inv.ID)
	require.NoError(t, err)

	_, err = e.invoices.RecordPayment(ctx, actor, e.meta, inv.ID, dto.PaymentRequest{Amount: d("1000")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = e.invoices.RecordPayment(ctx, actor, e.meta, inv.ID, dto.PaymentRequest{Amount: d("200"), Method: "virement"})
	require.NoError(t, err)
	got, err := e.invoices.Get(ctx, actor, inv.ID, false)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusSent, got.Status)
	assert.True(t, d("166.60").Equal(got.Balance), got.Balance.String())

	_, err = e.invoices.RecordPayment(ctx, actor, e.meta, inv.ID, dto.PaymentRequest{Amount: d("166.60")})
	require.NoError(t, err)
	got, err = e.invoices.Get(ctx, actor, inv.ID, false)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusPaid, got.Status)

	payments, err := e.invoices.ListPayments(ctx, actor, inv.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}

func TestInvoice_BorradoLogico(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor, clientID := e.seedTenant(t, "T1")
	inv, err := e.invoices.Create(ctx, actor, e.meta, dto.CreateInvoiceRequest{ClientID: clientID, Lines: twoLines()})
	require.NoError(t, err)

	require.NoError(t, e.invoices.Delete(ctx, actor, e.meta, inv.ID))

	_, err = e.invoices.Get(ctx, actor, inv.ID, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	deleted, err := e.invoices.Get(ctx, actor, inv.ID, true)
	require.NoError(t, err)
	assert.NotNil(t, deleted.DeletedAt)

	list, err := e.invoices.List(ctx, actor, dto.InvoiceFilter{}, dto.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
	list, err = e.invoices.List(ctx, actor, dto.InvoiceFilter{IncludingDeleted: true}, dto.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
}

func TestInvoice_DesdeDevis(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor, clientID := e.seedTenant(t, "T1")

	q, err := e.quotes.Create(ctx, actor, dto.CreateQuoteRequest{ClientID: clientID, Lines: twoLines()})
	require.NoError(t, err)

	_, err = e.invoices.Create(ctx, actor, e.meta, dto.CreateInvoiceRequest{ClientID: clientID, QuoteID: q.ID})
	assert.Equal(t, domain.CodeWrongState, domain.CodeOf(err))

	_, err = e.quotes.Send(ctx, actor, q.ID)
	require.NoError(t, err)
	_, err = e.quotes.Accept(ctx, actor, q.ID)
	require.NoError(t, err)

	inv, err := e.invoices.Create(ctx, actor, e.meta, dto.CreateInvoiceRequest{ClientID: clientID, QuoteID: q.ID})
	require.NoError(t, err)
	assert.Equal(t, q.ID, inv.QuoteID)
	assert.Len(t, inv.Lines, 2)
	assert.True(t, q.TotalTTC.Equal(inv.TotalTTC))
}

func TestInvoice_MarcaEnRetard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor, clientID := e.seedTenant(t, "T1")
	due := fixedNow.AddDate(0, 0, 5)
	inv, err := e.invoices.Create(ctx, actor, e.meta, dto.CreateInvoiceRequest{ClientID: clientID, Lines: twoLines(), DueDate: &due})
	require.NoError(t, err)
	_, err = e.invoices.Send(ctx, actor, e.meta, inv.ID)
	require.NoError(t, err)

	overdue, err := e.invoices.MarkOverdue(ctx, fixedNow.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Empty(t, overdue)

	overdue, err = e.invoices.MarkOverdue(ctx, fixedNow.AddDate(0, 0, 6))
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	got, err := e.invoices.Get(ctx, actor, inv.ID, false)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusOverdue, got.Status)
}

func TestInvoice_CuotaStarter(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor, clientID := e.seedTenant(t, "T1")
	for i := 0; i < 20; i++ {
		require.NoError(t, e.store.Repos().Invoices.Create(ctx, &entity.Invoice{
			ID: fmt.Sprintf("seed-%d", i), CompanyID: "T1", Number: fmt.Sprintf("OLD-%d", i),
			InvoiceType: entity.InvoiceTypeInvoice, Status: entity.InvoiceStatusDraft, CreatedAt: fixedNow,
		}))
	}
	_, err := e.invoices.Create(ctx, actor, e.meta, dto.CreateInvoiceRequest{ClientID: clientID, Lines: twoLines()})
	require.Error(t, err)
	assert.Equal(t, domain.CodeQuotaExceeded, domain.CodeOf(err))
	assert.Contains(t, err.Error(), "20")
	assert.Contains(t, err.Error(), "Essentiel")
}
