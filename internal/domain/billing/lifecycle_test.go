package billing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/billing"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

func date(y int, m time.Month, day int) *time.Time {
	t := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestQuoteTransitions(t *testing.T) {
	assert.NoError(t, billing.ValidateQuoteTransition(entity.QuoteStatusDraft, entity.QuoteStatusSent))
	assert.NoError(t, billing.ValidateQuoteTransition(entity.QuoteStatusSent, entity.QuoteStatusAccepted))
	assert.NoError(t, billing.ValidateQuoteTransition(entity.QuoteStatusSent, entity.QuoteStatusExpired))
	assert.NoError(t, billing.ValidateQuoteTransition(entity.QuoteStatusAccepted, entity.QuoteStatusSigned))

	for _, from := range []string{entity.QuoteStatusSent, entity.QuoteStatusAccepted, entity.QuoteStatusRefused} {
		err := billing.ValidateQuoteTransition(from, entity.QuoteStatusDraft)
		require.Error(t, err, from)
		assert.Equal(t, domain.CodeStatusTransitionInvalid, domain.CodeOf(err))
	}
	assert.Error(t, billing.ValidateQuoteTransition(entity.QuoteStatusSigned, entity.QuoteStatusRefused))
	assert.Error(t, billing.ValidateQuoteTransition(entity.QuoteStatusDraft, entity.QuoteStatusSigned))
}

func TestInvoiceTransitions(t *testing.T) {
	assert.NoError(t, billing.ValidateInvoiceTransition(entity.InvoiceStatusDraft, entity.InvoiceStatusSent))
	assert.NoError(t, billing.ValidateInvoiceTransition(entity.InvoiceStatusDraft, entity.InvoiceStatusCancelled))
	assert.NoError(t, billing.ValidateInvoiceTransition(entity.InvoiceStatusSent, entity.InvoiceStatusPaid))
	assert.NoError(t, billing.ValidateInvoiceTransition(entity.InvoiceStatusOverdue, entity.InvoiceStatusPaid))

	assert.Error(t, billing.ValidateInvoiceTransition(entity.InvoiceStatusSent, entity.InvoiceStatusCancelled))
	assert.Error(t, billing.ValidateInvoiceTransition(entity.InvoiceStatusPaid, entity.InvoiceStatusSent))
	assert.Error(t, billing.ValidateInvoiceTransition(entity.InvoiceStatusSent, entity.InvoiceStatusDraft))
}

func TestGuardModify(t *testing.T) {
	assert.NoError(t, billing.GuardModify(entity.InvoiceStatusDraft))
	for _, s := range []string{entity.InvoiceStatusSent, entity.InvoiceStatusPaid, entity.QuoteStatusSigned} {
		err := billing.GuardModify(s)
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.Equal(t, domain.CodeDocumentLocked, domain.CodeOf(err))
	}
}

func TestQuoteShouldExpire(t *testing.T) {
	q := &entity.Quote{Status: entity.QuoteStatusSent, ExpiryDate: date(2025, 3, 10)}
	assert.False(t, billing.QuoteShouldExpire(q, time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)))
	assert.True(t, billing.QuoteShouldExpire(q, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)))

	// Un devis accepté no caduca aunque pase la fecha.
	q.Status = entity.QuoteStatusAccepted
	assert.False(t, billing.QuoteShouldExpire(q, time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)))
}

func TestInvoiceShouldBeOverdue(t *testing.T) {
	inv := &entity.Invoice{Status: entity.InvoiceStatusSent, InvoiceType: entity.InvoiceTypeInvoice, DueDate: date(2025, 3, 10)}
	// Échéance hoy: sigue envoyée.
	assert.False(t, billing.InvoiceShouldBeOverdue(inv, time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)))
	assert.True(t, billing.InvoiceShouldBeOverdue(inv, time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)))

	inv.Status = entity.InvoiceStatusPaid
	assert.False(t, billing.InvoiceShouldBeOverdue(inv, time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)))
}

func TestValidateCreditNote(t *testing.T) {
	inv := &entity.Invoice{Status: entity.InvoiceStatusSent, InvoiceType: entity.InvoiceTypeInvoice, TotalTTC: d("329.94")}
	assert.NoError(t, billing.ValidateCreditNote(inv, d("100"), decimal.Zero))
	assert.NoError(t, billing.ValidateCreditNote(inv, d("329.94"), decimal.Zero))
	assert.ErrorIs(t, billing.ValidateCreditNote(inv, d("329.95"), decimal.Zero), domain.ErrInvalidInput)
	assert.ErrorIs(t, billing.ValidateCreditNote(inv, d("0"), decimal.Zero), domain.ErrInvalidInput)

	inv.Status = entity.InvoiceStatusDraft
	assert.ErrorIs(t, billing.ValidateCreditNote(inv, d("10"), decimal.Zero), domain.ErrConflict)

	avoir := &entity.Invoice{Status: entity.InvoiceStatusSent, InvoiceType: entity.InvoiceTypeCreditNote, TotalTTC: d("10")}
	assert.ErrorIs(t, billing.ValidateCreditNote(avoir, d("1"), decimal.Zero), domain.ErrConflict)
}

func TestValidateCreditNote_AvoirsAcumulados(t *testing.T) {
	inv := &entity.Invoice{Status: entity.InvoiceStatusPaid, InvoiceType: entity.InvoiceTypeInvoice, TotalTTC: d("329.94")}
	// 300 ya acreditados: quedan 29.94.
	assert.NoError(t, billing.ValidateCreditNote(inv, d("29.94"), d("300")))
	assert.ErrorIs(t, billing.ValidateCreditNote(inv, d("29.95"), d("300")), domain.ErrInvalidInput)
	assert.ErrorIs(t, billing.ValidateCreditNote(inv, d("0.01"), d("329.94")), domain.ErrInvalidInput)
}

func TestCreditNoteLines_SinIVA(t *testing.T) {
	orig := &entity.Invoice{Number: "FAC-2025-0001", TotalTTC: d("329.94")}
	lines := billing.CreditNoteLines(orig, d("100"), entity.CreditNoteTaxZero)
	require.Len(t, lines, 1)
	tot := billing.ComputeTotals(lines, nil)
	assert.Equal(t, "100.00", tot.TotalTTC.StringFixed(2))
	assert.True(t, tot.TotalTax.IsZero())
}

func TestCreditNoteLines_RepartoPorTipo(t *testing.T) {
	origLines := []entity.Line{line("2", "100", "20"), line("1.5", "80", "5.5")}
	tot := billing.ComputeTotals(origLines, nil)
	orig := &entity.Invoice{Number: "FAC-2025-0001", Lines: origLines, TotalTTC: tot.TotalTTC}

	lines := billing.CreditNoteLines(orig, d("100"), entity.CreditNoteTaxMirror)
	require.GreaterOrEqual(t, len(lines), 2)
	credit := billing.ComputeTotals(lines, nil)
	assert.Equal(t, "100.00", credit.TotalTTC.StringFixed(2))
	assert.True(t, credit.TotalTax.IsPositive())
}

func TestCreditNoteLines_TotalExactoAlCentimo(t *testing.T) {
	origLines := []entity.Line{line("1", "33.33", "20"), line("3", "7.77", "10"), line("1", "12.01", "5.5")}
	tot := billing.ComputeTotals(origLines, nil)
	orig := &entity.Invoice{Number: "FAC-2025-0002", Lines: origLines, TotalTTC: tot.TotalTTC}

	for _, amount := range []string{"0.03", "0.07", "1.00", "9.99", "17.35", "42.01", tot.TotalTTC.StringFixed(2)} {
		lines := billing.CreditNoteLines(orig, d(amount), entity.CreditNoteTaxMirror)
		credit := billing.ComputeTotals(lines, nil)
		assert.Equal(t, d(amount).StringFixed(2), credit.TotalTTC.StringFixed(2), amount)
		for _, l := range lines {
			assert.False(t, l.UnitPriceHT.IsNegative(), amount)
		}
	}
}

func TestIsFullyPaid(t *testing.T) {
	assert.True(t, billing.IsFullyPaid(d("100"), d("100.00")))
	assert.False(t, billing.IsFullyPaid(d("100"), d("99.99")))
}
