package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

// Location zona horaria de las fechas de negocio (échéances, validité des devis).
var Location = loadLocation("Europe/Paris")

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BusinessDate fecha civil (medianoche UTC) correspondiente a t en la zona de negocio.
func BusinessDate(t time.Time) time.Time {
	lt := t.In(Location)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, time.UTC)
}

// afterDate true si la fecha de negocio de now es estrictamente posterior a la fecha d.
func afterDate(now, d time.Time) bool {
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return BusinessDate(now).After(day)
}

var quoteTransitions = map[string][]string{
	entity.QuoteStatusDraft:    {entity.QuoteStatusSent},
	entity.QuoteStatusSent:     {entity.QuoteStatusAccepted, entity.QuoteStatusRefused, entity.QuoteStatusExpired},
	entity.QuoteStatusAccepted: {entity.QuoteStatusSigned},
}

var invoiceTransitions = map[string][]string{
	entity.InvoiceStatusDraft:   {entity.InvoiceStatusSent, entity.InvoiceStatusCancelled},
	entity.InvoiceStatusSent:    {entity.InvoiceStatusPaid, entity.InvoiceStatusOverdue, entity.InvoiceStatusUnpaid},
	entity.InvoiceStatusUnpaid:  {entity.InvoiceStatusPaid, entity.InvoiceStatusOverdue},
	entity.InvoiceStatusOverdue: {entity.InvoiceStatusPaid},
}

func allowed(table map[string][]string, from, to string) bool {
	for _, s := range table[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanModify un devis o una factura solo se modifica (o borra) en brouillon.
func CanModify(status string) bool {
	return status == entity.QuoteStatusDraft
}

// GuardModify devuelve document_locked si el documento no es modificable.
func GuardModify(status string) error {
	if !CanModify(status) {
		return domain.ErrDocumentLocked
	}
	return nil
}

// ValidateQuoteTransition valida un cambio de estado de devis.
func ValidateQuoteTransition(from, to string) error {
	if allowed(quoteTransitions, from, to) {
		return nil
	}
	return domain.Conflict(domain.CodeStatusTransitionInvalid,
		fmt.Sprintf("transition de devis %s → %s non autorisée", from, to))
}

// ValidateInvoiceTransition valida un cambio de estado de factura.
func ValidateInvoiceTransition(from, to string) error {
	if allowed(invoiceTransitions, from, to) {
		return nil
	}
	return domain.Conflict(domain.CodeStatusTransitionInvalid,
		fmt.Sprintf("transition de facture %s → %s non autorisée", from, to))
}

// QuoteShouldExpire solo un devis envoyé pasa a expiré cuando se supera su fecha de validez.
func QuoteShouldExpire(q *entity.Quote, now time.Time) bool {
	return q.Status == entity.QuoteStatusSent && q.ExpiryDate != nil && afterDate(now, *q.ExpiryDate)
}

// InvoiceShouldBeOverdue una factura envoyée/impayée pasa a en_retard al día siguiente de la échéance.
func InvoiceShouldBeOverdue(inv *entity.Invoice, now time.Time) bool {
	if inv.IsCreditNote() || inv.DueDate == nil {
		return false
	}
	if inv.Status != entity.InvoiceStatusSent && inv.Status != entity.InvoiceStatusUnpaid {
		return false
	}
	return afterDate(now, *inv.DueDate)
}

// ValidateSendable un documento se envía con al menos una línea y totales coherentes.
func ValidateSendable(lines []entity.Line, discount *entity.Discount, subtotalHT, totalTax, totalTTC decimal.Decimal) error {
	if len(lines) == 0 {
		return domain.Validation("lines", "le document doit contenir au moins une ligne")
	}
	return ValidateTotals(lines, discount, subtotalHT, totalTax, totalTTC, DefaultTolerance)
}

// IsFullyPaid suma de pagos >= total TTC.
func IsFullyPaid(total, paid decimal.Decimal) bool {
	return paid.GreaterThanOrEqual(total)
}

// ValidateCreditNote precondiciones de un avoir sobre inv. credited es el TTC de los avoirs ya
// emitidos sobre la misma factura: la suma de avoirs nunca supera el total original.
func ValidateCreditNote(inv *entity.Invoice, amount, credited decimal.Decimal) error {
	if inv.InvoiceType != entity.InvoiceTypeInvoice {
		return domain.Conflict(domain.CodeWrongState, "un avoir ne peut être émis que sur une facture")
	}
	switch inv.Status {
	case entity.InvoiceStatusSent, entity.InvoiceStatusPaid, entity.InvoiceStatusOverdue:
	default:
		return domain.Conflict(domain.CodeStatusTransitionInvalid,
			fmt.Sprintf("impossible d'émettre un avoir sur une facture au statut %s", inv.Status))
	}
	if !amount.IsPositive() {
		return domain.Validation("amount", "le montant de l'avoir doit être positif")
	}
	remaining := inv.TotalTTC.Sub(credited)
	if amount.GreaterThan(remaining) {
		return domain.Validation("amount", fmt.Sprintf("le montant de l'avoir dépasse le montant restant à créditer (%s)", remaining.StringFixed(2)))
	}
	return nil
}

// CreditNoteLines construye las líneas del avoir según la estrategia del tenant.
// zero_tax: una línea sintética sin IVA por el importe. mirror_rates: una línea por tipo de IVA
// de la factura original, repartiendo el importe TTC en proporción y ajustando la última línea.
func CreditNoteLines(orig *entity.Invoice, amount decimal.Decimal, strategy string) []entity.Line {
	label := fmt.Sprintf("Avoir sur facture %s", orig.Number)
	if strategy != entity.CreditNoteTaxMirror || orig.TotalTTC.IsZero() {
		return []entity.Line{{
			Position:    1,
			Description: label,
			Quantity:    decimal.NewFromInt(1),
			UnitPriceHT: amount,
			TaxRate:     decimal.Zero,
		}}
	}

	type bucket struct {
		rate decimal.Decimal
		ttc  decimal.Decimal
	}
	var buckets []bucket
	for _, l := range orig.Lines {
		found := false
		for i := range buckets {
			if buckets[i].rate.Equal(l.TaxRate) {
				buckets[i].ttc = buckets[i].ttc.Add(l.TotalTTC)
				found = true
				break
			}
		}
		if !found {
			buckets = append(buckets, bucket{rate: l.TaxRate, ttc: l.TotalTTC})
		}
	}
	var linesTTCSum decimal.Decimal
	for _, b := range buckets {
		linesTTCSum = linesTTCSum.Add(b.ttc)
	}
	if linesTTCSum.IsZero() {
		return CreditNoteLines(orig, amount, entity.CreditNoteTaxZero)
	}

	lines := make([]entity.Line, 0, len(buckets)+1)
	remaining := amount
	for i, b := range buckets {
		share := Round2(amount.Mul(b.ttc).Div(linesTTCSum))
		if i == len(buckets)-1 || share.GreaterThan(remaining) {
			share = remaining
		}
		remaining = remaining.Sub(share)
		l := entity.Line{
			Position:    i + 1,
			Description: fmt.Sprintf("%s (TVA %s %%)", label, b.rate.String()),
			Quantity:    decimal.NewFromInt(1),
			UnitPriceHT: htForTTC(share, b.rate),
			TaxRate:     b.rate,
		}
		ComputeLine(&l)
		lines = append(lines, l)
	}

	// Algunos TTC no son alcanzables con un HT al céntimo; el residuo va en una última línea sin IVA.
	var total decimal.Decimal
	for _, l := range lines {
		total = total.Add(l.TotalTTC)
	}
	if residue := amount.Sub(total); !residue.IsZero() {
		lines = append(lines, entity.Line{
			Position:    len(lines) + 1,
			Description: fmt.Sprintf("%s (ajustement d'arrondi)", label),
			Quantity:    decimal.NewFromInt(1),
			UnitPriceHT: residue,
			TaxRate:     decimal.Zero,
		})
	}
	return lines
}

var cent = decimal.New(1, -2)

// htForTTC HT al céntimo cuyo TTC (reglas de ComputeLine) es el más cercano a target sin superarlo.
func htForTTC(target, rate decimal.Decimal) decimal.Decimal {
	guess := Round2(target.Div(decimal.NewFromInt(1).Add(rate.Div(hundred))))
	best := decimal.Zero
	for step := int64(-3); step <= 3; step++ {
		ht := guess.Add(cent.Mul(decimal.NewFromInt(step)))
		if ht.IsNegative() {
			continue
		}
		l := entity.Line{Quantity: decimal.NewFromInt(1), UnitPriceHT: ht, TaxRate: rate}
		ComputeLine(&l)
		if l.TotalTTC.Equal(target) {
			return ht
		}
		if l.TotalTTC.LessThan(target) && ht.GreaterThan(best) {
			best = ht
		}
	}
	return best
}
