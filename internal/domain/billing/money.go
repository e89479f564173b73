// Package billing contiene la lógica pura de facturación: cálculo de líneas y totales,
// numeración, máquinas de estado y serialización canónica de devis.
package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

var (
	hundred = decimal.NewFromInt(100)
	// DefaultTolerance tolerancia de validate_totals.
	DefaultTolerance = decimal.RequireFromString("0.01")
)

// Round2 redondeo a 2 decimales, mitad hacia arriba (en importes positivos).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ComputeLine calcula los tres importes derivados de una línea:
// subtotal_ht = round2(qty * pu), tax = round2(subtotal * rate / 100), ttc = round2(subtotal + tax).
func ComputeLine(l *entity.Line) {
	l.Quantity = l.Quantity.Round(3)
	l.SubtotalHT = Round2(l.Quantity.Mul(l.UnitPriceHT))
	l.TaxAmount = Round2(l.SubtotalHT.Mul(l.TaxRate).Div(hundred))
	l.TotalTTC = Round2(l.SubtotalHT.Add(l.TaxAmount))
}

// ComputeTotals recalcula cada línea y agrega los totales aplicando la remise.
func ComputeTotals(lines []entity.Line, discount *entity.Discount) entity.Totals {
	var t entity.Totals
	for i := range lines {
		ComputeLine(&lines[i])
		t.SubtotalHT = t.SubtotalHT.Add(lines[i].SubtotalHT)
		t.TotalTax = t.TotalTax.Add(lines[i].TaxAmount)
		t.TotalTTCBeforeDiscount = t.TotalTTCBeforeDiscount.Add(lines[i].TotalTTC)
	}
	t.DiscountAmount = DiscountAmount(t.TotalTTCBeforeDiscount, discount)
	t.TotalTTC = t.TotalTTCBeforeDiscount.Sub(t.DiscountAmount)
	if t.TotalTTC.IsNegative() {
		t.TotalTTC = decimal.Zero
	}
	return t
}

// DiscountAmount importe de la remise sobre el TTC antes de remise.
func DiscountAmount(ttcBefore decimal.Decimal, discount *entity.Discount) decimal.Decimal {
	if discount == nil {
		return decimal.Zero
	}
	switch discount.Type {
	case entity.DiscountPercentage:
		return Round2(ttcBefore.Mul(discount.Value).Div(hundred))
	case entity.DiscountFixed:
		if discount.Value.IsNegative() {
			return decimal.Zero
		}
		return discount.Value
	default:
		return decimal.Zero
	}
}

// ValidateTaxRate comprueba que rate pertenece al conjunto permitido del tenant.
func ValidateTaxRate(rate decimal.Decimal, allowed []decimal.Decimal) error {
	for _, a := range allowed {
		if a.Equal(rate) {
			return nil
		}
	}
	return domain.NewError(domain.ErrInvalidInput, domain.CodeInvalidTaxRate,
		fmt.Sprintf("taux de TVA %s %% non autorisé", rate.String()))
}

// ValidateLines valida los datos de entrada de las líneas (antes del cálculo).
func ValidateLines(lines []entity.Line, allowedRates []decimal.Decimal) error {
	for i, l := range lines {
		field := fmt.Sprintf("lines[%d]", i)
		if l.Description == "" {
			return domain.Validation(field+".description", "la description est obligatoire")
		}
		if !l.Quantity.IsPositive() {
			return domain.Validation(field+".quantity", "la quantité doit être positive")
		}
		if !l.Quantity.Equal(l.Quantity.Round(3)) {
			return domain.Validation(field+".quantity", "la quantité accepte au plus 3 décimales")
		}
		if l.UnitPriceHT.IsNegative() {
			return domain.Validation(field+".unit_price_ht", "le prix unitaire ne peut pas être négatif")
		}
		if err := ValidateTaxRate(l.TaxRate, allowedRates); err != nil {
			return &domain.Error{Kind: domain.ErrInvalidInput, Code: domain.CodeInvalidTaxRate, Detail: err.(*domain.Error).Detail, Field: field + ".tax_rate"}
		}
	}
	return nil
}

// ValidateDiscount valida el tipo y el valor de la remise.
func ValidateDiscount(d *entity.Discount) error {
	if d == nil {
		return nil
	}
	switch d.Type {
	case entity.DiscountPercentage:
		if d.Value.IsNegative() || d.Value.GreaterThan(hundred) {
			return domain.Validation("discount.value", "le pourcentage de remise doit être compris entre 0 et 100")
		}
	case entity.DiscountFixed:
		if d.Value.IsNegative() {
			return domain.Validation("discount.value", "la remise ne peut pas être négative")
		}
	default:
		return domain.Validation("discount.type", "type de remise inconnu (percentage | fixed)")
	}
	return nil
}

// ValidateTotals recalcula desde las líneas y la remise y compara con los importes guardados.
func ValidateTotals(lines []entity.Line, discount *entity.Discount, subtotalHT, totalTax, totalTTC, tolerance decimal.Decimal) error {
	work := make([]entity.Line, len(lines))
	copy(work, lines)
	t := ComputeTotals(work, discount)
	checks := []struct {
		name             string
		stored, computed decimal.Decimal
	}{
		{"subtotal_ht", subtotalHT, t.SubtotalHT},
		{"total_tax", totalTax, t.TotalTax},
		{"total_ttc", totalTTC, t.TotalTTC},
	}
	for _, c := range checks {
		if c.stored.Sub(c.computed).Abs().GreaterThan(tolerance) {
			return domain.NewError(domain.ErrInvalidInput, domain.CodeTotalsIncoherent,
				fmt.Sprintf("%s incohérent : enregistré %s, calculé %s", c.name, c.stored.StringFixed(2), c.computed.StringFixed(2)))
		}
	}
	return nil
}

// FormatEuro formatea un importe "1 234,56 €" para PDF y mensajes.
func FormatEuro(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	intPart, frac := s[:len(s)-3], s[len(s)-2:]
	var out []byte
	for i := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out = append(out, ' ')
		}
		out = append(out, intPart[i])
	}
	res := string(out) + "," + frac + " €"
	if neg {
		return "-" + res
	}
	return res
}
