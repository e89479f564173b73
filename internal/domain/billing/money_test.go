package billing_test

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/billing"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(qty, price, rate string) entity.Line {
	return entity.Line{Description: "Prestation", Quantity: d(qty), UnitPriceHT: d(price), TaxRate: d(rate)}
}

// ──────────────────────────────────────────────────────────────────────────────
// Escenario de referencia: dos líneas (20 % y 5,5 %) con remise de 10 %.
//
//	L1 = 2 × 100,00 à 20 %   → 200,00 / 40,00 / 240,00
//	L2 = 1,5 × 80,00 à 5,5 % → 120,00 /  6,60 / 126,60
//	TTC avant remise 366,60 ; remise 36,66 ; TTC 329,94
// ──────────────────────────────────────────────────────────────────────────────
func TestComputeTotals_ConRemisePorcentaje(t *testing.T) {
	lines := []entity.Line{line("2", "100", "20"), line("1.5", "80", "5.5")}
	discount := &entity.Discount{Type: entity.DiscountPercentage, Value: d("10"), Label: "Fidélité"}

	tot := billing.ComputeTotals(lines, discount)

	assert.True(t, lines[0].SubtotalHT.Equal(d("200.00")))
	assert.True(t, lines[0].TaxAmount.Equal(d("40.00")))
	assert.True(t, lines[0].TotalTTC.Equal(d("240.00")))
	assert.True(t, lines[1].SubtotalHT.Equal(d("120.00")))
	assert.True(t, lines[1].TaxAmount.Equal(d("6.60")))
	assert.True(t, lines[1].TotalTTC.Equal(d("126.60")))

	assert.Equal(t, "320.00", tot.SubtotalHT.StringFixed(2))
	assert.Equal(t, "46.60", tot.TotalTax.StringFixed(2))
	assert.Equal(t, "366.60", tot.TotalTTCBeforeDiscount.StringFixed(2))
	assert.Equal(t, "36.66", tot.DiscountAmount.StringFixed(2))
	assert.Equal(t, "329.94", tot.TotalTTC.StringFixed(2))
}

func TestComputeLine_RedondeoMitadHaciaArriba(t *testing.T) {
	l := line("1", "0.125", "0")
	billing.ComputeLine(&l)
	assert.Equal(t, "0.13", l.SubtotalHT.StringFixed(2))

	l = line("1", "10.05", "5.5") // 0,55275 → 0,55
	billing.ComputeLine(&l)
	assert.Equal(t, "0.55", l.TaxAmount.StringFixed(2))
	assert.Equal(t, "10.60", l.TotalTTC.StringFixed(2))
}

func TestComputeTotals_RemiseFijaNoDejaTotalNegativo(t *testing.T) {
	lines := []entity.Line{line("1", "10", "20")}
	tot := billing.ComputeTotals(lines, &entity.Discount{Type: entity.DiscountFixed, Value: d("50")})
	assert.True(t, tot.TotalTTC.IsZero())

	tot = billing.ComputeTotals(lines, &entity.Discount{Type: entity.DiscountFixed, Value: d("-5")})
	assert.True(t, tot.DiscountAmount.IsZero())
	assert.Equal(t, "12.00", tot.TotalTTC.StringFixed(2))
}

// Para cualquier (qty, pu, taux) válido: subtotal + tax == ttc exactamente.
func TestComputeLine_SinDeriva(t *testing.T) {
	rates := []string{"0", "2.1", "5.5", "10", "20"}
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 5000; i++ {
		qty := decimal.New(r.Int63n(1_000_000_000)+1, -3)  // 0.001 .. 10^6
		price := decimal.New(r.Int63n(1_000_000_001), -2)  // 0 .. 10^7
		l := entity.Line{Quantity: qty, UnitPriceHT: price, TaxRate: d(rates[r.Intn(len(rates))])}
		billing.ComputeLine(&l)
		require.True(t, l.SubtotalHT.Add(l.TaxAmount).Equal(l.TotalTTC), "qty=%s pu=%s", qty, price)
	}
}

func TestValidateTaxRate(t *testing.T) {
	allowed := entity.DefaultCompanySettings("c").Billing.AllowedTaxRates
	assert.NoError(t, billing.ValidateTaxRate(d("5.5"), allowed))
	assert.NoError(t, billing.ValidateTaxRate(d("20.00"), allowed))
	err := billing.ValidateTaxRate(d("19.6"), allowed)
	require.Error(t, err)
	assert.Equal(t, domain.CodeInvalidTaxRate, domain.CodeOf(err))
}

func TestValidateLines(t *testing.T) {
	allowed := entity.DefaultCompanySettings("c").Billing.AllowedTaxRates

	assert.NoError(t, billing.ValidateLines([]entity.Line{line("1", "10", "20")}, allowed))

	err := billing.ValidateLines([]entity.Line{line("0", "10", "20")}, allowed)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = billing.ValidateLines([]entity.Line{line("1.0005", "10", "20")}, allowed)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = billing.ValidateLines([]entity.Line{line("1", "10", "7")}, allowed)
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "lines[0].tax_rate", de.Field)
}

func TestValidateTotals(t *testing.T) {
	lines := []entity.Line{line("2", "100", "20"), line("1.5", "80", "5.5")}
	discount := &entity.Discount{Type: entity.DiscountPercentage, Value: d("10")}

	assert.NoError(t, billing.ValidateTotals(lines, discount, d("320"), d("46.60"), d("329.94"), billing.DefaultTolerance))
	assert.NoError(t, billing.ValidateTotals(lines, discount, d("320.01"), d("46.60"), d("329.94"), billing.DefaultTolerance))

	err := billing.ValidateTotals(lines, discount, d("320"), d("46.60"), d("330.00"), billing.DefaultTolerance)
	require.Error(t, err)
	assert.Equal(t, domain.CodeTotalsIncoherent, domain.CodeOf(err))
}

func TestFormatEuro(t *testing.T) {
	assert.Equal(t, "1 234,50 €", billing.FormatEuro(d("1234.5")))
	assert.Equal(t, "0,00 €", billing.FormatEuro(decimal.Zero))
	assert.Equal(t, "-12,30 €", billing.FormatEuro(d("-12.3")))
	assert.Equal(t, "1 000 000,00 €", billing.FormatEuro(d("1000000")))
}
