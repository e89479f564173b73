package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/lokario-api/internal/domain/billing"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

func TestFormatNumber_Defaults(t *testing.T) {
	assert.Equal(t, "DEV-2025-001", billing.FormatNumber(entity.DefaultQuoteNumbering(), 2025, 1))
	assert.Equal(t, "FAC-2025-0001", billing.FormatNumber(entity.DefaultInvoiceNumbering(), 2025, 1))
	assert.Equal(t, "AVO-2025-0012-AVOIR", billing.FormatNumber(entity.DefaultCreditNoteNumbering(), 2025, 12))
	assert.Equal(t, "DEV-2025-1234", billing.FormatNumber(entity.DefaultQuoteNumbering(), 2025, 1234))
}

func TestFormatNumber_AnioCorto(t *testing.T) {
	cfg := entity.NumberingConfig{Prefix: "F", Separator: "/", YearFormat: "YY", Padding: 5, StartNumber: 1}
	assert.Equal(t, "F/25/00042", billing.FormatNumber(cfg, 2025, 42))
}

func TestParseSequence(t *testing.T) {
	inv := entity.DefaultInvoiceNumbering()
	seq, ok := billing.ParseSequence(inv, 2025, "FAC-2025-0042")
	assert.True(t, ok)
	assert.Equal(t, 42, seq)

	_, ok = billing.ParseSequence(inv, 2025, "FAC-2024-0042")
	assert.False(t, ok)
	_, ok = billing.ParseSequence(inv, 2025, "AVO-2025-0042-AVOIR")
	assert.False(t, ok)

	cn := entity.DefaultCreditNoteNumbering()
	seq, ok = billing.ParseSequence(cn, 2025, "AVO-2025-0007-AVOIR")
	assert.True(t, ok)
	assert.Equal(t, 7, seq)
	_, ok = billing.ParseSequence(cn, 2025, "AVO-2025-0007")
	assert.False(t, ok)
}

func TestNextSequence(t *testing.T) {
	cfg := entity.DefaultInvoiceNumbering()
	assert.Equal(t, 1, billing.NextSequence(cfg, 2025, nil))
	assert.Equal(t, 3, billing.NextSequence(cfg, 2025, []string{"FAC-2025-0001", "FAC-2025-0002", "FAC-2024-0099"}))

	cfg.StartNumber = 100
	assert.Equal(t, 100, billing.NextSequence(cfg, 2025, []string{"FAC-2025-0005"}))
	assert.Equal(t, 101, billing.NextSequence(cfg, 2025, []string{"FAC-2025-0100"}))
}

// Cambio de año: el primer número del año nuevo vuelve a start_number.
func TestNextSequence_CambioDeAnio(t *testing.T) {
	cfg := entity.DefaultInvoiceNumbering()
	existing := []string{"FAC-2025-0311", "FAC-2025-0312"}
	assert.Equal(t, 313, billing.NextSequence(cfg, 2025, existing))
	assert.Equal(t, 1, billing.NextSequence(cfg, 2026, existing))
}

func TestFallbackNumber(t *testing.T) {
	now := time.UnixMilli(1_735_689_612_345)
	assert.Equal(t, "FAC-2025-2345", billing.FallbackNumber(entity.DefaultInvoiceNumbering(), 2025, now))
}

func TestValidateNumberingConfig(t *testing.T) {
	assert.NoError(t, billing.ValidateNumberingConfig(entity.DefaultCreditNoteNumbering()))
	bad := entity.DefaultInvoiceNumbering()
	bad.YearFormat = "YYY"
	assert.Error(t, billing.ValidateNumberingConfig(bad))
	bad = entity.DefaultInvoiceNumbering()
	bad.StartNumber = 0
	assert.Error(t, billing.ValidateNumberingConfig(bad))
}
