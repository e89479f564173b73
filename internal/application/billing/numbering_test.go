package billing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/application/billing"
	"github.com/jhoicas/lokario-api/internal/domain"
	dbilling "github.com/jhoicas/lokario-api/internal/domain/billing"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/testutil/memstore"
)

// collisions devuelve un InsertFunc que responde ErrDuplicate las n primeras veces.
func collisions(n int, tried *[]string) billing.InsertFunc {
	return func(number string) error {
		*tried = append(*tried, number)
		if len(*tried) <= n {
			return domain.ErrDuplicate
		}
		return nil
	}
}

func TestAllocateNumber_AvanzaTrasColisiones(t *testing.T) {
	store := memstore.New()
	var tried []string

	number, err := billing.AllocateNumber(context.Background(), store.Repos(), "T1", entity.NumberingInvoice,
		entity.DefaultInvoiceNumbering(), fixedNow, collisions(3, &tried))
	require.NoError(t, err)
	assert.Equal(t, "FAC-2025-0004", number)
	assert.Equal(t, []string{"FAC-2025-0001", "FAC-2025-0002", "FAC-2025-0003", "FAC-2025-0004"}, tried)
}

func TestAllocateNumber_ParteDelMaximoExistente(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	require.NoError(t, store.Repos().Invoices.Create(ctx, &entity.Invoice{ID: "i7", CompanyID: "T1", Number: "FAC-2025-0007"}))
	var tried []string

	number, err := billing.AllocateNumber(ctx, store.Repos(), "T1", entity.NumberingInvoice,
		entity.DefaultInvoiceNumbering(), fixedNow, collisions(1, &tried))
	require.NoError(t, err)
	assert.Equal(t, "FAC-2025-0009", number)
}

func TestAllocateNumber_NumeroDeEmergencia(t *testing.T) {
	store := memstore.New()
	cfg := entity.DefaultInvoiceNumbering()
	var tried []string

	number, err := billing.AllocateNumber(context.Background(), store.Repos(), "T1", entity.NumberingInvoice,
		cfg, fixedNow, collisions(dbilling.MaxAllocationAttempts, &tried))
	require.NoError(t, err)
	assert.Equal(t, dbilling.FallbackNumber(cfg, 2025, fixedNow), number)
	assert.Regexp(t, `^FAC-2025-\d{4}$`, number)
	assert.Len(t, tried, dbilling.MaxAllocationAttempts+1)
}

func TestAllocateNumber_EmergenciaTambienDuplicada(t *testing.T) {
	store := memstore.New()
	var tried []string

	_, err := billing.AllocateNumber(context.Background(), store.Repos(), "T1", entity.NumberingQuote,
		entity.DefaultQuoteNumbering(), fixedNow, collisions(dbilling.MaxAllocationAttempts+1, &tried))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestAllocateNumber_OtroErrorSeDevuelveTalCual(t *testing.T) {
	store := memstore.New()
	boom := errors.New("connexion perdue")
	calls := 0

	_, err := billing.AllocateNumber(context.Background(), store.Repos(), "T1", entity.NumberingInvoice,
		entity.DefaultInvoiceNumbering(), fixedNow, func(string) error {
			calls++
			return boom
		})
	assert.Same(t, boom, err)
	assert.Equal(t, 1, calls)
}
