package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
	"github.com/jhoicas/lokario-api/internal/infrastructure/postgres"
	"github.com/jhoicas/lokario-api/migrations"
	"github.com/jhoicas/lokario-api/pkg/config"
)

// testPool conecta a TEST_DATABASE_URL y aplica el esquema. Sin la variable, el test se salta.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL no definido")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, config.DBConfig{DatabaseURL: url, MaxConns: 5})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	_, err = postgres.Migrate(ctx, pool, migrations.FS)
	require.NoError(t, err)
	return pool
}

// seedCompany crea una empresa confirmada y la borra (en cascada) al terminar.
func seedCompany(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	id := uuid.New().String()
	require.NoError(t, postgres.NewRepos(pool).Companies.Create(ctx, &entity.Company{
		ID: id, Code: "T-" + id[:8], Name: "Atelier test", IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM invoices WHERE company_id = $1 AND original_invoice_id IS NOT NULL`, id)
		_, _ = pool.Exec(context.Background(), `DELETE FROM companies WHERE id = $1`, id)
	})
	return id
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newInvoice(companyID, number string) *entity.Invoice {
	now := time.Now().UTC()
	return &entity.Invoice{
		ID: uuid.New().String(), CompanyID: companyID, Number: number,
		Status: entity.InvoiceStatusDraft, InvoiceType: entity.InvoiceTypeInvoice,
		IssueDate: now, CreatedAt: now, UpdatedAt: now,
	}
}

func newQuote(companyID, number string) *entity.Quote {
	now := time.Now().UTC()
	return &entity.Quote{
		ID: uuid.New().String(), CompanyID: companyID, Number: number,
		Status: entity.QuoteStatusDraft, IssueDate: now, CreatedAt: now, UpdatedAt: now,
	}
}

func TestInvoiceRepo_NumeroDuplicadoNoAbortaLaTx(t *testing.T) {
	pool := testPool(t)
	companyID := seedCompany(t, pool)
	ctx := context.Background()

	err := postgres.NewTxRunner(pool).Run(ctx, func(r repository.Repos) error {
		first := newInvoice(companyID, "FAC-2025-0001")
		require.NoError(t, r.Invoices.Create(ctx, first))

		err := r.Invoices.Create(ctx, newInvoice(companyID, "FAC-2025-0001"))
		require.ErrorIs(t, err, domain.ErrDuplicate)

		// La tx sigue viva: lecturas e inserciones posteriores funcionan.
		got, err := r.Invoices.GetByID(ctx, companyID, first.ID, false)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.NoError(t, r.Invoices.Create(ctx, newInvoice(companyID, "FAC-2025-0002")))
		return nil
	})
	require.NoError(t, err)

	numbers, err := postgres.NewRepos(pool).Invoices.NumbersWithPrefix(ctx, companyID, "FAC-2025-")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"FAC-2025-0001", "FAC-2025-0002"}, numbers)
}

func TestQuoteRepo_NumeroDuplicadoNoAbortaLaTx(t *testing.T) {
	pool := testPool(t)
	companyID := seedCompany(t, pool)
	ctx := context.Background()

	err := postgres.NewTxRunner(pool).Run(ctx, func(r repository.Repos) error {
		require.NoError(t, r.Quotes.Create(ctx, newQuote(companyID, "DEV-2025-001")))
		require.ErrorIs(t, r.Quotes.Create(ctx, newQuote(companyID, "DEV-2025-001")), domain.ErrDuplicate)
		return r.Quotes.Create(ctx, newQuote(companyID, "DEV-2025-002"))
	})
	require.NoError(t, err)

	numbers, err := postgres.NewRepos(pool).Quotes.NumbersWithPrefix(ctx, companyID, "DEV-2025-")
	require.NoError(t, err)
	assert.Len(t, numbers, 2)
}

func TestInvoiceRepo_CreditedTotal(t *testing.T) {
	pool := testPool(t)
	companyID := seedCompany(t, pool)
	ctx := context.Background()
	repos := postgres.NewRepos(pool)

	orig := newInvoice(companyID, "FAC-2025-0001")
	orig.TotalTTC = d("366.60")
	require.NoError(t, repos.Invoices.Create(ctx, orig))
	for i, amount := range []string{"100", "50.50"} {
		credit := newInvoice(companyID, []string{"AVO-2025-0001-AVOIR", "AVO-2025-0002-AVOIR"}[i])
		credit.InvoiceType = entity.InvoiceTypeCreditNote
		credit.OriginalInvoiceID = orig.ID
		credit.TotalTTC = d(amount)
		require.NoError(t, repos.Invoices.Create(ctx, credit))
	}

	total, err := repos.Invoices.CreditedTotal(ctx, companyID, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, "150.50", total.StringFixed(2))
}

func seedConversation(t *testing.T, pool *pgxpool.Pool, companyID string) *entity.Conversation {
	t.Helper()
	now := time.Now().UTC()
	c := &entity.Conversation{
		ID: uuid.New().String(), CompanyID: companyID, Subject: "Demande de devis",
		Source: entity.SourceEmail, Status: entity.ConversationToAnswer, LastMessageAt: now,
		AutoReplyPending: true, AutoReplyMode: entity.AutoReplyAuto, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, postgres.NewRepos(pool).Conversations.Create(context.Background(), c))
	return c
}

func TestConversationRepo_MarkAutoReplySentUnaSolaVez(t *testing.T) {
	pool := testPool(t)
	companyID := seedCompany(t, pool)
	conv := seedConversation(t, pool, companyID)
	ctx := context.Background()
	runner := postgres.NewTxRunner(pool)

	const workers = 8
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		mu    sync.Mutex
		wins  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := runner.Run(ctx, func(r repository.Repos) error {
				ok, err := r.Conversations.MarkAutoReplySent(ctx, companyID, conv.ID)
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
				return err
			})
			assert.NoError(t, err)
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, 1, wins)

	got, err := postgres.NewRepos(pool).Conversations.GetByID(ctx, companyID, conv.ID)
	require.NoError(t, err)
	assert.True(t, got.AutoReplySent)
	assert.False(t, got.AutoReplyPending)
}

func TestConversationRepo_UpdateNoReiniciaAutoReplySent(t *testing.T) {
	pool := testPool(t)
	companyID := seedCompany(t, pool)
	conv := seedConversation(t, pool, companyID)
	ctx := context.Background()
	repos := postgres.NewRepos(pool)

	ok, err := repos.Conversations.MarkAutoReplySent(ctx, companyID, conv.ID)
	require.NoError(t, err)
	require.True(t, ok)

	// Copia obsoleta leída antes del envío: Update no debe devolver el flag a false.
	conv.AutoReplySent = false
	conv.Subject = "Demande de devis (relance)"
	conv.UpdatedAt = time.Now().UTC()
	require.NoError(t, repos.Conversations.Update(ctx, conv))

	got, err := repos.Conversations.GetByID(ctx, companyID, conv.ID)
	require.NoError(t, err)
	assert.True(t, got.AutoReplySent)
	assert.Equal(t, "Demande de devis (relance)", got.Subject)

	ok, err = repos.Conversations.MarkAutoReplySent(ctx, companyID, conv.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
