package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

func TestQuote_CreacionYValidezPorDefecto(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor, clientID := e.seedTenant(t, "T1")

	q, err := e.quotes.Create(ctx, actor, dto.CreateQuoteRequest{ClientID: clientID, Lines: twoLines()})
	require.NoError(t, err)
	assert.Equal(t, "DEV-2025-001", q.Number)
	assert.Equal(t, entity.QuoteStatusDraft, q.Status)
	require.NotNil(t, q.ExpiryDate)
	assert.Equal(t, "2025-04-14", q.ExpiryDate.Format("2006-01-02"))
	assert.Equal(t, "Atelier T1", q.Seller.Name)
	assert.Equal(t, "Acme SAS", q.Client.Name)
}

func TestQuote_ValidacionDeLineas(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor, clientID := e.seedTenant(t, "T1")

	bad := twoLines()
	bad[0].TaxRate = d("7")
	_, err := e.quotes.Create(ctx, actor, dto.CreateQuoteRequest{ClientID: clientID, Lines: bad})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	past := fixedNow.AddDate(0, 0, -3)
	_, err = e.quotes.Create(ctx, actor, dto.CreateQuoteRequest{ClientID: clientID, Lines: twoLines(), ExpiryDate: &past})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = e.quotes.Create(ctx, actor, dto.CreateQuoteRequest{ClientID: "inexistente", Lines: twoLines()})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQuote_EdicionSoloEnBrouillon(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor, clientID := e.seedTenant(t, "T1")
	q, err := e.quotes.Create(ctx, actor, dto.CreateQuoteRequest{ClientID: clientID, Lines: twoLines()})
	require.NoError(t, err)

	updated, err := e.quotes.Update(ctx, actor, q.ID, dto.UpdateQuoteRequest{
		Lines: twoLines()[:1],
	})
	require.NoError(t, err)
	assert.True(t, d("240.00").Equal(updated.TotalTTC))

	_, err = e.quotes.Send(ctx, actor, q.ID)
	require.NoError(t, err)

	_, err = e.quotes.Update(ctx, actor, q.ID, dto.UpdateQuoteRequest{RemoveDiscount: true})
	assert.ErrorIs(t, err, domain.ErrDocumentLocked)
	assert.ErrorIs(t, e.quotes.Delete(ctx, actor, q.ID), domain.ErrDocumentLocked)

	_, err = e.quotes.Send(ctx, actor, q.ID)
	assert.Equal(t, domain.CodeStatusTransitionInvalid, domain.CodeOf(err))
}

func TestQuote_EnvioSinLineas(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor, clientID := e.seedTenant(t, "T1")
	q, err := e.quotes.Create(ctx, actor, dto.CreateQuoteRequest{ClientID: clientID})
	require.NoError(t, err)

	_, err = e.quotes.Send(ctx, actor, q.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQuote_ExpiraAlDiaSiguiente(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor, clientID := e.seedTenant(t, "T1")
	expiry := fixedNow.AddDate(0, 0, 2)
	q, err := e.quotes.Create(ctx, actor, dto.CreateQuoteRequest{ClientID: clientID, Lines: twoLines(), ExpiryDate: &expiry})
	require.NoError(t, err)
	_, err = e.quotes.Send(ctx, actor, q.ID)
	require.NoError(t, err)

	expired, err := e.quotes.ExpireSent(ctx, expiry.Add(10*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, expired)

	expired, err = e.quotes.ExpireSent(ctx, fixedNow.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, expired, 1)

	got, err := e.quotes.Get(ctx, actor, q.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.QuoteStatusExpired, got.Status)
}
