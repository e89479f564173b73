package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/domain/billing"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

func sampleQuote() *entity.Quote {
	lines := []entity.Line{line("2", "100", "20"), line("1.5", "80", "5.5")}
	lines[0].Position, lines[1].Position = 1, 2
	q := &entity.Quote{
		ID: "q-1", CompanyID: "c-1", ClientID: "cl-1", Number: "DEV-2025-001",
		Status:    entity.QuoteStatusAccepted,
		IssueDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Seller:    entity.PartySnapshot{Name: "Plomberie Martin", Siren: "732829320"},
		Client:    entity.PartySnapshot{Name: "ACME", Email: "client@acme.tld"},
		Lines:     lines,
	}
	q.ApplyTotals(billing.ComputeTotals(q.Lines, nil))
	return q
}

func TestDocumentHash_Determinista(t *testing.T) {
	h1, err := billing.DocumentHash(sampleQuote())
	require.NoError(t, err)
	h2, err := billing.DocumentHash(sampleQuote())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestDocumentHash_IgnoraEstadoYOrdenDeCarga(t *testing.T) {
	q := sampleQuote()
	h1, err := billing.DocumentHash(q)
	require.NoError(t, err)

	q.Status = entity.QuoteStatusSigned
	q.UpdatedAt = time.Now()
	q.Lines[0], q.Lines[1] = q.Lines[1], q.Lines[0]
	h2, err := billing.DocumentHash(q)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestDocumentHash_DetectaMutacion(t *testing.T) {
	base, err := billing.DocumentHash(sampleQuote())
	require.NoError(t, err)

	mutations := []func(q *entity.Quote){
		func(q *entity.Quote) { q.Lines[0].UnitPriceHT = d("101") },
		func(q *entity.Quote) { q.Lines[1].Description = "Autre" },
		func(q *entity.Quote) { q.Conditions = "Acompte 30 %" },
		func(q *entity.Quote) { q.TotalTTC = q.TotalTTC.Add(d("0.01")) },
		func(q *entity.Quote) { q.Client.Name = "ACME SAS" },
		func(q *entity.Quote) { q.Lines = q.Lines[:1] },
	}
	for i, m := range mutations {
		q := sampleQuote()
		m(q)
		h, err := billing.DocumentHash(q)
		require.NoError(t, err)
		assert.NotEqual(t, base, h, "mutación %d", i)
	}
}

func TestDocumentHash_CaracteresDeControl(t *testing.T) {
	q := sampleQuote()
	q.Notes = "ligne\x00invalide <&>"
	_, err := billing.DocumentHash(q)
	assert.NoError(t, err)
}

func TestSignatureHash(t *testing.T) {
	at := time.Date(2025, 2, 3, 10, 0, 0, 123456789, time.UTC)
	h1 := billing.SignatureHash("abc", "client@acme.tld", "J. Dupont", "J'accepte", at)
	// Truncado a microsegundos: mismo hash tras el paso por la base.
	h2 := billing.SignatureHash("abc", "client@acme.tld", "J. Dupont", "J'accepte", at.Truncate(time.Microsecond))
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, billing.SignatureHash("abd", "client@acme.tld", "J. Dupont", "J'accepte", at))
}

func TestEvidenceXML(t *testing.T) {
	q := sampleQuote()
	sig := &entity.QuoteSignature{SignerName: "J. Dupont", SignerEmail: "client@acme.tld", SignatureHash: "ff", DocumentHashBefore: "ee", SignedAt: time.Now()}
	out, err := billing.EvidenceXML(q, sig, []entity.QuoteSignatureAuditLog{{EventType: entity.SignatureEventSigned, CreatedAt: time.Now()}})
	require.NoError(t, err)
	assert.Contains(t, string(out), "<PreuveSignature")
	assert.Contains(t, string(out), "J. Dupont")
	assert.Contains(t, string(out), `type="signed"`)
}
