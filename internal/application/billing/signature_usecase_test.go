package billing_test

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/billing"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []ports.EmailMessage
}

func (m *captureMailer) Send(_ context.Context, msg ports.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

var codeRe = regexp.MustCompile(`est : (\d{6})`)

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	match := codeRe.FindStringSubmatch(m.sent[len(m.sent)-1].Text)
	require.Len(t, match, 2)
	return match[1]
}

// acceptedQuote crea un devis de dos líneas y lo lleva a accepté.
func acceptedQuote(t *testing.T, e *env, actor *auth.Actor, clientID string) *dto.QuoteResponse {
	t.Helper()
	ctx := context.Background()
	q, err := e.quotes.Create(ctx, actor, dto.CreateQuoteRequest{ClientID: clientID, Lines: twoLines()})
	require.NoError(t, err)
	_, err = e.quotes.Send(ctx, actor, q.ID)
	require.NoError(t, err)
	q, err = e.quotes.Accept(ctx, actor, q.ID)
	require.NoError(t, err)
	return q
}

func newSignature(e *env, mailer ports.EmailSender, now *time.Time) *billing.SignatureUseCase {
	uc := billing.NewSignatureUseCase(e.store, e.store.Repos(), mailer, billing.SignatureConfig{From: "noreply@lokario.fr", PublicURL: "https://app.lokario.fr"}, zerolog.Nop())
	uc.Clock = func() time.Time { return *now }
	return uc
}

func TestSignature_CircuitoCompleto(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor, clientID := e.seedTenant(t, "T1")
	q := acceptedQuote(t, e, actor, clientID)

	now := fixedNow
	mailer := &captureMailer{}
	sig := newSignature(e, mailer, &now)

	_, err := sig.RequestOTP(ctx, q.ID, dto.RequestOTPRequest{Email: "client@acme.tld"}, e.meta)
	require.NoError(t, err)
	code := mailer.lastCode(t)
	assert.Equal(t, "client@acme.tld", mailer.sent[0].To)

	now = now.Add(2 * time.Minute)
	res, err := sig.Submit(ctx, q.ID, dto.SubmitSignatureRequest{Email: "client@acme.tld", Code: code, SignerName: "J. Dupont", Consent: true}, e.meta)
	require.NoError(t, err)
	assert.Equal(t, "J. Dupont", res.SignerName)
	assert.Len(t, res.DocumentHash, 64)

	got, err := e.quotes.Get(ctx, actor, q.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.QuoteStatusSigned, got.Status)

	v, err := sig.Verify(ctx, actor, q.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.VerifyValid, v.Status)
	assert.True(t, v.SignatureHashMatches)

	notes := "modif"
	_, err = e.quotes.Update(ctx, actor, q.ID, dto.UpdateQuoteRequest{Notes: &notes})
	assert.ErrorIs(t, err, domain.ErrDocumentLocked)
	assert.Equal(t, domain.CodeDocumentLocked, domain.CodeOf(err))

	events, err := sig.Events(ctx, actor, q.ID)
	require.NoError(t, err)
	types := map[string]bool{}
	for _, ev := range events {
		types[ev.EventType] = true
	}
	for _, want := range []string{entity.SignatureEventRequestedOTP, entity.SignatureEventOTPValidated, entity.SignatureEventSigned} {
		assert.True(t, types[want], "evento %s ausente", want)
	}

	xml, name, err := sig.Evidence(ctx, q.ID, e.meta)
	require.NoError(t, err)
	assert.Contains(t, name, q.Number)
	assert.Contains(t, string(xml), res.SignatureHash)

	_, err = sig.RequestOTP(ctx, q.ID, dto.RequestOTPRequest{Email: "client@acme.tld"}, e.meta)
	assert.Equal(t, domain.CodeAlreadySigned, domain.CodeOf(err))
}

func TestSignature_DevisNoAceptado(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor, clientID := e.seedTenant(t, "T1")
	q, err := e.quotes.Create(ctx, actor, dto.CreateQuoteRequest{ClientID: clientID, Lines: twoLines()})
	require.NoError(t, err)

	now := fixedNow
	sig := newSignature(e, &captureMailer{}, &now)

	_, err = sig.RequestOTP(ctx, q.ID, dto.RequestOTPRequest{Email: "client@acme.tld"}, e.meta)
	assert.ErrorIs(t, err, domain.ErrNotFound, "un brouillon no es público")

	_, err = e.quotes.Send(ctx, actor, q.ID)
	require.NoError(t, err)
	_, err = sig.RequestOTP(ctx, q.ID, dto.RequestOTPRequest{Email: "client@acme.tld"}, e.meta)
	assert.Equal(t, domain.CodeWrongState, domain.CodeOf(err))
}

func TestSignature_EmailAjeno(t *testing.T) {
	e := newEnv(t)
	actor, clientID := e.seedTenant(t, "T1")
	q := acceptedQuote(t, e, actor, clientID)
	now := fixedNow
	sig := newSignature(e, &captureMailer{}, &now)

	_, err := sig.RequestOTP(context.Background(), q.ID, dto.RequestOTPRequest{Email: "otro@acme.tld"}, e.meta)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSignature_CodigoInvalidadoTrasCincoFallos(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor, clientID := e.seedTenant(t, "T1")
	q := acceptedQuote(t, e, actor, clientID)
	now := fixedNow
	mailer := &captureMailer{}
	sig := newSignature(e, mailer, &now)

	_, err := sig.RequestOTP(ctx, q.ID, dto.RequestOTPRequest{Email: "client@acme.tld"}, e.meta)
	require.NoError(t, err)
	code := mailer.lastCode(t)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	req := dto.SubmitSignatureRequest{Email: "client@acme.tld", Code: wrong, SignerName: "J. Dupont", Consent: true}
	for i := 0; i < billing.OTPMaxAttempts; i++ {
		_, err = sig.Submit(ctx, q.ID, req, e.meta)
		assert.Equal(t, domain.CodeInvalidCode, domain.CodeOf(err))
	}

	req.Code = code
	_, err = sig.Submit(ctx, q.ID, req, e.meta)
	assert.Equal(t, domain.CodeInvalidCode, domain.CodeOf(err), "el código correcto ya no sirve")

	events, err := sig.Events(ctx, actor, q.ID)
	require.NoError(t, err)
	failed := 0
	for _, ev := range events {
		if ev.EventType == entity.SignatureEventOTPFailed {
			failed++
		}
	}
	assert.Equal(t, billing.OTPMaxAttempts, failed)
}

func TestSignature_CodigoExpirado(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor, clientID := e.seedTenant(t, "T1")
	q := acceptedQuote(t, e, actor, clientID)
	now := fixedNow
	mailer := &captureMailer{}
	sig := newSignature(e, mailer, &now)

	_, err := sig.RequestOTP(ctx, q.ID, dto.RequestOTPRequest{Email: "client@acme.tld"}, e.meta)
	require.NoError(t, err)
	code := mailer.lastCode(t)

	now = now.Add(billing.OTPTTL)
	_, err = sig.Submit(ctx, q.ID, dto.SubmitSignatureRequest{Email: "client@acme.tld", Code: code, SignerName: "J. Dupont", Consent: true}, e.meta)
	assert.Equal(t, domain.CodeExpired, domain.CodeOf(err))
}

func TestSignature_LimiteDeCodigosPorHora(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	actor, clientID := e.seedTenant(t, "T1")
	q := acceptedQuote(t, e, actor, clientID)
	now := fixedNow
	sig := newSignature(e, &captureMailer{}, &now)

	for i := 0; i < billing.OTPMaxPerHour; i++ {
		_, err := sig.RequestOTP(ctx, q.ID, dto.RequestOTPRequest{Email: "client@acme.tld"}, e.meta)
		require.NoError(t, err)
	}
	_, err := sig.RequestOTP(ctx, q.ID, dto.RequestOTPRequest{Email: "client@acme.tld"}, e.meta)
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	now = now.Add(61 * time.Minute)
	_, err = sig.RequestOTP(ctx, q.ID, dto.RequestOTPRequest{Email: "client@acme.tld"}, e.meta)
	assert.NoError(t, err)
}

func TestSignature_SinConsentimiento(t *testing.T) {
	e := newEnv(t)
	now := fixedNow
	sig := newSignature(e, &captureMailer{}, &now)
	_, err := sig.Submit(context.Background(), "q", dto.SubmitSignatureRequest{Email: "a@b.fr", Code: "123456", SignerName: "X"}, e.meta)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
