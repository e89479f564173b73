package inbox_test

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/inbox"
)

func folder(id string, priority int, f entity.FolderFilters) entity.InboxFolder {
	return entity.InboxFolder{ID: id, Name: id, AIRules: entity.FolderAIRules{AutoClassify: true, Priority: priority, Filters: f}}
}

// ──────────────────────────────────────────────────────────────────────────────
// Etapa de reglas
// ──────────────────────────────────────────────────────────────────────────────

func TestMatchFolder_PalabraClaveConAcentos(t *testing.T) {
	folders := []entity.InboxFolder{
		folder("Support", 10, entity.FolderFilters{}),
		folder("Factures", 0, entity.FolderFilters{Keywords: []string{"facture", "paiement"}, KeywordsLocation: "any"}),
	}
	msg := inbox.Message{Subject: "Facture impayée", Content: "Bonjour, ma facture n'est pas réglée", FromEmail: "client@acme.tld"}

	got := inbox.MatchFolder(folders, msg)
	require.NotNil(t, got)
	assert.Equal(t, "Factures", got.ID)

	msg = inbox.Message{Subject: "Question", Content: "Le PAIEMENT a-t-il été reçu ?"}
	got = inbox.MatchFolder(folders, msg)
	require.NotNil(t, got)
	assert.Equal(t, "Factures", got.ID)
}

func TestMatchFolder_Prioridad(t *testing.T) {
	f := entity.FolderFilters{SenderDomain: []string{"acme.tld"}}
	folders := []entity.InboxFolder{folder("B", 5, f), folder("A", 1, f)}
	got := inbox.MatchFolder(folders, inbox.Message{FromEmail: "x@mail.acme.tld"})
	require.NotNil(t, got)
	assert.Equal(t, "A", got.ID)
}

func TestMatchFolder_IgnoraCarpetasSinAutoClassify(t *testing.T) {
	f := folder("A", 1, entity.FolderFilters{Keywords: []string{"devis"}})
	f.AIRules.AutoClassify = false
	assert.Nil(t, inbox.MatchFolder([]entity.InboxFolder{f}, inbox.Message{Subject: "devis"}))
}

func TestMatches_AllVsAny(t *testing.T) {
	f := entity.FolderFilters{
		Keywords:         []string{"devis"},
		KeywordsLocation: inbox.LocationSubject,
		SenderEmail:      []string{"Client@Acme.tld"},
	}
	msg := inbox.Message{Subject: "Demande", Content: "devis svp", FromEmail: "client@acme.tld"}

	f.MatchType = inbox.MatchAny
	assert.True(t, inbox.Matches(f, msg))
	f.MatchType = inbox.MatchAll
	assert.False(t, inbox.Matches(f, msg), "la palabra solo está en el contenido")

	msg.Subject = "Demande de devis"
	assert.True(t, inbox.Matches(f, msg))
}

func TestMatches_Telefono(t *testing.T) {
	f := entity.FolderFilters{SenderPhone: []string{"+33 6 12 34 56 78"}}
	assert.True(t, inbox.Matches(f, inbox.Message{FromPhone: "+33612345678"}))
	assert.False(t, inbox.Matches(f, inbox.Message{FromPhone: "+33700000000"}))
}

func TestMatches_SinDimensiones(t *testing.T) {
	assert.False(t, inbox.Matches(entity.FolderFilters{MatchType: inbox.MatchAll}, inbox.Message{Subject: "x"}))
}

// ──────────────────────────────────────────────────────────────────────────────
// Urgencia
// ──────────────────────────────────────────────────────────────────────────────

func TestIsUrgent(t *testing.T) {
	assert.True(t, inbox.IsUrgent("Besoin d'aide", "C'est URGENT, merci"))
	assert.True(t, inbox.IsUrgent("Chaudière", "la chaudière est en panne"))
	assert.True(t, inbox.IsUrgent("Accès", "je suis bloqué depuis ce matin"))
	assert.True(t, inbox.IsUrgent("Rappel", "merci de répondre dès que possible"))
	assert.False(t, inbox.IsUrgent("Question", "petit problème de facture"))
	assert.False(t, inbox.IsUrgent("Facture impayée", "Bonjour, ma facture n'est pas réglée"))
}

func TestIsUrgent_AsuntoEnMayusculas(t *testing.T) {
	assert.True(t, inbox.IsUrgent("RAPPEL FACTURE", "bonjour"))
	assert.False(t, inbox.IsUrgent("OK", "bonjour"), "menos de 4 letras")
}

// ──────────────────────────────────────────────────────────────────────────────
// Estado derivado
// ──────────────────────────────────────────────────────────────────────────────

func TestDeriveStatus(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, entity.ConversationToAnswer, inbox.DeriveStatus(entity.ConversationAnswered, true, false, now, now))
	assert.Equal(t, entity.ConversationUrgent, inbox.DeriveStatus(entity.ConversationToAnswer, true, true, now, now))
	assert.Equal(t, entity.ConversationAnswered, inbox.DeriveStatus(entity.ConversationToAnswer, false, false, now.Add(-time.Hour), now))
	assert.Equal(t, entity.ConversationWaiting, inbox.DeriveStatus(entity.ConversationAnswered, false, false, now.Add(-72*time.Hour), now))
	assert.Equal(t, entity.ConversationResolved, inbox.DeriveStatus(entity.ConversationWaiting, false, false, now.Add(-8*24*time.Hour), now))
}

func TestDeriveStatus_EstadosManuales(t *testing.T) {
	now := time.Now()
	assert.Equal(t, entity.ConversationArchived, inbox.DeriveStatus(entity.ConversationArchived, true, true, now, now))
	assert.Equal(t, entity.ConversationSpam, inbox.DeriveStatus(entity.ConversationSpam, false, false, now, now))
}

// ──────────────────────────────────────────────────────────────────────────────
// Asuntos y nombres
// ──────────────────────────────────────────────────────────────────────────────

func TestNormalizeSubject(t *testing.T) {
	assert.Equal(t, "Facture impayée", inbox.NormalizeSubject("Re: Facture impayée"))
	assert.Equal(t, "Facture impayée", inbox.NormalizeSubject("RE: Fwd: re:Facture impayée"))
	assert.Equal(t, "TR", inbox.NormalizeSubject("TR"))
	assert.Equal(t, "Devis", inbox.NormalizeSubject("  Devis "))
}

func TestNormalizeSubject_MayusculasNoASCII(t *testing.T) {
	assert.Equal(t, "Commande 42", inbox.NormalizeSubject("RÉF: Commande 42"))
	assert.Equal(t, "Ⱥtelier", inbox.NormalizeSubject("re: Ⱥtelier"))
	// Ⱥ ocupa 2 bytes y su minúscula 3: no debe confundirse con un prefijo ni partir runas.
	for _, subject := range []string{"Ⱥre: devis", "İre: devis", "\u212Are: devis", "ré", "RÉ"} {
		out := inbox.NormalizeSubject(subject)
		assert.True(t, utf8.ValidString(out), subject)
		assert.Equal(t, subject, out)
	}
}

func TestNameFromEmail(t *testing.T) {
	assert.Equal(t, "jean dupont", inbox.NameFromEmail("jean.dupont@acme.tld"))
	assert.Equal(t, "acme.tld", inbox.EmailDomain("Client@ACME.tld"))
}
