// Package inbox contiene las reglas puras de la bandeja: filtros de carpeta, detección de
// urgencia, estado derivado de una conversación y normalización de asuntos.
package inbox

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold pasa a minúsculas y elimina los acentos ("Facturé" -> "facture").
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

var replyPrefixes = []string{"re:", "fwd:", "fw:", "tr:", "réf:"}

// NormalizeSubject quita los prefijos Re:/Fwd: (repetidos) del asunto. El resto conserva mayúsculas.
func NormalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		stripped := false
		for _, p := range replyPrefixes {
			if rest, ok := cutPrefixFold(s, p); ok {
				s = strings.TrimSpace(rest)
				stripped = true
				break
			}
		}
		if !stripped {
			return s
		}
	}
}

// cutPrefixFold como strings.CutPrefix sin distinguir mayúsculas. Compara runa a runa sobre s,
// así el corte cae siempre en un límite de runa de s.
func cutPrefixFold(s, prefix string) (string, bool) {
	i := 0
	for _, want := range prefix {
		if i >= len(s) {
			return s, false
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r != want && !strings.EqualFold(string(r), string(want)) {
			return s, false
		}
		i += size
	}
	return s[i:], true
}

// NameFromEmail nombre mínimo de cliente: la parte local del email.
func NameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	local = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(local)
	return strings.TrimSpace(local)
}

// EmailDomain dominio en minúsculas de una dirección.
func EmailDomain(email string) string {
	_, domain, ok := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	if !ok {
		return ""
	}
	return domain
}
