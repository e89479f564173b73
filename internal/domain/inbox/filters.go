package inbox

import (
	"sort"
	"strings"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

// Valores de la gramática de filtros.
const (
	LocationSubject = "subject"
	LocationContent = "content"
	LocationAny     = "any"

	MatchAll = "all"
	MatchAny = "any"
)

// Message vista mínima del mensaje que evalúan los filtros.
type Message struct {
	Subject   string
	Content   string
	FromEmail string
	FromPhone string
}

// FromInbox adapta un mensaje persistido.
func FromInbox(m *entity.InboxMessage, subject string) Message {
	s := m.Subject
	if s == "" {
		s = subject
	}
	return Message{Subject: s, Content: m.Content, FromEmail: m.FromEmail, FromPhone: m.FromPhone}
}

// Matches evalúa el predicado de filtros. Sin dimensiones declaradas nunca hay coincidencia.
func Matches(f entity.FolderFilters, m Message) bool {
	var results []bool
	if len(f.Keywords) > 0 {
		results = append(results, matchKeywords(f.Keywords, f.KeywordsLocation, m))
	}
	if len(f.SenderEmail) > 0 {
		results = append(results, matchEmail(f.SenderEmail, m.FromEmail))
	}
	if len(f.SenderDomain) > 0 {
		results = append(results, matchDomain(f.SenderDomain, m.FromEmail))
	}
	if len(f.SenderPhone) > 0 {
		results = append(results, matchPhone(f.SenderPhone, m.FromPhone))
	}
	if len(results) == 0 {
		return false
	}

	if f.MatchType == MatchAll {
		for _, ok := range results {
			if !ok {
				return false
			}
		}
		return true
	}
	for _, ok := range results {
		if ok {
			return true
		}
	}
	return false
}

func matchKeywords(keywords []string, location string, m Message) bool {
	var haystack string
	switch location {
	case LocationSubject:
		haystack = m.Subject
	case LocationContent:
		haystack = m.Content
	default:
		haystack = m.Subject + "\n" + m.Content
	}
	haystack = Fold(haystack)
	for _, k := range keywords {
		k = Fold(strings.TrimSpace(k))
		if k != "" && strings.Contains(haystack, k) {
			return true
		}
	}
	return false
}

func matchEmail(list []string, from string) bool {
	from = strings.ToLower(strings.TrimSpace(from))
	if from == "" {
		return false
	}
	for _, e := range list {
		if strings.ToLower(strings.TrimSpace(e)) == from {
			return true
		}
	}
	return false
}

func matchDomain(list []string, from string) bool {
	domain := EmailDomain(from)
	if domain == "" {
		return false
	}
	for _, d := range list {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "@")
		if d != "" && (domain == d || strings.HasSuffix(domain, "."+d)) {
			return true
		}
	}
	return false
}

func matchPhone(list []string, from string) bool {
	from = digits(from)
	if from == "" {
		return false
	}
	for _, p := range list {
		if digits(p) == from {
			return true
		}
	}
	return false
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AutoClassifyFolders carpetas con autoClassify ordenadas por prioridad ascendente.
func AutoClassifyFolders(folders []entity.InboxFolder) []entity.InboxFolder {
	out := make([]entity.InboxFolder, 0, len(folders))
	for _, f := range folders {
		if f.AIRules.AutoClassify {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AIRules.Priority < out[j].AIRules.Priority })
	return out
}

// MatchFolder etapa de reglas: primera carpeta (por prioridad) cuyo predicado se cumple.
func MatchFolder(folders []entity.InboxFolder, m Message) *entity.InboxFolder {
	for _, f := range AutoClassifyFolders(folders) {
		if Matches(f.AIRules.Filters, m) {
			f := f
			return &f
		}
	}
	return nil
}
