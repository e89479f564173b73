package inbox

import (
	"strings"
	"unicode"
)

// UrgencyThreshold peso mínimo para marcar una conversación como urgente.
const UrgencyThreshold = 0.7

// Pesos por palabra clave (ya sin acentos).
var urgencyWeights = map[string]float64{
	"urgent":           1.0,
	"urgence":          1.0,
	"asap":             0.9,
	"critique":         0.9,
	"immediatement":    0.8,
	"au plus vite":     0.8,
	"des que possible": 0.8,
	"panne":            0.8,
	"bloque":           0.7,
	"rapidement":       0.6,
	"important":        0.5,
	"probleme":         0.4,
}

// UrgencyScore mayor peso encontrado en asunto + contenido; 1.0 si el asunto está mayoritariamente en mayúsculas.
func UrgencyScore(subject, content string) float64 {
	if shouting(subject) {
		return 1.0
	}
	text := " " + normalizeWords(Fold(subject+" "+content)) + " "
	best := 0.0
	for k, w := range urgencyWeights {
		if w > best && strings.Contains(text, " "+k+" ") {
			best = w
		}
	}
	return best
}

// IsUrgent UrgencyScore >= UrgencyThreshold.
func IsUrgent(subject, content string) bool {
	return UrgencyScore(subject, content) >= UrgencyThreshold
}

// shouting >= 50 % de letras en mayúscula, con al menos 4 letras.
func shouting(s string) bool {
	letters, upper := 0, 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters >= 4 && upper*2 >= letters
}

// normalizeWords reemplaza la puntuación por espacios y colapsa los espacios.
func normalizeWords(s string) string {
	f := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(f, " ")
}
