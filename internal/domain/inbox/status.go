package inbox

import (
	"time"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

// Umbrales del estado derivado cuando la empresa habló la última.
const (
	AnsweredWindow = 48 * time.Hour
	ResolvedAfter  = 7 * 24 * time.Hour
)

// IsManualStatus Archivé y Spam solo cambian por acción humana.
func IsManualStatus(status string) bool {
	return status == entity.ConversationArchived || status == entity.ConversationSpam
}

// DeriveStatus calcula el estado de la conversación a partir del último mensaje.
//   - último mensaje del cliente: Urgent si la conversación es urgente, si no À répondre;
//   - último mensaje de la empresa: Répondu (< 48 h), En attente (hasta 7 días), Résolu después.
func DeriveStatus(current string, lastFromClient, urgent bool, lastMessageAt, now time.Time) string {
	if IsManualStatus(current) {
		return current
	}
	if lastFromClient {
		if urgent {
			return entity.ConversationUrgent
		}
		return entity.ConversationToAnswer
	}
	age := now.Sub(lastMessageAt)
	switch {
	case age < AnsweredWindow:
		return entity.ConversationAnswered
	case age < ResolvedAfter:
		return entity.ConversationWaiting
	default:
		return entity.ConversationResolved
	}
}
