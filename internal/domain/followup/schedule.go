// Package followup contiene la política pura de relances: canal, próxima fecha,
// condiciones de parada, plantillas y backoff ante fallos de transporte.
package followup

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

// Channel canal del envío n (0 = primer envío).
func Channel(methods []string, n int) string {
	if len(methods) == 0 {
		return entity.ChannelEmail
	}
	return methods[clamp(n, len(methods))]
}

// NextDueDate now + relance_delays[min(n, len-1)] días. n es el número de envíos previos.
func NextDueDate(now time.Time, delays []int, fallbackDays, n int) time.Time {
	days := fallbackDays
	if len(delays) > 0 {
		days = delays[clamp(n, len(delays))]
	}
	if days <= 0 {
		days = 1
	}
	return now.AddDate(0, 0, days)
}

func clamp(n, length int) int {
	if n < 0 {
		return 0
	}
	if n > length-1 {
		return length - 1
	}
	return n
}

// SourceState estado del origen leído antes de cada envío.
type SourceState struct {
	InvoiceStatus      string
	QuoteStatus        string
	ClientRepliedAfter bool // respuesta del cliente en una conversación vinculada posterior a actual_date
}

// StopReason motivo de cierre automático, "" si la relance debe seguir.
func StopReason(f *entity.FollowUp, sent, maxRelances int, s SourceState) string {
	if maxRelances > 0 && sent >= maxRelances {
		return fmt.Sprintf("nombre maximal de relances atteint (%d)", maxRelances)
	}
	if f.AutoStopOnPaid && s.InvoiceStatus == entity.InvoiceStatusPaid {
		return "facture payée"
	}
	if f.AutoStopOnRefused && s.QuoteStatus == entity.QuoteStatusRefused {
		return "devis refusé"
	}
	if f.AutoStopOnResponse && s.ClientRepliedAfter {
		return "réponse du client reçue"
	}
	return ""
}

// Backoff espera tras el n-ésimo fallo consecutivo: 15 min, 30 min, 1 h... hasta 24 h.
func Backoff(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	d := 15 * time.Minute
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= 24*time.Hour {
			return 24 * time.Hour
		}
	}
	return d
}

var placeholder = regexp.MustCompile(`\{([a-z_]+)\}`)

// Render sustituye las variables de la plantilla. Es estricto: plantilla vacía o
// variable desconocida devuelven template_not_configured.
func Render(template string, vars map[string]string) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", domain.NewError(domain.ErrInvalidInput, domain.CodeTemplateNotConfigured,
			"aucun modèle de relance n'est configuré pour ce type")
	}
	var missing []string
	out := placeholder.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := vars[key]
		if !ok {
			missing = append(missing, m)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", domain.NewError(domain.ErrInvalidInput, domain.CodeTemplateNotConfigured,
			"variable(s) inconnue(s) dans le modèle : "+strings.Join(missing, ", "))
	}
	return out, nil
}
