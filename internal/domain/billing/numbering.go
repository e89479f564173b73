package billing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

// MaxAllocationAttempts reintentos ante colisión de número antes del número de emergencia.
const MaxAllocationAttempts = 1000

// FormatYear año según YearFormat (YY | YYYY).
func FormatYear(cfg entity.NumberingConfig, year int) string {
	if cfg.YearFormat == "YY" {
		return fmt.Sprintf("%02d", year%100)
	}
	return fmt.Sprintf("%04d", year)
}

// NumberPrefix parte fija "{prefix}{sep}{year}{sep}" común a todos los números del año.
func NumberPrefix(cfg entity.NumberingConfig, year int) string {
	return cfg.Prefix + cfg.Separator + FormatYear(cfg, year) + cfg.Separator
}

// FormatNumber {prefix}{sep}{year}{sep}{pad(seq)}[{sep}{suffix}].
func FormatNumber(cfg entity.NumberingConfig, year, seq int) string {
	width := cfg.Padding
	if width < 1 {
		width = 1
	}
	n := NumberPrefix(cfg, year) + fmt.Sprintf("%0*d", width, seq)
	if cfg.Suffix != "" {
		n += cfg.Separator + cfg.Suffix
	}
	return n
}

// ParseSequence extrae la parte secuencial de number si corresponde a cfg y year.
func ParseSequence(cfg entity.NumberingConfig, year int, number string) (int, bool) {
	head := NumberPrefix(cfg, year)
	if !strings.HasPrefix(number, head) {
		return 0, false
	}
	rest := strings.TrimPrefix(number, head)
	if cfg.Suffix != "" {
		tail := cfg.Separator + cfg.Suffix
		if !strings.HasSuffix(rest, tail) {
			return 0, false
		}
		rest = strings.TrimSuffix(rest, tail)
	} else if cfg.Separator != "" {
		// Sin sufijo: el último segmento.
		if i := strings.LastIndex(rest, cfg.Separator); i >= 0 {
			rest = rest[i+len(cfg.Separator):]
		}
	}
	if rest == "" {
		return 0, false
	}
	seq, err := strconv.Atoi(rest)
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

// NextSequence next = max(parsed ∪ {start-1}) + 1, acotado inferiormente por start.
func NextSequence(cfg entity.NumberingConfig, year int, existing []string) int {
	start := cfg.StartNumber
	if start < 1 {
		start = 1
	}
	max := start - 1
	for _, n := range existing {
		if seq, ok := ParseSequence(cfg, year, n); ok && seq > max {
			max = seq
		}
	}
	next := max + 1
	if next < start {
		next = start
	}
	return next
}

// FallbackNumber número de emergencia prefix-year-<ms mod 10000> cuando se agotan los reintentos.
func FallbackNumber(cfg entity.NumberingConfig, year int, now time.Time) string {
	return fmt.Sprintf("%s-%s-%04d", cfg.Prefix, FormatYear(cfg, year), now.UnixMilli()%10000)
}

// ValidateNumberingConfig comprueba una configuración enviada por el tenant.
func ValidateNumberingConfig(cfg entity.NumberingConfig) error {
	if strings.TrimSpace(cfg.Prefix) == "" {
		return fmt.Errorf("le préfixe est obligatoire")
	}
	if cfg.YearFormat != "YY" && cfg.YearFormat != "YYYY" {
		return fmt.Errorf("format d'année invalide (YY | YYYY)")
	}
	if cfg.Padding < 1 || cfg.Padding > 10 {
		return fmt.Errorf("le remplissage doit être compris entre 1 et 10")
	}
	if cfg.StartNumber < 1 {
		return fmt.Errorf("le numéro de départ doit être supérieur ou égal à 1")
	}
	if len(cfg.Separator) > 3 {
		return fmt.Errorf("séparateur trop long")
	}
	return nil
}
