// Package phone normaliza números de teléfono a E.164 (región por defecto FR).
package phone

import (
	"strings"

	"github.com/ttacon/libphonenumber"
)

// DefaultRegion región usada cuando el número no lleva prefijo internacional.
const DefaultRegion = "FR"

// Normalize devuelve el número en formato "+<dígitos>". Si libphonenumber no lo reconoce
// se conservan solo los dígitos con un "+" delante para no perder el mensaje entrante.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	// Los proveedores (Vonage) envían el MSISDN sin "+": 33612345678.
	candidate := raw
	if !strings.HasPrefix(candidate, "+") && !strings.HasPrefix(candidate, "0") && len(digitsOnly(candidate)) > 10 {
		candidate = "+" + digitsOnly(candidate)
	}
	if num, err := libphonenumber.Parse(candidate, DefaultRegion); err == nil && libphonenumber.IsValidNumber(num) {
		return libphonenumber.Format(num, libphonenumber.E164)
	}
	d := digitsOnly(raw)
	if d == "" {
		return ""
	}
	return "+" + d
}

// Valid indica si el número es válido para la región por defecto o con prefijo internacional.
func Valid(raw string) bool {
	num, err := libphonenumber.Parse(raw, DefaultRegion)
	if err != nil {
		return false
	}
	return libphonenumber.IsValidNumber(num)
}

// Provider formato sin "+" que esperan las APIs de SMS.
func Provider(e164 string) string {
	return strings.TrimPrefix(e164, "+")
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
