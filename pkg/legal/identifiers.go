// Package legal contiene validaciones y catálogos de mentions légales francesas
// (SIREN/SIRET, TVA intracommunautaire, catégories d'opération).
package legal

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ValidateSIREN valida un SIREN (9 cifras, clave de Luhn). Acepta espacios.
func ValidateSIREN(siren string) error {
	digits := extractDigits(siren)
	if len(digits) != 9 {
		return fmt.Errorf("legal: le SIREN doit contenir 9 chiffres, %d trouvés", len(digits))
	}
	if !luhnValid(digits) {
		return fmt.Errorf("legal: clé de contrôle du SIREN invalide")
	}
	return nil
}

// ValidateSIRET valida un SIRET (SIREN + NIC, 14 cifras, Luhn).
// Los establecimientos de La Poste (SIREN 356000000) usan suma de dígitos múltiplo de 5.
func ValidateSIRET(siret string) error {
	digits := extractDigits(siret)
	if len(digits) != 14 {
		return fmt.Errorf("legal: le SIRET doit contenir 14 chiffres, %d trouvés", len(digits))
	}
	if string(digits[:9]) == "356000000" {
		var sum int
		for _, d := range digits {
			sum += int(d - '0')
		}
		if sum%5 != 0 {
			return fmt.Errorf("legal: SIRET La Poste invalide")
		}
		return nil
	}
	if !luhnValid(digits) {
		return fmt.Errorf("legal: clé de contrôle du SIRET invalide")
	}
	return nil
}

// SIRENFromSIRET devuelve los 9 primeros dígitos.
func SIRENFromSIRET(siret string) string {
	digits := extractDigits(siret)
	if len(digits) < 9 {
		return ""
	}
	return string(digits[:9])
}

// ComputeVATNumber calcula el número de TVA intracommunautaire a partir del SIREN:
// FR + clave (12 + 3 * (SIREN mod 97)) mod 97 + SIREN.
func ComputeVATNumber(siren string) (string, error) {
	if err := ValidateSIREN(siren); err != nil {
		return "", err
	}
	n, err := strconv.ParseInt(string(extractDigits(siren)), 10, 64)
	if err != nil {
		return "", err
	}
	key := (12 + 3*(n%97)) % 97
	return fmt.Sprintf("FR%02d%09d", key, n), nil
}

// ValidateVATNumber comprueba que un número de TVA francés corresponde a su SIREN.
func ValidateVATNumber(vat string) error {
	v := strings.ToUpper(strings.ReplaceAll(vat, " ", ""))
	if !strings.HasPrefix(v, "FR") || len(v) != 13 {
		return fmt.Errorf("legal: numéro de TVA intracommunautaire invalide")
	}
	expected, err := ComputeVATNumber(v[4:])
	if err != nil {
		return err
	}
	if expected != v {
		return fmt.Errorf("legal: clé du numéro de TVA invalide, attendu %s", expected)
	}
	return nil
}

func luhnValid(digits []byte) bool {
	var sum int
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func extractDigits(s string) []byte {
	var out []byte
	for _, r := range s {
		if unicode.IsDigit(r) {
			out = append(out, byte(r))
		}
	}
	return out
}
