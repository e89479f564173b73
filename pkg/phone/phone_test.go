package phone_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/lokario-api/pkg/phone"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"06 12 34 56 78":    "+33612345678",
		"+33 6 12 34 56 78": "+33612345678",
		"33612345678":       "+33612345678",
		"":                  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, phone.Normalize(in), in)
	}
}

func TestNormalize_NumeroNoReconocidoConservaDigitos(t *testing.T) {
	assert.Equal(t, "+123", phone.Normalize("12-3"))
}

func TestProvider(t *testing.T) {
	assert.Equal(t, "33612345678", phone.Provider("+33612345678"))
}
