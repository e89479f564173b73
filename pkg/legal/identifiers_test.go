package legal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/pkg/legal"
)

func TestValidateSIREN(t *testing.T) {
	assert.NoError(t, legal.ValidateSIREN("732 829 320"))
	assert.Error(t, legal.ValidateSIREN("732829321"))
	assert.Error(t, legal.ValidateSIREN("12345"))
}

func TestValidateSIRET(t *testing.T) {
	assert.NoError(t, legal.ValidateSIRET("73282932000074"))
	assert.Error(t, legal.ValidateSIRET("73282932000075"))
	assert.Equal(t, "732829320", legal.SIRENFromSIRET("732 829 320 00074"))
}

func TestComputeVATNumber(t *testing.T) {
	vat, err := legal.ComputeVATNumber("732829320")
	require.NoError(t, err)
	assert.Equal(t, "FR44732829320", vat)
	assert.NoError(t, legal.ValidateVATNumber("FR 44 732829320"))
	assert.Error(t, legal.ValidateVATNumber("FR45732829320"))
}
