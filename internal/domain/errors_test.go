package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/lokario-api/internal/domain"
)

func TestError_IsKind(t *testing.T) {
	err := fmt.Errorf("update quote: %w", domain.ErrDocumentLocked)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.False(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, domain.CodeDocumentLocked, domain.CodeOf(err))
}

func TestValidation_IncluyeCampo(t *testing.T) {
	err := domain.Validation("lines[0].tax_rate", "taux non autorisé")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	assert.Contains(t, err.Error(), "lines[0].tax_rate")
}

func TestCodeOf_ErrorPlano(t *testing.T) {
	assert.Equal(t, "", domain.CodeOf(domain.ErrNotFound))
}
