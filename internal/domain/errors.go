package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas). Cada uno es un "kind" que la capa HTTP traduce a status.
var (
	ErrNotFound           = errors.New("ressource introuvable")
	ErrUserNotFound       = errors.New("utilisateur introuvable")
	ErrEmailAlreadyExists = errors.New("cet email est déjà utilisé")
	ErrInvalidInput       = errors.New("entrée invalide")
	ErrDuplicate          = errors.New("ressource en double")
	ErrUnauthorized       = errors.New("non authentifié")
	ErrForbidden          = errors.New("accès refusé")
	ErrConflict           = errors.New("conflit avec l'état actuel")
	ErrUpstream           = errors.New("service externe indisponible")
	ErrRateLimited        = errors.New("trop de requêtes")
)

// Códigos cortos expuestos al cliente en dto.ErrorResponse.Code.
const (
	CodeDocumentLocked          = "document_locked"
	CodeStatusTransitionInvalid = "status_transition_invalid"
	CodeQuotaExceeded           = "quota_exceeded"
	CodeFeatureDisabled         = "feature_disabled"
	CodeAlreadySigned           = "already_signed"
	CodeInvalidCode             = "invalid_code"
	CodeExpired                 = "expired"
	CodeWrongState              = "wrong_state"
	CodeRateLimited             = "rate_limited"
	CodeInvalidTaxRate          = "invalid_tax_rate"
	CodeTotalsIncoherent        = "totals_incoherent"
	CodeValidation              = "validation_error"
	CodePromptNotConfigured     = "prompt_not_configured"
	CodeGenerationFailed        = "generation_failed"
	CodeInvalidSignature        = "invalid_signature"
	CodeAccountPendingDeletion  = "account_pending_deletion"
	CodeTemplateNotConfigured   = "template_not_configured"
	CodeNoRecipient             = "no_recipient"
	CodeChannelUnavailable      = "channel_unavailable"
)

// Error error de dominio con código corto, detalle legible y kind (sentinel).
// errors.Is(err, domain.ErrConflict) es true para un *Error con Kind ErrConflict.
type Error struct {
	Kind   error
	Code   string
	Detail string
	Field  string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Detail, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Unwrap permite errors.Is contra el kind.
func (e *Error) Unwrap() error { return e.Kind }

// NewError construye un *Error.
func NewError(kind error, code, detail string) *Error {
	return &Error{Kind: kind, Code: code, Detail: detail}
}

// Validation error de validación asociado a un campo.
func Validation(field, detail string) *Error {
	return &Error{Kind: ErrInvalidInput, Code: CodeValidation, Detail: detail, Field: field}
}

// Conflict error de conflicto con código.
func Conflict(code, detail string) *Error {
	return &Error{Kind: ErrConflict, Code: code, Detail: detail}
}

// ErrDocumentLocked mutación sobre un documento que ya no está en brouillon.
var ErrDocumentLocked = Conflict(CodeDocumentLocked, "le document n'est plus modifiable (statut différent de brouillon)")

// CodeOf devuelve el código de un *Error o "" si err no lo es.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
