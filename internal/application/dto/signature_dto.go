package dto

import "time"

// RequestOTPRequest body para POST /quotes/:id/signature/request-otp.
type RequestOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// RequestOTPResponse confirmación del envío del código.
type RequestOTPResponse struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SubmitSignatureRequest body para POST /quotes/:id/signature/submit.
type SubmitSignatureRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Code       string `json:"code" validate:"required,len=6,numeric"`
	SignerName string `json:"signer_name" validate:"required,max=200"`
	Consent    bool   `json:"consent"`
}

// SignatureResponse firma registrada.
type SignatureResponse struct {
	QuoteID       string    `json:"quote_id"`
	QuoteNumber   string    `json:"quote_number"`
	SignerEmail   string    `json:"signer_email"`
	SignerName    string    `json:"signer_name"`
	SignedAt      time.Time `json:"signed_at"`
	SignatureHash string    `json:"signature_hash"`
	DocumentHash  string    `json:"document_hash"`
}

// Resultados de la verificación.
const (
	VerifyValid     = "valid"
	VerifyTampered  = "tampered"
	VerifyNotSigned = "not_signed"
)

// VerifyResponse resultado de GET /quotes/:id/signature/verify.
type VerifyResponse struct {
	Status               string     `json:"status"`
	StoredDocumentHash   string     `json:"stored_document_hash,omitempty"`
	CurrentDocumentHash  string     `json:"current_document_hash,omitempty"`
	SignatureHashMatches bool       `json:"signature_hash_matches"`
	SignedAt             *time.Time `json:"signed_at,omitempty"`
}

// SignatureEventResponse evento del circuito de firma.
type SignatureEventResponse struct {
	EventType   string    `json:"event_type"`
	Description string    `json:"description"`
	UserEmail   string    `json:"user_email,omitempty"`
	IPAddress   string    `json:"ip_address,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
