package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de devis.
const (
	QuoteStatusDraft    = "brouillon"
	QuoteStatusSent     = "envoyé"
	QuoteStatusAccepted = "accepté"
	QuoteStatusRefused  = "refusé"
	QuoteStatusExpired  = "expiré"
	QuoteStatusSigned   = "signé"
)

// Quote devis. Number es único por (CompanyID, Number).
type Quote struct {
	ID         string
	CompanyID  string
	ClientID   string
	Number     string
	Status     string
	IssueDate  time.Time
	ExpiryDate *time.Time
	Conditions string
	Notes      string
	Seller     PartySnapshot
	Client     PartySnapshot
	SubtotalHT decimal.Decimal
	TotalTax   decimal.Decimal
	TotalTTC   decimal.Decimal
	Discount   *Discount
	Lines      []Line
	SentAt     *time.Time
	AcceptedAt *time.Time
	RefusedAt  *time.Time
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ApplyTotals copia los totales calculados.
func (q *Quote) ApplyTotals(t Totals) {
	q.SubtotalHT = t.SubtotalHT
	q.TotalTax = t.TotalTax
	q.TotalTTC = t.TotalTTC
}

// QuoteSignature a lo sumo una por devis; inmutable tras su creación.
type QuoteSignature struct {
	ID                 string
	QuoteID            string
	CompanyID          string
	SignerEmail        string
	SignerName         string
	SignatureHash      string // hex
	DocumentHashBefore string // hex, calculado antes de pasar a signé
	SignedAt           time.Time
	IPAddress          string
	UserAgent          string
	Consent            bool
	ConsentText        string
	Metadata           map[string]any
	CreatedAt          time.Time
}

// QuoteOTP código de un solo uso ligado a (devis, email). Solo se guarda el hash del código.
type QuoteOTP struct {
	ID            string
	QuoteID       string
	Email         string
	CodeHash      string
	ExpiresAt     time.Time
	Attempts      int
	UsedAt        *time.Time
	InvalidatedAt *time.Time
	CreatedAt     time.Time
}

// Active indica si el OTP sigue utilizable en now (expira exactamente en ExpiresAt).
func (o *QuoteOTP) Active(now time.Time) bool {
	return o.UsedAt == nil && o.InvalidatedAt == nil && now.Before(o.ExpiresAt)
}

// Eventos del registro de firma.
const (
	SignatureEventRequestedOTP = "requested_otp"
	SignatureEventOTPValidated = "otp_validated"
	SignatureEventOTPFailed    = "otp_failed"
	SignatureEventViewed       = "viewed"
	SignatureEventSigned       = "signed"
	SignatureEventDownload     = "download"
)

// QuoteSignatureAuditLog registro append-only del circuito de firma.
type QuoteSignatureAuditLog struct {
	ID          string
	QuoteID     string
	CompanyID   string
	EventType   string
	Description string
	UserEmail   string
	UserID      string
	IPAddress   string
	UserAgent   string
	CreatedAt   time.Time
}
