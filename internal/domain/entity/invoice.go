package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de factura.
const (
	InvoiceStatusDraft     = "brouillon"
	InvoiceStatusSent      = "envoyée"
	InvoiceStatusPaid      = "payée"
	InvoiceStatusUnpaid    = "impayée"
	InvoiceStatusOverdue   = "en_retard"
	InvoiceStatusCancelled = "annulée"
)

// Tipos de factura.
const (
	InvoiceTypeInvoice    = "facture"
	InvoiceTypeCreditNote = "avoir"
)

// Invoice factura o avoir. Un avoir referencia la factura original y nunca es modificable.
type Invoice struct {
	ID                string
	CompanyID         string
	ClientID          string // vacío cuando el cliente fue purgado (factura anonimizada)
	QuoteID           string
	Number            string
	Status            string
	InvoiceType       string
	OriginalInvoiceID string
	CreditAmount      decimal.NullDecimal
	IssueDate         time.Time
	SaleDate          *time.Time
	DueDate           *time.Time
	PaymentTerms      string
	LatePenaltyRate   decimal.Decimal
	RecoveryFee       decimal.Decimal
	VATOnDebits       bool
	VATExemptionRef   string
	OperationCategory string
	Conditions        string
	Notes             string
	Seller            PartySnapshot
	Client            PartySnapshot
	SubtotalHT        decimal.Decimal
	TotalTax          decimal.Decimal
	TotalTTC          decimal.Decimal
	Discount          *Discount
	Lines             []Line
	AmountPaid        decimal.Decimal // suma de pagos (derivado)
	SentAt            *time.Time
	PaidAt            *time.Time
	DeletedAt         *time.Time
	DeletedBy         string
	ArchivedAt        *time.Time
	ArchivedBy        string
	CreatedBy         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsCreditNote indica si es un avoir.
func (i *Invoice) IsCreditNote() bool {
	return i.InvoiceType == InvoiceTypeCreditNote
}

// ApplyTotals copia los totales calculados.
func (i *Invoice) ApplyTotals(t Totals) {
	i.SubtotalHT = t.SubtotalHT
	i.TotalTax = t.TotalTax
	i.TotalTTC = t.TotalTTC
}

// Balance importe pendiente.
func (i *Invoice) Balance() decimal.Decimal {
	b := i.TotalTTC.Sub(i.AmountPaid)
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}

// Payment pago registrado sobre una factura.
type Payment struct {
	ID        string
	CompanyID string
	InvoiceID string
	Amount    decimal.Decimal
	PaidAt    time.Time
	Method    string // virement, chèque, carte, espèces
	Reference string
	CreatedBy string
	CreatedAt time.Time
}

// Acciones del registro de auditoría de facturas.
const (
	AuditCreated           = "created"
	AuditFieldUpdated      = "field_updated"
	AuditStatusChanged     = "status_changed"
	AuditCreditNoteCreated = "credit_note_created"
	AuditArchived          = "archived"
	AuditDeleted           = "deleted"
)

// InvoiceAuditLog registro append-only; OldValue/NewValue son JSON.
type InvoiceAuditLog struct {
	ID          string
	CompanyID   string
	InvoiceID   string
	UserID      string
	Action      string
	FieldName   string
	OldValue    []byte
	NewValue    []byte
	Description string
	IPAddress   string
	UserAgent   string
	CreatedAt   time.Time
}
