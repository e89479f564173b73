package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// LineRequest línea enviada por el cliente. Los importes derivados se recalculan siempre en servidor.
type LineRequest struct {
	Description string          `json:"description" validate:"required,max=2000"`
	Unit        string          `json:"unit" validate:"omitempty,max=20"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPriceHT decimal.Decimal `json:"unit_price_ht"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// DiscountRequest remise globale.
type DiscountRequest struct {
	Type  string          `json:"type" validate:"required,oneof=percentage fixed"`
	Value decimal.Decimal `json:"value"`
	Label string          `json:"label" validate:"omitempty,max=100"`
}

// LineResponse línea con sus tres importes derivados.
type LineResponse struct {
	ID          string          `json:"id"`
	Position    int             `json:"position"`
	Description string          `json:"description"`
	Unit        string          `json:"unit,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPriceHT decimal.Decimal `json:"unit_price_ht"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	SubtotalHT  decimal.Decimal `json:"subtotal_ht"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	TotalTTC    decimal.Decimal `json:"total_ttc"`
}

// DiscountResponse remise con su importe calculado.
type DiscountResponse struct {
	Type   string          `json:"type"`
	Value  decimal.Decimal `json:"value"`
	Label  string          `json:"label,omitempty"`
	Amount decimal.Decimal `json:"amount"`
}

// PartyResponse datos congelados del vendedor o del cliente.
type PartyResponse struct {
	Name            string `json:"name"`
	Address         string `json:"address,omitempty"`
	DeliveryAddress string `json:"delivery_address,omitempty"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Siren           string `json:"siren,omitempty"`
	Siret           string `json:"siret,omitempty"`
	VATNumber       string `json:"vat_number,omitempty"`
	RCS             string `json:"rcs,omitempty"`
	LegalForm       string `json:"legal_form,omitempty"`
	Capital         string `json:"capital,omitempty"`
}

// ── Devis ────────────────────────────────────────────────────────────────────

// CreateQuoteRequest body para POST /quotes.
type CreateQuoteRequest struct {
	ClientID   string           `json:"client_id" validate:"required"`
	IssueDate  *time.Time       `json:"issue_date"`
	ExpiryDate *time.Time       `json:"expiry_date"`
	Conditions string           `json:"conditions" validate:"omitempty,max=5000"`
	Notes      string           `json:"notes" validate:"omitempty,max=5000"`
	Discount   *DiscountRequest `json:"discount"`
	Lines      []LineRequest    `json:"lines" validate:"dive"`
}

// UpdateQuoteRequest body para PATCH /quotes/:id (campos opcionales; Lines nil = sin cambios).
type UpdateQuoteRequest struct {
	ClientID       *string          `json:"client_id"`
	IssueDate      *time.Time       `json:"issue_date"`
	ExpiryDate     *time.Time       `json:"expiry_date"`
	Conditions     *string          `json:"conditions" validate:"omitempty,max=5000"`
	Notes          *string          `json:"notes" validate:"omitempty,max=5000"`
	Discount       *DiscountRequest `json:"discount"`
	RemoveDiscount bool             `json:"remove_discount"`
	Lines          []LineRequest    `json:"lines" validate:"omitempty,dive"`
}

// QuoteResponse devis completo.
type QuoteResponse struct {
	ID         string            `json:"id"`
	Number     string            `json:"number"`
	Status     string            `json:"status"`
	ClientID   string            `json:"client_id"`
	IssueDate  time.Time         `json:"issue_date"`
	ExpiryDate *time.Time        `json:"expiry_date,omitempty"`
	Conditions string            `json:"conditions,omitempty"`
	Notes      string            `json:"notes,omitempty"`
	Seller     PartyResponse     `json:"seller"`
	Client     PartyResponse     `json:"client"`
	SubtotalHT decimal.Decimal   `json:"subtotal_ht"`
	TotalTax   decimal.Decimal   `json:"total_tax"`
	TotalTTC   decimal.Decimal   `json:"total_ttc"`
	Discount   *DiscountResponse `json:"discount,omitempty"`
	Lines      []LineResponse    `json:"lines"`
	SentAt     *time.Time        `json:"sent_at,omitempty"`
	AcceptedAt *time.Time        `json:"accepted_at,omitempty"`
	RefusedAt  *time.Time        `json:"refused_at,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// QuoteListResponse lista paginada de devis.
type QuoteListResponse struct {
	Items []QuoteResponse `json:"items"`
	Page  PageResponse    `json:"page"`
}

// ── Factures ─────────────────────────────────────────────────────────────────

// CreateInvoiceRequest body para POST /invoices. Sin líneas pero con QuoteID se copian las del devis.
type CreateInvoiceRequest struct {
	ClientID          string           `json:"client_id" validate:"required"`
	QuoteID           string           `json:"quote_id"`
	IssueDate         *time.Time       `json:"issue_date"`
	SaleDate          *time.Time       `json:"sale_date"`
	DueDate           *time.Time       `json:"due_date"`
	PaymentTerms      string           `json:"payment_terms" validate:"omitempty,max=500"`
	LatePenaltyRate   *decimal.Decimal `json:"late_penalty_rate"`
	RecoveryFee       *decimal.Decimal `json:"recovery_fee"`
	VATOnDebits       bool             `json:"vat_on_debits"`
	VATExemptionRef   string           `json:"vat_exemption_ref" validate:"omitempty,max=200"`
	OperationCategory string           `json:"operation_category" validate:"omitempty,oneof=livraison_biens prestation_services mixte"`
	DeliveryAddress   string           `json:"delivery_address" validate:"omitempty,max=500"`
	Conditions        string           `json:"conditions" validate:"omitempty,max=5000"`
	Notes             string           `json:"notes" validate:"omitempty,max=5000"`
	Discount          *DiscountRequest `json:"discount"`
	Lines             []LineRequest    `json:"lines" validate:"dive"`
}

// UpdateInvoiceRequest body para PATCH /invoices/:id (solo brouillon).
type UpdateInvoiceRequest struct {
	ClientID          *string          `json:"client_id"`
	IssueDate         *time.Time       `json:"issue_date"`
	SaleDate          *time.Time       `json:"sale_date"`
	DueDate           *time.Time       `json:"due_date"`
	PaymentTerms      *string          `json:"payment_terms" validate:"omitempty,max=500"`
	LatePenaltyRate   *decimal.Decimal `json:"late_penalty_rate"`
	RecoveryFee       *decimal.Decimal `json:"recovery_fee"`
	VATOnDebits       *bool            `json:"vat_on_debits"`
	VATExemptionRef   *string          `json:"vat_exemption_ref" validate:"omitempty,max=200"`
	OperationCategory *string          `json:"operation_category" validate:"omitempty,oneof=livraison_biens prestation_services mixte"`
	Conditions        *string          `json:"conditions" validate:"omitempty,max=5000"`
	Notes             *string          `json:"notes" validate:"omitempty,max=5000"`
	Discount          *DiscountRequest `json:"discount"`
	RemoveDiscount    bool             `json:"remove_discount"`
	Lines             []LineRequest    `json:"lines" validate:"omitempty,dive"`
}

// InvoiceResponse factura o avoir.
type InvoiceResponse struct {
	ID                string            `json:"id"`
	Number            string            `json:"number"`
	Status            string            `json:"status"`
	InvoiceType       string            `json:"invoice_type"`
	ClientID          string            `json:"client_id,omitempty"`
	QuoteID           string            `json:"quote_id,omitempty"`
	OriginalInvoiceID string            `json:"original_invoice_id,omitempty"`
	CreditAmount      *decimal.Decimal  `json:"credit_amount,omitempty"`
	IssueDate         time.Time         `json:"issue_date"`
	SaleDate          *time.Time        `json:"sale_date,omitempty"`
	DueDate           *time.Time        `json:"due_date,omitempty"`
	PaymentTerms      string            `json:"payment_terms,omitempty"`
	LatePenaltyRate   decimal.Decimal   `json:"late_penalty_rate"`
	RecoveryFee       decimal.Decimal   `json:"recovery_fee"`
	VATOnDebits       bool              `json:"vat_on_debits"`
	VATExemptionRef   string            `json:"vat_exemption_ref,omitempty"`
	OperationCategory string            `json:"operation_category,omitempty"`
	Conditions        string            `json:"conditions,omitempty"`
	Notes             string            `json:"notes,omitempty"`
	Seller            PartyResponse     `json:"seller"`
	Client            PartyResponse     `json:"client"`
	SubtotalHT        decimal.Decimal   `json:"subtotal_ht"`
	TotalTax          decimal.Decimal   `json:"total_tax"`
	TotalTTC          decimal.Decimal   `json:"total_ttc"`
	AmountPaid        decimal.Decimal   `json:"amount_paid"`
	Balance           decimal.Decimal   `json:"balance"`
	Discount          *DiscountResponse `json:"discount,omitempty"`
	Lines             []LineResponse    `json:"lines"`
	SentAt            *time.Time        `json:"sent_at,omitempty"`
	PaidAt            *time.Time        `json:"paid_at,omitempty"`
	ArchivedAt        *time.Time        `json:"archived_at,omitempty"`
	DeletedAt         *time.Time        `json:"deleted_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// InvoiceListResponse lista paginada de facturas.
type InvoiceListResponse struct {
	Items []InvoiceResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}

// InvoiceFilter filtros de GET /invoices (query string).
type InvoiceFilter struct {
	Status           string     `query:"status"`
	ClientID         string     `query:"client_id"`
	InvoiceType      string     `query:"invoice_type" validate:"omitempty,oneof=facture avoir"`
	From             *time.Time `query:"-"`
	To               *time.Time `query:"-"`
	IncludingDeleted bool       `query:"including_deleted"`
	IncludeArchived  bool       `query:"include_archived"`
}

// CreditNoteRequest body para POST /invoices/:id/credit-note.
type CreditNoteRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" validate:"omitempty,max=500"`
}

// PaymentRequest body para POST /invoices/:id/payments.
type PaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    *time.Time      `json:"paid_at"`
	Method    string          `json:"method" validate:"omitempty,oneof=virement chèque carte espèces prélèvement autre"`
	Reference string          `json:"reference" validate:"omitempty,max=100"`
}

// PaymentResponse pago registrado.
type PaymentResponse struct {
	ID        string          `json:"id"`
	InvoiceID string          `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paid_at"`
	Method    string          `json:"method,omitempty"`
	Reference string          `json:"reference,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditLogResponse entrada del registro de auditoría de una factura.
type AuditLogResponse struct {
	ID          string          `json:"id"`
	Action      string          `json:"action"`
	FieldName   string          `json:"field_name,omitempty"`
	OldValue    json.RawMessage `json:"old_value,omitempty"`
	NewValue    json.RawMessage `json:"new_value,omitempty"`
	Description string          `json:"description"`
	UserID      string          `json:"user_id,omitempty"`
	IPAddress   string          `json:"ip_address,omitempty"`
	UserAgent   string          `json:"user_agent,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
