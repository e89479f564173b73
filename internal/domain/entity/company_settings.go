package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de numeración.
const (
	NumberingQuote      = "quote"
	NumberingInvoice    = "invoice"
	NumberingCreditNote = "credit_note"
)

// Estrategias de IVA para avoirs.
const (
	CreditNoteTaxZero   = "zero_tax"     // una línea sintética sin IVA
	CreditNoteTaxMirror = "mirror_rates" // reparto proporcional a los tipos de la factura original
)

// NumberingConfig formato {prefix}{sep}{year}{sep}{seq}[{sep}{suffix}].
type NumberingConfig struct {
	Prefix      string `json:"prefix"`
	Separator   string `json:"separator"`
	YearFormat  string `json:"year_format"` // YY | YYYY
	Padding     int    `json:"padding"`
	StartNumber int    `json:"start_number"`
	Suffix      string `json:"suffix,omitempty"`
}

// BillingSettings parámetros de facturación del tenant.
type BillingSettings struct {
	AllowedTaxRates       []decimal.Decimal `json:"allowed_tax_rates"`
	QuoteNumbering        NumberingConfig   `json:"quote_numbering"`
	InvoiceNumbering      NumberingConfig   `json:"invoice_numbering"`
	CreditNoteNumbering   NumberingConfig   `json:"credit_note_numbering"`
	DefaultPaymentTerms   string            `json:"default_payment_terms"`
	DefaultDueDays        int               `json:"default_due_days"`
	LatePenaltyRate       decimal.Decimal   `json:"late_penalty_rate"`
	RecoveryFee           decimal.Decimal   `json:"recovery_fee"`
	QuoteValidityDays     int               `json:"quote_validity_days"`
	CreditNoteTaxStrategy string            `json:"credit_note_tax_strategy"`
}

// FollowUpSettings configuración de relances automáticas.
// Templates: tipo de relance -> plantilla con {client_name}, {source_label}, {amount}, {company_name}, {due_date}.
type FollowUpSettings struct {
	MaxRelances      int               `json:"max_relances"`
	RelanceDelays    []int             `json:"relance_delays"`
	InitialDelayDays int               `json:"initial_delay_days"`
	RelanceMethods   []string          `json:"relance_methods"`
	Templates        map[string]string `json:"templates"`
}

// InboxSettings parámetros de la bandeja.
type InboxSettings struct {
	CompanyKnowledge string `json:"company_knowledge,omitempty"` // texto usado por useCompanyKnowledge
	SignatureText    string `json:"signature_text,omitempty"`
}

// CompanySettings JSON de ajustes por tenant.
type CompanySettings struct {
	CompanyID string           `json:"-"`
	Billing   BillingSettings  `json:"billing"`
	FollowUps FollowUpSettings `json:"followups"`
	Inbox     InboxSettings    `json:"inbox"`
	UpdatedAt time.Time        `json:"-"`
}

// DefaultQuoteNumbering DEV-YYYY-NNN.
func DefaultQuoteNumbering() NumberingConfig {
	return NumberingConfig{Prefix: "DEV", Separator: "-", YearFormat: "YYYY", Padding: 3, StartNumber: 1}
}

// DefaultInvoiceNumbering FAC-YYYY-NNNN.
func DefaultInvoiceNumbering() NumberingConfig {
	return NumberingConfig{Prefix: "FAC", Separator: "-", YearFormat: "YYYY", Padding: 4, StartNumber: 1}
}

// DefaultCreditNoteNumbering AVO-YYYY-NNNN-AVOIR.
func DefaultCreditNoteNumbering() NumberingConfig {
	return NumberingConfig{Prefix: "AVO", Separator: "-", YearFormat: "YYYY", Padding: 4, StartNumber: 1, Suffix: "AVOIR"}
}

// Tipos de relance (etiquetas opacas).
const (
	FollowUpTypeUnpaidInvoice = "Facture impayée"
	FollowUpTypeQuotePending  = "Devis non répondu"
	FollowUpTypeAppointment   = "Rappel rendez-vous"
	FollowUpTypeClientCheckIn = "Relance client"
	FollowUpTypeOther         = "Autre"
)

// DefaultFollowUpTemplates plantillas iniciales de un tenant nuevo.
func DefaultFollowUpTemplates() map[string]string {
	return map[string]string{
		FollowUpTypeUnpaidInvoice: "Bonjour {client_name},\n\nSauf erreur de notre part, la facture {source_label} d'un montant de {amount} € reste impayée. Merci de procéder à son règlement.\n\nCordialement,\n{company_name}",
		FollowUpTypeQuotePending:  "Bonjour {client_name},\n\nAvez-vous pu prendre connaissance de notre devis {source_label} ? Nous restons à votre disposition.\n\nCordialement,\n{company_name}",
		FollowUpTypeAppointment:   "Bonjour {client_name},\n\nNous vous rappelons votre rendez-vous : {source_label}.\n\nCordialement,\n{company_name}",
		FollowUpTypeClientCheckIn: "Bonjour {client_name},\n\nNous revenons vers vous concernant {source_label}.\n\nCordialement,\n{company_name}",
		FollowUpTypeOther:         "Bonjour {client_name},\n\n{source_label}\n\nCordialement,\n{company_name}",
	}
}

// DefaultCompanySettings ajustes de un tenant recién creado.
func DefaultCompanySettings(companyID string) CompanySettings {
	s := CompanySettings{CompanyID: companyID}
	s.Normalize()
	return s
}

// Normalize completa con valores por defecto los campos ausentes del JSON persistido.
func (s *CompanySettings) Normalize() {
	b := &s.Billing
	if len(b.AllowedTaxRates) == 0 {
		b.AllowedTaxRates = []decimal.Decimal{
			decimal.Zero, decimal.RequireFromString("2.1"), decimal.RequireFromString("5.5"),
			decimal.NewFromInt(10), decimal.NewFromInt(20),
		}
	}
	if b.QuoteNumbering.Prefix == "" {
		b.QuoteNumbering = DefaultQuoteNumbering()
	}
	if b.InvoiceNumbering.Prefix == "" {
		b.InvoiceNumbering = DefaultInvoiceNumbering()
	}
	if b.CreditNoteNumbering.Prefix == "" {
		b.CreditNoteNumbering = DefaultCreditNoteNumbering()
	}
	if b.DefaultPaymentTerms == "" {
		b.DefaultPaymentTerms = "Paiement à 30 jours"
	}
	if b.DefaultDueDays == 0 {
		b.DefaultDueDays = 30
	}
	if b.LatePenaltyRate.IsZero() {
		b.LatePenaltyRate = decimal.RequireFromString("12.15")
	}
	if b.RecoveryFee.IsZero() {
		b.RecoveryFee = decimal.NewFromInt(40)
	}
	if b.QuoteValidityDays == 0 {
		b.QuoteValidityDays = 30
	}
	if b.CreditNoteTaxStrategy == "" {
		b.CreditNoteTaxStrategy = CreditNoteTaxZero
	}

	f := &s.FollowUps
	if f.MaxRelances == 0 {
		f.MaxRelances = 3
	}
	if len(f.RelanceDelays) == 0 {
		f.RelanceDelays = []int{7, 14, 21}
	}
	if f.InitialDelayDays == 0 {
		f.InitialDelayDays = 7
	}
	if len(f.RelanceMethods) == 0 {
		f.RelanceMethods = []string{ChannelEmail}
	}
	if f.Templates == nil {
		f.Templates = DefaultFollowUpTemplates()
	}
}

// Numbering devuelve la configuración del tipo pedido.
func (b BillingSettings) Numbering(kind string) NumberingConfig {
	switch kind {
	case NumberingQuote:
		return b.QuoteNumbering
	case NumberingCreditNote:
		return b.CreditNoteNumbering
	default:
		return b.InvoiceNumbering
	}
}
