package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// UpdateCompanyRequest entrada para actualizar la empresa (campos opcionales).
type UpdateCompanyRequest struct {
	Name               *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Sector             *string          `json:"sector" validate:"omitempty,max=100"`
	Siren              *string          `json:"siren" validate:"omitempty,max=11"`
	Siret              *string          `json:"siret" validate:"omitempty,max=17"`
	VATNumber          *string          `json:"vat_number" validate:"omitempty,max=20"`
	RCS                *string          `json:"rcs" validate:"omitempty,max=100"`
	LegalForm          *string          `json:"legal_form" validate:"omitempty,max=50"`
	Capital            *decimal.Decimal `json:"capital"`
	Address            *string          `json:"address" validate:"omitempty,max=300"`
	PostalCode         *string          `json:"postal_code" validate:"omitempty,max=10"`
	City               *string          `json:"city" validate:"omitempty,max=100"`
	Country            *string          `json:"country" validate:"omitempty,max=100"`
	Email              *string          `json:"email" validate:"omitempty,email"`
	Phone              *string          `json:"phone" validate:"omitempty,max=30"`
	LogoPath           *string          `json:"logo_path" validate:"omitempty,max=500"`
	StampPath          *string          `json:"stamp_path" validate:"omitempty,max=500"`
	IsAutoEntrepreneur *bool            `json:"is_auto_entrepreneur"`
	VATExempt          *bool            `json:"vat_exempt"`
	VATExemptionRef    *string          `json:"vat_exemption_ref" validate:"omitempty,max=200"`
}

// CompanyResponse salida de la empresa con su plan efectivo.
type CompanyResponse struct {
	ID                 string          `json:"id"`
	Code               string          `json:"code"`
	Name               string          `json:"name"`
	Sector             string          `json:"sector,omitempty"`
	Siren              string          `json:"siren,omitempty"`
	Siret              string          `json:"siret,omitempty"`
	VATNumber          string          `json:"vat_number,omitempty"`
	RCS                string          `json:"rcs,omitempty"`
	LegalForm          string          `json:"legal_form,omitempty"`
	Capital            decimal.Decimal `json:"capital"`
	Address            string          `json:"address,omitempty"`
	PostalCode         string          `json:"postal_code,omitempty"`
	City               string          `json:"city,omitempty"`
	Country            string          `json:"country,omitempty"`
	Email              string          `json:"email,omitempty"`
	Phone              string          `json:"phone,omitempty"`
	LogoPath           string          `json:"logo_path,omitempty"`
	StampPath          string          `json:"stamp_path,omitempty"`
	IsAutoEntrepreneur bool            `json:"is_auto_entrepreneur"`
	VATExempt          bool            `json:"vat_exempt"`
	VATExemptionRef    string          `json:"vat_exemption_ref,omitempty"`
	IsActive           bool            `json:"is_active"`
	Plan               PlanResponse    `json:"plan"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// PlanResponse plan efectivo, cuotas (-1 = ilimitado) y uso del mes.
type PlanResponse struct {
	Name               string          `json:"name"`
	DisplayName        string          `json:"display_name"`
	SubscriptionStatus string          `json:"subscription_status,omitempty"`
	TrialEndsAt        *time.Time      `json:"trial_ends_at,omitempty"`
	Quotas             map[string]int  `json:"quotas"`
	Usage              map[string]int  `json:"usage"`
	Features           map[string]bool `json:"features"`
}

// NumberingRequest formato de numeración {prefix}{sep}{year}{sep}{seq}[{sep}{suffix}].
type NumberingRequest struct {
	Prefix      string `json:"prefix" validate:"required,max=10"`
	Separator   string `json:"separator" validate:"max=3"`
	YearFormat  string `json:"year_format" validate:"oneof=YY YYYY"`
	Padding     int    `json:"padding" validate:"min=1,max=10"`
	StartNumber int    `json:"start_number" validate:"min=1"`
	Suffix      string `json:"suffix" validate:"omitempty,max=10"`
}

// BillingSettingsRequest parámetros de facturación; los campos ausentes no cambian.
type BillingSettingsRequest struct {
	AllowedTaxRates       []decimal.Decimal `json:"allowed_tax_rates" validate:"omitempty,min=1,max=10"`
	QuoteNumbering        *NumberingRequest `json:"quote_numbering"`
	InvoiceNumbering      *NumberingRequest `json:"invoice_numbering"`
	CreditNoteNumbering   *NumberingRequest `json:"credit_note_numbering"`
	DefaultPaymentTerms   *string           `json:"default_payment_terms" validate:"omitempty,max=500"`
	DefaultDueDays        *int              `json:"default_due_days" validate:"omitempty,min=0,max=365"`
	LatePenaltyRate       *decimal.Decimal  `json:"late_penalty_rate"`
	RecoveryFee           *decimal.Decimal  `json:"recovery_fee"`
	QuoteValidityDays     *int              `json:"quote_validity_days" validate:"omitempty,min=1,max=365"`
	CreditNoteTaxStrategy *string           `json:"credit_note_tax_strategy" validate:"omitempty,oneof=zero_tax mirror_rates"`
}

// FollowUpSettingsRequest configuración de relances; los campos ausentes no cambian.
type FollowUpSettingsRequest struct {
	MaxRelances      *int              `json:"max_relances" validate:"omitempty,min=1,max=20"`
	RelanceDelays    []int             `json:"relance_delays" validate:"omitempty,max=20,dive,min=1,max=365"`
	InitialDelayDays *int              `json:"initial_delay_days" validate:"omitempty,min=1,max=365"`
	RelanceMethods   []string          `json:"relance_methods" validate:"omitempty,max=20,dive,oneof=email sms whatsapp"`
	Templates        map[string]string `json:"templates" validate:"omitempty,dive,max=5000"`
}

// InboxSettingsRequest ajustes de la bandeja.
type InboxSettingsRequest struct {
	CompanyKnowledge *string `json:"company_knowledge" validate:"omitempty,max=20000"`
	SignatureText    *string `json:"signature_text" validate:"omitempty,max=2000"`
}

// UpdateSettingsRequest body para PATCH /companies/me/settings.
type UpdateSettingsRequest struct {
	Billing   *BillingSettingsRequest  `json:"billing"`
	FollowUps *FollowUpSettingsRequest `json:"followups"`
	Inbox     *InboxSettingsRequest    `json:"inbox"`
}

// BillingSettingsResponse parámetros de facturación vigentes.
type BillingSettingsResponse struct {
	AllowedTaxRates       []decimal.Decimal `json:"allowed_tax_rates"`
	QuoteNumbering        NumberingRequest  `json:"quote_numbering"`
	InvoiceNumbering      NumberingRequest  `json:"invoice_numbering"`
	CreditNoteNumbering   NumberingRequest  `json:"credit_note_numbering"`
	DefaultPaymentTerms   string            `json:"default_payment_terms"`
	DefaultDueDays        int               `json:"default_due_days"`
	LatePenaltyRate       decimal.Decimal   `json:"late_penalty_rate"`
	RecoveryFee           decimal.Decimal   `json:"recovery_fee"`
	QuoteValidityDays     int               `json:"quote_validity_days"`
	CreditNoteTaxStrategy string            `json:"credit_note_tax_strategy"`
}

// FollowUpSettingsResponse configuración de relances vigente.
type FollowUpSettingsResponse struct {
	MaxRelances      int               `json:"max_relances"`
	RelanceDelays    []int             `json:"relance_delays"`
	InitialDelayDays int               `json:"initial_delay_days"`
	RelanceMethods   []string          `json:"relance_methods"`
	Templates        map[string]string `json:"templates"`
}

// InboxSettingsResponse ajustes de la bandeja vigentes.
type InboxSettingsResponse struct {
	CompanyKnowledge string `json:"company_knowledge"`
	SignatureText    string `json:"signature_text"`
}

// SettingsResponse GET /companies/me/settings.
type SettingsResponse struct {
	Billing   BillingSettingsResponse  `json:"billing"`
	FollowUps FollowUpSettingsResponse `json:"followups"`
	Inbox     InboxSettingsResponse    `json:"inbox"`
	UpdatedAt time.Time                `json:"updated_at"`
}
