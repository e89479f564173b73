package entity

import "github.com/shopspring/decimal"

// Tipos de remise.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// PartySnapshot datos del vendedor o del cliente congelados en el documento.
type PartySnapshot struct {
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

// Discount remise globale sur le document.
type Discount struct {
	Type  string          `json:"type"`
	Value decimal.Decimal `json:"value"`
	Label string          `json:"label,omitempty"`
}

// Line línea de devis o de facture (misma forma). Los tres importes derivados se
// calculan en billing.ComputeLine y nunca se aceptan del cliente.
type Line struct {
	ID          string
	DocumentID  string
	Position    int
	Description string
	Unit        string
	Quantity    decimal.Decimal // 3 decimales
	UnitPriceHT decimal.Decimal
	TaxRate     decimal.Decimal // porcentaje: 20 = 20 %
	SubtotalHT  decimal.Decimal
	TaxAmount   decimal.Decimal
	TotalTTC    decimal.Decimal
}

// Totals agregados de un documento.
type Totals struct {
	SubtotalHT             decimal.Decimal
	TotalTax               decimal.Decimal
	TotalTTCBeforeDiscount decimal.Decimal
	DiscountAmount         decimal.Decimal
	TotalTTC               decimal.Decimal
}
