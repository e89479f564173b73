package legal

import "github.com/shopspring/decimal"

// =============================================================================
// Catégories d'opération (mention obligatoire depuis la réforme de la facturation électronique)
// =============================================================================

const (
	OperationGoods    = "livraison_biens"
	OperationServices = "prestation_services"
	OperationMixed    = "mixte"
)

// OperationLabels libellés imprimés sur les factures.
var OperationLabels = map[string]string{
	OperationGoods:    "Livraison de biens",
	OperationServices: "Prestation de services",
	OperationMixed:    "Livraison de biens et prestation de services",
}

// =============================================================================
// Formes juridiques usuelles
// =============================================================================

var LegalForms = map[string]bool{
	"EI": true, "EIRL": true, "EURL": true, "SARL": true, "SAS": true, "SASU": true,
	"SA": true, "SNC": true, "SCI": true, "SCOP": true, "Micro-entreprise": true, "Association": true,
}

// =============================================================================
// TVA
// =============================================================================

// DefaultTaxRates taux de TVA applicables en France métropolitaine.
var DefaultTaxRates = []decimal.Decimal{
	decimal.Zero,
	decimal.RequireFromString("2.1"),
	decimal.RequireFromString("5.5"),
	decimal.NewFromInt(10),
	decimal.NewFromInt(20),
}

// AutoEntrepreneurExemption mention de franchise en base de TVA.
const AutoEntrepreneurExemption = "TVA non applicable, art. 293 B du CGI"

// DefaultRecoveryFee indemnité forfaitaire pour frais de recouvrement (art. D441-5 C. com.).
var DefaultRecoveryFee = decimal.NewFromInt(40)

// DefaultLatePenaltyRate taux de pénalités de retard par défaut (3 fois le taux d'intérêt légal, arrondi).
var DefaultLatePenaltyRate = decimal.RequireFromString("12.15")
