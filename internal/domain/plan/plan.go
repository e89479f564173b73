// Package plan define la política de límites por plan de suscripción.
package plan

import (
	"fmt"

	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

// Recursos con cuota mensual (clients es un total, no mensual).
const (
	KindQuote    = "quotes"
	KindInvoice  = "invoices"
	KindClient   = "clients"
	KindFollowUp = "followups"
)

// Funcionalidades por encima del estándar.
const (
	FeatureAppointments    = "appointments"
	FeatureInbox           = "inbox"
	FeatureExcelExport     = "excel_export"
	FeatureCustomBranding  = "custom_branding"
	FeatureAPIAccess       = "api_access"
	FeatureAdvancedReports = "advanced_reports"
)

// Unlimited cuota sin límite.
const Unlimited = -1

// Limits fila de la tabla de planes.
type Limits struct {
	Plan        string
	DisplayName string
	Quotas      map[string]int
	Features    map[string]bool
	AllFeatures bool
}

var professionalFeatures = map[string]bool{
	FeatureAppointments:    true,
	FeatureInbox:           true,
	FeatureExcelExport:     true,
	FeatureCustomBranding:  true,
	FeatureAPIAccess:       true,
	FeatureAdvancedReports: true,
}

var table = map[string]Limits{
	entity.PlanStarter: {
		Plan:        entity.PlanStarter,
		DisplayName: "Essentiel",
		Quotas:      map[string]int{KindQuote: 20, KindInvoice: 20, KindClient: 50, KindFollowUp: 20},
		Features:    map[string]bool{},
	},
	entity.PlanProfessional: {
		Plan:        entity.PlanProfessional,
		DisplayName: "Pro",
		Quotas:      map[string]int{KindQuote: Unlimited, KindInvoice: Unlimited, KindClient: Unlimited, KindFollowUp: Unlimited},
		Features:    professionalFeatures,
	},
	entity.PlanEnterprise: {
		Plan:        entity.PlanEnterprise,
		DisplayName: "Entreprise",
		Quotas:      map[string]int{KindQuote: Unlimited, KindInvoice: Unlimited, KindClient: Unlimited, KindFollowUp: Unlimited},
		AllFeatures: true,
	},
}

// For devuelve los límites de un plan; un plan desconocido se trata como starter.
func For(name string) Limits {
	if l, ok := table[name]; ok {
		return l
	}
	return table[entity.PlanStarter]
}

// Effective plan aplicable a una suscripción. Sin suscripción, cancelada o impagada: starter.
// Un trial (incluido a importe cero) hereda el plan elegido al registrarse.
func Effective(sub *entity.Subscription) Limits {
	if sub == nil {
		return For(entity.PlanStarter)
	}
	switch sub.Status {
	case entity.SubscriptionCanceled, entity.SubscriptionUnpaid:
		return For(entity.PlanStarter)
	}
	return For(sub.Plan)
}

// Quota límite para kind; Unlimited si no hay.
func (l Limits) Quota(kind string) int {
	if q, ok := l.Quotas[kind]; ok {
		return q
	}
	return Unlimited
}

// FeatureEnabled indica si el plan incluye la funcionalidad.
func (l Limits) FeatureEnabled(name string) bool {
	return l.AllFeatures || l.Features[name]
}

var kindLabels = map[string]string{
	KindQuote:    "devis par mois",
	KindInvoice:  "factures par mois",
	KindClient:   "clients",
	KindFollowUp: "relances par mois",
}

// Check compara el uso actual con la cuota. Devuelve quota_exceeded (409) al alcanzar el límite.
func (l Limits) Check(kind string, used int) error {
	limit := l.Quota(kind)
	if limit == Unlimited || used < limit {
		return nil
	}
	return domain.NewError(domain.ErrConflict, domain.CodeQuotaExceeded,
		fmt.Sprintf("limite de %d %s atteinte pour l'offre %s. Passez à l'offre Pro pour continuer.",
			limit, kindLabels[kind], l.DisplayName))
}

// FeatureDenied error de funcionalidad no incluida.
func (l Limits) FeatureDenied(name string) error {
	return domain.NewError(domain.ErrForbidden, domain.CodeFeatureDisabled,
		fmt.Sprintf("la fonctionnalité %q n'est pas incluse dans l'offre %s", name, l.DisplayName))
}
