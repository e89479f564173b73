// Package limits aplica las cuotas mensuales y las funcionalidades de cada plan.
// Es el único punto de la aplicación que conoce qué incluye cada oferta.
package limits

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/lokario-api/internal/domain/billing"
	"github.com/jhoicas/lokario-api/internal/domain/plan"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// Service consulta la suscripción y cuenta el uso directamente sobre las tablas de dominio.
type Service struct {
	repos repository.Repos
	// Clock reloj inyectable (tests).
	Clock func() time.Time
}

// NewService construye el servicio sobre los repositorios fuera de transacción.
func NewService(repos repository.Repos) *Service {
	return &Service{repos: repos, Clock: time.Now}
}

// MonthStart inicio del mes en curso (hora de París) en que se cuentan las cuotas mensuales.
func MonthStart(now time.Time) time.Time {
	p := now.In(billing.Location)
	return time.Date(p.Year(), p.Month(), 1, 0, 0, 0, 0, billing.Location)
}

// Plan devuelve los límites efectivos del tenant.
func (s *Service) Plan(ctx context.Context, companyID string) (plan.Limits, error) {
	return effective(ctx, s.repos, companyID)
}

// CheckQuota admite o rechaza (quota_exceeded) la creación de un objeto de tipo kind.
func (s *Service) CheckQuota(ctx context.Context, companyID, kind string) error {
	return s.CheckQuotaIn(ctx, s.repos, companyID, kind)
}

// CheckQuotaIn igual que CheckQuota pero con los repositorios de la transacción en curso,
// de modo que el recuento y la inserción ven el mismo estado.
func (s *Service) CheckQuotaIn(ctx context.Context, r repository.Repos, companyID, kind string) error {
	limits, err := effective(ctx, r, companyID)
	if err != nil {
		return err
	}
	if limits.Quota(kind) == plan.Unlimited {
		return nil
	}
	used, err := usage(ctx, r, companyID, kind, MonthStart(s.Clock()))
	if err != nil {
		return err
	}
	return limits.Check(kind, used)
}

// FeatureEnabled informa si el plan del tenant incluye la funcionalidad.
// Devuelve error solo ante fallos de infraestructura.
func (s *Service) FeatureEnabled(ctx context.Context, companyID, feature string) (bool, error) {
	if companyID == "" || feature == "" {
		return false, fmt.Errorf("limits: companyID y feature son obligatorios")
	}
	limits, err := effective(ctx, s.repos, companyID)
	if err != nil {
		return false, err
	}
	return limits.FeatureEnabled(feature), nil
}

// RequireFeature devuelve feature_disabled si el plan no incluye la funcionalidad.
func (s *Service) RequireFeature(ctx context.Context, companyID, feature string) error {
	limits, err := effective(ctx, s.repos, companyID)
	if err != nil {
		return err
	}
	if !limits.FeatureEnabled(feature) {
		return limits.FeatureDenied(feature)
	}
	return nil
}

// Usage uso actual por tipo, para el panel de la empresa.
func (s *Service) Usage(ctx context.Context, companyID string) (map[string]int, error) {
	since := MonthStart(s.Clock())
	out := make(map[string]int, 4)
	for _, kind := range []string{plan.KindQuote, plan.KindInvoice, plan.KindClient, plan.KindFollowUp} {
		n, err := usage(ctx, s.repos, companyID, kind, since)
		if err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, nil
}

func effective(ctx context.Context, r repository.Repos, companyID string) (plan.Limits, error) {
	sub, err := r.Subscriptions.GetByCompany(ctx, companyID)
	if err != nil {
		return plan.Limits{}, fmt.Errorf("leer suscripción: %w", err)
	}
	return plan.Effective(sub), nil
}

// usage los clientes se cuentan en total; el resto desde el inicio del mes.
func usage(ctx context.Context, r repository.Repos, companyID, kind string, since time.Time) (int, error) {
	switch kind {
	case plan.KindQuote:
		return r.Quotes.CountCreatedSince(ctx, companyID, since)
	case plan.KindInvoice:
		return r.Invoices.CountCreatedSince(ctx, companyID, since)
	case plan.KindClient:
		return r.Clients.CountByCompany(ctx, companyID)
	case plan.KindFollowUp:
		return r.FollowUps.CountSentSince(ctx, companyID, since)
	default:
		return 0, fmt.Errorf("limits: tipo desconocido %q", kind)
	}
}
