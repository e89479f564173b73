package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/billing"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// issuer empresa emisora y sus ajustes, leídos en la transacción del documento.
type issuer struct {
	company  *entity.Company
	settings *entity.CompanySettings
}

func loadIssuer(ctx context.Context, r repository.Repos, companyID string) (*issuer, error) {
	company, err := r.Companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("leer empresa: %w", err)
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}
	settings, err := r.Companies.GetSettings(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("leer ajustes: %w", err)
	}
	return &issuer{company: company, settings: settings}, nil
}

func loadClient(ctx context.Context, r repository.Repos, companyID, clientID string) (*entity.Client, error) {
	c, err := r.Clients.GetByID(ctx, companyID, clientID)
	if err != nil {
		return nil, fmt.Errorf("leer cliente: %w", err)
	}
	if c == nil {
		return nil, domain.Validation("client_id", "client introuvable")
	}
	return c, nil
}

// dateOr fecha de negocio de t o, si es nil, la de now.
func dateOr(t *time.Time, now time.Time) time.Time {
	if t != nil {
		return billing.BusinessDate(*t)
	}
	return billing.BusinessDate(now)
}

func datePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := billing.BusinessDate(*t)
	return &d
}

func addDays(d time.Time, days int) *time.Time {
	out := d.AddDate(0, 0, days)
	return &out
}

func timeEqual(a, b *time.Time) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return a.Equal(*b)
	}
}

func dateValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

func discountEqual(a, b *entity.Discount) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return a.Type == b.Type && a.Value.Equal(b.Value) && a.Label == b.Label
	}
}

func toDocumentFilter(status, clientID string, limit, offset int) repository.DocumentFilter {
	return repository.DocumentFilter{Status: status, ClientID: clientID, Limit: limit, Offset: offset}
}
