package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/billing"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// InsertFunc inserta el documento con el número propuesto. Debe devolver domain.ErrDuplicate
// ante colisión de (company_id, number) sin abortar la transacción.
type InsertFunc func(number string) error

// AllocateNumber asigna el siguiente número de kind para el año de now (hora de París) e inserta
// el documento. Ante colisión reintenta con el siguiente; tras MaxAllocationAttempts usa el número
// de emergencia prefix-year-<ms mod 10000>.
func AllocateNumber(
	ctx context.Context,
	r repository.Repos,
	companyID, kind string,
	cfg entity.NumberingConfig,
	now time.Time,
	insert InsertFunc,
) (string, error) {
	year := now.In(billing.Location).Year()
	prefix := billing.NumberPrefix(cfg, year)

	var (
		existing []string
		err      error
	)
	if kind == entity.NumberingQuote {
		existing, err = r.Quotes.NumbersWithPrefix(ctx, companyID, prefix)
	} else {
		existing, err = r.Invoices.NumbersWithPrefix(ctx, companyID, prefix)
	}
	if err != nil {
		return "", fmt.Errorf("numeración: leer existentes: %w", err)
	}

	next := billing.NextSequence(cfg, year, existing)
	for attempt := 0; attempt < billing.MaxAllocationAttempts; attempt++ {
		number := billing.FormatNumber(cfg, year, next+attempt)
		err := insert(number)
		if err == nil {
			return number, nil
		}
		if !errors.Is(err, domain.ErrDuplicate) {
			return "", err
		}
	}

	number := billing.FallbackNumber(cfg, year, now)
	if err := insert(number); err != nil {
		return "", fmt.Errorf("numeración: número de emergencia %s: %w", number, err)
	}
	return number, nil
}
