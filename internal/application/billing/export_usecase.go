package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/limits"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/plan"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// exportPageSize tamaño de página al recorrer las facturas del tenant.
const exportPageSize = 500

// InvoiceSheetWriter serializa un listado de facturas como hoja de cálculo.
type InvoiceSheetWriter interface {
	WriteInvoices(invoices []*entity.Invoice) ([]byte, error)
}

// ExportUseCase exportación xlsx de facturas (funcionalidad excel_export del plan).
type ExportUseCase struct {
	repos  repository.Repos
	limits *limits.Service
	writer InvoiceSheetWriter
	log    zerolog.Logger
	Clock  func() time.Time
}

// NewExportUseCase construye el caso de uso.
func NewExportUseCase(repos repository.Repos, lim *limits.Service, writer InvoiceSheetWriter, log zerolog.Logger) *ExportUseCase {
	return &ExportUseCase{repos: repos, limits: lim, writer: writer, log: log, Clock: time.Now}
}

// Invoices devuelve el fichero y su nombre. Aplica los mismos filtros que el listado.
func (uc *ExportUseCase) Invoices(ctx context.Context, actor *auth.Actor, f dto.InvoiceFilter) ([]byte, string, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, "", err
	}
	if err := uc.limits.RequireFeature(ctx, companyID, plan.FeatureExcelExport); err != nil {
		return nil, "", err
	}

	var all []*entity.Invoice
	for offset := 0; ; offset += exportPageSize {
		batch, total, err := uc.repos.Invoices.List(ctx, companyID, toInvoiceFilter(f, exportPageSize, offset))
		if err != nil {
			return nil, "", err
		}
		all = append(all, batch...)
		if len(batch) < exportPageSize || len(all) >= total {
			break
		}
	}

	out, err := uc.writer.WriteInvoices(all)
	if err != nil {
		return nil, "", fmt.Errorf("export: %w", err)
	}
	uc.log.Info().Str("company_id", companyID).Int("rows", len(all)).Msg("export factures")
	return out, fmt.Sprintf("factures-%s.xlsx", uc.Clock().Format("2006-01-02")), nil
}
