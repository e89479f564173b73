package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

// InvoiceRepository persistencia de facturas y avoirs. Las lecturas excluyen deleted_at
// salvo IncludingDeleted.
type InvoiceRepository interface {
	// Create inserta la factura y sus líneas. domain.ErrDuplicate si el número ya existe (sin abortar la tx).
	Create(ctx context.Context, inv *entity.Invoice) error
	GetByID(ctx context.Context, companyID, id string, includingDeleted bool) (*entity.Invoice, error)
	Update(ctx context.Context, inv *entity.Invoice) error
	// UpdateStatus persiste status, sent_at, paid_at y amount_paid.
	UpdateStatus(ctx context.Context, inv *entity.Invoice) error
	Archive(ctx context.Context, inv *entity.Invoice) error
	SoftDelete(ctx context.Context, inv *entity.Invoice) error
	List(ctx context.Context, companyID string, f DocumentFilter) ([]*entity.Invoice, int, error)
	NumbersWithPrefix(ctx context.Context, companyID, prefix string) ([]string, error)
	// CreditedTotal suma del TTC de los avoirs no borrados emitidos sobre invoiceID.
	CreditedTotal(ctx context.Context, companyID, invoiceID string) (decimal.Decimal, error)
	// CountCreatedSince facturas (no avoirs) creadas desde since.
	CountCreatedSince(ctx context.Context, companyID string, since time.Time) (int, error)
	// ListOverdueCandidates facturas envoyée/impayée de todos los tenants con due_date < day.
	ListOverdueCandidates(ctx context.Context, day time.Time) ([]*entity.Invoice, error)
	AddPayment(ctx context.Context, p *entity.Payment) error
	ListPayments(ctx context.Context, companyID, invoiceID string) ([]entity.Payment, error)
	// AnonymizeByCompany borra la referencia al cliente y sus datos personales de los snapshots.
	AnonymizeByCompany(ctx context.Context, companyID string) error

	AppendAudit(ctx context.Context, entry *entity.InvoiceAuditLog) error
	ListAudit(ctx context.Context, companyID, invoiceID string) ([]entity.InvoiceAuditLog, error)
}
