package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo facturas y avoirs. Nunca se borran físicamente: SoftDelete y Archive marcan la fila.
type InvoiceRepo struct {
	q Querier
}

const invoiceColumnsInsert = `id, company_id, client_id, quote_id, number, status, invoice_type, original_invoice_id, credit_amount,
	issue_date, sale_date, due_date, payment_terms, late_penalty_rate, recovery_fee, vat_on_debits, vat_exemption_ref,
	operation_category, conditions, notes, seller, client, subtotal_ht, total_tax, total_ttc, discount, lines,
	amount_paid, sent_at, paid_at, deleted_at, deleted_by, archived_at, archived_by, created_by, created_at, updated_at`

const invoiceColumns = `id, company_id, COALESCE(client_id::text, ''), COALESCE(quote_id::text, ''), number, status, invoice_type,
	COALESCE(original_invoice_id::text, ''), credit_amount,
	issue_date, sale_date, due_date, payment_terms, late_penalty_rate, recovery_fee, vat_on_debits, vat_exemption_ref,
	operation_category, conditions, notes, seller, client, subtotal_ht, total_tax, total_ttc, discount, lines,
	amount_paid, sent_at, paid_at, deleted_at, deleted_by, archived_at, archived_by, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var i entity.Invoice
	if err := row.Scan(&i.ID, &i.CompanyID, &i.ClientID, &i.QuoteID, &i.Number, &i.Status, &i.InvoiceType,
		&i.OriginalInvoiceID, &i.CreditAmount,
		&i.IssueDate, &i.SaleDate, &i.DueDate, &i.PaymentTerms, &i.LatePenaltyRate, &i.RecoveryFee, &i.VATOnDebits, &i.VATExemptionRef,
		&i.OperationCategory, &i.Conditions, &i.Notes, &i.Seller, &i.Client, &i.SubtotalHT, &i.TotalTax, &i.TotalTTC, &i.Discount, &i.Lines,
		&i.AmountPaid, &i.SentAt, &i.PaidAt, &i.DeletedAt, &i.DeletedBy, &i.ArchivedAt, &i.ArchivedBy, &i.CreatedBy, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *InvoiceRepo) Create(ctx context.Context, i *entity.Invoice) error {
	return savepoint(ctx, r.q, func(sp Querier) error {
		_, err := sp.Exec(ctx, `INSERT INTO invoices (`+invoiceColumnsInsert+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,
				$28,$29,$30,$31,$32,$33,$34,$35,$36,$37)`,
			i.ID, i.CompanyID, nullIfEmpty(i.ClientID), nullIfEmpty(i.QuoteID), i.Number, i.Status, i.InvoiceType,
			nullIfEmpty(i.OriginalInvoiceID), i.CreditAmount,
			i.IssueDate, i.SaleDate, i.DueDate, i.PaymentTerms, i.LatePenaltyRate, i.RecoveryFee, i.VATOnDebits, i.VATExemptionRef,
			i.OperationCategory, i.Conditions, i.Notes, i.Seller, i.Client, i.SubtotalHT, i.TotalTax, i.TotalTTC, i.Discount, linesOrEmpty(i.Lines),
			i.AmountPaid, i.SentAt, i.PaidAt, i.DeletedAt, i.DeletedBy, i.ArchivedAt, i.ArchivedBy, i.CreatedBy, i.CreatedAt, i.UpdatedAt)
		return wrap("insert invoice", err)
	})
}

func (r *InvoiceRepo) GetByID(ctx context.Context, companyID, id string, includingDeleted bool) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE company_id = $1 AND id = $2`
	if !includingDeleted {
		query += ` AND deleted_at IS NULL`
	}
	return one(r.q.QueryRow(ctx, query, companyID, id), "get invoice", scanInvoice)
}

func (r *InvoiceRepo) Update(ctx context.Context, i *entity.Invoice) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE invoices SET client_id=$3, issue_date=$4, sale_date=$5, due_date=$6, payment_terms=$7, late_penalty_rate=$8,
			recovery_fee=$9, vat_on_debits=$10, vat_exemption_ref=$11, operation_category=$12, conditions=$13, notes=$14,
			seller=$15, client=$16, subtotal_ht=$17, total_tax=$18, total_ttc=$19, discount=$20, lines=$21, updated_at=$22
		WHERE company_id = $1 AND id = $2 AND deleted_at IS NULL`,
		i.CompanyID, i.ID, nullIfEmpty(i.ClientID), i.IssueDate, i.SaleDate, i.DueDate, i.PaymentTerms, i.LatePenaltyRate,
		i.RecoveryFee, i.VATOnDebits, i.VATExemptionRef, i.OperationCategory, i.Conditions, i.Notes,
		i.Seller, i.Client, i.SubtotalHT, i.TotalTax, i.TotalTTC, i.Discount, linesOrEmpty(i.Lines), i.UpdatedAt)
	return affected(tag, err, "update invoice")
}

func (r *InvoiceRepo) UpdateStatus(ctx context.Context, i *entity.Invoice) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE invoices SET status=$3, sent_at=$4, paid_at=$5, amount_paid=$6, updated_at=$7
		WHERE company_id = $1 AND id = $2`,
		i.CompanyID, i.ID, i.Status, i.SentAt, i.PaidAt, i.AmountPaid, i.UpdatedAt)
	return affected(tag, err, "update invoice status")
}

func (r *InvoiceRepo) Archive(ctx context.Context, i *entity.Invoice) error {
	tag, err := r.q.Exec(ctx, `UPDATE invoices SET archived_at=$3, archived_by=$4 WHERE company_id = $1 AND id = $2`,
		i.CompanyID, i.ID, i.ArchivedAt, i.ArchivedBy)
	return affected(tag, err, "archive invoice")
}

func (r *InvoiceRepo) SoftDelete(ctx context.Context, i *entity.Invoice) error {
	tag, err := r.q.Exec(ctx, `UPDATE invoices SET deleted_at=$3, deleted_by=$4 WHERE company_id = $1 AND id = $2`,
		i.CompanyID, i.ID, i.DeletedAt, i.DeletedBy)
	return affected(tag, err, "delete invoice")
}

func (r *InvoiceRepo) List(ctx context.Context, companyID string, f repository.DocumentFilter) ([]*entity.Invoice, int, error) {
	w := &where{}
	w.add("company_id = ?", companyID)
	if !f.IncludingDeleted {
		w.raw("deleted_at IS NULL")
	}
	if !f.IncludeArchived {
		w.raw("archived_at IS NULL")
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.ClientID != "" {
		w.add("client_id = ?", f.ClientID)
	}
	if f.InvoiceType != "" {
		w.add("invoice_type = ?", f.InvoiceType)
	}
	if f.From != nil {
		w.add("issue_date >= ?", *f.From)
	}
	if f.To != nil {
		w.add("issue_date <= ?", *f.To)
	}
	total, err := count(ctx, r.q, "count invoices", `SELECT count(*) FROM invoices`+w.sql(), w.args...)
	if err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices` + w.sql() + ` ORDER BY created_at DESC` + w.page(f.Limit, f.Offset)
	rows, err := r.q.Query(ctx, query, w.args...)
	list, err := collect(rows, err, "list invoices", scanInvoice)
	return list, total, err
}

func (r *InvoiceRepo) NumbersWithPrefix(ctx context.Context, companyID, prefix string) ([]string, error) {
	return numbersWithPrefix(ctx, r.q, "invoices", companyID, prefix)
}

func (r *InvoiceRepo) CreditedTotal(ctx context.Context, companyID, invoiceID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(sum(total_ttc), 0) FROM invoices
		WHERE company_id = $1 AND original_invoice_id = $2 AND invoice_type = $3 AND deleted_at IS NULL`,
		companyID, invoiceID, entity.InvoiceTypeCreditNote).Scan(&total)
	if err != nil {
		return decimal.Zero, wrap("credited total", err)
	}
	return total, nil
}

func (r *InvoiceRepo) CountCreatedSince(ctx context.Context, companyID string, since time.Time) (int, error) {
	return count(ctx, r.q, "count invoices",
		`SELECT count(*) FROM invoices WHERE company_id = $1 AND invoice_type = $2 AND created_at >= $3`,
		companyID, entity.InvoiceTypeInvoice, since)
}

func (r *InvoiceRepo) ListOverdueCandidates(ctx context.Context, day time.Time) ([]*entity.Invoice, error) {
	rows, err := r.q.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
		WHERE deleted_at IS NULL AND invoice_type = $1 AND due_date IS NOT NULL AND status IN ($2, $3) AND due_date < $4
		ORDER BY due_date`,
		entity.InvoiceTypeInvoice, entity.InvoiceStatusSent, entity.InvoiceStatusUnpaid, day)
	return collect(rows, err, "list overdue invoices", scanInvoice)
}

func (r *InvoiceRepo) AddPayment(ctx context.Context, p *entity.Payment) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO invoice_payments (id, company_id, invoice_id, amount, paid_at, method, reference, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.CompanyID, p.InvoiceID, p.Amount, p.PaidAt, p.Method, p.Reference, p.CreatedBy, p.CreatedAt)
	return wrap("insert payment", err)
}

func (r *InvoiceRepo) ListPayments(ctx context.Context, companyID, invoiceID string) ([]entity.Payment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, company_id, invoice_id, amount, paid_at, method, reference, created_by, created_at
		FROM invoice_payments WHERE company_id = $1 AND invoice_id = $2 ORDER BY paid_at, created_at`, companyID, invoiceID)
	if err != nil {
		return nil, wrap("list payments", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.Payment, error) {
		var p entity.Payment
		err := row.Scan(&p.ID, &p.CompanyID, &p.InvoiceID, &p.Amount, &p.PaidAt, &p.Method, &p.Reference, &p.CreatedBy, &p.CreatedAt)
		return p, err
	})
	return out, wrap("list payments", err)
}

// AnonymizeByCompany conserva las facturas (obligación de archivo) sin datos personales del cliente.
func (r *InvoiceRepo) AnonymizeByCompany(ctx context.Context, companyID string) error {
	_, err := r.q.Exec(ctx, `UPDATE invoices SET client_id = NULL, client = $2 WHERE company_id = $1`,
		companyID, entity.PartySnapshot{Name: "Client anonymisé"})
	return wrap("anonymize invoices", err)
}

func (r *InvoiceRepo) AppendAudit(ctx context.Context, e *entity.InvoiceAuditLog) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO invoice_audit_logs (id, company_id, invoice_id, user_id, action, field_name, old_value, new_value,
			description, ip_address, user_agent, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		e.ID, e.CompanyID, e.InvoiceID, e.UserID, e.Action, e.FieldName, jsonOrNil(e.OldValue), jsonOrNil(e.NewValue),
		e.Description, e.IPAddress, e.UserAgent, e.CreatedAt)
	return wrap("insert invoice audit", err)
}

func (r *InvoiceRepo) ListAudit(ctx context.Context, companyID, invoiceID string) ([]entity.InvoiceAuditLog, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, company_id, invoice_id, user_id, action, field_name, old_value::text, new_value::text,
			description, ip_address, user_agent, created_at
		FROM invoice_audit_logs WHERE company_id = $1 AND invoice_id = $2 ORDER BY created_at, id`, companyID, invoiceID)
	if err != nil {
		return nil, wrap("list invoice audit", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.InvoiceAuditLog, error) {
		var (
			e        entity.InvoiceAuditLog
			oldValue, newValue *string
		)
		err := row.Scan(&e.ID, &e.CompanyID, &e.InvoiceID, &e.UserID, &e.Action, &e.FieldName, &oldValue, &newValue,
			&e.Description, &e.IPAddress, &e.UserAgent, &e.CreatedAt)
		if oldValue != nil {
			e.OldValue = []byte(*oldValue)
		}
		if newValue != nil {
			e.NewValue = []byte(*newValue)
		}
		return e, err
	})
	return out, wrap("list invoice audit", err)
}

// jsonOrNil texto JSON ya serializado; NULL si está vacío.
func jsonOrNil(raw []byte) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}
