package memstore

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

type quoteRepo struct{ s *Store }

func cloneQuote(q entity.Quote) *entity.Quote {
	q.Lines = copyLines(q.Lines)
	if q.Discount != nil {
		d := *q.Discount
		q.Discount = &d
	}
	return &q
}

func (r quoteRepo) Create(_ context.Context, q *entity.Quote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.quotes {
		if e.CompanyID == q.CompanyID && e.Number == q.Number {
			return domain.ErrDuplicate
		}
	}
	r.s.quotes[q.ID] = *cloneQuote(*q)
	return nil
}

func (r quoteRepo) GetByID(_ context.Context, companyID, id string) (*entity.Quote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.quotes[id]
	if !ok || q.CompanyID != companyID {
		return nil, nil
	}
	return cloneQuote(q), nil
}

func (r quoteRepo) GetPublic(_ context.Context, id string) (*entity.Quote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.quotes[id]
	if !ok {
		return nil, nil
	}
	return cloneQuote(q), nil
}

func (r quoteRepo) Update(_ context.Context, q *entity.Quote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.quotes[q.ID]; !ok || e.CompanyID != q.CompanyID {
		return domain.ErrNotFound
	}
	r.s.quotes[q.ID] = *cloneQuote(*q)
	return nil
}

func (r quoteRepo) UpdateStatus(_ context.Context, q *entity.Quote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.quotes[q.ID]
	if !ok || e.CompanyID != q.CompanyID {
		return domain.ErrNotFound
	}
	e.Status, e.SentAt, e.AcceptedAt, e.RefusedAt, e.UpdatedAt = q.Status, q.SentAt, q.AcceptedAt, q.RefusedAt, q.UpdatedAt
	r.s.quotes[q.ID] = e
	return nil
}

func (r quoteRepo) Delete(_ context.Context, companyID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.quotes[id]; !ok || e.CompanyID != companyID {
		return domain.ErrNotFound
	}
	delete(r.s.quotes, id)
	return nil
}

func (r quoteRepo) List(_ context.Context, companyID string, f repository.DocumentFilter) ([]*entity.Quote, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Quote
	for _, q := range r.s.quotes {
		if q.CompanyID != companyID || (f.Status != "" && q.Status != f.Status) || (f.ClientID != "" && q.ClientID != f.ClientID) {
			continue
		}
		out = append(out, cloneQuote(q))
	}
	sortByCreated(out, func(q *entity.Quote) int64 { return q.CreatedAt.UnixNano() })
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (r quoteRepo) NumbersWithPrefix(_ context.Context, companyID, prefix string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []string
	for _, q := range r.s.quotes {
		if q.CompanyID == companyID && strings.HasPrefix(q.Number, prefix) {
			out = append(out, q.Number)
		}
	}
	return out, nil
}

func (r quoteRepo) CountCreatedSince(_ context.Context, companyID string, since time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, q := range r.s.quotes {
		if q.CompanyID == companyID && !q.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r quoteRepo) ListSentExpiringBefore(_ context.Context, day time.Time) ([]*entity.Quote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Quote
	for _, q := range r.s.quotes {
		if q.Status == entity.QuoteStatusSent && q.ExpiryDate != nil && q.ExpiryDate.Before(day) {
			out = append(out, cloneQuote(q))
		}
	}
	return out, nil
}

func (r quoteRepo) DeleteByCompany(_ context.Context, companyID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, q := range r.s.quotes {
		if q.CompanyID == companyID {
			delete(r.s.quotes, id)
		}
	}
	return nil
}

type signatureRepo struct{ s *Store }

func (r signatureRepo) CreateSignature(_ context.Context, sig *entity.QuoteSignature) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.signatures[sig.QuoteID]; ok {
		return domain.ErrDuplicate
	}
	r.s.signatures[sig.QuoteID] = *sig
	return nil
}

func (r signatureRepo) GetSignature(_ context.Context, quoteID string) (*entity.QuoteSignature, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sig, ok := r.s.signatures[quoteID]
	if !ok {
		return nil, nil
	}
	return &sig, nil
}

func (r signatureRepo) CreateOTP(_ context.Context, otp *entity.QuoteOTP) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.otps = append(r.s.otps, *otp)
	return nil
}

func (r signatureRepo) InvalidateActiveOTPs(_ context.Context, quoteID, email string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.otps {
		o := &r.s.otps[i]
		if o.QuoteID == quoteID && o.Email == email && o.UsedAt == nil && o.InvalidatedAt == nil {
			t := now
			o.InvalidatedAt = &t
		}
	}
	return nil
}

func (r signatureRepo) GetLatestOTP(_ context.Context, quoteID, email string) (*entity.QuoteOTP, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := len(r.s.otps) - 1; i >= 0; i-- {
		o := r.s.otps[i]
		if o.QuoteID == quoteID && o.Email == email && o.UsedAt == nil && o.InvalidatedAt == nil {
			return &o, nil
		}
	}
	return nil, nil
}

func (r signatureRepo) UpdateOTP(_ context.Context, otp *entity.QuoteOTP) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.otps {
		if r.s.otps[i].ID == otp.ID {
			r.s.otps[i] = *otp
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r signatureRepo) CountOTPsSince(_ context.Context, quoteID, email string, since time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, o := range r.s.otps {
		if o.QuoteID == quoteID && o.Email == email && !o.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r signatureRepo) AppendAudit(_ context.Context, e *entity.QuoteSignatureAuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sigAudit = append(r.s.sigAudit, *e)
	return nil
}

func (r signatureRepo) ListAudit(_ context.Context, quoteID string) ([]entity.QuoteSignatureAuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.QuoteSignatureAuditLog
	for _, e := range r.s.sigAudit {
		if e.QuoteID == quoteID {
			out = append(out, e)
		}
	}
	return out, nil
}

type invoiceRepo struct{ s *Store }

func cloneInvoice(i entity.Invoice) *entity.Invoice {
	i.Lines = copyLines(i.Lines)
	if i.Discount != nil {
		d := *i.Discount
		i.Discount = &d
	}
	return &i
}

func (r invoiceRepo) Create(_ context.Context, inv *entity.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.invoices {
		if e.CompanyID == inv.CompanyID && e.Number == inv.Number {
			return domain.ErrDuplicate
		}
	}
	r.s.invoices[inv.ID] = *cloneInvoice(*inv)
	return nil
}

func (r invoiceRepo) GetByID(_ context.Context, companyID, id string, includingDeleted bool) (*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok || inv.CompanyID != companyID || (inv.DeletedAt != nil && !includingDeleted) {
		return nil, nil
	}
	return cloneInvoice(inv), nil
}

func (r invoiceRepo) update(id, companyID string, fn func(e *entity.Invoice)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.invoices[id]
	if !ok || e.CompanyID != companyID {
		return domain.ErrNotFound
	}
	fn(&e)
	r.s.invoices[id] = e
	return nil
}

func (r invoiceRepo) Update(_ context.Context, inv *entity.Invoice) error {
	c := cloneInvoice(*inv)
	return r.update(inv.ID, inv.CompanyID, func(e *entity.Invoice) { *e = *c })
}

func (r invoiceRepo) UpdateStatus(_ context.Context, inv *entity.Invoice) error {
	return r.update(inv.ID, inv.CompanyID, func(e *entity.Invoice) {
		e.Status, e.SentAt, e.PaidAt, e.AmountPaid, e.UpdatedAt = inv.Status, inv.SentAt, inv.PaidAt, inv.AmountPaid, inv.UpdatedAt
	})
}

func (r invoiceRepo) Archive(_ context.Context, inv *entity.Invoice) error {
	return r.update(inv.ID, inv.CompanyID, func(e *entity.Invoice) { e.ArchivedAt, e.ArchivedBy = inv.ArchivedAt, inv.ArchivedBy })
}

func (r invoiceRepo) SoftDelete(_ context.Context, inv *entity.Invoice) error {
	return r.update(inv.ID, inv.CompanyID, func(e *entity.Invoice) { e.DeletedAt, e.DeletedBy = inv.DeletedAt, inv.DeletedBy })
}

func (r invoiceRepo) List(_ context.Context, companyID string, f repository.DocumentFilter) ([]*entity.Invoice, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range r.s.invoices {
		switch {
		case inv.CompanyID != companyID,
			inv.DeletedAt != nil && !f.IncludingDeleted,
			inv.ArchivedAt != nil && !f.IncludeArchived,
			f.Status != "" && inv.Status != f.Status,
			f.ClientID != "" && inv.ClientID != f.ClientID,
			f.InvoiceType != "" && inv.InvoiceType != f.InvoiceType,
			f.From != nil && inv.IssueDate.Before(*f.From),
			f.To != nil && inv.IssueDate.After(*f.To):
			continue
		}
		out = append(out, cloneInvoice(inv))
	}
	sortByCreated(out, func(i *entity.Invoice) int64 { return i.CreatedAt.UnixNano() })
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (r invoiceRepo) NumbersWithPrefix(_ context.Context, companyID, prefix string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []string
	for _, inv := range r.s.invoices {
		if inv.CompanyID == companyID && strings.HasPrefix(inv.Number, prefix) {
			out = append(out, inv.Number)
		}
	}
	return out, nil
}

func (r invoiceRepo) CreditedTotal(_ context.Context, companyID, invoiceID string) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := decimal.Zero
	for _, inv := range r.s.invoices {
		if inv.CompanyID == companyID && inv.OriginalInvoiceID == invoiceID && inv.IsCreditNote() && inv.DeletedAt == nil {
			total = total.Add(inv.TotalTTC)
		}
	}
	return total, nil
}

func (r invoiceRepo) CountCreatedSince(_ context.Context, companyID string, since time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, inv := range r.s.invoices {
		if inv.CompanyID == companyID && inv.InvoiceType == entity.InvoiceTypeInvoice && !inv.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r invoiceRepo) ListOverdueCandidates(_ context.Context, day time.Time) ([]*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range r.s.invoices {
		if inv.DeletedAt != nil || inv.InvoiceType != entity.InvoiceTypeInvoice || inv.DueDate == nil {
			continue
		}
		if (inv.Status == entity.InvoiceStatusSent || inv.Status == entity.InvoiceStatusUnpaid) && inv.DueDate.Before(day) {
			out = append(out, cloneInvoice(inv))
		}
	}
	return out, nil
}

func (r invoiceRepo) AddPayment(_ context.Context, p *entity.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.payments = append(r.s.payments, *p)
	return nil
}

func (r invoiceRepo) ListPayments(_ context.Context, companyID, invoiceID string) ([]entity.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.Payment
	for _, p := range r.s.payments {
		if p.CompanyID == companyID && p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r invoiceRepo) AnonymizeByCompany(_ context.Context, companyID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, inv := range r.s.invoices {
		if inv.CompanyID == companyID {
			inv.ClientID = ""
			inv.Client = entity.PartySnapshot{Name: "Client anonymisé"}
			r.s.invoices[id] = inv
		}
	}
	return nil
}

func (r invoiceRepo) AppendAudit(_ context.Context, e *entity.InvoiceAuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.invAudit = append(r.s.invAudit, *e)
	return nil
}

func (r invoiceRepo) ListAudit(_ context.Context, companyID, invoiceID string) ([]entity.InvoiceAuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.InvoiceAuditLog
	for _, e := range r.s.invAudit {
		if e.CompanyID == companyID && e.InvoiceID == invoiceID {
			out = append(out, e)
		}
	}
	return out, nil
}
