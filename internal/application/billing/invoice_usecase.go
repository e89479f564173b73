package billing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/limits"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/billing"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/plan"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// InvoiceUseCase facturas y avoirs. Cada mutación escribe su auditoría en la misma transacción.
type InvoiceUseCase struct {
	tx     repository.TxRunner
	repos  repository.Repos
	limits *limits.Service
	log    zerolog.Logger
	Clock  func() time.Time
}

// NewInvoiceUseCase construye el caso de uso.
func NewInvoiceUseCase(tx repository.TxRunner, repos repository.Repos, lim *limits.Service, log zerolog.Logger) *InvoiceUseCase {
	return &InvoiceUseCase{tx: tx, repos: repos, limits: lim, log: log, Clock: time.Now}
}

// Create crea una factura en brouillon. Con QuoteID y sin líneas se copian las del devis.
func (uc *InvoiceUseCase) Create(ctx context.Context, actor *auth.Actor, meta auth.RequestMeta, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	now := uc.Clock()
	var inv *entity.Invoice
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		if err := uc.limits.CheckQuotaIn(ctx, r, companyID, plan.KindInvoice); err != nil {
			return err
		}
		iss, err := loadIssuer(ctx, r, companyID)
		if err != nil {
			return err
		}
		client, err := loadClient(ctx, r, companyID, in.ClientID)
		if err != nil {
			return err
		}

		lineReqs, discountReq := in.Lines, in.Discount
		var quoteDiscount *entity.Discount
		if in.QuoteID != "" {
			q, err := loadQuote(ctx, r, companyID, in.QuoteID)
			if err != nil {
				return err
			}
			if q.Status != entity.QuoteStatusAccepted && q.Status != entity.QuoteStatusSigned {
				return domain.Conflict(domain.CodeWrongState, "seul un devis accepté ou signé peut être facturé")
			}
			if len(lineReqs) == 0 {
				lineReqs = linesFromQuote(q)
				if discountReq == nil {
					quoteDiscount = q.Discount
				}
			}
		}

		id := uuid.New().String()
		discount := toDiscount(discountReq)
		if discount == nil && quoteDiscount != nil {
			d := *quoteDiscount
			discount = &d
		}
		lines, totals, err := buildLines(id, lineReqs, discount, iss.settings)
		if err != nil {
			return err
		}

		b := iss.settings.Billing
		issue := dateOr(in.IssueDate, now)
		due := datePtr(in.DueDate)
		if due == nil {
			due = addDays(issue, b.DefaultDueDays)
		}
		if due.Before(issue) {
			return domain.Validation("due_date", "l'échéance précède la date d'émission")
		}
		clientSnap := client.Snapshot()
		clientSnap.DeliveryAddress = strings.TrimSpace(in.DeliveryAddress)

		inv = &entity.Invoice{
			ID:                id,
			CompanyID:         companyID,
			ClientID:          client.ID,
			QuoteID:           in.QuoteID,
			Status:            entity.InvoiceStatusDraft,
			InvoiceType:       entity.InvoiceTypeInvoice,
			IssueDate:         issue,
			SaleDate:          datePtr(in.SaleDate),
			DueDate:           due,
			PaymentTerms:      firstNonEmpty(in.PaymentTerms, b.DefaultPaymentTerms),
			LatePenaltyRate:   decimalOr(in.LatePenaltyRate, b.LatePenaltyRate),
			RecoveryFee:       decimalOr(in.RecoveryFee, b.RecoveryFee),
			VATOnDebits:       in.VATOnDebits,
			VATExemptionRef:   strings.TrimSpace(in.VATExemptionRef),
			OperationCategory: in.OperationCategory,
			Conditions:        strings.TrimSpace(in.Conditions),
			Notes:             strings.TrimSpace(in.Notes),
			Seller:            iss.company.Snapshot(),
			Client:            clientSnap,
			Discount:          discount,
			Lines:             lines,
			CreatedBy:         actor.UserID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if inv.VATExemptionRef == "" && iss.company.VATExempt {
			inv.VATExemptionRef = iss.company.VATExemptionRef
		}
		inv.ApplyTotals(totals)

		_, err = AllocateNumber(ctx, r, companyID, entity.NumberingInvoice, b.Numbering(entity.NumberingInvoice), now,
			func(number string) error {
				inv.Number = number
				return r.Invoices.Create(ctx, inv)
			})
		if err != nil {
			return err
		}
		return NewAuditRecorder(r, actor, meta, now).Created(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("company_id", companyID).Str("invoice_id", inv.ID).Str("number", inv.Number).Msg("facture créée")
	return ToInvoiceResponse(inv), nil
}

// Get devuelve una factura del tenant; las borradas solo con includingDeleted.
func (uc *InvoiceUseCase) Get(ctx context.Context, actor *auth.Actor, id string, includingDeleted bool) (*dto.InvoiceResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	inv, err := loadInvoice(ctx, uc.repos, companyID, id, includingDeleted)
	if err != nil {
		return nil, err
	}
	return ToInvoiceResponse(inv), nil
}

// Entity devuelve la entidad (renderizado PDF, exportación).
func (uc *InvoiceUseCase) Entity(ctx context.Context, actor *auth.Actor, id string) (*entity.Invoice, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	return loadInvoice(ctx, uc.repos, companyID, id, false)
}

// List listado filtrado; including_deleted es la única vía para ver facturas borradas.
func (uc *InvoiceUseCase) List(ctx context.Context, actor *auth.Actor, f dto.InvoiceFilter, page dto.PageRequest) (*dto.InvoiceListResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	page.DefaultPage()
	list, total, err := uc.repos.Invoices.List(ctx, companyID, toInvoiceFilter(f, page.Limit, page.Offset))
	if err != nil {
		return nil, err
	}
	out := &dto.InvoiceListResponse{
		Items: make([]dto.InvoiceResponse, 0, len(list)),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: total},
	}
	for _, inv := range list {
		out.Items = append(out.Items, *ToInvoiceResponse(inv))
	}
	return out, nil
}

// Update modifica una factura en brouillon y registra una entrada de auditoría por campo cambiado.
func (uc *InvoiceUseCase) Update(ctx context.Context, actor *auth.Actor, meta auth.RequestMeta, id string, in dto.UpdateInvoiceRequest) (*dto.InvoiceResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	var inv *entity.Invoice
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		inv, err = loadInvoice(ctx, r, companyID, id, false)
		if err != nil {
			return err
		}
		if inv.IsCreditNote() {
			return domain.ErrDocumentLocked
		}
		if err := billing.GuardModify(inv.Status); err != nil {
			return err
		}
		iss, err := loadIssuer(ctx, r, companyID)
		if err != nil {
			return err
		}

		diff := map[string]Change{}
		setString := func(field string, dst *string, v *string) {
			if v == nil {
				return
			}
			nv := strings.TrimSpace(*v)
			if nv != *dst {
				diff[field] = Change{Old: *dst, New: nv}
				*dst = nv
			}
		}
		setDate := func(field string, dst **time.Time, v *time.Time) {
			if v == nil {
				return
			}
			nv := datePtr(v)
			if !timeEqual(*dst, nv) {
				diff[field] = Change{Old: dateValue(*dst), New: dateValue(nv)}
				*dst = nv
			}
		}
		setDecimal := func(field string, dst *decimal.Decimal, v *decimal.Decimal) {
			if v == nil || v.Equal(*dst) {
				return
			}
			diff[field] = Change{Old: dst.StringFixed(2), New: v.StringFixed(2)}
			*dst = *v
		}

		if in.ClientID != nil && *in.ClientID != inv.ClientID {
			client, err := loadClient(ctx, r, companyID, *in.ClientID)
			if err != nil {
				return err
			}
			diff["client_id"] = Change{Old: inv.ClientID, New: client.ID}
			snap := client.Snapshot()
			snap.DeliveryAddress = inv.Client.DeliveryAddress
			inv.ClientID, inv.Client = client.ID, snap
		}
		if in.IssueDate != nil {
			issue := billing.BusinessDate(*in.IssueDate)
			if !issue.Equal(inv.IssueDate) {
				diff["issue_date"] = Change{Old: inv.IssueDate.Format("2006-01-02"), New: issue.Format("2006-01-02")}
				inv.IssueDate = issue
			}
		}
		setDate("sale_date", &inv.SaleDate, in.SaleDate)
		setDate("due_date", &inv.DueDate, in.DueDate)
		if inv.DueDate != nil && inv.DueDate.Before(inv.IssueDate) {
			return domain.Validation("due_date", "l'échéance précède la date d'émission")
		}
		setString("payment_terms", &inv.PaymentTerms, in.PaymentTerms)
		setDecimal("late_penalty_rate", &inv.LatePenaltyRate, in.LatePenaltyRate)
		setDecimal("recovery_fee", &inv.RecoveryFee, in.RecoveryFee)
		if in.VATOnDebits != nil && *in.VATOnDebits != inv.VATOnDebits {
			diff["vat_on_debits"] = Change{Old: inv.VATOnDebits, New: *in.VATOnDebits}
			inv.VATOnDebits = *in.VATOnDebits
		}
		setString("vat_exemption_ref", &inv.VATExemptionRef, in.VATExemptionRef)
		setString("operation_category", &inv.OperationCategory, in.OperationCategory)
		setString("conditions", &inv.Conditions, in.Conditions)
		setString("notes", &inv.Notes, in.Notes)

		newDiscount := inv.Discount
		if in.RemoveDiscount {
			newDiscount = nil
		} else if in.Discount != nil {
			newDiscount = toDiscount(in.Discount)
		}
		if !discountEqual(inv.Discount, newDiscount) {
			if err := billing.ValidateDiscount(newDiscount); err != nil {
				return err
			}
			diff["discount"] = Change{Old: inv.Discount, New: newDiscount}
			inv.Discount = newDiscount
		}
		if in.Lines != nil {
			lines, _, err := buildLines(inv.ID, in.Lines, inv.Discount, iss.settings)
			if err != nil {
				return err
			}
			diff["lines"] = Change{Old: len(inv.Lines), New: len(lines)}
			inv.Lines = lines
		}

		oldTTC := inv.TotalTTC
		inv.ApplyTotals(billing.ComputeTotals(inv.Lines, inv.Discount))
		if !oldTTC.Equal(inv.TotalTTC) {
			diff["total_ttc"] = Change{Old: oldTTC.StringFixed(2), New: inv.TotalTTC.StringFixed(2)}
		}
		if len(diff) == 0 {
			return nil
		}
		now := uc.Clock()
		inv.UpdatedAt = now
		if err := r.Invoices.Update(ctx, inv); err != nil {
			return err
		}
		return NewAuditRecorder(r, actor, meta, now).FieldUpdates(ctx, inv, diff)
	})
	if err != nil {
		return nil, err
	}
	return ToInvoiceResponse(inv), nil
}

// Send brouillon -> envoyée.
func (uc *InvoiceUseCase) Send(ctx context.Context, actor *auth.Actor, meta auth.RequestMeta, id string) (*dto.InvoiceResponse, error) {
	return uc.transition(ctx, actor, meta, id, entity.InvoiceStatusSent, func(inv *entity.Invoice, now time.Time) error {
		if err := billing.ValidateSendable(inv.Lines, inv.Discount, inv.SubtotalHT, inv.TotalTax, inv.TotalTTC); err != nil {
			return err
		}
		inv.SentAt = &now
		return nil
	})
}

// Cancel brouillon -> annulée.
func (uc *InvoiceUseCase) Cancel(ctx context.Context, actor *auth.Actor, meta auth.RequestMeta, id string) (*dto.InvoiceResponse, error) {
	return uc.transition(ctx, actor, meta, id, entity.InvoiceStatusCancelled, func(*entity.Invoice, time.Time) error { return nil })
}

func (uc *InvoiceUseCase) transition(
	ctx context.Context, actor *auth.Actor, meta auth.RequestMeta, id, to string,
	apply func(inv *entity.Invoice, now time.Time) error,
) (*dto.InvoiceResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	var inv *entity.Invoice
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		inv, err = loadInvoice(ctx, r, companyID, id, false)
		if err != nil {
			return err
		}
		from := inv.Status
		if err := billing.ValidateInvoiceTransition(from, to); err != nil {
			return err
		}
		now := uc.Clock()
		if err := apply(inv, now); err != nil {
			return err
		}
		inv.Status = to
		inv.UpdatedAt = now
		if err := r.Invoices.UpdateStatus(ctx, inv); err != nil {
			return err
		}
		return NewAuditRecorder(r, actor, meta, now).StatusChanged(ctx, inv, from, to)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("company_id", companyID).Str("invoice_id", inv.ID).Str("status", to).Msg("facture: changement de statut")
	return ToInvoiceResponse(inv), nil
}

// RecordPayment registra un pago; si el total queda cubierto la factura pasa a payée.
func (uc *InvoiceUseCase) RecordPayment(ctx context.Context, actor *auth.Actor, meta auth.RequestMeta, id string, in dto.PaymentRequest) (*dto.PaymentResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, domain.Validation("amount", "le montant du paiement doit être positif")
	}
	var p *entity.Payment
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		inv, err := loadInvoice(ctx, r, companyID, id, false)
		if err != nil {
			return err
		}
		if inv.IsCreditNote() {
			return domain.Conflict(domain.CodeWrongState, "un avoir ne reçoit pas de paiement")
		}
		switch inv.Status {
		case entity.InvoiceStatusSent, entity.InvoiceStatusUnpaid, entity.InvoiceStatusOverdue:
		default:
			return domain.Conflict(domain.CodeWrongState, "la facture n'attend pas de paiement (statut "+inv.Status+")")
		}
		amount := billing.Round2(in.Amount)
		if amount.GreaterThan(inv.Balance()) {
			return domain.Validation("amount", "le montant dépasse le reste à payer ("+billing.FormatEuro(inv.Balance())+")")
		}
		now := uc.Clock()
		p = &entity.Payment{
			ID:        uuid.New().String(),
			CompanyID: companyID,
			InvoiceID: inv.ID,
			Amount:    amount,
			PaidAt:    now,
			Method:    in.Method,
			Reference: strings.TrimSpace(in.Reference),
			CreatedBy: actor.UserID,
			CreatedAt: now,
		}
		if in.PaidAt != nil {
			p.PaidAt = *in.PaidAt
		}
		if err := r.Invoices.AddPayment(ctx, p); err != nil {
			return err
		}

		audit := NewAuditRecorder(r, actor, meta, now)
		oldPaid := inv.AmountPaid.StringFixed(2)
		inv.AmountPaid = inv.AmountPaid.Add(amount)
		inv.UpdatedAt = now
		from := inv.Status
		if billing.IsFullyPaid(inv.TotalTTC, inv.AmountPaid) {
			if err := billing.ValidateInvoiceTransition(from, entity.InvoiceStatusPaid); err != nil {
				return err
			}
			inv.Status = entity.InvoiceStatusPaid
			inv.PaidAt = &p.PaidAt
		}
		if err := r.Invoices.UpdateStatus(ctx, inv); err != nil {
			return err
		}
		if err := audit.PaymentRecorded(ctx, inv, p, oldPaid); err != nil {
			return err
		}
		if inv.Status != from {
			return audit.StatusChanged(ctx, inv, from, inv.Status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toPaymentResponse(p), nil
}

// ListPayments pagos de una factura.
func (uc *InvoiceUseCase) ListPayments(ctx context.Context, actor *auth.Actor, id string) ([]dto.PaymentResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	if _, err := loadInvoice(ctx, uc.repos, companyID, id, true); err != nil {
		return nil, err
	}
	list, err := uc.repos.Invoices.ListPayments(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PaymentResponse, 0, len(list))
	for i := range list {
		out = append(out, *toPaymentResponse(&list[i]))
	}
	return out, nil
}

// Archive oculta la factura de los listados por defecto sin borrarla.
func (uc *InvoiceUseCase) Archive(ctx context.Context, actor *auth.Actor, meta auth.RequestMeta, id string) (*dto.InvoiceResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	var inv *entity.Invoice
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		inv, err = loadInvoice(ctx, r, companyID, id, false)
		if err != nil {
			return err
		}
		if inv.ArchivedAt != nil {
			return domain.Conflict(domain.CodeWrongState, "la facture est déjà archivée")
		}
		now := uc.Clock()
		inv.ArchivedAt, inv.ArchivedBy = &now, actor.UserID
		if err := r.Invoices.Archive(ctx, inv); err != nil {
			return err
		}
		return NewAuditRecorder(r, actor, meta, now).Archived(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return ToInvoiceResponse(inv), nil
}

// Delete borrado lógico; solo brouillon.
func (uc *InvoiceUseCase) Delete(ctx context.Context, actor *auth.Actor, meta auth.RequestMeta, id string) error {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return err
	}
	return uc.tx.Run(ctx, func(r repository.Repos) error {
		inv, err := loadInvoice(ctx, r, companyID, id, false)
		if err != nil {
			return err
		}
		if inv.IsCreditNote() {
			return domain.ErrDocumentLocked
		}
		if err := billing.GuardModify(inv.Status); err != nil {
			return err
		}
		now := uc.Clock()
		inv.DeletedAt, inv.DeletedBy = &now, actor.UserID
		if err := r.Invoices.SoftDelete(ctx, inv); err != nil {
			return err
		}
		return NewAuditRecorder(r, actor, meta, now).Deleted(ctx, inv)
	})
}

// CreateCreditNote emite un avoir sobre una factura envoyée, payée o en_retard. La estrategia de IVA
// (zero_tax o mirror_rates) sale de los ajustes del tenant y queda en la auditoría de ambas facturas.
func (uc *InvoiceUseCase) CreateCreditNote(ctx context.Context, actor *auth.Actor, meta auth.RequestMeta, id string, in dto.CreditNoteRequest) (*dto.InvoiceResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	var credit *entity.Invoice
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		orig, err := loadInvoice(ctx, r, companyID, id, false)
		if err != nil {
			return err
		}
		amount := billing.Round2(in.Amount)
		credited, err := r.Invoices.CreditedTotal(ctx, companyID, orig.ID)
		if err != nil {
			return err
		}
		if err := billing.ValidateCreditNote(orig, amount, credited); err != nil {
			return err
		}
		iss, err := loadIssuer(ctx, r, companyID)
		if err != nil {
			return err
		}
		strategy := iss.settings.Billing.CreditNoteTaxStrategy
		now := uc.Clock()
		creditID := uuid.New().String()

		lines := billing.CreditNoteLines(orig, amount, strategy)
		for i := range lines {
			lines[i].ID = uuid.New().String()
			lines[i].DocumentID = creditID
		}
		totals := billing.ComputeTotals(lines, nil)

		notes := strings.TrimSpace(in.Reason)
		credit = &entity.Invoice{
			ID:                creditID,
			CompanyID:         companyID,
			ClientID:          orig.ClientID,
			Status:            entity.InvoiceStatusSent,
			InvoiceType:       entity.InvoiceTypeCreditNote,
			OriginalInvoiceID: orig.ID,
			CreditAmount:      decimal.NewNullDecimal(amount),
			IssueDate:         billing.BusinessDate(now),
			PaymentTerms:      orig.PaymentTerms,
			VATExemptionRef:   orig.VATExemptionRef,
			OperationCategory: orig.OperationCategory,
			Notes:             notes,
			Seller:            orig.Seller,
			Client:            orig.Client,
			Lines:             lines,
			SentAt:            &now,
			CreatedBy:         actor.UserID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		credit.ApplyTotals(totals)

		_, err = AllocateNumber(ctx, r, companyID, entity.NumberingCreditNote, iss.settings.Billing.Numbering(entity.NumberingCreditNote), now,
			func(number string) error {
				credit.Number = number
				return r.Invoices.Create(ctx, credit)
			})
		if err != nil {
			return err
		}
		audit := NewAuditRecorder(r, actor, meta, now)
		if err := audit.Created(ctx, credit); err != nil {
			return err
		}
		return audit.CreditNoteCreated(ctx, orig, credit, strategy)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("company_id", companyID).Str("invoice_id", id).Str("credit_note", credit.Number).Msg("avoir émis")
	return ToInvoiceResponse(credit), nil
}

// AuditLogs registro de auditoría de una factura (también de las borradas).
func (uc *InvoiceUseCase) AuditLogs(ctx context.Context, actor *auth.Actor, id string) ([]dto.AuditLogResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	if _, err := loadInvoice(ctx, uc.repos, companyID, id, true); err != nil {
		return nil, err
	}
	entries, err := uc.repos.Invoices.ListAudit(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	return ToAuditLogResponses(entries), nil
}

// MarkOverdue pasa a en_retard las facturas envoyée/impayée cuya échéance es anterior al día de now.
// Cada cambio se audita sin usuario. Devuelve las facturas afectadas.
func (uc *InvoiceUseCase) MarkOverdue(ctx context.Context, now time.Time) ([]*entity.Invoice, error) {
	candidates, err := uc.repos.Invoices.ListOverdueCandidates(ctx, billing.BusinessDate(now))
	if err != nil {
		return nil, err
	}
	var marked []*entity.Invoice
	for _, inv := range candidates {
		if !billing.InvoiceShouldBeOverdue(inv, now) {
			continue
		}
		err := uc.tx.Run(ctx, func(r repository.Repos) error {
			from := inv.Status
			inv.Status = entity.InvoiceStatusOverdue
			inv.UpdatedAt = now
			if err := r.Invoices.UpdateStatus(ctx, inv); err != nil {
				return err
			}
			return NewAuditRecorder(r, nil, auth.RequestMeta{}, now).StatusChanged(ctx, inv, from, inv.Status)
		})
		if err != nil {
			return marked, err
		}
		marked = append(marked, inv)
	}
	return marked, nil
}

func loadInvoice(ctx context.Context, r repository.Repos, companyID, id string, includingDeleted bool) (*entity.Invoice, error) {
	inv, err := r.Invoices.GetByID(ctx, companyID, id, includingDeleted)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	return inv, nil
}

func linesFromQuote(q *entity.Quote) []dto.LineRequest {
	out := make([]dto.LineRequest, 0, len(q.Lines))
	for _, l := range q.Lines {
		out = append(out, dto.LineRequest{
			Description: l.Description,
			Unit:        l.Unit,
			Quantity:    l.Quantity,
			UnitPriceHT: l.UnitPriceHT,
			TaxRate:     l.TaxRate,
		})
	}
	return out
}

func toInvoiceFilter(f dto.InvoiceFilter, limit, offset int) repository.DocumentFilter {
	return repository.DocumentFilter{
		Status:           f.Status,
		ClientID:         f.ClientID,
		InvoiceType:      f.InvoiceType,
		From:             f.From,
		To:               f.To,
		IncludingDeleted: f.IncludingDeleted,
		IncludeArchived:  f.IncludeArchived,
		Limit:            limit,
		Offset:           offset,
	}
}

func toPaymentResponse(p *entity.Payment) *dto.PaymentResponse {
	return &dto.PaymentResponse{
		ID:        p.ID,
		InvoiceID: p.InvoiceID,
		Amount:    p.Amount,
		PaidAt:    p.PaidAt,
		Method:    p.Method,
		Reference: p.Reference,
		CreatedAt: p.CreatedAt,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func decimalOr(v *decimal.Decimal, def decimal.Decimal) decimal.Decimal {
	if v == nil {
		return def
	}
	return *v
}
