package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/domain/billing"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

const (
	maxIPLength        = 45
	maxUserAgentLength = 500
)

// Change valores anterior y nuevo de un campo.
type Change struct {
	Old any
	New any
}

// AuditRecorder escribe el registro de auditoría de facturas con los repositorios de la transacción
// de la mutación: o se confirman los dos o ninguno.
type AuditRecorder struct {
	invoices repository.InvoiceRepository
	actor    *auth.Actor
	meta     auth.RequestMeta
	now      time.Time
}

// NewAuditRecorder construye el registrador para una transacción.
func NewAuditRecorder(r repository.Repos, actor *auth.Actor, meta auth.RequestMeta, now time.Time) *AuditRecorder {
	return &AuditRecorder{invoices: r.Invoices, actor: actor, meta: meta, now: now}
}

// Created registra la creación.
func (a *AuditRecorder) Created(ctx context.Context, inv *entity.Invoice) error {
	desc := fmt.Sprintf("Facture %s créée", inv.Number)
	if inv.IsCreditNote() {
		desc = fmt.Sprintf("Avoir %s créé", inv.Number)
	}
	return a.append(ctx, inv, entity.AuditCreated, "", nil, nil, desc)
}

// FieldUpdates una entrada por campo modificado.
func (a *AuditRecorder) FieldUpdates(ctx context.Context, inv *entity.Invoice, diff map[string]Change) error {
	for _, field := range slices.Sorted(maps.Keys(diff)) {
		c := diff[field]
		desc := fmt.Sprintf("Champ %s modifié", field)
		if err := a.append(ctx, inv, entity.AuditFieldUpdated, field, c.Old, c.New, desc); err != nil {
			return err
		}
	}
	return nil
}

// StatusChanged registra una transición de estado.
func (a *AuditRecorder) StatusChanged(ctx context.Context, inv *entity.Invoice, from, to string) error {
	desc := fmt.Sprintf("Statut modifié de %s à %s", from, to)
	return a.append(ctx, inv, entity.AuditStatusChanged, "status", from, to, desc)
}

// CreditNoteCreated registra el avoir en la factura original y en el propio avoir, con la estrategia de IVA.
func (a *AuditRecorder) CreditNoteCreated(ctx context.Context, orig, credit *entity.Invoice, strategy string) error {
	amount := billing.FormatEuro(credit.CreditAmount.Decimal)
	value := map[string]string{
		"credit_note_id":     credit.ID,
		"credit_note_number": credit.Number,
		"amount":             credit.CreditAmount.Decimal.StringFixed(2),
		"tax_strategy":       strategy,
	}
	origDesc := fmt.Sprintf("Avoir %s de %s émis (TVA : %s)", credit.Number, amount, strategy)
	if err := a.append(ctx, orig, entity.AuditCreditNoteCreated, "", nil, value, origDesc); err != nil {
		return err
	}
	creditDesc := fmt.Sprintf("Avoir de %s sur la facture %s (TVA : %s)", amount, orig.Number, strategy)
	return a.append(ctx, credit, entity.AuditCreditNoteCreated, "", nil, value, creditDesc)
}

// Archived registra el archivado.
func (a *AuditRecorder) Archived(ctx context.Context, inv *entity.Invoice) error {
	return a.append(ctx, inv, entity.AuditArchived, "", nil, nil, fmt.Sprintf("Facture %s archivée", inv.Number))
}

// Deleted registra el borrado lógico.
func (a *AuditRecorder) Deleted(ctx context.Context, inv *entity.Invoice) error {
	return a.append(ctx, inv, entity.AuditDeleted, "", nil, nil, fmt.Sprintf("Facture %s supprimée", inv.Number))
}

// PaymentRecorded registra un pago como actualización del importe cobrado.
func (a *AuditRecorder) PaymentRecorded(ctx context.Context, inv *entity.Invoice, p *entity.Payment, oldPaid string) error {
	desc := fmt.Sprintf("Paiement de %s enregistré", billing.FormatEuro(p.Amount))
	return a.append(ctx, inv, entity.AuditFieldUpdated, "amount_paid", oldPaid, inv.AmountPaid.StringFixed(2), desc)
}

func (a *AuditRecorder) append(ctx context.Context, inv *entity.Invoice, action, field string, oldV, newV any, desc string) error {
	oldJSON, err := marshalValue(oldV)
	if err != nil {
		return err
	}
	newJSON, err := marshalValue(newV)
	if err != nil {
		return err
	}
	entry := &entity.InvoiceAuditLog{
		ID:          uuid.New().String(),
		CompanyID:   inv.CompanyID,
		InvoiceID:   inv.ID,
		Action:      action,
		FieldName:   field,
		OldValue:    oldJSON,
		NewValue:    newJSON,
		Description: desc,
		IPAddress:   truncate(a.meta.IP, maxIPLength),
		UserAgent:   truncate(a.meta.UserAgent, maxUserAgentLength),
		CreatedAt:   a.now,
	}
	if a.actor != nil {
		entry.UserID = a.actor.UserID
	}
	if err := a.invoices.AppendAudit(ctx, entry); err != nil {
		return fmt.Errorf("auditoría %s: %w", action, err)
	}
	return nil
}

func marshalValue(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("auditoría: serializar valor: %w", err)
	}
	return b, nil
}

// truncate corta en n bytes sin partir una runa.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
