package billing

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/domain/billing"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

// buildLines convierte las líneas de entrada, valida tipos de IVA y cantidades y calcula los totales.
// Los importes enviados por el cliente se ignoran.
func buildLines(documentID string, in []dto.LineRequest, discount *entity.Discount, settings *entity.CompanySettings) ([]entity.Line, entity.Totals, error) {
	lines := make([]entity.Line, 0, len(in))
	for i, l := range in {
		lines = append(lines, entity.Line{
			ID:          uuid.New().String(),
			DocumentID:  documentID,
			Position:    i + 1,
			Description: strings.TrimSpace(l.Description),
			Unit:        l.Unit,
			Quantity:    l.Quantity,
			UnitPriceHT: l.UnitPriceHT,
			TaxRate:     l.TaxRate,
		})
	}
	if err := billing.ValidateLines(lines, settings.Billing.AllowedTaxRates); err != nil {
		return nil, entity.Totals{}, err
	}
	if err := billing.ValidateDiscount(discount); err != nil {
		return nil, entity.Totals{}, err
	}
	totals := billing.ComputeTotals(lines, discount)
	return lines, totals, nil
}

func toDiscount(in *dto.DiscountRequest) *entity.Discount {
	if in == nil {
		return nil
	}
	return &entity.Discount{Type: in.Type, Value: in.Value, Label: strings.TrimSpace(in.Label)}
}

func toLineResponses(lines []entity.Line) []dto.LineResponse {
	out := make([]dto.LineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, dto.LineResponse{
			ID:          l.ID,
			Position:    l.Position,
			Description: l.Description,
			Unit:        l.Unit,
			Quantity:    l.Quantity,
			UnitPriceHT: l.UnitPriceHT,
			TaxRate:     l.TaxRate,
			SubtotalHT:  l.SubtotalHT,
			TaxAmount:   l.TaxAmount,
			TotalTTC:    l.TotalTTC,
		})
	}
	return out
}

func toDiscountResponse(d *entity.Discount, lines []entity.Line) *dto.DiscountResponse {
	if d == nil {
		return nil
	}
	var before decimal.Decimal
	for _, l := range lines {
		before = before.Add(l.TotalTTC)
	}
	return &dto.DiscountResponse{
		Type:   d.Type,
		Value:  d.Value,
		Label:  d.Label,
		Amount: billing.DiscountAmount(before, d),
	}
}

func toParty(p entity.PartySnapshot) dto.PartyResponse {
	return dto.PartyResponse{
		Name:            p.Name,
		Address:         p.Address,
		DeliveryAddress: p.DeliveryAddress,
		Email:           p.Email,
		Phone:           p.Phone,
		Siren:           p.Siren,
		Siret:           p.Siret,
		VATNumber:       p.VATNumber,
		RCS:             p.RCS,
		LegalForm:       p.LegalForm,
		Capital:         p.Capital,
	}
}

// ToQuoteResponse entidad -> DTO.
func ToQuoteResponse(q *entity.Quote) *dto.QuoteResponse {
	if q == nil {
		return nil
	}
	return &dto.QuoteResponse{
		ID:         q.ID,
		Number:     q.Number,
		Status:     q.Status,
		ClientID:   q.ClientID,
		IssueDate:  q.IssueDate,
		ExpiryDate: q.ExpiryDate,
		Conditions: q.Conditions,
		Notes:      q.Notes,
		Seller:     toParty(q.Seller),
		Client:     toParty(q.Client),
		SubtotalHT: q.SubtotalHT,
		TotalTax:   q.TotalTax,
		TotalTTC:   q.TotalTTC,
		Discount:   toDiscountResponse(q.Discount, q.Lines),
		Lines:      toLineResponses(q.Lines),
		SentAt:     q.SentAt,
		AcceptedAt: q.AcceptedAt,
		RefusedAt:  q.RefusedAt,
		CreatedAt:  q.CreatedAt,
		UpdatedAt:  q.UpdatedAt,
	}
}

// ToInvoiceResponse entidad -> DTO.
func ToInvoiceResponse(inv *entity.Invoice) *dto.InvoiceResponse {
	if inv == nil {
		return nil
	}
	out := &dto.InvoiceResponse{
		ID:                inv.ID,
		Number:            inv.Number,
		Status:            inv.Status,
		InvoiceType:       inv.InvoiceType,
		ClientID:          inv.ClientID,
		QuoteID:           inv.QuoteID,
		OriginalInvoiceID: inv.OriginalInvoiceID,
		IssueDate:         inv.IssueDate,
		SaleDate:          inv.SaleDate,
		DueDate:           inv.DueDate,
		PaymentTerms:      inv.PaymentTerms,
		LatePenaltyRate:   inv.LatePenaltyRate,
		RecoveryFee:       inv.RecoveryFee,
		VATOnDebits:       inv.VATOnDebits,
		VATExemptionRef:   inv.VATExemptionRef,
		OperationCategory: inv.OperationCategory,
		Conditions:        inv.Conditions,
		Notes:             inv.Notes,
		Seller:            toParty(inv.Seller),
		Client:            toParty(inv.Client),
		SubtotalHT:        inv.SubtotalHT,
		TotalTax:          inv.TotalTax,
		TotalTTC:          inv.TotalTTC,
		AmountPaid:        inv.AmountPaid,
		Balance:           inv.Balance(),
		Discount:          toDiscountResponse(inv.Discount, inv.Lines),
		Lines:             toLineResponses(inv.Lines),
		SentAt:            inv.SentAt,
		PaidAt:            inv.PaidAt,
		ArchivedAt:        inv.ArchivedAt,
		DeletedAt:         inv.DeletedAt,
		CreatedAt:         inv.CreatedAt,
		UpdatedAt:         inv.UpdatedAt,
	}
	if inv.CreditAmount.Valid {
		amount := inv.CreditAmount.Decimal
		out.CreditAmount = &amount
	}
	return out
}

// ToAuditLogResponses entidad -> DTO.
func ToAuditLogResponses(entries []entity.InvoiceAuditLog) []dto.AuditLogResponse {
	out := make([]dto.AuditLogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.AuditLogResponse{
			ID:          e.ID,
			Action:      e.Action,
			FieldName:   e.FieldName,
			OldValue:    e.OldValue,
			NewValue:    e.NewValue,
			Description: e.Description,
			UserID:      e.UserID,
			IPAddress:   e.IPAddress,
			UserAgent:   e.UserAgent,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out
}
