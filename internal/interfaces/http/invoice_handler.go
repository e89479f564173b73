package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/lokario-api/internal/application/billing"
	"github.com/jhoicas/lokario-api/internal/application/dto"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// InvoiceHandler maneja las peticiones HTTP de facturación (protegido).
type InvoiceHandler struct {
	uc     *billing.InvoiceUseCase
	pdf    *billing.PDFUseCase
	export *billing.ExportUseCase
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(uc *billing.InvoiceUseCase, pdf *billing.PDFUseCase, export *billing.ExportUseCase) *InvoiceHandler {
	return &InvoiceHandler{uc: uc, pdf: pdf, export: export}
}

// invoiceFilter arma el filtro desde la query; las fechas se parsean a mano.
func invoiceFilter(c *fiber.Ctx) (dto.InvoiceFilter, error) {
	f := dto.InvoiceFilter{
		Status:           c.Query("status"),
		ClientID:         c.Query("client_id"),
		InvoiceType:      c.Query("invoice_type"),
		IncludingDeleted: c.QueryBool("including_deleted", false),
		IncludeArchived:  c.QueryBool("include_archived", false),
	}
	var err error
	if f.From, err = queryDate(c, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(c, "to"); err != nil {
		return f, err
	}
	return f, validateStruct(f)
}

// Create godoc
// @Summary      Créer une facture (brouillon)
// @Tags         invoices
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateInvoiceRequest  true  "Facture"
// @Success      201   {object}  dto.InvoiceResponse
// @Failure      400   {object}  dto.ErrorResponse  "invalid_tax_rate / totals_incoherent"
// @Failure      409   {object}  dto.ErrorResponse  "quota_exceeded"
// @Router       /api/v1/invoices [post]
func (h *InvoiceHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateInvoiceRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.uc.Create(c.UserContext(), GetActor(c), requestMeta(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List godoc
// @Summary      Lister les factures
// @Tags         invoices
// @Security     Bearer
// @Produce      json
// @Param        status             query  string  false  "Statut"
// @Param        client_id          query  string  false  "Client"
// @Param        from               query  string  false  "Date d'émission min (AAAA-MM-JJ)"
// @Param        to                 query  string  false  "Date d'émission max (AAAA-MM-JJ)"
// @Param        including_deleted  query  bool    false  "Inclure les factures supprimées"
// @Param        limit              query  int     false  "Limite (défaut 20, max 100)"
// @Param        offset             query  int     false  "Décalage"
// @Success      200  {object}  dto.InvoiceListResponse
// @Router       /api/v1/invoices [get]
func (h *InvoiceHandler) List(c *fiber.Ctx) error {
	f, err := invoiceFilter(c)
	if err != nil {
		return err
	}
	out, err := h.uc.List(c.UserContext(), GetActor(c), f, pageParams(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Get GET /api/v1/invoices/:id?including_deleted=true
func (h *InvoiceHandler) Get(c *fiber.Ctx) error {
	out, err := h.uc.Get(c.UserContext(), GetActor(c), c.Params("id"), c.QueryBool("including_deleted", false))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Update PATCH /api/v1/invoices/:id (solo borrador)
func (h *InvoiceHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateInvoiceRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.uc.Update(c.UserContext(), GetActor(c), requestMeta(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Delete borrado lógico. DELETE /api/v1/invoices/:id
func (h *InvoiceHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.Delete(c.UserContext(), GetActor(c), requestMeta(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Send POST /api/v1/invoices/:id/send
func (h *InvoiceHandler) Send(c *fiber.Ctx) error {
	out, err := h.uc.Send(c.UserContext(), GetActor(c), requestMeta(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Cancel POST /api/v1/invoices/:id/cancel
func (h *InvoiceHandler) Cancel(c *fiber.Ctx) error {
	out, err := h.uc.Cancel(c.UserContext(), GetActor(c), requestMeta(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Archive POST /api/v1/invoices/:id/archive
func (h *InvoiceHandler) Archive(c *fiber.Ctx) error {
	out, err := h.uc.Archive(c.UserContext(), GetActor(c), requestMeta(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// RecordPayment godoc
// @Summary      Enregistrer un paiement
// @Tags         invoices
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string              true  "ID de la facture"
// @Param        body  body  dto.PaymentRequest  true  "Montant, date, moyen"
// @Success      201   {object}  dto.PaymentResponse
// @Failure      409   {object}  dto.ErrorResponse  "wrong_state"
// @Router       /api/v1/invoices/{id}/payments [post]
func (h *InvoiceHandler) RecordPayment(c *fiber.Ctx) error {
	var in dto.PaymentRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.uc.RecordPayment(c.UserContext(), GetActor(c), requestMeta(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// ListPayments GET /api/v1/invoices/:id/payments
func (h *InvoiceHandler) ListPayments(c *fiber.Ctx) error {
	out, err := h.uc.ListPayments(c.UserContext(), GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// CreditNote godoc
// @Summary      Émettre un avoir sur une facture envoyée
// @Tags         invoices
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                 true  "ID de la facture d'origine"
// @Param        body  body  dto.CreditNoteRequest  true  "Lignes ou montant à créditer"
// @Success      201   {object}  dto.InvoiceResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/v1/invoices/{id}/credit-note [post]
func (h *InvoiceHandler) CreditNote(c *fiber.Ctx) error {
	var in dto.CreditNoteRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.uc.CreateCreditNote(c.UserContext(), GetActor(c), requestMeta(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// PDF GET /api/v1/invoices/:id/pdf (acepta ?token=)
func (h *InvoiceHandler) PDF(c *fiber.Ctx) error {
	data, filename, err := h.pdf.InvoicePDF(c.UserContext(), GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return sendFile(c, data, filename, "application/pdf", true)
}

// AuditLogs GET /api/v1/invoices/:id/audit-logs
func (h *InvoiceHandler) AuditLogs(c *fiber.Ctx) error {
	out, err := h.uc.AuditLogs(c.UserContext(), GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Export GET /api/v1/invoices/export (xlsx; mismos filtros que List)
func (h *InvoiceHandler) Export(c *fiber.Ctx) error {
	f, err := invoiceFilter(c)
	if err != nil {
		return err
	}
	data, filename, err := h.export.Invoices(c.UserContext(), GetActor(c), f)
	if err != nil {
		return err
	}
	return sendFile(c, data, filename, xlsxContentType, false)
}
