package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/lokario-api/internal/application/billing"
	"github.com/jhoicas/lokario-api/internal/application/dto"
)

// QuoteHandler devis: CRUD en borrador, transiciones, PDF y firma (lado empresa).
type QuoteHandler struct {
	uc        *billing.QuoteUseCase
	pdf       *billing.PDFUseCase
	signature *billing.SignatureUseCase
}

// NewQuoteHandler construye el handler.
func NewQuoteHandler(uc *billing.QuoteUseCase, pdf *billing.PDFUseCase, signature *billing.SignatureUseCase) *QuoteHandler {
	return &QuoteHandler{uc: uc, pdf: pdf, signature: signature}
}

// Create godoc
// @Summary      Créer un devis (brouillon)
// @Tags         quotes
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateQuoteRequest  true  "Devis"
// @Success      201   {object}  dto.QuoteResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/v1/quotes [post]
func (h *QuoteHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateQuoteRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.uc.Create(c.UserContext(), GetActor(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List GET /api/v1/quotes?status=&client_id=
func (h *QuoteHandler) List(c *fiber.Ctx) error {
	out, err := h.uc.List(c.UserContext(), GetActor(c), c.Query("status"), c.Query("client_id"), pageParams(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Get GET /api/v1/quotes/:id
func (h *QuoteHandler) Get(c *fiber.Ctx) error {
	out, err := h.uc.Get(c.UserContext(), GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Update godoc
// @Summary      Modifier un devis (brouillon uniquement)
// @Tags         quotes
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                  true  "ID du devis"
// @Param        body  body  dto.UpdateQuoteRequest  true  "Champs modifiés"
// @Success      200   {object}  dto.QuoteResponse
// @Failure      409   {object}  dto.ErrorResponse  "document_locked"
// @Router       /api/v1/quotes/{id} [patch]
func (h *QuoteHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateQuoteRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.uc.Update(c.UserContext(), GetActor(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Delete DELETE /api/v1/quotes/:id
func (h *QuoteHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.Delete(c.UserContext(), GetActor(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Send POST /api/v1/quotes/:id/send
func (h *QuoteHandler) Send(c *fiber.Ctx) error {
	out, err := h.uc.Send(c.UserContext(), GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Accept POST /api/v1/quotes/:id/accept
func (h *QuoteHandler) Accept(c *fiber.Ctx) error {
	out, err := h.uc.Accept(c.UserContext(), GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Refuse POST /api/v1/quotes/:id/refuse
func (h *QuoteHandler) Refuse(c *fiber.Ctx) error {
	out, err := h.uc.Refuse(c.UserContext(), GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// PDF genera el PDF al vuelo. GET y POST /api/v1/quotes/:id/pdf
func (h *QuoteHandler) PDF(c *fiber.Ctx) error {
	data, filename, err := h.pdf.QuotePDF(c.UserContext(), GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return sendFile(c, data, filename, "application/pdf", true)
}

// VerifySignature recalcula el hash del devis firmado.
// GET /api/v1/quotes/:id/signature/verify
func (h *QuoteHandler) VerifySignature(c *fiber.Ctx) error {
	out, err := h.signature.Verify(c.UserContext(), GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// SignatureEvents GET /api/v1/quotes/:id/signature/events
func (h *QuoteHandler) SignatureEvents(c *fiber.Ctx) error {
	out, err := h.signature.Events(c.UserContext(), GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}
