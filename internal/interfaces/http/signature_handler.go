package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/lokario-api/internal/application/billing"
	"github.com/jhoicas/lokario-api/internal/application/dto"
)

// SignatureHandler rutas públicas del cliente final: sin JWT, la prueba es el OTP.
type SignatureHandler struct {
	uc *billing.SignatureUseCase
}

// NewSignatureHandler construye el handler.
func NewSignatureHandler(uc *billing.SignatureUseCase) *SignatureHandler {
	return &SignatureHandler{uc: uc}
}

// RequestOTP godoc
// @Summary      Envoyer un code de signature au client
// @Tags         signature
// @Accept       json
// @Produce      json
// @Param        id    path  string                 true  "ID du devis"
// @Param        body  body  dto.RequestOTPRequest  true  "Email du signataire"
// @Success      200   {object}  dto.RequestOTPResponse
// @Failure      409   {object}  dto.ErrorResponse  "already_signed / wrong_state"
// @Failure      429   {object}  dto.ErrorResponse  "rate_limited"
// @Router       /api/v1/quotes/{id}/signature/request-otp [post]
func (h *SignatureHandler) RequestOTP(c *fiber.Ctx) error {
	var in dto.RequestOTPRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.uc.RequestOTP(c.UserContext(), c.Params("id"), in, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Submit godoc
// @Summary      Signer le devis avec le code reçu
// @Tags         signature
// @Accept       json
// @Produce      json
// @Param        id    path  string                      true  "ID du devis"
// @Param        body  body  dto.SubmitSignatureRequest  true  "Code, nom, image de signature"
// @Success      200   {object}  dto.SignatureResponse
// @Failure      401   {object}  dto.ErrorResponse  "invalid_code / expired"
// @Router       /api/v1/quotes/{id}/signature/submit [post]
func (h *SignatureHandler) Submit(c *fiber.Ctx) error {
	var in dto.SubmitSignatureRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.uc.Submit(c.UserContext(), c.Params("id"), in, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// View GET /api/v1/public/quotes/:id (registra el evento viewed)
func (h *SignatureHandler) View(c *fiber.Ctx) error {
	out, err := h.uc.PublicView(c.UserContext(), c.Params("id"), requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Evidence descarga el XML canonicalizado que respalda la firma.
// GET /api/v1/public/quotes/:id/signature/evidence
func (h *SignatureHandler) Evidence(c *fiber.Ctx) error {
	data, filename, err := h.uc.Evidence(c.UserContext(), c.Params("id"), requestMeta(c))
	if err != nil {
		return err
	}
	return sendFile(c, data, filename, "application/xml", false)
}
