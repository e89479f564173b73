package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/lokario-api/internal/application/inbox"
)

// HeaderWebhookSignature HMAC-SHA256 hex del cuerpo crudo.
const HeaderWebhookSignature = "X-Lokario-Signature"

// WebhookHandler recepción de mensajes entrantes de proveedores (sin JWT).
type WebhookHandler struct {
	uc *inbox.WebhookUseCase
}

// NewWebhookHandler construye el handler.
func NewWebhookHandler(uc *inbox.WebhookUseCase) *WebhookHandler {
	return &WebhookHandler{uc: uc}
}

// Receive godoc
// @Summary      Webhook entrant (email, sms, whatsapp)
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        provider             path    string  true  "Fournisseur"
// @Param        X-Lokario-Signature  header  string  true  "HMAC-SHA256 hex du corps"
// @Success      200  {object}  dto.WebhookResponse
// @Failure      401  {object}  dto.ErrorResponse  "invalid_signature"
// @Router       /api/v1/webhooks/inbox/{provider} [post]
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	// El cuerpo se copia: fasthttp reutiliza el buffer tras responder.
	body := append([]byte(nil), c.Body()...)
	out, err := h.uc.Receive(c.UserContext(), c.Params("provider"), body, c.Get(HeaderWebhookSignature))
	if err != nil {
		return err
	}
	return c.JSON(out)
}
