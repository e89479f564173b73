package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/inbox"
	"github.com/jhoicas/lokario-api/internal/domain"
)

// InboxHandler bandeja unificada: carpetas, conversaciones e integraciones.
type InboxHandler struct {
	folders       *inbox.FolderUseCase
	conversations *inbox.ConversationUseCase
	integrations  *inbox.IntegrationUseCase
}

// NewInboxHandler construye el handler.
func NewInboxHandler(folders *inbox.FolderUseCase, conversations *inbox.ConversationUseCase, integrations *inbox.IntegrationUseCase) *InboxHandler {
	return &InboxHandler{folders: folders, conversations: conversations, integrations: integrations}
}

// ── Carpetas ──────────────────────────────────────────────────────────────────

// ListFolders GET /api/v1/inbox/folders
func (h *InboxHandler) ListFolders(c *fiber.Ctx) error {
	out, err := h.folders.List(c.UserContext(), GetActor(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// CreateFolder POST /api/v1/inbox/folders
func (h *InboxHandler) CreateFolder(c *fiber.Ctx) error {
	var in dto.FolderRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.folders.Create(c.UserContext(), GetActor(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// UpdateFolder PATCH /api/v1/inbox/folders/:id
func (h *InboxHandler) UpdateFolder(c *fiber.Ctx) error {
	var in dto.FolderRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.folders.Update(c.UserContext(), GetActor(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// DeleteFolder DELETE /api/v1/inbox/folders/:id (las carpetas de sistema no se borran)
func (h *InboxHandler) DeleteFolder(c *fiber.Ctx) error {
	if err := h.folders.Delete(c.UserContext(), GetActor(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ── Conversaciones ────────────────────────────────────────────────────────────

// ListConversations godoc
// @Summary      Lister les conversations
// @Tags         inbox
// @Security     Bearer
// @Produce      json
// @Param        folder_id    query  string  false  "Dossier"
// @Param        status       query  string  false  "Statut"
// @Param        source       query  string  false  "email, sms, whatsapp"
// @Param        unread_only  query  bool    false  "Non lues uniquement"
// @Param        search       query  string  false  "Recherche"
// @Success      200  {object}  dto.ConversationListResponse
// @Failure      403  {object}  dto.ErrorResponse  "feature_disabled"
// @Router       /api/v1/conversations [get]
func (h *InboxHandler) ListConversations(c *fiber.Ctx) error {
	var f dto.ConversationFilter
	if err := c.QueryParser(&f); err != nil {
		return domain.NewError(domain.ErrInvalidInput, "invalid_query", "paramètres de recherche invalides")
	}
	if err := validateStruct(f); err != nil {
		return err
	}
	out, err := h.conversations.List(c.UserContext(), GetActor(c), f, pageParams(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// GetConversation GET /api/v1/conversations/:id
func (h *InboxHandler) GetConversation(c *fiber.Ctx) error {
	out, err := h.conversations.Get(c.UserContext(), GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Messages lista los mensajes del hilo y los marca como leídos.
// GET /api/v1/conversations/:id/messages
func (h *InboxHandler) Messages(c *fiber.Ctx) error {
	out, err := h.conversations.Get(c.UserContext(), GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out.Messages)
}

// Reply POST /api/v1/conversations/:id/messages
func (h *InboxHandler) Reply(c *fiber.Ctx) error {
	var in dto.ReplyRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.conversations.Reply(c.UserContext(), GetActor(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// UpdateConversation PATCH /api/v1/conversations/:id (estado, carpeta, asignado)
func (h *InboxHandler) UpdateConversation(c *fiber.Ctx) error {
	var in dto.UpdateConversationRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.conversations.Update(c.UserContext(), GetActor(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// ApproveAutoReply godoc
// @Summary      Valider (et éventuellement modifier) la réponse automatique en attente
// @Tags         inbox
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                       true   "ID de la conversation"
// @Param        body  body  dto.ApproveAutoReplyRequest  false  "Contenu modifié"
// @Success      200   {object}  dto.ConversationResponse
// @Failure      409   {object}  dto.ErrorResponse  "wrong_state"
// @Failure      503   {object}  dto.ErrorResponse  "channel_unavailable"
// @Router       /api/v1/conversations/{id}/approve-auto-reply [post]
func (h *InboxHandler) ApproveAutoReply(c *fiber.Ctx) error {
	var in dto.ApproveAutoReplyRequest
	if len(c.Body()) > 0 {
		if err := bind(c, &in); err != nil {
			return err
		}
	}
	out, err := h.conversations.ApproveAutoReply(c.UserContext(), GetActor(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// ── Integraciones ─────────────────────────────────────────────────────────────

// ListIntegrations GET /api/v1/inbox/integrations
func (h *InboxHandler) ListIntegrations(c *fiber.Ctx) error {
	out, err := h.integrations.List(c.UserContext(), GetActor(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// CreateIntegration POST /api/v1/inbox/integrations (credenciales cifradas en reposo)
func (h *InboxHandler) CreateIntegration(c *fiber.Ctx) error {
	var in dto.IntegrationRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.integrations.Create(c.UserContext(), GetActor(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// UpdateIntegration PATCH /api/v1/inbox/integrations/:id
func (h *InboxHandler) UpdateIntegration(c *fiber.Ctx) error {
	var in dto.IntegrationRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.integrations.Update(c.UserContext(), GetActor(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// DeleteIntegration DELETE /api/v1/inbox/integrations/:id
func (h *InboxHandler) DeleteIntegration(c *fiber.Ctx) error {
	if err := h.integrations.Delete(c.UserContext(), GetActor(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SyncIntegration lanza una sincronización IMAP manual.
// POST /api/v1/inbox/integrations/:id/sync
func (h *InboxHandler) SyncIntegration(c *fiber.Ctx) error {
	out, err := h.integrations.Sync(c.UserContext(), GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}
