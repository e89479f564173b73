package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/followup"
)

// FollowUpHandler relances (protegido).
type FollowUpHandler struct {
	uc *followup.UseCase
}

// NewFollowUpHandler construye el handler.
func NewFollowUpHandler(uc *followup.UseCase) *FollowUpHandler {
	return &FollowUpHandler{uc: uc}
}

// Create POST /api/v1/followups
func (h *FollowUpHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateFollowUpRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.uc.Create(c.UserContext(), GetActor(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List godoc
// @Summary      Lister les relances
// @Tags         followups
// @Security     Bearer
// @Produce      json
// @Param        status       query  string  false  "Statut"
// @Param        client_id    query  string  false  "Client"
// @Param        source_type  query  string  false  "invoice, quote, manual"
// @Param        due_from     query  string  false  "Échéance min (AAAA-MM-JJ)"
// @Param        due_to       query  string  false  "Échéance max (AAAA-MM-JJ)"
// @Success      200  {object}  dto.FollowUpListResponse
// @Router       /api/v1/followups [get]
func (h *FollowUpHandler) List(c *fiber.Ctx) error {
	f := dto.FollowUpFilter{
		PageRequest: pageParams(c),
		Status:      c.Query("status"),
		ClientID:    c.Query("client_id"),
		SourceType:  c.Query("source_type"),
	}
	var err error
	if f.DueFrom, err = queryDate(c, "due_from"); err != nil {
		return err
	}
	if f.DueTo, err = queryDate(c, "due_to"); err != nil {
		return err
	}
	out, err := h.uc.List(c.UserContext(), GetActor(c), f)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Get GET /api/v1/followups/:id (incluye el historial)
func (h *FollowUpHandler) Get(c *fiber.Ctx) error {
	out, err := h.uc.Get(c.UserContext(), GetActor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Update PATCH /api/v1/followups/:id
func (h *FollowUpHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateFollowUpRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.uc.Update(c.UserContext(), GetActor(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Delete DELETE /api/v1/followups/:id
func (h *FollowUpHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.Delete(c.UserContext(), GetActor(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Send envío manual por el canal de la relance.
// POST /api/v1/followups/:id/send
func (h *FollowUpHandler) Send(c *fiber.Ctx) error {
	var in dto.SendFollowUpRequest
	if len(c.Body()) > 0 {
		if err := bind(c, &in); err != nil {
			return err
		}
	}
	out, err := h.uc.Send(c.UserContext(), GetActor(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Stats GET /api/v1/followups/stats
func (h *FollowUpHandler) Stats(c *fiber.Ctx) error {
	out, err := h.uc.Stats(c.UserContext(), GetActor(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Weekly GET /api/v1/followups/weekly
func (h *FollowUpHandler) Weekly(c *fiber.Ctx) error {
	out, err := h.uc.Weekly(c.UserContext(), GetActor(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}
