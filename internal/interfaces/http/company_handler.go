package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/usecase"
)

// CompanyHandler empresa del actor, sus ajustes y su equipo.
type CompanyHandler struct {
	uc    *usecase.CompanyUseCase
	users *usecase.UserUseCase
}

// NewCompanyHandler construye el handler inyectando los casos de uso.
func NewCompanyHandler(uc *usecase.CompanyUseCase, users *usecase.UserUseCase) *CompanyHandler {
	return &CompanyHandler{uc: uc, users: users}
}

// Get godoc
// @Summary      Entreprise courante
// @Tags         companies
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.CompanyResponse
// @Router       /api/v1/companies/me [get]
func (h *CompanyHandler) Get(c *fiber.Ctx) error {
	out, err := h.uc.Get(c.UserContext(), GetActor(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Update godoc
// @Summary      Modifier l'entreprise (identifiants légaux, adresse, mentions)
// @Tags         companies
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.UpdateCompanyRequest  true  "Champs modifiés"
// @Success      200   {object}  dto.CompanyResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/v1/companies/me [patch]
func (h *CompanyHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateCompanyRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.uc.Update(c.UserContext(), GetActor(c), in)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Settings GET /api/v1/companies/me/settings
func (h *CompanyHandler) Settings(c *fiber.Ctx) error {
	out, err := h.uc.Settings(c.UserContext(), GetActor(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// UpdateSettings PATCH /api/v1/companies/me/settings
func (h *CompanyHandler) UpdateSettings(c *fiber.Ctx) error {
	var in dto.UpdateSettingsRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.uc.UpdateSettings(c.UserContext(), GetActor(c), in)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// ── Equipo ────────────────────────────────────────────────────────────────────

// ListUsers GET /api/v1/users
func (h *CompanyHandler) ListUsers(c *fiber.Ctx) error {
	out, err := h.users.List(c.UserContext(), GetActor(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// CreateUser POST /api/v1/users
func (h *CompanyHandler) CreateUser(c *fiber.Ctx) error {
	var in dto.CreateMemberRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.users.Create(c.UserContext(), GetActor(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// UpdateUser PATCH /api/v1/users/:id
func (h *CompanyHandler) UpdateUser(c *fiber.Ctx) error {
	var in dto.UpdateMemberRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.users.Update(c.UserContext(), GetActor(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// DeleteUser DELETE /api/v1/users/:id
func (h *CompanyHandler) DeleteUser(c *fiber.Ctx) error {
	if err := h.users.Delete(c.UserContext(), GetActor(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
