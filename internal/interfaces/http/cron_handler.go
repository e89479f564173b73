package http

import (
	"context"
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/lokario-api/internal/application/cron"
	"github.com/jhoicas/lokario-api/internal/application/dto"
)

// cronRunner lo implementa *cron.Dispatcher.
type cronRunner interface {
	Run(ctx context.Context) (*cron.Report, error)
}

// CronHandler punto de entrada del planificador externo.
type CronHandler struct {
	runner cronRunner
	secret string
}

// NewCronHandler construye el handler. Un secreto vacío deshabilita el endpoint.
func NewCronHandler(runner cronRunner, secret string) *CronHandler {
	return &CronHandler{runner: runner, secret: secret}
}

// CheckOverdueAndReminders godoc
// @Summary      Tâches périodiques (ingestion, retards, relances, réponses différées, purge)
// @Tags         cron
// @Produce      json
// @Param        secret  query  string  true  "Secret partagé"
// @Success      200  {object}  cron.Report
// @Failure      401  {object}  dto.ErrorResponse
// @Router       /api/v1/cron/check-overdue-and-reminders [post]
func (h *CronHandler) CheckOverdueAndReminders(c *fiber.Ctx) error {
	given := c.Query("secret")
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(given), []byte(h.secret)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "invalid_secret", Message: "secret invalide"})
	}
	report, err := h.runner.Run(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(report)
}
