package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/domain"
)

// featureChecker es el contrato mínimo que necesita el middleware para verificar el plan.
// Lo implementa *limits.Service.
type featureChecker interface {
	FeatureEnabled(ctx context.Context, companyID, feature string) (bool, error)
}

// RequireFeature devuelve un middleware Fiber que verifica si el plan de la empresa del actor
// incluye la funcionalidad. Debe usarse DESPUÉS de AuthMiddleware.
//
// Comportamiento:
//   - 403 feature_disabled → funcionalidad fuera del plan.
//   - 503 → fallo de infraestructura al consultar la suscripción.
//   - super_admin pasa siempre.
func RequireFeature(feature string, checker featureChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := GetActor(c)
		if actor == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "unauthorized", Message: "authentification requise"})
		}
		if actor.IsSuperAdmin() {
			return c.Next()
		}

		enabled, err := checker.FeatureEnabled(c.UserContext(), actor.CompanyID, feature)
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Code:    "plan_check_failed",
				Message: "impossible de vérifier l'abonnement, réessayez plus tard",
			})
		}
		if !enabled {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Code:    domain.CodeFeatureDisabled,
				Message: "la fonctionnalité « " + feature + " » n'est pas incluse dans votre abonnement",
			})
		}
		return c.Next()
	}
}
