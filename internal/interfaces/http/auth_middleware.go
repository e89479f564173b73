package http

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/domain"
)

// LocalActor clave de c.Locals con el *auth.Actor de la petición.
const LocalActor = "actor"

// actorResolver lo implementa *auth.AuthUseCase.
type actorResolver interface {
	ResolveActor(ctx context.Context, token string, allowPendingDeletion bool) (*auth.Actor, error)
}

// AuthMiddleware valida el Bearer Token JWT y carga el actor en c.Locals.
// Acepta ?token= como alternativa para las descargas abiertas desde <img> o <a> (PDF).
func AuthMiddleware(resolver actorResolver) fiber.Handler {
	return authenticate(resolver, false)
}

// AuthAllowPendingDeletion igual que AuthMiddleware pero deja pasar cuentas en periodo de gracia.
// Solo para la restauración de la cuenta.
func AuthAllowPendingDeletion(resolver actorResolver) fiber.Handler {
	return authenticate(resolver, true)
}

func authenticate(resolver actorResolver, allowPending bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "missing_token", Message: "en-tête Authorization: Bearer <token> requis"})
		}
		actor, err := resolver.ResolveActor(c.UserContext(), token, allowPending)
		if err != nil {
			status := statusFor(err)
			if status >= fiber.StatusInternalServerError {
				return err
			}
			var de *domain.Error
			if errors.As(err, &de) {
				return c.Status(status).JSON(dto.ErrorResponse{Code: de.Code, Message: de.Detail})
			}
			if status == fiber.StatusForbidden {
				return c.Status(status).JSON(dto.ErrorResponse{Code: "forbidden", Message: "compte inactif ou suspendu"})
			}
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "invalid_token", Message: "jeton invalide ou expiré"})
		}
		c.Locals(LocalActor, actor)
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	if h := c.Get(fiber.HeaderAuthorization); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", false
		}
		tok := strings.TrimSpace(parts[1])
		return tok, tok != ""
	}
	tok := strings.TrimSpace(c.Query("token"))
	return tok, tok != ""
}

// RequireRole deja pasar solo a los roles indicados. Debe ir DESPUÉS de AuthMiddleware.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := GetRole(c)
		for _, r := range roles {
			if r == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "forbidden", Message: "rôle insuffisant pour cette action"})
	}
}

// GetActor devuelve el actor del contexto (nil sin autenticación).
func GetActor(c *fiber.Ctx) *auth.Actor {
	a, _ := c.Locals(LocalActor).(*auth.Actor)
	return a
}

// GetRole devuelve el rol del actor o "".
func GetRole(c *fiber.Ctx) string {
	if a := GetActor(c); a != nil {
		return a.Role
	}
	return ""
}

// requestMeta IP y User-Agent para los registros de auditoría.
func requestMeta(c *fiber.Ctx) auth.RequestMeta {
	ip := c.IP()
	if ips := c.IPs(); len(ips) > 0 {
		ip = ips[0]
	}
	return auth.RequestMeta{IP: ip, UserAgent: c.Get(fiber.HeaderUserAgent)}
}
