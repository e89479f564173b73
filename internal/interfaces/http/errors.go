package http

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Los errores se reportan con el nombre JSON del campo.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind parsea el cuerpo JSON en out y aplica las reglas `validate`.
func bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return &domain.Error{Kind: domain.ErrInvalidInput, Code: "invalid_body", Detail: "corps de requête invalide"}
	}
	return validateStruct(out)
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fieldErrors(verrs)
		}
		return domain.Validation("", err.Error())
	}
	return nil
}

// validationError errores por campo del validador.
type validationError struct {
	fields map[string]string
}

func (e *validationError) Error() string { return "validation: " + strings.Join(keys(e.fields), ", ") }
func (e *validationError) Unwrap() error { return domain.ErrInvalidInput }

func fieldErrors(verrs validator.ValidationErrors) error {
	out := &validationError{fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		out.fields[ns] = ruleMessage(fe)
	}
	return out
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "champ obligatoire"
	case "email":
		return "adresse email invalide"
	case "oneof":
		return "valeur non autorisée (" + fe.Param() + ")"
	case "max":
		return "trop long ou trop grand (max " + fe.Param() + ")"
	case "min":
		return "trop court ou trop petit (min " + fe.Param() + ")"
	default:
		return "valeur invalide (" + fe.Tag() + ")"
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// ── Traducción error → HTTP ───────────────────────────────────────────────────

// statusFor status HTTP del kind del error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUserNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrDuplicate), errors.Is(err, domain.ErrEmailAlreadyExists):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return fiber.StatusTooManyRequests
	case errors.Is(err, domain.ErrUpstream):
		if domain.CodeOf(err) == domain.CodeChannelUnavailable || domain.CodeOf(err) == domain.CodePromptNotConfigured {
			return fiber.StatusServiceUnavailable
		}
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func defaultCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return domain.CodeValidation
	case fiber.StatusUnauthorized:
		return "unauthorized"
	case fiber.StatusForbidden:
		return "forbidden"
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusConflict:
		return "conflict"
	case fiber.StatusTooManyRequests:
		return domain.CodeRateLimited
	case fiber.StatusBadGateway, fiber.StatusServiceUnavailable:
		return "upstream_error"
	default:
		return "internal_error"
	}
}

// writeError responde dto.ErrorResponse. Los 5xx no exponen el detalle interno.
func writeError(c *fiber.Ctx, log zerolog.Logger, err error) error {
	status := statusFor(err)
	resp := dto.ErrorResponse{Code: defaultCode(status), Message: err.Error()}

	var ve *validationError
	var de *domain.Error
	switch {
	case errors.As(err, &ve):
		resp.Message = "données invalides"
		resp.Fields = ve.fields
	case errors.As(err, &de):
		resp.Code, resp.Message, resp.Field = de.Code, de.Detail, de.Field
	case errors.Is(err, domain.ErrUpstream):
		resp.Message = domain.ErrUpstream.Error()
	}

	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Int("status", status).Msg("http: error")
		if status == fiber.StatusInternalServerError {
			resp.Message = "erreur interne"
		}
	}
	return c.Status(status).JSON(resp)
}

// ErrorHandler handler global de fiber: errores no tratados por los handlers.
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(dto.ErrorResponse{Code: defaultCode(fe.Code), Message: fe.Message})
		}
		return writeError(c, log, err)
	}
}
