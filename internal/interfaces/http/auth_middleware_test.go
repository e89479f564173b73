package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	apphttp "github.com/jhoicas/lokario-api/internal/interfaces/http"
	"github.com/jhoicas/lokario-api/internal/testutil/memstore"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const testJWTSecret = "test-secret-key-for-unit-tests"

func newAuthUC(t *testing.T) (*auth.AuthUseCase, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	uc := auth.NewAuthUseCase(store, store.Repos().Users, auth.JWTConfig{Secret: testJWTSecret, ExpMinutes: 60, Issuer: "lokario-test"}, zerolog.Nop())
	return uc, store
}

// registerOwner crea empresa + propietario y devuelve la respuesta de login.
func registerOwner(t *testing.T, uc *auth.AuthUseCase, email string) *dto.LoginResponse {
	t.Helper()
	res, err := uc.Register(context.Background(), dto.RegisterRequest{CompanyName: "Menuiserie Martin", Email: email, Password: "motdepasse1"})
	require.NoError(t, err)
	return res
}

// buildTestApp ruta protegida: JWT + RBAC + handler dummy.
func buildTestApp(uc *auth.AuthUseCase, allowedRoles ...string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apphttp.ErrorHandler(zerolog.Nop())})
	app.Get("/protected",
		apphttp.AuthMiddleware(uc),
		apphttp.RequireRole(allowedRoles...),
		func(c *fiber.Ctx) error {
			a := apphttp.GetActor(c)
			return c.JSON(fiber.Map{"ok": true, "role": apphttp.GetRole(c), "company_id": a.CompanyID, "user_id": a.UserID})
		},
	)
	return app
}

func doRequest(t *testing.T, app *fiber.App, target, authHeader string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeError(t *testing.T, resp *http.Response) dto.ErrorResponse {
	t.Helper()
	var out dto.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// AuthMiddleware / RequireRole
// ──────────────────────────────────────────────────────────────────────────────

func TestAuthMiddleware_CargaElActor(t *testing.T) {
	uc, _ := newAuthUC(t)
	owner := registerOwner(t, uc, "owner@martin.fr")
	app := buildTestApp(uc, entity.RoleOwner)

	resp := doRequest(t, app, "/protected", "Bearer "+owner.Token)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, entity.RoleOwner, body["role"])
	assert.Equal(t, owner.User.CompanyID, body["company_id"])
	assert.Equal(t, owner.User.ID, body["user_id"])
}

func TestAuthMiddleware_TokenEnQuery(t *testing.T) {
	uc, _ := newAuthUC(t)
	owner := registerOwner(t, uc, "owner@martin.fr")
	app := buildTestApp(uc, entity.RoleOwner)

	resp := doRequest(t, app, "/protected?token="+owner.Token, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "las descargas de PDF usan ?token=")
}

func TestAuthMiddleware_SinToken_401(t *testing.T) {
	uc, _ := newAuthUC(t)
	app := buildTestApp(uc, entity.RoleOwner)

	resp := doRequest(t, app, "/protected", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "missing_token", decodeError(t, resp).Code)
}

func TestAuthMiddleware_TokenInvalido_401(t *testing.T) {
	uc, _ := newAuthUC(t)
	app := buildTestApp(uc, entity.RoleOwner)

	for _, header := range []string{"Bearer token.invalido.aqui", "Basic abc"} {
		resp := doRequest(t, app, "/protected", header)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, header)
		resp.Body.Close()
	}
}

func TestAuthMiddleware_OtroSecreto_401(t *testing.T) {
	uc, _ := newAuthUC(t)
	owner := registerOwner(t, uc, "owner@martin.fr")

	store := memstore.New()
	other := auth.NewAuthUseCase(store, store.Repos().Users, auth.JWTConfig{Secret: "otro-secret", ExpMinutes: 60}, zerolog.Nop())
	app := buildTestApp(other, entity.RoleOwner)

	resp := doRequest(t, app, "/protected", "Bearer "+owner.Token)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequireRole_UsuarioBloqueadoEnRutaPropietario(t *testing.T) {
	uc, _ := newAuthUC(t)
	owner := registerOwner(t, uc, "owner@martin.fr")
	app := buildTestApp(uc, entity.RoleOwner, entity.RoleSuperAdmin)

	// Un owner pasa; un token con rol user recibe 403.
	resp := doRequest(t, app, "/protected", "Bearer "+owner.Token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	appUser := buildTestApp(uc, entity.RoleUser)
	resp = doRequest(t, appUser, "/protected", "Bearer "+owner.Token)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", decodeError(t, resp).Code)
}

func TestAuthMiddleware_CuentaEnPeriodoDeGracia(t *testing.T) {
	uc, _ := newAuthUC(t)
	owner := registerOwner(t, uc, "owner@martin.fr")
	ctx := context.Background()

	actor, err := uc.ResolveActor(ctx, owner.Token, false)
	require.NoError(t, err)
	_, err = uc.RequestDeletion(ctx, actor)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: apphttp.ErrorHandler(zerolog.Nop())})
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) }
	app.Get("/normal", apphttp.AuthMiddleware(uc), ok)
	app.Post("/restore", apphttp.AuthAllowPendingDeletion(uc), ok)

	resp := doRequest(t, app, "/normal", "Bearer "+owner.Token)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	req := httptest.NewRequest(http.MethodPost, "/restore", nil)
	req.Header.Set("Authorization", "Bearer "+owner.Token)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// RequireFeature
// ──────────────────────────────────────────────────────────────────────────────

type fakeFeatures struct {
	enabled map[string]bool
	err     error
}

func (f fakeFeatures) FeatureEnabled(_ context.Context, _, feature string) (bool, error) {
	return f.enabled[feature], f.err
}

func featureApp(role string, checker fakeFeatures) *fiber.App {
	app := fiber.New()
	app.Get("/inbox",
		func(c *fiber.Ctx) error {
			c.Locals(apphttp.LocalActor, &auth.Actor{UserID: "u1", CompanyID: "c1", Role: role})
			return c.Next()
		},
		apphttp.RequireFeature("inbox", checker),
		func(c *fiber.Ctx) error { return c.SendString("ok") },
	)
	return app
}

func TestRequireFeature(t *testing.T) {
	cases := []struct {
		name    string
		role    string
		checker fakeFeatures
		status  int
		code    string
	}{
		{"incluida", entity.RoleOwner, fakeFeatures{enabled: map[string]bool{"inbox": true}}, http.StatusOK, ""},
		{"fuera del plan", entity.RoleOwner, fakeFeatures{}, http.StatusForbidden, "feature_disabled"},
		{"fallo de suscripcion", entity.RoleUser, fakeFeatures{err: errors.New("db down")}, http.StatusServiceUnavailable, "plan_check_failed"},
		{"super_admin", entity.RoleSuperAdmin, fakeFeatures{}, http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(t, featureApp(tc.role, tc.checker), "/inbox", "")
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.code != "" {
				body, _ := io.ReadAll(resp.Body)
				assert.Contains(t, string(body), tc.code)
			}
		})
	}
}
