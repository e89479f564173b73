package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/application/billing"
	"github.com/jhoicas/lokario-api/internal/application/cron"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/inbox"
	"github.com/jhoicas/lokario-api/internal/application/limits"
	apphttp "github.com/jhoicas/lokario-api/internal/interfaces/http"
)

func jsonRequest(t *testing.T, app *fiber.App, method, target, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// clientApp monta solo las rutas de clientes y facturas sobre un memstore.
func clientApp(t *testing.T) (*fiber.App, func(email string) string) {
	t.Helper()
	uc, store := newAuthUC(t)
	lim := limits.NewService(store.Repos())
	clients := apphttp.NewClientHandler(billing.NewClientUseCase(store, store.Repos().Clients, lim))
	invoices := apphttp.NewInvoiceHandler(billing.NewInvoiceUseCase(store, store.Repos(), lim, zerolog.Nop()), nil, nil)

	app := fiber.New(fiber.Config{ErrorHandler: apphttp.ErrorHandler(zerolog.Nop())})
	api := app.Group("/api/v1", apphttp.AuthMiddleware(uc))
	api.Get("/clients", clients.List)
	api.Post("/clients", clients.Create)
	api.Get("/clients/:id", clients.Get)
	api.Patch("/clients/:id", clients.Update)
	api.Delete("/clients/:id", clients.Delete)
	api.Get("/invoices", invoices.List)

	return app, func(email string) string { return registerOwner(t, uc, email).Token }
}

func TestClientHandler_CRUD(t *testing.T) {
	app, login := clientApp(t)
	token := login("owner@martin.fr")

	resp := jsonRequest(t, app, http.MethodPost, "/api/v1/clients", token, dto.CreateClientRequest{
		Name: "Boulangerie Paul", Email: "Contact@Paul.FR", Phone: "06 12 34 56 78",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created dto.ClientResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	assert.Equal(t, "contact@paul.fr", created.Email)
	assert.Equal(t, "+33612345678", created.Phone)

	resp = jsonRequest(t, app, http.MethodGet, "/api/v1/clients?search=paul&limit=500", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list dto.ClientListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	require.Len(t, list.Items, 1)
	assert.Equal(t, 100, list.Page.Limit, "el límite se acota a 100")

	name := "Boulangerie Paul & Fils"
	resp = jsonRequest(t, app, http.MethodPatch, "/api/v1/clients/"+created.ID, token, dto.UpdateClientRequest{Name: &name})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = jsonRequest(t, app, http.MethodDelete, "/api/v1/clients/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = jsonRequest(t, app, http.MethodGet, "/api/v1/clients/"+created.ID, token, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClientHandler_ValidacionPorCampo(t *testing.T) {
	app, login := clientApp(t)
	token := login("owner@martin.fr")

	resp := jsonRequest(t, app, http.MethodPost, "/api/v1/clients", token, map[string]any{"email": "pas-un-email"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Contains(t, body.Fields, "name")
	assert.Contains(t, body.Fields, "email")
}

func TestClientHandler_CuerpoInvalido(t *testing.T) {
	app, login := clientApp(t)
	token := login("owner@martin.fr")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/clients", bytes.NewBufferString("{no json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_body", decodeError(t, resp).Code)
}

func TestClientHandler_AislamientoEntreEmpresas(t *testing.T) {
	app, login := clientApp(t)
	tokenA := login("a@martin.fr")
	tokenB := login("b@durand.fr")

	resp := jsonRequest(t, app, http.MethodPost, "/api/v1/clients", tokenA, dto.CreateClientRequest{Name: "Client A"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created dto.ClientResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	resp = jsonRequest(t, app, http.MethodGet, "/api/v1/clients/"+created.ID, tokenB, nil)
	assert.Contains(t, []int{http.StatusNotFound, http.StatusForbidden}, resp.StatusCode)
	resp.Body.Close()

	resp = jsonRequest(t, app, http.MethodGet, "/api/v1/clients", tokenB, nil)
	defer resp.Body.Close()
	var list dto.ClientListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Empty(t, list.Items)
}

func TestInvoiceHandler_FechaInvalida(t *testing.T) {
	app, login := clientApp(t)
	token := login("owner@martin.fr")

	resp := jsonRequest(t, app, http.MethodGet, "/api/v1/invoices?from=15/03/2025", token, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, "from", body.Field)
}

// ── Cron ──────────────────────────────────────────────────────────────────────

type fakeRunner struct {
	calls int
	err   error
}

func (f *fakeRunner) Run(context.Context) (*cron.Report, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &cron.Report{Steps: []cron.StepResult{{Name: "overdue", Count: 2}}}, nil
}

func TestCronHandler_Secreto(t *testing.T) {
	runner := &fakeRunner{}
	app := fiber.New(fiber.Config{ErrorHandler: apphttp.ErrorHandler(zerolog.Nop())})
	app.Post("/cron", apphttp.NewCronHandler(runner, "s3cret").CheckOverdueAndReminders)

	resp := jsonRequest(t, app, http.MethodPost, "/cron?secret=nope", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
	assert.Zero(t, runner.calls)

	resp = jsonRequest(t, app, http.MethodPost, "/cron?secret=s3cret", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report cron.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	resp.Body.Close()
	assert.Equal(t, 1, runner.calls)
	require.Len(t, report.Steps, 1)
	assert.Equal(t, 2, report.Steps[0].Count)

	runner.err = errors.New("boom")
	resp = jsonRequest(t, app, http.MethodPost, "/cron?secret=s3cret", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "erreur interne", decodeError(t, resp).Message)
}

func TestCronHandler_SinSecretoConfigurado(t *testing.T) {
	runner := &fakeRunner{}
	app := fiber.New()
	app.Post("/cron", apphttp.NewCronHandler(runner, "").CheckOverdueAndReminders)

	resp := jsonRequest(t, app, http.MethodPost, "/cron?secret=", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, runner.calls)
}

// ── Webhooks ──────────────────────────────────────────────────────────────────

func TestWebhookHandler_ProveedorYCuerpo(t *testing.T) {
	_, store := newAuthUC(t)
	uc := inbox.NewWebhookUseCase(store.Repos(), nil, nil, "shared", zerolog.Nop())
	app := fiber.New(fiber.Config{ErrorHandler: apphttp.ErrorHandler(zerolog.Nop())})
	app.Post("/webhooks/inbox/:provider", apphttp.NewWebhookHandler(uc).Receive)

	resp := jsonRequest(t, app, http.MethodPost, "/webhooks/inbox/pigeon", "", map[string]string{"message_id": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/inbox/email", bytes.NewBufferString("{"))
	req.Header.Set(apphttp.HeaderWebhookSignature, inbox.Sign("shared", []byte("{")))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
