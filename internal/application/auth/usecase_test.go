package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/testutil/memstore"
)

const secret = "test-secret"

func newAuth(t *testing.T) (*auth.AuthUseCase, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	uc := auth.NewAuthUseCase(store, store.Repos().Users, auth.JWTConfig{Secret: secret, ExpMinutes: 60, Issuer: "lokario"}, zerolog.Nop())
	return uc, store
}

func register(t *testing.T, uc *auth.AuthUseCase, email string) *dto.LoginResponse {
	t.Helper()
	res, err := uc.Register(context.Background(), dto.RegisterRequest{
		CompanyName: "Plomberie Dupont & Fils",
		Email:       email,
		Password:    "motdepasse1",
	})
	require.NoError(t, err)
	return res
}

func TestRegister_CreaEmpresaPropietarioYCarpetas(t *testing.T) {
	uc, store := newAuth(t)
	ctx := context.Background()

	res := register(t, uc, "Owner@Dupont.fr")
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "owner@dupont.fr", res.User.Email)
	assert.Equal(t, entity.RoleOwner, res.User.Role)

	repos := store.Repos()
	company, err := repos.Companies.GetByID(ctx, res.User.CompanyID)
	require.NoError(t, err)
	require.NotNil(t, company)
	assert.True(t, company.IsActive)
	assert.Regexp(t, `^plomberie-dupont-fils-[0-9a-f]{6}$`, company.Code)

	sub, err := repos.Subscriptions.GetByCompany(ctx, company.ID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, entity.PlanStarter, sub.Plan)
	assert.Equal(t, entity.SubscriptionTrialing, sub.Status)

	folders, err := repos.Folders.ListByCompany(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, folders, 2)
	for _, f := range folders {
		assert.True(t, f.IsSystem)
		assert.False(t, f.AIRules.AutoClassify)
	}
}

func TestRegister_EmailDuplicado(t *testing.T) {
	uc, _ := newAuth(t)
	register(t, uc, "owner@dupont.fr")
	_, err := uc.Register(context.Background(), dto.RegisterRequest{CompanyName: "Autre", Email: "owner@dupont.fr", Password: "motdepasse1"})
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)
}

func TestLogin(t *testing.T) {
	uc, _ := newAuth(t)
	register(t, uc, "owner@dupont.fr")
	ctx := context.Background()

	res, err := uc.Login(ctx, dto.LoginRequest{Email: "OWNER@dupont.fr", Password: "motdepasse1"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", res.TokenType)

	_, err = uc.Login(ctx, dto.LoginRequest{Email: "owner@dupont.fr", Password: "mauvais"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = uc.Login(ctx, dto.LoginRequest{Email: "inconnu@dupont.fr", Password: "motdepasse1"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestResolveActor(t *testing.T) {
	uc, _ := newAuth(t)
	res := register(t, uc, "owner@dupont.fr")
	ctx := context.Background()

	actor, err := uc.ResolveActor(ctx, res.Token, false)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, actor.UserID)
	assert.Equal(t, res.User.CompanyID, actor.CompanyID)
	assert.True(t, actor.CanCreateTasks)

	_, err = uc.ResolveActor(ctx, "", false)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = uc.ResolveActor(ctx, "pas.un.jeton", false)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

// ── Borrado de cuenta ─────────────────────────────────────────────────────────

func TestDeletionGrace_BloqueaSalvoRestauracion(t *testing.T) {
	uc, _ := newAuth(t)
	res := register(t, uc, "owner@dupont.fr")
	ctx := context.Background()
	actor, err := uc.ResolveActor(ctx, res.Token, false)
	require.NoError(t, err)

	del, err := uc.RequestDeletion(ctx, actor)
	require.NoError(t, err)
	require.NotNil(t, del.DeletionScheduledAt)
	assert.WithinDuration(t, del.DeletionRequestedAt.Add(30*24*time.Hour), *del.DeletionScheduledAt, time.Second)

	_, err = uc.ResolveActor(ctx, res.Token, false)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, domain.CodeAccountPendingDeletion, domain.CodeOf(err))

	restoring, err := uc.ResolveActor(ctx, res.Token, true)
	require.NoError(t, err)
	_, err = uc.Restore(ctx, restoring)
	require.NoError(t, err)

	_, err = uc.ResolveActor(ctx, res.Token, false)
	assert.NoError(t, err)

	_, err = uc.Restore(ctx, restoring)
	assert.Equal(t, domain.CodeWrongState, domain.CodeOf(err))
}

func TestPurgeDue_UnicoUsuarioAnonimizaFacturasYBorraDatos(t *testing.T) {
	uc, store := newAuth(t)
	res := register(t, uc, "owner@dupont.fr")
	ctx := context.Background()
	repos := store.Repos()
	companyID := res.User.CompanyID
	now := time.Now()

	require.NoError(t, repos.Clients.Create(ctx, &entity.Client{ID: "c1", CompanyID: companyID, Name: "ACME", Email: "client@acme.tld", CreatedAt: now}))
	require.NoError(t, repos.Invoices.Create(ctx, &entity.Invoice{
		ID: "i1", CompanyID: companyID, ClientID: "c1", Number: "FAC-2025-0001",
		Status: entity.InvoiceStatusPaid, InvoiceType: entity.InvoiceTypeInvoice,
		Client: entity.PartySnapshot{Name: "ACME", Email: "client@acme.tld"}, TotalTTC: decimal.NewFromInt(120),
		CreatedAt: now,
	}))

	actor, err := uc.ResolveActor(ctx, res.Token, false)
	require.NoError(t, err)
	_, err = uc.RequestDeletion(ctx, actor)
	require.NoError(t, err)

	n, err := uc.PurgeDue(ctx, now.Add(29*24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = uc.PurgeDue(ctx, now.Add(31*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	u, err := repos.Users.GetByID(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Nil(t, u)

	c, err := repos.Clients.GetByID(ctx, companyID, "c1")
	require.NoError(t, err)
	assert.Nil(t, c)

	inv, err := repos.Invoices.GetByID(ctx, companyID, "i1", true)
	require.NoError(t, err)
	require.NotNil(t, inv, "les factures sont conservées")
	assert.Empty(t, inv.ClientID)
	assert.Empty(t, inv.Client.Email)
	assert.True(t, inv.TotalTTC.Equal(decimal.NewFromInt(120)))

	company, err := repos.Companies.GetByID(ctx, companyID)
	require.NoError(t, err)
	assert.False(t, company.IsActive)
}

func TestRequireTenantYAssertAccess(t *testing.T) {
	owner := &auth.Actor{UserID: "u1", CompanyID: "t1", Role: entity.RoleOwner}
	admin := &auth.Actor{UserID: "root", Role: entity.RoleSuperAdmin}

	tenant, err := auth.RequireTenant(owner)
	require.NoError(t, err)
	assert.Equal(t, "t1", tenant)

	_, err = auth.RequireTenant(admin)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	assert.NoError(t, auth.AssertAccess(owner, "t1"))
	assert.ErrorIs(t, auth.AssertAccess(owner, "t2"), domain.ErrForbidden)
	assert.NoError(t, auth.AssertAccess(admin, "t2"))
	assert.ErrorIs(t, auth.AssertAccess(nil, "t1"), domain.ErrUnauthorized)
}
