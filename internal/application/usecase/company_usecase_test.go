package usecase_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/limits"
	"github.com/jhoicas/lokario-api/internal/application/usecase"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/plan"
	"github.com/jhoicas/lokario-api/internal/testutil/memstore"
)

func str(s string) *string { return &s }

func setup(t *testing.T) (*usecase.CompanyUseCase, *usecase.UserUseCase, *auth.Actor) {
	t.Helper()
	store := memstore.New()
	repos := store.Repos()
	ctx := context.Background()
	require.NoError(t, repos.Companies.Create(ctx, &entity.Company{ID: "T1", Code: "atelier", Name: "Atelier", IsActive: true}))
	require.NoError(t, repos.Users.Create(ctx, &entity.User{ID: "u1", CompanyID: "T1", Email: "owner@atelier.fr", Role: entity.RoleOwner, IsActive: true}))
	companies := usecase.NewCompanyUseCase(store, repos, limits.NewService(repos), zerolog.Nop())
	users := usecase.NewUserUseCase(repos.Users, zerolog.Nop())
	return companies, users, &auth.Actor{UserID: "u1", CompanyID: "T1", Role: entity.RoleOwner}
}

func TestCompany_IdentificadoresLegales(t *testing.T) {
	uc, _, owner := setup(t)
	ctx := context.Background()

	_, err := uc.Update(ctx, owner, dto.UpdateCompanyRequest{Siren: str("732829321")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	res, err := uc.Update(ctx, owner, dto.UpdateCompanyRequest{Siret: str("732 829 320 00074")})
	require.NoError(t, err)
	assert.Equal(t, "73282932000074", res.Siret)
	assert.Equal(t, "732829320", res.Siren, "el SIREN se deduce del SIRET")

	_, err = uc.Update(ctx, owner, dto.UpdateCompanyRequest{VATNumber: str("FR45732829320")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	res, err = uc.Update(ctx, owner, dto.UpdateCompanyRequest{VATNumber: str("fr44 732829320"), Name: str("Atelier Dupont")})
	require.NoError(t, err)
	assert.Equal(t, "FR44732829320", res.VATNumber)
	assert.Equal(t, "Atelier Dupont", res.Name)

	assert.Equal(t, entity.PlanStarter, res.Plan.Name)
	assert.Equal(t, 20, res.Plan.Quotas[plan.KindInvoice])
	assert.False(t, res.Plan.Features[plan.FeatureInbox])

	member := &auth.Actor{UserID: "u2", CompanyID: "T1", Role: entity.RoleUser}
	_, err = uc.Update(ctx, member, dto.UpdateCompanyRequest{Name: str("X")})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := uc.Get(ctx, member)
	require.NoError(t, err)
	assert.Equal(t, "Atelier Dupont", got.Name)
}

func TestSettings_ValidacionYFusion(t *testing.T) {
	uc, _, owner := setup(t)
	ctx := context.Background()

	s, err := uc.Settings(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 3, s.FollowUps.MaxRelances)

	_, err = uc.UpdateSettings(ctx, owner, dto.UpdateSettingsRequest{Billing: &dto.BillingSettingsRequest{
		AllowedTaxRates: []decimal.Decimal{decimal.NewFromInt(19)},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = uc.UpdateSettings(ctx, owner, dto.UpdateSettingsRequest{FollowUps: &dto.FollowUpSettingsRequest{
		Templates: map[string]string{entity.FollowUpTypeUnpaidInvoice: "Bonjour {nom_inconnu}"},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	maxRelances := 5
	s, err = uc.UpdateSettings(ctx, owner, dto.UpdateSettingsRequest{
		Billing: &dto.BillingSettingsRequest{
			AllowedTaxRates:  []decimal.Decimal{decimal.NewFromInt(20), decimal.RequireFromString("5.5")},
			InvoiceNumbering: &dto.NumberingRequest{Prefix: "FAC", Separator: "-", YearFormat: "YYYY", Padding: 4, StartNumber: 1},
		},
		FollowUps: &dto.FollowUpSettingsRequest{MaxRelances: &maxRelances},
	})
	require.NoError(t, err)
	assert.Len(t, s.Billing.AllowedTaxRates, 2)
	assert.Equal(t, "FAC", s.Billing.InvoiceNumbering.Prefix)
	assert.Equal(t, 5, s.FollowUps.MaxRelances)
	assert.Equal(t, []int{7, 14, 21}, s.FollowUps.RelanceDelays, "las secciones ausentes no cambian")
}

func TestUser_GestionDelEquipo(t *testing.T) {
	_, uc, owner := setup(t)
	ctx := context.Background()

	m, err := uc.Create(ctx, owner, dto.CreateMemberRequest{Email: "Marie@Atelier.fr", Password: "motdepasse", CanCreateTasks: true})
	require.NoError(t, err)
	assert.Equal(t, "marie@atelier.fr", m.Email)
	assert.Equal(t, entity.RoleUser, m.Role)
	assert.True(t, m.CanCreateTasks)
	assert.False(t, m.CanDeleteTasks)

	_, err = uc.Create(ctx, owner, dto.CreateMemberRequest{Email: "marie@atelier.fr", Password: "motdepasse"})
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)

	yes := true
	m, err = uc.Update(ctx, owner, m.ID, dto.UpdateMemberRequest{CanDeleteTasks: &yes})
	require.NoError(t, err)
	assert.True(t, m.CanDeleteTasks)

	no := false
	_, err = uc.Update(ctx, owner, owner.UserID, dto.UpdateMemberRequest{IsActive: &no})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	member := &auth.Actor{UserID: m.ID, CompanyID: "T1", Role: entity.RoleUser}
	_, err = uc.Create(ctx, member, dto.CreateMemberRequest{Email: "x@atelier.fr", Password: "motdepasse"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	outsider := &auth.Actor{UserID: "z", CompanyID: "T2", Role: entity.RoleOwner}
	assert.ErrorIs(t, uc.Delete(ctx, outsider, m.ID), domain.ErrNotFound)
	assert.Equal(t, domain.CodeWrongState, domain.CodeOf(uc.Delete(ctx, owner, owner.UserID)))

	require.NoError(t, uc.Delete(ctx, owner, m.ID))
	list, err := uc.List(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
