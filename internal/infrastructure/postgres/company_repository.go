package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

var (
	_ repository.CompanyRepository      = (*CompanyRepo)(nil)
	_ repository.SubscriptionRepository = (*SubscriptionRepo)(nil)
)

// CompanyRepo implementa repository.CompanyRepository con PostgreSQL.
type CompanyRepo struct {
	q Querier
}

const companyColumns = `id, code, name, sector, siren, siret, vat_number, rcs, legal_form, capital,
	address, postal_code, city, country, email, phone, logo_path, stamp_path,
	is_auto_entrepreneur, vat_exempt, vat_exemption_ref, is_active, created_at, updated_at`

func scanCompany(row pgx.Row) (*entity.Company, error) {
	var c entity.Company
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Sector, &c.Siren, &c.Siret, &c.VATNumber, &c.RCS, &c.LegalForm, &c.Capital,
		&c.Address, &c.PostalCode, &c.City, &c.Country, &c.Email, &c.Phone, &c.LogoPath, &c.StampPath,
		&c.IsAutoEntrepreneur, &c.VATExempt, &c.VATExemptionRef, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CompanyRepo) Create(ctx context.Context, c *entity.Company) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO companies (`+companyColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`,
		c.ID, c.Code, c.Name, c.Sector, c.Siren, c.Siret, c.VATNumber, c.RCS, c.LegalForm, c.Capital,
		c.Address, c.PostalCode, c.City, c.Country, c.Email, c.Phone, c.LogoPath, c.StampPath,
		c.IsAutoEntrepreneur, c.VATExempt, c.VATExemptionRef, c.IsActive, c.CreatedAt, c.UpdatedAt)
	return wrap("insert company", err)
}

func (r *CompanyRepo) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	return one(r.q.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id), "get company", scanCompany)
}

func (r *CompanyRepo) GetByCode(ctx context.Context, code string) (*entity.Company, error) {
	return one(r.q.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE code = $1`, code), "get company by code", scanCompany)
}

func (r *CompanyRepo) Update(ctx context.Context, c *entity.Company) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE companies SET name=$2, sector=$3, siren=$4, siret=$5, vat_number=$6, rcs=$7, legal_form=$8, capital=$9,
			address=$10, postal_code=$11, city=$12, country=$13, email=$14, phone=$15, logo_path=$16, stamp_path=$17,
			is_auto_entrepreneur=$18, vat_exempt=$19, vat_exemption_ref=$20, is_active=$21, updated_at=$22
		WHERE id = $1`,
		c.ID, c.Name, c.Sector, c.Siren, c.Siret, c.VATNumber, c.RCS, c.LegalForm, c.Capital,
		c.Address, c.PostalCode, c.City, c.Country, c.Email, c.Phone, c.LogoPath, c.StampPath,
		c.IsAutoEntrepreneur, c.VATExempt, c.VATExemptionRef, c.IsActive, c.UpdatedAt)
	return affected(tag, err, "update company")
}

// GetSettings sin fila devuelve los valores por defecto; con fila, el JSON normalizado.
func (r *CompanyRepo) GetSettings(ctx context.Context, companyID string) (*entity.CompanySettings, error) {
	var (
		raw       []byte
		updatedAt time.Time
	)
	err := r.q.QueryRow(ctx, `SELECT settings, updated_at FROM company_settings WHERE company_id = $1`, companyID).Scan(&raw, &updatedAt)
	if isNoRows(err) {
		s := entity.DefaultCompanySettings(companyID)
		return &s, nil
	}
	if err != nil {
		return nil, wrap("get settings", err)
	}
	var s entity.CompanySettings
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	s.CompanyID = companyID
	s.UpdatedAt = updatedAt
	s.Normalize()
	return &s, nil
}

func (r *CompanyRepo) SaveSettings(ctx context.Context, s *entity.CompanySettings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO company_settings (company_id, settings, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (company_id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = EXCLUDED.updated_at`,
		s.CompanyID, raw, s.UpdatedAt)
	return wrap("save settings", err)
}

// SubscriptionRepo una fila por tenant.
type SubscriptionRepo struct {
	q Querier
}

func (r *SubscriptionRepo) GetByCompany(ctx context.Context, companyID string) (*entity.Subscription, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, company_id, plan, status, current_period_start, current_period_end, trial_ends_at, amount, created_at, updated_at
		FROM subscriptions WHERE company_id = $1`, companyID)
	return one(row, "get subscription", func(row pgx.Row) (*entity.Subscription, error) {
		var s entity.Subscription
		if err := row.Scan(&s.ID, &s.CompanyID, &s.Plan, &s.Status, &s.CurrentPeriodStart, &s.CurrentPeriodEnd,
			&s.TrialEndsAt, &s.Amount, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		return &s, nil
	})
}

func (r *SubscriptionRepo) Upsert(ctx context.Context, s *entity.Subscription) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO subscriptions (id, company_id, plan, status, current_period_start, current_period_end, trial_ends_at, amount, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (company_id) DO UPDATE SET plan = EXCLUDED.plan, status = EXCLUDED.status,
			current_period_start = EXCLUDED.current_period_start, current_period_end = EXCLUDED.current_period_end,
			trial_ends_at = EXCLUDED.trial_ends_at, amount = EXCLUDED.amount, updated_at = EXCLUDED.updated_at`,
		s.ID, s.CompanyID, s.Plan, s.Status, s.CurrentPeriodStart, s.CurrentPeriodEnd, s.TrialEndsAt, s.Amount, s.CreatedAt, s.UpdatedAt)
	return wrap("upsert subscription", err)
}
