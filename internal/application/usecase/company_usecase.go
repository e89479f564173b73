package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/limits"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/billing"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/followup"
	"github.com/jhoicas/lokario-api/internal/domain/plan"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
	"github.com/jhoicas/lokario-api/pkg/legal"
)

// legalTaxRates tipos de TVA aplicables en Francia (metrópoli, Córcega y DOM).
var legalTaxRates = []decimal.Decimal{
	decimal.Zero,
	decimal.RequireFromString("0.9"),
	decimal.RequireFromString("2.1"),
	decimal.RequireFromString("5.5"),
	decimal.RequireFromString("8.5"),
	decimal.NewFromInt(10),
	decimal.NewFromInt(13),
	decimal.NewFromInt(20),
}

var allFeatures = []string{
	plan.FeatureAppointments, plan.FeatureInbox, plan.FeatureExcelExport,
	plan.FeatureCustomBranding, plan.FeatureAPIAccess, plan.FeatureAdvancedReports,
}

// CompanyUseCase empresa del actor y sus ajustes (GET/PATCH /companies/me[/settings]).
type CompanyUseCase struct {
	tx     repository.TxRunner
	repos  repository.Repos
	limits *limits.Service
	log    zerolog.Logger
}

// NewCompanyUseCase construye el caso de uso.
func NewCompanyUseCase(tx repository.TxRunner, repos repository.Repos, lim *limits.Service, log zerolog.Logger) *CompanyUseCase {
	return &CompanyUseCase{tx: tx, repos: repos, limits: lim, log: log}
}

// Get empresa con plan efectivo, cuotas y uso del mes.
func (uc *CompanyUseCase) Get(ctx context.Context, actor *auth.Actor) (*dto.CompanyResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	company, err := uc.repos.Companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}
	return uc.response(ctx, company)
}

// Update solo el propietario. SIREN y SIRET se validan con su clave de Luhn; el número
// de TVA debe corresponder al SIREN.
func (uc *CompanyUseCase) Update(ctx context.Context, actor *auth.Actor, in dto.UpdateCompanyRequest) (*dto.CompanyResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	if !actor.IsOwner() {
		return nil, domain.ErrForbidden
	}
	var company *entity.Company
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		var err error
		if company, err = r.Companies.GetByID(ctx, companyID); err != nil {
			return err
		}
		if company == nil {
			return domain.ErrNotFound
		}
		if err := applyCompany(company, in); err != nil {
			return err
		}
		return r.Companies.Update(ctx, company)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("company_id", companyID).Str("user_id", actor.UserID).Msg("empresa actualizada")
	return uc.response(ctx, company)
}

func applyCompany(c *entity.Company, in dto.UpdateCompanyRequest) error {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return domain.Validation("name", "le nom est obligatoire")
	}
	set(&c.Name, in.Name)
	set(&c.Sector, in.Sector)
	set(&c.RCS, in.RCS)
	set(&c.LegalForm, in.LegalForm)
	set(&c.Address, in.Address)
	set(&c.PostalCode, in.PostalCode)
	set(&c.City, in.City)
	set(&c.Country, in.Country)
	set(&c.Phone, in.Phone)
	set(&c.LogoPath, in.LogoPath)
	set(&c.StampPath, in.StampPath)
	set(&c.VATExemptionRef, in.VATExemptionRef)
	if in.Email != nil {
		c.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.Capital != nil {
		if in.Capital.IsNegative() {
			return domain.Validation("capital", "le capital ne peut pas être négatif")
		}
		c.Capital = in.Capital.Round(2)
	}
	if in.IsAutoEntrepreneur != nil {
		c.IsAutoEntrepreneur = *in.IsAutoEntrepreneur
	}
	if in.VATExempt != nil {
		c.VATExempt = *in.VATExempt
	}

	if in.Siren != nil {
		siren := compact(*in.Siren)
		if siren != "" {
			if err := legal.ValidateSIREN(siren); err != nil {
				return domain.Validation("siren", legalDetail(err))
			}
		}
		c.Siren = siren
	}
	if in.Siret != nil {
		siret := compact(*in.Siret)
		if siret != "" {
			if err := legal.ValidateSIRET(siret); err != nil {
				return domain.Validation("siret", legalDetail(err))
			}
			if c.Siren == "" {
				c.Siren = legal.SIRENFromSIRET(siret)
			} else if legal.SIRENFromSIRET(siret) != c.Siren {
				return domain.Validation("siret", "le SIRET ne correspond pas au SIREN")
			}
		}
		c.Siret = siret
	}
	if in.VATNumber != nil {
		vat := strings.ToUpper(compact(*in.VATNumber))
		if vat != "" {
			if err := legal.ValidateVATNumber(vat); err != nil {
				return domain.Validation("vat_number", legalDetail(err))
			}
			if c.Siren != "" && vat[4:] != c.Siren {
				return domain.Validation("vat_number", "le numéro de TVA ne correspond pas au SIREN")
			}
		}
		c.VATNumber = vat
	}
	if c.VATExempt && c.VATExemptionRef == "" {
		c.VATExemptionRef = "TVA non applicable, art. 293 B du CGI"
	}
	return nil
}

func (uc *CompanyUseCase) response(ctx context.Context, c *entity.Company) (*dto.CompanyResponse, error) {
	lim, err := uc.limits.Plan(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	usage, err := uc.limits.Usage(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	sub, err := uc.repos.Subscriptions.GetByCompany(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	p := dto.PlanResponse{
		Name:        lim.Plan,
		DisplayName: lim.DisplayName,
		Quotas:      map[string]int{},
		Usage:       usage,
		Features:    map[string]bool{},
	}
	for _, kind := range []string{plan.KindQuote, plan.KindInvoice, plan.KindClient, plan.KindFollowUp} {
		p.Quotas[kind] = lim.Quota(kind)
	}
	for _, f := range allFeatures {
		p.Features[f] = lim.FeatureEnabled(f)
	}
	if sub != nil {
		p.SubscriptionStatus = sub.Status
		p.TrialEndsAt = sub.TrialEndsAt
	}
	return &dto.CompanyResponse{
		ID:                 c.ID,
		Code:               c.Code,
		Name:               c.Name,
		Sector:             c.Sector,
		Siren:              c.Siren,
		Siret:              c.Siret,
		VATNumber:          c.VATNumber,
		RCS:                c.RCS,
		LegalForm:          c.LegalForm,
		Capital:            c.Capital,
		Address:            c.Address,
		PostalCode:         c.PostalCode,
		City:               c.City,
		Country:            c.Country,
		Email:              c.Email,
		Phone:              c.Phone,
		LogoPath:           c.LogoPath,
		StampPath:          c.StampPath,
		IsAutoEntrepreneur: c.IsAutoEntrepreneur,
		VATExempt:          c.VATExempt,
		VATExemptionRef:    c.VATExemptionRef,
		IsActive:           c.IsActive,
		Plan:               p,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}, nil
}

// ── Ajustes ──

// Settings ajustes normalizados del tenant.
func (uc *CompanyUseCase) Settings(ctx context.Context, actor *auth.Actor) (*dto.SettingsResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	s, err := uc.repos.Companies.GetSettings(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return toSettingsResponse(s), nil
}

// UpdateSettings fusiona las secciones recibidas. Solo el propietario.
// Cambiar la numeración no renumera documentos ya emitidos.
func (uc *CompanyUseCase) UpdateSettings(ctx context.Context, actor *auth.Actor, in dto.UpdateSettingsRequest) (*dto.SettingsResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	if !actor.IsOwner() {
		return nil, domain.ErrForbidden
	}
	var s *entity.CompanySettings
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		var err error
		if s, err = r.Companies.GetSettings(ctx, companyID); err != nil {
			return err
		}
		if in.Billing != nil {
			if err := applyBilling(&s.Billing, *in.Billing); err != nil {
				return err
			}
		}
		if in.FollowUps != nil {
			if err := applyFollowUps(&s.FollowUps, *in.FollowUps); err != nil {
				return err
			}
		}
		if in.Inbox != nil {
			if in.Inbox.CompanyKnowledge != nil {
				s.Inbox.CompanyKnowledge = strings.TrimSpace(*in.Inbox.CompanyKnowledge)
			}
			if in.Inbox.SignatureText != nil {
				s.Inbox.SignatureText = strings.TrimSpace(*in.Inbox.SignatureText)
			}
		}
		s.CompanyID = companyID
		return r.Companies.SaveSettings(ctx, s)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("company_id", companyID).Str("user_id", actor.UserID).Msg("ajustes actualizados")
	return toSettingsResponse(s), nil
}

func applyBilling(b *entity.BillingSettings, in dto.BillingSettingsRequest) error {
	if in.AllowedTaxRates != nil {
		if len(in.AllowedTaxRates) == 0 {
			return domain.Validation("billing.allowed_tax_rates", "au moins un taux de TVA est requis")
		}
		rates := make([]decimal.Decimal, 0, len(in.AllowedTaxRates))
		for _, r := range in.AllowedTaxRates {
			if err := billing.ValidateTaxRate(r, legalTaxRates); err != nil {
				return domain.Validation("billing.allowed_tax_rates", fmt.Sprintf("taux %s %% non reconnu en France", r.String()))
			}
			rates = append(rates, r)
		}
		b.AllowedTaxRates = rates
	}
	for _, n := range []struct {
		field string
		in    *dto.NumberingRequest
		dst   *entity.NumberingConfig
	}{
		{"billing.quote_numbering", in.QuoteNumbering, &b.QuoteNumbering},
		{"billing.invoice_numbering", in.InvoiceNumbering, &b.InvoiceNumbering},
		{"billing.credit_note_numbering", in.CreditNoteNumbering, &b.CreditNoteNumbering},
	} {
		if n.in == nil {
			continue
		}
		cfg := entity.NumberingConfig{
			Prefix:      strings.TrimSpace(n.in.Prefix),
			Separator:   n.in.Separator,
			YearFormat:  n.in.YearFormat,
			Padding:     n.in.Padding,
			StartNumber: n.in.StartNumber,
			Suffix:      strings.TrimSpace(n.in.Suffix),
		}
		if err := billing.ValidateNumberingConfig(cfg); err != nil {
			return domain.Validation(n.field, err.Error())
		}
		*n.dst = cfg
	}
	if in.DefaultPaymentTerms != nil {
		b.DefaultPaymentTerms = strings.TrimSpace(*in.DefaultPaymentTerms)
	}
	if in.DefaultDueDays != nil {
		b.DefaultDueDays = *in.DefaultDueDays
	}
	if in.LatePenaltyRate != nil {
		if in.LatePenaltyRate.IsNegative() {
			return domain.Validation("billing.late_penalty_rate", "le taux de pénalité ne peut pas être négatif")
		}
		b.LatePenaltyRate = *in.LatePenaltyRate
	}
	if in.RecoveryFee != nil {
		if in.RecoveryFee.LessThan(decimal.NewFromInt(40)) {
			return domain.Validation("billing.recovery_fee", "l'indemnité forfaitaire de recouvrement est d'au moins 40 €")
		}
		b.RecoveryFee = *in.RecoveryFee
	}
	if in.QuoteValidityDays != nil {
		b.QuoteValidityDays = *in.QuoteValidityDays
	}
	if in.CreditNoteTaxStrategy != nil {
		switch *in.CreditNoteTaxStrategy {
		case entity.CreditNoteTaxZero, entity.CreditNoteTaxMirror:
			b.CreditNoteTaxStrategy = *in.CreditNoteTaxStrategy
		default:
			return domain.Validation("billing.credit_note_tax_strategy", "stratégie inconnue")
		}
	}
	return nil
}

// templateSample valores de prueba para validar las variables de una plantilla.
var templateSample = map[string]string{
	"client_name": "x", "source_label": "x", "amount": "0.00", "company_name": "x", "due_date": "01/01/2025",
}

func applyFollowUps(f *entity.FollowUpSettings, in dto.FollowUpSettingsRequest) error {
	if in.MaxRelances != nil {
		f.MaxRelances = *in.MaxRelances
	}
	if in.RelanceDelays != nil {
		for _, d := range in.RelanceDelays {
			if d < 1 {
				return domain.Validation("followups.relance_delays", "les délais doivent être d'au moins un jour")
			}
		}
		f.RelanceDelays = in.RelanceDelays
	}
	if in.InitialDelayDays != nil {
		f.InitialDelayDays = *in.InitialDelayDays
	}
	if in.RelanceMethods != nil {
		for _, m := range in.RelanceMethods {
			switch m {
			case entity.ChannelEmail, entity.ChannelSMS, entity.ChannelWhatsApp:
			default:
				return domain.Validation("followups.relance_methods", fmt.Sprintf("canal %q inconnu", m))
			}
		}
		f.RelanceMethods = in.RelanceMethods
	}
	if in.Templates != nil {
		templates := make(map[string]string, len(in.Templates))
		for typ, tpl := range in.Templates {
			if strings.TrimSpace(tpl) == "" {
				continue
			}
			if _, err := followup.Render(tpl, templateSample); err != nil {
				return domain.Validation("followups.templates", fmt.Sprintf("%s : %s", typ, domainDetail(err)))
			}
			templates[typ] = tpl
		}
		f.Templates = templates
	}
	return nil
}

func toSettingsResponse(s *entity.CompanySettings) *dto.SettingsResponse {
	num := func(c entity.NumberingConfig) dto.NumberingRequest {
		return dto.NumberingRequest{
			Prefix: c.Prefix, Separator: c.Separator, YearFormat: c.YearFormat,
			Padding: c.Padding, StartNumber: c.StartNumber, Suffix: c.Suffix,
		}
	}
	b := s.Billing
	return &dto.SettingsResponse{
		Billing: dto.BillingSettingsResponse{
			AllowedTaxRates:       b.AllowedTaxRates,
			QuoteNumbering:        num(b.QuoteNumbering),
			InvoiceNumbering:      num(b.InvoiceNumbering),
			CreditNoteNumbering:   num(b.CreditNoteNumbering),
			DefaultPaymentTerms:   b.DefaultPaymentTerms,
			DefaultDueDays:        b.DefaultDueDays,
			LatePenaltyRate:       b.LatePenaltyRate,
			RecoveryFee:           b.RecoveryFee,
			QuoteValidityDays:     b.QuoteValidityDays,
			CreditNoteTaxStrategy: b.CreditNoteTaxStrategy,
		},
		FollowUps: dto.FollowUpSettingsResponse{
			MaxRelances:      s.FollowUps.MaxRelances,
			RelanceDelays:    s.FollowUps.RelanceDelays,
			InitialDelayDays: s.FollowUps.InitialDelayDays,
			RelanceMethods:   s.FollowUps.RelanceMethods,
			Templates:        s.FollowUps.Templates,
		},
		Inbox: dto.InboxSettingsResponse{
			CompanyKnowledge: s.Inbox.CompanyKnowledge,
			SignatureText:    s.Inbox.SignatureText,
		},
		UpdatedAt: s.UpdatedAt,
	}
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func legalDetail(err error) string {
	return strings.TrimPrefix(err.Error(), "legal: ")
}

func domainDetail(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Detail
	}
	return err.Error()
}
