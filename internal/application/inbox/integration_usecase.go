package inbox

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/limits"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/plan"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
	"github.com/jhoicas/lokario-api/pkg/phone"
	"github.com/jhoicas/lokario-api/pkg/secrets"
)

// DefaultSyncInterval intervalo de sincronización IMAP por defecto (minutos).
const DefaultSyncInterval = 5

// IntegrationUseCase fuentes de mensajes del tenant; los secretos se guardan cifrados.
type IntegrationUseCase struct {
	tx     repository.TxRunner
	repos  repository.Repos
	limits *limits.Service
	cipher *secrets.Cipher
	sync   *SyncService
	log    zerolog.Logger
	Clock  func() time.Time
}

// NewIntegrationUseCase construye el caso de uso.
func NewIntegrationUseCase(tx repository.TxRunner, repos repository.Repos, lim *limits.Service, cipher *secrets.Cipher, sync *SyncService, log zerolog.Logger) *IntegrationUseCase {
	return &IntegrationUseCase{tx: tx, repos: repos, limits: lim, cipher: cipher, sync: sync, log: log, Clock: time.Now}
}

// List integraciones del tenant sin secretos.
func (uc *IntegrationUseCase) List(ctx context.Context, actor *auth.Actor) ([]dto.IntegrationResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	list, err := uc.repos.Integrations.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.IntegrationResponse, 0, len(list))
	for _, i := range list {
		out = append(out, toIntegrationResponse(i))
	}
	return out, nil
}

// Create da de alta una integración. Requiere la funcionalidad inbox del plan.
func (uc *IntegrationUseCase) Create(ctx context.Context, actor *auth.Actor, in dto.IntegrationRequest) (*dto.IntegrationResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	if err := uc.limits.RequireFeature(ctx, companyID, plan.FeatureInbox); err != nil {
		return nil, err
	}
	now := uc.Clock()
	integ := &entity.InboxIntegration{
		ID:        uuid.New().String(),
		CompanyID: companyID,
		Kind:      in.Kind,
		IsActive:  true,
		CreatedAt: now,
	}
	if err := uc.apply(integ, in); err != nil {
		return nil, err
	}
	integ.UpdatedAt = now
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		if err := uc.demoteOthers(ctx, r, integ); err != nil {
			return err
		}
		return r.Integrations.Create(ctx, integ)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("company_id", companyID).Str("kind", integ.Kind).Msg("inbox: integración creada")
	res := toIntegrationResponse(integ)
	return &res, nil
}

// Update modifica la integración; los secretos vacíos conservan el valor guardado.
func (uc *IntegrationUseCase) Update(ctx context.Context, actor *auth.Actor, id string, in dto.IntegrationRequest) (*dto.IntegrationResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	var integ *entity.InboxIntegration
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		if integ, err = loadIntegration(ctx, r, companyID, id); err != nil {
			return err
		}
		if in.Kind != integ.Kind {
			return domain.Validation("kind", "le type d'intégration ne peut pas être modifié")
		}
		if err := uc.apply(integ, in); err != nil {
			return err
		}
		integ.UpdatedAt = uc.Clock()
		if err := uc.demoteOthers(ctx, r, integ); err != nil {
			return err
		}
		return r.Integrations.Update(ctx, integ)
	})
	if err != nil {
		return nil, err
	}
	res := toIntegrationResponse(integ)
	return &res, nil
}

// Delete borra la integración. Las conversaciones ya ingeridas se conservan.
func (uc *IntegrationUseCase) Delete(ctx context.Context, actor *auth.Actor, id string) error {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return err
	}
	return uc.repos.Integrations.Delete(ctx, companyID, id)
}

// Sync sincronización manual inmediata, sin esperar al intervalo.
func (uc *IntegrationUseCase) Sync(ctx context.Context, actor *auth.Actor, id string) (*dto.SyncResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	integ, err := loadIntegration(ctx, uc.repos, companyID, id)
	if err != nil {
		return nil, err
	}
	if !integ.IsActive {
		return nil, domain.Conflict(domain.CodeWrongState, "intégration désactivée")
	}
	return uc.sync.SyncIntegration(ctx, integ), nil
}

func (uc *IntegrationUseCase) apply(integ *entity.InboxIntegration, in dto.IntegrationRequest) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Validation("name", "le nom est obligatoire")
	}
	address := strings.TrimSpace(in.AccountAddress)
	switch in.Kind {
	case entity.IntegrationSMS, entity.IntegrationWhatsApp:
		address = phone.Normalize(address)
	case entity.IntegrationIMAP, entity.IntegrationEmailWebhook:
		address = strings.ToLower(address)
	case entity.IntegrationMessenger:
	default:
		return domain.Validation("kind", "type d'intégration inconnu")
	}
	if address == "" {
		return domain.Validation("account_address", "l'adresse du compte est obligatoire")
	}
	if in.Kind == entity.IntegrationIMAP && (strings.TrimSpace(in.IMAPHost) == "" || in.IMAPPort == 0) {
		return domain.Validation("imap_host", "serveur et port IMAP obligatoires")
	}

	integ.Name = name
	integ.AccountAddress = address
	integ.IsPrimary = in.IsPrimary
	if in.IsActive != nil {
		integ.IsActive = *in.IsActive
	}
	integ.IMAPHost = strings.TrimSpace(in.IMAPHost)
	integ.IMAPPort = in.IMAPPort
	integ.SMTPHost = strings.TrimSpace(in.SMTPHost)
	integ.SMTPPort = in.SMTPPort
	integ.UseSSL = in.UseSSL
	integ.Username = strings.TrimSpace(in.Username)
	integ.SyncIntervalMinutes = in.SyncIntervalMinutes
	if integ.SyncIntervalMinutes <= 0 {
		integ.SyncIntervalMinutes = DefaultSyncInterval
	}

	for _, s := range []struct {
		plain string
		dst   *string
	}{
		{in.Password, &integ.PasswordEnc},
		{in.APIKey, &integ.APIKeyEnc},
		{in.APISecret, &integ.APISecretEnc},
		{in.WebhookSecret, &integ.WebhookSecretEnc},
	} {
		if s.plain == "" {
			continue
		}
		enc, err := uc.cipher.Encrypt(s.plain)
		if err != nil {
			return err
		}
		*s.dst = enc
	}
	return nil
}

// demoteOthers deja una sola integración principal por tipo.
func (uc *IntegrationUseCase) demoteOthers(ctx context.Context, r repository.Repos, integ *entity.InboxIntegration) error {
	if !integ.IsPrimary {
		return nil
	}
	list, err := r.Integrations.ListByCompany(ctx, integ.CompanyID)
	if err != nil {
		return err
	}
	for _, other := range list {
		if other.ID == integ.ID || other.Kind != integ.Kind || !other.IsPrimary {
			continue
		}
		other.IsPrimary = false
		if err := r.Integrations.Update(ctx, other); err != nil {
			return err
		}
	}
	return nil
}

func loadIntegration(ctx context.Context, r repository.Repos, companyID, id string) (*entity.InboxIntegration, error) {
	i, err := r.Integrations.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if i == nil {
		return nil, domain.ErrNotFound
	}
	return i, nil
}

func toIntegrationResponse(i *entity.InboxIntegration) dto.IntegrationResponse {
	return dto.IntegrationResponse{
		ID:                  i.ID,
		Kind:                i.Kind,
		Name:                i.Name,
		AccountAddress:      i.AccountAddress,
		IsPrimary:           i.IsPrimary,
		IsActive:            i.IsActive,
		IMAPHost:            i.IMAPHost,
		IMAPPort:            i.IMAPPort,
		SMTPHost:            i.SMTPHost,
		SMTPPort:            i.SMTPPort,
		UseSSL:              i.UseSSL,
		Username:            i.Username,
		HasPassword:         i.PasswordEnc != "",
		HasAPIKey:           i.APIKeyEnc != "",
		HasWebhookSecret:    i.WebhookSecretEnc != "",
		SyncIntervalMinutes: i.SyncIntervalMinutes,
		LastSyncAt:          i.LastSyncAt,
		LastSyncStatus:      i.LastSyncStatus,
		LastSyncError:       i.LastSyncError,
	}
}
