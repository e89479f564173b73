package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/inbox"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
	"github.com/jhoicas/lokario-api/pkg/jwt"
)

// TrialPeriod duración de la prueba gratuita tras el registro.
const TrialPeriod = 14 * 24 * time.Hour

// JWTConfig configuración para generación de tokens.
type JWTConfig struct {
	Secret     string
	ExpMinutes int
	Issuer     string
}

// AuthUseCase casos de uso de autenticación: registro, login, resolución del actor y borrado de cuenta.
type AuthUseCase struct {
	tx     repository.TxRunner
	users  repository.UserRepository
	jwtCfg JWTConfig
	log    zerolog.Logger
	// Clock reloj inyectable (tests).
	Clock func() time.Time
}

// NewAuthUseCase construye el caso de uso de auth.
func NewAuthUseCase(tx repository.TxRunner, users repository.UserRepository, jwtCfg JWTConfig, log zerolog.Logger) *AuthUseCase {
	return &AuthUseCase{tx: tx, users: users, jwtCfg: jwtCfg, log: log, Clock: time.Now}
}

// Register crea empresa, propietario, suscripción en prueba, ajustes por defecto y carpetas de sistema
// en una sola transacción. Devuelve ErrEmailAlreadyExists si el email ya existe.
func (uc *AuthUseCase) Register(ctx context.Context, in dto.RegisterRequest) (*dto.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	existing, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrEmailAlreadyExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := uc.Clock()
	planName := in.Plan
	if planName == "" {
		planName = entity.PlanStarter
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = inbox.NameFromEmail(email)
	}

	company := &entity.Company{
		ID:        uuid.New().String(),
		Code:      companyCode(in.CompanyName),
		Name:      strings.TrimSpace(in.CompanyName),
		Sector:    in.Sector,
		Country:   "France",
		Email:     email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	user := &entity.User{
		ID:           uuid.New().String(),
		CompanyID:    company.ID,
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         entity.RoleOwner,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	trialEnd := now.Add(TrialPeriod)
	sub := &entity.Subscription{
		ID:                 uuid.New().String(),
		CompanyID:          company.ID,
		Plan:               planName,
		Status:             entity.SubscriptionTrialing,
		CurrentPeriodStart: &now,
		CurrentPeriodEnd:   &trialEnd,
		TrialEndsAt:        &trialEnd,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	settings := entity.DefaultCompanySettings(company.ID)
	settings.UpdatedAt = now

	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		if err := r.Companies.Create(ctx, company); err != nil {
			return fmt.Errorf("crear empresa: %w", err)
		}
		if err := r.Users.Create(ctx, user); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				return domain.ErrEmailAlreadyExists
			}
			return fmt.Errorf("crear propietario: %w", err)
		}
		if err := r.Subscriptions.Upsert(ctx, sub); err != nil {
			return fmt.Errorf("crear suscripción: %w", err)
		}
		if err := r.Companies.SaveSettings(ctx, &settings); err != nil {
			return fmt.Errorf("guardar ajustes: %w", err)
		}
		for _, f := range SystemFolders(company.ID, now) {
			if err := r.Folders.Create(ctx, &f); err != nil {
				return fmt.Errorf("crear carpeta %s: %w", f.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("company_id", company.ID).Str("plan", planName).Msg("nueva empresa registrada")
	return uc.issue(user)
}

// Login verifica email/password, genera JWT y retorna token + usuario.
// Una cuenta en periodo de borrado puede iniciar sesión para poder restaurarse.
func (uc *AuthUseCase) Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := uc.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, domain.ErrUnauthorized
	}
	if !user.IsActive {
		return nil, domain.ErrForbidden
	}
	return uc.issue(user)
}

// ResolveActor valida el token y carga el usuario. allowPendingDeletion solo se usa en la restauración de cuenta.
func (uc *AuthUseCase) ResolveActor(ctx context.Context, token string, allowPendingDeletion bool) (*Actor, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	id, err := jwt.Parse(uc.jwtCfg.Secret, token)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	user, err := uc.users.GetByID(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUnauthorized
	}
	if !user.IsActive {
		return nil, domain.ErrForbidden
	}
	if !allowPendingDeletion && user.InDeletionGrace(uc.Clock()) {
		return nil, &domain.Error{
			Kind:   domain.ErrForbidden,
			Code:   domain.CodeAccountPendingDeletion,
			Detail: "compte en cours de suppression : restaurez-le pour continuer",
		}
	}
	return actorFromUser(user), nil
}

// Me devuelve el usuario del actor.
func (uc *AuthUseCase) Me(ctx context.Context, actor *Actor) (*dto.UserResponse, error) {
	user, err := uc.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return toUserResponse(user), nil
}

// RequestDeletion abre la ventana de gracia de 30 días.
func (uc *AuthUseCase) RequestDeletion(ctx context.Context, actor *Actor) (*dto.DeletionResponse, error) {
	user, err := uc.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	now := uc.Clock()
	if user.DeletionRequestedAt == nil {
		scheduled := now.Add(entity.DeletionGracePeriod)
		user.DeletionRequestedAt = &now
		user.DeletionScheduledAt = &scheduled
		user.UpdatedAt = now
		if err := uc.users.Update(ctx, user); err != nil {
			return nil, err
		}
		uc.log.Info().Str("user_id", user.ID).Time("scheduled_at", scheduled).Msg("borrado de cuenta solicitado")
	}
	return &dto.DeletionResponse{DeletionRequestedAt: user.DeletionRequestedAt, DeletionScheduledAt: user.DeletionScheduledAt}, nil
}

// Restore cancela un borrado pendiente. Fuera de la ventana de gracia devuelve wrong_state.
func (uc *AuthUseCase) Restore(ctx context.Context, actor *Actor) (*dto.UserResponse, error) {
	user, err := uc.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	now := uc.Clock()
	if !user.InDeletionGrace(now) {
		return nil, domain.Conflict(domain.CodeWrongState, "aucune suppression de compte en attente")
	}
	user.DeletionRequestedAt = nil
	user.DeletionScheduledAt = nil
	user.UpdatedAt = now
	if err := uc.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

// PurgeDue borra definitivamente las cuentas cuya ventana de gracia terminó.
// Si el usuario es el único de su empresa, los datos operativos se borran y las facturas se anonimizan.
// Cada usuario se purga en su propia transacción; un fallo no detiene el resto.
func (uc *AuthUseCase) PurgeDue(ctx context.Context, now time.Time) (int, error) {
	due, err := uc.users.ListDeletionDue(ctx, now)
	if err != nil {
		return 0, err
	}
	purged := 0
	var errs []error
	for _, u := range due {
		if err := uc.purge(ctx, u); err != nil {
			uc.log.Error().Err(err).Str("user_id", u.ID).Msg("purga de cuenta")
			errs = append(errs, err)
			continue
		}
		purged++
	}
	return purged, errors.Join(errs...)
}

func (uc *AuthUseCase) purge(ctx context.Context, u *entity.User) error {
	return uc.tx.Run(ctx, func(r repository.Repos) error {
		if u.CompanyID != "" {
			n, err := r.Users.CountByCompany(ctx, u.CompanyID)
			if err != nil {
				return err
			}
			if n == 1 {
				if err := purgeCompanyData(ctx, r, u.CompanyID); err != nil {
					return err
				}
			}
		}
		return r.Users.Delete(ctx, u.ID)
	})
}

// purgeCompanyData borra los datos operativos del tenant. Las facturas se conservan anonimizadas
// (obligación de conservación) y la empresa queda inactiva.
func purgeCompanyData(ctx context.Context, r repository.Repos, companyID string) error {
	if err := r.Invoices.AnonymizeByCompany(ctx, companyID); err != nil {
		return fmt.Errorf("anonimizar facturas: %w", err)
	}
	steps := []struct {
		name string
		run  func(context.Context, string) error
	}{
		{"clients", r.Clients.DeleteByCompany},
		{"quotes", r.Quotes.DeleteByCompany},
		{"tasks", r.Tasks.DeleteByCompany},
		{"followups", r.FollowUps.DeleteByCompany},
		{"conversations", r.Conversations.DeleteByCompany},
		{"appointments", r.Appointments.DeleteByCompany},
	}
	for _, s := range steps {
		if err := s.run(ctx, companyID); err != nil {
			return fmt.Errorf("borrar %s: %w", s.name, err)
		}
	}
	company, err := r.Companies.GetByID(ctx, companyID)
	if err != nil {
		return err
	}
	if company != nil {
		company.IsActive = false
		company.UpdatedAt = time.Now()
		if err := r.Companies.Update(ctx, company); err != nil {
			return fmt.Errorf("desactivar empresa: %w", err)
		}
	}
	return nil
}

func (uc *AuthUseCase) issue(user *entity.User) (*dto.LoginResponse, error) {
	token, err := jwt.Generate(uc.jwtCfg.Secret, user.ID, user.CompanyID, user.Role, uc.jwtCfg.Issuer, uc.jwtCfg.ExpMinutes)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		Token:     token,
		TokenType: "bearer",
		User:      *toUserResponse(user),
	}, nil
}

// SystemFolders carpetas creadas con cada empresa; no se pueden borrar.
func SystemFolders(companyID string, now time.Time) []entity.InboxFolder {
	mk := func(name, color, folderType string) entity.InboxFolder {
		return entity.InboxFolder{
			ID:         uuid.New().String(),
			CompanyID:  companyID,
			Name:       name,
			Color:      color,
			FolderType: folderType,
			IsSystem:   true,
			AutoReply:  entity.FolderAutoReply{Mode: entity.AutoReplyNone},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}
	return []entity.InboxFolder{
		mk("Général", "#3B82F6", "general"),
		mk("Spam", "#9CA3AF", "spam"),
	}
}

// companyCode slug del nombre + sufijo aleatorio (único por construcción salvo colisión improbable).
func companyCode(name string) string {
	var b strings.Builder
	for _, r := range inbox.Fold(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "-"):
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 32 {
		slug = strings.Trim(slug[:32], "-")
	}
	if slug == "" {
		slug = "entreprise"
	}
	suffix := make([]byte, 3)
	_, _ = rand.Read(suffix)
	return slug + "-" + hex.EncodeToString(suffix)
}

func toUserResponse(u *entity.User) *dto.UserResponse {
	if u == nil {
		return nil
	}
	return &dto.UserResponse{
		ID:                  u.ID,
		CompanyID:           u.CompanyID,
		Email:               u.Email,
		Name:                u.Name,
		Role:                u.Role,
		IsActive:            u.IsActive,
		EmailVerified:       u.EmailVerified,
		CanCreateTasks:      u.CanCreateTasks,
		CanEditTasks:        u.CanEditTasks,
		CanDeleteTasks:      u.CanDeleteTasks,
		DeletionScheduledAt: u.DeletionScheduledAt,
		CreatedAt:           u.CreatedAt,
		UpdatedAt:           u.UpdatedAt,
	}
}
