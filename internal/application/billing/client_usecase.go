package billing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/limits"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/plan"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
	"github.com/jhoicas/lokario-api/pkg/legal"
	"github.com/jhoicas/lokario-api/pkg/phone"
)

// ClientUseCase casos de uso para clientes y prospects.
type ClientUseCase struct {
	tx     repository.TxRunner
	repo   repository.ClientRepository
	limits *limits.Service
	Clock  func() time.Time
}

// NewClientUseCase construye el caso de uso.
func NewClientUseCase(tx repository.TxRunner, repo repository.ClientRepository, lim *limits.Service) *ClientUseCase {
	return &ClientUseCase{tx: tx, repo: repo, limits: lim, Clock: time.Now}
}

// Create crea un cliente respetando la cuota del plan.
func (uc *ClientUseCase) Create(ctx context.Context, actor *auth.Actor, in dto.CreateClientRequest) (*dto.ClientResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.Validation("name", "le nom est obligatoire")
	}
	siren, err := normalizeSiren(in.Siren)
	if err != nil {
		return nil, err
	}
	now := uc.Clock()
	client := &entity.Client{
		ID:         uuid.New().String(),
		CompanyID:  companyID,
		Name:       name,
		Type:       clientType(in.Type),
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:      phone.Normalize(in.Phone),
		Address:    strings.TrimSpace(in.Address),
		PostalCode: strings.TrimSpace(in.PostalCode),
		City:       strings.TrimSpace(in.City),
		Country:    strings.TrimSpace(in.Country),
		Siren:      siren,
		Sector:     strings.TrimSpace(in.Sector),
		Tags:       cleanTags(in.Tags),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		if err := uc.limits.CheckQuotaIn(ctx, r, companyID, plan.KindClient); err != nil {
			return err
		}
		return r.Clients.Create(ctx, client)
	})
	if err != nil {
		return nil, err
	}
	return ToClientResponse(client), nil
}

// Get devuelve un cliente del tenant.
func (uc *ClientUseCase) Get(ctx context.Context, actor *auth.Actor, id string) (*dto.ClientResponse, error) {
	c, err := uc.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return ToClientResponse(c), nil
}

// Update aplica los campos presentes.
func (uc *ClientUseCase) Update(ctx context.Context, actor *auth.Actor, id string, in dto.UpdateClientRequest) (*dto.ClientResponse, error) {
	c, err := uc.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, domain.Validation("name", "le nom est obligatoire")
		}
		c.Name = name
	}
	if in.Type != nil {
		c.Type = clientType(*in.Type)
	}
	if in.Email != nil {
		c.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.Phone != nil {
		c.Phone = phone.Normalize(*in.Phone)
	}
	if in.Address != nil {
		c.Address = strings.TrimSpace(*in.Address)
	}
	if in.PostalCode != nil {
		c.PostalCode = strings.TrimSpace(*in.PostalCode)
	}
	if in.City != nil {
		c.City = strings.TrimSpace(*in.City)
	}
	if in.Country != nil {
		c.Country = strings.TrimSpace(*in.Country)
	}
	if in.Siren != nil {
		siren, err := normalizeSiren(*in.Siren)
		if err != nil {
			return nil, err
		}
		c.Siren = siren
	}
	if in.Sector != nil {
		c.Sector = strings.TrimSpace(*in.Sector)
	}
	if in.Tags != nil {
		c.Tags = cleanTags(in.Tags)
	}
	c.UpdatedAt = uc.Clock()
	if err := uc.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return ToClientResponse(c), nil
}

// Delete borra el cliente. Los documentos emitidos conservan su snapshot.
func (uc *ClientUseCase) Delete(ctx context.Context, actor *auth.Actor, id string) error {
	c, err := uc.load(ctx, actor, id)
	if err != nil {
		return err
	}
	return uc.repo.Delete(ctx, c.CompanyID, c.ID)
}

// List listado paginado con búsqueda libre y filtro de tipo.
func (uc *ClientUseCase) List(ctx context.Context, actor *auth.Actor, search, typ string, page dto.PageRequest) (*dto.ClientListResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	page.DefaultPage()
	list, total, err := uc.repo.List(ctx, companyID, repository.ClientFilter{
		Search: strings.TrimSpace(search),
		Type:   typ,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return nil, err
	}
	out := &dto.ClientListResponse{
		Items: make([]dto.ClientResponse, 0, len(list)),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: total},
	}
	for _, c := range list {
		out.Items = append(out.Items, *ToClientResponse(c))
	}
	return out, nil
}

func (uc *ClientUseCase) load(ctx context.Context, actor *auth.Actor, id string) (*entity.Client, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	c, err := uc.repo.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

// ToClientResponse entidad -> DTO.
func ToClientResponse(c *entity.Client) *dto.ClientResponse {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return &dto.ClientResponse{
		ID:         c.ID,
		Name:       c.Name,
		Type:       c.Type,
		Email:      c.Email,
		Phone:      c.Phone,
		Address:    c.Address,
		PostalCode: c.PostalCode,
		City:       c.City,
		Country:    c.Country,
		Siren:      c.Siren,
		Sector:     c.Sector,
		Tags:       tags,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func clientType(t string) string {
	if t == entity.ClientTypeProspect {
		return entity.ClientTypeProspect
	}
	return entity.ClientTypeClient
}

// normalizeSiren valida y deja solo las cifras; vacío es válido.
func normalizeSiren(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if err := legal.ValidateSIREN(raw); err != nil {
		return "", domain.Validation("siren", strings.TrimPrefix(err.Error(), "legal: "))
	}
	return strings.Join(strings.Fields(raw), ""), nil
}

func cleanTags(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
