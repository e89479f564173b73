package inbox

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// FolderUseCase carpetas de la bandeja y sus reglas.
type FolderUseCase struct {
	tx    repository.TxRunner
	repos repository.Repos
	Clock func() time.Time
}

// NewFolderUseCase construye el caso de uso.
func NewFolderUseCase(tx repository.TxRunner, repos repository.Repos) *FolderUseCase {
	return &FolderUseCase{tx: tx, repos: repos, Clock: time.Now}
}

// List carpetas del tenant.
func (uc *FolderUseCase) List(ctx context.Context, actor *auth.Actor) ([]dto.FolderResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	folders, err := uc.repos.Folders.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.FolderResponse, 0, len(folders))
	for i := range folders {
		out = append(out, toFolderResponse(&folders[i]))
	}
	return out, nil
}

// Create añade una carpeta de usuario.
func (uc *FolderUseCase) Create(ctx context.Context, actor *auth.Actor, in dto.FolderRequest) (*dto.FolderResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	now := uc.Clock()
	f := &entity.InboxFolder{
		ID:         uuid.New().String(),
		CompanyID:  companyID,
		FolderType: "custom",
		AutoReply:  entity.FolderAutoReply{Mode: entity.AutoReplyNone},
		CreatedAt:  now,
	}
	if err := applyFolder(f, in); err != nil {
		return nil, err
	}
	f.UpdatedAt = now
	if err := uc.repos.Folders.Create(ctx, f); err != nil {
		return nil, err
	}
	res := toFolderResponse(f)
	return &res, nil
}

// Update modifica nombre, reglas y política de respuesta. Las carpetas de sistema
// conservan nombre y tipo.
func (uc *FolderUseCase) Update(ctx context.Context, actor *auth.Actor, id string, in dto.FolderRequest) (*dto.FolderResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	f, err := uc.repos.Folders.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, domain.ErrNotFound
	}
	name, folderType := f.Name, f.FolderType
	if err := applyFolder(f, in); err != nil {
		return nil, err
	}
	if f.IsSystem {
		f.Name, f.FolderType = name, folderType
	}
	f.UpdatedAt = uc.Clock()
	if err := uc.repos.Folders.Update(ctx, f); err != nil {
		return nil, err
	}
	res := toFolderResponse(f)
	return &res, nil
}

// Delete borra una carpeta de usuario; sus conversaciones quedan sin carpeta.
func (uc *FolderUseCase) Delete(ctx context.Context, actor *auth.Actor, id string) error {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return err
	}
	f, err := uc.repos.Folders.GetByID(ctx, companyID, id)
	if err != nil {
		return err
	}
	if f == nil {
		return domain.ErrNotFound
	}
	if f.IsSystem {
		return domain.NewError(domain.ErrForbidden, domain.CodeWrongState, "un dossier système ne peut pas être supprimé")
	}
	return uc.repos.Folders.Delete(ctx, companyID, id)
}

func applyFolder(f *entity.InboxFolder, in dto.FolderRequest) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Validation("name", "le nom du dossier est obligatoire")
	}
	f.Name = name
	f.Color = strings.TrimSpace(in.Color)
	if t := strings.TrimSpace(in.FolderType); t != "" {
		f.FolderType = t
	}
	if in.AIRules != nil {
		r := in.AIRules
		f.AIRules = entity.FolderAIRules{
			AutoClassify: r.AutoClassify,
			Priority:     r.Priority,
			Context:      strings.TrimSpace(r.Context),
			Filters: entity.FolderFilters{
				Keywords:         cleanList(r.Filters.Keywords),
				KeywordsLocation: r.Filters.KeywordsLocation,
				SenderEmail:      cleanList(r.Filters.SenderEmail),
				SenderDomain:     cleanList(r.Filters.SenderDomain),
				SenderPhone:      cleanList(r.Filters.SenderPhone),
				MatchType:        r.Filters.MatchType,
			},
		}
		if f.AIRules.Filters.MatchType == "" {
			f.AIRules.Filters.MatchType = "any"
		}
		if f.AIRules.Filters.KeywordsLocation == "" {
			f.AIRules.Filters.KeywordsLocation = "any"
		}
	}
	if in.AutoReply != nil {
		a := in.AutoReply
		mode := a.Mode
		if mode == "" {
			mode = entity.AutoReplyNone
		}
		switch mode {
		case entity.AutoReplyNone, entity.AutoReplyApproval, entity.AutoReplyAuto:
		default:
			return domain.Validation("auto_reply.mode", "mode de réponse automatique inconnu")
		}
		if a.Delay < 0 {
			return domain.Validation("auto_reply.delay", "le délai doit être positif")
		}
		f.AutoReply = entity.FolderAutoReply{
			Enabled:             a.Enabled,
			Mode:                mode,
			Template:            strings.TrimSpace(a.Template),
			AIGenerate:          a.AIGenerate,
			Delay:               a.Delay,
			UseCompanyKnowledge: a.UseCompanyKnowledge,
		}
	}
	return nil
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func toFolderResponse(f *entity.InboxFolder) dto.FolderResponse {
	return dto.FolderResponse{
		ID:         f.ID,
		Name:       f.Name,
		Color:      f.Color,
		FolderType: f.FolderType,
		IsSystem:   f.IsSystem,
		AIRules: dto.FolderAIRulesRequest{
			AutoClassify: f.AIRules.AutoClassify,
			Priority:     f.AIRules.Priority,
			Context:      f.AIRules.Context,
			Filters: dto.FolderFiltersRequest{
				Keywords:         f.AIRules.Filters.Keywords,
				KeywordsLocation: f.AIRules.Filters.KeywordsLocation,
				SenderEmail:      f.AIRules.Filters.SenderEmail,
				SenderDomain:     f.AIRules.Filters.SenderDomain,
				SenderPhone:      f.AIRules.Filters.SenderPhone,
				MatchType:        f.AIRules.Filters.MatchType,
			},
		},
		AutoReply: dto.FolderAutoReplyRequest{
			Enabled:             f.AutoReply.Enabled,
			Mode:                f.AutoReply.Mode,
			Template:            f.AutoReply.Template,
			AIGenerate:          f.AutoReply.AIGenerate,
			Delay:               f.AutoReply.Delay,
			UseCompanyKnowledge: f.AutoReply.UseCompanyKnowledge,
		},
	}
}
