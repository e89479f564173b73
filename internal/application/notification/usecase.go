package notification

import (
	"context"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// UseCase lectura de notificaciones del usuario autenticado.
type UseCase struct {
	repo repository.NotificationRepository
}

// NewUseCase construye el caso de uso.
func NewUseCase(repo repository.NotificationRepository) *UseCase {
	return &UseCase{repo: repo}
}

// List notificaciones propias y las del tenant sin destinatario.
func (uc *UseCase) List(ctx context.Context, actor *auth.Actor, unreadOnly bool, page dto.PageRequest) (*dto.NotificationListResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	page.DefaultPage()
	list, err := uc.repo.List(ctx, companyID, actor.UserID, unreadOnly, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	out := &dto.NotificationListResponse{
		Items: make([]dto.NotificationResponse, 0, len(list)),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: len(list)},
	}
	for _, n := range list {
		out.Items = append(out.Items, toResponse(n))
	}
	return out, nil
}

// UnreadCount contador para la campana de la UI.
func (uc *UseCase) UnreadCount(ctx context.Context, actor *auth.Actor) (*dto.UnreadCountResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	n, err := uc.repo.UnreadCount(ctx, companyID, actor.UserID)
	if err != nil {
		return nil, err
	}
	return &dto.UnreadCountResponse{Unread: n}, nil
}

// MarkRead marca una notificación visible para el usuario.
func (uc *UseCase) MarkRead(ctx context.Context, actor *auth.Actor, id string) error {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return err
	}
	if id == "" {
		return domain.ErrNotFound
	}
	return uc.repo.MarkRead(ctx, companyID, actor.UserID, id)
}

// MarkAllRead marca todas las visibles para el usuario.
func (uc *UseCase) MarkAllRead(ctx context.Context, actor *auth.Actor) error {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return err
	}
	return uc.repo.MarkAllRead(ctx, companyID, actor.UserID)
}

func toResponse(n *entity.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:         n.ID,
		Type:       n.Type,
		Title:      n.Title,
		Message:    n.Message,
		Link:       n.Link,
		Read:       n.Read,
		ReadAt:     n.ReadAt,
		SourceType: n.SourceType,
		SourceID:   n.SourceID,
		CreatedAt:  n.CreatedAt,
	}
}
