package repository

import (
	"context"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

// NotificationRepository avisos por tenant.
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	// CreateDeduped inserta salvo que exista ya (company, source_type, source_id, type, dedupe_day).
	// Devuelve false si la notificación ya existía.
	CreateDeduped(ctx context.Context, n *entity.Notification) (bool, error)
	// List notificaciones visibles para el usuario: las suyas y las de user_id NULL.
	List(ctx context.Context, companyID, userID string, unreadOnly bool, limit, offset int) ([]*entity.Notification, error)
	UnreadCount(ctx context.Context, companyID, userID string) (int, error)
	MarkRead(ctx context.Context, companyID, userID, id string) error
	MarkAllRead(ctx context.Context, companyID, userID string) error
}
