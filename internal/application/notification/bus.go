// Package notification implementa el bus de avisos por tenant y su lado de lectura.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// Event datos de una notificación a emitir. UserID vacío la hace visible a todo el tenant.
type Event struct {
	CompanyID  string
	UserID     string
	Type       string
	Title      string
	Message    string
	Link       string
	SourceType string
	SourceID   string
}

func (e Event) build(now time.Time) *entity.Notification {
	return &entity.Notification{
		ID:         uuid.New().String(),
		CompanyID:  e.CompanyID,
		UserID:     e.UserID,
		Type:       e.Type,
		Title:      e.Title,
		Message:    e.Message,
		Link:       e.Link,
		SourceType: e.SourceType,
		SourceID:   e.SourceID,
		CreatedAt:  now,
	}
}

// Emit añade la notificación con los repos de la transacción en curso.
func Emit(ctx context.Context, r repository.Repos, e Event, now time.Time) error {
	return r.Notifications.Create(ctx, e.build(now))
}

// EmitDaily igual que Emit pero con clave de deduplicación diaria
// (tenant, source_type, source_id, type, día). Devuelve false si ya se emitió hoy.
func EmitDaily(ctx context.Context, r repository.Repos, e Event, now time.Time) (bool, error) {
	n := e.build(now)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	n.DedupeDay = &day
	return r.Notifications.CreateDeduped(ctx, n)
}
