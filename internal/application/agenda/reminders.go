package agenda

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/lokario-api/internal/application/notification"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// AppointmentLookahead antelación del aviso de rendez-vous.
const AppointmentLookahead = 24 * time.Hour

// Reminders avisos diarios de tareas y rendez-vous. Cada aviso se deduplica por
// día, así que varias pasadas del cron el mismo día no repiten notificaciones.
type Reminders struct {
	repos repository.Repos
	Clock func() time.Time
}

// NewReminders construye el servicio.
func NewReminders(repos repository.Repos) *Reminders {
	return &Reminders{repos: repos, Clock: time.Now}
}

// TaskAlerts avisa de tareas vencidas (al asignado) y de tareas críticas abiertas.
func (s *Reminders) TaskAlerts(ctx context.Context) (int, error) {
	now := s.Clock()
	emitted := 0

	overdue, err := s.repos.Tasks.ListOverdue(ctx, startOfDay(now))
	if err != nil {
		return 0, fmt.Errorf("tareas vencidas: %w", err)
	}
	for _, t := range overdue {
		ok, err := notification.EmitDaily(ctx, s.repos, notification.Event{
			CompanyID:  t.CompanyID,
			UserID:     t.AssigneeID,
			Type:       entity.NotificationTaskOverdue,
			Title:      "Tâche en retard",
			Message:    fmt.Sprintf("La tâche « %s » était prévue le %s.", t.Title, t.DueDate.Format("02/01/2006")),
			Link:       "/tasks/" + t.ID,
			SourceType: "task",
			SourceID:   t.ID,
		}, now)
		if err != nil {
			return emitted, err
		}
		if ok {
			emitted++
		}
	}

	critical, err := s.repos.Tasks.ListOpenCritical(ctx)
	if err != nil {
		return emitted, fmt.Errorf("tareas críticas: %w", err)
	}
	for _, t := range critical {
		ok, err := notification.EmitDaily(ctx, s.repos, notification.Event{
			CompanyID:  t.CompanyID,
			UserID:     t.AssigneeID,
			Type:       entity.NotificationTaskCritical,
			Title:      "Tâche critique",
			Message:    fmt.Sprintf("La tâche critique « %s » n'est pas terminée.", t.Title),
			Link:       "/tasks/" + t.ID,
			SourceType: "task",
			SourceID:   t.ID,
		}, now)
		if err != nil {
			return emitted, err
		}
		if ok {
			emitted++
		}
	}
	return emitted, nil
}

// AppointmentAlerts avisa de los rendez-vous que empiezan en las próximas 24 h.
func (s *Reminders) AppointmentAlerts(ctx context.Context) (int, error) {
	now := s.Clock()
	items, err := s.repos.Appointments.ListStartingBetween(ctx, now, now.Add(AppointmentLookahead))
	if err != nil {
		return 0, fmt.Errorf("rendez-vous: %w", err)
	}
	emitted := 0
	for _, a := range items {
		ok, err := notification.EmitDaily(ctx, s.repos, notification.Event{
			CompanyID:  a.CompanyID,
			UserID:     a.UserID,
			Type:       entity.NotificationAppointmentReminder,
			Title:      "Rendez-vous à venir",
			Message:    fmt.Sprintf("« %s » le %s.", a.Title, a.StartsAt.Format("02/01/2006 à 15:04")),
			Link:       "/appointments/" + a.ID,
			SourceType: "appointment",
			SourceID:   a.ID,
		}, now)
		if err != nil {
			return emitted, err
		}
		if ok {
			emitted++
		}
	}
	return emitted, nil
}
