package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/lokario-api/internal/application/agenda"
	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/billing"
	"github.com/jhoicas/lokario-api/internal/application/followup"
	"github.com/jhoicas/lokario-api/internal/application/inbox"
	"github.com/jhoicas/lokario-api/internal/application/notification"
	domainbilling "github.com/jhoicas/lokario-api/internal/domain/billing"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// TempImageMaxAge antigüedad a partir de la cual se borran las imágenes temporales del PDF.
const TempImageMaxAge = time.Hour

// TempSweeper borra ficheros temporales antiguos.
type TempSweeper interface {
	SweepTemp(maxAge time.Duration, now time.Time) int
}

// Jobs dependencias de los pasos. Un campo nil omite su paso.
type Jobs struct {
	Repos       repository.Repos
	Sync        *inbox.SyncService
	Pipeline    *inbox.Pipeline
	AutoReplier *inbox.AutoReplier
	Invoices    *billing.InvoiceUseCase
	Quotes      *billing.QuoteUseCase
	Reminders   *agenda.Reminders
	FollowUps   *followup.Scheduler
	Auth        *auth.AuthUseCase
	TempFiles   TempSweeper
}

// Steps lista ordenada: ingesta, vencimientos, avisos, relances, respuestas
// diferidas, barrido de estados, temporales y purga de cuentas.
func (j Jobs) Steps() []Step {
	var steps []Step
	add := func(ok bool, name string, run func(ctx context.Context, now time.Time) (int, error)) {
		if ok {
			steps = append(steps, Step{Name: name, Run: run})
		}
	}
	add(j.Sync != nil, "inbox_sync", j.syncInbox)
	add(j.Invoices != nil, "invoices_overdue", j.overdueInvoices)
	add(j.Quotes != nil, "quotes_expired", j.expiredQuotes)
	add(j.Reminders != nil, "task_alerts", func(ctx context.Context, _ time.Time) (int, error) {
		return j.Reminders.TaskAlerts(ctx)
	})
	add(j.Reminders != nil, "appointment_reminders", func(ctx context.Context, _ time.Time) (int, error) {
		return j.Reminders.AppointmentAlerts(ctx)
	})
	add(j.FollowUps != nil, "followups", j.followUps)
	add(j.AutoReplier != nil, "auto_replies", func(ctx context.Context, _ time.Time) (int, error) {
		return j.AutoReplier.SendDue(ctx, j.Repos)
	})
	add(j.Pipeline != nil, "conversation_status", func(ctx context.Context, _ time.Time) (int, error) {
		return j.Pipeline.SweepStatuses(ctx)
	})
	add(j.TempFiles != nil, "temp_images", func(_ context.Context, now time.Time) (int, error) {
		return j.TempFiles.SweepTemp(TempImageMaxAge, now), nil
	})
	add(j.Auth != nil, "account_purge", j.Auth.PurgeDue)
	return steps
}

func (j Jobs) syncInbox(ctx context.Context, _ time.Time) (int, error) {
	rep, err := j.Sync.SyncDue(ctx)
	if err != nil {
		return 0, err
	}
	return rep.Ingested, joinErrors(rep.Errors)
}

func (j Jobs) overdueInvoices(ctx context.Context, now time.Time) (int, error) {
	marked, err := j.Invoices.MarkOverdue(ctx, now)
	if err != nil {
		return len(marked), err
	}
	var errs []error
	for _, inv := range marked {
		msg := fmt.Sprintf("La facture %s de %s (%s) a dépassé son échéance.",
			inv.Number, inv.Client.Name, domainbilling.FormatEuro(inv.Balance()))
		_, err := notification.EmitDaily(ctx, j.Repos, notification.Event{
			CompanyID:  inv.CompanyID,
			Type:       entity.NotificationInvoiceOverdue,
			Title:      "Facture en retard",
			Message:    msg,
			Link:       "/invoices/" + inv.ID,
			SourceType: "invoice",
			SourceID:   inv.ID,
		}, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("aviso factura %s: %w", inv.ID, err))
		}
	}
	return len(marked), errors.Join(errs...)
}

func (j Jobs) expiredQuotes(ctx context.Context, now time.Time) (int, error) {
	expired, err := j.Quotes.ExpireSent(ctx, now)
	if err != nil {
		return len(expired), err
	}
	var errs []error
	for _, q := range expired {
		_, err := notification.EmitDaily(ctx, j.Repos, notification.Event{
			CompanyID:  q.CompanyID,
			Type:       entity.NotificationQuoteExpired,
			Title:      "Devis expiré",
			Message:    fmt.Sprintf("Le devis %s de %s a expiré sans réponse.", q.Number, q.Client.Name),
			Link:       "/quotes/" + q.ID,
			SourceType: "quote",
			SourceID:   q.ID,
		}, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("aviso devis %s: %w", q.ID, err))
		}
	}
	return len(expired), errors.Join(errs...)
}

func (j Jobs) followUps(ctx context.Context, _ time.Time) (int, error) {
	rep, err := j.FollowUps.RunDue(ctx)
	if err != nil {
		return 0, err
	}
	return rep.Sent, joinErrors(rep.Errors)
}

func joinErrors(msgs []string) error {
	if len(msgs) == 0 {
		return nil
	}
	return errors.New(strings.Join(msgs, "; "))
}
