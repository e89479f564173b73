// Package followup gestiona las relances: CRUD, envío manual, estadísticas y el
// planificador que el cron ejecuta en cada pasada.
package followup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/limits"
	"github.com/jhoicas/lokario-api/internal/application/messaging"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/followup"
	"github.com/jhoicas/lokario-api/internal/domain/plan"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// SystemSender remitente registrado en el historial de los envíos automáticos.
const SystemSender = "system"

// outcome resultado del procesamiento de una relance.
type outcome int

const (
	outcomeSent outcome = iota
	outcomeStopped
	outcomeFailed
	outcomeOverQuota
	outcomeSkipped
)

// Scheduler envía las relances automáticas vencidas.
type Scheduler struct {
	tx       repository.TxRunner
	repos    repository.Repos
	limits   *limits.Service
	dispatch *messaging.Dispatcher
	log      zerolog.Logger
	Clock    func() time.Time
}

// NewScheduler construye el planificador.
func NewScheduler(tx repository.TxRunner, repos repository.Repos, lim *limits.Service, dispatch *messaging.Dispatcher, log zerolog.Logger) *Scheduler {
	return &Scheduler{tx: tx, repos: repos, limits: lim, dispatch: dispatch, log: log, Clock: time.Now}
}

// RunDue procesa cada relance vencida en su propia transacción. Un fallo de transporte
// no aborta la pasada: se registra en la relance con backoff y se reintenta en otro tick.
func (s *Scheduler) RunDue(ctx context.Context) (*dto.SchedulerReport, error) {
	now := s.Clock()
	due, err := s.repos.FollowUps.ListDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("listar relances: %w", err)
	}
	report := &dto.SchedulerReport{Due: len(due)}
	for _, f := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		var res outcome
		err := s.tx.Run(ctx, func(r repository.Repos) error {
			var err error
			res, err = s.process(ctx, r, f.CompanyID, f.ID, now)
			return err
		})
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", f.ID, err))
			s.log.Error().Err(err).Str("followup_id", f.ID).Str("company_id", f.CompanyID).Msg("relance")
			continue
		}
		switch res {
		case outcomeSent:
			report.Sent++
		case outcomeStopped:
			report.Stopped++
		case outcomeFailed:
			report.Failed++
		case outcomeOverQuota:
			report.OverQuota++
		}
	}
	return report, nil
}

// process relee la relance dentro de la transacción: otra pasada o un usuario
// pueden haberla cerrado entre el listado y este punto.
func (s *Scheduler) process(ctx context.Context, r repository.Repos, companyID, id string, now time.Time) (outcome, error) {
	f, err := r.FollowUps.GetByID(ctx, companyID, id)
	if err != nil {
		return outcomeSkipped, err
	}
	if f == nil || !f.AutoEnabled || !f.Open() || f.DueDate.After(now) {
		return outcomeSkipped, nil
	}
	if f.NextAttemptAt != nil && f.NextAttemptAt.After(now) {
		return outcomeSkipped, nil
	}

	if err := s.limits.CheckQuotaIn(ctx, r, companyID, plan.KindFollowUp); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return outcomeOverQuota, nil
		}
		return outcomeSkipped, err
	}

	settings, err := r.Companies.GetSettings(ctx, companyID)
	if err != nil {
		return outcomeSkipped, err
	}
	cfg := settings.FollowUps

	sent, err := r.FollowUps.CountSent(ctx, f.ID)
	if err != nil {
		return outcomeSkipped, err
	}
	state, err := sourceState(ctx, r, f)
	if err != nil {
		return outcomeSkipped, err
	}
	if reason := followup.StopReason(f, sent, cfg.MaxRelances, state); reason != "" {
		f.Status = entity.FollowUpDone
		f.UpdatedAt = now
		s.log.Info().Str("followup_id", f.ID).Str("reason", reason).Msg("relance cerrada")
		return outcomeStopped, r.FollowUps.Update(ctx, f)
	}

	channel := followup.Channel(cfg.RelanceMethods, sent)
	client, err := recipient(ctx, r, f)
	var body string
	if err == nil {
		body, err = render(ctx, r, f, client, settings)
	}
	if err == nil {
		_, err = s.dispatch.Send(ctx, r, companyID, outgoing(f, client, channel, body))
	}
	if err != nil {
		f.FailureCount++
		next := now.Add(followup.Backoff(f.FailureCount))
		f.NextAttemptAt = &next
		f.LastError = err.Error()
		f.UpdatedAt = now
		s.log.Warn().Err(err).Str("followup_id", f.ID).Int("failures", f.FailureCount).Msg("envío de relance fallido")
		return outcomeFailed, r.FollowUps.Update(ctx, f)
	}

	if err := recordSend(ctx, r, f, body, channel, SystemSender, now); err != nil {
		return outcomeSkipped, err
	}
	f.DueDate = followup.NextDueDate(now, cfg.RelanceDelays, fallbackDays(f, cfg), sent)
	f.Status = entity.FollowUpToDo
	return outcomeSent, r.FollowUps.Update(ctx, f)
}

// sourceState estado del origen que alimenta las condiciones de parada.
func sourceState(ctx context.Context, r repository.Repos, f *entity.FollowUp) (followup.SourceState, error) {
	var st followup.SourceState
	switch f.SourceType {
	case entity.FollowUpSourceInvoice:
		if f.SourceID != "" {
			inv, err := r.Invoices.GetByID(ctx, f.CompanyID, f.SourceID, false)
			if err != nil {
				return st, err
			}
			if inv != nil {
				st.InvoiceStatus = inv.Status
			}
		}
	case entity.FollowUpSourceQuote:
		if f.SourceID != "" {
			q, err := r.Quotes.GetByID(ctx, f.CompanyID, f.SourceID)
			if err != nil {
				return st, err
			}
			if q != nil {
				st.QuoteStatus = q.Status
			}
		}
	}
	if f.AutoStopOnResponse && f.ClientID != "" {
		since := f.CreatedAt
		if f.ActualDate != nil {
			since = *f.ActualDate
		}
		replied, err := r.Conversations.ClientRepliedAfter(ctx, f.CompanyID, f.ClientID, since)
		if err != nil {
			return st, err
		}
		st.ClientRepliedAfter = replied
	}
	return st, nil
}

// recipient cliente destinatario de la relance.
func recipient(ctx context.Context, r repository.Repos, f *entity.FollowUp) (*entity.Client, error) {
	client, err := r.Clients.GetByID(ctx, f.CompanyID, f.ClientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, domain.NewError(domain.ErrInvalidInput, domain.CodeNoRecipient, "client introuvable pour cette relance")
	}
	return client, nil
}

// render aplica la plantilla del tipo de relance. Sin plantilla no se envía nada.
func render(ctx context.Context, r repository.Repos, f *entity.FollowUp, client *entity.Client, settings *entity.CompanySettings) (string, error) {
	company, err := r.Companies.GetByID(ctx, f.CompanyID)
	if err != nil {
		return "", err
	}
	companyName := ""
	if company != nil {
		companyName = company.Name
	}
	return followup.Render(settings.FollowUps.Templates[f.Type], map[string]string{
		"client_name":  client.Name,
		"source_label": f.SourceLabel,
		"amount":       f.Amount.StringFixed(2),
		"company_name": companyName,
		"due_date":     f.DueDate.Format("02/01/2006"),
	})
}

func outgoing(f *entity.FollowUp, client *entity.Client, channel, body string) messaging.Outgoing {
	to := client.Email
	if channel == entity.ChannelSMS || channel == entity.ChannelWhatsApp {
		to = client.Phone
	}
	subject := "Relance"
	if f.SourceLabel != "" {
		subject = "Relance : " + f.SourceLabel
	}
	return messaging.Outgoing{Channel: channel, To: to, Subject: subject, Text: body}
}

// recordSend añade el historial y limpia el estado de fallos.
func recordSend(ctx context.Context, r repository.Repos, f *entity.FollowUp, body, channel, sender string, now time.Time) error {
	if err := r.FollowUps.AddHistory(ctx, &entity.FollowUpHistory{
		ID:         uuid.New().String(),
		FollowUpID: f.ID,
		CompanyID:  f.CompanyID,
		Message:    body,
		Channel:    channel,
		Status:     entity.HistorySent,
		SentBy:     sender,
		SentAt:     now,
	}); err != nil {
		return err
	}
	f.ActualDate = &now
	f.FailureCount = 0
	f.NextAttemptAt = nil
	f.LastError = ""
	f.UpdatedAt = now
	return nil
}

// fallbackDays días entre envíos cuando el tenant no configuró relance_delays.
func fallbackDays(f *entity.FollowUp, cfg entity.FollowUpSettings) int {
	if f.AutoFrequencyDays > 0 {
		return f.AutoFrequencyDays
	}
	return cfg.InitialDelayDays
}
