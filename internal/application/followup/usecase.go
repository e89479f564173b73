package followup

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/limits"
	"github.com/jhoicas/lokario-api/internal/application/messaging"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/followup"
	"github.com/jhoicas/lokario-api/internal/domain/plan"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// statsPageSize tamaño de página al recorrer las relances del tenant para las estadísticas.
const statsPageSize = 500

var sourceTypes = map[string]bool{
	entity.FollowUpSourceQuote:        true,
	entity.FollowUpSourceInvoice:      true,
	entity.FollowUpSourceAppointment:  true,
	entity.FollowUpSourceProject:      true,
	entity.FollowUpSourceConversation: true,
	entity.FollowUpSourceManual:       true,
}

// UseCase relances vistas por el usuario.
type UseCase struct {
	tx       repository.TxRunner
	repos    repository.Repos
	limits   *limits.Service
	dispatch *messaging.Dispatcher
	log      zerolog.Logger
	Clock    func() time.Time
}

// NewUseCase construye el caso de uso.
func NewUseCase(tx repository.TxRunner, repos repository.Repos, lim *limits.Service, dispatch *messaging.Dispatcher, log zerolog.Logger) *UseCase {
	return &UseCase{tx: tx, repos: repos, limits: lim, dispatch: dispatch, log: log, Clock: time.Now}
}

// Create valida cliente y origen. Sin due_date: hoy + initial_delay_days.
func (uc *UseCase) Create(ctx context.Context, actor *auth.Actor, in dto.CreateFollowUpRequest) (*dto.FollowUpResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	sourceType := in.SourceType
	if sourceType == "" {
		sourceType = entity.FollowUpSourceManual
	}
	if !sourceTypes[sourceType] {
		return nil, domain.Validation("source_type", "type d'origine inconnu")
	}
	typ := strings.TrimSpace(in.Type)
	if typ == "" {
		return nil, domain.Validation("type", "le type de relance est obligatoire")
	}

	now := uc.Clock()
	f := &entity.FollowUp{
		ID:                 uuid.New().String(),
		CompanyID:          companyID,
		ClientID:           in.ClientID,
		Type:               typ,
		SourceType:         sourceType,
		SourceID:           strings.TrimSpace(in.SourceID),
		SourceLabel:        strings.TrimSpace(in.SourceLabel),
		Status:             entity.FollowUpToDo,
		AutoEnabled:        in.AutoEnabled,
		AutoFrequencyDays:  in.AutoFrequencyDays,
		AutoStopOnResponse: in.AutoStopOnResponse,
		AutoStopOnPaid:     in.AutoStopOnPaid,
		AutoStopOnRefused:  in.AutoStopOnRefused,
		CreatedBy:          actor.UserID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if in.Amount != nil {
		f.Amount = in.Amount.Round(2)
	}

	var clientName string
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		client, err := r.Clients.GetByID(ctx, companyID, in.ClientID)
		if err != nil {
			return err
		}
		if client == nil {
			return domain.Validation("client_id", "client introuvable")
		}
		clientName = client.Name
		if err := fillFromSource(ctx, r, f, in.Amount == nil); err != nil {
			return err
		}
		if in.DueDate != nil {
			f.DueDate = *in.DueDate
		} else {
			settings, err := r.Companies.GetSettings(ctx, companyID)
			if err != nil {
				return err
			}
			f.DueDate = now.AddDate(0, 0, settings.FollowUps.InitialDelayDays)
		}
		return r.FollowUps.Create(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("company_id", companyID).Str("followup_id", f.ID).Str("source_type", f.SourceType).Msg("relance creada")
	res := toResponse(f, clientName, 0)
	return &res, nil
}

// fillFromSource completa etiqueta e importe con la factura o el devis de origen.
func fillFromSource(ctx context.Context, r repository.Repos, f *entity.FollowUp, withAmount bool) error {
	if f.SourceID == "" {
		return nil
	}
	switch f.SourceType {
	case entity.FollowUpSourceInvoice:
		inv, err := r.Invoices.GetByID(ctx, f.CompanyID, f.SourceID, false)
		if err != nil {
			return err
		}
		if inv == nil {
			return domain.Validation("source_id", "facture introuvable")
		}
		if f.SourceLabel == "" {
			f.SourceLabel = inv.Number
		}
		if withAmount {
			f.Amount = inv.Balance()
		}
	case entity.FollowUpSourceQuote:
		q, err := r.Quotes.GetByID(ctx, f.CompanyID, f.SourceID)
		if err != nil {
			return err
		}
		if q == nil {
			return domain.Validation("source_id", "devis introuvable")
		}
		if f.SourceLabel == "" {
			f.SourceLabel = q.Number
		}
		if withAmount {
			f.Amount = q.TotalTTC
		}
	}
	return nil
}

// Get relance con su historial.
func (uc *UseCase) Get(ctx context.Context, actor *auth.Actor, id string) (*dto.FollowUpDetailResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	f, err := uc.load(ctx, uc.repos, companyID, id)
	if err != nil {
		return nil, err
	}
	history, err := uc.repos.FollowUps.ListHistory(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	names, err := uc.clientNames(ctx, companyID, []*entity.FollowUp{f})
	if err != nil {
		return nil, err
	}
	out := &dto.FollowUpDetailResponse{
		FollowUpResponse: toResponse(f, names[f.ClientID], sentCount(history)),
		History:          make([]dto.FollowUpHistoryResponse, 0, len(history)),
	}
	for _, h := range history {
		out.History = append(out.History, dto.FollowUpHistoryResponse{
			ID: h.ID, Message: h.Message, Channel: h.Channel, Status: h.Status,
			SentBy: h.SentBy, SentAt: h.SentAt, ConversationID: h.ConversationID,
		})
	}
	return out, nil
}

// List listado filtrado y paginado.
func (uc *UseCase) List(ctx context.Context, actor *auth.Actor, in dto.FollowUpFilter) (*dto.FollowUpListResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	in.DefaultPage()
	items, total, err := uc.repos.FollowUps.List(ctx, companyID, repository.FollowUpFilter{
		Status: in.Status, ClientID: in.ClientID, SourceType: in.SourceType,
		DueFrom: in.DueFrom, DueTo: in.DueTo, Limit: in.Limit, Offset: in.Offset,
	})
	if err != nil {
		return nil, err
	}
	names, err := uc.clientNames(ctx, companyID, items)
	if err != nil {
		return nil, err
	}
	out := &dto.FollowUpListResponse{
		Items: make([]dto.FollowUpResponse, 0, len(items)),
		Page:  dto.PageResponse{Limit: in.Limit, Offset: in.Offset, Total: total},
	}
	for _, f := range items {
		n, err := uc.repos.FollowUps.CountSent(ctx, f.ID)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, toResponse(f, names[f.ClientID], n))
	}
	return out, nil
}

// Update modifica campos editables. Reabrir una relance limpia el backoff pendiente.
func (uc *UseCase) Update(ctx context.Context, actor *auth.Actor, id string, in dto.UpdateFollowUpRequest) (*dto.FollowUpResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	var (
		f    *entity.FollowUp
		sent int
	)
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		var err error
		f, err = uc.load(ctx, r, companyID, id)
		if err != nil {
			return err
		}
		if in.Type != nil {
			typ := strings.TrimSpace(*in.Type)
			if typ == "" {
				return domain.Validation("type", "le type de relance est obligatoire")
			}
			f.Type = typ
		}
		if in.SourceLabel != nil {
			f.SourceLabel = strings.TrimSpace(*in.SourceLabel)
		}
		if in.DueDate != nil {
			f.DueDate = *in.DueDate
			f.NextAttemptAt = nil
		}
		if in.Status != nil {
			if !validStatus(*in.Status) {
				return domain.Validation("status", "statut de relance inconnu")
			}
			if *in.Status != f.Status && *in.Status != entity.FollowUpDone {
				f.NextAttemptAt = nil
				f.FailureCount = 0
			}
			f.Status = *in.Status
		}
		if in.Amount != nil {
			f.Amount = in.Amount.Round(2)
		}
		if in.AutoEnabled != nil {
			f.AutoEnabled = *in.AutoEnabled
		}
		if in.AutoFrequencyDays != nil {
			f.AutoFrequencyDays = *in.AutoFrequencyDays
		}
		if in.AutoStopOnResponse != nil {
			f.AutoStopOnResponse = *in.AutoStopOnResponse
		}
		if in.AutoStopOnPaid != nil {
			f.AutoStopOnPaid = *in.AutoStopOnPaid
		}
		if in.AutoStopOnRefused != nil {
			f.AutoStopOnRefused = *in.AutoStopOnRefused
		}
		f.UpdatedAt = uc.Clock()
		if err := r.FollowUps.Update(ctx, f); err != nil {
			return err
		}
		sent, err = r.FollowUps.CountSent(ctx, f.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	names, err := uc.clientNames(ctx, companyID, []*entity.FollowUp{f})
	if err != nil {
		return nil, err
	}
	res := toResponse(f, names[f.ClientID], sent)
	return &res, nil
}

// Delete elimina la relance y su historial.
func (uc *UseCase) Delete(ctx context.Context, actor *auth.Actor, id string) error {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return err
	}
	return uc.tx.Run(ctx, func(r repository.Repos) error {
		if _, err := uc.load(ctx, r, companyID, id); err != nil {
			return err
		}
		return r.FollowUps.Delete(ctx, companyID, id)
	})
}

// Send envío manual. Una relance manual pasa a Fait tras el primer envío; una
// automática se reprograma como si la hubiera enviado el planificador.
// El canal "call" solo deja constancia de la llamada.
func (uc *UseCase) Send(ctx context.Context, actor *auth.Actor, id string, in dto.SendFollowUpRequest) (*dto.FollowUpDetailResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	now := uc.Clock()
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		f, err := uc.load(ctx, r, companyID, id)
		if err != nil {
			return err
		}
		if !f.Open() {
			return domain.Conflict(domain.CodeWrongState, "cette relance est déjà terminée")
		}
		if err := uc.limits.CheckQuotaIn(ctx, r, companyID, plan.KindFollowUp); err != nil {
			return err
		}
		settings, err := r.Companies.GetSettings(ctx, companyID)
		if err != nil {
			return err
		}
		sent, err := r.FollowUps.CountSent(ctx, f.ID)
		if err != nil {
			return err
		}
		channel := in.Channel
		if channel == "" {
			channel = followup.Channel(settings.FollowUps.RelanceMethods, sent)
		}

		client, err := recipient(ctx, r, f)
		if err != nil {
			return err
		}
		body := strings.TrimSpace(in.Message)
		if body == "" {
			if body, err = render(ctx, r, f, client, settings); err != nil {
				return err
			}
		}
		if channel != entity.ChannelCall {
			if _, err := uc.dispatch.Send(ctx, r, companyID, outgoing(f, client, channel, body)); err != nil {
				return err
			}
		}

		if err := recordSend(ctx, r, f, body, channel, actor.UserID, now); err != nil {
			return err
		}
		if f.AutoEnabled {
			f.DueDate = followup.NextDueDate(now, settings.FollowUps.RelanceDelays, fallbackDays(f, settings.FollowUps), sent)
		} else {
			f.Status = entity.FollowUpDone
		}
		return r.FollowUps.Update(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("company_id", companyID).Str("followup_id", id).Str("user_id", actor.UserID).Msg("relance enviada")
	return uc.Get(ctx, actor, id)
}

// Stats recuento por estado, vencidas e importe pendiente de las relances abiertas.
func (uc *UseCase) Stats(ctx context.Context, actor *auth.Actor) (*dto.FollowUpStatsResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	all, err := uc.all(ctx, companyID, repository.FollowUpFilter{})
	if err != nil {
		return nil, err
	}
	now := uc.Clock()
	today := startOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)

	out := &dto.FollowUpStatsResponse{
		Total:         len(all),
		ByStatus:      map[string]int{entity.FollowUpToDo: 0, entity.FollowUpWaiting: 0, entity.FollowUpDone: 0},
		PendingAmount: decimal.Zero,
	}
	for _, f := range all {
		out.ByStatus[f.Status]++
		if !f.Open() {
			continue
		}
		out.PendingAmount = out.PendingAmount.Add(f.Amount)
		switch {
		case f.DueDate.Before(today):
			out.Overdue++
		case f.DueDate.Before(tomorrow):
			out.DueToday++
		}
	}
	out.SentThisMonth, err = uc.repos.FollowUps.CountSentSince(ctx, companyID, limits.MonthStart(now))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Weekly relances abiertas con vencimiento de lunes a domingo de la semana actual.
func (uc *UseCase) Weekly(ctx context.Context, actor *auth.Actor) (*dto.FollowUpWeeklyResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	monday := startOfWeek(uc.Clock())
	end := monday.AddDate(0, 0, 7)
	items, err := uc.all(ctx, companyID, repository.FollowUpFilter{DueFrom: &monday, DueTo: &end})
	if err != nil {
		return nil, err
	}
	names, err := uc.clientNames(ctx, companyID, items)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].DueDate.Before(items[j].DueDate) })

	out := &dto.FollowUpWeeklyResponse{WeekStart: monday.Format("2006-01-02"), Days: make([]dto.FollowUpDay, 7)}
	for i := range out.Days {
		out.Days[i] = dto.FollowUpDay{Date: monday.AddDate(0, 0, i).Format("2006-01-02"), Items: []dto.FollowUpResponse{}}
	}
	for _, f := range items {
		if !f.Open() {
			continue
		}
		idx := int(startOfDay(f.DueDate).Sub(monday).Hours() / 24)
		if idx < 0 || idx > 6 {
			continue
		}
		out.Days[idx].Items = append(out.Days[idx].Items, toResponse(f, names[f.ClientID], 0))
	}
	return out, nil
}

func (uc *UseCase) all(ctx context.Context, companyID string, f repository.FollowUpFilter) ([]*entity.FollowUp, error) {
	var out []*entity.FollowUp
	f.Limit = statsPageSize
	for f.Offset = 0; ; f.Offset += statsPageSize {
		batch, total, err := uc.repos.FollowUps.List(ctx, companyID, f)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < statsPageSize || len(out) >= total {
			return out, nil
		}
	}
}

func (uc *UseCase) load(ctx context.Context, r repository.Repos, companyID, id string) (*entity.FollowUp, error) {
	f, err := r.FollowUps.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, domain.ErrNotFound
	}
	return f, nil
}

func (uc *UseCase) clientNames(ctx context.Context, companyID string, items []*entity.FollowUp) (map[string]string, error) {
	names := make(map[string]string)
	for _, f := range items {
		if f.ClientID == "" {
			continue
		}
		if _, ok := names[f.ClientID]; ok {
			continue
		}
		c, err := uc.repos.Clients.GetByID(ctx, companyID, f.ClientID)
		if err != nil {
			return nil, err
		}
		if c != nil {
			names[f.ClientID] = c.Name
		}
	}
	return names, nil
}

func toResponse(f *entity.FollowUp, clientName string, sent int) dto.FollowUpResponse {
	return dto.FollowUpResponse{
		ID:                 f.ID,
		ClientID:           f.ClientID,
		ClientName:         clientName,
		Type:               f.Type,
		SourceType:         f.SourceType,
		SourceID:           f.SourceID,
		SourceLabel:        f.SourceLabel,
		DueDate:            f.DueDate,
		ActualDate:         f.ActualDate,
		Status:             f.Status,
		Amount:             f.Amount,
		AutoEnabled:        f.AutoEnabled,
		AutoFrequencyDays:  f.AutoFrequencyDays,
		AutoStopOnResponse: f.AutoStopOnResponse,
		AutoStopOnPaid:     f.AutoStopOnPaid,
		AutoStopOnRefused:  f.AutoStopOnRefused,
		SentCount:          sent,
		LastError:          f.LastError,
		CreatedAt:          f.CreatedAt,
		UpdatedAt:          f.UpdatedAt,
	}
}

func sentCount(history []entity.FollowUpHistory) int {
	n := 0
	for _, h := range history {
		if h.Status == entity.HistorySent {
			n++
		}
	}
	return n
}

func validStatus(s string) bool {
	return s == entity.FollowUpToDo || s == entity.FollowUpDone || s == entity.FollowUpWaiting
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfWeek lunes 00:00 de la semana de t.
func startOfWeek(t time.Time) time.Time {
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7
	}
	return startOfDay(t).AddDate(0, 0, 1-wd)
}
