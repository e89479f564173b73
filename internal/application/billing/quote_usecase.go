package billing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/limits"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/billing"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/plan"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// QuoteUseCase ciclo de vida de los devis: creación numerada, edición en brouillon y transiciones.
type QuoteUseCase struct {
	tx     repository.TxRunner
	repos  repository.Repos
	limits *limits.Service
	log    zerolog.Logger
	Clock  func() time.Time
}

// NewQuoteUseCase construye el caso de uso.
func NewQuoteUseCase(tx repository.TxRunner, repos repository.Repos, lim *limits.Service, log zerolog.Logger) *QuoteUseCase {
	return &QuoteUseCase{tx: tx, repos: repos, limits: lim, log: log, Clock: time.Now}
}

// Create crea un devis en brouillon con número asignado en la misma transacción.
func (uc *QuoteUseCase) Create(ctx context.Context, actor *auth.Actor, in dto.CreateQuoteRequest) (*dto.QuoteResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	now := uc.Clock()
	var q *entity.Quote
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		if err := uc.limits.CheckQuotaIn(ctx, r, companyID, plan.KindQuote); err != nil {
			return err
		}
		iss, err := loadIssuer(ctx, r, companyID)
		if err != nil {
			return err
		}
		client, err := loadClient(ctx, r, companyID, in.ClientID)
		if err != nil {
			return err
		}
		id := uuid.New().String()
		discount := toDiscount(in.Discount)
		lines, totals, err := buildLines(id, in.Lines, discount, iss.settings)
		if err != nil {
			return err
		}
		issue := dateOr(in.IssueDate, now)
		expiry := datePtr(in.ExpiryDate)
		if expiry == nil {
			expiry = addDays(issue, iss.settings.Billing.QuoteValidityDays)
		}
		if expiry.Before(issue) {
			return domain.Validation("expiry_date", "la date de validité précède la date d'émission")
		}
		q = &entity.Quote{
			ID:         id,
			CompanyID:  companyID,
			ClientID:   client.ID,
			Status:     entity.QuoteStatusDraft,
			IssueDate:  issue,
			ExpiryDate: expiry,
			Conditions: strings.TrimSpace(in.Conditions),
			Notes:      strings.TrimSpace(in.Notes),
			Seller:     iss.company.Snapshot(),
			Client:     client.Snapshot(),
			Discount:   discount,
			Lines:      lines,
			CreatedBy:  actor.UserID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		q.ApplyTotals(totals)
		_, err = AllocateNumber(ctx, r, companyID, entity.NumberingQuote, iss.settings.Billing.Numbering(entity.NumberingQuote), now,
			func(number string) error {
				q.Number = number
				return r.Quotes.Create(ctx, q)
			})
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("company_id", companyID).Str("quote_id", q.ID).Str("number", q.Number).Msg("devis créé")
	return ToQuoteResponse(q), nil
}

// Get devuelve un devis del tenant.
func (uc *QuoteUseCase) Get(ctx context.Context, actor *auth.Actor, id string) (*dto.QuoteResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	q, err := loadQuote(ctx, uc.repos, companyID, id)
	if err != nil {
		return nil, err
	}
	return ToQuoteResponse(q), nil
}

// List listado paginado.
func (uc *QuoteUseCase) List(ctx context.Context, actor *auth.Actor, status, clientID string, page dto.PageRequest) (*dto.QuoteListResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	page.DefaultPage()
	list, total, err := uc.repos.Quotes.List(ctx, companyID, toDocumentFilter(status, clientID, page.Limit, page.Offset))
	if err != nil {
		return nil, err
	}
	out := &dto.QuoteListResponse{
		Items: make([]dto.QuoteResponse, 0, len(list)),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: total},
	}
	for _, q := range list {
		out.Items = append(out.Items, *ToQuoteResponse(q))
	}
	return out, nil
}

// Update modifica un devis en brouillon. Cualquier otro estado devuelve document_locked.
func (uc *QuoteUseCase) Update(ctx context.Context, actor *auth.Actor, id string, in dto.UpdateQuoteRequest) (*dto.QuoteResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	var q *entity.Quote
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		q, err = loadQuote(ctx, r, companyID, id)
		if err != nil {
			return err
		}
		if err := billing.GuardModify(q.Status); err != nil {
			return err
		}
		iss, err := loadIssuer(ctx, r, companyID)
		if err != nil {
			return err
		}
		if in.ClientID != nil && *in.ClientID != q.ClientID {
			client, err := loadClient(ctx, r, companyID, *in.ClientID)
			if err != nil {
				return err
			}
			q.ClientID = client.ID
			q.Client = client.Snapshot()
		}
		if in.IssueDate != nil {
			q.IssueDate = billing.BusinessDate(*in.IssueDate)
		}
		if in.ExpiryDate != nil {
			q.ExpiryDate = datePtr(in.ExpiryDate)
		}
		if q.ExpiryDate != nil && q.ExpiryDate.Before(q.IssueDate) {
			return domain.Validation("expiry_date", "la date de validité précède la date d'émission")
		}
		if in.Conditions != nil {
			q.Conditions = strings.TrimSpace(*in.Conditions)
		}
		if in.Notes != nil {
			q.Notes = strings.TrimSpace(*in.Notes)
		}
		if in.RemoveDiscount {
			q.Discount = nil
		} else if in.Discount != nil {
			q.Discount = toDiscount(in.Discount)
		}
		lines := q.Lines
		if in.Lines != nil {
			newLines, _, err := buildLines(q.ID, in.Lines, q.Discount, iss.settings)
			if err != nil {
				return err
			}
			lines = newLines
		}
		if err := billing.ValidateDiscount(q.Discount); err != nil {
			return err
		}
		q.Lines = lines
		q.ApplyTotals(billing.ComputeTotals(q.Lines, q.Discount))
		q.UpdatedAt = uc.Clock()
		return r.Quotes.Update(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return ToQuoteResponse(q), nil
}

// Delete borra un devis en brouillon.
func (uc *QuoteUseCase) Delete(ctx context.Context, actor *auth.Actor, id string) error {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return err
	}
	return uc.tx.Run(ctx, func(r repository.Repos) error {
		q, err := loadQuote(ctx, r, companyID, id)
		if err != nil {
			return err
		}
		if err := billing.GuardModify(q.Status); err != nil {
			return err
		}
		return r.Quotes.Delete(ctx, companyID, id)
	})
}

// Send brouillon -> envoyé; exige al menos una línea y totales coherentes.
func (uc *QuoteUseCase) Send(ctx context.Context, actor *auth.Actor, id string) (*dto.QuoteResponse, error) {
	return uc.transition(ctx, actor, id, entity.QuoteStatusSent, func(q *entity.Quote, now time.Time) error {
		if err := billing.ValidateSendable(q.Lines, q.Discount, q.SubtotalHT, q.TotalTax, q.TotalTTC); err != nil {
			return err
		}
		q.SentAt = &now
		return nil
	})
}

// Accept envoyé -> accepté.
func (uc *QuoteUseCase) Accept(ctx context.Context, actor *auth.Actor, id string) (*dto.QuoteResponse, error) {
	return uc.transition(ctx, actor, id, entity.QuoteStatusAccepted, func(q *entity.Quote, now time.Time) error {
		q.AcceptedAt = &now
		return nil
	})
}

// Refuse envoyé -> refusé.
func (uc *QuoteUseCase) Refuse(ctx context.Context, actor *auth.Actor, id string) (*dto.QuoteResponse, error) {
	return uc.transition(ctx, actor, id, entity.QuoteStatusRefused, func(q *entity.Quote, now time.Time) error {
		q.RefusedAt = &now
		return nil
	})
}

func (uc *QuoteUseCase) transition(ctx context.Context, actor *auth.Actor, id, to string, apply func(q *entity.Quote, now time.Time) error) (*dto.QuoteResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	var q *entity.Quote
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		q, err = loadQuote(ctx, r, companyID, id)
		if err != nil {
			return err
		}
		if err := billing.ValidateQuoteTransition(q.Status, to); err != nil {
			return err
		}
		now := uc.Clock()
		if err := apply(q, now); err != nil {
			return err
		}
		q.Status = to
		q.UpdatedAt = now
		return r.Quotes.UpdateStatus(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("company_id", companyID).Str("quote_id", q.ID).Str("status", to).Msg("devis: changement de statut")
	return ToQuoteResponse(q), nil
}

// ExpireSent pasa a expiré los devis envoyé cuya validez terminó antes del día de now.
// Devuelve los devis expirados para que el llamador emita las notificaciones.
func (uc *QuoteUseCase) ExpireSent(ctx context.Context, now time.Time) ([]*entity.Quote, error) {
	candidates, err := uc.repos.Quotes.ListSentExpiringBefore(ctx, billing.BusinessDate(now))
	if err != nil {
		return nil, err
	}
	var expired []*entity.Quote
	for _, q := range candidates {
		if !billing.QuoteShouldExpire(q, now) {
			continue
		}
		q.Status = entity.QuoteStatusExpired
		q.UpdatedAt = now
		if err := uc.repos.Quotes.UpdateStatus(ctx, q); err != nil {
			return expired, err
		}
		expired = append(expired, q)
	}
	return expired, nil
}

func loadQuote(ctx context.Context, r repository.Repos, companyID, id string) (*entity.Quote, error) {
	q, err := r.Quotes.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, domain.ErrNotFound
	}
	return q, nil
}
