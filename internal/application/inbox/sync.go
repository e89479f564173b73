package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/notification"
	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
	"github.com/jhoicas/lokario-api/pkg/secrets"
)

// Parámetros de la sincronización IMAP.
const (
	FetchTimeout       = 60 * time.Second
	DefaultMaxPerFetch = 50
)

// SyncReport resumen de una pasada de sincronización.
type SyncReport struct {
	Integrations int      `json:"integrations"`
	Skipped      int      `json:"skipped"`
	Fetched      int      `json:"fetched"`
	Ingested     int      `json:"ingested"`
	Duplicates   int      `json:"duplicates"`
	Classified   int      `json:"classified"`
	Errors       []string `json:"errors,omitempty"`
}

// SyncService lee las integraciones IMAP activas y pasa los mensajes por el pipeline.
type SyncService struct {
	tx          repository.TxRunner
	repos       repository.Repos
	fetcher     ports.MailFetcher
	pipeline    *Pipeline
	cipher      *secrets.Cipher
	log         zerolog.Logger
	MaxPerFetch int
	Clock       func() time.Time
}

// NewSyncService construye el servicio. fetcher nil desactiva la lectura IMAP.
func NewSyncService(tx repository.TxRunner, repos repository.Repos, fetcher ports.MailFetcher, pipeline *Pipeline, cipher *secrets.Cipher, log zerolog.Logger) *SyncService {
	return &SyncService{
		tx: tx, repos: repos, fetcher: fetcher, pipeline: pipeline, cipher: cipher, log: log,
		MaxPerFetch: DefaultMaxPerFetch, Clock: time.Now,
	}
}

// SyncDue sincroniza las integraciones IMAP activas cuyo intervalo ya pasó.
// Un fallo en una integración no detiene las demás.
func (s *SyncService) SyncDue(ctx context.Context) (*SyncReport, error) {
	integrations, err := s.repos.Integrations.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	report := &SyncReport{}
	tenants := map[string]bool{}
	now := s.Clock()
	for _, integ := range integrations {
		if integ.Kind != entity.IntegrationIMAP {
			continue
		}
		if !integ.SyncDue(now) {
			report.Skipped++
			continue
		}
		report.Integrations++
		res := s.syncOne(ctx, integ)
		report.Fetched += res.Fetched
		report.Ingested += res.Ingested
		report.Duplicates += res.Duplicates
		if res.Error != "" {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", integ.ID, res.Error))
		}
		if res.Ingested > 0 {
			tenants[integ.CompanyID] = true
		}
	}
	for companyID := range tenants {
		n, err := s.pipeline.ClassifyPending(ctx, companyID)
		report.Classified += n
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("classification %s: %v", companyID, err))
		}
	}
	return report, nil
}

// SyncIntegration sincronización manual de una integración del tenant.
func (s *SyncService) SyncIntegration(ctx context.Context, integ *entity.InboxIntegration) *dto.SyncResponse {
	res := s.syncOne(ctx, integ)
	if res.Ingested > 0 {
		if _, err := s.pipeline.ClassifyPending(ctx, integ.CompanyID); err != nil {
			s.log.Warn().Err(err).Str("company_id", integ.CompanyID).Msg("inbox: clasificación IA tras sync manual")
		}
	}
	return res
}

func (s *SyncService) syncOne(ctx context.Context, integ *entity.InboxIntegration) *dto.SyncResponse {
	res := &dto.SyncResponse{Status: entity.SyncStatusOK}
	log := s.log.With().Str("integration_id", integ.ID).Str("company_id", integ.CompanyID).Logger()

	if integ.Kind != entity.IntegrationIMAP {
		res.Status, res.Error = entity.SyncStatusError, "intégration sans synchronisation (webhook)"
		return res
	}
	if s.fetcher == nil {
		res.Status, res.Error = entity.SyncStatusError, "lecture IMAP non configurée"
		return res
	}

	fetchCtx, cancel := context.WithTimeout(ctx, FetchTimeout)
	msgs, err := s.fetcher.FetchUnseen(fetchCtx, ports.IMAPAccount{
		Host:     integ.IMAPHost,
		Port:     integ.IMAPPort,
		UseSSL:   integ.UseSSL,
		Username: integ.Username,
		Password: s.cipher.Decrypt(integ.PasswordEnc),
	}, s.MaxPerFetch)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("inbox: fallo de lectura IMAP")
		res.Status, res.Error = entity.SyncStatusError, truncate(err.Error(), 500)
		s.finish(ctx, integ, res)
		return res
	}

	res.Fetched = len(msgs)
	for _, m := range msgs {
		m.CompanyID = integ.CompanyID
		m.Source = entity.SourceEmail
		if m.ToAddress == "" {
			m.ToAddress = integ.AccountAddress
		}
		out, err := s.pipeline.Ingest(ctx, m)
		if err != nil {
			log.Warn().Err(err).Str("external_id", m.ExternalID).Msg("inbox: mensaje no ingerido")
			res.Status, res.Error = entity.SyncStatusError, truncate(err.Error(), 500)
			continue
		}
		if out.Duplicate {
			res.Duplicates++
			continue
		}
		res.Ingested++
	}
	s.finish(ctx, integ, res)
	log.Info().Int("fetched", res.Fetched).Int("ingested", res.Ingested).Int("duplicates", res.Duplicates).Msg("inbox: sync terminada")
	return res
}

// finish guarda el estado de la sincronización y avisa una vez al día si falló.
func (s *SyncService) finish(ctx context.Context, integ *entity.InboxIntegration, res *dto.SyncResponse) {
	now := s.Clock()
	err := s.tx.Run(ctx, func(r repository.Repos) error {
		if err := r.Integrations.UpdateSyncStatus(ctx, integ.ID, now, res.Status, res.Error); err != nil {
			return err
		}
		if res.Status != entity.SyncStatusError {
			return nil
		}
		_, err := notification.EmitDaily(ctx, r, notification.Event{
			CompanyID:  integ.CompanyID,
			Type:       entity.NotificationIntegrationError,
			Title:      "Synchronisation de la boîte impossible",
			Message:    fmt.Sprintf("%s : %s", integ.Name, res.Error),
			Link:       "/inbox/integrations",
			SourceType: "integration",
			SourceID:   integ.ID,
		}, now)
		return err
	})
	if err != nil {
		s.log.Error().Err(err).Str("integration_id", integ.ID).Msg("inbox: estado de sync no guardado")
	}
}
