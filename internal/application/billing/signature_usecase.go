package billing

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/dto"
	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/billing"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// Parámetros del código de firma.
const (
	OTPLength      = 6
	OTPTTL         = 15 * time.Minute
	OTPMaxAttempts = 5
	OTPMaxPerHour  = 5
)

// ConsentText texto aceptado por el firmante; forma parte del hash de firma.
const ConsentText = "Je reconnais avoir pris connaissance du présent devis et l'accepter sans réserve. Bon pour accord."

// SignatureConfig remitente de los emails de código y URL pública de la aplicación.
type SignatureConfig struct {
	From      string
	FromName  string
	PublicURL string
}

// SignatureUseCase circuito de firma electrónica avanzada de devis (OTP + huella del documento).
type SignatureUseCase struct {
	tx     repository.TxRunner
	repos  repository.Repos
	mailer ports.EmailSender
	cfg    SignatureConfig
	log    zerolog.Logger
	Clock  func() time.Time
}

// NewSignatureUseCase construye el caso de uso.
func NewSignatureUseCase(tx repository.TxRunner, repos repository.Repos, mailer ports.EmailSender, cfg SignatureConfig, log zerolog.Logger) *SignatureUseCase {
	return &SignatureUseCase{tx: tx, repos: repos, mailer: mailer, cfg: cfg, log: log, Clock: time.Now}
}

// RequestOTP invalida los códigos activos de (devis, email), genera uno nuevo y lo envía por email.
func (uc *SignatureUseCase) RequestOTP(ctx context.Context, quoteID string, in dto.RequestOTPRequest, meta auth.RequestMeta) (*dto.RequestOTPResponse, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	now := uc.Clock()
	var (
		q    *entity.Quote
		code string
		otp  *entity.QuoteOTP
	)
	err := uc.tx.Run(ctx, func(r repository.Repos) error {
		var err error
		q, err = loadPublicQuote(ctx, r, quoteID)
		if err != nil {
			return err
		}
		if err := signable(ctx, r, q); err != nil {
			return err
		}
		if q.Client.Email != "" && !strings.EqualFold(q.Client.Email, email) {
			return domain.Validation("email", "cette adresse ne correspond pas au destinataire du devis")
		}
		sent, err := r.Signatures.CountOTPsSince(ctx, q.ID, email, now.Add(-time.Hour))
		if err != nil {
			return err
		}
		if sent >= OTPMaxPerHour {
			return domain.NewError(domain.ErrRateLimited, domain.CodeRateLimited, "trop de codes demandés, réessayez plus tard")
		}
		if err := r.Signatures.InvalidateActiveOTPs(ctx, q.ID, email, now); err != nil {
			return err
		}
		code, err = generateOTP()
		if err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash OTP: %w", err)
		}
		otp = &entity.QuoteOTP{
			ID:        uuid.New().String(),
			QuoteID:   q.ID,
			Email:     email,
			CodeHash:  string(hash),
			ExpiresAt: now.Add(OTPTTL),
			CreatedAt: now,
		}
		if err := r.Signatures.CreateOTP(ctx, otp); err != nil {
			return err
		}
		return appendSignatureEvent(ctx, r, q, entity.SignatureEventRequestedOTP, "Code de signature envoyé", email, meta, now)
	})
	if err != nil {
		return nil, err
	}

	if err := uc.mailer.Send(ctx, uc.otpEmail(q, email, code)); err != nil {
		uc.log.Error().Err(err).Str("quote_id", q.ID).Msg("envoi du code de signature impossible")
		return nil, fmt.Errorf("%w: envoi du code: %v", domain.ErrUpstream, err)
	}
	return &dto.RequestOTPResponse{
		Message:   fmt.Sprintf("Un code de signature a été envoyé à %s", email),
		ExpiresAt: otp.ExpiresAt,
	}, nil
}

// Submit valida el código y firma el devis. Los fallos de código se persisten aunque la llamada falle;
// al quinto fallo el código queda invalidado.
func (uc *SignatureUseCase) Submit(ctx context.Context, quoteID string, in dto.SubmitSignatureRequest, meta auth.RequestMeta) (*dto.SignatureResponse, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.SignerName)
	if !in.Consent {
		return nil, domain.Validation("consent", "le consentement est obligatoire pour signer")
	}
	if name == "" {
		return nil, domain.Validation("signer_name", "le nom du signataire est obligatoire")
	}
	now := uc.Clock()
	var (
		q        *entity.Quote
		sig      *entity.QuoteSignature
		rejected error
	)
	err := uc.tx.Run(ctx, func(r repository.Repos) error {
		var err error
		q, err = loadPublicQuote(ctx, r, quoteID)
		if err != nil {
			return err
		}
		if err := signable(ctx, r, q); err != nil {
			return err
		}
		otp, err := r.Signatures.GetLatestOTP(ctx, q.ID, email)
		if err != nil {
			return err
		}
		if otp == nil {
			return domain.NewError(domain.ErrUnauthorized, domain.CodeInvalidCode, "aucun code actif pour cette adresse")
		}
		if !now.Before(otp.ExpiresAt) {
			return domain.NewError(domain.ErrUnauthorized, domain.CodeExpired, "le code a expiré, demandez-en un nouveau")
		}
		if bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte(strings.TrimSpace(in.Code))) != nil {
			otp.Attempts++
			desc := fmt.Sprintf("Code invalide (tentative %d/%d)", otp.Attempts, OTPMaxAttempts)
			if otp.Attempts >= OTPMaxAttempts {
				otp.InvalidatedAt = &now
				desc += ", code invalidé"
			}
			if err := r.Signatures.UpdateOTP(ctx, otp); err != nil {
				return err
			}
			rejected = domain.NewError(domain.ErrUnauthorized, domain.CodeInvalidCode, "code de signature invalide")
			return appendSignatureEvent(ctx, r, q, entity.SignatureEventOTPFailed, desc, email, meta, now)
		}

		otp.UsedAt = &now
		if err := r.Signatures.UpdateOTP(ctx, otp); err != nil {
			return err
		}
		if err := appendSignatureEvent(ctx, r, q, entity.SignatureEventOTPValidated, "Code de signature validé", email, meta, now); err != nil {
			return err
		}

		docHash, err := billing.DocumentHash(q)
		if err != nil {
			return err
		}
		sig = &entity.QuoteSignature{
			ID:                 uuid.New().String(),
			QuoteID:            q.ID,
			CompanyID:          q.CompanyID,
			SignerEmail:        email,
			SignerName:         name,
			DocumentHashBefore: docHash,
			SignatureHash:      billing.SignatureHash(docHash, email, name, ConsentText, now),
			SignedAt:           now,
			IPAddress:          truncate(meta.IP, maxIPLength),
			UserAgent:          truncate(meta.UserAgent, maxUserAgentLength),
			Consent:            true,
			ConsentText:        ConsentText,
			Metadata:           map[string]any{"quote_number": q.Number, "total_ttc": q.TotalTTC.StringFixed(2)},
			CreatedAt:          now,
		}
		if err := r.Signatures.CreateSignature(ctx, sig); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				return domain.Conflict(domain.CodeAlreadySigned, "ce devis est déjà signé")
			}
			return err
		}
		if err := billing.ValidateQuoteTransition(q.Status, entity.QuoteStatusSigned); err != nil {
			return err
		}
		q.Status = entity.QuoteStatusSigned
		q.UpdatedAt = now
		if err := r.Quotes.UpdateStatus(ctx, q); err != nil {
			return err
		}
		return appendSignatureEvent(ctx, r, q, entity.SignatureEventSigned,
			fmt.Sprintf("Devis %s signé par %s", q.Number, name), email, meta, now)
	})
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		return nil, rejected
	}
	uc.log.Info().Str("company_id", q.CompanyID).Str("quote_id", q.ID).Msg("devis signé")
	return &dto.SignatureResponse{
		QuoteID:       q.ID,
		QuoteNumber:   q.Number,
		SignerEmail:   sig.SignerEmail,
		SignerName:    sig.SignerName,
		SignedAt:      sig.SignedAt,
		SignatureHash: sig.SignatureHash,
		DocumentHash:  sig.DocumentHashBefore,
	}, nil
}

// Verify recalcula la huella del devis actual y la compara con la almacenada al firmar.
func (uc *SignatureUseCase) Verify(ctx context.Context, actor *auth.Actor, quoteID string) (*dto.VerifyResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	q, err := loadQuote(ctx, uc.repos, companyID, quoteID)
	if err != nil {
		return nil, err
	}
	return VerifyQuote(ctx, uc.repos, q)
}

// VerifyQuote compara la huella actual de q con la de su firma.
func VerifyQuote(ctx context.Context, r repository.Repos, q *entity.Quote) (*dto.VerifyResponse, error) {
	sig, err := r.Signatures.GetSignature(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	if sig == nil {
		return &dto.VerifyResponse{Status: dto.VerifyNotSigned}, nil
	}
	current, err := billing.DocumentHash(q)
	if err != nil {
		return nil, err
	}
	recomputed := billing.SignatureHash(sig.DocumentHashBefore, sig.SignerEmail, sig.SignerName, sig.ConsentText, sig.SignedAt)
	out := &dto.VerifyResponse{
		Status:               dto.VerifyValid,
		StoredDocumentHash:   sig.DocumentHashBefore,
		CurrentDocumentHash:  current,
		SignatureHashMatches: recomputed == sig.SignatureHash,
		SignedAt:             &sig.SignedAt,
	}
	if current != sig.DocumentHashBefore || !out.SignatureHashMatches {
		out.Status = dto.VerifyTampered
	}
	return out, nil
}

// PublicView devis visto desde el enlace público; registra el evento viewed.
func (uc *SignatureUseCase) PublicView(ctx context.Context, quoteID string, meta auth.RequestMeta) (*dto.QuoteResponse, error) {
	var q *entity.Quote
	err := uc.tx.Run(ctx, func(r repository.Repos) error {
		var err error
		q, err = loadPublicQuote(ctx, r, quoteID)
		if err != nil {
			return err
		}
		return appendSignatureEvent(ctx, r, q, entity.SignatureEventViewed, "Devis consulté", "", meta, uc.Clock())
	})
	if err != nil {
		return nil, err
	}
	return ToQuoteResponse(q), nil
}

// Evidence fichero XML de prueba de un devis firmado; registra el evento download.
func (uc *SignatureUseCase) Evidence(ctx context.Context, quoteID string, meta auth.RequestMeta) ([]byte, string, error) {
	var (
		out    []byte
		number string
	)
	err := uc.tx.Run(ctx, func(r repository.Repos) error {
		q, err := loadPublicQuote(ctx, r, quoteID)
		if err != nil {
			return err
		}
		sig, err := r.Signatures.GetSignature(ctx, q.ID)
		if err != nil {
			return err
		}
		if sig == nil {
			return domain.ErrNotFound
		}
		if err := appendSignatureEvent(ctx, r, q, entity.SignatureEventDownload, "Preuve de signature téléchargée", "", meta, uc.Clock()); err != nil {
			return err
		}
		events, err := r.Signatures.ListAudit(ctx, q.ID)
		if err != nil {
			return err
		}
		out, err = billing.EvidenceXML(q, sig, events)
		number = q.Number
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return out, fmt.Sprintf("preuve-signature-%s.xml", number), nil
}

// Events registro del circuito de firma de un devis del tenant.
func (uc *SignatureUseCase) Events(ctx context.Context, actor *auth.Actor, quoteID string) ([]dto.SignatureEventResponse, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, err
	}
	if _, err := loadQuote(ctx, uc.repos, companyID, quoteID); err != nil {
		return nil, err
	}
	events, err := uc.repos.Signatures.ListAudit(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.SignatureEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, dto.SignatureEventResponse{
			EventType:   e.EventType,
			Description: e.Description,
			UserEmail:   e.UserEmail,
			IPAddress:   e.IPAddress,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out, nil
}

func (uc *SignatureUseCase) otpEmail(q *entity.Quote, email, code string) ports.EmailMessage {
	link := strings.TrimRight(uc.cfg.PublicURL, "/") + "/devis/" + q.ID + "/signature"
	text := fmt.Sprintf(
		"Bonjour,\n\nVotre code de signature pour le devis %s de %s est : %s\n\nIl est valable %d minutes. Signez le devis ici : %s\n\nSi vous n'êtes pas à l'origine de cette demande, ignorez ce message.",
		q.Number, q.Seller.Name, code, int(OTPTTL.Minutes()), link)
	return ports.EmailMessage{
		From:     uc.cfg.From,
		FromName: firstNonEmpty(uc.cfg.FromName, q.Seller.Name),
		To:       email,
		Subject:  fmt.Sprintf("Code de signature du devis %s", q.Number),
		Text:     text,
	}
}

func loadPublicQuote(ctx context.Context, r repository.Repos, id string) (*entity.Quote, error) {
	q, err := r.Quotes.GetPublic(ctx, id)
	if err != nil {
		return nil, err
	}
	if q == nil || q.Status == entity.QuoteStatusDraft {
		return nil, domain.ErrNotFound
	}
	return q, nil
}

// signable el devis debe estar accepté y sin firma previa.
func signable(ctx context.Context, r repository.Repos, q *entity.Quote) error {
	if q.Status == entity.QuoteStatusSigned {
		return domain.Conflict(domain.CodeAlreadySigned, "ce devis est déjà signé")
	}
	existing, err := r.Signatures.GetSignature(ctx, q.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.Conflict(domain.CodeAlreadySigned, "ce devis est déjà signé")
	}
	if q.Status != entity.QuoteStatusAccepted {
		return domain.Conflict(domain.CodeWrongState, fmt.Sprintf("le devis doit être accepté avant signature (statut %s)", q.Status))
	}
	return nil
}

func appendSignatureEvent(ctx context.Context, r repository.Repos, q *entity.Quote, eventType, desc, email string, meta auth.RequestMeta, now time.Time) error {
	return r.Signatures.AppendAudit(ctx, &entity.QuoteSignatureAuditLog{
		ID:          uuid.New().String(),
		QuoteID:     q.ID,
		CompanyID:   q.CompanyID,
		EventType:   eventType,
		Description: desc,
		UserEmail:   email,
		IPAddress:   truncate(meta.IP, maxIPLength),
		UserAgent:   truncate(meta.UserAgent, maxUserAgentLength),
		CreatedAt:   now,
	})
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generar OTP: %w", err)
	}
	return fmt.Sprintf("%0*d", OTPLength, n.Int64()), nil
}
