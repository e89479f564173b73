package repository

import (
	"context"
	"time"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

// DocumentFilter filtros comunes a devis y facturas.
type DocumentFilter struct {
	Status           string
	ClientID         string
	InvoiceType      string
	From             *time.Time
	To               *time.Time
	IncludingDeleted bool
	IncludeArchived  bool
	Limit            int
	Offset           int
}

// QuoteRepository persistencia de devis con sus líneas.
type QuoteRepository interface {
	// Create inserta el devis y sus líneas. Devuelve domain.ErrDuplicate si (company_id, number) ya existe,
	// sin abortar la transacción en curso.
	Create(ctx context.Context, q *entity.Quote) error
	GetByID(ctx context.Context, companyID, id string) (*entity.Quote, error)
	// GetPublic lectura sin tenant para el enlace público de firma.
	GetPublic(ctx context.Context, id string) (*entity.Quote, error)
	// Update reemplaza los campos de contenido y las líneas (solo brouillon).
	Update(ctx context.Context, q *entity.Quote) error
	// UpdateStatus persiste status y marcas sent/accepted/refused.
	UpdateStatus(ctx context.Context, q *entity.Quote) error
	Delete(ctx context.Context, companyID, id string) error
	List(ctx context.Context, companyID string, f DocumentFilter) ([]*entity.Quote, int, error)
	// NumbersWithPrefix números existentes del tenant que empiezan por prefix.
	NumbersWithPrefix(ctx context.Context, companyID, prefix string) ([]string, error)
	CountCreatedSince(ctx context.Context, companyID string, since time.Time) (int, error)
	// ListSentExpiringBefore devis envoyé (todos los tenants) con expiry_date < day.
	ListSentExpiringBefore(ctx context.Context, day time.Time) ([]*entity.Quote, error)
	DeleteByCompany(ctx context.Context, companyID string) error
}

// SignatureRepository firma, OTP y registro de eventos de un devis.
type SignatureRepository interface {
	// CreateSignature devuelve domain.ErrDuplicate si el devis ya tiene firma.
	CreateSignature(ctx context.Context, sig *entity.QuoteSignature) error
	GetSignature(ctx context.Context, quoteID string) (*entity.QuoteSignature, error)
	CreateOTP(ctx context.Context, otp *entity.QuoteOTP) error
	// InvalidateActiveOTPs marca invalidated_at en los OTP no usados de (quote, email).
	InvalidateActiveOTPs(ctx context.Context, quoteID, email string, now time.Time) error
	// GetLatestOTP último OTP no usado ni invalidado de (quote, email), caducado o no.
	GetLatestOTP(ctx context.Context, quoteID, email string) (*entity.QuoteOTP, error)
	UpdateOTP(ctx context.Context, otp *entity.QuoteOTP) error
	CountOTPsSince(ctx context.Context, quoteID, email string, since time.Time) (int, error)
	AppendAudit(ctx context.Context, entry *entity.QuoteSignatureAuditLog) error
	ListAudit(ctx context.Context, quoteID string) ([]entity.QuoteSignatureAuditLog, error)
}
