package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

var (
	_ repository.QuoteRepository     = (*QuoteRepo)(nil)
	_ repository.SignatureRepository = (*SignatureRepo)(nil)
)

// QuoteRepo devis; las líneas viajan como JSONB en la misma fila.
type QuoteRepo struct {
	q Querier
}

const quoteColumns = `id, company_id, COALESCE(client_id::text, ''), number, status, issue_date, expiry_date, conditions, notes,
	seller, client, subtotal_ht, total_tax, total_ttc, discount, lines, sent_at, accepted_at, refused_at,
	created_by, created_at, updated_at`

func scanQuote(row pgx.Row) (*entity.Quote, error) {
	var q entity.Quote
	if err := row.Scan(&q.ID, &q.CompanyID, &q.ClientID, &q.Number, &q.Status, &q.IssueDate, &q.ExpiryDate, &q.Conditions, &q.Notes,
		&q.Seller, &q.Client, &q.SubtotalHT, &q.TotalTax, &q.TotalTTC, &q.Discount, &q.Lines, &q.SentAt, &q.AcceptedAt, &q.RefusedAt,
		&q.CreatedBy, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, err
	}
	return &q, nil
}

func linesOrEmpty(lines []entity.Line) []entity.Line {
	if lines == nil {
		return []entity.Line{}
	}
	return lines
}

// Create en savepoint: un número duplicado deja la transacción del llamador utilizable para reintentar.
func (r *QuoteRepo) Create(ctx context.Context, q *entity.Quote) error {
	return savepoint(ctx, r.q, func(sp Querier) error {
		_, err := sp.Exec(ctx, `INSERT INTO quotes (`+quoteColumnsInsert+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
			q.ID, q.CompanyID, nullIfEmpty(q.ClientID), q.Number, q.Status, q.IssueDate, q.ExpiryDate, q.Conditions, q.Notes,
			q.Seller, q.Client, q.SubtotalHT, q.TotalTax, q.TotalTTC, q.Discount, linesOrEmpty(q.Lines), q.SentAt, q.AcceptedAt, q.RefusedAt,
			q.CreatedBy, q.CreatedAt, q.UpdatedAt)
		return wrap("insert quote", err)
	})
}

const quoteColumnsInsert = `id, company_id, client_id, number, status, issue_date, expiry_date, conditions, notes,
	seller, client, subtotal_ht, total_tax, total_ttc, discount, lines, sent_at, accepted_at, refused_at,
	created_by, created_at, updated_at`

func (r *QuoteRepo) GetByID(ctx context.Context, companyID, id string) (*entity.Quote, error) {
	return one(r.q.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE company_id = $1 AND id = $2`, companyID, id),
		"get quote", scanQuote)
}

func (r *QuoteRepo) GetPublic(ctx context.Context, id string) (*entity.Quote, error) {
	return one(r.q.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id), "get public quote", scanQuote)
}

func (r *QuoteRepo) Update(ctx context.Context, q *entity.Quote) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE quotes SET client_id=$3, issue_date=$4, expiry_date=$5, conditions=$6, notes=$7, seller=$8, client=$9,
			subtotal_ht=$10, total_tax=$11, total_ttc=$12, discount=$13, lines=$14, updated_at=$15
		WHERE company_id = $1 AND id = $2`,
		q.CompanyID, q.ID, nullIfEmpty(q.ClientID), q.IssueDate, q.ExpiryDate, q.Conditions, q.Notes, q.Seller, q.Client,
		q.SubtotalHT, q.TotalTax, q.TotalTTC, q.Discount, linesOrEmpty(q.Lines), q.UpdatedAt)
	return affected(tag, err, "update quote")
}

func (r *QuoteRepo) UpdateStatus(ctx context.Context, q *entity.Quote) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE quotes SET status=$3, sent_at=$4, accepted_at=$5, refused_at=$6, updated_at=$7
		WHERE company_id = $1 AND id = $2`,
		q.CompanyID, q.ID, q.Status, q.SentAt, q.AcceptedAt, q.RefusedAt, q.UpdatedAt)
	return affected(tag, err, "update quote status")
}

func (r *QuoteRepo) Delete(ctx context.Context, companyID, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM quotes WHERE company_id = $1 AND id = $2`, companyID, id)
	return affected(tag, err, "delete quote")
}

func (r *QuoteRepo) List(ctx context.Context, companyID string, f repository.DocumentFilter) ([]*entity.Quote, int, error) {
	w := &where{}
	w.add("company_id = ?", companyID)
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.ClientID != "" {
		w.add("client_id = ?", f.ClientID)
	}
	total, err := count(ctx, r.q, "count quotes", `SELECT count(*) FROM quotes`+w.sql(), w.args...)
	if err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + quoteColumns + ` FROM quotes` + w.sql() + ` ORDER BY created_at DESC` + w.page(f.Limit, f.Offset)
	rows, err := r.q.Query(ctx, query, w.args...)
	list, err := collect(rows, err, "list quotes", scanQuote)
	return list, total, err
}

func numbersWithPrefix(ctx context.Context, q Querier, table, companyID, prefix string) ([]string, error) {
	rows, err := q.Query(ctx, `SELECT number FROM `+table+` WHERE company_id = $1 AND starts_with(number, $2)`, companyID, prefix)
	if err != nil {
		return nil, wrap("numbers with prefix", err)
	}
	numbers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return numbers, wrap("numbers with prefix", err)
}

func (r *QuoteRepo) NumbersWithPrefix(ctx context.Context, companyID, prefix string) ([]string, error) {
	return numbersWithPrefix(ctx, r.q, "quotes", companyID, prefix)
}

func (r *QuoteRepo) CountCreatedSince(ctx context.Context, companyID string, since time.Time) (int, error) {
	return count(ctx, r.q, "count quotes", `SELECT count(*) FROM quotes WHERE company_id = $1 AND created_at >= $2`, companyID, since)
}

func (r *QuoteRepo) ListSentExpiringBefore(ctx context.Context, day time.Time) ([]*entity.Quote, error) {
	rows, err := r.q.Query(ctx, `SELECT `+quoteColumns+` FROM quotes
		WHERE status = $1 AND expiry_date IS NOT NULL AND expiry_date < $2 ORDER BY expiry_date`, entity.QuoteStatusSent, day)
	return collect(rows, err, "list expiring quotes", scanQuote)
}

func (r *QuoteRepo) DeleteByCompany(ctx context.Context, companyID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM quotes WHERE company_id = $1`, companyID)
	return wrap("delete quotes", err)
}

// SignatureRepo firma, OTP y registro del circuito de firma.
type SignatureRepo struct {
	q Querier
}

func (r *SignatureRepo) CreateSignature(ctx context.Context, s *entity.QuoteSignature) error {
	metadata := s.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return savepoint(ctx, r.q, func(sp Querier) error {
		_, err := sp.Exec(ctx, `
			INSERT INTO quote_signatures (id, quote_id, company_id, signer_email, signer_name, signature_hash, document_hash_before,
				signed_at, ip_address, user_agent, consent, consent_text, metadata, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			s.ID, s.QuoteID, s.CompanyID, s.SignerEmail, s.SignerName, s.SignatureHash, s.DocumentHashBefore,
			s.SignedAt, s.IPAddress, s.UserAgent, s.Consent, s.ConsentText, metadata, s.CreatedAt)
		return wrap("insert signature", err)
	})
}

func (r *SignatureRepo) GetSignature(ctx context.Context, quoteID string) (*entity.QuoteSignature, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, quote_id, company_id, signer_email, signer_name, signature_hash, document_hash_before,
			signed_at, ip_address, user_agent, consent, consent_text, metadata, created_at
		FROM quote_signatures WHERE quote_id = $1`, quoteID)
	return one(row, "get signature", func(row pgx.Row) (*entity.QuoteSignature, error) {
		var s entity.QuoteSignature
		if err := row.Scan(&s.ID, &s.QuoteID, &s.CompanyID, &s.SignerEmail, &s.SignerName, &s.SignatureHash, &s.DocumentHashBefore,
			&s.SignedAt, &s.IPAddress, &s.UserAgent, &s.Consent, &s.ConsentText, &s.Metadata, &s.CreatedAt); err != nil {
			return nil, err
		}
		return &s, nil
	})
}

func (r *SignatureRepo) CreateOTP(ctx context.Context, o *entity.QuoteOTP) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO quote_otps (id, quote_id, email, code_hash, expires_at, attempts, used_at, invalidated_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		o.ID, o.QuoteID, o.Email, o.CodeHash, o.ExpiresAt, o.Attempts, o.UsedAt, o.InvalidatedAt, o.CreatedAt)
	return wrap("insert otp", err)
}

func (r *SignatureRepo) InvalidateActiveOTPs(ctx context.Context, quoteID, email string, now time.Time) error {
	_, err := r.q.Exec(ctx, `
		UPDATE quote_otps SET invalidated_at = $3
		WHERE quote_id = $1 AND email = $2 AND used_at IS NULL AND invalidated_at IS NULL`, quoteID, email, now)
	return wrap("invalidate otps", err)
}

func (r *SignatureRepo) GetLatestOTP(ctx context.Context, quoteID, email string) (*entity.QuoteOTP, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, quote_id, email, code_hash, expires_at, attempts, used_at, invalidated_at, created_at
		FROM quote_otps WHERE quote_id = $1 AND email = $2 AND used_at IS NULL AND invalidated_at IS NULL
		ORDER BY created_at DESC LIMIT 1`, quoteID, email)
	return one(row, "get otp", func(row pgx.Row) (*entity.QuoteOTP, error) {
		var o entity.QuoteOTP
		if err := row.Scan(&o.ID, &o.QuoteID, &o.Email, &o.CodeHash, &o.ExpiresAt, &o.Attempts, &o.UsedAt, &o.InvalidatedAt, &o.CreatedAt); err != nil {
			return nil, err
		}
		return &o, nil
	})
}

func (r *SignatureRepo) UpdateOTP(ctx context.Context, o *entity.QuoteOTP) error {
	tag, err := r.q.Exec(ctx, `UPDATE quote_otps SET attempts = $2, used_at = $3, invalidated_at = $4 WHERE id = $1`,
		o.ID, o.Attempts, o.UsedAt, o.InvalidatedAt)
	return affected(tag, err, "update otp")
}

func (r *SignatureRepo) CountOTPsSince(ctx context.Context, quoteID, email string, since time.Time) (int, error) {
	return count(ctx, r.q, "count otps",
		`SELECT count(*) FROM quote_otps WHERE quote_id = $1 AND email = $2 AND created_at >= $3`, quoteID, email, since)
}

func (r *SignatureRepo) AppendAudit(ctx context.Context, e *entity.QuoteSignatureAuditLog) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO quote_signature_audit_logs (id, quote_id, company_id, event_type, description, user_email, user_id, ip_address, user_agent, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		e.ID, e.QuoteID, e.CompanyID, e.EventType, e.Description, e.UserEmail, e.UserID, e.IPAddress, e.UserAgent, e.CreatedAt)
	return wrap("insert signature audit", err)
}

func (r *SignatureRepo) ListAudit(ctx context.Context, quoteID string) ([]entity.QuoteSignatureAuditLog, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, quote_id, company_id, event_type, description, user_email, user_id, ip_address, user_agent, created_at
		FROM quote_signature_audit_logs WHERE quote_id = $1 ORDER BY created_at, id`, quoteID)
	if err != nil {
		return nil, wrap("list signature audit", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.QuoteSignatureAuditLog, error) {
		var e entity.QuoteSignatureAuditLog
		err := row.Scan(&e.ID, &e.QuoteID, &e.CompanyID, &e.EventType, &e.Description, &e.UserEmail, &e.UserID, &e.IPAddress, &e.UserAgent, &e.CreatedAt)
		return e, err
	})
	return out, wrap("list signature audit", err)
}
