package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

var _ repository.TxRunner = (*TxRunner)(nil)

// NewRepos todos los repositorios sobre q (pool, pool protegido o tx).
func NewRepos(q Querier) repository.Repos {
	return repository.Repos{
		Companies:     &CompanyRepo{q: q},
		Subscriptions: &SubscriptionRepo{q: q},
		Users:         &UserRepo{q: q},
		Clients:       &ClientRepo{q: q},
		Quotes:        &QuoteRepo{q: q},
		Signatures:    &SignatureRepo{q: q},
		Invoices:      &InvoiceRepo{q: q},
		Conversations: &ConversationRepo{q: q},
		Folders:       &FolderRepo{q: q},
		Integrations:  &IntegrationRepo{q: q},
		FollowUps:     &FollowUpRepo{q: q},
		Notifications: &NotificationRepo{q: q},
		Tasks:         &TaskRepo{q: q},
		Appointments:  &AppointmentRepo{q: q},
	}
}

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	db Querier
}

// NewTxRunner construye el runner; db suele ser el pool protegido.
func NewTxRunner(db Querier) *TxRunner {
	return &TxRunner{db: db}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(repository.Repos) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewRepos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
