package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/lokario-api/internal/application/ports"
)

var _ ports.Locker = (*AdvisoryLocker)(nil)

// AdvisoryLocker cerrojo de ejecución única con pg_try_advisory_lock. El cerrojo es de
// sesión: la conexión se retiene hasta liberar. El ttl no aplica; si el proceso muere,
// PostgreSQL suelta el cerrojo al cerrarse la conexión.
type AdvisoryLocker struct {
	pool *pgxpool.Pool
}

// NewAdvisoryLocker construye el locker.
func NewAdvisoryLocker(pool *pgxpool.Pool) *AdvisoryLocker {
	return &AdvisoryLocker{pool: pool}
}

// TryLock ok=false si otra sesión tiene el cerrojo.
func (l *AdvisoryLocker) TryLock(ctx context.Context, key string, _ time.Duration) (func(context.Context) error, bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("advisory lock: %w", err)
	}
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, key).Scan(&ok); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		defer conn.Release()
		_, err := conn.Exec(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, key)
		return err
	}
	return release, true, nil
}
