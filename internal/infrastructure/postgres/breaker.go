package postgres

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/jhoicas/lokario-api/internal/domain"
)

// BreakerConfig umbrales del circuito.
type BreakerConfig struct {
	Failures          uint32        // fallos consecutivos que abren el circuito
	OpenFor           time.Duration // tiempo abierto antes de pasar a semiabierto
	HalfOpenSuccesses uint32        // éxitos en semiabierto que lo cierran
}

// DefaultBreaker 5 fallos consecutivos abren el circuito 60 s; en semiabierto, 2 éxitos lo cierran.
var DefaultBreaker = BreakerConfig{Failures: 5, OpenFor: 60 * time.Second, HalfOpenSuccesses: 2}

// Guarded Querier protegido por un circuit breaker. Solo los fallos de conectividad
// cuentan: un error devuelto por el servidor (constraint, sintaxis, sin filas) prueba
// que la base responde, y una cancelación del cliente no dice nada de la base.
type Guarded struct {
	db Querier
	cb *gobreaker.TwoStepCircuitBreaker
}

// NewGuarded envuelve db (normalmente el *pgxpool.Pool) con los umbrales de cfg.
func NewGuarded(db Querier, cfg BreakerConfig, log zerolog.Logger) *Guarded {
	cb := gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        "postgres",
		MaxRequests: cfg.HalfOpenSuccesses,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= cfg.Failures },
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("postgres: cambio de estado del circuito")
		},
	})
	return &Guarded{db: db, cb: cb}
}

// State estado actual del circuito.
func (g *Guarded) State() gobreaker.State { return g.cb.State() }

func connectivityFailure(err error) bool {
	if err == nil || errors.Is(err, pgx.ErrNoRows) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	return !errors.As(err, &pgErr)
}

func (g *Guarded) allow() (func(error), error) {
	done, err := g.cb.Allow()
	if err != nil {
		return nil, domain.NewError(domain.ErrUpstream, "database_unavailable", "base de données indisponible")
	}
	return func(err error) { done(!connectivityFailure(err)) }, nil
}

func (g *Guarded) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	done, err := g.allow()
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	tag, err := g.db.Exec(ctx, sql, args...)
	done(err)
	return tag, err
}

func (g *Guarded) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	done, err := g.allow()
	if err != nil {
		return nil, err
	}
	rows, err := g.db.Query(ctx, sql, args...)
	done(err)
	return rows, err
}

// QueryRow el resultado se conoce en Scan, que debe llamarse siempre (pgxpool tampoco
// libera la conexión sin él). La plaza del circuito se libera en el primer Scan.
func (g *Guarded) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	done, err := g.allow()
	if err != nil {
		return errRow{err}
	}
	return &guardedRow{row: g.db.QueryRow(ctx, sql, args...), done: done}
}

func (g *Guarded) Begin(ctx context.Context) (pgx.Tx, error) {
	done, err := g.allow()
	if err != nil {
		return nil, err
	}
	tx, err := g.db.Begin(ctx)
	done(err)
	return tx, err
}

type guardedRow struct {
	row  pgx.Row
	done func(error)
	once sync.Once
}

func (r *guardedRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	r.once.Do(func() { r.done(err) })
	return err
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }
