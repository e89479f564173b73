package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/infrastructure/postgres"
)

// fakeDB devuelve err en cada llamada y cuenta las que llegan a la base.
type fakeDB struct {
	err   error
	calls int
}

func (f *fakeDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	f.calls++
	return pgconn.CommandTag{}, f.err
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	f.calls++
	return nil, f.err
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	f.calls++
	return fakeRow{err: f.err}
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	f.calls++
	return nil, f.err
}

type fakeRow struct{ err error }

func (r fakeRow) Scan(...any) error { return r.err }

var errRefused = errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")

func testBreaker() postgres.BreakerConfig {
	return postgres.BreakerConfig{Failures: 5, OpenFor: 30 * time.Millisecond, HalfOpenSuccesses: 2}
}

func exec(g *postgres.Guarded) error {
	_, err := g.Exec(context.Background(), "SELECT 1")
	return err
}

// trip abre el circuito con fallos de conectividad.
func trip(t *testing.T, db *fakeDB, g *postgres.Guarded) {
	t.Helper()
	db.err = errRefused
	for i := 0; i < 5; i++ {
		require.ErrorIs(t, exec(g), errRefused)
	}
	require.Equal(t, gobreaker.StateOpen, g.State())
}

func TestGuarded_AbreTrasCincoFallos(t *testing.T) {
	db := &fakeDB{err: errRefused}
	g := postgres.NewGuarded(db, testBreaker(), zerolog.Nop())

	for i := 0; i < 4; i++ {
		require.ErrorIs(t, exec(g), errRefused)
	}
	assert.Equal(t, gobreaker.StateClosed, g.State(), "4 fallos no bastan")

	require.ErrorIs(t, exec(g), errRefused)
	assert.Equal(t, gobreaker.StateOpen, g.State())

	// Abierto: se rechaza sin tocar la base.
	err := exec(g)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Equal(t, "database_unavailable", domain.CodeOf(err))
	assert.Equal(t, 5, db.calls)

	_, err = g.Begin(context.Background())
	assert.ErrorIs(t, err, domain.ErrUpstream)
	var n int
	assert.ErrorIs(t, g.QueryRow(context.Background(), "SELECT 1").Scan(&n), domain.ErrUpstream)
	assert.Equal(t, 5, db.calls)
}

func TestGuarded_ErroresQueNoSonDeConectividad(t *testing.T) {
	cases := []error{
		&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"},
		&pgconn.PgError{Code: "42601", Message: "syntax error"},
		fmt.Errorf("insert invoice: %w", &pgconn.PgError{Code: "23505"}),
		pgx.ErrNoRows,
		context.Canceled,
		fmt.Errorf("query: %w", context.DeadlineExceeded),
	}
	for _, cause := range cases {
		t.Run(cause.Error(), func(t *testing.T) {
			db := &fakeDB{err: cause}
			g := postgres.NewGuarded(db, testBreaker(), zerolog.Nop())
			for i := 0; i < 10; i++ {
				_ = exec(g)
			}
			assert.Equal(t, gobreaker.StateClosed, g.State())
			assert.Equal(t, 10, db.calls)
		})
	}
}

func TestGuarded_SemiabiertoSeCierraConDosExitos(t *testing.T) {
	db := &fakeDB{}
	g := postgres.NewGuarded(db, testBreaker(), zerolog.Nop())
	trip(t, db, g)

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, g.State())

	db.err = nil
	require.NoError(t, exec(g))
	assert.Equal(t, gobreaker.StateHalfOpen, g.State(), "un solo éxito no cierra")
	require.NoError(t, exec(g))
	assert.Equal(t, gobreaker.StateClosed, g.State())
}

func TestGuarded_FalloEnSemiabiertoReabre(t *testing.T) {
	db := &fakeDB{}
	g := postgres.NewGuarded(db, testBreaker(), zerolog.Nop())
	trip(t, db, g)

	time.Sleep(40 * time.Millisecond)
	require.ErrorIs(t, exec(g), errRefused)
	assert.Equal(t, gobreaker.StateOpen, g.State())
}

func TestGuarded_QueryRowCuentaUnaVezPorFila(t *testing.T) {
	db := &fakeDB{}
	g := postgres.NewGuarded(db, testBreaker(), zerolog.Nop())
	trip(t, db, g)
	time.Sleep(40 * time.Millisecond)

	db.err = nil
	var n int
	row := g.QueryRow(context.Background(), "SELECT 1")
	require.NoError(t, row.Scan(&n))
	require.NoError(t, row.Scan(&n))
	assert.Equal(t, gobreaker.StateHalfOpen, g.State(), "un segundo Scan de la misma fila no es otro éxito")

	require.NoError(t, g.QueryRow(context.Background(), "SELECT 1").Scan(&n))
	assert.Equal(t, gobreaker.StateClosed, g.State())
}
