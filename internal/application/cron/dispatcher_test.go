package cron_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/application/agenda"
	"github.com/jhoicas/lokario-api/internal/application/billing"
	"github.com/jhoicas/lokario-api/internal/application/cron"
	"github.com/jhoicas/lokario-api/internal/application/limits"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/testutil/memstore"
)

type fakeLocker struct {
	held     bool
	released int
}

func (l *fakeLocker) TryLock(_ context.Context, _ string, _ time.Duration) (func(context.Context) error, bool, error) {
	if l.held {
		return nil, false, nil
	}
	l.held = true
	return func(context.Context) error {
		l.held = false
		l.released++
		return nil
	}, true, nil
}

func TestDispatcher_PasosIndependientes(t *testing.T) {
	var order []string
	step := func(name string, n int, err error) cron.Step {
		return cron.Step{Name: name, Run: func(context.Context, time.Time) (int, error) {
			order = append(order, name)
			return n, err
		}}
	}
	panicking := cron.Step{Name: "panic", Run: func(context.Context, time.Time) (int, error) {
		order = append(order, "panic")
		panic("boom")
	}}
	locker := &fakeLocker{}
	d := cron.NewDispatcher(locker, zerolog.Nop(),
		step("a", 2, nil), step("b", 0, errors.New("imap caído")), panicking, step("c", 1, nil))

	rep, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "panic", "c"}, order)
	require.Len(t, rep.Steps, 4)
	assert.Equal(t, 2, rep.Steps[0].Count)
	assert.Equal(t, "imap caído", rep.Steps[1].Error)
	assert.Contains(t, rep.Steps[2].Error, "boom")
	assert.Equal(t, 1, rep.Steps[3].Count)
	assert.Equal(t, 2, rep.Failed())
	assert.Equal(t, 1, locker.released)
}

func TestDispatcher_CerrojoOcupado(t *testing.T) {
	locker := &fakeLocker{held: true}
	ran := false
	d := cron.NewDispatcher(locker, zerolog.Nop(), cron.Step{Name: "x", Run: func(context.Context, time.Time) (int, error) {
		ran = true
		return 0, nil
	}})
	rep, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Skipped)
	assert.False(t, ran)
	assert.Empty(t, rep.Steps)
}

func TestJobs_DevisExpiradosYAvisoDiario(t *testing.T) {
	store := memstore.New()
	repos := store.Repos()
	ctx := context.Background()
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	expiry := now.AddDate(0, 0, -2)
	require.NoError(t, repos.Quotes.Create(ctx, &entity.Quote{
		ID: "q1", CompanyID: "T1", Number: "DEV-2025-0001", Status: entity.QuoteStatusSent,
		IssueDate: now.AddDate(0, -1, 0), ExpiryDate: &expiry, Client: entity.PartySnapshot{Name: "Acme SAS"},
		CreatedAt: now, UpdatedAt: now,
	}))

	reminders := agenda.NewReminders(repos)
	reminders.Clock = func() time.Time { return now }
	jobs := cron.Jobs{
		Repos:     repos,
		Quotes:    billing.NewQuoteUseCase(store, repos, limits.NewService(repos), zerolog.Nop()),
		Reminders: reminders,
	}
	steps := jobs.Steps()
	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"quotes_expired", "task_alerts", "appointment_reminders"}, names)

	d := cron.NewDispatcher(nil, zerolog.Nop(), steps...)
	d.Clock = func() time.Time { return now }
	rep, err := d.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Steps[0].Count)
	assert.Zero(t, rep.Failed())

	q, err := repos.Quotes.GetByID(ctx, "T1", "q1")
	require.NoError(t, err)
	assert.Equal(t, entity.QuoteStatusExpired, q.Status)

	rep, err = d.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Steps[0].Count, "ya expirado")

	notes, err := repos.Notifications.List(ctx, "T1", "u1", false, 10, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, entity.NotificationQuoteExpired, notes[0].Type)
	assert.Contains(t, notes[0].Message, "DEV-2025-0001")
}
