// Package cron punto de entrada único de las tareas periódicas. Un cron externo
// llama al endpoint protegido; el dispatcher ejecuta los pasos en orden y un fallo
// en uno no impide los siguientes.
package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/lokario-api/internal/application/ports"
)

const (
	LockKey        = "lokario:cron"
	DefaultLockTTL = 10 * time.Minute
)

// Step paso del cron. Run devuelve el número de elementos tratados.
type Step struct {
	Name string
	Run  func(ctx context.Context, now time.Time) (int, error)
}

// StepResult resultado de un paso.
type StepResult struct {
	Name       string `json:"name"`
	Count      int    `json:"count"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Report resumen de una ejecución. Skipped indica que otro proceso tenía el cerrojo.
type Report struct {
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Skipped    bool         `json:"skipped"`
	Steps      []StepResult `json:"steps"`
}

// Failed número de pasos con error.
func (r *Report) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Error != "" {
			n++
		}
	}
	return n
}

// Dispatcher ejecuta los pasos bajo un cerrojo de ejecución única.
type Dispatcher struct {
	locker  ports.Locker
	steps   []Step
	log     zerolog.Logger
	LockTTL time.Duration
	Clock   func() time.Time
}

// NewDispatcher locker nil ejecuta sin cerrojo (instancia única).
func NewDispatcher(locker ports.Locker, log zerolog.Logger, steps ...Step) *Dispatcher {
	return &Dispatcher{locker: locker, steps: steps, log: log, LockTTL: DefaultLockTTL, Clock: time.Now}
}

// Run ejecuta todos los pasos. Solo devuelve error si no se pudo consultar el cerrojo.
func (d *Dispatcher) Run(ctx context.Context) (*Report, error) {
	report := &Report{StartedAt: d.Clock(), Steps: make([]StepResult, 0, len(d.steps))}
	if d.locker != nil {
		release, ok, err := d.locker.TryLock(ctx, LockKey, d.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("cerrojo cron: %w", err)
		}
		if !ok {
			d.log.Info().Msg("cron: otra ejecución en curso, se omite")
			report.Skipped = true
			report.FinishedAt = d.Clock()
			return report, nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				d.log.Warn().Err(err).Msg("cron: liberar cerrojo")
			}
		}()
	}

	for _, step := range d.steps {
		if ctx.Err() != nil {
			report.Steps = append(report.Steps, StepResult{Name: step.Name, Error: ctx.Err().Error()})
			continue
		}
		report.Steps = append(report.Steps, d.runStep(ctx, step))
	}
	report.FinishedAt = d.Clock()
	d.log.Info().
		Int("steps", len(report.Steps)).
		Int("failed", report.Failed()).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("cron: ejecución terminada")
	return report, nil
}

func (d *Dispatcher) runStep(ctx context.Context, step Step) (res StepResult) {
	res.Name = step.Name
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res.Error = fmt.Sprintf("panic: %v", p)
			d.log.Error().Str("step", step.Name).Interface("panic", p).Msg("cron: paso abortado")
		}
		res.DurationMS = time.Since(start).Milliseconds()
	}()
	n, err := step.Run(ctx, d.Clock())
	res.Count = n
	if err != nil {
		res.Error = err.Error()
		d.log.Error().Err(err).Str("step", step.Name).Int("count", n).Msg("cron: paso con error")
		return res
	}
	d.log.Debug().Str("step", step.Name).Int("count", n).Msg("cron: paso completado")
	return res
}
