// Comando migrate: aplica en orden los .sql embebidos en migrations/ y registra cada versión
// en schema_migrations. Idempotente: las versiones ya aplicadas se saltan.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jhoicas/lokario-api/internal/infrastructure/postgres"
	"github.com/jhoicas/lokario-api/migrations"
	"github.com/jhoicas/lokario-api/pkg/config"
	"github.com/jhoicas/lokario-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cargar configuración:", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, App: "lokario-migrate"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	applied, err := postgres.Migrate(ctx, pool, migrations.FS)
	if err != nil {
		log.Fatal().Err(err).Msg("migraciones")
	}
	log.Info().Strs("applied", applied).Msg("migraciones al día")
}
