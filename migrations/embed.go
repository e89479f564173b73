// Package migrations esquema SQL embebido, aplicado por cmd/migrate.
package migrations

import "embed"

// FS ficheros NNN_*.sql en orden lexicográfico.
//
//go:embed *.sql
var FS embed.FS
