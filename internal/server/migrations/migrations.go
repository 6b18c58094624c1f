// Package migrations embeds the SQL schema migrations applied by goose.
// Each dialect has its own directory.
package migrations

import "embed"

const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS
