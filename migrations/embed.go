// Package migrations embeds SQL migration files into the binary.
//
// This allows PowerSwitch to run migrations without needing the SQL files
// present on the filesystem - they're compiled into the executable.
package migrations

import (
	"embed"

	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

// Source returns the embedded migrations. Files are at the root of the FS.
func Source() database.Source {
	return database.Source{FS: migrationsFS, Dir: "."}
}
