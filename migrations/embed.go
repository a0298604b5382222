// Package migrations holds the numbered PostgreSQL schema files applied by
// db.Migrator. They are embedded so the server binary can migrate without a
// checkout of the repository.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
