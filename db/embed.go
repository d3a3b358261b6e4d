package db

import "embed"

// MigrationsFS holds the schema migrations compiled into the binary so a
// deploy never depends on files next to it.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
