// Package sql embeds the schema used for local development and
// integration tests. Production data lives in the hosted backend.
package sql

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
