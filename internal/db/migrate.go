package db

import (
	"context"
	"fmt"
	"io/fs"
	"path"

	"github.com/rs/zerolog"

	embedsql "github.com/gyeh/clinscore/internal/sql"
)

// ApplyMigrations creates the assessment and substance history tables from
// the embedded schema files, in file name order. Every statement is
// IF NOT EXISTS, so rerunning against a seeded database is a no-op.
func ApplyMigrations(ctx context.Context, pool Pool, log zerolog.Logger) error {
	files, err := fs.Glob(embedsql.Migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list schema files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no schema files embedded")
	}

	for _, file := range files {
		name := path.Base(file)
		ddl, err := fs.ReadFile(embedsql.Migrations, file)
		if err != nil {
			return fmt.Errorf("load schema %s: %w", name, err)
		}
		log.Info().Str("schema", name).Msg("creating clinical tables")
		if _, err := pool.Exec(ctx, string(ddl)); err != nil {
			return fmt.Errorf("apply schema %s: %w", name, err)
		}
	}

	log.Info().Int("schemas", len(files)).Msg("clinical tables ready")
	return nil
}
