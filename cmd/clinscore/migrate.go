package main

import (
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gyeh/clinscore/internal/db"
	"github.com/gyeh/clinscore/internal/exitcode"
	"github.com/gyeh/clinscore/internal/logging"
	"github.com/gyeh/clinscore/internal/store"
)

var seedPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the assessment tables, optionally seeding them from fixtures",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&seedPath, "seed", "", "YAML/JSON fixture file to bulk-load after migrating")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := cmd.Context()

	if cfg.DSN == "" {
		log.Error().Msg("--dsn or SUPABASE_DB_URL is required")
		os.Exit(exitcode.UsageError)
	}

	pool, err := db.NewPool(ctx, cfg.DSN, db.PoolOptions{MaxConns: cfg.Store.MaxConns})
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.StoreConnError)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, log); err != nil {
		log.Error().Err(err).Msg("schema setup failed")
		os.Exit(exitcode.UpstreamError)
	}

	if seedPath != "" {
		fx, err := store.LoadFixtures(seedPath)
		if err != nil {
			log.Error().Err(err).Msg("load seed fixtures failed")
			os.Exit(exitcode.InvalidArgument)
		}
		tables := fx.Tables()
		sort.Strings(tables)
		for _, table := range tables {
			rows := fx.Rows(table)
			if len(rows) == 0 {
				continue
			}
			n, err := db.CopyRecords(ctx, pool, table, rows, nil)
			if err != nil {
				log.Error().Err(err).Str("table", table).Msg("seed copy failed")
				os.Exit(exitcode.UpstreamError)
			}
			log.Info().Str("table", table).Int64("rows", n).Msg("seeded table")
		}
	}

	log.Info().Bool("seeded", seedPath != "").Msg("database ready")
	return nil
}
