package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gyeh/clinscore/internal/cache"
	"github.com/gyeh/clinscore/internal/config"
	"github.com/gyeh/clinscore/internal/db"
	"github.com/gyeh/clinscore/internal/engine"
	"github.com/gyeh/clinscore/internal/exitcode"
	"github.com/gyeh/clinscore/internal/logging"
	"github.com/gyeh/clinscore/internal/model"
	"github.com/gyeh/clinscore/internal/scoring"
	"github.com/gyeh/clinscore/internal/store"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfg        = config.Default()
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "clinscore",
	Short: "Clinical assessment scoring and risk aggregation",
	Long: "Scores PTSD (PCL-5), PHQ-9, GAD-7, WHO-5 and DERS assessments stored in Postgres or Supabase,\n" +
		"and serves scores, trends, composite risk and population comparisons as MCP tools.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to YAML config file")
	pf.StringVar(&cfg.Driver, "driver", cfg.Driver, "Store driver: postgres, rest or fixture")
	pf.StringVar(&cfg.DSN, "dsn", "", "Postgres connection string (or set SUPABASE_DB_URL)")
	pf.StringVar(&cfg.RestURL, "rest-url", "", "Supabase project URL for the rest driver (or set SUPABASE_URL)")
	pf.StringVar(&cfg.FixturePath, "fixtures", "", "YAML/JSON fixture file for the fixture driver")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	pf.StringVar(&cfg.AnsweredPolicy, "answered-policy", cfg.AnsweredPolicy, "Answered-question count: nonzero or nonnull")
}

// loadConfig merges the config file and environment under the flags. Flags
// set explicitly on the command line win over the file.
func loadConfig(cmd *cobra.Command, _ []string) error {
	if configPath != "" {
		flagged := cfg
		if err := cfg.LoadFromFile(configPath); err != nil {
			return err
		}
		flags := cmd.Flags()
		keep := func(name string, dst *string, v string) {
			if flags.Changed(name) {
				*dst = v
			}
		}
		keep("driver", &cfg.Driver, flagged.Driver)
		keep("fixtures", &cfg.FixturePath, flagged.FixturePath)
		keep("log-format", &cfg.LogFormat, flagged.LogFormat)
		keep("log-level", &cfg.LogLevel, flagged.LogLevel)
		keep("answered-policy", &cfg.AnsweredPolicy, flagged.AnsweredPolicy)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}
	return cfg.Validate()
}

// app is what every store-backed command needs.
type app struct {
	log   zerolog.Logger
	store store.Store
	svc   *engine.Service
}

func (a *app) Close() { a.store.Close() }

// setup connects to the configured store and builds the engine. It exits
// the process on failure.
func setup(ctx context.Context) *app {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)

	if err := cfg.ValidateStore(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	policy, ok := scoring.PolicyByName(cfg.AnsweredPolicy)
	if !ok {
		log.Error().Str("answered_policy", cfg.AnsweredPolicy).Msg("unknown answered policy")
		os.Exit(exitcode.UsageError)
	}

	st, err := openStore(ctx)
	if err != nil {
		log.Error().Err(err).Str("driver", cfg.Driver).Msg("store connection failed")
		os.Exit(exitcode.StoreConnError)
	}
	st = store.NewLimited(st, cfg.Store.QPS, cfg.Store.Burst)

	c := cache.New(cfg.Cache.MaxSize, cfg.Cache.TTL)
	svc := engine.New(st, c, scoring.NewScorer(policy), log, engine.OptionsFromConfig(&cfg, version))
	log.Debug().Str("driver", cfg.Driver).Msg("engine ready")
	return &app{log: log, store: st, svc: svc}
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverREST:
		return store.NewPostgREST(store.RESTOptions{
			BaseURL:    cfg.RestURL,
			APIKey:     cfg.RestKey,
			Timeout:    cfg.Store.Timeout,
			RetryCount: cfg.Store.Retries,
			PingTable:  cfg.Table(model.KindPTSD),
			PingColumn: cfg.PatientColumn,
		}), nil
	case config.DriverFixture:
		return store.LoadFixtures(cfg.FixturePath)
	default:
		pool, err := db.NewPool(ctx, cfg.DSN, db.PoolOptions{
			MaxConns:         cfg.Store.MaxConns,
			StatementTimeout: cfg.Store.StatementTimeout,
			ReadOnly:         true,
		})
		if err != nil {
			return nil, err
		}
		return store.NewPostgres(pool), nil
	}
}

// statusExit maps an engine result status to a process exit code.
func statusExit(s engine.Status) int {
	switch s {
	case engine.StatusOK:
		return exitcode.Success
	case engine.StatusNotFound:
		return exitcode.NotFound
	case engine.StatusInvalid:
		return exitcode.InvalidArgument
	default:
		return exitcode.UpstreamError
	}
}

// emit prints r as indented JSON on stdout and exits non-zero unless it
// is ok.
func emit(rt *app, r engine.Result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return err
	}
	if code := statusExit(r.Status); code != exitcode.Success {
		rt.log.Warn().Str("status", string(r.Status)).Str("message", r.Message).Msg("command did not succeed")
		rt.Close()
		os.Exit(code)
	}
	return nil
}
