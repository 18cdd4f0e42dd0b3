package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/statement-ledger/internal/config"
	infraBQ "github.com/dvloznov/statement-ledger/internal/infra/bigquery"
	"github.com/dvloznov/statement-ledger/internal/infra/postgres"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	flags := pflag.NewFlagSet("migrate", pflag.ExitOnError)
	cfgFile := flags.StringP("config", "c", "", "Config file")
	target := flags.String("target", "", "Schema to migrate: postgres or bigquery (default: store backend)")
	appliedBy := flags.String("applied-by", "migrate-cli", "Name recorded for applied BigQuery migrations")
	flags.String("database-url", "", "Postgres connection URL")
	flags.String("gcp-project", "", "GCP project ID")
	flags.String("bq-dataset", "", "BigQuery dataset ID")
	flags.String("log-level", "", "Log level")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Build(*cfgFile, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.NewWithOptions(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, resolveTarget(*target, cfg), *appliedBy, log); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}

// resolveTarget falls back to the configured store backend.
func resolveTarget(flagValue string, cfg *config.Config) string {
	if flagValue != "" {
		return flagValue
	}
	return cfg.StoreBackend
}

func run(ctx context.Context, cfg *config.Config, target, appliedBy string, log zerolog.Logger) error {
	switch target {
	case "postgres":
		status, err := postgres.Migrate(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		log.Info().
			Uint("from_version", status.Before).
			Uint("to_version", status.After).
			Bool("dirty", status.Dirty).
			Msg("Postgres schema up to date")
		return nil

	case "bigquery":
		if cfg.GCPProject == "" {
			return fmt.Errorf("--gcp-project is required for bigquery migrations")
		}
		repo, err := infraBQ.NewRepository(ctx, cfg.GCPProject, cfg.BQDataset)
		if err != nil {
			return err
		}
		defer repo.Close()

		log.Info().Str("project", cfg.GCPProject).Str("dataset", cfg.BQDataset).Msg("Connected to BigQuery")
		applied, err := infraBQ.NewMigrator(repo, appliedBy, log).Up(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("applied", applied).Msg("BigQuery schema up to date")
		return nil

	case "memory":
		log.Info().Msg("In-memory store has no schema, nothing to migrate")
		return nil

	default:
		return fmt.Errorf("unknown migration target %q", target)
	}
}
