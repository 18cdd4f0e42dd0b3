package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/statement-ledger/internal/app"
	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// globalFlags are bound into the config by name.
type globalFlags struct {
	cfgFile string
}

func newRootCmd() *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:           "ledger",
		Short:         "Statement ledger command-line interface",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.cfgFile, "config", "c", "", "Config file (yaml, json or toml)")
	pf.String("store-backend", "", "Store backend: postgres, bigquery or memory")
	pf.String("database-url", "", "Postgres connection URL")
	pf.String("gcp-project", "", "GCP project for BigQuery and GCS")
	pf.String("bq-dataset", "", "BigQuery dataset")
	pf.String("blob-backend", "", "Blob backend: fs or gcs")
	pf.String("blob-dir", "", "Directory for the fs blob backend")
	pf.String("gcs-bucket", "", "GCS bucket")
	pf.String("model-provider", "", "Model provider: ollama or gemini")
	pf.String("ollama-url", "", "Ollama base URL")
	pf.String("ollama-model", "", "Ollama model name")
	pf.String("pdf-password", "", "Password for protected statements")
	pf.String("log-level", "", "Log level")
	pf.String("log-format", "", "Log format: console or json")

	root.AddCommand(
		newFetchCmd(&g),
		newIngestCmd(&g),
		newParseCmd(&g),
		newCategorizeCmd(&g),
		newStatsCmd(&g),
		newAnomaliesCmd(&g),
		newAnalyzeCmd(&g),
		newDeleteStatementCmd(&g),
		newClearCmd(&g),
		newHealthCmd(&g),
	)
	return root
}

// loadConfig builds the config from the command's flags and returns a
// logger writing to stderr.
func loadConfig(cmd *cobra.Command, g *globalFlags) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Build(g.cfgFile, cmd.Flags())
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger.NewWithOptions(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat), nil
}

// withApp runs fn with a connected App and a context cancelled on SIGINT.
func withApp(cmd *cobra.Command, g *globalFlags, fn func(ctx context.Context, a *app.App, out io.Writer) error) error {
	cfg, log, err := loadConfig(cmd, g)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a, cmd.OutOrStdout())
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
