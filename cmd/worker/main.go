package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/statement-ledger/internal/app"
	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	flags := pflag.NewFlagSet("worker", pflag.ExitOnError)
	cfgFile := flags.StringP("config", "c", "", "Config file")
	interval := flags.Duration("interval", 0, "Repeat the run at this interval (0 runs once)")
	skipAnalysis := flags.Bool("skip-analysis", false, "Do not run the insight roles after categorizing")
	flags.String("log-level", "", "Log level")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Build(*cfgFile, flags)
	if err != nil {
		l := logger.New()
		l.Fatal().Err(err).Msg("Failed to load config")
	}
	log := logger.NewWithOptions(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	// One worker keeps categorize ahead of analyze.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(10, 1, jobStore, log)
	if err := jobQueue.Start(ctx, a.JobRouter().Dispatch); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Dur("interval", *interval).Msg("Worker service started")
	for {
		runOnce(ctx, a, jobQueue, *skipAnalysis, log)
		if *interval <= 0 {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(*interval):
			continue
		}
		break
	}

	log.Info().Msg("Shutting down worker service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if *interval <= 0 {
		waitIdle(shutdownCtx, jobStore)
	}
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	log.Info().Msg("Worker service exited")
}

// runOnce ingests new mail and queues the follow-up stages.
func runOnce(ctx context.Context, a *app.App, q jobs.Publisher, skipAnalysis bool, log zerolog.Logger) {
	src, err := a.MailSource(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Mail source unavailable")
	} else if _, err := a.Ingestor.IngestAll(ctx, src); err != nil {
		log.Error().Err(err).Msg("Ingestion run failed")
	}

	follow := []jobs.JobType{jobs.JobTypeIngestPending, jobs.JobTypeCategorize}
	if !skipAnalysis {
		follow = append(follow, jobs.JobTypeAnalyze)
	}
	for _, t := range follow {
		if err := q.Publish(ctx, &jobs.Job{Type: t}); err != nil {
			log.Error().Err(err).Str("job_type", string(t)).Msg("Failed to enqueue job")
		}
	}
}

// waitIdle blocks until no job is pending, running or retrying.
func waitIdle(ctx context.Context, store jobs.JobStore) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		busy := false
		for _, s := range []jobs.JobStatus{jobs.JobStatusPending, jobs.JobStatusRunning, jobs.JobStatusRetrying} {
			list, err := store.ListJobs(ctx, jobs.JobFilter{Status: s, Limit: 1})
			if err == nil && len(list) > 0 {
				busy = true
			}
		}
		if !busy {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
