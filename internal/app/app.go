// Package app builds the shared object graph the binaries run on from a
// loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dvloznov/statement-ledger/internal/blob"
	"github.com/dvloznov/statement-ledger/internal/categorize"
	"github.com/dvloznov/statement-ledger/internal/config"
	infraBQ "github.com/dvloznov/statement-ledger/internal/infra/bigquery"
	"github.com/dvloznov/statement-ledger/internal/infra/postgres"
	"github.com/dvloznov/statement-ledger/internal/insights"
	"github.com/dvloznov/statement-ledger/internal/llm"
	"github.com/dvloznov/statement-ledger/internal/mail"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/dvloznov/statement-ledger/internal/store/memory"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// App holds the configured adapters. Close releases them.
type App struct {
	Config    *config.Config
	Log       zerolog.Logger
	Store     store.Store
	Blobs     blob.Store
	Artifacts insights.ArtifactStore
	Ledger    *pipeline.Ledger
	Ingestor  *pipeline.Ingestor

	fs      afero.Fs
	closers []func() error

	modelOnce sync.Once
	model     llm.Model
	modelErr  error
}

// New connects the store, blob and artifact backends named in cfg. The
// model is created on first use so commands that never call it do not need
// credentials.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log, fs: afero.NewOsFs()}

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openBlobs(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openArtifacts(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.Ledger = pipeline.NewLedger(a.Store, a.Blobs, log)
	a.Ingestor = pipeline.NewIngestor(a.Ledger, cfg.PDFPassword, log)
	return a, nil
}

// NewWith assembles an App from ready adapters, used by tests and tools that
// bring their own backends. fsys backs the local inbox; nil means an empty
// in-memory filesystem.
func NewWith(cfg *config.Config, log zerolog.Logger, fsys afero.Fs, s store.Store, blobs blob.Store, artifacts insights.ArtifactStore, model llm.Model) *App {
	if fsys == nil {
		fsys = afero.NewMemMapFs()
	}
	a := &App{
		Config:    cfg,
		Log:       log,
		Store:     s,
		Blobs:     blobs,
		Artifacts: artifacts,
		fs:        fsys,
	}
	if model != nil {
		a.modelOnce.Do(func() { a.model = model })
	}
	a.Ledger = pipeline.NewLedger(s, blobs, log)
	a.Ingestor = pipeline.NewIngestor(a.Ledger, cfg.PDFPassword, log)
	return a
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.StoreBackend {
	case "postgres":
		repo, err := postgres.NewRepository(ctx, a.Config.DatabaseURL)
		if err != nil {
			return fmt.Errorf("app: postgres store: %w", err)
		}
		a.Store = repo
	case "bigquery":
		repo, err := infraBQ.NewRepository(ctx, a.Config.GCPProject, a.Config.BQDataset)
		if err != nil {
			return fmt.Errorf("app: bigquery store: %w", err)
		}
		a.Store = repo
	case "memory":
		a.Log.Warn().Msg("Using in-memory store, data is lost on exit")
		a.Store = memory.New()
	default:
		return fmt.Errorf("app: unknown store backend %q", a.Config.StoreBackend)
	}
	a.closers = append(a.closers, a.Store.Close)
	return nil
}

func (a *App) openBlobs(ctx context.Context) error {
	switch a.Config.BlobBackend {
	case "gcs":
		gcs, err := blob.NewGCSStore(ctx, a.Config.GCSBucket)
		if err != nil {
			return fmt.Errorf("app: gcs blobs: %w", err)
		}
		a.Blobs = gcs
		a.closers = append(a.closers, gcs.Close)
	case "fs":
		a.Blobs = blob.NewFSStore(a.fs, a.Config.BlobDir)
	default:
		return fmt.Errorf("app: unknown blob backend %q", a.Config.BlobBackend)
	}
	return nil
}

func (a *App) openArtifacts(ctx context.Context) error {
	switch a.Config.AnalysisBackend {
	case "gcs":
		gcs, err := insights.NewGCSArtifactStore(ctx, a.Config.GCSBucket, a.Config.AnalysisPath)
		if err != nil {
			return fmt.Errorf("app: gcs artifacts: %w", err)
		}
		a.Artifacts = gcs
		a.closers = append(a.closers, gcs.Close)
	case "file":
		a.Artifacts = insights.NewFileArtifactStore(a.fs, a.Config.AnalysisPath)
	default:
		return fmt.Errorf("app: unknown analysis backend %q", a.Config.AnalysisBackend)
	}
	return nil
}

// Model returns the configured language model wrapped with retry.
func (a *App) Model(ctx context.Context) (llm.Model, error) {
	a.modelOnce.Do(func() {
		var (
			m   llm.Model
			err error
		)
		switch a.Config.ModelProvider {
		case "ollama":
			m, err = llm.NewOllama(a.Config.OllamaURL, a.Config.OllamaModel)
		case "gemini":
			m, err = llm.NewGemini(ctx, a.Config.GeminiModel)
		default:
			err = fmt.Errorf("unknown model provider %q", a.Config.ModelProvider)
		}
		if err != nil {
			a.modelErr = fmt.Errorf("app: model: %w", err)
			return
		}
		a.model = llm.WithRetry(m, llm.DefaultRetryConfig, a.Log)
	})
	return a.model, a.modelErr
}

// Categorizer builds a categorizer over the store.
func (a *App) Categorizer(ctx context.Context, force bool) (*categorize.Categorizer, error) {
	m, err := a.Model(ctx)
	if err != nil {
		return nil, err
	}
	return categorize.New(a.Store, m, categorize.Options{
		Force:   force,
		Workers: a.Config.CategorizeWorkers,
	}, a.Log), nil
}

// Requestor builds the insight requestor with the default roles.
func (a *App) Requestor(ctx context.Context) (*insights.Requestor, error) {
	m, err := a.Model(ctx)
	if err != nil {
		return nil, err
	}
	return insights.NewRequestor(insights.NewStoreToolset(a.Store), insights.DefaultRoles(m), a.Artifacts, a.Log), nil
}

// MailSource returns Gmail when credentials are configured, otherwise the
// inbox directory.
func (a *App) MailSource(ctx context.Context) (mail.Source, error) {
	if a.Config.GmailCredentials != "" {
		src, err := mail.NewGmailSource(ctx, a.Config.GmailCredentials, a.Config.GmailQuery, a.Log)
		if err != nil {
			return nil, fmt.Errorf("app: gmail: %w", err)
		}
		return src, nil
	}
	a.Log.Info().Str("dir", a.Config.InboxDir).Msg("No Gmail credentials, reading statements from inbox directory")
	return mail.NewDirSource(a.fs, a.Config.InboxDir), nil
}

// CheckStore reports whether the store answers a trivial query.
func (a *App) CheckStore(ctx context.Context) error {
	_, err := a.Store.ListStatements(ctx, store.StatementFilter{Limit: 1})
	return err
}

// CheckModel reports whether the model is reachable.
func (a *App) CheckModel(ctx context.Context) error {
	m, err := a.Model(ctx)
	if err != nil {
		return err
	}
	return llm.Ping(ctx, m)
}

// Close releases every adapter in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
