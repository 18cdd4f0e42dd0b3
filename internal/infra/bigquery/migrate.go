package bigquery

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrationPattern matches migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration represents a single migration file.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// Migrator applies the embedded schema migrations to one dataset.
type Migrator struct {
	repo      *Repository
	appliedBy string
	log       zerolog.Logger
}

// NewMigrator returns a Migrator that records appliedBy for each migration.
func NewMigrator(repo *Repository, appliedBy string, log zerolog.Logger) *Migrator {
	return &Migrator{repo: repo, appliedBy: appliedBy, log: log}
}

// Up applies all pending migrations in version order and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("Up: ensure schema_migrations: %w", err)
	}

	migrations, err := ReadMigrations(migrationFiles, m.repo.project, m.repo.dataset)
	if err != nil {
		return 0, fmt.Errorf("Up: read migrations: %w", err)
	}
	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return 0, fmt.Errorf("Up: applied migrations: %w", err)
	}

	done := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		done[am.Version] = am
	}

	count := 0
	for _, mig := range migrations {
		if am, ok := done[mig.Version]; ok {
			if am.Checksum != "" && am.Checksum != mig.Checksum {
				m.log.Warn().Str("migration", mig.Filename).Msg("applied migration has changed since it ran")
			}
			m.log.Debug().Str("migration", mig.Filename).Msg("already applied")
			continue
		}

		m.log.Info().Str("migration", mig.Filename).Msg("applying migration")
		if _, err := m.repo.exec(ctx, mig.SQL); err != nil {
			return count, fmt.Errorf("Up: execute %s: %w", mig.Filename, err)
		}
		if err := m.record(ctx, mig); err != nil {
			return count, fmt.Errorf("Up: record %s: %w", mig.Filename, err)
		}
		count++
	}
	return count, nil
}

// ReadMigrations loads every NNNN_name.sql file under migrations/ in fsys,
// substituting the project and dataset placeholders. The checksum covers the
// file before substitution.
func ReadMigrations(fsys fs.FS, project, dataset string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("ReadMigrations: reading directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		mig, ok, err := parseMigration(fsys, entry.Name(), project, dataset)
		if err != nil {
			return nil, err
		}
		if ok {
			migrations = append(migrations, mig)
		}
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func parseMigration(fsys fs.FS, filename, project, dataset string) (Migration, bool, error) {
	matches := migrationPattern.FindStringSubmatch(filename)
	if matches == nil {
		return Migration{}, false, nil
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return Migration{}, false, nil
	}

	content, err := fs.ReadFile(fsys, "migrations/"+filename)
	if err != nil {
		return Migration{}, false, fmt.Errorf("ReadMigrations: reading %s: %w", filename, err)
	}

	sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", project)
	sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", dataset)

	return Migration{
		Version:  version,
		Name:     matches[2],
		Filename: filename,
		SQL:      sql,
		Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
	}, true, nil
}

func (m *Migrator) ensureSchemaMigrationsTable(ctx context.Context) error {
	_, err := m.repo.exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version    INT64 NOT NULL,
			name       STRING NOT NULL,
			applied_at TIMESTAMP NOT NULL,
			checksum   STRING,
			applied_by STRING
		)`, m.repo.table("schema_migrations")))
	return err
}

func (m *Migrator) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	type row struct {
		Version   int64               `bigquery:"version"`
		Name      string              `bigquery:"name"`
		AppliedAt time.Time           `bigquery:"applied_at"`
		Checksum  bigquery.NullString `bigquery:"checksum"`
		AppliedBy bigquery.NullString `bigquery:"applied_by"`
	}

	var applied []AppliedMigration
	err := readAll(ctx, m.repo.client,
		fmt.Sprintf(`SELECT version, name, applied_at, checksum, applied_by FROM %s ORDER BY version`,
			m.repo.table("schema_migrations")),
		nil,
		func(r *row) error {
			applied = append(applied, AppliedMigration{
				Version:   int(r.Version),
				Name:      r.Name,
				AppliedAt: r.AppliedAt,
				Checksum:  r.Checksum.StringVal,
				AppliedBy: r.AppliedBy.StringVal,
			})
			return nil
		})
	return applied, err
}

func (m *Migrator) record(ctx context.Context, mig Migration) error {
	_, err := m.repo.exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)`,
		m.repo.table("schema_migrations")),
		bigquery.QueryParameter{Name: "version", Value: mig.Version},
		bigquery.QueryParameter{Name: "name", Value: mig.Name},
		bigquery.QueryParameter{Name: "checksum", Value: mig.Checksum},
		bigquery.QueryParameter{Name: "applied_by", Value: m.appliedBy},
	)
	return err
}
