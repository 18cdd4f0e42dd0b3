package bigquery

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
)

// StatementRow mirrors the statements table.
type StatementRow struct {
	ID             string     `bigquery:"id"`              // REQUIRED
	Filename       string     `bigquery:"filename"`        // REQUIRED
	StoragePath    string     `bigquery:"storage_path"`    // REQUIRED
	StatementDate  civil.Date `bigquery:"statement_date"`  // REQUIRED
	ChecksumSHA256 string     `bigquery:"checksum_sha256"` // REQUIRED
	Processed      bool       `bigquery:"processed"`       // REQUIRED
	CreatedAt      time.Time  `bigquery:"created_at"`      // REQUIRED
}

func (r *StatementRow) toDomain() *domain.Statement {
	return &domain.Statement{
		ID:            r.ID,
		Filename:      r.Filename,
		StoragePath:   r.StoragePath,
		StatementDate: r.StatementDate,
		Checksum:      r.ChecksumSHA256,
		Processed:     r.Processed,
		CreatedAt:     r.CreatedAt,
	}
}
