package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// Statement is one ingested PDF document for a billing period.
// Once Processed is true the statement and its transactions are frozen.
type Statement struct {
	ID            string     `json:"id"`
	Filename      string     `json:"filename"`
	StoragePath   string     `json:"storage_path"`
	StatementDate civil.Date `json:"statement_date"`
	Checksum      string     `json:"checksum_sha256"`
	Processed     bool       `json:"processed"`
	CreatedAt     time.Time  `json:"created_at"`
}
