package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// TransactionRow mirrors the transactions table.
type TransactionRow struct {
	ID              string              `bigquery:"id"`               // REQUIRED
	StatementID     string              `bigquery:"statement_id"`     // REQUIRED
	PostedDate      civil.Date          `bigquery:"posted_date"`      // REQUIRED
	TransactionDate civil.Date          `bigquery:"transaction_date"` // REQUIRED
	Description     string              `bigquery:"description"`      // REQUIRED
	Amount          *big.Rat            `bigquery:"amount"`           // REQUIRED, NUMERIC
	TransactionType string              `bigquery:"transaction_type"` // REQUIRED
	Category        bigquery.NullString `bigquery:"category"`         // NULLABLE
	CreatedAt       time.Time           `bigquery:"created_at"`       // REQUIRED
}

func transactionRowFrom(t *domain.Transaction) *TransactionRow {
	row := &TransactionRow{
		ID:              t.ID,
		StatementID:     t.StatementID,
		PostedDate:      t.PostedDate,
		TransactionDate: t.TransactionDate,
		Description:     t.Description,
		Amount:          t.Amount.Rat(),
		TransactionType: string(t.Direction),
		CreatedAt:       t.CreatedAt,
	}
	if t.Category != nil {
		row.Category = bigquery.NullString{StringVal: *t.Category, Valid: true}
	}
	return row
}

func (r *TransactionRow) toDomain() (*domain.Transaction, error) {
	if r.Amount == nil {
		return nil, fmt.Errorf("transaction %s: amount is NULL", r.ID)
	}
	amount, err := decimal.NewFromString(r.Amount.FloatString(2))
	if err != nil {
		return nil, fmt.Errorf("transaction %s: amount: %w", r.ID, err)
	}
	t := &domain.Transaction{
		ID:              r.ID,
		StatementID:     r.StatementID,
		PostedDate:      r.PostedDate,
		TransactionDate: r.TransactionDate,
		Description:     r.Description,
		Amount:          amount,
		Direction:       domain.Direction(r.TransactionType),
		CreatedAt:       r.CreatedAt,
	}
	if r.Category.Valid {
		cat := r.Category.StringVal
		t.Category = &cat
	}
	return t, nil
}
