package domain

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Direction classifies a transaction as an outflow (debit) or an inflow (credit).
type Direction string

const (
	// DirectionDebit is money leaving the card account (purchases, fees).
	DirectionDebit Direction = "debit"
	// DirectionCredit is money coming back (payments, refunds).
	DirectionCredit Direction = "credit"
)

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	return d == DirectionDebit || d == DirectionCredit
}

// ParseDirection accepts "debit"/"credit" in any case.
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown direction %q", s)
	}
	return d, nil
}

// UncategorizedLabel is used for rows without a category in aggregates and
// as the categorizer fallback when the model response cannot be parsed.
const UncategorizedLabel = "Uncategorized"

// Transaction is one line item belonging to a statement.
// Amount is always a positive magnitude; Direction carries the sign.
type Transaction struct {
	ID              string          `json:"id"`
	StatementID     string          `json:"statement_id"`
	PostedDate      civil.Date      `json:"posted_date"`
	TransactionDate civil.Date      `json:"transaction_date"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Direction       Direction       `json:"transaction_type"`
	Category        *string         `json:"category"`
	CreatedAt       time.Time       `json:"created_at"`
}

// CategoryOr returns the category or fallback when it is unset.
func (t *Transaction) CategoryOr(fallback string) string {
	if t.Category == nil || *t.Category == "" {
		return fallback
	}
	return *t.Category
}

// YearMonth returns the "YYYY-MM" key of the transaction date.
func (t *Transaction) YearMonth() string {
	return fmt.Sprintf("%04d-%02d", t.TransactionDate.Year, int(t.TransactionDate.Month))
}

// Validate checks the row before it is handed to a store.
func (t *Transaction) Validate() error {
	if t.StatementID == "" {
		return fmt.Errorf("transaction: statement id is required")
	}
	if !t.TransactionDate.IsValid() {
		return fmt.Errorf("transaction: invalid transaction date %v", t.TransactionDate)
	}
	if !t.PostedDate.IsValid() {
		return fmt.Errorf("transaction: invalid posted date %v", t.PostedDate)
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("transaction: description is required")
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("transaction: amount must be > 0, got %s", t.Amount.String())
	}
	if !t.Direction.Valid() {
		return fmt.Errorf("transaction: invalid direction %q", t.Direction)
	}
	return nil
}

// RawLine is the strict record emitted by the PDF extractor, before it is
// bound to a statement.
type RawLine struct {
	TransactionDate civil.Date
	PostedDate      civil.Date
	Description     string
	Amount          decimal.Decimal
	Direction       Direction
	Page            int
	Section         string
}

// ToTransaction binds the line to a statement.
func (l RawLine) ToTransaction(id, statementID string, createdAt time.Time) *Transaction {
	return &Transaction{
		ID:              id,
		StatementID:     statementID,
		PostedDate:      l.PostedDate,
		TransactionDate: l.TransactionDate,
		Description:     l.Description,
		Amount:          l.Amount,
		Direction:       l.Direction,
		CreatedAt:       createdAt,
	}
}
