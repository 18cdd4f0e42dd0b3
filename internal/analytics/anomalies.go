package analytics

import (
	"fmt"
	"sort"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// LargeFactor flags a debit larger than this multiple of the mean debit.
var LargeFactor = decimal.NewFromInt(3)

// AnomalyKind names why a transaction was flagged.
type AnomalyKind string

const (
	AnomalyDuplicate AnomalyKind = "duplicate"
	AnomalyLarge     AnomalyKind = "large"
)

// Anomaly is one flagged transaction. A transaction can appear once per kind.
type Anomaly struct {
	Transaction *domain.Transaction `json:"transaction"`
	Kind        AnomalyKind         `json:"kind"`
	Reason      string              `json:"reason"`
}

type duplicateKey struct {
	date        string
	description string
	amount      string
}

func keyOf(tx *domain.Transaction) duplicateKey {
	return duplicateKey{
		date:        tx.TransactionDate.String(),
		description: tx.Description,
		amount:      tx.Amount.StringFixed(2),
	}
}

// DetectAnomalies flags every transaction that shares its date, description
// and amount with another one, and every debit above LargeFactor times the
// mean debit. Results are ordered by date, then description.
func DetectAnomalies(txs []*domain.Transaction) []Anomaly {
	counts := make(map[duplicateKey]int, len(txs))
	for _, tx := range txs {
		counts[keyOf(tx)]++
	}

	var out []Anomaly
	for _, tx := range txs {
		if n := counts[keyOf(tx)]; n > 1 {
			out = append(out, Anomaly{
				Transaction: tx,
				Kind:        AnomalyDuplicate,
				Reason:      fmt.Sprintf("same date, description and amount as %d other transaction(s)", n-1),
			})
		}
	}

	if mean, ok := meanDebit(txs); ok {
		threshold := mean.Mul(LargeFactor)
		for _, tx := range txs {
			if tx.Direction == domain.DirectionDebit && tx.Amount.GreaterThan(threshold) {
				out = append(out, Anomaly{
					Transaction: tx,
					Kind:        AnomalyLarge,
					Reason:      fmt.Sprintf("%sx average", tx.Amount.Div(mean).StringFixed(1)),
				})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Transaction, out[j].Transaction
		if a.TransactionDate != b.TransactionDate {
			return a.TransactionDate.Before(b.TransactionDate)
		}
		if a.Description != b.Description {
			return a.Description < b.Description
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}
