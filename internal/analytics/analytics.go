// Package analytics computes dashboard aggregates from a snapshot of
// transactions. Every function is pure; nothing is cached.
package analytics

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MonthTotal is the debit total of one "YYYY-MM" month.
type MonthTotal struct {
	Month string          `json:"month"`
	Total decimal.Decimal `json:"total"`
}

// CategoryTotal is the debit total of one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Percent  decimal.Decimal `json:"percent"`
}

// MonthFlow splits a month's transactions by direction.
type MonthFlow struct {
	Month  string          `json:"month"`
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
}

func sumWhere(txs []*domain.Transaction, dir domain.Direction) (decimal.Decimal, int) {
	total, n := decimal.Zero, 0
	for _, tx := range txs {
		if tx.Direction == dir {
			total = total.Add(tx.Amount)
			n++
		}
	}
	return total, n
}

// TotalSpending is the exact sum of debit amounts.
func TotalSpending(txs []*domain.Transaction) decimal.Decimal {
	total, _ := sumWhere(txs, domain.DirectionDebit)
	return total
}

// TotalCredits is the exact sum of credit amounts.
func TotalCredits(txs []*domain.Transaction) decimal.Decimal {
	total, _ := sumWhere(txs, domain.DirectionCredit)
	return total
}

// AvgDebit is the mean debit amount rounded to cents, or 0 without debits.
func AvgDebit(txs []*domain.Transaction) decimal.Decimal {
	mean, ok := meanDebit(txs)
	if !ok {
		return decimal.Zero
	}
	return mean.Round(2)
}

func meanDebit(txs []*domain.Transaction) (decimal.Decimal, bool) {
	total, n := sumWhere(txs, domain.DirectionDebit)
	if n == 0 {
		return decimal.Zero, false
	}
	return total.Div(decimal.NewFromInt(int64(n))), true
}

// MonthlySeries groups debits by month, ascending.
func MonthlySeries(txs []*domain.Transaction) []MonthTotal {
	totals := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if tx.Direction != domain.DirectionDebit {
			continue
		}
		m := tx.YearMonth()
		totals[m] = totals[m].Add(tx.Amount)
	}

	out := make([]MonthTotal, 0, len(totals))
	for m, total := range totals {
		out = append(out, MonthTotal{Month: m, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// CategoryBreakdown groups debits by category, largest first with ties broken
// by name. Missing categories count as domain.UncategorizedLabel.
func CategoryBreakdown(txs []*domain.Transaction) []CategoryTotal {
	totals := make(map[string]decimal.Decimal)
	spending := decimal.Zero
	for _, tx := range txs {
		if tx.Direction != domain.DirectionDebit {
			continue
		}
		cat := tx.CategoryOr(domain.UncategorizedLabel)
		totals[cat] = totals[cat].Add(tx.Amount)
		spending = spending.Add(tx.Amount)
	}

	out := make([]CategoryTotal, 0, len(totals))
	for cat, total := range totals {
		ct := CategoryTotal{Category: cat, Total: total, Percent: decimal.Zero}
		if spending.IsPositive() {
			ct.Percent = total.Mul(hundred).Div(spending).Round(1)
		}
		out = append(out, ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// CreditDebitSeries groups every transaction by month with per-direction
// sums, ascending.
func CreditDebitSeries(txs []*domain.Transaction) []MonthFlow {
	flows := make(map[string]*MonthFlow)
	for _, tx := range txs {
		m := tx.YearMonth()
		f, ok := flows[m]
		if !ok {
			f = &MonthFlow{Month: m, Debit: decimal.Zero, Credit: decimal.Zero}
			flows[m] = f
		}
		switch tx.Direction {
		case domain.DirectionDebit:
			f.Debit = f.Debit.Add(tx.Amount)
		case domain.DirectionCredit:
			f.Credit = f.Credit.Add(tx.Amount)
		}
	}

	out := make([]MonthFlow, 0, len(flows))
	for _, f := range flows {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// FilterByDate keeps transactions dated within [start, end]. A zero bound is
// open.
func FilterByDate(txs []*domain.Transaction, start, end civil.Date) []*domain.Transaction {
	out := make([]*domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !start.IsZero() && tx.TransactionDate.Before(start) {
			continue
		}
		if !end.IsZero() && tx.TransactionDate.After(end) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// Summary is the dashboard overview.
type Summary struct {
	TotalSpending    decimal.Decimal `json:"total_spending"`
	TotalCredits     decimal.Decimal `json:"total_credits"`
	AvgDebit         decimal.Decimal `json:"avg_debit"`
	TransactionCount int             `json:"transaction_count"`
	DebitCount       int             `json:"debit_count"`
	CreditCount      int             `json:"credit_count"`
	MonthlySeries    []MonthTotal    `json:"monthly_series"`
	Categories       []CategoryTotal `json:"categories"`
	CreditDebit      []MonthFlow     `json:"credit_debit"`
}

// Summarize computes every dashboard aggregate in one pass over txs.
func Summarize(txs []*domain.Transaction) Summary {
	spending, debits := sumWhere(txs, domain.DirectionDebit)
	credits, creditCount := sumWhere(txs, domain.DirectionCredit)
	return Summary{
		TotalSpending:    spending,
		TotalCredits:     credits,
		AvgDebit:         AvgDebit(txs),
		TransactionCount: len(txs),
		DebitCount:       debits,
		CreditCount:      creditCount,
		MonthlySeries:    MonthlySeries(txs),
		Categories:       CategoryBreakdown(txs),
		CreditDebit:      CreditDebitSeries(txs),
	}
}
