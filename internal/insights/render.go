package insights

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/analytics"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// money formats d as "$1,234.56".
func money(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + printer.Sprintf("$%.2f", d.InexactFloat64())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// RenderTransactions lists recent transactions, one per line.
func RenderTransactions(ctx context.Context, tools Toolset) (string, error) {
	txs, err := tools.QueryTransactions(ctx, Query{})
	if err != nil {
		return "", err
	}
	if len(txs) == 0 {
		return "No transactions found in the database.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d transactions:\n\n", len(txs))
	for _, tx := range txs {
		sign := "-"
		if tx.Direction == domain.DirectionCredit {
			sign = "+"
		}
		fmt.Fprintf(&b, "- %s: %s%s | %s | %s\n",
			tx.TransactionDate, sign, money(tx.Amount), tx.CategoryOr(domain.UncategorizedLabel), truncate(tx.Description, 50))
	}
	return b.String(), nil
}

// RenderCategoryStats shows total spending and the per-category split.
func RenderCategoryStats(ctx context.Context, tools Toolset) (string, error) {
	cats, err := tools.CategoryBreakdown(ctx)
	if err != nil {
		return "", err
	}
	if len(cats) == 0 {
		return "No debit transactions found.", nil
	}
	total := decimal.Zero
	for _, c := range cats {
		total = total.Add(c.Total)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Total spending: %s\n\nBreakdown by category:\n", money(total))
	for _, c := range cats {
		fmt.Fprintf(&b, "- %s: %s (%s%%)\n", c.Category, money(c.Total), c.Percent.StringFixed(1))
	}
	return b.String(), nil
}

// RenderMonthlyTrend shows monthly spending with month-over-month changes.
func RenderMonthlyTrend(ctx context.Context, tools Toolset) (string, error) {
	trend, err := tools.MonthlyTrend(ctx)
	if err != nil {
		return "", err
	}
	if len(trend.Months) == 0 {
		return "No debit transactions found.", nil
	}
	var b strings.Builder
	b.WriteString("Monthly spending trends:\n\n")
	for _, m := range trend.Months {
		change := ""
		if m.Change != nil {
			switch {
			case m.Change.IsPositive():
				change = fmt.Sprintf(" (↑%s)", money(*m.Change))
			case m.Change.IsNegative():
				change = fmt.Sprintf(" (↓%s)", money(m.Change.Neg()))
			default:
				change = " (→)"
			}
		}
		fmt.Fprintf(&b, "- %s: %s%s\n", m.Month, money(m.Total), change)
	}
	if len(trend.Months) >= 2 {
		fmt.Fprintf(&b, "\nAverage monthly spending: %s\n", money(trend.AverageMonthly))
	}
	return b.String(), nil
}

// RenderAnomalies renders flagged transactions as a markdown table.
func RenderAnomalies(ctx context.Context, tools Toolset) (string, error) {
	anomalies, err := tools.Anomalies(ctx)
	if err != nil {
		return "", err
	}
	if len(anomalies) == 0 {
		return "No anomalies detected. All transactions appear normal.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d potential anomalies:\n\n", len(anomalies))
	b.WriteString("| Date | Description | Amount | Type | Reason |\n")
	b.WriteString("| --- | --- | --- | --- | --- |\n")
	for _, a := range anomalies {
		kind := "Potential Duplicate"
		if a.Kind == analytics.AnomalyLarge {
			kind = "Unusually Large"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			a.Transaction.TransactionDate, truncate(a.Transaction.Description, 35), money(a.Transaction.Amount), kind, a.Reason)
	}
	return b.String(), nil
}

// renderAll concatenates several renderers.
func renderAll(fns ...func(context.Context, Toolset) (string, error)) func(context.Context, Toolset) (string, error) {
	return func(ctx context.Context, tools Toolset) (string, error) {
		parts := make([]string, 0, len(fns))
		for _, fn := range fns {
			s, err := fn(ctx, tools)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, "\n"), nil
	}
}
