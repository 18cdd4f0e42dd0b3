package analytics

import (
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// MonthChange is a month's spending and the change from the previous month.
// Change is nil for the first month.
type MonthChange struct {
	Month  string           `json:"month"`
	Total  decimal.Decimal  `json:"total"`
	Change *decimal.Decimal `json:"change"`
}

// Trend is the month-over-month spending view.
type Trend struct {
	Months         []MonthChange   `json:"months"`
	AverageMonthly decimal.Decimal `json:"average_monthly"`
}

// MonthlyTrend adds month-over-month changes and the average monthly spend
// (rounded to cents) to MonthlySeries.
func MonthlyTrend(txs []*domain.Transaction) Trend {
	series := MonthlySeries(txs)
	trend := Trend{Months: make([]MonthChange, 0, len(series)), AverageMonthly: decimal.Zero}

	sum := decimal.Zero
	for i, m := range series {
		mc := MonthChange{Month: m.Month, Total: m.Total}
		if i > 0 {
			change := m.Total.Sub(series[i-1].Total)
			mc.Change = &change
		}
		trend.Months = append(trend.Months, mc)
		sum = sum.Add(m.Total)
	}
	if len(series) > 0 {
		trend.AverageMonthly = sum.Div(decimal.NewFromInt(int64(len(series)))).Round(2)
	}
	return trend
}
