package analytics

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) civil.Date {
	date, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return date
}

func txn(date, desc, amount string, dir domain.Direction, category string) *domain.Transaction {
	tx := &domain.Transaction{
		ID:              date + desc + amount,
		StatementID:     "st-1",
		PostedDate:      day(date),
		TransactionDate: day(date),
		Description:     desc,
		Amount:          d(amount),
		Direction:       dir,
	}
	if category != "" {
		tx.Category = &category
	}
	return tx
}

// scenario is the three-row example: two identical $50 debits and a credit.
func scenario() []*domain.Transaction {
	return []*domain.Transaction{
		txn("2024-01-05", "WHOLEFDS", "50", domain.DirectionDebit, "Food"),
		txn("2024-01-05", "WHOLEFDS", "50", domain.DirectionDebit, "Food"),
		txn("2024-02-01", "PAYMENT", "1000", domain.DirectionCredit, ""),
	}
}

func TestScenario_Totals(t *testing.T) {
	txs := scenario()

	assert.True(t, TotalSpending(txs).Equal(d("100")))
	assert.True(t, TotalCredits(txs).Equal(d("1000")))

	cats := CategoryBreakdown(txs)
	require.Len(t, cats, 1)
	assert.Equal(t, "Food", cats[0].Category)
	assert.True(t, cats[0].Total.Equal(d("100")))
	assert.True(t, cats[0].Percent.Equal(d("100")))
}

func TestScenario_DuplicatesFlagged(t *testing.T) {
	anomalies := DetectAnomalies(scenario())
	require.Len(t, anomalies, 2)
	for _, a := range anomalies {
		assert.Equal(t, AnomalyDuplicate, a.Kind)
		assert.Equal(t, "WHOLEFDS", a.Transaction.Description)
	}
}

func TestEmptySet(t *testing.T) {
	assert.True(t, TotalSpending(nil).IsZero())
	assert.True(t, AvgDebit(nil).IsZero())
	assert.Empty(t, MonthlySeries(nil))
	assert.Empty(t, CategoryBreakdown(nil))
	assert.Empty(t, DetectAnomalies(nil))

	s := Summarize(nil)
	assert.Equal(t, 0, s.TransactionCount)
	assert.True(t, s.AvgDebit.IsZero())
	assert.True(t, MonthlyTrend(nil).AverageMonthly.IsZero())
}

func TestAvgDebit(t *testing.T) {
	txs := []*domain.Transaction{
		txn("2024-01-01", "A", "10.00", domain.DirectionDebit, ""),
		txn("2024-01-02", "B", "10.00", domain.DirectionDebit, ""),
		txn("2024-01-03", "C", "10.01", domain.DirectionDebit, ""),
		txn("2024-01-04", "D", "500", domain.DirectionCredit, ""),
	}
	assert.Equal(t, "10", AvgDebit(txs).String())
	assert.True(t, AvgDebit(txs[3:]).IsZero(), "credits only")
}

func TestMonthlySeries(t *testing.T) {
	txs := []*domain.Transaction{
		txn("2024-03-10", "A", "5", domain.DirectionDebit, ""),
		txn("2023-12-31", "B", "7", domain.DirectionDebit, ""),
		txn("2024-03-01", "C", "2.50", domain.DirectionDebit, ""),
		txn("2024-02-15", "D", "99", domain.DirectionCredit, ""),
	}
	series := MonthlySeries(txs)
	require.Len(t, series, 2)
	assert.Equal(t, "2023-12", series[0].Month)
	assert.Equal(t, "2024-03", series[1].Month)
	assert.True(t, series[1].Total.Equal(d("7.50")))
}

func TestCategoryBreakdown_OrderAndUncategorized(t *testing.T) {
	txs := []*domain.Transaction{
		txn("2024-01-01", "A", "30", domain.DirectionDebit, "Travel"),
		txn("2024-01-02", "B", "30", domain.DirectionDebit, "Shopping"),
		txn("2024-01-03", "C", "40", domain.DirectionDebit, ""),
		txn("2024-01-04", "D", "999", domain.DirectionCredit, "Income"),
	}
	cats := CategoryBreakdown(txs)
	require.Len(t, cats, 3)
	assert.Equal(t, domain.UncategorizedLabel, cats[0].Category)
	assert.Equal(t, "Shopping", cats[1].Category)
	assert.Equal(t, "Travel", cats[2].Category)
	assert.True(t, cats[0].Percent.Equal(d("40")))
}

func TestCreditDebitSeries(t *testing.T) {
	flows := CreditDebitSeries(scenario())
	require.Len(t, flows, 2)
	assert.Equal(t, "2024-01", flows[0].Month)
	assert.True(t, flows[0].Debit.Equal(d("100")))
	assert.True(t, flows[0].Credit.IsZero())
	assert.True(t, flows[1].Credit.Equal(d("1000")))
}

func TestFilterByDate(t *testing.T) {
	txs := scenario()
	assert.Len(t, FilterByDate(txs, civil.Date{}, civil.Date{}), 3)
	assert.Len(t, FilterByDate(txs, day("2024-01-05"), day("2024-01-05")), 2)
	assert.Len(t, FilterByDate(txs, day("2024-01-06"), civil.Date{}), 1)
	assert.Len(t, FilterByDate(txs, civil.Date{}, day("2024-01-04")), 0)
}

func TestDetectAnomalies_Large(t *testing.T) {
	var txs []*domain.Transaction
	for i := 1; i <= 9; i++ {
		txs = append(txs, txn(civil.Date{Year: 2024, Month: time.January, Day: i}.String(), "COFFEE", "10", domain.DirectionDebit, ""))
	}
	txs = append(txs,
		txn("2024-01-20", "TV STORE", "500", domain.DirectionDebit, ""),
		txn("2024-01-21", "PAYMENT", "5000", domain.DirectionCredit, ""),
	)

	anomalies := DetectAnomalies(txs)
	require.Len(t, anomalies, 1)
	assert.Equal(t, AnomalyLarge, anomalies[0].Kind)
	assert.Equal(t, "TV STORE", anomalies[0].Transaction.Description)
	assert.Equal(t, "8.5x average", anomalies[0].Reason)
}

func TestDetectAnomalies_DuplicateNeedsAllThreeFields(t *testing.T) {
	txs := []*domain.Transaction{
		txn("2024-01-05", "A", "50", domain.DirectionDebit, ""),
		txn("2024-01-05", "A", "50.01", domain.DirectionDebit, ""),
		txn("2024-01-06", "A", "50", domain.DirectionDebit, ""),
		txn("2024-01-05", "B", "50", domain.DirectionDebit, ""),
	}
	assert.Empty(t, DetectAnomalies(txs))
}

func TestMonthlyTrend(t *testing.T) {
	txs := []*domain.Transaction{
		txn("2024-01-10", "A", "100", domain.DirectionDebit, ""),
		txn("2024-02-10", "B", "150", domain.DirectionDebit, ""),
		txn("2024-03-10", "C", "120", domain.DirectionDebit, ""),
	}
	trend := MonthlyTrend(txs)
	require.Len(t, trend.Months, 3)
	assert.Nil(t, trend.Months[0].Change)
	assert.True(t, trend.Months[1].Change.Equal(d("50")))
	assert.True(t, trend.Months[2].Change.Equal(d("-30")))
	assert.True(t, trend.AverageMonthly.Equal(d("123.33")))
}

func TestSummarize(t *testing.T) {
	s := Summarize(scenario())
	assert.Equal(t, 3, s.TransactionCount)
	assert.Equal(t, 2, s.DebitCount)
	assert.Equal(t, 1, s.CreditCount)
	assert.True(t, s.AvgDebit.Equal(d("50")))
	require.Len(t, s.MonthlySeries, 1)
	require.Len(t, s.CreditDebit, 2)
}
