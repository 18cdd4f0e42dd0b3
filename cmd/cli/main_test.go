package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/analytics"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func memoryArgs(t *testing.T, args ...string) []string {
	return append(args,
		"--store-backend", "memory",
		"--blob-dir", t.TempDir(),
		"--log-level", "error",
	)
}

func TestStats_EmptyStore(t *testing.T) {
	out, err := execute(t, "", memoryArgs(t, "stats")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Transactions:   0 (0 debits, 0 credits)")
	assert.Contains(t, out, "Total spending: 0.00")
}

func TestStats_InvalidDate(t *testing.T) {
	_, err := execute(t, "", memoryArgs(t, "stats", "--start", "2024/01/01")...)
	assert.ErrorContains(t, err, "--start")
}

func TestAnomalies_EmptyStore(t *testing.T) {
	out, err := execute(t, "", memoryArgs(t, "anomalies")...)
	require.NoError(t, err)
	assert.Contains(t, out, "No anomalies detected.")
}

func TestClear_RequiresConfirmation(t *testing.T) {
	out, err := execute(t, "no\n", memoryArgs(t, "clear")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Aborted.")

	out, err = execute(t, "", memoryArgs(t, "clear", "--yes")...)
	require.NoError(t, err)
	assert.Contains(t, out, "All statements and transactions deleted.")
}

func TestDeleteStatement_NotFound(t *testing.T) {
	_, err := execute(t, "", memoryArgs(t, "delete-statement", "missing")...)
	assert.Error(t, err)
}

func TestIngest_InvalidFileIsReportedAsFailed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))

	out, err := execute(t, "", memoryArgs(t, "ingest", path)...)
	require.Error(t, err)
	assert.Contains(t, out, "Failed:   1")
}

func TestParse_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))

	_, err := execute(t, "", memoryArgs(t, "parse", path)...)
	assert.Error(t, err)
}

func TestUnknownStoreBackend(t *testing.T) {
	_, err := execute(t, "", "stats", "--store-backend", "sqlite")
	assert.ErrorContains(t, err, "STORE_BACKEND")
}

func TestPrintAnomalies(t *testing.T) {
	var out bytes.Buffer
	tx := &domain.Transaction{
		TransactionDate: civil.Date{Year: 2024, Month: 5, Day: 16},
		Description:     "Gift Card Purchase",
		Amount:          decimal.NewFromInt(500),
		Direction:       domain.DirectionDebit,
	}
	printAnomalies(&out, []analytics.Anomaly{{Transaction: tx, Kind: analytics.AnomalyLarge, Reason: "14.3x average"}})

	assert.Contains(t, out.String(), "2024-05-16")
	assert.Contains(t, out.String(), "500.00")
	assert.Contains(t, out.String(), "14.3x average")
	assert.Contains(t, out.String(), "1 anomalies")
}
