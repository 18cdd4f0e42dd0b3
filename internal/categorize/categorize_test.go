package categorize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/llm"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/dvloznov/statement-ledger/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockModel answers with GenerateFunc and records prompts.
type mockModel struct {
	GenerateFunc func(ctx context.Context, req llm.Request) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (m *mockModel) Name() string { return "mock" }

func (m *mockModel) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, req.Prompt)
	m.mu.Unlock()
	return m.GenerateFunc(ctx, req)
}

func seed(t *testing.T, descriptions ...string) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.InsertStatement(ctx, &domain.Statement{ID: "st-1", Filename: "jan.pdf"}))

	var txs []*domain.Transaction
	for i, d := range descriptions {
		txs = append(txs, &domain.Transaction{
			ID:              fmt.Sprintf("tx-%02d", i),
			StatementID:     "st-1",
			PostedDate:      civil.Date{Year: 2024, Month: time.January, Day: 1 + i%28},
			TransactionDate: civil.Date{Year: 2024, Month: time.January, Day: 1 + i%28},
			Description:     d,
			Amount:          decimal.NewFromInt(int64(10 + i)),
			Direction:       domain.DirectionDebit,
		})
	}
	require.NoError(t, s.ReplaceStatementTransactions(ctx, "st-1", txs))
	return s
}

func categories(t *testing.T, s *memory.Store) map[string]*string {
	t.Helper()
	rows, err := s.ListTransactions(context.Background(), store.TransactionFilter{})
	require.NoError(t, err)
	out := make(map[string]*string)
	for _, r := range rows {
		out[r.Description] = r.Category
	}
	return out
}

func byDescription(answers map[string]string) func(ctx context.Context, req llm.Request) (string, error) {
	return func(ctx context.Context, req llm.Request) (string, error) {
		for desc, answer := range answers {
			if strings.Contains(req.Prompt, desc) {
				return answer, nil
			}
		}
		return "", errors.New("unexpected prompt")
	}
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		response string
		want     string
	}{
		{"Shopping", "Shopping"},
		{"  food & dining.  ", "Food & Dining"},
		{"Category: Travel", "Travel"},
		{"- Subscriptions", "Subscriptions"},
		{"I would say Utilities, maybe Housing", "Utilities"},
		{"this is Housing or Utilities", "Housing"},
		{"This is another Shopping purchase", "Shopping"},
		{"Anything else: Other", "Other"},
		{"smothered in fees", domain.UncategorizedLabel},
		{"no idea", domain.UncategorizedLabel},
		{"", domain.UncategorizedLabel},
	}
	for _, tt := range tests {
		t.Run(tt.response, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLabel(tt.response))
		})
	}
}

func TestPrompt(t *testing.T) {
	tx := &domain.Transaction{
		Description:     "NETFLIX.COM",
		Amount:          decimal.RequireFromString("15.5"),
		Direction:       domain.DirectionDebit,
		TransactionDate: civil.Date{Year: 2024, Month: time.March, Day: 2},
	}
	assert.Equal(t, "Transaction: NETFLIX.COM\nAmount: 15.50\nType: debit\nDate: 2024-03-02\nCategory:", Prompt(tx))
}

func TestCategorizeUncategorized(t *testing.T) {
	s := seed(t, "WHOLEFDS MKT", "DELTA AIR", "MYSTERY CO")
	model := &mockModel{GenerateFunc: byDescription(map[string]string{
		"WHOLEFDS": "Food & Dining.",
		"DELTA":    "I think this is Travel",
		"MYSTERY":  "???",
	})}

	n, err := New(s, model, Options{}, logger.Nop()).CategorizeUncategorized(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got := categories(t, s)
	assert.Equal(t, "Food & Dining", *got["WHOLEFDS MKT"])
	assert.Equal(t, "Travel", *got["DELTA AIR"])
	assert.Equal(t, domain.UncategorizedLabel, *got["MYSTERY CO"])
}

func TestCategorizeUncategorized_NeverOverwrites(t *testing.T) {
	ctx := context.Background()
	s := seed(t, "WHOLEFDS MKT", "DELTA AIR")
	_, err := s.SetCategory(ctx, "tx-00", "Shopping", false)
	require.NoError(t, err)

	model := &mockModel{GenerateFunc: byDescription(map[string]string{"WHOLEFDS": "Food & Dining", "DELTA": "Travel"})}
	n, err := New(s, model, Options{}, logger.Nop()).CategorizeUncategorized(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, model.prompts, 1)
	assert.Equal(t, "Shopping", *categories(t, s)["WHOLEFDS MKT"])

	n, err = New(s, model, Options{Force: true}, logger.Nop()).CategorizeUncategorized(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "Food & Dining", *categories(t, s)["WHOLEFDS MKT"])
}

func TestCategorizeUncategorized_BatchSize(t *testing.T) {
	s := seed(t, "A1", "A2", "A3")
	model := &mockModel{GenerateFunc: func(ctx context.Context, req llm.Request) (string, error) { return "Other", nil }}

	n, err := New(s, model, Options{}, logger.Nop()).CategorizeUncategorized(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, _ := s.ListTransactions(context.Background(), store.TransactionFilter{UncategorizedOnly: true})
	assert.Len(t, left, 1)
}

func TestCategorizeUncategorized_ModelUnavailable(t *testing.T) {
	s := seed(t, "WHOLEFDS MKT", "DELTA AIR")
	model := &mockModel{GenerateFunc: func(ctx context.Context, req llm.Request) (string, error) {
		if strings.Contains(req.Prompt, "DELTA") {
			return "", fmt.Errorf("%w: connection refused", llm.ErrModelUnavailable)
		}
		return "Food & Dining", nil
	}}

	n, err := New(s, model, Options{}, logger.Nop()).CategorizeUncategorized(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Nil(t, categories(t, s)["DELTA AIR"])
}

func TestCategorizeUncategorized_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := seed(t, "A1", "A2", "A3")
	model := &mockModel{GenerateFunc: func(ctx context.Context, req llm.Request) (string, error) {
		cancel()
		return "Other", nil
	}}

	n, err := New(s, model, Options{}, logger.Nop()).CategorizeUncategorized(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)
}

func TestCategorizeUncategorized_WorkerPool(t *testing.T) {
	var descriptions []string
	for i := 0; i < 40; i++ {
		descriptions = append(descriptions, fmt.Sprintf("MERCHANT %02d", i))
	}
	s := seed(t, descriptions...)
	model := &mockModel{GenerateFunc: func(ctx context.Context, req llm.Request) (string, error) { return "Shopping", nil }}

	n, err := New(s, model, Options{Workers: 4}, logger.Nop()).CategorizeUncategorized(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 40, n)

	seen := make(map[string]int)
	for _, p := range model.prompts {
		seen[p]++
	}
	assert.Len(t, seen, 40)
	for p, count := range seen {
		assert.Equal(t, 1, count, p)
	}
}

func TestHealth(t *testing.T) {
	c := New(memory.New(), &mockModel{}, Options{}, logger.Nop())
	assert.NoError(t, c.Health(context.Background()))
}
