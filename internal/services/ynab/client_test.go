package ynab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hawsen-the-first/ynab-sync/internal/models"
)

func TestToMilliunits(t *testing.T) {
	assert.Equal(t, int64(-42500), ToMilliunits(decimal.RequireFromString("-42.50")))
	assert.Equal(t, int64(1000), ToMilliunits(decimal.NewFromInt(1)))
	assert.Equal(t, int64(10), ToMilliunits(decimal.RequireFromString("0.01")))
}

func TestImportIDOccurrenceDisambiguation(t *testing.T) {
	// Two same-day same-amount transactions with different payees must get
	// import ids differing only in the trailing occurrence counter.
	var captured []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Transactions []map[string]any `json:"transactions"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		captured = body.Transactions
		resp := map[string]any{"data": map[string]any{
			"transactions":         []map[string]any{{"id": "t1"}, {"id": "t2"}},
			"duplicate_import_ids": []string{},
		}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	client := NewClient(server.URL, "token")
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("-5.00")

	result, err := client.ImportTransactions(context.Background(), "b1", "a1", []models.Candidate{
		{OccurredAt: day, Amount: amount, Payee: "Cafe One"},
		{OccurredAt: day, Amount: amount, Payee: "Cafe Two"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, result.TransactionIDs)

	require.Len(t, captured, 2)
	assert.Equal(t, "YNAB:-5000:2024-03-15:1", captured[0]["import_id"])
	assert.Equal(t, "YNAB:-5000:2024-03-15:2", captured[1]["import_id"])
}

func TestImportTransactionsEmptyBatchSkipsNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for an empty batch")
	}))
	defer server.Close()

	client := NewClient(server.URL, "token")
	result, err := client.ImportTransactions(context.Background(), "b1", "a1", nil)
	require.NoError(t, err)
	assert.Empty(t, result.TransactionIDs)
	assert.Empty(t, result.DuplicateImportIDs)
}

func TestImportTransactionsReportsDuplicates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"data": map[string]any{
			"transactions":         []map[string]any{{"id": "t1"}},
			"duplicate_import_ids": []string{"YNAB:-5000:2024-03-15:2"},
		}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	client := NewClient(server.URL, "token")
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	result, err := client.ImportTransactions(context.Background(), "b1", "a1", []models.Candidate{
		{OccurredAt: day, Amount: decimal.RequireFromString("-5.00")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, result.TransactionIDs)
	assert.Equal(t, []string{"YNAB:-5000:2024-03-15:2"}, result.DuplicateImportIDs)
}

func TestImportTransactionsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "bad-token")
	_, err := client.ImportTransactions(context.Background(), "b1", "a1", []models.Candidate{
		{OccurredAt: time.Now(), Amount: decimal.NewFromInt(1)},
	})
	assert.Error(t, err)
	assert.False(t, client.TestConnection(context.Background()))
}

func TestAccountsFiltersDeleted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/budgets/b1/accounts", r.URL.Path)
		resp := map[string]any{"data": map[string]any{"accounts": []map[string]any{
			{"id": "a1", "name": "Checking", "type": "checking", "on_budget": true, "closed": false, "balance": 125000, "deleted": false},
			{"id": "a2", "name": "Old", "type": "checking", "on_budget": true, "closed": true, "balance": 0, "deleted": true},
		}}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	client := NewClient(server.URL, "token")
	accounts, err := client.Accounts(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "a1", accounts[0].ID)
	assert.Equal(t, int64(125000), accounts[0].Balance)
}
