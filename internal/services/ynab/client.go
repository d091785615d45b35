// Package ynab implements the client for the destination ledger. YNAB runs
// its own duplicate suppression keyed by the import_id each row carries; that
// key is independent of the local fingerprint and guards a different failure
// mode (the same batch being re-sent after a partial failure), so both
// defenses stay in place.
package ynab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hawsen-the-first/ynab-sync/internal/models"
)

const requestTimeout = 30 * time.Second

type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func NewClient(baseURL, accessToken string) *Client {
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: requestTimeout},
	}
}

type Budget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Account struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	OnBudget bool   `json:"on_budget"`
	Closed   bool   `json:"closed"`
	Balance  int64  `json:"balance"` // milliunits
}

// ImportResult is the gateway's verdict on a batch. TransactionIDs aligns
// with the submitted rows in order; DuplicateImportIDs lists the import_ids
// YNAB rejected as already seen.
type ImportResult struct {
	TransactionIDs     []string `json:"transaction_ids"`
	DuplicateImportIDs []string `json:"duplicate_import_ids"`
}

func (c *Client) request(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ynab %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ynab %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode ynab response: %w", err)
		}
	}
	return nil
}

// Budgets returns all budgets for the authenticated user.
func (c *Client) Budgets(ctx context.Context) ([]Budget, error) {
	var payload struct {
		Data struct {
			Budgets []Budget `json:"budgets"`
		} `json:"data"`
	}
	if err := c.request(ctx, http.MethodGet, "/budgets", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Data.Budgets, nil
}

// Accounts returns the budget's accounts, excluding soft-deleted ones.
func (c *Client) Accounts(ctx context.Context, budgetID string) ([]Account, error) {
	var payload struct {
		Data struct {
			Accounts []struct {
				Account
				Deleted bool `json:"deleted"`
			} `json:"accounts"`
		} `json:"data"`
	}
	if err := c.request(ctx, http.MethodGet, "/budgets/"+budgetID+"/accounts", nil, &payload); err != nil {
		return nil, err
	}

	accounts := make([]Account, 0, len(payload.Data.Accounts))
	for _, a := range payload.Data.Accounts {
		if a.Deleted {
			continue
		}
		accounts = append(accounts, a.Account)
	}
	return accounts, nil
}

// ToMilliunits converts a decimal amount to YNAB milliunits.
func ToMilliunits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(1000)).Round(0).IntPart()
}

// ImportID builds the YNAB idempotency key for one row:
// YNAB:<milliunits>:<date>:<occurrence>. The occurrence counter disambiguates
// legitimate same-day same-amount transactions within one batch; it resets
// per batch and is meaningful only within a single call.
func ImportID(date time.Time, milliunits int64, occurrence int) string {
	return fmt.Sprintf("YNAB:%d:%s:%d", milliunits, date.Format("2006-01-02"), occurrence)
}

type transactionRow struct {
	AccountID string `json:"account_id"`
	Date      string `json:"date"`
	Amount    int64  `json:"amount"`
	PayeeName string `json:"payee_name,omitempty"`
	Memo      string `json:"memo,omitempty"`
	Cleared   string `json:"cleared"`
	ImportID  string `json:"import_id"`
}

// ImportTransactions sends the candidates to YNAB as a single batch. Row
// order is preserved end to end so created ids can be matched back to the
// submitted candidates by index. An empty batch returns an empty result
// without a network call.
func (c *Client) ImportTransactions(ctx context.Context, budgetID, accountID string, candidates []models.Candidate) (ImportResult, error) {
	if len(candidates) == 0 {
		return ImportResult{TransactionIDs: []string{}, DuplicateImportIDs: []string{}}, nil
	}

	occurrences := map[string]int{}
	rows := make([]transactionRow, 0, len(candidates))
	for _, tx := range candidates {
		date := tx.OccurredAt.Format("2006-01-02")
		milliunits := ToMilliunits(tx.Amount)

		key := fmt.Sprintf("%d:%s", milliunits, date)
		occurrences[key]++

		rows = append(rows, transactionRow{
			AccountID: accountID,
			Date:      date,
			Amount:    milliunits,
			PayeeName: tx.Payee,
			Memo:      tx.Memo,
			Cleared:   "cleared",
			ImportID:  ImportID(tx.OccurredAt, milliunits, occurrences[key]),
		})
	}

	var payload struct {
		Data struct {
			Transactions []struct {
				ID string `json:"id"`
			} `json:"transactions"`
			DuplicateImportIDs []string `json:"duplicate_import_ids"`
		} `json:"data"`
	}
	err := c.request(ctx, http.MethodPost, "/budgets/"+budgetID+"/transactions",
		map[string]any{"transactions": rows}, &payload)
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{
		TransactionIDs:     make([]string, 0, len(payload.Data.Transactions)),
		DuplicateImportIDs: payload.Data.DuplicateImportIDs,
	}
	for _, tx := range payload.Data.Transactions {
		result.TransactionIDs = append(result.TransactionIDs, tx.ID)
	}
	if result.DuplicateImportIDs == nil {
		result.DuplicateImportIDs = []string{}
	}
	return result, nil
}

// TestConnection reports whether the configured token can reach YNAB.
func (c *Client) TestConnection(ctx context.Context) bool {
	_, err := c.Budgets(ctx)
	return err == nil
}
