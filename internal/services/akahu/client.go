// Package akahu implements the client for the account-aggregation provider.
// The provider's wire shapes (nested merchant/category/connection/balance
// objects, cursor pagination) stay contained here; the rest of the system
// only sees flat accounts and normalized candidates.
package akahu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hawsen-the-first/ynab-sync/internal/models"
)

const requestTimeout = 30 * time.Second

// Payees derived from the transaction description are truncated to this
// length; the full description still goes into the memo.
const payeeMaxLen = 50

type Client struct {
	baseURL    string
	appToken   string
	userToken  string
	httpClient *http.Client
}

func NewClient(baseURL, appToken, userToken string) *Client {
	return &Client{
		baseURL:    baseURL,
		appToken:   appToken,
		userToken:  userToken,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

type Account struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Type        string           `json:"type"`
	Institution string           `json:"institution"`
	Balance     *decimal.Decimal `json:"balance"`
}

type Transaction struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Merchant    string          `json:"merchant"`
	Category    string          `json:"category"`
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.userToken)
	req.Header.Set("X-Akahu-Id", c.appToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("akahu GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("akahu GET %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode akahu response: %w", err)
	}
	return nil
}

type accountItem struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Connection struct {
		Name string `json:"name"`
	} `json:"connection"`
	Balance struct {
		Current *decimal.Decimal `json:"current"`
	} `json:"balance"`
}

// Accounts returns every bank account connected through Akahu.
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	var payload struct {
		Items []accountItem `json:"items"`
	}
	if err := c.get(ctx, "/accounts", nil, &payload); err != nil {
		return nil, err
	}

	accounts := make([]Account, 0, len(payload.Items))
	for _, item := range payload.Items {
		name := item.Name
		if name == "" {
			name = "Unknown Account"
		}
		institution := item.Connection.Name
		if institution == "" {
			institution = "Unknown"
		}
		accounts = append(accounts, Account{
			ID:          item.ID,
			Name:        name,
			Type:        item.Type,
			Institution: institution,
			Balance:     item.Balance.Current,
		})
	}
	return accounts, nil
}

type transactionItem struct {
	ID          string          `json:"_id"`
	Account     string          `json:"_account"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Merchant    struct {
		Name string `json:"name"`
	} `json:"merchant"`
	Category struct {
		Name string `json:"name"`
	} `json:"category"`
}

// Transactions fetches every transaction in [start, end], following the
// provider's cursor until exhausted. If accountID is non-empty, transactions
// for other accounts are dropped. Fetch order is preserved.
func (c *Client) Transactions(ctx context.Context, accountID string, start, end time.Time) ([]Transaction, error) {
	params := url.Values{}
	params.Set("start", start.Format("2006-01-02"))
	params.Set("end", end.Format("2006-01-02"))

	var all []Transaction
	for {
		var payload struct {
			Items  []transactionItem `json:"items"`
			Cursor struct {
				Next string `json:"next"`
			} `json:"cursor"`
		}
		if err := c.get(ctx, "/transactions", params, &payload); err != nil {
			return nil, err
		}

		for _, item := range payload.Items {
			if accountID != "" && item.Account != accountID {
				continue
			}
			all = append(all, Transaction{
				ID:          item.ID,
				AccountID:   item.Account,
				Date:        item.Date,
				Amount:      item.Amount,
				Description: item.Description,
				Merchant:    item.Merchant.Name,
				Category:    item.Category.Name,
			})
		}

		if payload.Cursor.Next == "" {
			return all, nil
		}
		params.Set("cursor", payload.Cursor.Next)
	}
}

// AccountCandidates fetches an account's transactions for the window and
// normalizes them into candidates: payee is the merchant name when present,
// otherwise the truncated description; the full description becomes the memo.
func (c *Client) AccountCandidates(ctx context.Context, accountID string, start, end time.Time) ([]models.Candidate, error) {
	transactions, err := c.Transactions(ctx, accountID, start, end)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.Candidate, 0, len(transactions))
	for _, tx := range transactions {
		candidates = append(candidates, models.Candidate{
			OccurredAt:          tx.Date,
			Amount:              tx.Amount,
			Payee:               payeeFor(tx),
			Memo:                tx.Description,
			Source:              models.SourceAkahu,
			SourceAccount:       tx.AccountID,
			SourceTransactionID: tx.ID,
		})
	}
	return candidates, nil
}

func payeeFor(tx Transaction) string {
	if tx.Merchant != "" {
		return tx.Merchant
	}
	if len(tx.Description) > payeeMaxLen {
		return tx.Description[:payeeMaxLen]
	}
	return tx.Description
}

// TestConnection reports whether the configured tokens can reach Akahu.
func (c *Client) TestConnection(ctx context.Context) bool {
	_, err := c.Accounts(ctx)
	return err == nil
}
