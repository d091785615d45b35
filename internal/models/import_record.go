package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ImportRecord is one row of the deduplication ledger. Created exactly once
// per fingerprint when a transaction is accepted into YNAB; never mutated or
// deleted afterwards. The unique index on Fingerprint is the backstop against
// concurrent imports of the same transaction.
type ImportRecord struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Fingerprint string `gorm:"size:64;uniqueIndex" json:"fingerprint"`

	OccurredAt time.Time       `json:"occurred_at"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4)" json:"amount"`
	Payee      string          `json:"payee"`
	Memo       string          `json:"memo"`

	Source              string `gorm:"size:50;index" json:"source"` // "csv" or "akahu"
	SourceAccount       string `json:"source_account"`
	SourceTransactionID string `json:"source_transaction_id"`

	YNABBudgetID      string `json:"ynab_budget_id"`
	YNABAccountID     string `json:"ynab_account_id"`
	YNABTransactionID string `json:"ynab_transaction_id"`

	ImportedAt time.Time `json:"imported_at"`
	CreatedAt  time.Time `json:"created_at"`
}
