package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source kinds for candidates and import records.
const (
	SourceCSV   = "csv"
	SourceAkahu = "akahu"
)

// Candidate is a normalized transaction produced by one of the sources (CSV
// upload or Akahu fetch) before it has been fingerprinted or imported. Empty
// Payee/Memo mean "absent"; the fingerprint does not distinguish the two.
type Candidate struct {
	OccurredAt time.Time       `json:"occurred_at"`
	Amount     decimal.Decimal `json:"amount"`
	Payee      string          `json:"payee"`
	Memo       string          `json:"memo"`

	Source              string `json:"source"`
	SourceAccount       string `json:"source_account"`
	SourceTransactionID string `json:"source_transaction_id"`
}
