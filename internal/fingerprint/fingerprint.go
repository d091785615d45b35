// Package fingerprint derives the content hash used for local duplicate
// suppression. Two transactions with the same date, amount, payee and memo
// always hash identically regardless of which source produced them; that is
// what lets a CSV-imported transaction and a later Akahu sync of the same
// event be recognized as duplicates.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hawsen-the-first/ynab-sync/internal/models"
)

// Length of the hex-encoded digest prefix stored in the ledger.
const Length = 32

// Sum returns the deterministic fingerprint for a transaction. Absent payee
// and memo must be passed as empty strings; callers cannot rely on nil vs
// empty being distinguished. Total function, no error conditions.
func Sum(occurredAt time.Time, amount decimal.Decimal, payee, memo string) string {
	input := fmt.Sprintf("%s:%s:%s:%s",
		occurredAt.UTC().Format(time.RFC3339), amount.String(), payee, memo)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:Length]
}

// Candidate fingerprints a normalized candidate transaction.
func Candidate(c models.Candidate) string {
	return Sum(c.OccurredAt, c.Amount, c.Payee, c.Memo)
}
