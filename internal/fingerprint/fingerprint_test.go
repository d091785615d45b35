package fingerprint

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hawsen-the-first/ynab-sync/internal/models"
)

func TestSumDeterministic(t *testing.T) {
	at := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	amount := decimal.RequireFromString("-42.50")

	first := Sum(at, amount, "Countdown", "groceries")
	second := Sum(at, amount, "Countdown", "groceries")

	assert.Equal(t, first, second)
	assert.Len(t, first, Length)
}

func TestSumSensitivity(t *testing.T) {
	at := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("-42.50")
	base := Sum(at, amount, "Countdown", "")

	assert.NotEqual(t, base, Sum(at.AddDate(0, 0, 1), amount, "Countdown", ""))
	assert.NotEqual(t, base, Sum(at, decimal.RequireFromString("-42.51"), "Countdown", ""))
	assert.NotEqual(t, base, Sum(at, amount, "New World", ""))
	assert.NotEqual(t, base, Sum(at, amount, "Countdown", "memo"))
}

func TestSumSourceIndependent(t *testing.T) {
	// A CSV row and an Akahu transaction with the same visible fields must
	// collide so the second import path is skipped as a duplicate.
	at := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("-12.00")

	csvTx := models.Candidate{
		OccurredAt: at, Amount: amount, Payee: "BP Connect", Memo: "fuel",
		Source: models.SourceCSV,
	}
	akahuTx := models.Candidate{
		OccurredAt: at, Amount: amount, Payee: "BP Connect", Memo: "fuel",
		Source: models.SourceAkahu, SourceTransactionID: "trans_1",
	}

	require.Equal(t, Candidate(csvTx), Candidate(akahuTx))
}

func TestSumTimezoneNormalized(t *testing.T) {
	utc := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	nzt := utc.In(time.FixedZone("NZST", 12*3600))
	amount := decimal.NewFromInt(5)

	assert.Equal(t, Sum(utc, amount, "", ""), Sum(nzt, amount, "", ""))
}
