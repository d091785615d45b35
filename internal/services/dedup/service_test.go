package dedup

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hawsen-the-first/ynab-sync/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every statement on the same in-memory DB.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.ImportRecord{}))
	return db
}

func candidate(day int, amount, payee string) models.Candidate {
	return models.Candidate{
		OccurredAt: time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
		Amount:     decimal.RequireFromString(amount),
		Payee:      payee,
		Source:     models.SourceAkahu,
	}
}

func TestRecordBatchAndSnapshot(t *testing.T) {
	svc := NewService(openTestDB(t))

	txs := []models.Candidate{
		candidate(1, "-10.00", "Countdown"),
		candidate(2, "-20.00", "BP Connect"),
	}

	n, err := svc.RecordBatch(txs, "budget-1", "acct-1", []string{"y1", "y2"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	existing, err := svc.ExistingFingerprints()
	require.NoError(t, err)
	assert.Len(t, existing, 2)

	toImport, dupes, err := svc.MarkDuplicates(txs)
	require.NoError(t, err)
	assert.Empty(t, toImport)
	assert.Len(t, dupes, 2)
}

func TestRecordBatchIdempotent(t *testing.T) {
	// Importing the same transaction twice ends with exactly one record.
	svc := NewService(openTestDB(t))
	tx := candidate(1, "-10.00", "Countdown")

	n, err := svc.RecordBatch([]models.Candidate{tx}, "b", "a", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.RecordBatch([]models.Candidate{tx}, "b", "a", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	stats, err := svc.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalImported)
}

func TestRecordBatchConflictFallback(t *testing.T) {
	// A batch where one row duplicates an existing fingerprint must still
	// record every non-conflicting row.
	svc := NewService(openTestDB(t))

	dupe := candidate(2, "-20.00", "BP Connect")
	_, err := svc.RecordBatch([]models.Candidate{dupe}, "b", "a", nil)
	require.NoError(t, err)

	batch := []models.Candidate{
		candidate(1, "-10.00", "Countdown"),
		dupe,
		candidate(3, "-30.00", "New World"),
	}
	n, err := svc.RecordBatch(batch, "b", "a", []string{"y1", "y2", "y3"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats, err := svc.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalImported)
}

func TestRecordBatchPadsMissingYNABIDs(t *testing.T) {
	svc := NewService(openTestDB(t))

	batch := []models.Candidate{
		candidate(1, "-10.00", "Countdown"),
		candidate(2, "-20.00", "BP Connect"),
	}
	n, err := svc.RecordBatch(batch, "b", "a", []string{"y1"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := svc.History(10, "")
	require.NoError(t, err)
	require.Len(t, records, 2)

	ids := map[string]string{}
	for _, r := range records {
		ids[r.Payee] = r.YNABTransactionID
	}
	assert.Equal(t, "y1", ids["Countdown"])
	assert.Equal(t, "", ids["BP Connect"])
}

func TestHistoryFilterAndStats(t *testing.T) {
	svc := NewService(openTestDB(t))

	akahuTx := candidate(1, "-10.00", "Countdown")
	csvTx := candidate(2, "-20.00", "BP Connect")
	csvTx.Source = models.SourceCSV

	_, err := svc.RecordBatch([]models.Candidate{akahuTx, csvTx}, "b", "a", nil)
	require.NoError(t, err)

	csvOnly, err := svc.History(10, models.SourceCSV)
	require.NoError(t, err)
	require.Len(t, csvOnly, 1)
	assert.Equal(t, "BP Connect", csvOnly[0].Payee)

	stats, err := svc.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalImported)
	assert.Equal(t, int64(1), stats.BySource[models.SourceAkahu])
	assert.Equal(t, int64(1), stats.BySource[models.SourceCSV])
}
