package dedup

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hawsen-the-first/ynab-sync/internal/fingerprint"
	"github.com/hawsen-the-first/ynab-sync/internal/models"
)

// Service is the deduplication ledger: the persistent set of fingerprints of
// every transaction this system has already imported, plus the full audit
// record behind each one.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ExistingFingerprints returns a snapshot of every recorded fingerprint.
// Callers fetch once per batch and test membership in memory; races with
// concurrent imports are resolved by the unique constraint in RecordBatch,
// not by locking here.
func (s *Service) ExistingFingerprints() (map[string]struct{}, error) {
	var hashes []string
	if err := s.db.Model(&models.ImportRecord{}).Pluck("fingerprint", &hashes).Error; err != nil {
		return nil, fmt.Errorf("load fingerprints: %w", err)
	}

	set := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	return set, nil
}

// MarkDuplicates annotates each candidate's fingerprint against the current
// snapshot. Returned slices preserve input order: first the survivors, then
// the locally duplicate candidates.
func (s *Service) MarkDuplicates(candidates []models.Candidate) (toImport, duplicates []models.Candidate, err error) {
	existing, err := s.ExistingFingerprints()
	if err != nil {
		return nil, nil, err
	}

	for _, c := range candidates {
		if _, ok := existing[fingerprint.Candidate(c)]; ok {
			duplicates = append(duplicates, c)
		} else {
			toImport = append(toImport, c)
		}
	}
	return toImport, duplicates, nil
}

// RecordBatch inserts one import record per candidate inside a single
// transaction. ynabIDs aligns positionally with candidates; a shorter slice
// or empty entries mean YNAB did not report an id for that row, which is a
// valid outcome, not an error.
//
// If any fingerprint in the batch already exists the whole insert is rolled
// back by the unique constraint, and the batch is retried row by row with
// insert-or-skip so the non-conflicting rows are not lost. Returns the number
// of rows actually recorded.
func (s *Service) RecordBatch(candidates []models.Candidate, ynabBudgetID, ynabAccountID string, ynabIDs []string) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	records := make([]models.ImportRecord, 0, len(candidates))
	for i, c := range candidates {
		ynabID := ""
		if i < len(ynabIDs) {
			ynabID = ynabIDs[i]
		}
		records = append(records, models.ImportRecord{
			ID:                  uuid.New(),
			Fingerprint:         fingerprint.Candidate(c),
			OccurredAt:          c.OccurredAt,
			Amount:              c.Amount,
			Payee:               c.Payee,
			Memo:                c.Memo,
			Source:              c.Source,
			SourceAccount:       c.SourceAccount,
			SourceTransactionID: c.SourceTransactionID,
			YNABBudgetID:        ynabBudgetID,
			YNABAccountID:       ynabAccountID,
			YNABTransactionID:   ynabID,
			ImportedAt:          now,
		})
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&records).Error
	})
	if err == nil {
		return len(records), nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return 0, fmt.Errorf("record batch: %w", err)
	}

	// One of the fingerprints raced an insert from another run. Fall back to
	// per-row insert-or-skip so the rest of the batch survives.
	inserted := 0
	for i := range records {
		res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&records[i])
		if res.Error != nil {
			return inserted, fmt.Errorf("record row %s: %w", records[i].Fingerprint, res.Error)
		}
		inserted += int(res.RowsAffected)
	}
	return inserted, nil
}

// History returns the most recent import records, newest first, optionally
// filtered by source kind.
func (s *Service) History(limit int, source string) ([]models.ImportRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := s.db.Order("imported_at DESC").Limit(limit)
	if source != "" {
		query = query.Where("source = ?", source)
	}

	var records []models.ImportRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("import history: %w", err)
	}
	return records, nil
}

// Stats summarizes the ledger: total records and a count per source kind.
type Stats struct {
	TotalImported int64            `json:"total_imported"`
	BySource      map[string]int64 `json:"by_source"`
}

func (s *Service) Stats() (Stats, error) {
	stats := Stats{BySource: map[string]int64{}}

	if err := s.db.Model(&models.ImportRecord{}).Count(&stats.TotalImported).Error; err != nil {
		return stats, fmt.Errorf("import stats: %w", err)
	}

	var rows []struct {
		Source string
		Count  int64
	}
	err := s.db.Model(&models.ImportRecord{}).
		Select("source, COUNT(*) as count").
		Group("source").
		Scan(&rows).Error
	if err != nil {
		return stats, fmt.Errorf("import stats by source: %w", err)
	}
	for _, r := range rows {
		stats.BySource[r.Source] = r.Count
	}
	return stats, nil
}
