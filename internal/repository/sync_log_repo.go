package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hawsen-the-first/ynab-sync/internal/models"
)

var ErrSyncLogNotFound = errors.New("sync log not found")

type SyncLogRepository struct {
	db *gorm.DB
}

func NewSyncLogRepository(db *gorm.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// Create opens a new run log row. The caller is expected to have set status
// to running; the id is assigned here.
func (r *SyncLogRepository) Create(log *models.SyncRunLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	return r.db.Create(log).Error
}

// Save writes the terminal update for a run.
func (r *SyncLogRepository) Save(log *models.SyncRunLog) error {
	return r.db.Save(log).Error
}

// List returns run logs newest first, optionally filtered by account.
func (r *SyncLogRepository) List(akahuAccountID string, limit int) ([]models.SyncRunLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := r.db.Order("started_at DESC").Limit(limit)
	if akahuAccountID != "" {
		query = query.Where("akahu_account_id = ?", akahuAccountID)
	}

	var logs []models.SyncRunLog
	err := query.Find(&logs).Error
	return logs, err
}

func (r *SyncLogRepository) GetByID(id uuid.UUID) (*models.SyncRunLog, error) {
	var log models.SyncRunLog
	err := r.db.First(&log, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSyncLogNotFound
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}
