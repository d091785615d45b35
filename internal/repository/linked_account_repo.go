package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hawsen-the-first/ynab-sync/internal/models"
)

// ErrAccountNotFound is returned when no linked account exists for the given
// Akahu account id.
var ErrAccountNotFound = errors.New("linked account not found")

type LinkedAccountRepository struct {
	db *gorm.DB
}

func NewLinkedAccountRepository(db *gorm.DB) *LinkedAccountRepository {
	return &LinkedAccountRepository{db: db}
}

// GetByAkahuID returns the link row for an Akahu account.
func (r *LinkedAccountRepository) GetByAkahuID(akahuAccountID string) (*models.LinkedAccount, error) {
	var account models.LinkedAccount
	err := r.db.First(&account, "akahu_account_id = ?", akahuAccountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// ListScheduled returns every account with an enabled schedule and a YNAB
// destination, the set the orchestrator re-arms at startup.
func (r *LinkedAccountRepository) ListScheduled() ([]models.LinkedAccount, error) {
	var accounts []models.LinkedAccount
	err := r.db.
		Where("schedule_enabled = ? AND ynab_account_id <> ''", true).
		Find(&accounts).Error
	return accounts, err
}

// ListAll returns every linked account.
func (r *LinkedAccountRepository) ListAll() ([]models.LinkedAccount, error) {
	var accounts []models.LinkedAccount
	err := r.db.Find(&accounts).Error
	return accounts, err
}

// Save persists the full account row.
func (r *LinkedAccountRepository) Save(account *models.LinkedAccount) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	return r.db.Save(account).Error
}

// UpdateLastRun persists only the last-run status fields. Schedule fields
// are deliberately left untouched: they may be changed (e.g. disabled) while
// a run is in flight, and the run must not overwrite that.
func (r *LinkedAccountRepository) UpdateLastRun(akahuAccountID string, updates map[string]any) error {
	return r.db.Model(&models.LinkedAccount{}).
		Where("akahu_account_id = ?", akahuAccountID).
		Updates(updates).Error
}

// UpdateNextSyncAt persists only the computed next-run timestamp.
func (r *LinkedAccountRepository) UpdateNextSyncAt(akahuAccountID string, next *time.Time) error {
	return r.db.Model(&models.LinkedAccount{}).
		Where("akahu_account_id = ?", akahuAccountID).
		Update("next_sync_at", next).Error
}

// Delete removes the link for an Akahu account. Removing a link that does
// not exist is success, not an error.
func (r *LinkedAccountRepository) Delete(akahuAccountID string) error {
	return r.db.Where("akahu_account_id = ?", akahuAccountID).
		Delete(&models.LinkedAccount{}).Error
}
