package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hawsen-the-first/ynab-sync/internal/models"
)

var ErrProfileNotFound = errors.New("mapping profile not found")

type MappingProfileRepository struct {
	db *gorm.DB
}

func NewMappingProfileRepository(db *gorm.DB) *MappingProfileRepository {
	return &MappingProfileRepository{db: db}
}

func (r *MappingProfileRepository) List() ([]models.MappingProfile, error) {
	var profiles []models.MappingProfile
	err := r.db.Order("name").Find(&profiles).Error
	return profiles, err
}

func (r *MappingProfileRepository) GetByID(id uuid.UUID) (*models.MappingProfile, error) {
	var profile models.MappingProfile
	err := r.db.First(&profile, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// Save persists a profile. Marking a profile as default clears the flag on
// every other profile so at most one default exists.
func (r *MappingProfileRepository) Save(profile *models.MappingProfile) error {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if profile.IsDefault {
			err := tx.Model(&models.MappingProfile{}).
				Where("id <> ?", profile.ID).
				Update("is_default", false).Error
			if err != nil {
				return err
			}
		}
		return tx.Save(profile).Error
	})
}

// Delete removes a profile. Deleting a missing profile is success.
func (r *MappingProfileRepository) Delete(id uuid.UUID) error {
	return r.db.Delete(&models.MappingProfile{}, "id = ?", id).Error
}
