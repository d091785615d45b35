package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MappingProfile stores a saved CSV column-mapping configuration.
// ColumnMappings maps transaction fields to CSV headers, e.g.
// {"date": "Transaction Date", "amount": "Amount", "payee": "Description"}.
type MappingProfile struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex" json:"name"`
	Description string    `json:"description"`

	ColumnMappings datatypes.JSON `json:"column_mappings"`

	DateFormat     string `gorm:"size:50;default:'02/01/2006'" json:"date_format"`
	AmountInverted bool   `json:"amount_inverted"`
	SkipRows       int    `json:"skip_rows"`

	DefaultYNABAccountID string `json:"default_ynab_account_id"`
	IsDefault            bool   `json:"is_default"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
