package models

import (
	"time"

	"github.com/google/uuid"
)

// Sync status values shared by LinkedAccount and SyncRunLog.
const (
	SyncStatusRunning = "running"
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
)

// LinkedAccount connects one Akahu bank account to a YNAB budget/account and
// carries its recurring sync schedule. Schedule fields are mutated only by
// the orchestrator; the YNAB reference only by link/unlink operations.
type LinkedAccount struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	AkahuAccountID string `gorm:"size:255;uniqueIndex" json:"akahu_account_id"`
	AccountName    string `json:"account_name"`
	AccountType    string `gorm:"size:50" json:"account_type"`
	Institution    string `gorm:"size:100" json:"institution"`

	YNABBudgetID  string `json:"ynab_budget_id"`
	YNABAccountID string `json:"ynab_account_id"`

	AutoSync     bool       `json:"auto_sync"`
	LastSyncedAt *time.Time `json:"last_synced_at"`

	ScheduleEnabled       bool       `json:"schedule_enabled"`
	ScheduleIntervalHours int        `gorm:"default:6" json:"schedule_interval_hours"`
	ScheduleDaysToSync    int        `gorm:"default:7" json:"schedule_days_to_sync"`
	NextSyncAt            *time.Time `json:"next_sync_at"`

	LastSyncStatus   string `gorm:"size:50" json:"last_sync_status"`
	LastSyncMessage  string `json:"last_sync_message"`
	LastSyncImported int    `json:"last_sync_imported"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Linked reports whether the account has a YNAB destination, the
// precondition for syncing and for enabling a schedule.
func (a *LinkedAccount) Linked() bool {
	return a.YNABAccountID != ""
}
