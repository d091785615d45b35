package models

import (
	"time"

	"github.com/google/uuid"
)

// Sync trigger kinds.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// SyncRunLog is the append-only history of sync runs, one row per attempt.
// Created with status "running" at run start; updated exactly once to a
// terminal status; never deleted.
type SyncRunLog struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	AkahuAccountID string `gorm:"size:255;index" json:"akahu_account_id"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Status      string     `gorm:"size:50" json:"status"`

	TransactionsFound    int `json:"transactions_found"`
	TransactionsImported int `json:"transactions_imported"`
	TransactionsSkipped  int `json:"transactions_skipped"` // local fingerprint duplicates
	YNABDuplicates       int `json:"ynab_duplicates"`      // gateway-reported import_id duplicates

	ErrorMessage string `json:"error_message"`
	Trigger      string `gorm:"size:50" json:"trigger"`
}
