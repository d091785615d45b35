// Package sync owns the per-account sync schedule and the run pipeline that
// moves transactions from Akahu into YNAB through the deduplication ledger.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hawsen-the-first/ynab-sync/internal/models"
	"github.com/hawsen-the-first/ynab-sync/internal/repository"
	"github.com/hawsen-the-first/ynab-sync/internal/services/dedup"
	"github.com/hawsen-the-first/ynab-sync/internal/services/ynab"
)

var (
	// ErrSyncInProgress means a run for the account is already executing; the
	// trigger is dropped, not queued.
	ErrSyncInProgress = errors.New("sync already running for this account")
	// ErrNotLinked means the account has no YNAB destination yet.
	ErrNotLinked = errors.New("account is not linked to a YNAB account")
	// ErrStopped means the orchestrator is shutting down and accepts no new
	// triggers.
	ErrStopped = errors.New("orchestrator is stopped")
)

// Fetcher is the aggregation-provider contract the pipeline consumes.
type Fetcher interface {
	AccountCandidates(ctx context.Context, accountID string, start, end time.Time) ([]models.Candidate, error)
}

// Importer is the destination-ledger contract the pipeline consumes.
type Importer interface {
	ImportTransactions(ctx context.Context, budgetID, accountID string, candidates []models.Candidate) (ynab.ImportResult, error)
}

// Allowed schedule intervals in hours.
var intervalChoices = []int{1, 2, 4, 6, 12, 24}

const (
	DefaultIntervalHours = 6
	DefaultDaysToSync    = 7
)

// SnapInterval rounds an arbitrary interval to the nearest allowed value.
// Ties snap to the lower choice.
func SnapInterval(hours int) int {
	best := intervalChoices[0]
	for _, choice := range intervalChoices[1:] {
		if abs(choice-hours) < abs(best-hours) {
			best = choice
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Orchestrator owns one timer per scheduled account and guarantees at most
// one running sync per account at a time. It is the only mutator of the
// schedule fields on LinkedAccount.
type Orchestrator struct {
	accounts *repository.LinkedAccountRepository
	logs     *repository.SyncLogRepository
	dedup    *dedup.Service
	fetcher  Fetcher
	importer Importer
	log      *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	timers  map[string]*time.Timer
	running map[string]bool
	stopped bool
}

func NewOrchestrator(
	accounts *repository.LinkedAccountRepository,
	logs *repository.SyncLogRepository,
	dedupSvc *dedup.Service,
	fetcher Fetcher,
	importer Importer,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		accounts: accounts,
		logs:     logs,
		dedup:    dedupSvc,
		fetcher:  fetcher,
		importer: importer,
		log:      logger,
		now:      time.Now,
		timers:   map[string]*time.Timer{},
		running:  map[string]bool{},
	}
}

// Start reloads every account with an enabled schedule and a YNAB link and
// re-arms its trigger, so a restart never silently drops schedules. Accounts
// whose next run is already overdue fire immediately.
func (o *Orchestrator) Start() error {
	accounts, err := o.accounts.ListScheduled()
	if err != nil {
		return fmt.Errorf("load scheduled accounts: %w", err)
	}

	for i := range accounts {
		account := accounts[i]
		delay := time.Duration(account.ScheduleIntervalHours) * time.Hour
		if account.NextSyncAt != nil {
			delay = account.NextSyncAt.Sub(o.now())
			if delay < 0 {
				delay = 0
			}
		} else {
			next := o.now().UTC().Add(delay)
			if err := o.accounts.UpdateNextSyncAt(account.AkahuAccountID, &next); err != nil {
				o.log.Error("persist next sync time", "account", account.AkahuAccountID, "error", err)
			}
		}
		o.armTimer(account.AkahuAccountID, delay)
	}

	o.log.Info("sync orchestrator started", "scheduled_accounts", len(accounts))
	return nil
}

// Stop cancels all pending triggers and rejects new ones. In-flight runs
// complete on their own (bounded by per-call timeouts) but do not reschedule.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopped = true
	for id, timer := range o.timers {
		timer.Stop()
		delete(o.timers, id)
	}
	o.log.Info("sync orchestrator stopped")
}

// EnableSchedule turns on recurring sync for an account. The interval is
// snapped to the allowed set; the first run is scheduled a full interval out.
// The account must already be linked to a YNAB destination.
func (o *Orchestrator) EnableSchedule(akahuAccountID string, intervalHours, daysToSync int) (*models.LinkedAccount, error) {
	account, err := o.accounts.GetByAkahuID(akahuAccountID)
	if err != nil {
		return nil, err
	}
	if !account.Linked() {
		return nil, ErrNotLinked
	}

	if daysToSync <= 0 {
		daysToSync = DefaultDaysToSync
	}
	interval := SnapInterval(intervalHours)
	next := o.now().UTC().Add(time.Duration(interval) * time.Hour)

	account.ScheduleEnabled = true
	account.ScheduleIntervalHours = interval
	account.ScheduleDaysToSync = daysToSync
	account.NextSyncAt = &next
	if err := o.accounts.Save(account); err != nil {
		return nil, fmt.Errorf("save schedule: %w", err)
	}

	o.armTimer(akahuAccountID, time.Duration(interval)*time.Hour)
	o.log.Info("schedule enabled", "account", akahuAccountID, "interval_hours", interval)
	return account, nil
}

// DisableSchedule turns off recurring sync and cancels any pending trigger.
// Disabling an account that was never scheduled is success, not an error. A
// currently running sync is not aborted; it completes and does not reschedule.
func (o *Orchestrator) DisableSchedule(akahuAccountID string) (*models.LinkedAccount, error) {
	account, err := o.accounts.GetByAkahuID(akahuAccountID)
	if err != nil {
		return nil, err
	}

	account.ScheduleEnabled = false
	account.NextSyncAt = nil
	if err := o.accounts.Save(account); err != nil {
		return nil, fmt.Errorf("save schedule: %w", err)
	}

	o.cancelTimer(akahuAccountID)
	o.log.Info("schedule disabled", "account", akahuAccountID)
	return account, nil
}

// TriggerSync runs the pipeline for an account right now, synchronously,
// through the same single-flight gate the scheduler uses. Returns
// ErrSyncInProgress if a run is already executing.
func (o *Orchestrator) TriggerSync(akahuAccountID string) (*models.SyncRunLog, error) {
	return o.syncAccount(akahuAccountID, models.TriggerManual)
}

// JobInfo describes one armed schedule, for introspection endpoints.
type JobInfo struct {
	AkahuAccountID string     `json:"akahu_account_id"`
	AccountName    string     `json:"account_name"`
	IntervalHours  int        `json:"interval_hours"`
	NextSyncAt     *time.Time `json:"next_sync_at"`
	Running        bool       `json:"running"`
}

// ScheduledJobs lists every enabled schedule with its next run time.
func (o *Orchestrator) ScheduledJobs() ([]JobInfo, error) {
	accounts, err := o.accounts.ListScheduled()
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	jobs := make([]JobInfo, 0, len(accounts))
	for _, a := range accounts {
		jobs = append(jobs, JobInfo{
			AkahuAccountID: a.AkahuAccountID,
			AccountName:    a.AccountName,
			IntervalHours:  a.ScheduleIntervalHours,
			NextSyncAt:     a.NextSyncAt,
			Running:        o.running[a.AkahuAccountID],
		})
	}
	return jobs, nil
}

func (o *Orchestrator) armTimer(akahuAccountID string, delay time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return
	}
	if existing, ok := o.timers[akahuAccountID]; ok {
		existing.Stop()
	}
	o.timers[akahuAccountID] = time.AfterFunc(delay, func() {
		_, err := o.syncAccount(akahuAccountID, models.TriggerScheduled)
		switch {
		case err == nil:
		case errors.Is(err, ErrSyncInProgress), errors.Is(err, ErrStopped):
			// Coalesced or shutting down; nothing to do.
		default:
			o.log.Error("scheduled sync failed to start", "account", akahuAccountID, "error", err)
		}
	})
}

func (o *Orchestrator) cancelTimer(akahuAccountID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if timer, ok := o.timers[akahuAccountID]; ok {
		timer.Stop()
		delete(o.timers, akahuAccountID)
	}
}

// acquire claims the single-flight slot for an account.
func (o *Orchestrator) acquire(akahuAccountID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return ErrStopped
	}
	if o.running[akahuAccountID] {
		return ErrSyncInProgress
	}
	o.running[akahuAccountID] = true
	return nil
}

// release frees the slot and reschedules the account at completion + interval
// (success and failure alike, no backoff), unless the schedule was disabled
// during the run or the orchestrator stopped.
func (o *Orchestrator) release(akahuAccountID string) {
	o.mu.Lock()
	delete(o.running, akahuAccountID)
	stopped := o.stopped
	o.mu.Unlock()

	if stopped {
		return
	}

	account, err := o.accounts.GetByAkahuID(akahuAccountID)
	if err != nil {
		if !errors.Is(err, repository.ErrAccountNotFound) {
			o.log.Error("reload account after sync", "account", akahuAccountID, "error", err)
		}
		return
	}
	if !account.ScheduleEnabled || !account.Linked() {
		return
	}

	interval := time.Duration(account.ScheduleIntervalHours) * time.Hour
	next := o.now().UTC().Add(interval)
	if err := o.accounts.UpdateNextSyncAt(akahuAccountID, &next); err != nil {
		o.log.Error("persist next sync time", "account", akahuAccountID, "error", err)
	}
	o.armTimer(akahuAccountID, interval)
}
