package sync

import (
	"context"
	"fmt"

	"github.com/hawsen-the-first/ynab-sync/internal/models"
)

// syncAccount executes one full sync run for an account: fetch, fingerprint,
// filter, import, record, then (in release) reschedule. Every run, however it
// ends, leaves a terminal SyncRunLog row and an updated account status; a
// fetch or import failure is recorded, not retried — the next scheduled tick
// is the retry.
func (o *Orchestrator) syncAccount(akahuAccountID, trigger string) (*models.SyncRunLog, error) {
	account, err := o.accounts.GetByAkahuID(akahuAccountID)
	if err != nil {
		return nil, err
	}
	if !account.Linked() {
		return nil, ErrNotLinked
	}

	if err := o.acquire(akahuAccountID); err != nil {
		return nil, err
	}
	defer o.release(akahuAccountID)

	runLog := &models.SyncRunLog{
		AkahuAccountID: akahuAccountID,
		StartedAt:      o.now().UTC(),
		Status:         models.SyncStatusRunning,
		Trigger:        trigger,
	}
	if err := o.logs.Create(runLog); err != nil {
		return nil, fmt.Errorf("open sync log: %w", err)
	}

	err = o.accounts.UpdateLastRun(akahuAccountID, map[string]any{
		"last_sync_status": models.SyncStatusRunning,
	})
	if err != nil {
		o.log.Error("mark account running", "account", akahuAccountID, "error", err)
	}

	o.log.Info("sync run started", "account", akahuAccountID, "trigger", trigger)

	// A panic anywhere in the pipeline must not take down the scheduler or
	// other accounts; it becomes a failed run like any other error.
	func() {
		defer func() {
			if r := recover(); r != nil {
				o.log.Error("sync run panicked", "account", akahuAccountID, "panic", r)
				o.failRun(runLog, account, fmt.Sprintf("internal error: %v", r))
			}
		}()
		o.runPipeline(context.Background(), account, runLog)
	}()

	return runLog, nil
}

func (o *Orchestrator) runPipeline(ctx context.Context, account *models.LinkedAccount, runLog *models.SyncRunLog) {
	end := o.now()
	start := end.AddDate(0, 0, -account.ScheduleDaysToSync)

	candidates, err := o.fetcher.AccountCandidates(ctx, account.AkahuAccountID, start, end)
	if err != nil {
		o.failRun(runLog, account, fmt.Sprintf("failed to fetch transactions: %v", err))
		return
	}

	runLog.TransactionsFound = len(candidates)
	if len(candidates) == 0 {
		o.completeRun(runLog, account, 0, 0, "No transactions found")
		return
	}

	toImport, duplicates, err := o.dedup.MarkDuplicates(candidates)
	if err != nil {
		o.failRun(runLog, account, fmt.Sprintf("failed to check duplicates: %v", err))
		return
	}
	runLog.TransactionsSkipped = len(duplicates)

	if len(toImport) == 0 {
		o.completeRun(runLog, account, 0, 0,
			fmt.Sprintf("All %d transactions were duplicates", len(duplicates)))
		return
	}

	result, err := o.importer.ImportTransactions(ctx, account.YNABBudgetID, account.YNABAccountID, toImport)
	if err != nil {
		// Nothing is recorded locally: the gateway rejected the whole batch,
		// so these transactions were never confirmed accepted.
		o.failRun(runLog, account, fmt.Sprintf("YNAB import failed: %v", err))
		return
	}

	if _, err := o.dedup.RecordBatch(toImport, account.YNABBudgetID, account.YNABAccountID, result.TransactionIDs); err != nil {
		o.failRun(runLog, account, fmt.Sprintf("failed to record imports: %v", err))
		return
	}

	imported := len(result.TransactionIDs)
	o.completeRun(runLog, account, imported, len(result.DuplicateImportIDs),
		fmt.Sprintf("Imported %d transactions", imported))
}

// completeRun writes the terminal success update to the log row and the
// account's last-run fields.
func (o *Orchestrator) completeRun(runLog *models.SyncRunLog, account *models.LinkedAccount, imported, ynabDuplicates int, message string) {
	now := o.now().UTC()

	runLog.Status = models.SyncStatusSuccess
	runLog.CompletedAt = &now
	runLog.TransactionsImported = imported
	runLog.YNABDuplicates = ynabDuplicates
	if err := o.logs.Save(runLog); err != nil {
		o.log.Error("save sync log", "account", account.AkahuAccountID, "error", err)
	}

	err := o.accounts.UpdateLastRun(account.AkahuAccountID, map[string]any{
		"last_sync_status":   models.SyncStatusSuccess,
		"last_sync_message":  message,
		"last_sync_imported": imported,
		"last_synced_at":     now,
	})
	if err != nil {
		o.log.Error("save account status", "account", account.AkahuAccountID, "error", err)
	}

	o.log.Info("sync run complete",
		"account", account.AkahuAccountID,
		"found", runLog.TransactionsFound,
		"imported", imported,
		"skipped", runLog.TransactionsSkipped,
		"ynab_duplicates", ynabDuplicates)
}

// failRun writes the terminal failure update. The account still reschedules
// at the normal interval afterwards; there is no backoff.
func (o *Orchestrator) failRun(runLog *models.SyncRunLog, account *models.LinkedAccount, message string) {
	now := o.now().UTC()

	runLog.Status = models.SyncStatusFailed
	runLog.CompletedAt = &now
	runLog.ErrorMessage = message
	if err := o.logs.Save(runLog); err != nil {
		o.log.Error("save sync log", "account", account.AkahuAccountID, "error", err)
	}

	err := o.accounts.UpdateLastRun(account.AkahuAccountID, map[string]any{
		"last_sync_status":  models.SyncStatusFailed,
		"last_sync_message": message,
	})
	if err != nil {
		o.log.Error("save account status", "account", account.AkahuAccountID, "error", err)
	}

	o.log.Warn("sync run failed", "account", account.AkahuAccountID, "error", message)
}
