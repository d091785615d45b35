package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hawsen-the-first/ynab-sync/internal/fingerprint"
	"github.com/hawsen-the-first/ynab-sync/internal/models"
	"github.com/hawsen-the-first/ynab-sync/internal/repository"
	"github.com/hawsen-the-first/ynab-sync/internal/services/akahu"
	"github.com/hawsen-the-first/ynab-sync/internal/services/dedup"
	syncsvc "github.com/hawsen-the-first/ynab-sync/internal/services/sync"
)

type AkahuHandler struct {
	client   *akahu.Client
	accounts *repository.LinkedAccountRepository
	logs     *repository.SyncLogRepository
	dedup    *dedup.Service
	orch     *syncsvc.Orchestrator
}

func NewAkahuHandler(
	client *akahu.Client,
	accounts *repository.LinkedAccountRepository,
	logs *repository.SyncLogRepository,
	dedupSvc *dedup.Service,
	orch *syncsvc.Orchestrator,
) *AkahuHandler {
	return &AkahuHandler{
		client:   client,
		accounts: accounts,
		logs:     logs,
		dedup:    dedupSvc,
		orch:     orch,
	}
}

func (h *AkahuHandler) TestConnection(c *gin.Context) {
	connected := h.client.TestConnection(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"connected": connected})
}

type accountView struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Type        string           `json:"type"`
	Institution string           `json:"institution"`
	Balance     *decimal.Decimal `json:"balance"`

	Linked          bool       `json:"linked"`
	YNABBudgetID    string     `json:"ynab_budget_id,omitempty"`
	YNABAccountID   string     `json:"ynab_account_id,omitempty"`
	ScheduleEnabled bool       `json:"schedule_enabled"`
	LastSyncedAt    *time.Time `json:"last_synced_at,omitempty"`
	LastSyncStatus  string     `json:"last_sync_status,omitempty"`
}

// ListAccounts returns every connected bank account, enriched with its link
// and schedule state when one exists.
func (h *AkahuHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.client.Accounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	linked, err := h.accounts.ListAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	links := make(map[string]models.LinkedAccount, len(linked))
	for _, l := range linked {
		links[l.AkahuAccountID] = l
	}

	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		view := accountView{
			ID:          a.ID,
			Name:        a.Name,
			Type:        a.Type,
			Institution: a.Institution,
			Balance:     a.Balance,
		}
		if link, ok := links[a.ID]; ok {
			view.Linked = link.Linked()
			view.YNABBudgetID = link.YNABBudgetID
			view.YNABAccountID = link.YNABAccountID
			view.ScheduleEnabled = link.ScheduleEnabled
			view.LastSyncedAt = link.LastSyncedAt
			view.LastSyncStatus = link.LastSyncStatus
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{"accounts": views})
}

// LinkAccount connects an Akahu account to a YNAB budget/account. The account
// name, type and institution are captured from the provider at link time.
func (h *AkahuHandler) LinkAccount(c *gin.Context) {
	var payload struct {
		YNABBudgetID  string `json:"ynab_budget_id" binding:"required"`
		YNABAccountID string `json:"ynab_account_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ynab_budget_id and ynab_account_id are required"})
		return
	}
	akahuAccountID := c.Param("id")

	account, err := h.accounts.GetByAkahuID(akahuAccountID)
	if errors.Is(err, repository.ErrAccountNotFound) {
		account = &models.LinkedAccount{AkahuAccountID: akahuAccountID}
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Best effort enrichment; a provider outage must not block linking.
	if providerAccounts, err := h.client.Accounts(c.Request.Context()); err == nil {
		for _, a := range providerAccounts {
			if a.ID == akahuAccountID {
				account.AccountName = a.Name
				account.AccountType = a.Type
				account.Institution = a.Institution
				break
			}
		}
	}

	account.YNABBudgetID = payload.YNABBudgetID
	account.YNABAccountID = payload.YNABAccountID
	if err := h.accounts.Save(account); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account linked", "account": account})
}

// UnlinkAccount removes the link and its schedule. Unlinking an account that
// was never linked succeeds.
func (h *AkahuHandler) UnlinkAccount(c *gin.Context) {
	akahuAccountID := c.Param("id")

	if _, err := h.orch.DisableSchedule(akahuAccountID); err != nil &&
		!errors.Is(err, repository.ErrAccountNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.accounts.Delete(akahuAccountID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account unlinked"})
}

type transactionPreview struct {
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Payee       string          `json:"payee"`
	Memo        string          `json:"memo"`
	IsDuplicate bool            `json:"is_duplicate"`
}

// PreviewTransactions fetches an account's recent transactions and flags the
// ones the ledger has already imported, without importing anything.
func (h *AkahuHandler) PreviewTransactions(c *gin.Context) {
	akahuAccountID := c.Param("id")
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days <= 0 {
		days = syncsvc.DefaultDaysToSync
	}

	end := time.Now()
	start := end.AddDate(0, 0, -days)
	candidates, err := h.client.AccountCandidates(c.Request.Context(), akahuAccountID, start, end)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.dedup.ExistingFingerprints()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	previews := make([]transactionPreview, 0, len(candidates))
	duplicates := 0
	for _, tx := range candidates {
		_, isDup := existing[fingerprint.Candidate(tx)]
		if isDup {
			duplicates++
		}
		previews = append(previews, transactionPreview{
			Date:        tx.OccurredAt.Format("2006-01-02"),
			Amount:      tx.Amount,
			Payee:       tx.Payee,
			Memo:        tx.Memo,
			IsDuplicate: isDup,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": previews,
		"total":        len(previews),
		"duplicates":   duplicates,
	})
}

// TriggerSync runs a sync for the account right now and returns the completed
// run log. A run already in flight yields 409; the trigger is dropped.
func (h *AkahuHandler) TriggerSync(c *gin.Context) {
	runLog, err := h.orch.TriggerSync(c.Param("id"))
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "account not linked"})
	case errors.Is(err, syncsvc.ErrNotLinked):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, syncsvc.ErrSyncInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, syncsvc.ErrStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"run": runLog})
	}
}

// GetSchedule returns the account's schedule settings.
func (h *AkahuHandler) GetSchedule(c *gin.Context) {
	account, err := h.accounts.GetByAkahuID(c.Param("id"))
	if errors.Is(err, repository.ErrAccountNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not linked"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"enabled":        account.ScheduleEnabled,
		"interval_hours": account.ScheduleIntervalHours,
		"days_to_sync":   account.ScheduleDaysToSync,
		"next_sync_at":   account.NextSyncAt,
	})
}

// EnableSchedule turns on recurring sync. The interval is snapped to the
// nearest allowed value, which the response reflects.
func (h *AkahuHandler) EnableSchedule(c *gin.Context) {
	var payload struct {
		IntervalHours int `json:"interval_hours"`
		DaysToSync    int `json:"days_to_sync"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if payload.IntervalHours <= 0 {
		payload.IntervalHours = syncsvc.DefaultIntervalHours
	}

	account, err := h.orch.EnableSchedule(c.Param("id"), payload.IntervalHours, payload.DaysToSync)
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "account not linked"})
	case errors.Is(err, syncsvc.ErrNotLinked):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{
			"message":        "schedule enabled",
			"interval_hours": account.ScheduleIntervalHours,
			"days_to_sync":   account.ScheduleDaysToSync,
			"next_sync_at":   account.NextSyncAt,
		})
	}
}

// DisableSchedule turns off recurring sync; disabling an unscheduled account
// succeeds.
func (h *AkahuHandler) DisableSchedule(c *gin.Context) {
	_, err := h.orch.DisableSchedule(c.Param("id"))
	if errors.Is(err, repository.ErrAccountNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not linked"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "schedule disabled"})
}

// ListSchedules returns every armed schedule with its next run time.
func (h *AkahuHandler) ListSchedules(c *gin.Context) {
	jobs, err := h.orch.ScheduledJobs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": jobs})
}

// ListSyncLogs returns run logs newest first, optionally filtered by account.
func (h *AkahuHandler) ListSyncLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs, err := h.logs.List(c.Query("account_id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *AkahuHandler) GetSyncLog(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log ID"})
		return
	}

	runLog, err := h.logs.GetByID(id)
	if errors.Is(err, repository.ErrSyncLogNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "sync log not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"log": runLog})
}
