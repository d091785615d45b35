package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	handler "github.com/hawsen-the-first/ynab-sync/internal/handlers"
	"github.com/hawsen-the-first/ynab-sync/internal/repository"
	"github.com/hawsen-the-first/ynab-sync/internal/services/akahu"
	"github.com/hawsen-the-first/ynab-sync/internal/services/dedup"
	syncsvc "github.com/hawsen-the-first/ynab-sync/internal/services/sync"
	"github.com/hawsen-the-first/ynab-sync/internal/services/ynab"
)

func RegisterRoutes(
	r *gin.Engine,
	db *gorm.DB,
	akahuClient *akahu.Client,
	ynabClient *ynab.Client,
	dedupSvc *dedup.Service,
	orch *syncsvc.Orchestrator,
) {
	accountRepo := repository.NewLinkedAccountRepository(db)
	logRepo := repository.NewSyncLogRepository(db)
	profileRepo := repository.NewMappingProfileRepository(db)

	akahuHandler := handler.NewAkahuHandler(akahuClient, accountRepo, logRepo, dedupSvc, orch)
	ynabHandler := handler.NewYNABHandler(ynabClient)
	csvHandler := handler.NewCSVHandler(dedupSvc, ynabClient, profileRepo)
	mappingsHandler := handler.NewMappingsHandler(profileRepo)
	importsHandler := handler.NewImportsHandler(dedupSvc)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Akahu provider routes
	ak := api.Group("/akahu")
	ak.GET("/test", akahuHandler.TestConnection)
	ak.GET("/accounts", akahuHandler.ListAccounts)
	ak.POST("/accounts/:id/link", akahuHandler.LinkAccount)
	ak.DELETE("/accounts/:id/link", akahuHandler.UnlinkAccount)
	ak.GET("/accounts/:id/transactions", akahuHandler.PreviewTransactions)
	ak.POST("/accounts/:id/sync", akahuHandler.TriggerSync)
	ak.GET("/accounts/:id/schedule", akahuHandler.GetSchedule)
	ak.POST("/accounts/:id/schedule", akahuHandler.EnableSchedule)
	ak.DELETE("/accounts/:id/schedule", akahuHandler.DisableSchedule)
	ak.GET("/schedules", akahuHandler.ListSchedules)
	ak.GET("/sync-logs", akahuHandler.ListSyncLogs)
	ak.GET("/sync-logs/:id", akahuHandler.GetSyncLog)

	// YNAB destination routes
	yn := api.Group("/ynab")
	yn.GET("/test", ynabHandler.TestConnection)
	yn.GET("/budgets", ynabHandler.ListBudgets)
	yn.GET("/budgets/:budgetId/accounts", ynabHandler.ListAccounts)

	// CSV upload routes
	csv := api.Group("/csv")
	csv.GET("/presets", csvHandler.ListPresets)
	csv.POST("/preview", csvHandler.Preview)
	csv.POST("/import", csvHandler.Import)

	// Saved mapping profiles
	mappings := api.Group("/mappings")
	{
		mappings.GET("", mappingsHandler.List)
		mappings.POST("", mappingsHandler.Create)
		mappings.GET("/:id", mappingsHandler.Get)
		mappings.PUT("/:id", mappingsHandler.Update)
		mappings.DELETE("/:id", mappingsHandler.Delete)
	}

	// Import ledger
	imports := api.Group("/imports")
	imports.GET("/history", importsHandler.History)
	imports.GET("/stats", importsHandler.Stats)
}
