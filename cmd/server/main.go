package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/hawsen-the-first/ynab-sync/internal/config"
	"github.com/hawsen-the-first/ynab-sync/internal/models"
	"github.com/hawsen-the-first/ynab-sync/internal/repository"
	"github.com/hawsen-the-first/ynab-sync/internal/routes"
	"github.com/hawsen-the-first/ynab-sync/internal/services/akahu"
	"github.com/hawsen-the-first/ynab-sync/internal/services/dedup"
	syncsvc "github.com/hawsen-the-first/ynab-sync/internal/services/sync"
	"github.com/hawsen-the-first/ynab-sync/internal/services/ynab"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	settings := config.Load()
	logger := newLogger(settings.LogLevel)
	slog.SetDefault(logger)

	db := config.InitDB(settings.DatabaseURL)
	if err := db.AutoMigrate(
		&models.LinkedAccount{},
		&models.ImportRecord{},
		&models.SyncRunLog{},
		&models.MappingProfile{},
	); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	akahuClient := akahu.NewClient(settings.AkahuBaseURL, settings.AkahuAppToken, settings.AkahuUserToken)
	ynabClient := ynab.NewClient(settings.YNABBaseURL, settings.YNABAccessToken)
	dedupSvc := dedup.NewService(db)

	orch := syncsvc.NewOrchestrator(
		repository.NewLinkedAccountRepository(db),
		repository.NewSyncLogRepository(db),
		dedupSvc,
		akahuClient,
		ynabClient,
		logger,
	)
	if err := orch.Start(); err != nil {
		log.Fatalf("start sync orchestrator: %v", err)
	}

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, db, akahuClient, ynabClient, dedupSvc, orch)

	server := &http.Server{
		Addr:    ":" + settings.Port,
		Handler: r,
	}

	go func() {
		logger.Info("server listening", "port", settings.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	orch.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
