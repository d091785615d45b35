package config

import (
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Settings holds all runtime configuration, loaded from environment
// variables (optionally seeded from a .env file by main).
type Settings struct {
	DatabaseURL string

	YNABAccessToken string
	YNABBaseURL     string

	AkahuAppToken  string
	AkahuUserToken string
	AkahuBaseURL   string

	Port     string
	LogLevel string
}

func Load() Settings {
	return Settings{
		DatabaseURL:     getEnv("DATABASE_URL", "host=localhost user=postgres dbname=ynab_sync sslmode=disable"),
		YNABAccessToken: os.Getenv("YNAB_ACCESS_TOKEN"),
		YNABBaseURL:     getEnv("YNAB_BASE_URL", "https://api.ynab.com/v1"),
		AkahuAppToken:   os.Getenv("AKAHU_APP_TOKEN"),
		AkahuUserToken:  os.Getenv("AKAHU_USER_TOKEN"),
		AkahuBaseURL:    getEnv("AKAHU_BASE_URL", "https://api.akahu.io/v1"),
		Port:            getEnv("PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// InitDB opens the Postgres connection. TranslateError is required so
// unique-constraint violations surface as gorm.ErrDuplicatedKey, which the
// dedup ledger's batch fallback depends on.
func InitDB(databaseURL string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return db
}
