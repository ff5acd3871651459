package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	SkipAuth    bool
	Environment string
	AppId       string

	// SLA engine
	EvaluationSchedule string // cron expression for the open-case evaluation pass
	StatisticsSchedule string // cron expression for the nightly statistics recompute
	EvaluationWorkers  int
	MaxRetries         int // retries per case after an optimistic version conflict
	DefaultTimezone    string

	LegacyPostgresDSN string // only read by cmd/migrate_rules
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "go-cats"),
		SkipAuth:    getEnv("SKIP_AUTH", "false") == "true",
		Environment: getEnv("ENVIRONMENT", "development"),
		AppId:       getEnv("APP_ID", "go-cats"),

		EvaluationSchedule: getEnv("SLA_EVALUATION_SCHEDULE", "0 * * * *"),
		StatisticsSchedule: getEnv("SLA_STATISTICS_SCHEDULE", "30 2 * * *"),
		EvaluationWorkers:  getEnvInt("SLA_EVALUATION_WORKERS", 8),
		MaxRetries:         getEnvInt("SLA_MAX_RETRIES", 3),
		DefaultTimezone:    getEnv("SLA_DEFAULT_TIMEZONE", "Asia/Kolkata"),

		LegacyPostgresDSN: getEnv("LEGACY_POSTGRES_DSN", ""),
	}, nil
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer for %s=%q, using %d", key, value, fallback)
		return fallback
	}
	return n
}
