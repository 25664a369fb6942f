package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Redis (optional; empty disables the leaderboard cache)
	RedisURL string

	// Game server (TCP)
	TCPHost string
	TCPPort string

	// HTTP API / WebSocket gateway
	HTTPPort string

	// Mastermind settings
	CodeLength  int
	MaxAttempts int

	// Query limits
	TopPlayersLimit int
	HistoryLimit    int

	// Per-session rate limiting
	ActionsPerSecond int
	ActionBurst      int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/playduel?sslmode=disable"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		// Redis
		RedisURL: getEnv("REDIS_URL", ""),

		// Game server
		TCPHost: getEnv("TCP_HOST", "localhost"),
		TCPPort: getEnv("TCP_PORT", "12345"),

		// HTTP
		HTTPPort: getEnv("HTTP_PORT", "8080"),

		// Mastermind
		CodeLength:  getEnvInt("CODE_LENGTH", 4),
		MaxAttempts: getEnvInt("MAX_ATTEMPTS", 10),

		// Query limits
		TopPlayersLimit: getEnvInt("TOP_PLAYERS_LIMIT", 10),
		HistoryLimit:    getEnvInt("HISTORY_LIMIT", 10),

		// Rate limiting
		ActionsPerSecond: getEnvInt("ACTIONS_PER_SECOND", 20),
		ActionBurst:      getEnvInt("ACTION_BURST", 40),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
