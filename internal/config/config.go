// Package config loads engine configuration from the environment and the
// optional compensation-plan schedule file.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// ClockMode selects the time source: "system" or "virtual". Virtual
	// mode lets operators pin the clock for plan rehearsals.
	ClockMode string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	// RedisAddr enables the cross-replica scheduler job lock when set.
	RedisAddr     string
	RedisPassword string

	// FounderChatID seeds a founder root member on startup when non-zero.
	FounderChatID int64
}

const (
	ClockModeSystem  = "system"
	ClockModeVirtual = "virtual"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "upline"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		ClockMode: normalizeClockMode(getenv("CLOCK_MODE", ClockModeSystem)),

		DBType:            getenv("DB_TYPE", "postgres"),
		DBHost:            getenv("DB_HOST", "localhost"),
		DBPort:            getenv("DB_PORT", "5432"),
		DBName:            getenv("DB_NAME", "upline"),
		DBUser:            getenv("DB_USER", "upline"),
		DBPassword:        getenv("DB_PASSWORD", ""),
		DBSSLMode:         getenv("DB_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DB_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DB_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DB_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DB_CONN_MAX_IDLE_TIME", 600),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		FounderChatID: getenvInt64("FOUNDER_CHAT_ID", 0),
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) UseVirtualClock() bool {
	return c.ClockMode == ClockModeVirtual
}

func normalizeClockMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ClockModeVirtual:
		return ClockModeVirtual
	default:
		return ClockModeSystem
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
