// Package config loads the engine's environment-variable surface into a
// typed Config, following the teacher's godotenv + getEnv* + Validate shape.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Environment string
	LogLevel    string

	HTTPAddr string

	RPCURL      string
	WSURL       string
	KeypairPath string
	ProgramID   string

	PriceOracleSource     string
	RiskAlertThresholdPPM int64
	ScanInterval          time.Duration

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Admin    AdminConfig
}

// DatabaseConfig holds the Postgres connection string.
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis connection settings for the oracle's caching
// front end.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds the bearer-token signing secret.
type JWTConfig struct {
	Secret string
}

// AdminConfig holds the bootstrap admin login credential.
type AdminConfig struct {
	Username     string
	PasswordHash string
}

// defaultAlertThreshold is the default RISK_ALERT_THRESHOLD (0.20, as a
// fraction of notional), matching risk.DefaultAlertThresholdPPM.
const defaultAlertThreshold = 0.20

// defaultScanInterval is the default SCAN_INTERVAL between risk monitor
// passes.
const defaultScanInterval = 2 * time.Second

// Load reads a .env file (if present) and environment variables into a
// Config, then validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		HTTPAddr: getEnv("HTTP_ADDR", "0.0.0.0:8080"),

		RPCURL:      getEnv("RPC_URL", ""),
		WSURL:       getEnv("WS_URL", ""),
		KeypairPath: getEnv("KEYPAIR_PATH", ""),
		ProgramID:   getEnv("PROGRAM_ID", ""),

		PriceOracleSource:     getEnv("PRICE_ORACLE_SOURCE", "mock"),
		RiskAlertThresholdPPM: int64(getEnvAsFloat("RISK_ALERT_THRESHOLD", defaultAlertThreshold) * 1_000_000),
		ScanInterval:          getEnvAsDuration("SCAN_INTERVAL", defaultScanInterval),

		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},

		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},

		Admin: AdminConfig{
			Username:     getEnv("ADMIN_USERNAME", "admin"),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that production deployments carry the secrets a dev
// default would otherwise silently paper over.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.Admin.PasswordHash == "" {
			return fmt.Errorf("ADMIN_PASSWORD_HASH is required in production")
		}
		if c.PriceOracleSource == "mock" {
			log.Println("WARNING: PRICE_ORACLE_SOURCE=mock in production")
		}
	}
	return nil
}

// Helper functions

func getEnv(key string, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultVal
}
