// Package config provides configuration management for the reward service.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Rewards    RewardsConfig
	Policy     PolicyConfig
	Ledger     LedgerConfig
	Cache      CacheConfig
	RateLimit  RateLimitConfig
	Reconciler ReconcilerConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	Redis      RedisConfig
	ClickHouse ClickHouseConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration for the audit log
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RewardsConfig holds reward payout configuration. FunderAccountID and
// FunderWalletID identify the system-owned wallet rewards are paid from;
// both must be set for claims to succeed.
type RewardsConfig struct {
	Currency        string
	CatalogFile     string
	FunderAccountID string
	FunderWalletID  string
}

// PolicySettings holds one allow/deny rule set over country and ASN tokens.
// Empty allow lists mean no allow-list restriction.
type PolicySettings struct {
	DenyCountries  []string
	AllowCountries []string
	DenyASNs       []string
	AllowASNs      []string
	RejectProxies  bool
}

// PolicyConfig holds the two independently configured policies
type PolicyConfig struct {
	Phone PolicySettings
	IP    PolicySettings
}

// LedgerConfig holds the intraledger payment service configuration
type LedgerConfig struct {
	BaseURL string
	Timeout time.Duration
}

// CacheConfig holds reward status cache configuration
type CacheConfig struct {
	TTL time.Duration
}

// RateLimitConfig holds per-account claim rate limiting configuration
type RateLimitConfig struct {
	ClaimsPerMinute int
	Burst           int
}

// ReconcilerConfig holds settlement reconciliation worker configuration
type ReconcilerConfig struct {
	Interval    time.Duration
	GracePeriod time.Duration
	BatchSize   int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "rewards"),
				User:           getEnv("POSTGRES_USER", "rewards"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "rewards"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
		},
		Rewards: RewardsConfig{
			Currency:        getEnv("REWARDS_CURRENCY", "BTC"),
			CatalogFile:     getEnv("REWARDS_CATALOG_FILE", ""),
			FunderAccountID: getEnv("REWARDS_FUNDER_ACCOUNT_ID", ""),
			FunderWalletID:  getEnv("REWARDS_FUNDER_WALLET_ID", ""),
		},
		Policy: PolicyConfig{
			Phone: PolicySettings{
				DenyCountries:  getEnvAsList("PHONE_DENY_COUNTRIES", nil),
				AllowCountries: getEnvAsList("PHONE_ALLOW_COUNTRIES", nil),
				DenyASNs:       nil,
				AllowASNs:      nil,
			},
			IP: PolicySettings{
				DenyCountries:  getEnvAsList("IP_DENY_COUNTRIES", nil),
				AllowCountries: getEnvAsList("IP_ALLOW_COUNTRIES", nil),
				DenyASNs:       getEnvAsList("IP_DENY_ASNS", nil),
				AllowASNs:      getEnvAsList("IP_ALLOW_ASNS", nil),
				RejectProxies:  getEnvAsBool("IP_REJECT_PROXIES", true),
			},
		},
		Ledger: LedgerConfig{
			BaseURL: getEnv("LEDGER_BASE_URL", "http://localhost:4010"),
			Timeout: getEnvAsDuration("LEDGER_TIMEOUT", 15*time.Second),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			ClaimsPerMinute: getEnvAsInt("RATE_LIMIT_CLAIMS_PER_MINUTE", 30),
			Burst:           getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Reconciler: ReconcilerConfig{
			Interval:    getEnvAsDuration("RECONCILER_INTERVAL", time.Minute),
			GracePeriod: getEnvAsDuration("RECONCILER_GRACE_PERIOD", 5*time.Minute),
			BatchSize:   getEnvAsInt("RECONCILER_BATCH_SIZE", 100),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList gets a comma-separated environment variable as a string slice
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	return values
}
