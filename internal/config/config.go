package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	KISBaseURL      string
	KISAppKey       string
	KISAppSecret    string
	KISAccountNo    string // CANO-PRDT, e.g. "12345678-01"
	DiscordWebhook  string
	RedisURL        string
	DatabasePath    string
	LogLevel        string
	Port            int
	DevMode         bool
	PollInterval    time.Duration
	HTTPTimeout     time.Duration
	TokenMargin     time.Duration // subtracted from token TTL against clock skew
	RetentionDays   int
	TrendWindowDays int
	TrendTopN       int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		KISBaseURL:      getEnv("KIS_BASE_URL", "https://openapi.koreainvestment.com:9443"),
		KISAppKey:       getEnv("KIS_APP_KEY", ""),
		KISAppSecret:    getEnv("KIS_APP_SECRET", ""),
		KISAccountNo:    getEnv("KIS_ACCOUNT_NO", ""),
		DiscordWebhook:  getEnv("DISCORD_WEBHOOK_URL", ""),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379"),
		DatabasePath:    getEnv("DATABASE_PATH", "./data/sentinel.db"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Port:            getEnvAsInt("PORT", 8090),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		PollInterval:    getEnvAsDuration("POLL_INTERVAL", 5*time.Minute),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 10*time.Second),
		TokenMargin:     getEnvAsDuration("TOKEN_SAFETY_MARGIN", 60*time.Second),
		RetentionDays:   getEnvAsInt("FLOW_RETENTION_DAYS", 120),
		TrendWindowDays: getEnvAsInt("TREND_WINDOW_DAYS", 20),
		TrendTopN:       getEnvAsInt("TREND_TOP_N", 15),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.KISAppKey == "" || c.KISAppSecret == "" {
		return fmt.Errorf("KIS_APP_KEY and KIS_APP_SECRET are required")
	}
	if _, _, err := c.AccountParts(); err != nil {
		return err
	}
	if c.DiscordWebhook == "" {
		return fmt.Errorf("DISCORD_WEBHOOK_URL is required")
	}
	return nil
}

// AccountParts splits the account number into CANO and product code
func (c *Config) AccountParts() (cano, prdt string, err error) {
	parts := strings.SplitN(c.KISAccountNo, "-", 2)
	if len(parts) != 2 || len(parts[0]) != 8 || parts[1] == "" {
		return "", "", fmt.Errorf("KIS_ACCOUNT_NO must look like 12345678-01, got %q", c.KISAccountNo)
	}
	return parts[0], parts[1], nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
