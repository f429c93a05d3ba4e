package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the sync service.
// It is built once in main and passed down explicitly.
type Config struct {
	AppEnv string
	Port   string

	Database   DatabaseConfig
	Redis      RedisConfig
	Upstream   UpstreamConfig
	Classifier ClassifierConfig
	Sync       SyncConfig
	Schedule   ScheduleConfig
	Auth       AuthConfig
}

// DatabaseConfig describes the Postgres connection
type DatabaseConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	Name        string
	SSLMode     string
	AutoMigrate bool
}

// DSN returns the postgres connection string used by both sqlx and GORM
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// RedisConfig is optional; an empty Host keeps the classifier cache in memory
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Enabled reports whether a Redis host was configured
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// UpstreamConfig holds the reservation provider endpoint, credentials and call budgets
type UpstreamConfig struct {
	BaseURL        string
	APIKey         string
	Version        string
	PageSize       int
	MaxPages       int
	ConnectTimeout time.Duration
	SearchTimeout  time.Duration
	DetailTimeout  time.Duration
	BatchTimeout   time.Duration
	RequestDelay   time.Duration
	MaxAttempts    int
	RetryBackoff   time.Duration

	// Consecutive failures before the circuit breaker opens, and how long it stays open.
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
}

// ClassifierConfig points at the province classifier service
type ClassifierConfig struct {
	URL      string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// SyncConfig tunes the window planner, worker pool and backfill scanner
type SyncConfig struct {
	RecencyLookback   time.Duration
	HorizonDays       int
	MaxRangeDays      int
	DetailConcurrency int
	RunBudget         time.Duration
	BackfillBatchSize int
	BackfillDaysAhead int
	BackfillDelay     time.Duration
}

// ScheduleConfig holds cron specs; an empty spec disables that job
type ScheduleConfig struct {
	RecencyCron  string
	HorizonCron  string
	BackfillCron string
}

// AuthConfig holds the secret used to sign trigger tokens
type AuthConfig struct {
	TokenSecret string
	TokenTTL    time.Duration
}

// LoadConfig loads configuration from the environment, reading a .env file first if present
func LoadConfig() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "development"),
		Port:   getEnv("PORT", "8080"),

		Database: DatabaseConfig{
			Host:        getEnv("PG_HOST", "localhost"),
			Port:        getEnv("PG_PORT", "5432"),
			User:        getEnv("PG_USER", "opsdesk"),
			Password:    getEnv("PG_PASSWORD", ""),
			Name:        getEnv("PG_DB", "opsdesk"),
			SSLMode:     getEnv("PG_SSLMODE", "disable"),
			AutoMigrate: getEnvAsBool("PG_AUTO_MIGRATE", false),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		Upstream: UpstreamConfig{
			BaseURL:          strings.TrimRight(getEnv("UPSTREAM_BASE_URL", ""), "/"),
			APIKey:           getEnv("UPSTREAM_API_KEY", ""),
			Version:          getEnv("UPSTREAM_API_VERSION", "2.0"),
			PageSize:         getEnvAsInt("UPSTREAM_PAGE_SIZE", 100),
			MaxPages:         getEnvAsInt("UPSTREAM_MAX_PAGES", 50),
			ConnectTimeout:   getEnvAsDuration("UPSTREAM_CONNECT_TIMEOUT", 10*time.Second),
			SearchTimeout:    getEnvAsDuration("UPSTREAM_SEARCH_TIMEOUT", 30*time.Second),
			DetailTimeout:    getEnvAsDuration("UPSTREAM_DETAIL_TIMEOUT", 20*time.Second),
			BatchTimeout:     getEnvAsDuration("UPSTREAM_BATCH_TIMEOUT", 60*time.Second),
			RequestDelay:     getEnvAsDuration("UPSTREAM_REQUEST_DELAY", 100*time.Millisecond),
			MaxAttempts:      getEnvAsInt("UPSTREAM_MAX_ATTEMPTS", 3),
			RetryBackoff:     getEnvAsDuration("UPSTREAM_RETRY_BACKOFF", 500*time.Millisecond),
			BreakerThreshold: uint32(getEnvAsInt("UPSTREAM_BREAKER_THRESHOLD", 10)),
			BreakerCooldown:  getEnvAsDuration("UPSTREAM_BREAKER_COOLDOWN", 30*time.Second),
		},

		Classifier: ClassifierConfig{
			URL:      getEnv("CLASSIFIER_URL", ""),
			Timeout:  getEnvAsDuration("CLASSIFIER_TIMEOUT", 5*time.Second),
			CacheTTL: getEnvAsDuration("CLASSIFIER_CACHE_TTL", 24*time.Hour),
		},

		Sync: SyncConfig{
			RecencyLookback:   getEnvAsDuration("SYNC_RECENCY_LOOKBACK", 7*24*time.Hour),
			HorizonDays:       getEnvAsInt("SYNC_HORIZON_DAYS", 14),
			MaxRangeDays:      getEnvAsInt("SYNC_MAX_RANGE_DAYS", 30),
			DetailConcurrency: getEnvAsInt("SYNC_DETAIL_CONCURRENCY", 3),
			RunBudget:         getEnvAsDuration("SYNC_RUN_BUDGET", 15*time.Minute),
			BackfillBatchSize: getEnvAsInt("BACKFILL_BATCH_SIZE", 10),
			BackfillDaysAhead: getEnvAsInt("BACKFILL_DAYS_AHEAD", 7),
			BackfillDelay:     getEnvAsDuration("BACKFILL_DELAY", 500*time.Millisecond),
		},

		Schedule: ScheduleConfig{
			RecencyCron:  getEnv("SCHEDULE_RECENCY_CRON", "*/15 * * * *"),
			HorizonCron:  getEnv("SCHEDULE_HORIZON_CRON", "5 * * * *"),
			BackfillCron: getEnv("SCHEDULE_BACKFILL_CRON", "*/30 * * * *"),
		},

		Auth: AuthConfig{
			TokenSecret: getEnv("TRIGGER_TOKEN_SECRET", ""),
			TokenTTL:    getEnvAsDuration("TRIGGER_TOKEN_TTL", 365*24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the engine cannot run with
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("UPSTREAM_BASE_URL is required")
	}
	if c.Upstream.PageSize <= 0 {
		return fmt.Errorf("UPSTREAM_PAGE_SIZE must be positive, got %d", c.Upstream.PageSize)
	}
	if c.Upstream.MaxAttempts <= 0 {
		return fmt.Errorf("UPSTREAM_MAX_ATTEMPTS must be positive, got %d", c.Upstream.MaxAttempts)
	}
	if c.Sync.DetailConcurrency <= 0 {
		return fmt.Errorf("SYNC_DETAIL_CONCURRENCY must be positive, got %d", c.Sync.DetailConcurrency)
	}
	if c.Sync.MaxRangeDays <= 0 {
		return fmt.Errorf("SYNC_MAX_RANGE_DAYS must be positive, got %d", c.Sync.MaxRangeDays)
	}
	return nil
}

// Helper functions to get environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("30s", "15m")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
