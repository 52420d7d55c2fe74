package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port    string
	Env     string // development, staging, production
	BaseURL string // external URL used for OAuth redirects and unsubscribe links

	// Storage
	StoreDriver string // postgres, memory
	Database    DatabaseConfig

	// Redis
	Redis RedisConfig

	// External services
	Google GoogleConfig
	Quotes QuotesConfig
	Sheets SheetsConfig
	Mail   MailConfig

	// Scheduling
	Scheduler SchedulerConfig

	// Sessions
	SessionTTL time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// GoogleConfig holds OAuth client credentials for the Google APIs
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectPath string
}

// QuotesConfig configures the price source
type QuotesConfig struct {
	Provider  string // json, html
	BaseURL   string
	RateLimit int // requests per second across all processes (redis backed)
	Timeout   time.Duration
	CacheTTL  time.Duration // 0 disables the in-process quote cache
}

// SheetsConfig configures spreadsheet writes
type SheetsConfig struct {
	WriteConcurrency int // 1 = sequential writes after a refresh pass
	RequestsPerSec   float64
}

// MailConfig holds SMTP settings for alert emails
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
	Subject  string
	Enabled  bool
}

// SchedulerConfig holds cron expressions (with seconds)
type SchedulerConfig struct {
	RefreshSchedule string
	CleanupSchedule string
	CronToken       string // when set, GET /update_stocks requires a matching X-Cron-Token header
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port:    getEnv("PORT", "8080"),
		Env:     getEnv("ENV", "development"),
		BaseURL: strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),

		StoreDriver: getEnv("STORE_DRIVER", "postgres"),
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Google: GoogleConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectPath: getEnv("GOOGLE_REDIRECT_PATH", "/oauth2callback"),
		},

		Quotes: QuotesConfig{
			Provider:  getEnv("QUOTES_PROVIDER", "json"),
			BaseURL:   getEnv("QUOTES_BASE_URL", "https://finance.yahoo.com"),
			RateLimit: getEnvAsInt("QUOTES_RATE_LIMIT", 5),
			Timeout:   getEnvAsDuration("QUOTES_TIMEOUT", "30s"),
			CacheTTL:  getEnvAsDuration("QUOTES_CACHE_TTL", "1m"),
		},

		Sheets: SheetsConfig{
			WriteConcurrency: getEnvAsInt("SHEETS_WRITE_CONCURRENCY", 1),
			RequestsPerSec:   getEnvAsFloat("SHEETS_REQUESTS_PER_SEC", 1),
		},

		Mail: MailConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			Sender:   getEnv("MAIL_SENDER", "notifications@sheetalert.local"),
			Subject:  getEnv("MAIL_SUBJECT", "Stock alerts!"),
			Enabled:  getEnvAsBool("MAIL_ENABLED", true),
		},

		Scheduler: SchedulerConfig{
			RefreshSchedule: getEnv("REFRESH_SCHEDULE", "0 */15 * * * *"),
			CleanupSchedule: getEnv("CACHE_CLEANUP_SCHEDULE", "0 */10 * * * *"),
			CronToken:       getEnv("CRON_TOKEN", ""),
		},

		SessionTTL: getEnvAsDuration("SESSION_TTL", "168h"),

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be one of: postgres, memory")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Quotes.Provider != "json" && c.Quotes.Provider != "html" {
		return fmt.Errorf("QUOTES_PROVIDER must be one of: json, html")
	}

	if c.Sheets.WriteConcurrency < 1 {
		return fmt.Errorf("SHEETS_WRITE_CONCURRENCY must be at least 1")
	}

	return nil
}

// URL joins path onto the external base URL
func (c *Config) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.BaseURL + path
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
