package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DBDriver         string `validate:"oneof=postgres sqlite3 mysql"`
	DatabaseURL      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	SQLitePath       string

	Concurrency       int `validate:"min=1,max=16"`
	DetailConcurrency int `validate:"min=1,max=32"`
	DelayMs           int `validate:"min=0"`
	DelayJitterMs     int `validate:"min=0"`
	RequestsPerMinute int `validate:"min=1"`
	MaxRetries        int `validate:"min=1,max=10"`
	MaxPages          int `validate:"min=0"`
	BatchSize         int `validate:"min=1,max=1000"`
	PageTimeoutSec    int `validate:"min=1"`
	ScrollStableIters int `validate:"min=1"`
	LoadMoreMaxClicks int `validate:"min=1"`

	UserAgent      string
	SourcesFile    string
	CheckpointPath string
	CSVOutputPath  string
	MetricsAddr    string
	ChromeBin      string
	Headless       bool
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		DBDriver:         getEnv("DB_DRIVER", "postgres"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "festivals"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "festivals"),
		PostgresDB:       getEnv("POSTGRES_DB", "festivals"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		SQLitePath:       getEnv("SQLITE_PATH", "./output/festivals.db"),

		Concurrency:       getEnvInt("CONCURRENCY", 3),
		DetailConcurrency: getEnvInt("DETAIL_CONCURRENCY", 5),
		DelayMs:           getEnvInt("DELAY_MS", 1500),
		DelayJitterMs:     getEnvInt("DELAY_JITTER_MS", 1500),
		RequestsPerMinute: getEnvInt("REQUESTS_PER_MINUTE", 30),
		MaxRetries:        getEnvInt("MAX_RETRIES", 3),
		MaxPages:          getEnvInt("MAX_PAGES", 0),
		BatchSize:         getEnvInt("BATCH_SIZE", 50),
		PageTimeoutSec:    getEnvInt("PAGE_TIMEOUT_SEC", 45),
		ScrollStableIters: getEnvInt("SCROLL_STABLE_ITERATIONS", 5),
		LoadMoreMaxClicks: getEnvInt("LOAD_MORE_MAX_CLICKS", 30),

		UserAgent:      getEnv("USER_AGENT", DefaultUserAgent),
		SourcesFile:    getEnv("SOURCES_FILE", "./sources.yaml"),
		CheckpointPath: getEnv("CHECKPOINT_PATH", "./output/checkpoint.json"),
		CSVOutputPath:  getEnv("CSV_OUTPUT_PATH", ""),
		MetricsAddr:    getEnv("METRICS_ADDR", ""),
		ChromeBin:      getEnv("CHROME_BIN", ""),
		Headless:       getEnvBool("HEADLESS", true),
	}
}

// DefaultUserAgent matches a current desktop Chrome.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate reports the first invalid knob in a readable form.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: %s=%v violates %s=%s", fe.Field(), fe.Value(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	switch c.DBDriver {
	case "sqlite3":
		return "file:" + c.SQLitePath + "?_foreign_keys=on&_busy_timeout=5000"
	case "mysql":
		return c.PostgresUser + ":" + c.PostgresPassword +
			"@tcp(" + c.PostgresHost + ":" + c.PostgresPort + ")/" + c.PostgresDB +
			"?parseTime=true&charset=utf8mb4"
	}
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// Delay is the lower bound of the randomized pre-request wait.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

// DelayJitter is the width of the randomized pre-request wait.
func (c *Config) DelayJitter() time.Duration {
	return time.Duration(c.DelayJitterMs) * time.Millisecond
}

// PageTimeout bounds one navigation.
func (c *Config) PageTimeout() time.Duration {
	return time.Duration(c.PageTimeoutSec) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
