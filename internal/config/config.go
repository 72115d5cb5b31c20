package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"careanalytics/internal/deprivation"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath     string
	DeprivationTable string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID   string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	// Deprivation loader
	LoaderBatchSize     int
	LoaderMaxRetries    int
	LoaderBackoffBase   time.Duration
	LoaderBackoffMax    time.Duration
	LoaderCreateTable   bool
	LoaderReadyAttempts int
	LoaderReadyInterval time.Duration

	// Deprivation imports are only read from inside ImportDir
	ImportDir string

	// Import worker metrics listener; empty disables it
	WorkerMetricsPort string

	// Reports
	EarliestReportYear int

	// Classifier cache
	ClassifierCacheSize int
	ClassifierCacheTTL  time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

func Load() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "8081"),
		DataBackend: getEnv("DATA_BACKEND", "sqlite"),

		SQLiteDBPath:     getEnv("SQLITE_DB_PATH", "./data/careanalytics.db"),
		DeprivationTable: getEnv("DEPRIVATION_TABLE", "postcode_deprivation"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "careanalytics"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "deprivation_imports"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),

		LoaderBatchSize:     getEnvInt("LOADER_BATCH_SIZE", 25),
		LoaderMaxRetries:    getEnvInt("LOADER_MAX_RETRIES", 8),
		LoaderBackoffBase:   getEnvDuration("LOADER_BACKOFF_BASE", 100*time.Millisecond),
		LoaderBackoffMax:    getEnvDuration("LOADER_BACKOFF_MAX", 5*time.Second),
		LoaderCreateTable:   getEnvBool("LOADER_CREATE_TABLE", false),
		LoaderReadyAttempts: getEnvInt("LOADER_READY_ATTEMPTS", 30),
		LoaderReadyInterval: getEnvDuration("LOADER_READY_INTERVAL", time.Second),

		ImportDir:         getEnv("IMPORT_DIR", "./data/imports"),
		WorkerMetricsPort: getEnv("WORKER_METRICS_PORT", "9091"),

		EarliestReportYear: getEnvInt("EARLIEST_REPORT_YEAR", 2019),

		ClassifierCacheSize: getEnvInt("CLASSIFIER_CACHE_SIZE", 10000),
		ClassifierCacheTTL:  getEnvDuration("CLASSIFIER_CACHE_TTL", time.Hour),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if !tableName.MatchString(c.DeprivationTable) {
		errors = append(errors, fmt.Sprintf("invalid deprivation table name '%s': must be a plain identifier", c.DeprivationTable))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Credentials only matter when export is enabled
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleCredentialsFile == "" && c.GoogleCredentialsJSON == "" {
			errors = append(errors, "either GOOGLE_CREDENTIALS_FILE or GOOGLE_CREDENTIALS_JSON must be provided when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleCredentialsFile != "" {
			if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
			}
		}
	}

	// Validate loader configuration
	if c.LoaderBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid loader batch size %d: must be at least 1", c.LoaderBatchSize))
	} else if c.LoaderBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid loader batch size %d: must be at most 1000", c.LoaderBatchSize))
	}
	if c.LoaderMaxRetries < 0 {
		errors = append(errors, fmt.Sprintf("invalid loader max retries %d: must not be negative", c.LoaderMaxRetries))
	}
	if c.LoaderBackoffBase <= 0 {
		errors = append(errors, fmt.Sprintf("invalid loader backoff base %v: must be positive", c.LoaderBackoffBase))
	} else if c.LoaderBackoffMax < c.LoaderBackoffBase {
		errors = append(errors, fmt.Sprintf("invalid loader backoff max %v: must be at least the base %v", c.LoaderBackoffMax, c.LoaderBackoffBase))
	}
	if c.LoaderReadyAttempts < 1 {
		errors = append(errors, fmt.Sprintf("invalid loader ready attempts %d: must be at least 1", c.LoaderReadyAttempts))
	}
	if c.LoaderReadyInterval <= 0 {
		errors = append(errors, fmt.Sprintf("invalid loader ready interval %v: must be positive", c.LoaderReadyInterval))
	}

	if strings.TrimSpace(c.ImportDir) == "" {
		errors = append(errors, "import directory cannot be empty")
	}
	if c.WorkerMetricsPort != "" {
		if port, err := strconv.Atoi(c.WorkerMetricsPort); err != nil || port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("invalid worker metrics port '%s': must be between 1 and 65535", c.WorkerMetricsPort))
		}
	}

	if c.EarliestReportYear < 1900 || c.EarliestReportYear > 9999 {
		errors = append(errors, fmt.Sprintf("invalid earliest report year %d: must be between 1900 and 9999", c.EarliestReportYear))
	}

	if c.ClassifierCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid classifier cache size %d: must not be negative", c.ClassifierCacheSize))
	}
	if c.ClassifierCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid classifier cache ttl %v: must not be negative", c.ClassifierCacheTTL))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Loader returns the deprivation loader settings.
func (c *Config) Loader() deprivation.LoaderConfig {
	return deprivation.LoaderConfig{
		BatchSize:     c.LoaderBatchSize,
		MaxRetries:    c.LoaderMaxRetries,
		BackoffBase:   c.LoaderBackoffBase,
		BackoffMax:    c.LoaderBackoffMax,
		CreateTable:   c.LoaderCreateTable,
		ReadyAttempts: c.LoaderReadyAttempts,
		ReadyInterval: c.LoaderReadyInterval,
	}
}
