package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP (empty URL disables asynchronous exports)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Reports
	ReportDir            string
	ReportCurrencyFormat string

	// Google Sheets export destination
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientJSON    string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string

	// Summary cache
	CacheSize int
	CacheTTL  time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	ShutdownTimeout time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/household.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "household"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "report_exports"),

		ReportDir:            getEnv("REPORT_DIR", "./reports"),
		ReportCurrencyFormat: getEnv("REPORT_CURRENCY_FORMAT", `"R$" #,##0.00`),

		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),

		CacheSize: getEnvInt("CACHE_SIZE", 24),
		CacheTTL:  getEnvDuration("CACHE_TTL", 5*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	return cfg
}

// GoogleConfigured reports whether any Google credential source is set.
func (c *Config) GoogleConfigured() bool {
	return c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != "" || c.GoogleOAuthTokenFile != ""
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

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		// Check if directory exists or can be created
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
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

	if strings.TrimSpace(c.ReportDir) == "" {
		errors = append(errors, "report directory cannot be empty")
	}

	// Google credentials: file paths must exist, OAuth needs client + token.
	for _, f := range []struct{ name, path string }{
		{"Google service account file", c.GoogleServiceAccountFile},
		{"Google OAuth client file", c.GoogleOAuthClientFile},
		{"Google OAuth token file", c.GoogleOAuthTokenFile},
	} {
		if f.path == "" {
			continue
		}
		if _, err := os.Stat(f.path); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("%s does not exist: %s", f.name, f.path))
		}
	}
	if c.GoogleOAuthTokenFile != "" && c.GoogleOAuthClientFile == "" && c.GoogleOAuthClientJSON == "" {
		errors = append(errors, "either GOOGLE_OAUTH_CLIENT_FILE or GOOGLE_OAUTH_CLIENT_JSON must be provided with GOOGLE_OAUTH_TOKEN_FILE")
	}

	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	} else if c.CacheSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at most 1000", c.CacheSize))
	}

	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	} else if c.CacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at most 24 hours", c.CacheTTL))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
