package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"profitcalc/internal/core"
)

type Config struct {
	// HTTP Server
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	// Storage
	DataBackend  string `envconfig:"DATA_BACKEND" default:"files" validate:"oneof=files sqlite memory"`
	DataDir      string `envconfig:"DATA_DIR" default:"monthly_data"`
	SQLiteDBPath string `envconfig:"SQLITE_DB_PATH" default:"./data/profitcalc.db"`

	// Raw upload archive
	ArchiveBackend string `envconfig:"ARCHIVE_BACKEND" default:"local" validate:"oneof=local gcs none"`
	ArchiveDir     string `envconfig:"ARCHIVE_DIR"`
	GCSBucket      string `envconfig:"GCS_BUCKET"`
	GCSPrefix      string `envconfig:"GCS_PREFIX" default:"uploads"`

	// AMQP
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"profitcalc"`
	AMQPQueue    string `envconfig:"AMQP_QUEUE" default:"sync_reports"`

	// Google Sheets
	GoogleSpreadsheetID        string `envconfig:"GOOGLE_SPREADSHEET_ID"`
	GoogleSheetPrefix          string `envconfig:"GOOGLE_SHEET_PREFIX" default:"Profit"`
	GoogleServiceAccountJSON   string `envconfig:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleServiceAccountFile   string `envconfig:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	GoogleApplicationCredsFile string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`

	// Processing
	WindowStart string `envconfig:"PROFIT_WINDOW_START" default:"2025-07"`
	WindowEnd   string `envconfig:"PROFIT_WINDOW_END" default:"2026-07"`
	MaxUploadMB int    `envconfig:"MAX_UPLOAD_MB" default:"50" validate:"min=1,max=1024"`
	MaxRows     int    `envconfig:"MAX_ROWS" default:"50000" validate:"min=1"`

	// HTTP protection
	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"2" validate:"gt=0"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"10" validate:"min=1"`

	// Worker
	SyncBatchSize  int           `envconfig:"SYNC_BATCH_SIZE" default:"10"`
	SyncInterval   time.Duration `envconfig:"SYNC_INTERVAL" default:"30s"`
	SyncMaxRetries int           `envconfig:"SYNC_MAX_RETRIES" default:"3" validate:"min=1,max=100"`

	// Observability
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	LogFormat      string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json"`
	TracingEnabled bool   `envconfig:"TRACING_ENABLED" default:"false"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}
	return &cfg, nil
}

// Window returns the configured month window.
func (c *Config) Window() (core.MonthWindow, error) {
	return core.NewMonthWindow(core.Period(c.WindowStart), core.Period(c.WindowEnd))
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// SheetsEnabled reports whether a spreadsheet is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// ArchiveRoot is ARCHIVE_DIR, defaulting to DATA_DIR so archived uploads
// sit next to the month documents.
func (c *Config) ArchiveRoot() string {
	if c.ArchiveDir != "" {
		return c.ArchiveDir
	}
	return c.DataDir
}

var validate = validator.New()

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("invalid %s %v: failed %s=%s", fe.Field(), fe.Value(), fe.Tag(), fe.Param()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case "files":
		if c.DataDir == "" {
			errs = append(errs, "data directory cannot be empty when using files backend")
		}
	}

	if c.ArchiveBackend == "gcs" && c.GCSBucket == "" {
		errs = append(errs, "GCS_BUCKET is required when ARCHIVE_BACKEND is gcs")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if _, err := c.Window(); err != nil {
		errs = append(errs, fmt.Sprintf("invalid month window %s..%s: %v", c.WindowStart, c.WindowEnd, err))
	}

	if c.SyncBatchSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errs = append(errs, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}
