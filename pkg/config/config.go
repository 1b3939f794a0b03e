// Package config loads smsledger settings from environment variables and an
// optional JSON file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	kJson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ClientSecretFile is the default path to the Google OAuth credentials JSON file.
const ClientSecretFile = "data/client_secret.json"

// Ledger drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Readers.
const (
	ReaderSpool = "spool"
	ReaderMbox  = "mbox"
	ReaderGmail = "gmail"
)

// Mirror writers.
const (
	WriterCSV    = "csv"
	WriterJSON   = "json"
	WriterSheets = "sheets"
)

// Config holds the application configuration.
type Config struct {
	// LedgerDriver selects the transaction store: sqlite or postgres.
	// Environment variable: LEDGER_DRIVER
	LedgerDriver string `koanf:"LEDGER_DRIVER"`

	// SQLitePath is the sqlite ledger file.
	// Environment variable: SQLITE_PATH
	SQLitePath string `koanf:"SQLITE_PATH"`

	Postgres PostgresConfig `koanf:",squash"`

	// ModelPath is the bolt file holding the classifier model and the
	// processed-message memory.
	// Environment variable: MODEL_PATH
	ModelPath string `koanf:"MODEL_PATH"`

	// SpoolPath is the offline message buffer.
	// Environment variable: SPOOL_PATH
	SpoolPath string `koanf:"SPOOL_PATH"`
	// SpoolCap is the number of buffered messages retained.
	// Environment variable: SPOOL_CAP
	SpoolCap int `koanf:"SPOOL_CAP"`

	// DedupWindow is the duplicate and manual-merge time window.
	// Environment variable: DEDUP_WINDOW
	DedupWindow time.Duration `koanf:"DEDUP_WINDOW"`
	// AmountTolerance is the largest amount difference, in rupees, still
	// treated as the same transaction.
	// Environment variable: AMOUNT_TOLERANCE
	AmountTolerance float64 `koanf:"AMOUNT_TOLERANCE"`
	// SeenCap is how many processed message IDs are remembered.
	// Environment variable: SEEN_CAP
	SeenCap int `koanf:"SEEN_CAP"`

	// Reader selects the message source for the daemon: spool, mbox or gmail.
	// Environment variable: READER
	Reader string `koanf:"READER"`
	// MboxPath is the mbox export read by the mbox reader.
	// Environment variable: MBOX_PATH
	MboxPath string `koanf:"MBOX_PATH"`
	// GmailQuery selects bank alert mail for the gmail reader.
	// Environment variable: GMAIL_QUERY
	GmailQuery string `koanf:"GMAIL_QUERY"`
	// PollInterval is how often readers look for new messages.
	// Environment variable: POLL_INTERVAL
	PollInterval time.Duration `koanf:"POLL_INTERVAL"`

	// Writer optionally mirrors stored transactions: csv, json or sheets.
	// Environment variable: WRITER
	Writer string `koanf:"WRITER"`
	// MirrorPath is the csv or json mirror file.
	// Environment variable: MIRROR_PATH
	MirrorPath string `koanf:"MIRROR_PATH"`

	// GSheetsTitle is the title for a new Google Sheet (used when creating).
	// Environment variable: GSHEETS_TITLE
	GSheetsTitle string `koanf:"GSHEETS_TITLE"`

	// GSheetsID is the ID of an existing Google Sheet to use.
	// Environment variable: GSHEETS_ID
	GSheetsID string `koanf:"GSHEETS_ID"`

	// GSheetsName is the name of the sheet/tab within the spreadsheet.
	// Environment variable: GSHEETS_NAME
	GSheetsName string `koanf:"GSHEETS_NAME"`

	// SecretsFile is the Google OAuth client secret.
	// Environment variable: GOOGLE_CLIENT_SECRET
	SecretsFile string `koanf:"GOOGLE_CLIENT_SECRET"`

	LogLevel string `koanf:"LOG_LEVEL"`
	LogJSON  bool   `koanf:"LOG_JSON"`
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	// URL, when set, is used as-is instead of the individual fields.
	URL      string `koanf:"POSTGRES_URL"`
	Host     string `koanf:"POSTGRES_HOST"`
	Port     int    `koanf:"POSTGRES_PORT"`
	Database string `koanf:"POSTGRES_DB"`
	User     string `koanf:"POSTGRES_USER"`
	Password string `koanf:"POSTGRES_PASSWORD"`
	SSLMode  string `koanf:"POSTGRES_SSLMODE"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LedgerDriver: DriverSQLite,
		SQLitePath:   "data/ledger.db",
		Postgres: PostgresConfig{
			Port:    5432,
			SSLMode: "disable",
		},
		ModelPath:       "data/model.db",
		SpoolPath:       "data/spool.json",
		SpoolCap:        500,
		DedupWindow:     10 * time.Minute,
		AmountTolerance: 2,
		SeenCap:         1000,
		Reader:          ReaderSpool,
		GmailQuery:      "is:unread label:bank-alerts",
		PollInterval:    10 * time.Second,
		SecretsFile:     ClientSecretFile,
		LogLevel:        "INFO",
	}
}

// Load builds the configuration from defaults, then the JSON file at path
// (skipped when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), kJson.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FileExists reports whether an optional config file is present. An empty
// path is treated as absent.
func FileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Validate checks that the selected drivers have what they need.
func (c *Config) Validate() error {
	var errs []error

	switch c.LedgerDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite ledger"))
		}
	case DriverPostgres:
		if c.Postgres.URL == "" && (c.Postgres.Host == "" || c.Postgres.Database == "") {
			errs = append(errs, errors.New("POSTGRES_URL or POSTGRES_HOST and POSTGRES_DB are required for the postgres ledger"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LEDGER_DRIVER %q", c.LedgerDriver))
	}

	if c.ModelPath == "" {
		errs = append(errs, errors.New("MODEL_PATH is required"))
	}
	if c.DedupWindow <= 0 {
		errs = append(errs, fmt.Errorf("DEDUP_WINDOW must be positive, got %s", c.DedupWindow))
	}
	if c.AmountTolerance < 0 {
		errs = append(errs, fmt.Errorf("AMOUNT_TOLERANCE must not be negative, got %v", c.AmountTolerance))
	}

	switch c.Reader {
	case ReaderSpool:
		if c.SpoolPath == "" {
			errs = append(errs, errors.New("SPOOL_PATH is required for the spool reader"))
		}
	case ReaderMbox:
		if c.MboxPath == "" {
			errs = append(errs, errors.New("MBOX_PATH is required for the mbox reader"))
		}
	case ReaderGmail:
		if c.GmailQuery == "" {
			errs = append(errs, errors.New("GMAIL_QUERY is required for the gmail reader"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown READER %q", c.Reader))
	}

	switch c.Writer {
	case "":
	case WriterCSV, WriterJSON:
		if c.MirrorPath == "" {
			errs = append(errs, fmt.Errorf("MIRROR_PATH is required for the %s writer", c.Writer))
		}
	case WriterSheets:
		if c.GSheetsName == "" {
			errs = append(errs, errors.New("GSHEETS_NAME is required for the sheets writer"))
		}
		if c.GSheetsID == "" && c.GSheetsTitle == "" {
			errs = append(errs, errors.New("either GSHEETS_ID or GSHEETS_TITLE is required for the sheets writer"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown WRITER %q", c.Writer))
	}

	return errors.Join(errs...)
}

// NeedsGoogle reports whether the configuration uses a Google API.
func (c *Config) NeedsGoogle() bool {
	return c.Reader == ReaderGmail || c.Writer == WriterSheets
}
