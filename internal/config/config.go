package config

import (
	"time"

	"github.com/readstash/readstash/internal/readwise"
)

// Config holds runtime settings for the readstash CLI.
type Config struct {
	// Token is the API access token. Required for sync, never stored in
	// the database.
	Token string

	// BaseURL is the API root, overridable for tests and proxies.
	BaseURL string

	// DBPath is the sqlite database file.
	DBPath string

	// PageSize is how many records one fetch requests.
	PageSize int

	// Strict aborts a sync on the first invalid record instead of
	// skipping and counting it.
	Strict bool

	// RunCeiling caps a sync run's duration; the run stops at the next
	// page boundary once it passes. Zero means no cap.
	RunCeiling time.Duration

	// CommitRetries is how many times a failed page commit is re-attempted.
	CommitRetries int

	// HTTPTimeout bounds a single HTTP request.
	HTTPTimeout time.Duration

	// Retry knobs for transient fetch failures.
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BaseURL = readwise.DefaultBaseURL
	c.DBPath = "readstash.db"
	c.PageSize = 100
	c.CommitRetries = 2
	c.HTTPTimeout = 30 * time.Second
	c.RetryMaxAttempts = 5
	c.RetryBaseDelay = time.Second
	c.RetryMaxDelay = time.Minute
	c.LogLevel = "info"
}

// Load constructs a Config by applying defaults, then overlaying a JSON file
// (if jsonPath is non-empty or READSTASH_CONFIG points at one) and finally
// environment variables, including those loaded from a .env file. Later
// sources take precedence. Command-line flags overlay on top in the CLI
// layer.
func Load(jsonPath string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, jsonPath); err != nil {
		return nil, err
	}
	parseEnv(cfg)
	return cfg, nil
}
