package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/readstash/readstash/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations use
// timex.Duration so the file can say "30s" or integer nanoseconds.
type JsonConfig struct {
	Token            string         `json:"token"`
	BaseURL          string         `json:"base_url"`
	DBPath           string         `json:"db_path"`
	PageSize         int            `json:"page_size"`
	Strict           *bool          `json:"strict"`
	RunCeiling       timex.Duration `json:"run_ceiling"`
	CommitRetries    *int           `json:"commit_retries"`
	HTTPTimeout      timex.Duration `json:"http_timeout"`
	RetryMaxAttempts *int           `json:"retry_max_attempts"`
	RetryBaseDelay   timex.Duration `json:"retry_base_delay"`
	RetryMaxDelay    timex.Duration `json:"retry_max_delay"`
	LogLevel         string         `json:"log_level"`
}

// parseJson overlays cfg with values from a JSON file. The path comes from
// the argument (the -c/--config flag) or the READSTASH_CONFIG variable; when
// both are empty no file is loaded. Only fields present in the file replace
// defaults.
func parseJson(cfg *Config, path string) error {
	if path == "" {
		path = os.Getenv("READSTASH_CONFIG")
	}
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if jc.Token != "" {
		cfg.Token = jc.Token
	}
	if jc.BaseURL != "" {
		cfg.BaseURL = jc.BaseURL
	}
	if jc.DBPath != "" {
		cfg.DBPath = jc.DBPath
	}
	if jc.PageSize > 0 {
		cfg.PageSize = jc.PageSize
	}
	if jc.Strict != nil {
		cfg.Strict = *jc.Strict
	}
	if jc.RunCeiling.Duration > 0 {
		cfg.RunCeiling = jc.RunCeiling.Duration
	}
	if jc.CommitRetries != nil {
		cfg.CommitRetries = *jc.CommitRetries
	}
	if jc.HTTPTimeout.Duration > 0 {
		cfg.HTTPTimeout = jc.HTTPTimeout.Duration
	}
	if jc.RetryMaxAttempts != nil {
		cfg.RetryMaxAttempts = *jc.RetryMaxAttempts
	}
	if jc.RetryBaseDelay.Duration > 0 {
		cfg.RetryBaseDelay = jc.RetryBaseDelay.Duration
	}
	if jc.RetryMaxDelay.Duration > 0 {
		cfg.RetryMaxDelay = time.Duration(jc.RetryMaxDelay.Duration)
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
	return nil
}
