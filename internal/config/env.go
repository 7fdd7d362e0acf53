package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays cfg with environment variables. A .env file in the
// working directory is loaded first, without clobbering variables already
// set in the real environment.
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	if v, ok := os.LookupEnv("READSTASH_TOKEN"); ok {
		cfg.Token = v
	} else if v, ok := os.LookupEnv("READWISE_TOKEN"); ok {
		// Accept the upstream variable name too.
		cfg.Token = v
	}
	if v, ok := os.LookupEnv("READSTASH_BASE_URL"); ok {
		cfg.BaseURL = v
	}
	if v, ok := os.LookupEnv("READSTASH_DB"); ok {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("READSTASH_PAGE_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PageSize = n
		}
	}
	if v, ok := os.LookupEnv("READSTASH_STRICT"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Strict = b
		}
	}
	if v, ok := os.LookupEnv("READSTASH_RUN_CEILING"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RunCeiling = d
		}
	}
	if v, ok := os.LookupEnv("READSTASH_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
}
