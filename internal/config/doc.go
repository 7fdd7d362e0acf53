// Package config loads runtime configuration for the readstash CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file, selected via -c/--config or READSTASH_CONFIG.
//  3. Environment variables, including a .env file in the working directory.
//  4. Command-line flags, applied by the CLI layer on top of the result.
//
// Environment variables
//
//	READSTASH_TOKEN       API access token (READWISE_TOKEN also accepted)
//	READSTASH_BASE_URL    API root override
//	READSTASH_DB          sqlite database path
//	READSTASH_PAGE_SIZE   records per fetched page
//	READSTASH_STRICT      abort sync on first invalid record
//	READSTASH_RUN_CEILING max sync run duration, e.g. "10m"
//	READSTASH_LOG_LEVEL   debug, info, warn or error
//
// # JSON schema
//
// Durations can be strings like "30s" or integer nanoseconds:
//
//	{
//	  "db_path": "~/stash/readstash.db",
//	  "page_size": 500,
//	  "run_ceiling": "10m",
//	  "retry_max_attempts": 5
//	}
package config
