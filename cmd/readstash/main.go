// readstash mirrors a Readwise account into a local sqlite database and
// lets you browse, annotate and export it offline.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/readstash/readstash/internal/config"
	"github.com/readstash/readstash/internal/logging"
	"github.com/readstash/readstash/internal/store"
)

var (
	flagConfig  string
	flagDB      string
	flagToken   string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "readstash",
	Short: "Local-first mirror of your Readwise highlights",
	Long: `readstash keeps a complete, queryable copy of your Readwise library
in a local sqlite file. Sync is incremental and resumable; your own
notes and tags live locally and survive every re-sync.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "path to JSON config file")
	pf.StringVar(&flagDB, "db", "", "sqlite database path")
	pf.StringVar(&flagToken, "token", "", "API access token")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(syncCmd, statusCmd, lsCmd, showCmd,
		noteCmd, tagCmd, favoriteCmd, orphansCmd, exportCmd, authCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles everything an open command needs.
type app struct {
	cfg   *config.Config
	log   logging.Logger
	store *store.Store
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// loadConfig builds the effective config: file and environment first,
// command-line flags on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.DBPath = flagDB
	}
	if flagToken != "" {
		cfg.Token = flagToken
	}
	if flagVerbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	return &app{cfg: cfg, log: newLogger(cfg.LogLevel), store: st}, nil
}

func newLogger(level string) logging.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return logging.NewSlogLogger(slog.New(h))
}
