package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c5t/c5t/internal/config"
	"github.com/c5t/c5t/internal/logging"
	"github.com/c5t/c5t/internal/ui"
)

var (
	configFile string
	dataDir    string
	verbose    bool
	noColor    bool

	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "c5t",
	Short: "Sync the c5t store across machines",
	Long: `c5t keeps tasks, notes, projects and skills in a local SQLite store and
synchronizes them through plain-text JSONL files tracked in git or jj.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(configFile); err != nil {
			return err
		}
		if dataDir != "" {
			config.Set(config.KeyDataDir, dataDir)
		}
		if verbose {
			config.Set(config.KeyLogLevel, "debug")
		}
		if noColor {
			config.Set(config.KeyNoColor, true)
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		logger, err = logging.New(logging.Options{
			Level:      cfg.Log.Level,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		})
		if err != nil {
			return fmt.Errorf("failed to open log: %w", err)
		}
		slog.SetDefault(logger.Logger)

		ui.Init(cfg.NoColor)
		slog.Debug("configuration loaded", "file", cfg.File, "data_dir", cfg.DataDir, "vcs", cfg.Sync.VCS)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Close()
		}
	},
}

// Execute runs the root command and exits non-zero on failure. An
// interrupt cancels the running operation.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default $XDG_CONFIG_HOME/c5t/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory holding the store and sync area")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}
