// Package cmd implements the CLI commands for cliparr.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cliparr/internal/config"
	"github.com/jmylchreest/cliparr/internal/observability"
	"github.com/jmylchreest/cliparr/internal/version"
)

// cfgFile holds the config file path from CLI flag.
var cfgFile string

// cfg is loaded once in the persistent pre-run and shared by all commands.
var cfg *config.Config

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "cliparr",
	Short:   "Viral clip generation and caption burning service",
	Version: version.Short(),
	Long: `cliparr turns long-form videos into short vertical clips. It transcribes
the source with a whisper-style server, scores the transcript for engaging
moments, cuts and reframes the best windows to 9:16, and burns word-timed
animated captions.

Jobs arrive over the HTTP API or the command line and run on Redis-backed
workers; finished clips land in the output directory alongside a status
sidecar and an analysis file, and are recorded in the clip library.`,
	// PersistentPreRunE is set in init() to avoid initialization cycle
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	// Set PersistentPreRunE here to avoid initialization cycle
	// (initLogging references rootCmd.PersistentFlags)
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		// version and help must keep working with a broken config file.
		switch cmd.Name() {
		case "version", "help":
			return nil
		}
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		return initLogging(cfg)
	}

	// Global flags
	// Note: These flags are NOT bound to viper. Instead, we check if they were
	// explicitly set using Changed() and only then override the config/env values.
	// This preserves the correct priority: CLI flag > env var > config > default
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., ./configs, /etc/cliparr, $HOME/.cliparr)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
}

// initLogging configures the slog logger from the loaded configuration.
//
// Priority order (highest to lowest):
//  1. CLI flags (--log-level, --log-format) - only if explicitly provided
//  2. Environment variables (CLIPARR_LOGGING_LEVEL, CLIPARR_LOGGING_FORMAT)
//  3. Config file values
//  4. Built-in defaults (info, json)
func initLogging(cfg *config.Config) error {
	logCfg := cfg.Logging

	// Override with CLI flags only if explicitly set by user. Binding flags to
	// viper would let the flag's default value shadow env/config values.
	if rootCmd.PersistentFlags().Changed("log-level") {
		logCfg.Level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		logCfg.Format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}

	logCfg.Level = strings.ToLower(logCfg.Level)
	logCfg.Format = strings.ToLower(logCfg.Format)

	// Handle "warning" as an alias for "warn"
	if logCfg.Level == "warning" {
		logCfg.Level = "warn"
	}

	// Logs go to stderr so command output (job results, config dumps) stays
	// clean on stdout.
	logger := observability.NewLoggerWithWriter(logCfg, os.Stderr)
	observability.SetDefault(logger)

	return nil
}
