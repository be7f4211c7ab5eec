// Package cmd implements the CLI commands for mixarr.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jmylchreest/mixarr/internal/config"
	"github.com/jmylchreest/mixarr/internal/observability"
	"github.com/jmylchreest/mixarr/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "mixarr",
	Short:   "Multi-camera ingest, mixing and distribution engine",
	Version: version.Short(),
	Long: `mixarr captures local cameras, publishes them to a MediaMTX media server,
records sessions to disk, and runs a live compositor with scenes, transitions
and overlay graphics on a single Rockchip RK3588 board.

Everything is driven through the REST and WebSocket control plane;
distribution (WebRTC, HLS, RTSP fan-out) stays MediaMTX's job.`,
	// PersistentPreRunE is set in init() to avoid an initialization cycle
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	// Set PersistentPreRunE here to avoid an initialization cycle
	// (initLogging references rootCmd.PersistentFlags).
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initLogging()
	}

	// Global flags.
	// These are NOT bound into the config layer. Commands check Changed() and
	// only then override config/env values, preserving the priority:
	// CLI flag > env var > config file > default.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., ./configs, /etc/mixarr, $HOME/.mixarr)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
}

// initLogging installs a bootstrap logger before any command runs, so config
// loading itself logs consistently. serve rebuilds the logger from the full
// configuration once that is loaded.
//
// Priority order (highest to lowest):
//  1. CLI flags (--log-level, --log-format) - only if explicitly provided
//  2. Environment variables (MIXARR_LOGGING_LEVEL, MIXARR_LOGGING_FORMAT)
//  3. Built-in defaults (info, json)
func initLogging() error {
	level := os.Getenv("MIXARR_LOGGING_LEVEL")
	format := os.Getenv("MIXARR_LOGGING_FORMAT")

	flags := rootCmd.PersistentFlags()
	overrideString(flags, "log-level", func(v string) { level = v })
	overrideString(flags, "log-format", func(v string) { format = v })

	if level == "" {
		level = "info"
	}
	if format == "" {
		format = "json"
	}

	logCfg := config.LoggingConfig{
		Level:  normalizeLevel(level),
		Format: strings.ToLower(format),
	}

	observability.SetDefault(observability.NewLoggerWithWriter(logCfg, os.Stderr))
	return nil
}

// applyLoggingFlags overrides config-sourced logging values with CLI flags
// when the user provided them explicitly.
func applyLoggingFlags(cfg *config.LoggingConfig) {
	flags := rootCmd.PersistentFlags()
	overrideString(flags, "log-level", func(v string) { cfg.Level = normalizeLevel(v) })
	overrideString(flags, "log-format", func(v string) { cfg.Format = strings.ToLower(v) })
}

// overrideString applies a string flag's value when the user set it
// explicitly.
func overrideString(flags *pflag.FlagSet, name string, apply func(string)) {
	if flags.Changed(name) {
		value, _ := flags.GetString(name)
		apply(value)
	}
}

// overrideInt applies an int flag's value when the user set it explicitly.
func overrideInt(flags *pflag.FlagSet, name string, apply func(int)) {
	if flags.Changed(name) {
		value, _ := flags.GetInt(name)
		apply(value)
	}
}

// normalizeLevel lowercases a level name and accepts "warning" as an alias
// for "warn".
func normalizeLevel(level string) string {
	l := strings.ToLower(level)
	if l == "warning" {
		l = "warn"
	}
	return l
}
