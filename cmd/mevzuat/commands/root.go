// Package commands holds the cobra commands of the mevzuat CLI.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"mevzuat/internal/config"
	"mevzuat/internal/logger"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:           "mevzuat",
	Short:         "mevzuat scrapes legislation from mevzuat.gov.tr and publishes it as a dataset.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", os.Getenv("MEVZUAT_CONFIG"), "YAML config file (defaults to $MEVZUAT_CONFIG, built-in defaults when empty).")
	flags.StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error).")
	flags.StringVar(&logFormat, "log-format", "", "Override logging.format (text, json).")
}

// ExecuteContext runs the CLI.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads the config file and applies the global flag overrides.
// Commands apply their own overrides and call validate afterwards.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	return cfg, nil
}

func validate(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	return nil
}

func newLogger(cfg *config.Config) *logger.Logger {
	return logger.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

// setupCommand loads and validates the config after overrides ran.
func setupCommand(override func(cfg *config.Config)) (*config.Config, *logger.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	if override != nil {
		override(cfg)
	}

	if err := validate(cfg); err != nil {
		return nil, nil, err
	}

	return cfg, newLogger(cfg), nil
}

func usageError(cmd *cobra.Command, format string, args ...any) error {
	return fmt.Errorf("%s: %s", cmd.CommandPath(), fmt.Sprintf(format, args...))
}
