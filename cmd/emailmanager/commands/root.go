package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"EmailManager/internal/config"
	"EmailManager/internal/logging"
)

var (
	// configPath overrides EMAIL_MANAGER_CONFIG.
	configPath string

	// logLevel overrides the configured log level.
	logLevel string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "emailmanager",
	Short: "Email sending API and daily inbox summary reports",
	Long: `emailmanager serves an HTTP API for sending templated emails and, on a
fixed interval, fetches recent mailbox messages, summarizes them with an
OpenAI-compatible model and emails an HTML report.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", "",
		"Path to YAML config (default: $EMAIL_MANAGER_CONFIG)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "",
		"Log level: debug, info, warn, error",
	)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runOnceCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(authCmd)
}

func loadConfig() (config.Config, *slog.Logger) {
	cfg := config.Load(configPath)
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	return cfg, logger
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
