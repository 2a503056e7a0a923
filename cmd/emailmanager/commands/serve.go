package commands

import (
	"github.com/spf13/cobra"

	"EmailManager/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the report scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger := loadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	logger.Info("email manager starting",
		"addr", cfg.Server.Addr(),
		"provider", cfg.Mailbox.Provider,
		"interval", cfg.Scheduler.Interval.Std(),
		"run_on_start", cfg.Scheduler.RunOnStart,
	)
	if err := application.Serve(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		return err
	}
	logger.Info("email manager stopped")
	return nil
}
