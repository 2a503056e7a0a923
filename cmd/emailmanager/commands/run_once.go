package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"EmailManager/internal/app"
	"EmailManager/internal/domain"
)

var runOnceJSON bool

var runOnceCmd = &cobra.Command{
	Use:   "run-once",
	Short: "Fetch, summarize and send one report, then exit",
	RunE:  runRunOnce,
}

func init() {
	runOnceCmd.Flags().BoolVar(&runOnceJSON, "json", false, "Print the finished run as JSON")
}

func runRunOnce(cmd *cobra.Command, _ []string) error {
	cfg, logger := loadConfig()
	if cfg.Report.Recipient == "" {
		return errors.New("config: missing report recipient")
	}
	cfg.Scheduler.Disabled = true
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

	run, runErr := application.RunOnce(ctx)
	if err := printRun(cmd, run); err != nil {
		return err
	}
	return runErr
}

func printRun(cmd *cobra.Command, run domain.ReportRun) error {
	out := cmd.OutOrStdout()
	if runOnceJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"id":            run.ID,
			"state":         run.State,
			"fetched_count": run.FetchedCount,
			"summarized":    run.Summarized,
			"sent":          run.Sent,
			"failed_in":     run.FailedIn.UnwrapOr(""),
			"error":         run.Error.UnwrapOr(domain.RunError{}).Message,
		})
	}

	fmt.Fprintf(out, "run %s: %s\n", run.ID, run.State)
	fmt.Fprintf(out, "  fetched:    %d\n", run.FetchedCount)
	fmt.Fprintf(out, "  summarized: %t\n", run.Summarized)
	fmt.Fprintf(out, "  sent:       %t\n", run.Sent)
	run.FinishedAt.WhenSome(func(t time.Time) {
		fmt.Fprintf(out, "  duration:   %s\n", t.Sub(run.StartedAt).Round(time.Millisecond))
	})
	run.Error.WhenSome(func(e domain.RunError) {
		fmt.Fprintf(out, "  failed in %s: %s: %s\n", run.FailedIn.UnwrapOr(""), e.Kind, e.Message)
	})
	return nil
}
