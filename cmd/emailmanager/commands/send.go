package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"EmailManager/internal/app"
)

var (
	sendTo       string
	sendSubject  string
	sendBody     string
	sendBodyFile string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one email using the generic template",
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendTo, "to", "", "Recipient address")
	sendCmd.Flags().StringVar(&sendSubject, "subject", "", "Subject line")
	sendCmd.Flags().StringVar(&sendBody, "body", "", "Message body")
	sendCmd.Flags().StringVar(&sendBodyFile, "body-file", "", "Read the body from a file")
	_ = sendCmd.MarkFlagRequired("to")
	_ = sendCmd.MarkFlagRequired("subject")
	sendCmd.MarkFlagsMutuallyExclusive("body", "body-file")
}

func runSend(cmd *cobra.Command, _ []string) error {
	body := sendBody
	if sendBodyFile != "" {
		raw, err := os.ReadFile(sendBodyFile)
		if err != nil {
			return fmt.Errorf("read body file: %w", err)
		}
		body = string(raw)
	}
	if body == "" {
		return errors.New("one of --body or --body-file is required")
	}

	cfg, logger := loadConfig()
	cfg.Scheduler.Disabled = true
	if err := cfg.Validate(); err != nil {
		return err
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.SendEmail(cmd.Context(), sendTo, sendSubject, body); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Email sent successfully to %s\n", sendTo)
	return nil
}
