package commands

import (
	"github.com/spf13/cobra"

	"EmailManager/internal/infrastructure/gmail"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize Gmail access and store the OAuth token",
	Long: `auth runs the interactive OAuth consent flow using the client secret at
mailbox.gmail.credentialsPath and writes the token to mailbox.gmail.tokenPath.
The server never starts this flow itself.`,
	RunE: runAuth,
}

func runAuth(cmd *cobra.Command, _ []string) error {
	cfg, _ := loadConfig()

	oauthCfg, err := gmail.LoadOAuthConfig(cfg.Mailbox.Gmail.CredentialsPath)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	return gmail.Authorize(ctx, oauthCfg, cfg.Mailbox.Gmail.TokenPath, cmd.InOrStdin(), cmd.OutOrStdout())
}
