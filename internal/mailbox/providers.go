package mailbox

import (
	"log/slog"

	"EmailManager/internal/config"
	"EmailManager/internal/infrastructure/gmail"
	"EmailManager/internal/infrastructure/imap"
	"EmailManager/internal/ports"
)

// Default returns a registry with the gmail and imap providers.
func Default() *Registry {
	r := NewRegistry()
	r.Register("gmail", newGmailReader)
	r.Register("imap", newIMAPReader)
	return r
}

func newGmailReader(cfg config.MailboxConfig, logger *slog.Logger) (ports.MailboxReader, error) {
	oauthCfg, err := gmail.LoadOAuthConfig(cfg.Gmail.CredentialsPath)
	if err != nil {
		return nil, err
	}
	return gmail.NewReader(oauthCfg, cfg.Gmail.TokenPath, gmail.Options{
		Query:   cfg.Gmail.Query,
		Timeout: cfg.Timeout.Std(),
		Logger:  logger,
	}), nil
}

func newIMAPReader(cfg config.MailboxConfig, logger *slog.Logger) (ports.MailboxReader, error) {
	return imap.NewReader(imap.Config{
		Host:     cfg.IMAP.Host,
		Port:     cfg.IMAP.Port,
		Username: cfg.IMAP.Username,
		Password: cfg.IMAP.Password,
		Mailbox:  cfg.IMAP.Mailbox,
		TLS:      cfg.IMAP.TLS,
		Timeout:  cfg.Timeout.Std(),
	}, logger), nil
}
