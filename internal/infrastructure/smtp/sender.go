// Package smtp delivers rendered emails through an SMTP relay.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	netmail "net/mail"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"

	"EmailManager/internal/domain"
	"EmailManager/internal/ports"
)

const defaultTimeout = 30 * time.Second

// TLS modes.
const (
	TLSImplicit = "implicit"
	TLSStart    = "starttls"
	TLSNone     = "none"
)

// Config describes the outbound relay.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      string
	Timeout  time.Duration
}

// Sender opens one SMTP session per message.
type Sender struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.MailSender = (*Sender)(nil)

func NewSender(cfg Config, logger *slog.Logger) *Sender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.TLS == "" {
		cfg.TLS = TLSStart
		if cfg.Port == 465 {
			cfg.TLS = TLSImplicit
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{cfg: cfg, logger: logger, now: time.Now}
}

// Deliver sends one message. Failures are classified, never retried.
func (s *Sender) Deliver(ctx context.Context, email domain.OutgoingEmail) error {
	to, err := netmail.ParseAddress(email.To)
	if err != nil {
		return domain.NewError(domain.KindValidation, "parse recipient", err)
	}
	from, err := netmail.ParseAddress(s.cfg.From)
	if err != nil {
		return domain.NewError(domain.KindValidation, "parse sender", err)
	}

	msg, err := buildMessage(from, to, email, s.now())
	if err != nil {
		return domain.NewError(domain.KindInternal, "build message", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	client, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if s.cfg.Username != "" {
		auth := sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
		if err := client.Auth(auth); err != nil {
			return classify("smtp auth", err)
		}
	}

	if err := client.Mail(from.Address, nil); err != nil {
		return classify("smtp mail from", err)
	}
	if err := client.Rcpt(to.Address, nil); err != nil {
		return classify("smtp rcpt to", err)
	}
	w, err := client.Data()
	if err != nil {
		return classify("smtp data", err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return classify("smtp write body", err)
	}
	if err := w.Close(); err != nil {
		return classify("smtp data", err)
	}
	if err := client.Quit(); err != nil {
		s.logger.Warn("smtp quit failed", "error", err)
	}

	s.logger.Info("email delivered", "to", to.Address, "subject", email.Subject, "bytes", len(msg))
	return nil
}

func (s *Sender) connect(ctx context.Context) (*gosmtp.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, "dial "+addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	tlsCfg := &tls.Config{ServerName: s.cfg.Host}
	switch s.cfg.TLS {
	case TLSNone:
		return gosmtp.NewClient(conn), nil
	case TLSImplicit:
		return gosmtp.NewClient(tls.Client(conn, tlsCfg)), nil
	default:
		client, err := gosmtp.NewClientStartTLS(conn, tlsCfg)
		if err != nil {
			_ = conn.Close()
			return nil, classify("starttls "+addr, err)
		}
		return client, nil
	}
}

func classify(op string, err error) error {
	var smtpErr *gosmtp.SMTPError
	if errors.As(err, &smtpErr) {
		switch smtpErr.Code {
		case 530, 534, 535:
			return domain.NewError(domain.KindAuthentication, op, err)
		}
		return domain.NewError(domain.KindNetwork, op,
			fmt.Errorf("server replied %d: %s: %w", smtpErr.Code, smtpErr.Message, err))
	}
	return domain.NewError(domain.KindNetwork, op, err)
}
