package imap

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"EmailManager/internal/domain"
	"EmailManager/internal/infrastructure/parser"
	"EmailManager/internal/ports"
)

const (
	defaultTimeout = 60 * time.Second
	defaultMax     = 100
)

// TLS modes.
const (
	TLSImplicit = "implicit"
	TLSStart    = "starttls"
	TLSNone     = "none"
)

// Config describes one IMAP account.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Mailbox  string
	TLS      string
	Timeout  time.Duration
}

// Reader fetches recent messages over IMAP. Each fetch opens and closes its
// own connection.
type Reader struct {
	cfg    Config
	logger *slog.Logger
}

var _ ports.MailboxReader = (*Reader)(nil)

// NewReader builds a reader; empty fields take IMAP defaults.
func NewReader(cfg Config, logger *slog.Logger) *Reader {
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.TLS == "" {
		cfg.TLS = TLSImplicit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{cfg: cfg, logger: logger}
}

// FetchRecent searches the mailbox for messages received inside the window
// and returns the newest MaxMessages of them.
func (r *Reader) FetchRecent(ctx context.Context, window domain.Window) ([]domain.EmailMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	client, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = client.Logout().Wait()
		_ = client.Close()
	}()

	if _, err := client.Select(r.cfg.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, domain.NewError(domain.KindNetwork, "select "+r.cfg.Mailbox, err)
	}

	since := window.Since
	if since <= 0 {
		since = 24 * time.Hour
	}
	cutoff := time.Now().Add(-since)

	searchData, err := client.UIDSearch(&imap.SearchCriteria{Since: cutoff}, nil).Wait()
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, "search messages", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	limit := window.MaxMessages
	if limit <= 0 {
		limit = defaultMax
	}
	slices.Sort(uids)
	if len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	section := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope:     true,
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{section},
	})
	defer fetchCmd.Close()

	var messages []domain.EmailMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			r.logger.Warn("skip message", "error", err)
			continue
		}
		received := buf.InternalDate
		if received.IsZero() && buf.Envelope != nil {
			received = buf.Envelope.Date
		}
		// SINCE matches by day; drop anything older than the exact cutoff.
		if !received.IsZero() && received.Before(cutoff) {
			continue
		}
		messages = append(messages, toMessage(buf.UID, buf.Envelope, received, buf.FindBodySection(section)))
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, domain.NewError(domain.KindNetwork, "fetch messages", err)
	}

	r.logger.Info("fetched messages", "mailbox", r.cfg.Mailbox, "matched", len(uids), "kept", len(messages))
	return messages, nil
}

func (r *Reader) connect(ctx context.Context) (*imapclient.Client, error) {
	addr := net.JoinHostPort(r.cfg.Host, strconv.Itoa(r.cfg.Port))

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, "dial "+addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	tlsCfg := &tls.Config{ServerName: r.cfg.Host}
	var client *imapclient.Client
	switch r.cfg.TLS {
	case TLSNone:
		client = imapclient.New(conn, nil)
	case TLSStart:
		client, err = imapclient.NewStartTLS(conn, &imapclient.Options{TLSConfig: tlsCfg})
	default:
		client = imapclient.New(tls.Client(conn, tlsCfg), nil)
	}
	if err != nil {
		_ = conn.Close()
		return nil, domain.NewError(domain.KindNetwork, "starttls "+addr, err)
	}

	if err := client.Login(r.cfg.Username, r.cfg.Password).Wait(); err != nil {
		_ = client.Close()
		var imapErr *imap.Error
		if errors.As(err, &imapErr) {
			return nil, domain.NewError(domain.KindAuthentication, "login "+r.cfg.Username, err)
		}
		return nil, domain.NewError(domain.KindNetwork, "login "+r.cfg.Username, err)
	}
	return client, nil
}

func toMessage(uid imap.UID, env *imap.Envelope, received time.Time, raw []byte) domain.EmailMessage {
	out := domain.EmailMessage{
		ID:         fmt.Sprintf("%d", uid),
		Subject:    "No Subject",
		Sender:     "Unknown Sender",
		ReceivedAt: received.UTC(),
	}
	if env != nil {
		if strings.TrimSpace(env.Subject) != "" {
			out.Subject = env.Subject
		}
		if len(env.From) > 0 {
			out.Sender = formatAddress(env.From[0])
		}
		if env.MessageID != "" {
			out.ID = env.MessageID
		}
	}
	if raw != nil {
		out.Body = bodyText(raw)
	}
	return out
}

func formatAddress(addr imap.Address) string {
	if addr.Name != "" {
		return fmt.Sprintf("%s <%s>", addr.Name, addr.Addr())
	}
	return addr.Addr()
}

// bodyText walks the MIME tree, preferring text/plain over converted text/html.
func bodyText(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return parser.Collapse(string(raw))
	}
	defer mr.Close()

	var text, html string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}
		switch {
		case strings.HasPrefix(contentType, "text/plain") && text == "":
			text = string(body)
		case strings.HasPrefix(contentType, "text/html") && html == "":
			html = string(body)
		}
	}

	if strings.TrimSpace(text) != "" {
		return parser.Plain(text)
	}
	if html != "" {
		return parser.Markdown(html)
	}
	return ""
}
