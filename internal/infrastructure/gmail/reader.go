package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"EmailManager/internal/domain"
	"EmailManager/internal/infrastructure/parser"
	"EmailManager/internal/ports"
)

const (
	user           = "me"
	defaultTimeout = 60 * time.Second
	defaultMax     = 100
	noSubject      = "No Subject"
	unknownSender  = "Unknown Sender"
)

// Reader fetches recent messages through the Gmail REST API.
type Reader struct {
	service func(ctx context.Context) (*gmailapi.Service, error)
	query   string
	timeout time.Duration
	logger  *slog.Logger
}

var _ ports.MailboxReader = (*Reader)(nil)

// Options tune a Reader.
type Options struct {
	// Query is appended to the time filter, e.g. "in:inbox -in:draft".
	Query   string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewReader authenticates with the cached token at tokenPath on every fetch.
// A missing token fails fast with AuthenticationError; run the auth command first.
func NewReader(oauthCfg *oauth2.Config, tokenPath string, opts Options) *Reader {
	r := newReader(opts)
	r.service = func(ctx context.Context) (*gmailapi.Service, error) {
		tok, err := TokenFromFile(tokenPath)
		if err != nil {
			return nil, domain.NewError(domain.KindAuthentication, "load gmail token",
				fmt.Errorf("%w (run the auth command to create %s)", err, tokenPath))
		}
		if !tok.Valid() && tok.RefreshToken == "" {
			return nil, domain.Errorf(domain.KindAuthentication, "load gmail token",
				"token in %s expired and has no refresh token", tokenPath)
		}

		// Refreshes share the fetch deadline.
		src := &persistingSource{
			base: oauthCfg.TokenSource(ctx, tok),
			path: tokenPath,
			last: tok.AccessToken,
			onErr: func(err error) {
				r.logger.Warn("cannot persist refreshed token", "error", err)
			},
		}
		client := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src))
		svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(client))
		if err != nil {
			return nil, domain.NewError(domain.KindNetwork, "create gmail service", err)
		}
		return svc, nil
	}
	return r
}

// NewServiceReader wraps an already-built service.
func NewServiceReader(svc *gmailapi.Service, opts Options) *Reader {
	r := newReader(opts)
	r.service = func(context.Context) (*gmailapi.Service, error) {
		return svc, nil
	}
	return r
}

func newReader(opts Options) *Reader {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Reader{
		query:   strings.TrimSpace(opts.Query),
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
}

// FetchRecent lists messages newer than the window and fetches each one.
// Messages that fail individually are logged and skipped.
func (r *Reader) FetchRecent(ctx context.Context, window domain.Window) ([]domain.EmailMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	svc, err := r.service(ctx)
	if err != nil {
		return nil, err
	}

	maxResults := window.MaxMessages
	if maxResults <= 0 {
		maxResults = defaultMax
	}
	query := r.buildQuery(time.Now(), window.Since)
	r.logger.Debug("list messages", "query", query, "max", maxResults)

	list, err := svc.Users.Messages.List(user).Q(query).MaxResults(int64(maxResults)).Context(ctx).Do()
	if err != nil {
		return nil, classify("list gmail messages", err)
	}

	messages := make([]domain.EmailMessage, 0, len(list.Messages))
	for _, ref := range list.Messages {
		full, err := svc.Users.Messages.Get(user, ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			classified := classify("get gmail message", err)
			if ctx.Err() != nil || domain.IsKind(classified, domain.KindAuthentication) ||
				domain.IsKind(classified, domain.KindRateLimit) {
				return nil, classified
			}
			r.logger.Warn("skip message", "id", ref.Id, "error", err)
			continue
		}
		messages = append(messages, toMessage(full))
	}

	r.logger.Info("fetched messages", "listed", len(list.Messages), "kept", len(messages))
	return messages, nil
}

func (r *Reader) buildQuery(now time.Time, since time.Duration) string {
	if since <= 0 {
		since = 24 * time.Hour
	}
	query := fmt.Sprintf("after:%d", now.Add(-since).Unix())
	if r.query != "" {
		query += " " + r.query
	}
	return query
}

func toMessage(msg *gmailapi.Message) domain.EmailMessage {
	out := domain.EmailMessage{
		ID:         msg.Id,
		Subject:    noSubject,
		Sender:     unknownSender,
		ReceivedAt: time.UnixMilli(msg.InternalDate).UTC(),
	}

	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			switch strings.ToLower(header.Name) {
			case "subject":
				if v := strings.TrimSpace(header.Value); v != "" {
					out.Subject = v
				}
			case "from":
				if v := strings.TrimSpace(header.Value); v != "" {
					out.Sender = v
				}
			}
		}
		out.Body = extractBody(msg.Payload)
	}

	if strings.TrimSpace(out.Body) == "" {
		out.Body = msg.Snippet
	}
	return out
}

// extractBody prefers text/plain, then converted text/html.
func extractBody(part *gmailapi.MessagePart) string {
	if text := findPart(part, "text/plain"); text != "" {
		return parser.Plain(text)
	}
	if html := findPart(part, "text/html"); html != "" {
		return parser.Markdown(html)
	}
	return ""
}

func findPart(part *gmailapi.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if strings.EqualFold(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		if decoded, err := decodeData(part.Body.Data); err == nil {
			return decoded
		}
	}
	for _, child := range part.Parts {
		if found := findPart(child, mimeType); found != "" {
			return found
		}
	}
	return ""
}

func decodeData(data string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return "", fmt.Errorf("decode body: %w", err)
		}
	}
	return string(decoded), nil
}

func classify(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.NewError(domain.KindAuthentication, op, err)
		case http.StatusTooManyRequests:
			return domain.NewError(domain.KindRateLimit, op, err)
		}
		return domain.NewError(domain.KindNetwork, op, err)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return domain.NewError(domain.KindAuthentication, op, err)
	}
	return domain.NewError(domain.KindNetwork, op, err)
}
