package gmail

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"

	"EmailManager/internal/domain"
)

// LoadOAuthConfig parses the client secret JSON downloaded from the Google console.
func LoadOAuthConfig(credentialsPath string) (*oauth2.Config, error) {
	raw, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, domain.NewError(domain.KindAuthentication, "read gmail credentials", err)
	}
	cfg, err := google.ConfigFromJSON(raw, gmailapi.GmailReadonlyScope)
	if err != nil {
		return nil, domain.NewError(domain.KindAuthentication, "parse gmail credentials", err)
	}
	return cfg, nil
}

// TokenFromFile reads a cached OAuth token.
func TokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", path, err)
	}
	return tok, nil
}

// SaveToken writes the token with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode token: %w", err)
	}
	return f.Close()
}

// Authorize runs the interactive consent flow: it prints the consent URL to
// out, reads the authorization code from in, and stores the token.
func Authorize(ctx context.Context, cfg *oauth2.Config, tokenPath string, in io.Reader, out io.Writer) error {
	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(out, "Open the following link in your browser, then paste the authorization code:\n%s\n> ", authURL)

	code, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("empty authorization code")
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return domain.NewError(domain.KindAuthentication, "exchange authorization code", err)
	}
	if err := SaveToken(tokenPath, tok); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved token to %s\n", tokenPath)
	return nil
}

// persistingSource writes refreshed tokens back to disk so the next process
// start does not need to refresh again.
type persistingSource struct {
	mu    sync.Mutex
	base  oauth2.TokenSource
	path  string
	last  string
	onErr func(error)
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		if sErr := SaveToken(p.path, tok); sErr != nil && p.onErr != nil {
			p.onErr(sErr)
		}
	}
	return tok, nil
}
