package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"EmailManager/internal/config"
	"EmailManager/internal/domain"
	"EmailManager/internal/logging"
	"EmailManager/internal/mailbox"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()

	dir := t.TempDir()
	var cfg config.Config
	cfg.Server = config.ServerConfig{Host: "127.0.0.1", Port: freePort(t)}
	cfg.SMTP = config.SMTPConfig{Host: "127.0.0.1", Port: 1, Username: "me@example.org", TLS: "none",
		Timeout: config.Duration(time.Second)}
	cfg.Mailbox = config.MailboxConfig{
		Provider: "gmail",
		Since:    config.Duration(24 * time.Hour),
		Timeout:  config.Duration(time.Second),
		Gmail: config.GmailConfig{
			CredentialsPath: filepath.Join(dir, "credentials.json"),
			TokenPath:       filepath.Join(dir, "token.json"),
		},
	}
	cfg.LLM = config.LLMConfig{Endpoint: "http://127.0.0.1:1/", Model: "test", Timeout: config.Duration(time.Second)}
	cfg.Report = config.ReportConfig{Recipient: "owner@example.org"}
	cfg.Scheduler = config.SchedulerConfig{Interval: config.Duration(time.Hour)}
	cfg.Audit = config.AuditConfig{DSN: filepath.Join(dir, "audit.db")}
	return cfg
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestRunOnceAbortsWithoutGmailCredentials(t *testing.T) {
	t.Parallel()

	application, err := New(testConfig(t), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	run, err := application.RunOnce(context.Background())
	require.Error(t, err)
	require.Equal(t, domain.KindAuthentication, domain.KindOf(err))
	require.Equal(t, domain.StateAborted, run.State)
	require.Equal(t, domain.StateFetching, run.FailedIn.UnwrapOr(domain.StateIdle))
	require.Equal(t, domain.TriggerCLI, run.Trigger)
}

func TestUnknownProviderIsValidationError(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Mailbox.Provider = "pop3"
	require.Error(t, cfg.Validate())

	_, err := New(cfg, logging.Discard())
	require.Equal(t, domain.KindValidation, domain.KindOf(err))
	require.ErrorIs(t, err, mailbox.ErrUnknownProvider)
}

func TestSendEmailRecordsFailedDelivery(t *testing.T) {
	t.Parallel()

	application, err := New(testConfig(t), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	err = application.SendEmail(context.Background(), "friend@example.org", "Hi", "Hello")
	require.Equal(t, domain.KindNetwork, domain.KindOf(err))

	n, err := application.audit.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestServeAnswersHealthAndStops(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	application, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Serve(ctx) }()

	url := "http://" + net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)) + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	require.True(t, application.driver.Running())

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not return")
	}
	require.False(t, application.driver.Running())
}
