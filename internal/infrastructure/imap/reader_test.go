package imap

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/require"

	"EmailManager/internal/domain"
	"EmailManager/internal/logging"
)

const multipartMessage = "From: Alice <alice@example.org>\r\n" +
	"To: me@example.org\r\n" +
	"Subject: Lunch\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=BOUNDARY\r\n" +
	"\r\n" +
	"--BOUNDARY\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Lunch   at noon?\r\n" +
	"--BOUNDARY\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Lunch at <b>noon</b>?</p>\r\n" +
	"--BOUNDARY--\r\n"

const htmlOnlyMessage = "From: news@example.org\r\n" +
	"Subject: Weekly\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<h1>Weekly</h1><p>See <a href=\"https://example.org\">site</a></p>\r\n"

func TestBodyTextPrefersPlain(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Lunch at noon?", bodyText([]byte(multipartMessage)))
}

func TestBodyTextConvertsHTML(t *testing.T) {
	t.Parallel()

	body := bodyText([]byte(htmlOnlyMessage))
	require.Contains(t, body, "# Weekly")
	require.Contains(t, body, "[site](https://example.org)")
}

func TestBodyTextConvertsMarkupInPlainPart(t *testing.T) {
	t.Parallel()

	raw := "From: shop@example.org\r\n" +
		"Subject: Order\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"<div>Your order <b>shipped</b></div><p>Track it <a href=\"https://example.org/t\">here</a></p>\r\n"

	body := bodyText([]byte(raw))
	require.Contains(t, body, "**shipped**")
	require.Contains(t, body, "[here](https://example.org/t)")
	require.NotContains(t, body, "<div>")
}

func TestToMessage(t *testing.T) {
	t.Parallel()

	received := time.Date(2025, time.June, 2, 10, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	env := &imap.Envelope{
		Subject:   "Lunch",
		MessageID: "abc@example.org",
		From:      []imap.Address{{Name: "Alice", Mailbox: "alice", Host: "example.org"}},
	}

	msg := toMessage(7, env, received, []byte(multipartMessage))

	require.Equal(t, "abc@example.org", msg.ID)
	require.Equal(t, "Lunch", msg.Subject)
	require.Equal(t, "Alice <alice@example.org>", msg.Sender)
	require.Equal(t, "Lunch at noon?", msg.Body)
	require.Equal(t, time.UTC, msg.ReceivedAt.Location())
	require.True(t, received.Equal(msg.ReceivedAt))
}

func TestToMessageDefaults(t *testing.T) {
	t.Parallel()

	msg := toMessage(9, nil, time.Time{}, nil)

	require.Equal(t, "9", msg.ID)
	require.Equal(t, "No Subject", msg.Subject)
	require.Equal(t, "Unknown Sender", msg.Sender)
}

func TestDialFailureIsNetworkError(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	reader := NewReader(Config{
		Host:    "127.0.0.1",
		Port:    addr.Port,
		TLS:     TLSNone,
		Timeout: 2 * time.Second,
	}, logging.Discard())

	_, err = reader.FetchRecent(context.Background(), domain.Window{})
	require.Error(t, err)
	require.Equal(t, domain.KindNetwork, domain.KindOf(err))
	require.True(t, strings.Contains(err.Error(), strconv.Itoa(addr.Port)))
}
