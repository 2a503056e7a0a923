package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewForwardsToSlog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	std := New(base, "http", slog.LevelWarn)
	std.Print("tls handshake error")

	out := buf.String()
	require.Contains(t, out, "level=WARN")
	require.Contains(t, out, "component=http")
	require.Contains(t, out, "tls handshake error")
}
