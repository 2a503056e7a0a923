package commands

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"EmailManager/internal/domain"
)

func TestPrintRunText(t *testing.T) {
	started := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	run := domain.ReportRun{
		ID:           "run-1",
		StartedAt:    started,
		FinishedAt:   fn.Some(started.Add(1500 * time.Millisecond)),
		State:        domain.StateAborted,
		FailedIn:     fn.Some(domain.StateSummarizing),
		FetchedCount: 3,
		Error:        fn.Some(domain.RunError{Kind: domain.KindRateLimit, Message: "too many requests"}),
	}

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	runOnceJSON = false
	require.NoError(t, printRun(cmd, run))
	require.Contains(t, out.String(), "run run-1: Aborted")
	require.Contains(t, out.String(), "fetched:    3")
	require.Contains(t, out.String(), "duration:   1.5s")
	require.Contains(t, out.String(), "failed in Summarizing: ProviderRateLimitError: too many requests")
}

func TestPrintRunJSON(t *testing.T) {
	run := domain.ReportRun{ID: "run-2", State: domain.StateDone, FetchedCount: 0, Sent: true}

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	runOnceJSON = true
	t.Cleanup(func() { runOnceJSON = false })
	require.NoError(t, printRun(cmd, run))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Equal(t, "run-2", decoded["id"])
	require.Equal(t, "Done", decoded["state"])
	require.Equal(t, true, decoded["sent"])
	require.Equal(t, "", decoded["failed_in"])
}

func TestRootRegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "run-once", "send", "auth"} {
		require.True(t, names[want], want)
	}
}
