package llm

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"EmailManager/internal/domain"
)

func TestBuildPromptTruncatesBodies(t *testing.T) {
	t.Parallel()

	msgs := []domain.EmailMessage{{
		Sender:  "a@example.org",
		Subject: "Long",
		Body:    strings.Repeat("word ", 1000),
	}}

	prompt := BuildPrompt(msgs, PromptLimits{MaxBodyChars: 50})

	require.Contains(t, prompt, "Subject: Long")
	require.Contains(t, prompt, ellipsis)
	require.NotContains(t, prompt, strings.Repeat("word ", 20))
}

func TestBuildPromptOmitsBodiesPastBudget(t *testing.T) {
	t.Parallel()

	msgs := make([]domain.EmailMessage, 0, 5)
	for i := 0; i < 5; i++ {
		msgs = append(msgs, domain.EmailMessage{
			Sender:  "s@example.org",
			Subject: fmt.Sprintf("Subject %d", i),
			Body:    strings.Repeat("x", 400),
		})
	}

	prompt := BuildPrompt(msgs, PromptLimits{MaxBodyChars: 400, MaxPromptChars: len(instructions) + 1200})

	for i := 0; i < 5; i++ {
		require.Contains(t, prompt, fmt.Sprintf("Subject %d", i))
	}
	require.Contains(t, prompt, "omitted, prompt size limit reached")
}

func TestBuildPromptProperties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "n")
		maxBody := rapid.IntRange(1, 300).Draw(t, "maxBody")

		msgs := make([]domain.EmailMessage, 0, n)
		for i := 0; i < n; i++ {
			msgs = append(msgs, domain.EmailMessage{
				Sender:  rapid.StringMatching(`[a-z]{1,10}@example\.org`).Draw(t, "sender"),
				Subject: fmt.Sprintf("S%03d", i),
				Body:    rapid.String().Draw(t, "body"),
			})
		}

		prompt := BuildPrompt(msgs, PromptLimits{MaxBodyChars: maxBody})

		for i := range msgs {
			if !strings.Contains(prompt, fmt.Sprintf("Subject: S%03d", i)) {
				t.Fatalf("message %d missing from prompt", i)
			}
		}
		if !utf8.ValidString(prompt) && allValid(msgs) {
			t.Fatalf("prompt is not valid utf-8")
		}
	})
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		limit := rapid.IntRange(1, 50).Draw(t, "limit")

		out := truncateRunes(s, limit)
		if utf8.RuneCountInString(out) > limit+utf8.RuneCountInString(ellipsis) {
			t.Fatalf("truncated %q to %q beyond limit %d", s, out, limit)
		}
		if utf8.RuneCountInString(s) <= limit && out != s {
			t.Fatalf("short input %q was changed to %q", s, out)
		}
	})
}

func allValid(msgs []domain.EmailMessage) bool {
	for _, m := range msgs {
		if !utf8.ValidString(m.Body) {
			return false
		}
	}
	return true
}
