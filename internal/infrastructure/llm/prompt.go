package llm

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"EmailManager/internal/domain"
	"EmailManager/internal/infrastructure/parser"
)

const (
	defaultMaxBodyChars   = 1500
	defaultMaxPromptChars = 48000
	ellipsis              = "…"
)

const instructions = `You will receive a batch of emails received during the last reporting period.
Write a concise digest in markdown:
- one bullet per email or thread, starting with the sender and subject in bold, then one or two sentences on its purpose;
- group obvious newsletters and notifications into a single bullet;
- finish with an "Action items" section listing anything that needs a reply or a decision, or "None".
Do not invent content that is not in the emails.`

// PromptLimits bound the text sent to the provider.
type PromptLimits struct {
	MaxBodyChars   int
	MaxPromptChars int
}

func (l PromptLimits) withDefaults() PromptLimits {
	if l.MaxBodyChars <= 0 {
		l.MaxBodyChars = defaultMaxBodyChars
	}
	if l.MaxPromptChars <= 0 {
		l.MaxPromptChars = defaultMaxPromptChars
	}
	return l
}

// BuildPrompt serializes messages for the model. Every body is collapsed and
// truncated to MaxBodyChars runes. Once the prompt would exceed MaxPromptChars,
// the remaining messages are listed by header only, so every message is
// always represented.
func BuildPrompt(messages []domain.EmailMessage, limits PromptLimits) string {
	limits = limits.withDefaults()

	var b strings.Builder
	b.WriteString(instructions)
	fmt.Fprintf(&b, "\n\nEmails (%d):\n", len(messages))

	for i, msg := range messages {
		header := formatHeader(i+1, msg)
		body := truncateRunes(parser.Collapse(msg.Body), limits.MaxBodyChars)

		entry := header + "Body:\n" + body + "\n\n"
		if utf8.RuneCountInString(b.String())+utf8.RuneCountInString(entry) > limits.MaxPromptChars {
			entry = header + "Body: (omitted, prompt size limit reached)\n\n"
		}
		b.WriteString(entry)
	}

	return b.String()
}

func formatHeader(n int, msg domain.EmailMessage) string {
	received := ""
	if !msg.ReceivedAt.IsZero() {
		received = msg.ReceivedAt.UTC().Format(time.RFC1123)
	}
	return fmt.Sprintf("--- Email %d ---\nFrom: %s\nSubject: %s\nReceived: %s\n",
		n, oneLine(msg.Sender), oneLine(msg.Subject), received)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit])) + ellipsis
}
