package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"EmailManager/internal/domain"
	"EmailManager/internal/logging"
	"EmailManager/internal/templates"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
}

func (c *callLog) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type fakeReader struct {
	log      *callLog
	messages []domain.EmailMessage
	err      error
	entered  chan struct{}
	release  chan struct{}
	once     sync.Once
}

func (f *fakeReader) FetchRecent(ctx context.Context, _ domain.Window) ([]domain.EmailMessage, error) {
	f.log.add("fetch")
	if f.entered != nil {
		f.once.Do(func() { close(f.entered) })
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.messages, f.err
}

type fakeSummarizer struct {
	log  *callLog
	text string
	err  error
}

func (f *fakeSummarizer) Summarize(_ context.Context, messages []domain.EmailMessage) (domain.SummaryResult, error) {
	f.log.add("summarize")
	if f.err != nil {
		return domain.SummaryResult{}, f.err
	}
	return domain.SummaryResult{SourceCount: len(messages), SummaryText: f.text}, nil
}

type fakeSender struct {
	log  *callLog
	err  error
	mu   sync.Mutex
	sent []domain.OutgoingEmail
}

func (f *fakeSender) Deliver(_ context.Context, email domain.OutgoingEmail) error {
	f.log.add("send")
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.sent = append(f.sent, email)
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) emails() []domain.OutgoingEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.OutgoingEmail(nil), f.sent...)
}

type fakeAudit struct {
	mu   sync.Mutex
	rows []domain.Delivery
	err  error
}

func (f *fakeAudit) Record(_ context.Context, d domain.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, d)
	return nil
}

func (f *fakeAudit) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows), nil
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// entries decodes the JSON log lines whose msg equals msg.
func (b *lockedBuffer) entries(t *testing.T, msg string) []map[string]any {
	t.Helper()
	b.mu.Lock()
	raw := b.buf.String()
	b.mu.Unlock()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["msg"] == msg {
			out = append(out, entry)
		}
	}
	return out
}

type harness struct {
	logs       *lockedBuffer
	log        *callLog
	reader     *fakeReader
	summarizer *fakeSummarizer
	sender     *fakeSender
	audit      *fakeAudit
	runner     *Runner
}

func newHarness(t *testing.T, messages []domain.EmailMessage) *harness {
	t.Helper()

	set, err := templates.New()
	require.NoError(t, err)

	log := &callLog{}
	h := &harness{
		logs:       &lockedBuffer{},
		log:        log,
		reader:     &fakeReader{log: log, messages: messages},
		summarizer: &fakeSummarizer{log: log, text: "- **Alice**: lunch on Friday\n\nAction items: None"},
		sender:     &fakeSender{log: log},
		audit:      &fakeAudit{},
	}

	mailer := NewMailer(set, h.sender, h.audit, logging.Discard())
	pipeline := NewPipeline(PipelineDeps{
		Reader:     h.reader,
		Summarizer: h.summarizer,
		Renderer:   set,
		Mailer:     mailer,
		Recipient:  "owner@example.org",
		Window:     domain.Window{Since: 24 * time.Hour, MaxMessages: 100},
		Logger:     logging.NewWithWriter(h.logs, "debug", "json"),
	})
	h.runner = NewRunner(pipeline, logging.Discard())
	return h
}

func sampleMessages() []domain.EmailMessage {
	received := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	return []domain.EmailMessage{
		{ID: "1", Sender: "alice@example.org", Subject: "Lunch", Body: "Lunch on Friday?", ReceivedAt: received},
		{ID: "2", Sender: "bob@example.org", Subject: "Invoice", Body: "Invoice attached", ReceivedAt: received.Add(time.Hour)},
		{ID: "3", Sender: "news@example.org", Subject: "Weekly digest", Body: "Top stories", ReceivedAt: received.Add(2 * time.Hour)},
	}
}
