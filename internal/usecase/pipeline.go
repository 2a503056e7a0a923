package usecase

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"EmailManager/internal/domain"
	"EmailManager/internal/ports"
	"EmailManager/internal/templates"
)

// DefaultReportSubject is used when no subject is configured.
const DefaultReportSubject = "Daily Email Summary Report"

// PipelineDeps wires the driven adapters into the report pipeline.
type PipelineDeps struct {
	Reader     ports.MailboxReader
	Summarizer ports.Summarizer
	Renderer   ports.Renderer
	Mailer     *Mailer
	Recipient  string
	Subject    string
	Window     domain.Window
	Logger     *slog.Logger
}

// Pipeline fetches, summarizes, renders and sends one report.
type Pipeline struct {
	reader     ports.MailboxReader
	summarizer ports.Summarizer
	renderer   ports.Renderer
	mailer     *Mailer
	recipient  string
	subject    string
	window     domain.Window
	markdown   goldmark.Markdown
	logger     *slog.Logger
	now        func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Subject == "" {
		deps.Subject = DefaultReportSubject
	}
	return &Pipeline{
		reader:     deps.Reader,
		summarizer: deps.Summarizer,
		renderer:   deps.Renderer,
		mailer:     deps.Mailer,
		recipient:  deps.Recipient,
		subject:    deps.Subject,
		window:     deps.Window,
		markdown:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// RunUpdater applies a mutation to the tracked run under its owner's lock.
type RunUpdater func(mutate func(run *domain.ReportRun))

// Execute drives one run through the state machine. Any failure aborts the
// run in the state that failed; nothing is retried.
func (p *Pipeline) Execute(ctx context.Context, update RunUpdater) error {
	enter := func(state domain.RunState) {
		update(func(run *domain.ReportRun) { run.State = state })
	}

	enter(domain.StateFetching)
	messages, err := p.reader.FetchRecent(ctx, p.window)
	if err != nil {
		return p.abort(update, domain.StateFetching, err)
	}
	update(func(run *domain.ReportRun) { run.FetchedCount = len(messages) })

	var summary domain.SummaryResult
	if len(messages) > 0 {
		enter(domain.StateSummarizing)
		summary, err = p.summarizer.Summarize(ctx, messages)
		if err != nil {
			return p.abort(update, domain.StateSummarizing, err)
		}
		update(func(run *domain.ReportRun) { run.Summarized = true })
	}

	enter(domain.StateRendering)
	html, err := p.render(messages, summary)
	if err != nil {
		return p.abort(update, domain.StateRendering, err)
	}

	enter(domain.StateSending)
	err = p.mailer.Deliver(ctx, domain.DeliveryReport, domain.OutgoingEmail{
		To:       p.recipient,
		Subject:  p.subject,
		HTMLBody: html,
	})
	if err != nil {
		return p.abort(update, domain.StateSending, err)
	}

	finished := p.now()
	update(func(run *domain.ReportRun) {
		run.Sent = true
		run.State = domain.StateDone
		run.FinishedAt = fn.Some(finished)
	})
	p.logger.Info("report sent", "recipient", p.recipient, "messages", len(messages))
	return nil
}

func (p *Pipeline) abort(update RunUpdater, state domain.RunState, err error) error {
	kind := domain.KindOf(err)
	finished := p.now()
	update(func(run *domain.ReportRun) {
		run.State = domain.StateAborted
		run.FailedIn = fn.Some(state)
		run.Error = fn.Some(domain.RunError{Kind: kind, Message: err.Error()})
		run.FinishedAt = fn.Some(finished)
	})
	p.logger.Error("report run aborted", "state", state, "kind", kind, "error", err)
	return fmt.Errorf("report run aborted in %s: %w", state, err)
}

func (p *Pipeline) render(messages []domain.EmailMessage, summary domain.SummaryResult) (string, error) {
	now := p.now()

	var summaryHTML bytes.Buffer
	if summary.SummaryText != "" {
		if err := p.markdown.Convert([]byte(summary.SummaryText), &summaryHTML); err != nil {
			return "", domain.NewError(domain.KindTemplate, "convert summary markdown", err)
		}
	}

	return p.renderer.Render(templates.Report, map[string]any{
		"date":      now.Format("January 2, 2006"),
		"timestamp": now.Format("2006-01-02 15:04:05 MST"),
		// Goldmark drops raw HTML from the model output, so the result is safe to embed.
		"summary_html": template.HTML(summaryHTML.String()),
		"source_count": len(messages),
		"messages":     messages,
		"no_emails":    len(messages) == 0,
	})
}
