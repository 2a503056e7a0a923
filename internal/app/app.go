// Package app wires configuration to adapters, use cases and the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"EmailManager/internal/api"
	"EmailManager/internal/config"
	"EmailManager/internal/domain"
	"EmailManager/internal/infrastructure/llm"
	"EmailManager/internal/infrastructure/scheduler"
	"EmailManager/internal/infrastructure/smtp"
	"EmailManager/internal/infrastructure/storage"
	"EmailManager/internal/logging"
	"EmailManager/internal/mailbox"
	"EmailManager/internal/ports"
	"EmailManager/internal/templates"
	"EmailManager/internal/usecase"
)

// Version is reported by the root endpoint.
var Version = "1.0.0"

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	mailer    *usecase.Mailer
	runner    *usecase.Runner
	driver    *scheduler.IntervalScheduler
	scheduler *usecase.Scheduler
	audit     *storage.AuditLog
	server    *api.Server
}

// New builds every component from cfg. An unknown mailbox provider fails
// construction; other reader errors, such as missing Gmail credentials, only
// surface when a report run fetches.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	set, err := templates.New()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	a := &Application{cfg: cfg, logger: baseLogger}

	var audit ports.DeliveryLog
	if cfg.Audit.DSN != "" {
		a.audit, err = storage.OpenAuditLog(cfg.Audit.DSN, baseLogger.With("component", "audit"))
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		audit = a.audit
	}

	sender := smtp.NewSender(smtp.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.Sender(),
		TLS:      cfg.SMTP.TLS,
		Timeout:  cfg.SMTP.Timeout.Std(),
	}, baseLogger.With("component", "smtp"))
	a.mailer = usecase.NewMailer(set, sender, audit, baseLogger.With("component", "mailer"))

	reader, err := mailbox.Default().Build(cfg.Mailbox, baseLogger.With("component", "mailbox"))
	if errors.Is(err, mailbox.ErrUnknownProvider) {
		_ = a.Close()
		return nil, domain.NewError(domain.KindValidation, "build mailbox reader", err)
	}
	if err != nil {
		baseLogger.Warn("mailbox reader unavailable, report runs will fail until fixed", "error", err)
		reader = unavailableReader{err: err}
	}

	summarizer := llm.NewSummarizer(llm.Config{
		Endpoint:            cfg.LLM.Endpoint,
		Model:               cfg.LLM.Model,
		APIKey:              cfg.LLM.APIKey,
		SystemPrompt:        cfg.LLM.SystemPrompt,
		Temperature:         cfg.LLM.Temperature,
		MaxCompletionTokens: cfg.LLM.MaxCompletionTokens,
		Limits: llm.PromptLimits{
			MaxBodyChars:   cfg.LLM.MaxBodyChars,
			MaxPromptChars: cfg.LLM.MaxPromptChars,
		},
		Timeout: cfg.LLM.Timeout.Std(),
	}, baseLogger.With("component", "summarizer"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Reader:     reader,
		Summarizer: summarizer,
		Renderer:   set,
		Mailer:     a.mailer,
		Recipient:  cfg.Report.Recipient,
		Subject:    cfg.Report.Subject,
		Window: domain.Window{
			Since:       cfg.Mailbox.Since.Std(),
			MaxMessages: cfg.Mailbox.MaxMessages,
		},
		Logger: baseLogger.With("component", "pipeline"),
	})
	a.runner = usecase.NewRunner(pipeline, baseLogger.With("component", "runner"))

	deps := api.Deps{
		Sender:          a.mailer,
		Runner:          a.runner,
		EmailConfigured: cfg.SMTP.Username != "" && cfg.SMTP.Password != "",
		LLMAvailable:    cfg.LLM.APIKey != "",
		Version:         Version,
	}
	if a.audit != nil {
		deps.Deliveries = a.audit
	}
	if !cfg.Scheduler.Disabled {
		a.driver = scheduler.NewIntervalScheduler(scheduler.Options{
			Interval:     cfg.Scheduler.Interval.Std(),
			RunOnStart:   cfg.Scheduler.RunOnStart,
			StartupDelay: cfg.Scheduler.StartupDelay.Std(),
			Logger:       baseLogger.With("component", "scheduler"),
		})
		a.scheduler = usecase.NewScheduler(a.driver, a.runner, baseLogger.With("component", "scheduler"))
		deps.Schedule = a.driver
	}

	a.server = api.NewServer(cfg.Server.Addr(), deps, baseLogger.With("component", "api"))
	return a, nil
}

// Serve starts the scheduler and the HTTP server and blocks until ctx is
// cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() {
			if err := a.scheduler.Stop(context.WithoutCancel(ctx)); err != nil {
				a.logger.Warn("stop scheduler", "error", err)
			}
		}()
	} else {
		a.logger.Info("scheduler disabled")
	}

	return a.server.ListenAndServe(ctx)
}

// RunOnce executes a single report run synchronously.
func (a *Application) RunOnce(ctx context.Context) (domain.ReportRun, error) {
	return a.runner.Run(ctx, domain.TriggerCLI)
}

// SendEmail sends one ad-hoc email with the generic template.
func (a *Application) SendEmail(ctx context.Context, to, subject, body string) error {
	return a.mailer.Send(ctx, domain.SendRequest{
		To:       to,
		Subject:  subject,
		Template: templates.Email,
		Variables: map[string]any{
			"subject": subject,
			"body":    body,
		},
	})
}

// Close releases the audit database.
func (a *Application) Close() error {
	if a.audit == nil {
		return nil
	}
	return a.audit.Close()
}

type unavailableReader struct {
	err error
}

func (r unavailableReader) FetchRecent(context.Context, domain.Window) ([]domain.EmailMessage, error) {
	if domain.KindOf(r.err) != domain.KindInternal {
		return nil, r.err
	}
	return nil, domain.NewError(domain.KindValidation, "mailbox reader", r.err)
}
