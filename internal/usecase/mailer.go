package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"EmailManager/internal/domain"
	"EmailManager/internal/ports"
)

// Mailer renders templates and hands the result to the SMTP transport.
type Mailer struct {
	renderer ports.Renderer
	sender   ports.MailSender
	audit    ports.DeliveryLog
	logger   *slog.Logger
	now      func() time.Time
}

// NewMailer wires a mailer. audit may be nil.
func NewMailer(renderer ports.Renderer, sender ports.MailSender, audit ports.DeliveryLog, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{
		renderer: renderer,
		sender:   sender,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// Send renders req.Template with req.Variables and delivers the result.
func (m *Mailer) Send(ctx context.Context, req domain.SendRequest) error {
	if strings.TrimSpace(req.To) == "" {
		return domain.Errorf(domain.KindValidation, "send", "recipient is required")
	}

	html, err := m.renderer.Render(req.Template, req.Variables)
	if err != nil {
		return err
	}

	return m.Deliver(ctx, domain.DeliveryAdhoc, domain.OutgoingEmail{
		To:       req.To,
		Subject:  req.Subject,
		HTMLBody: html,
	})
}

// Deliver sends an already rendered email and records the attempt.
func (m *Mailer) Deliver(ctx context.Context, kind domain.DeliveryKind, email domain.OutgoingEmail) error {
	err := m.sender.Deliver(ctx, email)
	m.record(ctx, kind, email, err)
	return err
}

func (m *Mailer) record(ctx context.Context, kind domain.DeliveryKind, email domain.OutgoingEmail, sendErr error) {
	if m.audit == nil {
		return
	}

	delivery := domain.Delivery{
		Kind:      kind,
		Recipient: email.To,
		Subject:   email.Subject,
		SentAt:    m.now(),
		OK:        sendErr == nil,
	}
	if sendErr != nil {
		delivery.ErrorKind = domain.KindOf(sendErr)
	}

	if err := m.audit.Record(context.WithoutCancel(ctx), delivery); err != nil {
		m.logger.Warn("cannot record delivery", "kind", kind, "error", err)
	}
}
