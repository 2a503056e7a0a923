package ports

import (
	"context"
	"time"

	"EmailManager/internal/domain"
)

// MailboxReader pulls recent messages from the configured mail provider.
type MailboxReader interface {
	FetchRecent(ctx context.Context, window domain.Window) ([]domain.EmailMessage, error)
}

// Summarizer condenses a message batch through a hosted language model.
type Summarizer interface {
	Summarize(ctx context.Context, messages []domain.EmailMessage) (domain.SummaryResult, error)
}

// MailSender delivers one rendered email.
type MailSender interface {
	Deliver(ctx context.Context, email domain.OutgoingEmail) error
}

// Renderer turns a named template and its variables into HTML.
type Renderer interface {
	Render(name string, vars map[string]any) (string, error)
}

// DeliveryLog records outbound sends for auditing.
type DeliveryLog interface {
	Record(ctx context.Context, delivery domain.Delivery) error
	Count(ctx context.Context) (int, error)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
	NextRunAt() (time.Time, bool)
}
