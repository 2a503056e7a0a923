package domain

import "time"

// EmailMessage is a single mailbox message fetched for a report run.
type EmailMessage struct {
	ID         string
	Sender     string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// SendRequest asks the mail sender to render a named template and deliver it.
type SendRequest struct {
	To        string
	Subject   string
	Template  string
	Variables map[string]any
}

// OutgoingEmail is a rendered message ready for the SMTP transport.
type OutgoingEmail struct {
	To       string
	Subject  string
	HTMLBody string
}

// SummaryResult is the condensed view of a message batch.
type SummaryResult struct {
	SourceCount int
	SummaryText string
}

// Window bounds a mailbox fetch.
type Window struct {
	Since       time.Duration
	MaxMessages int
}

// DeliveryKind separates report mail from ad-hoc API mail in the audit log.
type DeliveryKind string

const (
	DeliveryReport DeliveryKind = "report"
	DeliveryAdhoc  DeliveryKind = "adhoc"
)

// Delivery is one outbound send attempt recorded by the audit log.
type Delivery struct {
	Kind      DeliveryKind
	Recipient string
	Subject   string
	SentAt    time.Time
	OK        bool
	ErrorKind ErrorKind
}
