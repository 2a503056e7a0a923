package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"EmailManager/internal/domain"
	"EmailManager/internal/ports"
)

const defaultTimeout = 60 * time.Second

// Config defines how to contact an OpenAI-compatible chat completions API.
type Config struct {
	Endpoint            string
	Model               string
	APIKey              string
	SystemPrompt        string
	Temperature         float64
	MaxCompletionTokens int
	Limits              PromptLimits
	Timeout             time.Duration
}

// Summarizer implements ports.Summarizer with one chat completion per batch.
type Summarizer struct {
	client       openai.Client
	model        string
	systemPrompt string
	temperature  float64
	maxTokens    int
	limits       PromptLimits
	timeout      time.Duration
	logger       *slog.Logger
}

var _ ports.Summarizer = (*Summarizer)(nil)

// NewSummarizer builds a client from configuration. SDK retries are disabled.
func NewSummarizer(cfg Config, logger *slog.Logger) *Summarizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		opts = append(opts, option.WithBaseURL(endpoint))
	}

	return &Summarizer{
		client:       openai.NewClient(opts...),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxCompletionTokens,
		limits:       cfg.Limits.withDefaults(),
		timeout:      cfg.Timeout,
		logger:       logger,
	}
}

// Summarize sends the batch in a single request and returns the model's text.
func (s *Summarizer) Summarize(ctx context.Context, messages []domain.EmailMessage) (domain.SummaryResult, error) {
	if len(messages) == 0 {
		return domain.SummaryResult{}, domain.Errorf(domain.KindValidation, "summarize", "no messages to summarize")
	}
	if s.model == "" {
		return domain.SummaryResult{}, domain.Errorf(domain.KindValidation, "summarize", "llm model is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := BuildPrompt(messages, s.limits)
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(safePrompt(s.systemPrompt)),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(s.temperature),
	}
	if s.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(s.maxTokens))
	}

	started := time.Now()
	completion, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return domain.SummaryResult{}, classify(ctx, err)
	}
	if len(completion.Choices) == 0 {
		return domain.SummaryResult{}, domain.Errorf(domain.KindNetwork, "summarize", "provider returned no choices")
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return domain.SummaryResult{}, domain.Errorf(domain.KindNetwork, "summarize", "provider returned an empty summary")
	}

	s.logger.Info("summary generated",
		"messages", len(messages),
		"prompt_chars", len(prompt),
		"completion_tokens", completion.Usage.CompletionTokens,
		"elapsed", time.Since(started).Round(time.Millisecond))

	return domain.SummaryResult{SourceCount: len(messages), SummaryText: text}, nil
}

func classify(ctx context.Context, err error) error {
	const op = "chat completion"

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return domain.NewError(domain.KindRateLimit, op, err)
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return domain.NewError(domain.KindAuthentication, op, err)
		case apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusRequestEntityTooLarge:
			return domain.NewError(domain.KindValidation, op, err)
		}
		return domain.NewError(domain.KindNetwork, op, err)
	}

	if ctx.Err() != nil {
		return domain.NewError(domain.KindNetwork, op, fmt.Errorf("%w: %v", ctx.Err(), err))
	}
	return domain.NewError(domain.KindNetwork, op, err)
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are a helpful personal assistant that summarizes emails."
	}
	return prompt
}
