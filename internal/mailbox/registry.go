// Package mailbox selects the mailbox reader implementation by provider name.
package mailbox

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"EmailManager/internal/config"
	"EmailManager/internal/ports"
)

// ErrUnknownProvider is returned by Build for names nothing registered.
var ErrUnknownProvider = errors.New("mailbox provider is not registered")

// Factory builds a reader for one provider from its configuration.
type Factory func(cfg config.MailboxConfig, logger *slog.Logger) (ports.MailboxReader, error)

// Registry keeps a mapping from provider names to reader factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds or replaces a provider.
func (r *Registry) Register(name string, factory Factory) {
	if r.factories == nil {
		r.factories = map[string]Factory{}
	}
	r.factories[strings.ToLower(name)] = factory
}

// Providers lists registered names in sorted order.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Build resolves cfg.Provider and constructs its reader.
func (r *Registry) Build(cfg config.MailboxConfig, logger *slog.Logger) (ports.MailboxReader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	factory, ok := r.factories[strings.ToLower(cfg.Provider)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)",
			ErrUnknownProvider, cfg.Provider, strings.Join(r.Providers(), ", "))
	}
	reader, err := factory(cfg, logger.With("provider", cfg.Provider))
	if err != nil {
		return nil, fmt.Errorf("build %s reader: %w", cfg.Provider, err)
	}
	return reader, nil
}
