package llms

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/httpclient"
	"github.com/benekli/minerva/pkg/observability"
	"github.com/benekli/minerva/pkg/registry"
)

// recordLLMCall forwards one completion's outcome to the global metrics
// sink when one is installed.
func recordLLMCall(ctx context.Context, model string, duration time.Duration, usage Usage, err error) {
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordLLMCall(ctx, model, duration, usage.InputTokens, usage.OutputTokens, err)
	}
}

// Provider is one completion back-end. Concrete providers wrap external
// HTTP APIs; they differ only by endpoint shape, authentication, and model
// name.
type Provider interface {
	// Complete performs one non-streaming completion and returns the
	// response text with token usage.
	Complete(ctx context.Context, messages []Message, opts *Options) (string, Usage, error)

	// Available probes the back-end. The manager caches the answer.
	Available(ctx context.Context) bool

	GetModelName() string

	Close() error
}

// Registry holds the configured providers in registration order.
type Registry struct {
	*registry.BaseRegistry[Provider]
	order []string
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Provider]()}
}

// RegisterProvider adds a provider under the given name. Registration order
// is preserved and defines the fallback order.
func (r *Registry) RegisterProvider(name string, provider Provider) error {
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if provider == nil {
		return fmt.Errorf("provider cannot be nil")
	}
	if err := r.Register(name, provider); err != nil {
		return err
	}
	r.order = append(r.order, name)
	return nil
}

// CreateFromConfig builds a provider from its config section and registers
// it.
func (r *Registry) CreateFromConfig(cfg *config.LLMProviderConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("provider config cannot be nil")
	}

	var provider Provider
	var err error

	switch cfg.Type {
	case config.ProviderOpenAI:
		provider, err = NewOpenAIProvider(cfg)
	case config.ProviderAnthropic:
		provider, err = NewAnthropicProvider(cfg)
	case config.ProviderGemini:
		provider, err = NewGeminiProvider(cfg)
	case config.ProviderOllama:
		provider, err = NewOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider type %q (supported: openai, anthropic, gemini, ollama)", cfg.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create provider %q: %w", cfg.Name, err)
	}

	if err := r.RegisterProvider(cfg.Name, provider); err != nil {
		return nil, err
	}
	return provider, nil
}

// Order returns provider names in registration order.
func (r *Registry) Order() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Close closes every registered provider.
func (r *Registry) Close() error {
	var firstErr error
	for _, p := range r.List() {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// createHTTPClient builds the retrying HTTP client for one provider,
// honoring its TLS overrides.
func createHTTPClient(cfg *config.LLMProviderConfig, parser httpclient.RateLimitHeaderParser) *httpclient.Client {
	opts := []httpclient.Option{
		httpclient.WithHTTPClient(&http.Client{
			Timeout: cfg.Timeout.Duration(),
		}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
		httpclient.WithBaseDelay(time.Second),
	}

	if parser != nil {
		opts = append(opts, httpclient.WithHeaderParser(parser))
	}

	if cfg.TLS != nil {
		opts = append(opts, httpclient.WithTLSConfig(&httpclient.TLSConfig{
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
			CACertificate:      cfg.TLS.CACertificate,
		}))
	}

	return httpclient.New(opts...)
}
