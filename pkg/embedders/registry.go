// Package embedders turns text into vectors for the retrieval pipeline.
package embedders

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/httpclient"
	"github.com/benekli/minerva/pkg/registry"
)

// Embedder computes embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds several texts, preserving input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	GetDimension() int

	GetModelName() string

	Close() error
}

// Registry holds named embedders.
type Registry struct {
	*registry.BaseRegistry[Embedder]
}

// NewRegistry creates an empty embedder registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Embedder]()}
}

// CreateFromConfig builds an embedder from its config section and registers
// it under the given name.
func (r *Registry) CreateFromConfig(name string, cfg *config.EmbedderProviderConfig) (Embedder, error) {
	if name == "" {
		return nil, fmt.Errorf("embedder name cannot be empty")
	}
	if cfg == nil {
		return nil, fmt.Errorf("embedder config cannot be nil")
	}

	var embedder Embedder
	var err error

	switch cfg.Type {
	case "openai":
		embedder, err = NewOpenAIEmbedder(cfg)
	case "ollama":
		embedder, err = NewOllamaEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedder type %q (supported: openai, ollama)", cfg.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create embedder %q: %w", name, err)
	}

	if err := r.Register(name, embedder); err != nil {
		return nil, err
	}
	return embedder, nil
}

// GetEmbedder returns the named embedder.
func (r *Registry) GetEmbedder(name string) (Embedder, error) {
	embedder, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("embedder %q not found", name)
	}
	return embedder, nil
}

// Close closes every registered embedder.
func (r *Registry) Close() error {
	var firstErr error
	for _, e := range r.List() {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func embedderHTTPClient(timeout time.Duration) *httpclient.Client {
	return httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
		httpclient.WithMaxRetries(3),
		httpclient.WithBaseDelay(time.Second),
	)
}
