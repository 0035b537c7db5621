// Package databases provides the vector store abstraction: an embedded
// chromem store for zero-config deployments plus Qdrant and Pinecone
// providers for external deployments, all behind one Store interface.
package databases

import (
	"context"
	"fmt"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/registry"
)

// Record is one chunk to store: pre-computed vector plus its text and
// metadata. Embedding happens upstream in pkg/embedders.
type Record struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]interface{}
}

// SearchResult is one ranked hit from a similarity query.
type SearchResult struct {
	ID       string                 `json:"id"`
	Score    float32                `json:"score"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Store is the narrow vector store contract: mutations and cosine
// similarity search. Mutations on a collection must reach any cache layer
// wrapped around the store.
type Store interface {
	AddChunks(ctx context.Context, collection string, records []Record) error

	Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]interface{}) ([]SearchResult, error)

	DeleteByFilter(ctx context.Context, collection string, filter map[string]interface{}) error

	DeleteCollection(ctx context.Context, collection string) error

	Close() error
}

// Registry holds named vector stores.
type Registry struct {
	*registry.BaseRegistry[Store]
}

// NewRegistry creates an empty store registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Store]()}
}

// CreateFromConfig builds a store from its config section and registers it
// under the given name.
func (r *Registry) CreateFromConfig(name string, cfg *config.DatabaseProviderConfig) (Store, error) {
	if name == "" {
		return nil, fmt.Errorf("database name cannot be empty")
	}
	if cfg == nil {
		return nil, fmt.Errorf("database config cannot be nil")
	}

	var store Store
	var err error

	switch cfg.Type {
	case "chromem":
		store, err = NewChromemStore(cfg)
	case "qdrant":
		store, err = NewQdrantStore(cfg)
	case "pinecone":
		store, err = NewPineconeStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported database type %q (supported: chromem, qdrant, pinecone)", cfg.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create database %q: %w", name, err)
	}

	if err := r.Register(name, store); err != nil {
		return nil, err
	}
	return store, nil
}

// GetStore returns the named store.
func (r *Registry) GetStore(name string) (Store, error) {
	store, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("database %q not found", name)
	}
	return store, nil
}

// Close closes every registered store.
func (r *Registry) Close() error {
	var firstErr error
	for _, s := range r.List() {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
