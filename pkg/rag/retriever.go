// Package rag retrieves document chunks for a query, reranks them, and
// synthesizes a grounded answer with source attributions.
package rag

import (
	"context"
	"fmt"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/databases"
	"github.com/benekli/minerva/pkg/embedders"
)

// Retriever embeds queries and runs similarity search through a cached
// vector store.
type Retriever struct {
	store      databases.Store
	embedder   embedders.Embedder
	collection string
	topK       int
}

// NewRetriever wraps the store in the retrieval cache and binds the active
// collection.
func NewRetriever(cfg *config.RAGConfig, store databases.Store, embedder embedders.Embedder) (*Retriever, error) {
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	return &Retriever{
		store:      databases.NewCachingStore(store, cfg.CacheSize, cfg.CacheTTL.Duration()),
		embedder:   embedder,
		collection: cfg.Collection,
		topK:       cfg.TopK,
	}, nil
}

// Retrieve returns the topK most similar chunks for the query.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]databases.SearchResult, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.store.Query(ctx, r.collection, vector, r.topK, nil)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	return results, nil
}

// Store exposes the cached store so ingestion shares the invalidation path.
func (r *Retriever) Store() databases.Store {
	return r.store
}

// Close releases the cached store.
func (r *Retriever) Close() error {
	return r.store.Close()
}
