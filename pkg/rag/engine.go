package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/databases"
	"github.com/benekli/minerva/pkg/embedders"
	"github.com/benekli/minerva/pkg/llms"
)

const synthesisPrompt = `Answer the question using only the numbered context passages below. Cite passages inline as [1], [2], etc. If the context does not contain the answer, say so plainly instead of guessing.

Context:
%s

Question: %s`

// Source is one chunk that grounded the answer.
type Source struct {
	ID    string                 `json:"id"`
	Text  string                 `json:"text"`
	Score float32                `json:"score"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

// Result is a synthesized answer with its supporting chunks.
type Result struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Engine runs retrieve, rerank, synthesize.
type Engine struct {
	retriever     *Retriever
	reranker      *Reranker
	manager       *llms.Manager
	rerankEnabled bool
	logger        *slog.Logger
}

// NewEngine assembles the pipeline from configuration.
func NewEngine(cfg *config.RAGConfig, store databases.Store, embedder embedders.Embedder, manager *llms.Manager, logger *slog.Logger) (*Engine, error) {
	if manager == nil {
		return nil, fmt.Errorf("completion manager is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	retriever, err := NewRetriever(cfg, store, embedder)
	if err != nil {
		return nil, err
	}

	return &Engine{
		retriever:     retriever,
		reranker:      NewReranker(cfg, manager, logger),
		manager:       manager,
		rerankEnabled: config.BoolValue(cfg.RerankEnabled, true),
		logger:        logger,
	}, nil
}

// Answer retrieves context for the query and synthesizes a cited answer.
// With no matching chunks the answer says so; that is not an error.
func (e *Engine) Answer(ctx context.Context, query string) (*Result, error) {
	results, err := e.retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return &Result{
			Answer: "No relevant documents were found for this question.",
		}, nil
	}

	if e.rerankEnabled {
		results = e.reranker.Rerank(ctx, query, results)
	}

	answer, err := e.synthesize(ctx, query, results)
	if err != nil {
		return nil, err
	}

	sources := make([]Source, len(results))
	for i, result := range results {
		sources[i] = Source{
			ID:    result.ID,
			Text:  result.Text,
			Score: result.Score,
			Meta:  result.Metadata,
		}
	}

	return &Result{Answer: answer, Sources: sources}, nil
}

// Store exposes the cached vector store for ingestion.
func (e *Engine) Store() databases.Store {
	return e.retriever.Store()
}

// Close releases the retriever's cache and store.
func (e *Engine) Close() error {
	return e.retriever.Close()
}

func (e *Engine) synthesize(ctx context.Context, query string, results []databases.SearchResult) (string, error) {
	var contextBlock strings.Builder
	for i, result := range results {
		fmt.Fprintf(&contextBlock, "[%d] %s\n\n", i+1, result.Text)
	}

	answer, err := e.manager.Complete(ctx, []llms.Message{
		llms.User(fmt.Sprintf(synthesisPrompt, contextBlock.String(), query)),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("synthesis failed: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
