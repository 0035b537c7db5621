package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/databases"
	"github.com/benekli/minerva/pkg/llms"
	"github.com/benekli/minerva/pkg/utils"
)

const rerankPrompt = `Score how relevant each numbered passage is to the question, from 0.0 (irrelevant) to 1.0 (directly answers it). Respond with a JSON array of numbers only, one per passage, in order.

Question: %s

%s`

// Reranker blends embedding similarity with an LLM relevance judgment.
// When the LLM call fails the embedding order stands; reranking degrades,
// it does not break retrieval.
type Reranker struct {
	manager *llms.Manager
	weights config.RerankWeights
	topK    int
	logger  *slog.Logger
}

// NewReranker creates the reranker.
func NewReranker(cfg *config.RAGConfig, manager *llms.Manager, logger *slog.Logger) *Reranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reranker{
		manager: manager,
		weights: cfg.RerankWeights,
		topK:    cfg.RerankTopK,
		logger:  logger,
	}
}

// Rerank reorders results by blended score and keeps the top rerankTopK.
func (r *Reranker) Rerank(ctx context.Context, query string, results []databases.SearchResult) []databases.SearchResult {
	if len(results) == 0 {
		return results
	}

	llmScores, err := r.judgeRelevance(ctx, query, results)
	if err != nil {
		r.logger.Warn("rerank judgment failed, keeping embedding order", "error", err)
		return r.truncate(results)
	}

	type scored struct {
		result databases.SearchResult
		score  float64
	}

	embedScores := normalizeScores(results)
	scoredResults := make([]scored, len(results))
	for i, result := range results {
		blended := r.weights.Embedding*embedScores[i] + r.weights.Cross*llmScores[i]
		scoredResults[i] = scored{result: result, score: blended}
	}

	sort.SliceStable(scoredResults, func(i, j int) bool {
		return scoredResults[i].score > scoredResults[j].score
	})

	out := make([]databases.SearchResult, len(scoredResults))
	for i, s := range scoredResults {
		out[i] = s.result
		out[i].Score = float32(s.score)
	}
	return r.truncate(out)
}

func (r *Reranker) truncate(results []databases.SearchResult) []databases.SearchResult {
	if r.topK > 0 && len(results) > r.topK {
		return results[:r.topK]
	}
	return results
}

func (r *Reranker) judgeRelevance(ctx context.Context, query string, results []databases.SearchResult) ([]float64, error) {
	if r.manager == nil {
		return nil, fmt.Errorf("no completion manager configured")
	}

	var passages strings.Builder
	for i, result := range results {
		text := result.Text
		if len(text) > 500 {
			text = text[:500]
		}
		fmt.Fprintf(&passages, "[%d] %s\n\n", i+1, text)
	}

	response, err := r.manager.Complete(ctx, []llms.Message{
		llms.User(fmt.Sprintf(rerankPrompt, query, passages.String())),
	}, &llms.Options{
		Temperature:    config.Float64Ptr(0),
		ResponseFormat: "json",
	})
	if err != nil {
		return nil, err
	}

	var scores []float64
	if err := utils.UnmarshalLenient(response, &scores); err != nil {
		return nil, fmt.Errorf("unparseable rerank response: %w", err)
	}
	if len(scores) != len(results) {
		return nil, fmt.Errorf("got %d scores for %d passages", len(scores), len(results))
	}

	for i, score := range scores {
		if score < 0 {
			scores[i] = 0
		} else if score > 1 {
			scores[i] = 1
		}
	}
	return scores, nil
}

// normalizeScores maps result scores onto [0,1] within this result set.
func normalizeScores(results []databases.SearchResult) []float64 {
	minScore, maxScore := float64(results[0].Score), float64(results[0].Score)
	for _, result := range results[1:] {
		s := float64(result.Score)
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}

	out := make([]float64, len(results))
	if maxScore == minScore {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	for i, result := range results {
		out[i] = (float64(result.Score) - minScore) / (maxScore - minScore)
	}
	return out
}
