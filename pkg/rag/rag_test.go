package rag

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/databases"
	"github.com/benekli/minerva/pkg/llms"
)

type fakeProvider struct {
	response string
	err      error
}

func (f *fakeProvider) Complete(context.Context, []llms.Message, *llms.Options) (string, llms.Usage, error) {
	if f.err != nil {
		return "", llms.Usage{}, f.err
	}
	return f.response, llms.Usage{InputTokens: 1, OutputTokens: 1}, nil
}

func (f *fakeProvider) Available(context.Context) bool { return true }
func (f *fakeProvider) GetModelName() string           { return "fake" }
func (f *fakeProvider) Close() error                   { return nil }

func fakeManager(t *testing.T, response string, err error) *llms.Manager {
	t.Helper()
	manager, mErr := llms.NewManagerWithProviders("fake", nil,
		map[string]llms.Provider{"fake": &fakeProvider{response: response, err: err}},
		[]string{"fake"})
	require.NoError(t, mErr)
	return manager
}

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (fixedEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (fixedEmbedder) GetDimension() int { return 3 }

func (fixedEmbedder) GetModelName() string { return "fixed" }

func (fixedEmbedder) Close() error { return nil }

// staticStore returns canned search results.
type staticStore struct {
	results []databases.SearchResult
	queries int
}

func (s *staticStore) AddChunks(context.Context, string, []databases.Record) error { return nil }

func (s *staticStore) Query(context.Context, string, []float32, int, map[string]interface{}) ([]databases.SearchResult, error) {
	s.queries++
	return s.results, nil
}

func (s *staticStore) DeleteByFilter(context.Context, string, map[string]interface{}) error {
	return nil
}

func (s *staticStore) DeleteCollection(context.Context, string) error { return nil }
func (s *staticStore) Close() error                                   { return nil }

func ragConfig() *config.RAGConfig {
	cfg := &config.RAGConfig{}
	cfg.SetDefaults()
	return cfg
}

func chunks(n int) []databases.SearchResult {
	out := make([]databases.SearchResult, n)
	for i := range out {
		out[i] = databases.SearchResult{
			ID:    fmt.Sprintf("chunk-%d", i),
			Score: float32(n-i) / float32(n),
			Text:  fmt.Sprintf("passage %d content", i),
		}
	}
	return out
}

func TestEngineAnswersWithSources(t *testing.T) {
	store := &staticStore{results: chunks(3)}
	manager := fakeManager(t, "The answer is in [1].", nil)

	cfg := ragConfig()
	cfg.RerankEnabled = config.BoolPtr(false)

	engine, err := NewEngine(cfg, store, fixedEmbedder{}, manager, nil)
	require.NoError(t, err)
	defer func() { _ = engine.Close() }()

	result, err := engine.Answer(context.Background(), "where is the answer?")
	require.NoError(t, err)
	assert.Equal(t, "The answer is in [1].", result.Answer)
	require.Len(t, result.Sources, 3)
	assert.Equal(t, "chunk-0", result.Sources[0].ID)
}

func TestEngineEmptyRetrievalIsNotAnError(t *testing.T) {
	store := &staticStore{}
	engine, err := NewEngine(ragConfig(), store, fixedEmbedder{}, fakeManager(t, "unused", nil), nil)
	require.NoError(t, err)
	defer func() { _ = engine.Close() }()

	result, err := engine.Answer(context.Background(), "anything")
	require.NoError(t, err)
	assert.Contains(t, result.Answer, "No relevant documents")
	assert.Empty(t, result.Sources)
}

func TestRerankerReordersByBlendedScore(t *testing.T) {
	cfg := ragConfig()
	cfg.RerankTopK = 3

	// The judge demotes the middle passage below the last one.
	// Blended: c0 = 0.6*1.0+0.4*1.0, c1 = 0.6*0.5+0.4*0.0, c2 = 0.6*0.0+0.4*1.0.
	manager := fakeManager(t, "[1.0, 0.0, 1.0]", nil)
	reranker := NewReranker(cfg, manager, nil)

	results := reranker.Rerank(context.Background(), "query", chunks(3))
	require.Len(t, results, 3)
	assert.Equal(t, "chunk-0", results[0].ID)
	assert.Equal(t, "chunk-2", results[1].ID)
	assert.Equal(t, "chunk-1", results[2].ID)
}

func TestRerankerKeepsOrderWhenJudgeFails(t *testing.T) {
	cfg := ragConfig()
	cfg.RerankTopK = 2

	manager := fakeManager(t, "", fmt.Errorf("provider down"))
	reranker := NewReranker(cfg, manager, nil)

	results := reranker.Rerank(context.Background(), "query", chunks(4))
	require.Len(t, results, 2)
	assert.Equal(t, "chunk-0", results[0].ID)
	assert.Equal(t, "chunk-1", results[1].ID)
}

func TestRerankerRejectsScoreCountMismatch(t *testing.T) {
	cfg := ragConfig()
	cfg.RerankTopK = 3

	manager := fakeManager(t, "[0.5, 0.5]", nil)
	reranker := NewReranker(cfg, manager, nil)

	// Mismatched score count falls back to embedding order.
	results := reranker.Rerank(context.Background(), "query", chunks(3))
	require.Len(t, results, 3)
	assert.Equal(t, "chunk-0", results[0].ID)
}

func TestRetrieverCachesRepeatQueries(t *testing.T) {
	store := &staticStore{results: chunks(2)}

	cfg := ragConfig()
	cfg.CacheTTL = config.Duration(time.Hour)

	retriever, err := NewRetriever(cfg, store, fixedEmbedder{})
	require.NoError(t, err)
	defer func() { _ = retriever.Close() }()

	_, err = retriever.Retrieve(context.Background(), "same question")
	require.NoError(t, err)
	_, err = retriever.Retrieve(context.Background(), "same question")
	require.NoError(t, err)

	assert.Equal(t, 1, store.queries)
}

func TestNormalizeScores(t *testing.T) {
	results := []databases.SearchResult{
		{Score: 0.9}, {Score: 0.5}, {Score: 0.1},
	}
	normalized := normalizeScores(results)
	assert.InDelta(t, 1.0, normalized[0], 1e-9)
	assert.InDelta(t, 0.5, normalized[1], 1e-9)
	assert.InDelta(t, 0.0, normalized[2], 1e-9)

	flat := normalizeScores([]databases.SearchResult{{Score: 0.5}, {Score: 0.5}})
	assert.Equal(t, []float64{1, 1}, flat)
}
