package strategies

import (
	"context"
	"fmt"
	"strconv"

	"github.com/benekli/minerva/pkg/rag"
)

// RAGStrategy answers from the ingested document corpus.
type RAGStrategy struct {
	engine *rag.Engine
}

// NewRAGStrategy wraps a retrieval engine.
func NewRAGStrategy(engine *rag.Engine) (*RAGStrategy, error) {
	if engine == nil {
		return nil, fmt.Errorf("rag engine is required")
	}
	return &RAGStrategy{engine: engine}, nil
}

func (s *RAGStrategy) Name() string { return "rag" }

func (s *RAGStrategy) Execute(ctx context.Context, req *Request) (*Outcome, error) {
	result, err := s.engine.Answer(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	sources := make([]Chunk, len(result.Sources))
	for i, source := range result.Sources {
		sources[i] = Chunk{
			DocID:    docID(source.Meta, source.ID),
			ChunkIx:  chunkIndex(source.Meta),
			Text:     source.Text,
			Score:    source.Score,
			Metadata: source.Meta,
		}
	}

	return &Outcome{RAG: &RAGResult{
		Question: req.Query,
		Answer:   result.Answer,
		Sources:  sources,
	}}, nil
}

func docID(meta map[string]interface{}, fallback string) string {
	if source, ok := meta["source"].(string); ok && source != "" {
		return source
	}
	return fallback
}

func chunkIndex(meta map[string]interface{}) int {
	switch v := meta["chunk_index"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

var _ Strategy = (*RAGStrategy)(nil)
