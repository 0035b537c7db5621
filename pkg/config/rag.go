package config

import (
	"fmt"
	"math"
	"time"
)

// RAGConfig configures document retrieval and answer synthesis.
type RAGConfig struct {
	// Database references a vector store from the databases section.
	Database string `yaml:"database,omitempty" json:"database,omitempty" jsonschema:"title=Database,description=Vector store reference"`

	// Embedder references an embedding provider from the embedders section.
	Embedder string `yaml:"embedder,omitempty" json:"embedder,omitempty" jsonschema:"title=Embedder,description=Embedding provider reference"`

	// Collection is the active document collection.
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty" jsonschema:"title=Collection,description=Active document collection,default=documents"`

	// TopK is how many chunks similarity search returns.
	TopK int `yaml:"top_k,omitempty" json:"top_k,omitempty" jsonschema:"title=Top K,description=Chunks returned by similarity search,default=10"`

	// RerankTopK is how many chunks survive the rerank.
	RerankTopK int `yaml:"rerank_top_k,omitempty" json:"rerank_top_k,omitempty" jsonschema:"title=Rerank Top K,description=Chunks retained after rerank,default=5"`

	// RerankEnabled toggles the rerank stage.
	RerankEnabled *bool `yaml:"rerank_enabled,omitempty" json:"rerank_enabled,omitempty" jsonschema:"title=Rerank Enabled,description=Re-order retrieved chunks before synthesis,default=true"`

	// RerankWeights blends the embedding and cross-encoder scores.
	RerankWeights RerankWeights `yaml:"rerank_weights,omitempty" json:"rerank_weights,omitempty"`

	// CacheTTL bounds how long retrieval results stay cached.
	CacheTTL Duration `yaml:"cache_ttl,omitempty" json:"cache_ttl,omitempty" jsonschema:"title=Cache TTL,description=Retrieval cache TTL,default=1h"`

	// CacheSize caps cached retrieval results (LRU).
	CacheSize int `yaml:"cache_size,omitempty" json:"cache_size,omitempty" jsonschema:"title=Cache Size,description=Maximum cached retrievals,default=1000"`
}

// RerankWeights blends reranker scores: final = embedding*similarity + cross*llm.
type RerankWeights struct {
	Embedding float64 `yaml:"embedding,omitempty" json:"embedding,omitempty" jsonschema:"title=Embedding Weight,description=Weight of the embedding similarity score,default=0.6"`
	Cross     float64 `yaml:"cross,omitempty" json:"cross,omitempty" jsonschema:"title=Cross Weight,description=Weight of the cross-encoder score,default=0.4"`
}

// SetDefaults applies default values.
func (c *RAGConfig) SetDefaults() {
	if c.Collection == "" {
		c.Collection = "documents"
	}
	if c.TopK == 0 {
		c.TopK = 10
	}
	if c.RerankTopK == 0 {
		c.RerankTopK = 5
	}
	if c.RerankEnabled == nil {
		c.RerankEnabled = BoolPtr(true)
	}
	if c.RerankWeights.Embedding == 0 && c.RerankWeights.Cross == 0 {
		c.RerankWeights = RerankWeights{Embedding: 0.6, Cross: 0.4}
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = Duration(3600 * time.Second)
	}
	if c.CacheSize == 0 {
		c.CacheSize = 1000
	}
}

// Validate checks the configuration for errors.
func (c *RAGConfig) Validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be at least 1")
	}
	if c.RerankTopK < 1 {
		return fmt.Errorf("rerank_top_k must be at least 1")
	}
	if c.RerankTopK > c.TopK {
		return fmt.Errorf("rerank_top_k (%d) cannot exceed top_k (%d)", c.RerankTopK, c.TopK)
	}

	if c.RerankWeights.Embedding < 0 || c.RerankWeights.Cross < 0 {
		return fmt.Errorf("rerank weights must be non-negative")
	}
	if sum := c.RerankWeights.Embedding + c.RerankWeights.Cross; math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("rerank weights must sum to 1.0, got %f", sum)
	}

	return nil
}
