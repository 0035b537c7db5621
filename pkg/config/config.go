package config

import (
	"fmt"

	"github.com/benekli/minerva/pkg/observability"
)

// ProcessConfigPipeline runs the canonical load pipeline: pre-process,
// apply defaults, validate. Every load path goes through it, so a Config
// that reaches the engine is always complete and checked.
func ProcessConfigPipeline(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ProcessConfigPipeline: config cannot be nil")
	}

	cfg.PreProcess()

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ProcessConfigPipeline: validation failed: %w", err)
	}

	return cfg, nil
}

// Config is the root configuration for the engine.
type Config struct {
	Version     string `yaml:"version,omitempty" json:"version,omitempty"`
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// LLM configures the provider pool and fallback order.
	LLM LLMConfig `yaml:"llm,omitempty" json:"llm,omitempty"`

	// Router configures query classification.
	Router RouterConfig `yaml:"router,omitempty" json:"router,omitempty"`

	// Research configures the deep-research pipeline.
	Research ResearchConfig `yaml:"research,omitempty" json:"research,omitempty"`

	// Code configures generation and sandboxed execution.
	Code CodeConfig `yaml:"code,omitempty" json:"code,omitempty"`

	// RAG configures retrieval-augmented answering.
	RAG RAGConfig `yaml:"rag,omitempty" json:"rag,omitempty"`

	// Domains configures the weather, finance, and routing strategies.
	Domains DomainsConfig `yaml:"domains,omitempty" json:"domains,omitempty"`

	// Workflow configures multi-intent plan execution.
	Workflow WorkflowConfig `yaml:"workflow,omitempty" json:"workflow,omitempty"`

	// History configures conversation storage.
	History HistoryConfig `yaml:"history,omitempty" json:"history,omitempty"`

	// Databases declares named vector stores.
	Databases map[string]*DatabaseProviderConfig `yaml:"databases,omitempty" json:"databases,omitempty"`

	// Embedders declares named embedding providers.
	Embedders map[string]*EmbedderProviderConfig `yaml:"embedders,omitempty" json:"embedders,omitempty"`

	// DocumentStores declares ingestion sources.
	DocumentStores map[string]*DocumentStoreConfig `yaml:"document_stores,omitempty" json:"document_stores,omitempty"`

	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server,omitempty" json:"server,omitempty"`

	// Logger configures logging.
	Logger LoggerConfig `yaml:"logger,omitempty" json:"logger,omitempty"`

	// Observability configures tracing and metrics.
	Observability observability.Config `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// PreProcess normalizes the raw config before defaults are applied.
// Empty references are pointed at embedded zero-config resources so a
// bare `minerva serve` works without a config file.
func (c *Config) PreProcess() {
	c.initializeMaps()

	if c.RAG.Database == "" {
		if _, exists := c.Databases["default-database"]; !exists {
			c.Databases["default-database"] = &DatabaseProviderConfig{}
		}
		c.RAG.Database = "default-database"
	}

	if c.RAG.Embedder == "" {
		if _, exists := c.Embedders["default-embedder"]; !exists {
			c.Embedders["default-embedder"] = &EmbedderProviderConfig{}
		}
		c.RAG.Embedder = "default-embedder"
	}

	// Document stores inherit the RAG references unless they name their own.
	for _, store := range c.DocumentStores {
		if store == nil {
			continue
		}
		if store.Database == "" {
			store.Database = c.RAG.Database
		}
		if store.Embedder == "" {
			store.Embedder = c.RAG.Embedder
		}
	}
}

func (c *Config) initializeMaps() {
	if c.Databases == nil {
		c.Databases = make(map[string]*DatabaseProviderConfig)
	}
	if c.Embedders == nil {
		c.Embedders = make(map[string]*EmbedderProviderConfig)
	}
	if c.DocumentStores == nil {
		c.DocumentStores = make(map[string]*DocumentStoreConfig)
	}
}

// SetDefaults applies default values to every section.
func (c *Config) SetDefaults() {
	c.initializeMaps()

	c.LLM.SetDefaults()
	c.Router.SetDefaults()
	c.Research.SetDefaults()
	c.Code.SetDefaults()
	c.RAG.SetDefaults()
	c.Domains.SetDefaults()
	c.Workflow.SetDefaults()
	c.History.SetDefaults()

	for name := range c.Databases {
		if c.Databases[name] != nil {
			c.Databases[name].SetDefaults()
		}
	}
	for name := range c.Embedders {
		if c.Embedders[name] != nil {
			c.Embedders[name].SetDefaults()
		}
	}
	for name := range c.DocumentStores {
		if c.DocumentStores[name] != nil {
			c.DocumentStores[name].SetDefaults()
		}
	}

	c.Server.SetDefaults()
	c.Logger.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks every section and cross-section references.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Router.Validate(); err != nil {
		return fmt.Errorf("router: %w", err)
	}
	if err := c.Research.Validate(); err != nil {
		return fmt.Errorf("research: %w", err)
	}
	if err := c.Code.Validate(); err != nil {
		return fmt.Errorf("code: %w", err)
	}
	if err := c.RAG.Validate(); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	if err := c.Domains.Validate(); err != nil {
		return fmt.Errorf("domains: %w", err)
	}
	if err := c.Workflow.Validate(); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history: %w", err)
	}

	for name, db := range c.Databases {
		if db != nil {
			if err := db.Validate(); err != nil {
				return fmt.Errorf("database %q: %w", name, err)
			}
		}
	}
	for name, embedder := range c.Embedders {
		if embedder != nil {
			if err := embedder.Validate(); err != nil {
				return fmt.Errorf("embedder %q: %w", name, err)
			}
		}
	}
	for name, store := range c.DocumentStores {
		if store != nil {
			if err := store.Validate(); err != nil {
				return fmt.Errorf("document store %q: %w", name, err)
			}
		}
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}

	if err := c.validateReferences(); err != nil {
		return fmt.Errorf("reference validation failed: %w", err)
	}

	return nil
}

func (c *Config) validateReferences() error {
	if c.RAG.Database != "" {
		if _, exists := c.Databases[c.RAG.Database]; !exists {
			return fmt.Errorf("rag: database %q not found (available: %v)",
				c.RAG.Database, mapKeys(c.Databases))
		}
	}
	if c.RAG.Embedder != "" {
		if _, exists := c.Embedders[c.RAG.Embedder]; !exists {
			return fmt.Errorf("rag: embedder %q not found (available: %v)",
				c.RAG.Embedder, mapKeys(c.Embedders))
		}
	}

	for name, store := range c.DocumentStores {
		if store == nil {
			continue
		}
		if store.Database != "" {
			if _, exists := c.Databases[store.Database]; !exists {
				return fmt.Errorf("document store %q: database %q not found (available: %v)",
					name, store.Database, mapKeys(c.Databases))
			}
		}
		if store.Embedder != "" {
			if _, exists := c.Embedders[store.Embedder]; !exists {
				return fmt.Errorf("document store %q: embedder %q not found (available: %v)",
					name, store.Embedder, mapKeys(c.Embedders))
			}
		}
	}

	return nil
}

func mapKeys[K comparable, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// GetDatabase returns the named vector store config.
func (c *Config) GetDatabase(name string) (*DatabaseProviderConfig, bool) {
	db, exists := c.Databases[name]
	return db, exists
}

// GetEmbedder returns the named embedder config.
func (c *Config) GetEmbedder(name string) (*EmbedderProviderConfig, bool) {
	embedder, exists := c.Embedders[name]
	return embedder, exists
}

// GetDocumentStore returns the named document store config.
func (c *Config) GetDocumentStore(name string) (*DocumentStoreConfig, bool) {
	store, exists := c.DocumentStores[name]
	return store, exists
}

// ListDocumentStores returns the declared document store names.
func (c *Config) ListDocumentStores() []string {
	stores := make([]string, 0, len(c.DocumentStores))
	for name := range c.DocumentStores {
		stores = append(stores, name)
	}
	return stores
}
