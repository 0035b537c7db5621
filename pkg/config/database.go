package config

import (
	"fmt"
	"time"
)

// DatabaseProviderConfig configures a vector database provider.
//
// Example YAML:
//
//	databases:
//	  local:
//	    type: chromem
//	    persist_path: .minerva/vectors
//	  production:
//	    type: qdrant
//	    host: qdrant.example.com
//	    port: 6334
//	    api_key: ${QDRANT_API_KEY}
type DatabaseProviderConfig struct {
	// Type is the vector store type: "chromem", "qdrant", "pinecone".
	Type string `yaml:"type,omitempty" json:"type,omitempty" jsonschema:"title=Type,description=Vector store type,enum=chromem,enum=qdrant,enum=pinecone,default=chromem"`

	// Host for external vector stores (qdrant).
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,description=Vector store hostname"`

	// Port for external vector stores.
	Port int `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,description=Vector store port"`

	// APIKey for authenticated access.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=API key for authenticated access (use ${ENV_VAR})"`

	// EnableTLS enables TLS connections.
	EnableTLS *bool `yaml:"enable_tls,omitempty" json:"enable_tls,omitempty"`

	// PersistPath for chromem file persistence. Empty keeps the store
	// in memory only.
	PersistPath string `yaml:"persist_path,omitempty" json:"persist_path,omitempty" jsonschema:"title=Persist Path,description=Directory for chromem persistence"`

	// Compress enables gzip compression for chromem persistence.
	Compress bool `yaml:"compress,omitempty" json:"compress,omitempty"`

	// IndexName for Pinecone.
	IndexName string `yaml:"index_name,omitempty" json:"index_name,omitempty" jsonschema:"title=Index Name,description=Pinecone index name"`
}

// SetDefaults applies default values.
func (c *DatabaseProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "chromem" // Default to embedded
	}
	if c.Port == 0 && c.Type == "qdrant" {
		c.Port = 6334
	}
}

// Validate checks the configuration for errors.
func (c *DatabaseProviderConfig) Validate() error {
	validTypes := map[string]bool{
		"chromem":  true,
		"qdrant":   true,
		"pinecone": true,
	}
	if !validTypes[c.Type] {
		return fmt.Errorf("invalid vector store type %q (valid: chromem, qdrant, pinecone)", c.Type)
	}

	if c.Type == "qdrant" && c.Host == "" {
		return fmt.Errorf("host is required for qdrant vector store")
	}
	if c.Type == "pinecone" && c.APIKey == "" {
		return fmt.Errorf("api_key is required for pinecone vector store")
	}
	if c.Type == "pinecone" && c.IndexName == "" {
		return fmt.Errorf("index_name is required for pinecone vector store")
	}

	return nil
}

// IsEmbedded returns true for embedded vector stores (chromem).
func (c *DatabaseProviderConfig) IsEmbedded() bool {
	return c.Type == "chromem"
}

// EmbedderProviderConfig configures an embedding provider.
type EmbedderProviderConfig struct {
	// Type is the embedder type: "openai", "ollama".
	Type string `yaml:"type,omitempty" json:"type,omitempty" jsonschema:"title=Type,description=Embedder type,enum=openai,enum=ollama,default=openai"`

	// Model is the embedding model identifier.
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,description=Embedding model identifier"`

	// APIKey for authentication. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=API key (use ${ENV_VAR})"`

	// Host overrides the default API endpoint.
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,description=Custom base URL"`

	// Dimension is the embedding vector size.
	Dimension int `yaml:"dimension,omitempty" json:"dimension,omitempty" jsonschema:"title=Dimension,description=Embedding vector size"`

	// Timeout bounds one embedding request.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,description=Per-request deadline,default=30s"`
}

// SetDefaults applies default values.
func (c *EmbedderProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "openai"
	}

	if c.Model == "" {
		switch c.Type {
		case "openai":
			c.Model = "text-embedding-3-small"
		case "ollama":
			c.Model = "nomic-embed-text"
		}
	}

	if c.Host == "" {
		switch c.Type {
		case "openai":
			c.Host = "https://api.openai.com/v1"
		case "ollama":
			c.Host = "http://localhost:11434"
		}
	}

	if c.APIKey == "" && c.Type == "openai" {
		c.APIKey = apiKeyFromEnv(ProviderOpenAI)
	}

	if c.Dimension == 0 {
		switch c.Model {
		case "text-embedding-3-small":
			c.Dimension = 1536
		case "text-embedding-3-large":
			c.Dimension = 3072
		case "nomic-embed-text":
			c.Dimension = 768
		default:
			c.Dimension = 1536
		}
	}

	if c.Timeout == 0 {
		c.Timeout = Duration(30 * time.Second)
	}
}

// Validate checks the configuration for errors.
func (c *EmbedderProviderConfig) Validate() error {
	switch c.Type {
	case "openai", "ollama":
	default:
		return fmt.Errorf("invalid embedder type %q (valid: openai, ollama)", c.Type)
	}

	if c.Dimension < 0 {
		return fmt.Errorf("dimension cannot be negative")
	}

	return nil
}
