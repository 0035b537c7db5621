package config

import "fmt"

// DocumentStoreConfig configures a document store for RAG ingestion.
//
// Example YAML:
//
//	document_stores:
//	  docs:
//	    source:
//	      type: directory
//	      path: ./docs
//	      include: ["*.md", "*.pdf"]
//	    chunking:
//	      strategy: overlapping
//	      size: 1000
//	      overlap: 200
//	    database: main
//	    embedder: default
//	    collection: documents
type DocumentStoreConfig struct {
	// Source configures where documents come from.
	Source *DocumentSourceConfig `yaml:"source" json:"source"`

	// Chunking configures how documents are split.
	Chunking *ChunkingConfig `yaml:"chunking,omitempty" json:"chunking,omitempty"`

	// Database references a vector database from the databases section.
	Database string `yaml:"database,omitempty" json:"database,omitempty"`

	// Embedder references an embedder from the embedders section.
	Embedder string `yaml:"embedder,omitempty" json:"embedder,omitempty"`

	// Collection is the target collection name.
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty"`
}

// SetDefaults applies default values.
func (c *DocumentStoreConfig) SetDefaults() {
	if c.Source == nil {
		c.Source = &DocumentSourceConfig{}
	}
	c.Source.SetDefaults()
	if c.Chunking == nil {
		c.Chunking = &ChunkingConfig{}
	}
	c.Chunking.SetDefaults()
	if c.Collection == "" {
		c.Collection = "documents"
	}
}

// Validate checks the configuration for errors.
func (c *DocumentStoreConfig) Validate() error {
	if c.Source == nil {
		return fmt.Errorf("source is required")
	}
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if c.Chunking != nil {
		if err := c.Chunking.Validate(); err != nil {
			return fmt.Errorf("chunking: %w", err)
		}
	}
	return nil
}

// DocumentSourceConfig configures a document source.
type DocumentSourceConfig struct {
	// Type is the source type. Only "directory" is supported.
	Type string `yaml:"type,omitempty" json:"type,omitempty" jsonschema:"enum=directory,default=directory"`

	// Path is the directory path.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Include patterns for files.
	Include []string `yaml:"include,omitempty" json:"include,omitempty"`

	// Exclude patterns for files.
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`

	// MaxFileSize limits file size in bytes.
	MaxFileSize int64 `yaml:"max_file_size,omitempty" json:"max_file_size,omitempty"`
}

// SetDefaults applies default values.
func (c *DocumentSourceConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "directory"
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 10 * 1024 * 1024 // 10MB
	}
	if c.Exclude == nil {
		c.Exclude = []string{".*", "node_modules", "__pycache__", "vendor", ".git"}
	}
}

// Validate checks the configuration for errors.
func (c *DocumentSourceConfig) Validate() error {
	if c.Type != "directory" {
		return fmt.Errorf("invalid source type %q (valid: directory)", c.Type)
	}
	if c.Path == "" {
		return fmt.Errorf("path is required for directory source")
	}
	return nil
}

// ChunkingConfig configures document chunking.
type ChunkingConfig struct {
	// Strategy is the chunking strategy: "simple", "overlapping", "semantic".
	Strategy string `yaml:"strategy,omitempty" json:"strategy,omitempty"`

	// Size is the target chunk size in characters.
	Size int `yaml:"size,omitempty" json:"size,omitempty"`

	// Overlap is the overlap size (for overlapping strategy).
	Overlap int `yaml:"overlap,omitempty" json:"overlap,omitempty"`

	// MinSize is the minimum chunk size.
	MinSize int `yaml:"min_size,omitempty" json:"min_size,omitempty"`

	// MaxSize is the maximum chunk size.
	MaxSize int `yaml:"max_size,omitempty" json:"max_size,omitempty"`

	// PreserveWords avoids splitting mid-word.
	PreserveWords *bool `yaml:"preserve_words,omitempty" json:"preserve_words,omitempty"`
}

// SetDefaults applies default values.
func (c *ChunkingConfig) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = "simple"
	}
	if c.Size <= 0 {
		c.Size = 1000
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.MinSize <= 0 {
		c.MinSize = 100
	}
	if c.MaxSize <= 0 {
		c.MaxSize = 2000
	}
	if c.PreserveWords == nil {
		c.PreserveWords = BoolPtr(true)
	}
}

// Validate checks the configuration for errors.
func (c *ChunkingConfig) Validate() error {
	validStrategies := map[string]bool{
		"simple":      true,
		"overlapping": true,
		"semantic":    true,
	}
	if !validStrategies[c.Strategy] {
		return fmt.Errorf("invalid chunking strategy %q (valid: simple, overlapping, semantic)", c.Strategy)
	}
	if c.Size <= 0 {
		return fmt.Errorf("size must be positive")
	}
	if c.Overlap < 0 {
		return fmt.Errorf("overlap must be non-negative")
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("overlap must be less than size")
	}
	return nil
}
