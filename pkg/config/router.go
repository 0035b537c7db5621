package config

import (
	"fmt"
	"time"
)

// RouterConfig configures query classification.
type RouterConfig struct {
	// Mode selects the router implementation (hybrid, keyword, llm).
	Mode string `yaml:"mode,omitempty" json:"mode,omitempty" jsonschema:"title=Mode,description=Router implementation,enum=hybrid,enum=keyword,enum=llm,default=hybrid"`

	// ConfidenceThreshold is the keyword-router confidence above which the
	// hybrid router skips the LLM classifier.
	ConfidenceThreshold float64 `yaml:"confidence_threshold,omitempty" json:"confidence_threshold,omitempty" jsonschema:"title=Confidence Threshold,description=Keyword confidence above which the LLM classifier is skipped,minimum=0,maximum=1,default=0.6"`

	// Temperature for the LLM classifier.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"title=Temperature,description=LLM classifier sampling temperature,default=0.2"`

	// CacheTTL bounds how long a routing decision stays cached.
	CacheTTL Duration `yaml:"cache_ttl,omitempty" json:"cache_ttl,omitempty" jsonschema:"title=Cache TTL,description=Routing decision cache TTL,default=1h"`

	// CacheSize caps the number of cached decisions (LRU).
	CacheSize int `yaml:"cache_size,omitempty" json:"cache_size,omitempty" jsonschema:"title=Cache Size,description=Maximum cached routing decisions,default=1000"`
}

// SetDefaults applies default values to RouterConfig.
func (c *RouterConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = "hybrid"
	}
	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = 0.6
	}
	if c.Temperature == nil {
		c.Temperature = Float64Ptr(0.2)
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = Duration(3600 * time.Second)
	}
	if c.CacheSize == 0 {
		c.CacheSize = 1000
	}
}

// Validate checks the RouterConfig.
func (c *RouterConfig) Validate() error {
	switch c.Mode {
	case "hybrid", "keyword", "llm":
	default:
		return fmt.Errorf("invalid mode %q (valid: hybrid, keyword, llm)", c.Mode)
	}

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be between 0 and 1, got %f", c.ConfidenceThreshold)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size cannot be negative")
	}

	return nil
}
