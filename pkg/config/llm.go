package config

import (
	"fmt"
	"os"
	"time"
)

// ProviderKind identifies the LLM provider type.
type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderGemini    ProviderKind = "gemini"
	ProviderOllama    ProviderKind = "ollama"
)

// LLMConfig configures the provider pool. Provider order in the list is the
// fallback order: preferred (per request) first, then primary, then the rest
// as declared.
type LLMConfig struct {
	// Providers is the ordered provider list.
	Providers []*LLMProviderConfig `yaml:"providers,omitempty" json:"providers,omitempty" jsonschema:"title=Providers,description=Ordered LLM provider list; order defines the fallback chain"`

	// Primary names the provider tried first when no per-request preference
	// is given. Defaults to the first enabled provider.
	Primary string `yaml:"primary,omitempty" json:"primary,omitempty" jsonschema:"title=Primary,description=Name of the primary provider"`
}

// LLMProviderConfig configures one completion back-end.
type LLMProviderConfig struct {
	// Name identifies this provider in logs and in preferred_provider hints.
	Name string `yaml:"name,omitempty" json:"name,omitempty" jsonschema:"title=Name,description=Provider instance name"`

	// Type selects the wire protocol (openai, anthropic, gemini, ollama).
	Type ProviderKind `yaml:"type,omitempty" json:"type,omitempty" jsonschema:"title=Type,description=Provider type,enum=openai,enum=anthropic,enum=gemini,enum=ollama,default=openai"`

	// Enabled toggles the provider. Providers whose API key is missing are
	// disabled automatically rather than failing startup.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,description=Whether this provider participates in the fallback chain,default=true"`

	// Model name (e.g., "gpt-4o-mini", "claude-sonnet-4-20250514").
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,description=Model identifier"`

	// APIKey for authentication. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=API key for authentication (use ${ENV_VAR})"`

	// Host overrides the default API endpoint.
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,description=Custom base URL for the API endpoint"`

	// Temperature for generation.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"title=Temperature,description=Sampling temperature,minimum=0,maximum=2,default=0.7"`

	// MaxTokens limits response length.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"title=Max Tokens,description=Maximum tokens to generate,minimum=1,default=4096"`

	// Timeout bounds one completion attempt.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,description=Per-attempt deadline,default=60s"`

	// MaxRetries bounds retryable-error retries within this provider.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"title=Max Retries,description=Retry attempts for retryable errors,default=3"`

	// MaxConcurrent caps in-flight completions to this provider.
	// Zero means unbounded.
	MaxConcurrent int `yaml:"max_concurrent,omitempty" json:"max_concurrent,omitempty" jsonschema:"title=Max Concurrent,description=Semaphore size for in-flight requests (0 = unbounded)"`

	// TLS settings for self-hosted endpoints.
	TLS *TLSConfig `yaml:"tls,omitempty" json:"tls,omitempty" jsonschema:"title=TLS,description=TLS settings for self-hosted endpoints"`
}

// TLSConfig carries TLS overrides for a provider endpoint.
type TLSConfig struct {
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify,omitempty" json:"insecure_skip_verify,omitempty"`
	CACertificate      string `yaml:"ca_certificate,omitempty" json:"ca_certificate,omitempty"`
}

// IsEnabled reports whether the provider participates in the fallback chain.
func (c *LLMProviderConfig) IsEnabled() bool {
	return BoolValue(c.Enabled, true)
}

// SetDefaults applies default values to the provider pool. An empty pool is
// filled from detected API keys so the engine works out of the box.
func (c *LLMConfig) SetDefaults() {
	if len(c.Providers) == 0 {
		c.Providers = defaultProviders()
	}

	for _, p := range c.Providers {
		if p != nil {
			p.SetDefaults()
		}
	}

	if c.Primary == "" {
		for _, p := range c.Providers {
			if p != nil && p.IsEnabled() {
				c.Primary = p.Name
				break
			}
		}
	}
}

// SetDefaults applies default values to one provider.
func (c *LLMProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = ProviderOpenAI
	}
	if c.Name == "" {
		c.Name = string(c.Type)
	}

	if c.Model == "" {
		switch c.Type {
		case ProviderOpenAI:
			c.Model = "gpt-4o-mini"
		case ProviderAnthropic:
			c.Model = "claude-sonnet-4-20250514"
		case ProviderGemini:
			c.Model = "gemini-2.0-flash"
		case ProviderOllama:
			c.Model = "llama3.2"
		}
	}

	if c.Host == "" {
		switch c.Type {
		case ProviderOpenAI:
			c.Host = "https://api.openai.com/v1"
		case ProviderAnthropic:
			c.Host = "https://api.anthropic.com"
		case ProviderGemini:
			c.Host = "https://generativelanguage.googleapis.com"
		case ProviderOllama:
			c.Host = "http://localhost:11434"
		}
	}

	if c.APIKey == "" {
		c.APIKey = apiKeyFromEnv(c.Type)
	}

	// Missing key disables the provider instead of failing startup.
	if c.Enabled == nil {
		c.Enabled = BoolPtr(c.Type == ProviderOllama || c.APIKey != "")
	}

	if c.Temperature == nil {
		c.Temperature = Float64Ptr(0.7)
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(60 * time.Second)
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// Validate checks the provider pool.
func (c *LLMConfig) Validate() error {
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p == nil {
			return fmt.Errorf("provider %d is null", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider %q: %w", p.Name, err)
		}
	}

	if c.Primary != "" && !seen[c.Primary] {
		return fmt.Errorf("primary provider %q not found in providers", c.Primary)
	}

	return nil
}

// Validate checks one provider.
func (c *LLMProviderConfig) Validate() error {
	switch c.Type {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderOllama:
	default:
		return fmt.Errorf("invalid type %q (valid: openai, anthropic, gemini, ollama)", c.Type)
	}

	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens cannot be negative")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	return nil
}

// EnabledProviders returns the enabled providers in declared order, primary
// first when one is named.
func (c *LLMConfig) EnabledProviders() []*LLMProviderConfig {
	enabled := make([]*LLMProviderConfig, 0, len(c.Providers))
	for _, p := range c.Providers {
		if p != nil && p.IsEnabled() && p.Name == c.Primary {
			enabled = append(enabled, p)
		}
	}
	for _, p := range c.Providers {
		if p != nil && p.IsEnabled() && p.Name != c.Primary {
			enabled = append(enabled, p)
		}
	}
	return enabled
}

// defaultProviders builds a provider pool from detected API keys. Ollama is
// always appended as the local last resort.
func defaultProviders() []*LLMProviderConfig {
	var providers []*LLMProviderConfig

	if os.Getenv("OPENAI_API_KEY") != "" {
		providers = append(providers, &LLMProviderConfig{Type: ProviderOpenAI})
	}
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		providers = append(providers, &LLMProviderConfig{Type: ProviderAnthropic})
	}
	if os.Getenv("GEMINI_API_KEY") != "" || os.Getenv("GOOGLE_API_KEY") != "" {
		providers = append(providers, &LLMProviderConfig{Type: ProviderGemini})
	}

	providers = append(providers, &LLMProviderConfig{Type: ProviderOllama})
	return providers
}

// apiKeyFromEnv gets the API key for a provider type from environment.
func apiKeyFromEnv(kind ProviderKind) string {
	switch kind {
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ProviderGemini:
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	case ProviderOllama:
		return "" // Ollama doesn't need an API key
	default:
		return ""
	}
}
