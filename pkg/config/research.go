package config

import (
	"fmt"
	"time"
)

// ResearchConfig configures the research pipeline.
type ResearchConfig struct {
	// MaxSubqueries caps the LLM-generated search plan.
	MaxSubqueries int `yaml:"max_subqueries,omitempty" json:"max_subqueries,omitempty" jsonschema:"title=Max Subqueries,description=Maximum subqueries in a research plan,default=5"`

	// TopURLs caps the deduplicated URL set selected for scraping.
	TopURLs int `yaml:"top_urls,omitempty" json:"top_urls,omitempty" jsonschema:"title=Top URLs,description=Maximum URLs scraped per research run,default=9"`

	// ScrapeWorkers bounds the concurrent scrape pool.
	ScrapeWorkers int `yaml:"scrape_workers,omitempty" json:"scrape_workers,omitempty" jsonschema:"title=Scrape Workers,description=Concurrent scrape worker count,default=5"`

	// ScrapeTimeout bounds one URL fetch.
	ScrapeTimeout Duration `yaml:"scrape_timeout,omitempty" json:"scrape_timeout,omitempty" jsonschema:"title=Scrape Timeout,description=Per-URL fetch deadline,default=10s"`

	// RerankTopK is how many of the best-ranked sources feed synthesis.
	// Every scraped source is still reported.
	RerankTopK int `yaml:"rerank_top_k,omitempty" json:"rerank_top_k,omitempty" jsonschema:"title=Rerank Top K,description=Best-ranked sources fed to synthesis,default=5"`

	// RerankEnabled toggles the semantic rerank stage.
	RerankEnabled *bool `yaml:"rerank_enabled,omitempty" json:"rerank_enabled,omitempty" jsonschema:"title=Rerank Enabled,description=Re-order sources by semantic match before synthesis,default=true"`

	// Search configures the web search client.
	Search SearchConfig `yaml:"search,omitempty" json:"search,omitempty"`

	// Scrape configures the page fetcher.
	Scrape ScrapeConfig `yaml:"scrape,omitempty" json:"scrape,omitempty"`
}

// SearchConfig configures the web search client.
type SearchConfig struct {
	// Provider selects the search back-end (duckduckgo, searxng).
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider,description=Search provider,enum=duckduckgo,enum=searxng,default=duckduckgo"`

	// SearxNGURL is the SearxNG instance base URL.
	SearxNGURL string `yaml:"searxng_url,omitempty" json:"searxng_url,omitempty" jsonschema:"title=SearxNG URL,description=Base URL of a SearxNG instance"`

	// MaxResults caps results per subquery.
	MaxResults int `yaml:"max_results,omitempty" json:"max_results,omitempty" jsonschema:"title=Max Results,description=Results per subquery,default=8"`

	// Timeout bounds one search request.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,description=Per-search deadline,default=10s"`
}

// ScrapeConfig configures the page fetcher.
type ScrapeConfig struct {
	// UserAgent sent with every fetch.
	UserAgent string `yaml:"user_agent,omitempty" json:"user_agent,omitempty" jsonschema:"title=User Agent,description=User-Agent header for fetches"`

	// MaxBodyBytes caps the downloaded body size.
	MaxBodyBytes int64 `yaml:"max_body_bytes,omitempty" json:"max_body_bytes,omitempty" jsonschema:"title=Max Body Bytes,description=Maximum response body size,default=5242880"`

	// AllowPrivateHosts permits fetching loopback and RFC1918 addresses.
	// Off by default to keep scraping away from internal services.
	AllowPrivateHosts bool `yaml:"allow_private_hosts,omitempty" json:"allow_private_hosts,omitempty" jsonschema:"title=Allow Private Hosts,description=Permit fetching private/loopback addresses,default=false"`
}

// SetDefaults applies default values to ResearchConfig.
func (c *ResearchConfig) SetDefaults() {
	if c.MaxSubqueries == 0 {
		c.MaxSubqueries = 5
	}
	if c.TopURLs == 0 {
		c.TopURLs = 9
	}
	if c.ScrapeWorkers == 0 {
		c.ScrapeWorkers = 5
	}
	if c.ScrapeTimeout == 0 {
		c.ScrapeTimeout = Duration(10 * time.Second)
	}
	if c.RerankTopK == 0 {
		c.RerankTopK = 5
	}
	if c.RerankEnabled == nil {
		c.RerankEnabled = BoolPtr(true)
	}

	if c.Search.Provider == "" {
		c.Search.Provider = "duckduckgo"
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = 8
	}
	if c.Search.Timeout == 0 {
		c.Search.Timeout = Duration(10 * time.Second)
	}

	if c.Scrape.UserAgent == "" {
		c.Scrape.UserAgent = "Mozilla/5.0 (compatible; minerva/1.0; +https://github.com/benekli/minerva)"
	}
	if c.Scrape.MaxBodyBytes == 0 {
		c.Scrape.MaxBodyBytes = 5 * 1024 * 1024
	}
}

// Validate checks the ResearchConfig.
func (c *ResearchConfig) Validate() error {
	if c.MaxSubqueries < 1 {
		return fmt.Errorf("max_subqueries must be at least 1")
	}
	if c.TopURLs < 1 {
		return fmt.Errorf("top_urls must be at least 1")
	}
	if c.ScrapeWorkers < 1 {
		return fmt.Errorf("scrape_workers must be at least 1")
	}

	switch c.Search.Provider {
	case "duckduckgo", "searxng":
	default:
		return fmt.Errorf("invalid search provider %q (valid: duckduckgo, searxng)", c.Search.Provider)
	}
	if c.Search.Provider == "searxng" && c.Search.SearxNGURL == "" {
		return fmt.Errorf("searxng_url is required when search provider is searxng")
	}

	return nil
}
