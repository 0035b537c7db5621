package config

import (
	"fmt"
	"time"
)

// DomainsConfig configures the built-in domain strategies. Each domain
// carries a primary data source and an offline-capable fallback, so a
// missing API key or an unreachable provider degrades instead of failing.
type DomainsConfig struct {
	Weather DomainProviderConfig `yaml:"weather,omitempty" json:"weather,omitempty"`
	Finance DomainProviderConfig `yaml:"finance,omitempty" json:"finance,omitempty"`
	Routing DomainProviderConfig `yaml:"routing,omitempty" json:"routing,omitempty"`
}

// DomainProviderConfig describes one domain's data sources.
type DomainProviderConfig struct {
	// Enabled toggles the domain. Disabled domains are never routed to.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,description=Whether this domain is active,default=true"`

	// Primary is the first data source tried.
	Primary string `yaml:"primary,omitempty" json:"primary,omitempty" jsonschema:"title=Primary,description=Primary data source"`

	// Fallback is tried when the primary fails.
	Fallback string `yaml:"fallback,omitempty" json:"fallback,omitempty" jsonschema:"title=Fallback,description=Fallback data source"`

	// APIKeyEnv names the environment variable holding the primary
	// source's API key, for sources that need one.
	APIKeyEnv string `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty" jsonschema:"title=API Key Env,description=Environment variable holding the API key"`

	// Timeout bounds each upstream request.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,description=Per-request timeout,default=10s"`
}

// SetDefaults applies default values.
func (c *DomainsConfig) SetDefaults() {
	c.Weather.setDefaults("open-meteo", "wttr.in", "")
	c.Finance.setDefaults("alphavantage", "stooq", "ALPHAVANTAGE_API_KEY")
	c.Routing.setDefaults("osrm", "haversine", "")
}

func (c *DomainProviderConfig) setDefaults(primary, fallback, apiKeyEnv string) {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.Primary == "" {
		c.Primary = primary
	}
	if c.Fallback == "" {
		c.Fallback = fallback
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = apiKeyEnv
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(10 * time.Second)
	}
}

// Validate checks the configuration for errors.
func (c *DomainsConfig) Validate() error {
	if err := c.Weather.validate("weather", []string{"open-meteo", "wttr.in"}); err != nil {
		return err
	}
	if err := c.Finance.validate("finance", []string{"alphavantage", "stooq"}); err != nil {
		return err
	}
	if err := c.Routing.validate("routing", []string{"osrm", "haversine"}); err != nil {
		return err
	}
	return nil
}

func (c *DomainProviderConfig) validate(domain string, valid []string) error {
	if !BoolValue(c.Enabled, true) {
		return nil
	}
	if !containsString(valid, c.Primary) {
		return fmt.Errorf("%s: invalid primary %q (valid: %v)", domain, c.Primary, valid)
	}
	if c.Fallback != "" && !containsString(valid, c.Fallback) {
		return fmt.Errorf("%s: invalid fallback %q (valid: %v)", domain, c.Fallback, valid)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%s: timeout must be non-negative", domain)
	}
	return nil
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
