// Package search provides web search clients for the research pipeline.
// DuckDuckGo's HTML endpoint needs no API key; SearxNG covers self-hosted
// deployments.
package search

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/httpclient"
)

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Client runs one search query.
type Client interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// NewClient builds the configured search client.
func NewClient(cfg *config.SearchConfig) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("search config cannot be nil")
	}

	switch cfg.Provider {
	case "duckduckgo", "":
		return NewDuckDuckGoClient(cfg), nil
	case "searxng":
		if cfg.SearxNGURL == "" {
			return nil, fmt.Errorf("searxng_url is required for the searxng provider")
		}
		return NewSearxNGClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported search provider %q (supported: duckduckgo, searxng)", cfg.Provider)
	}
}

func searchHTTPClient(timeout time.Duration) *httpclient.Client {
	return httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
		httpclient.WithMaxRetries(2),
		httpclient.WithBaseDelay(500*time.Millisecond),
	)
}
