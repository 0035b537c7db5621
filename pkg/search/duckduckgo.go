package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/httpclient"
)

const duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

// duckDuckGoBodyLimit caps the result page download.
const duckDuckGoBodyLimit = 1 << 20

// DuckDuckGoClient scrapes the DuckDuckGo HTML interface.
type DuckDuckGoClient struct {
	httpClient *httpclient.Client
	maxResults int
	endpoint   string
}

// NewDuckDuckGoClient creates the client.
func NewDuckDuckGoClient(cfg *config.SearchConfig) *DuckDuckGoClient {
	return &DuckDuckGoClient{
		httpClient: searchHTTPClient(cfg.Timeout.Duration()),
		maxResults: cfg.MaxResults,
		endpoint:   duckDuckGoEndpoint,
	}
}

func (c *DuckDuckGoClient) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 || maxResults > c.maxResults {
		maxResults = c.maxResults
	}

	searchURL := fmt.Sprintf("%s?q=%s", c.endpoint, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// The HTML endpoint serves a captcha to non-browser agents.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, duckDuckGoBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return parseDuckDuckGoResults(string(body), maxResults)
}

// parseDuckDuckGoResults walks the result page. Hits live in divs with the
// "result results_links" classes.
func parseDuckDuckGoResults(htmlContent string, maxResults int) ([]Result, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var results []Result

	var findResults func(*html.Node)
	findResults = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}

		if n.Type == html.ElementNode && n.Data == "div" {
			for _, attr := range n.Attr {
				if attr.Key == "class" && strings.Contains(attr.Val, "result") && strings.Contains(attr.Val, "results_links") {
					result := extractResult(n)
					if result.URL != "" && result.Title != "" {
						results = append(results, result)
					}
					return
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findResults(c)
		}
	}

	findResults(doc)
	return results, nil
}

func extractResult(n *html.Node) Result {
	var result Result

	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "class" {
					if strings.Contains(attr.Val, "result__a") {
						result.URL = getAttrValue(n, "href")
						result.Title = getTextContent(n)
					} else if strings.Contains(attr.Val, "result__snippet") {
						result.Snippet = getTextContent(n)
					}
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}

	extract(n)

	result.URL = decodeRedirect(result.URL)
	return result
}

// decodeRedirect unwraps DuckDuckGo's /l/?uddg= redirect URLs.
func decodeRedirect(raw string) string {
	if !strings.HasPrefix(raw, "//duckduckgo.com/l/?uddg=") {
		return raw
	}
	decoded, err := url.QueryUnescape(strings.TrimPrefix(raw, "//duckduckgo.com/l/?uddg="))
	if err != nil {
		return raw
	}
	if idx := strings.Index(decoded, "&"); idx > 0 {
		decoded = decoded[:idx]
	}
	return decoded
}

func getAttrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func getTextContent(n *html.Node) string {
	var sb strings.Builder
	var getText func(*html.Node)
	getText = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			getText(c)
		}
	}
	getText(n)
	return strings.TrimSpace(sb.String())
}

var _ Client = (*DuckDuckGoClient)(nil)
