package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benekli/minerva/pkg/config"
)

const duckDuckGoFixture = `<!DOCTYPE html>
<html><body>
<div class="results">
  <div class="result results_links results_links_deep web-result">
    <h2 class="result__title">
      <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&amp;rut=abc">The Go Documentation</a>
    </h2>
    <a class="result__snippet" href="https://go.dev/doc/">Official Go documentation and guides.</a>
  </div>
  <div class="result results_links results_links_deep web-result">
    <h2 class="result__title">
      <a class="result__a" href="https://go.dev/blog/">The Go Blog</a>
    </h2>
    <a class="result__snippet" href="https://go.dev/blog/">News from the Go project.</a>
  </div>
  <div class="result results_links">
    <h2 class="result__title">
      <a class="result__a" href="">Broken result with no URL</a>
    </h2>
  </div>
</div>
</body></html>`

func testSearchConfig() *config.SearchConfig {
	return &config.SearchConfig{
		Provider:   "duckduckgo",
		MaxResults: 8,
		Timeout:    config.Duration(5 * time.Second),
	}
}

func TestParseDuckDuckGoResults(t *testing.T) {
	results, err := parseDuckDuckGoResults(duckDuckGoFixture, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "The Go Documentation", results[0].Title)
	assert.Equal(t, "https://go.dev/doc/", results[0].URL)
	assert.Equal(t, "Official Go documentation and guides.", results[0].Snippet)

	assert.Equal(t, "The Go Blog", results[1].Title)
	assert.Equal(t, "https://go.dev/blog/", results[1].URL)
}

func TestParseDuckDuckGoResultsRespectsLimit(t *testing.T) {
	results, err := parseDuckDuckGoResults(duckDuckGoFixture, 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestDecodeRedirect(t *testing.T) {
	decoded := decodeRedirect("//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fpage&rut=xyz")
	assert.Equal(t, "https://example.com/page", decoded)

	plain := decodeRedirect("https://example.com/direct")
	assert.Equal(t, "https://example.com/direct", plain)
}

func TestDuckDuckGoSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang testing", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(duckDuckGoFixture))
	}))
	defer server.Close()

	c := NewDuckDuckGoClient(testSearchConfig())
	c.endpoint = server.URL

	results, err := c.Search(context.Background(), "golang testing", 5)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearxNGSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "quantum computing", r.URL.Query().Get("q"))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"title": "Quantum computing", "url": "https://example.com/qc", "content": "An overview."},
				{"title": "", "url": "https://example.com/skip"},
				{"title": "Qubits", "url": "https://example.com/qubits", "content": "More detail."},
			},
		})
	}))
	defer server.Close()

	cfg := testSearchConfig()
	cfg.Provider = "searxng"
	cfg.SearxNGURL = server.URL

	c := NewSearxNGClient(cfg)

	results, err := c.Search(context.Background(), "quantum computing", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Quantum computing", results[0].Title)
	assert.Equal(t, "An overview.", results[0].Snippet)
}

func TestNewClientSelection(t *testing.T) {
	cfg := testSearchConfig()
	c, err := NewClient(cfg)
	require.NoError(t, err)
	assert.IsType(t, &DuckDuckGoClient{}, c)

	cfg.Provider = "searxng"
	_, err = NewClient(cfg)
	assert.Error(t, err, "searxng without a URL must fail")

	cfg.SearxNGURL = "https://searx.example.com"
	c, err = NewClient(cfg)
	require.NoError(t, err)
	assert.IsType(t, &SearxNGClient{}, c)

	cfg.Provider = "bing"
	_, err = NewClient(cfg)
	assert.Error(t, err)
}
