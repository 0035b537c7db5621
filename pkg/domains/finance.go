package domains

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/benekli/minerva/pkg/httpclient"
)

// AlphaVantageProvider fetches quotes through the GLOBAL_QUOTE function.
type AlphaVantageProvider struct {
	httpClient *httpclient.Client
	apiKey     string
	baseURL    string
}

// NewAlphaVantageProvider creates the provider.
func NewAlphaVantageProvider(apiKey string, timeout time.Duration) *AlphaVantageProvider {
	return &AlphaVantageProvider{
		httpClient: domainHTTPClient(timeout),
		apiKey:     apiKey,
		baseURL:    "https://www.alphavantage.co/query",
	}
}

type alphaVantageResponse struct {
	GlobalQuote struct {
		Symbol        string `json:"01. symbol"`
		Price         string `json:"05. price"`
		Volume        string `json:"06. volume"`
		Change        string `json:"09. change"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
	Note         string `json:"Note"`
	ErrorMessage string `json:"Error Message"`
}

func (p *AlphaVantageProvider) Quote(ctx context.Context, symbol string) (*QuoteReport, error) {
	reqURL := fmt.Sprintf("%s?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		p.baseURL, url.QueryEscape(symbol), url.QueryEscape(p.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alphavantage request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alphavantage returned status %d", resp.StatusCode)
	}

	var response alphaVantageResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode alphavantage response: %w", err)
	}
	if response.ErrorMessage != "" {
		return nil, fmt.Errorf("alphavantage error: %s", response.ErrorMessage)
	}
	if response.Note != "" {
		// Rate limit note arrives with an otherwise empty quote.
		return nil, fmt.Errorf("alphavantage rate limited: %s", response.Note)
	}
	if response.GlobalQuote.Symbol == "" {
		return nil, fmt.Errorf("no quote for symbol %q", symbol)
	}

	price, err := strconv.ParseFloat(response.GlobalQuote.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("unparseable price %q", response.GlobalQuote.Price)
	}
	change, _ := strconv.ParseFloat(response.GlobalQuote.Change, 64)
	volume, _ := strconv.ParseInt(response.GlobalQuote.Volume, 10, 64)

	return &QuoteReport{
		Symbol:        response.GlobalQuote.Symbol,
		Price:         price,
		Change:        change,
		ChangePercent: response.GlobalQuote.ChangePercent,
		Volume:        volume,
		Source:        "alphavantage",
	}, nil
}

// StooqProvider fetches keyless CSV quotes from stooq.com. US symbols need
// the ".us" suffix.
type StooqProvider struct {
	httpClient *httpclient.Client
	baseURL    string
}

// NewStooqProvider creates the provider.
func NewStooqProvider(timeout time.Duration) *StooqProvider {
	return &StooqProvider{
		httpClient: domainHTTPClient(timeout),
		baseURL:    "https://stooq.com/q/l/",
	}
}

func (p *StooqProvider) Quote(ctx context.Context, symbol string) (*QuoteReport, error) {
	stooqSymbol := strings.ToLower(symbol)
	if !strings.Contains(stooqSymbol, ".") {
		stooqSymbol += ".us"
	}

	reqURL := fmt.Sprintf("%s?s=%s&f=sd2t2ohlcv&h&e=csv", p.baseURL, url.QueryEscape(stooqSymbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stooq request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stooq returned status %d", resp.StatusCode)
	}

	records, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse stooq CSV: %w", err)
	}
	if len(records) < 2 || len(records[1]) < 8 {
		return nil, fmt.Errorf("no quote for symbol %q", symbol)
	}

	// Header: Symbol,Date,Time,Open,High,Low,Close,Volume
	row := records[1]
	if row[6] == "N/D" {
		return nil, fmt.Errorf("no quote for symbol %q", symbol)
	}

	price, err := strconv.ParseFloat(row[6], 64)
	if err != nil {
		return nil, fmt.Errorf("unparseable close price %q", row[6])
	}
	open, _ := strconv.ParseFloat(row[3], 64)
	volume, _ := strconv.ParseInt(row[7], 10, 64)

	report := &QuoteReport{
		Symbol: strings.ToUpper(symbol),
		Price:  price,
		Volume: volume,
		Source: "stooq",
	}
	if open > 0 {
		report.Change = price - open
		report.ChangePercent = fmt.Sprintf("%.2f%%", (price-open)/open*100)
	}

	return report, nil
}

var (
	_ FinanceProvider = (*AlphaVantageProvider)(nil)
	_ FinanceProvider = (*StooqProvider)(nil)
)
