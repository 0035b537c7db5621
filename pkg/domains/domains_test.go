package domains

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLocationEnglish(t *testing.T) {
	cases := map[string]string{
		"What's the weather in Tokyo?":         "Tokyo",
		"weather in San Francisco today":       "San Francisco",
		"How hot is it in New York right now?": "New York",
		"Tell me the temperature for Berlin":   "Berlin",
		"humidity near Hong Kong":              "Hong Kong",
	}
	for query, want := range cases {
		assert.Equal(t, want, ExtractLocation(query), query)
	}
}

func TestExtractLocationCJK(t *testing.T) {
	// The humidity query must yield the bare place name.
	assert.Equal(t, "澳門", ExtractLocation("澳門現在的濕度是多少？"))
	assert.Equal(t, "北京", ExtractLocation("北京今天天气怎么样"))
	assert.Equal(t, "上海", ExtractLocation("上海的温度"))
}

func TestExtractLocationAbsent(t *testing.T) {
	assert.Equal(t, "", ExtractLocation("what is the meaning of life"))
}

func TestExtractTicker(t *testing.T) {
	cases := map[string]string{
		"What is the stock price of Apple?": "AAPL",
		"How is NVDA doing today":           "NVDA",
		"quote for $msft":                   "MSFT",
		"tesla share price":                 "TSLA",
	}
	for query, want := range cases {
		assert.Equal(t, want, ExtractTicker(query), query)
	}

	assert.Equal(t, "", ExtractTicker("what is the price of bread"))
}

func TestExtractRoute(t *testing.T) {
	origin, dest := ExtractRoute("How do I drive from Boston to New York?")
	assert.Equal(t, "Boston", origin)
	assert.Equal(t, "New York", dest)

	origin, dest = ExtractRoute("distance between Paris and Berlin")
	assert.Equal(t, "Paris", origin)
	assert.Equal(t, "Berlin", dest)

	origin, dest = ExtractRoute("从北京到上海怎么走")
	assert.Equal(t, "北京", origin)
	assert.Equal(t, "上海", dest)

	origin, dest = ExtractRoute("just a chat message")
	assert.Equal(t, "", origin)
	assert.Equal(t, "", dest)
}

func TestOpenMeteoProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Query().Get("name") != "":
			assert.Equal(t, "Macau", r.URL.Query().Get("name"))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"results": []map[string]interface{}{
					{"name": "Macau", "latitude": 22.2, "longitude": 113.54, "country": "Macao"},
				},
			})
		default:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"current": map[string]interface{}{
					"temperature_2m":       28.5,
					"relative_humidity_2m": 85.0,
					"wind_speed_10m":       12.0,
					"weather_code":         2,
				},
			})
		}
	}))
	defer server.Close()

	p := NewOpenMeteoProvider(5 * time.Second)
	p.geocodeURL = server.URL
	p.forecastURL = server.URL

	report, err := p.CurrentWeather(context.Background(), "Macau")
	require.NoError(t, err)
	assert.Equal(t, "Macau, Macao", report.Location)
	assert.Equal(t, 28.5, report.TemperatureC)
	assert.Equal(t, 85.0, report.Humidity)
	assert.Equal(t, "partly cloudy", report.Condition)
	assert.Contains(t, report.Summary(), "85%")
}

func TestWttrProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "j1", r.URL.Query().Get("format"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"current_condition": []map[string]interface{}{
				{
					"temp_C":        "21",
					"humidity":      "60",
					"windspeedKmph": "15",
					"weatherDesc":   []map[string]string{{"value": "Sunny"}},
				},
			},
		})
	}))
	defer server.Close()

	p := NewWttrProvider(5 * time.Second)
	p.baseURL = server.URL

	report, err := p.CurrentWeather(context.Background(), "London")
	require.NoError(t, err)
	assert.Equal(t, 21.0, report.TemperatureC)
	assert.Equal(t, "Sunny", report.Condition)
	assert.Equal(t, "wttr.in", report.Source)
}

func TestAlphaVantageProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"Global Quote": map[string]string{
				"01. symbol":         "AAPL",
				"05. price":          "228.5000",
				"06. volume":         "43210000",
				"09. change":         "1.2500",
				"10. change percent": "0.55%",
			},
		})
	}))
	defer server.Close()

	p := NewAlphaVantageProvider("demo", 5*time.Second)
	p.baseURL = server.URL

	report, err := p.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", report.Symbol)
	assert.Equal(t, 228.5, report.Price)
	assert.Equal(t, int64(43210000), report.Volume)
	assert.Contains(t, report.Summary(), "228.50")
}

func TestAlphaVantageRateLimitNote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"Note": "API call frequency exceeded",
		})
	}))
	defer server.Close()

	p := NewAlphaVantageProvider("demo", 5*time.Second)
	p.baseURL = server.URL

	_, err := p.Quote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestStooqProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "aapl.us", r.URL.Query().Get("s"))
		fmt.Fprintln(w, "Symbol,Date,Time,Open,High,Low,Close,Volume")
		fmt.Fprintln(w, "AAPL.US,2025-08-22,22:00:00,226.00,229.40,225.10,228.50,43210000")
	}))
	defer server.Close()

	p := NewStooqProvider(5 * time.Second)
	p.baseURL = server.URL

	report, err := p.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", report.Symbol)
	assert.Equal(t, 228.5, report.Price)
	assert.Equal(t, "stooq", report.Source)
	assert.InDelta(t, 2.5, report.Change, 0.001)
}

func TestStooqNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "Symbol,Date,Time,Open,High,Low,Close,Volume")
		fmt.Fprintln(w, "XXXX.US,N/D,N/D,N/D,N/D,N/D,N/D,N/D")
	}))
	defer server.Close()

	p := NewStooqProvider(5 * time.Second)
	p.baseURL = server.URL

	_, err := p.Quote(context.Background(), "XXXX")
	assert.Error(t, err)
}

func TestHaversineProviderUsesGazetteer(t *testing.T) {
	p := NewHaversineProvider(NewGeocoder(5 * time.Second))

	report, err := p.Route(context.Background(), "London", "Paris")
	require.NoError(t, err)
	assert.True(t, report.Estimated)
	assert.InDelta(t, 344, report.DistanceKm, 15)
	assert.Contains(t, report.Summary(), "great-circle estimate")
}

func TestHaversineCJKAliases(t *testing.T) {
	p := NewHaversineProvider(NewGeocoder(5 * time.Second))

	report, err := p.Route(context.Background(), "北京", "上海")
	require.NoError(t, err)
	assert.Equal(t, "Beijing", report.Origin)
	assert.Equal(t, "Shanghai", report.Destination)
	assert.InDelta(t, 1070, report.DistanceKm, 60)
}

func TestOSRMProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/route/v1/driving/")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code": "Ok",
			"routes": []map[string]interface{}{
				{"distance": 465000.0, "duration": 18000.0},
			},
		})
	}))
	defer server.Close()

	p := NewOSRMProvider(NewGeocoder(5*time.Second), 5*time.Second)
	p.baseURL = server.URL

	report, err := p.Route(context.Background(), "London", "Paris")
	require.NoError(t, err)
	assert.Equal(t, 465.0, report.DistanceKm)
	assert.Equal(t, 300.0, report.DurationMin)
	assert.False(t, report.Estimated)
}

// failingWeather always errors, for chain fallback tests.
type failingWeather struct{}

func (failingWeather) CurrentWeather(context.Context, string) (*WeatherReport, error) {
	return nil, fmt.Errorf("upstream down")
}

type staticWeather struct{ report *WeatherReport }

func (s staticWeather) CurrentWeather(context.Context, string) (*WeatherReport, error) {
	return s.report, nil
}

func TestWeatherChainFallback(t *testing.T) {
	want := &WeatherReport{Location: "Macau", TemperatureC: 28, Source: "wttr.in"}
	chain := &WeatherChain{primary: failingWeather{}, fallback: staticWeather{report: want}}

	report, err := chain.CurrentWeather(context.Background(), "Macau")
	require.NoError(t, err)
	assert.Same(t, want, report)
}

func TestWeatherChainBothFail(t *testing.T) {
	chain := &WeatherChain{primary: failingWeather{}, fallback: failingWeather{}}

	_, err := chain.CurrentWeather(context.Background(), "Macau")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary")
	assert.Contains(t, err.Error(), "fallback")
}

func TestWeatherChainSkipsFallbackOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chain := &WeatherChain{
		primary:  failingWeather{},
		fallback: staticWeather{report: &WeatherReport{}},
	}

	_, err := chain.CurrentWeather(ctx, "Macau")
	assert.Error(t, err)
}
