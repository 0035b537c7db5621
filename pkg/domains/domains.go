// Package domains provides real-time data providers for the domain
// strategies: weather, finance quotes, and routing. Each domain has a
// primary source and a degraded-but-available fallback.
package domains

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/httpclient"
)

// WeatherReport is one current-conditions answer.
type WeatherReport struct {
	Location     string
	TemperatureC float64
	Humidity     float64
	WindKmh      float64
	Condition    string
	Source       string
}

// Payload exposes the report as a generic map for DomainResult.
func (r *WeatherReport) Payload() map[string]interface{} {
	return map[string]interface{}{
		"location":      r.Location,
		"temperature_c": r.TemperatureC,
		"humidity":      r.Humidity,
		"wind_kmh":      r.WindKmh,
		"condition":     r.Condition,
		"source":        r.Source,
	}
}

// Summary renders the report as a short sentence.
func (r *WeatherReport) Summary() string {
	s := fmt.Sprintf("Current weather in %s: %.1f°C, humidity %.0f%%, wind %.0f km/h",
		r.Location, r.TemperatureC, r.Humidity, r.WindKmh)
	if r.Condition != "" {
		s += fmt.Sprintf(" (%s)", r.Condition)
	}
	return s + "."
}

// QuoteReport is one stock quote answer.
type QuoteReport struct {
	Symbol        string
	Price         float64
	Change        float64
	ChangePercent string
	Volume        int64
	Source        string
}

func (r *QuoteReport) Payload() map[string]interface{} {
	return map[string]interface{}{
		"symbol":         r.Symbol,
		"price":          r.Price,
		"change":         r.Change,
		"change_percent": r.ChangePercent,
		"volume":         r.Volume,
		"source":         r.Source,
	}
}

func (r *QuoteReport) Summary() string {
	s := fmt.Sprintf("%s is trading at %.2f", r.Symbol, r.Price)
	if r.ChangePercent != "" {
		s += fmt.Sprintf(" (%+.2f, %s)", r.Change, r.ChangePercent)
	}
	return s + "."
}

// RouteReport is one routing answer. Estimated marks great-circle
// approximations from the offline fallback.
type RouteReport struct {
	Origin      string
	Destination string
	DistanceKm  float64
	DurationMin float64
	Estimated   bool
	Source      string
}

func (r *RouteReport) Payload() map[string]interface{} {
	return map[string]interface{}{
		"origin":       r.Origin,
		"destination":  r.Destination,
		"distance_km":  r.DistanceKm,
		"duration_min": r.DurationMin,
		"estimated":    r.Estimated,
		"source":       r.Source,
	}
}

func (r *RouteReport) Summary() string {
	s := fmt.Sprintf("Driving from %s to %s is about %.0f km, roughly %s",
		r.Origin, r.Destination, r.DistanceKm, formatDuration(r.DurationMin))
	if r.Estimated {
		s += " (great-circle estimate)"
	}
	return s + "."
}

func formatDuration(minutes float64) string {
	if minutes < 60 {
		return fmt.Sprintf("%.0f minutes", minutes)
	}
	hours := int(minutes) / 60
	rem := int(minutes) % 60
	if rem == 0 {
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d hours %d minutes", hours, rem)
}

// WeatherProvider answers current conditions for a location string.
type WeatherProvider interface {
	CurrentWeather(ctx context.Context, location string) (*WeatherReport, error)
}

// FinanceProvider answers a quote for a ticker symbol.
type FinanceProvider interface {
	Quote(ctx context.Context, symbol string) (*QuoteReport, error)
}

// RouteProvider answers a route between two place names.
type RouteProvider interface {
	Route(ctx context.Context, origin, destination string) (*RouteReport, error)
}

func domainHTTPClient(timeout time.Duration) *httpclient.Client {
	return httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
		httpclient.WithMaxRetries(2),
		httpclient.WithBaseDelay(500*time.Millisecond),
	)
}

// WeatherChain tries the primary provider, then the fallback.
type WeatherChain struct {
	primary  WeatherProvider
	fallback WeatherProvider
}

// NewWeatherChain builds the configured weather providers.
func NewWeatherChain(cfg *config.DomainProviderConfig) (*WeatherChain, error) {
	build := func(name string) (WeatherProvider, error) {
		switch name {
		case "open-meteo":
			return NewOpenMeteoProvider(cfg.Timeout.Duration()), nil
		case "wttr.in":
			return NewWttrProvider(cfg.Timeout.Duration()), nil
		case "":
			return nil, nil
		default:
			return nil, fmt.Errorf("unknown weather source %q", name)
		}
	}

	primary, err := build(cfg.Primary)
	if err != nil {
		return nil, err
	}
	fallback, err := build(cfg.Fallback)
	if err != nil {
		return nil, err
	}
	return &WeatherChain{primary: primary, fallback: fallback}, nil
}

func (c *WeatherChain) CurrentWeather(ctx context.Context, location string) (*WeatherReport, error) {
	report, err := c.primary.CurrentWeather(ctx, location)
	if err == nil {
		return report, nil
	}
	if c.fallback == nil || ctx.Err() != nil {
		return nil, err
	}
	report, fbErr := c.fallback.CurrentWeather(ctx, location)
	if fbErr != nil {
		return nil, fmt.Errorf("primary: %w; fallback: %v", err, fbErr)
	}
	return report, nil
}

// FinanceChain tries the primary provider, then the fallback.
type FinanceChain struct {
	primary  FinanceProvider
	fallback FinanceProvider
}

// NewFinanceChain builds the configured finance providers. The Alpha
// Vantage key comes from the configured environment variable; without one
// the chain starts at the keyless fallback.
func NewFinanceChain(cfg *config.DomainProviderConfig, apiKey string) (*FinanceChain, error) {
	build := func(name string) (FinanceProvider, error) {
		switch name {
		case "alphavantage":
			if apiKey == "" {
				return nil, nil
			}
			return NewAlphaVantageProvider(apiKey, cfg.Timeout.Duration()), nil
		case "stooq":
			return NewStooqProvider(cfg.Timeout.Duration()), nil
		case "":
			return nil, nil
		default:
			return nil, fmt.Errorf("unknown finance source %q", name)
		}
	}

	primary, err := build(cfg.Primary)
	if err != nil {
		return nil, err
	}
	fallback, err := build(cfg.Fallback)
	if err != nil {
		return nil, err
	}
	if primary == nil {
		primary = fallback
		fallback = nil
	}
	if primary == nil {
		return nil, fmt.Errorf("no finance source available")
	}
	return &FinanceChain{primary: primary, fallback: fallback}, nil
}

func (c *FinanceChain) Quote(ctx context.Context, symbol string) (*QuoteReport, error) {
	report, err := c.primary.Quote(ctx, symbol)
	if err == nil {
		return report, nil
	}
	if c.fallback == nil || ctx.Err() != nil {
		return nil, err
	}
	report, fbErr := c.fallback.Quote(ctx, symbol)
	if fbErr != nil {
		return nil, fmt.Errorf("primary: %w; fallback: %v", err, fbErr)
	}
	return report, nil
}

// RouteChain tries the primary provider, then the fallback.
type RouteChain struct {
	primary  RouteProvider
	fallback RouteProvider
}

// NewRouteChain builds the configured routing providers.
func NewRouteChain(cfg *config.DomainProviderConfig) (*RouteChain, error) {
	geocoder := NewGeocoder(cfg.Timeout.Duration())

	build := func(name string) (RouteProvider, error) {
		switch name {
		case "osrm":
			return NewOSRMProvider(geocoder, cfg.Timeout.Duration()), nil
		case "haversine":
			return NewHaversineProvider(geocoder), nil
		case "":
			return nil, nil
		default:
			return nil, fmt.Errorf("unknown routing source %q", name)
		}
	}

	primary, err := build(cfg.Primary)
	if err != nil {
		return nil, err
	}
	fallback, err := build(cfg.Fallback)
	if err != nil {
		return nil, err
	}
	return &RouteChain{primary: primary, fallback: fallback}, nil
}

func (c *RouteChain) Route(ctx context.Context, origin, destination string) (*RouteReport, error) {
	report, err := c.primary.Route(ctx, origin, destination)
	if err == nil {
		return report, nil
	}
	if c.fallback == nil || ctx.Err() != nil {
		return nil, err
	}
	report, fbErr := c.fallback.Route(ctx, origin, destination)
	if fbErr != nil {
		return nil, fmt.Errorf("primary: %w; fallback: %v", err, fbErr)
	}
	return report, nil
}
