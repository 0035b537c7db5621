package strategies

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benekli/minerva/pkg/domains"
	"github.com/benekli/minerva/pkg/llms"
)

// Domain strategies wrap the provider chains. Entity extraction is regex
// first, LLM second when a manager is wired; a query with no extractable
// entity gets an explanatory summary, not an error.

// WeatherStrategy answers current-conditions queries.
type WeatherStrategy struct {
	chain   domains.WeatherProvider
	manager *llms.Manager
	logger  *slog.Logger
}

// NewWeatherStrategy builds the strategy. The manager is optional and only
// used for entity extraction fallback.
func NewWeatherStrategy(chain domains.WeatherProvider, manager *llms.Manager, logger *slog.Logger) (*WeatherStrategy, error) {
	if chain == nil {
		return nil, fmt.Errorf("weather provider is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherStrategy{chain: chain, manager: manager, logger: logger.With("strategy", "weather")}, nil
}

func (s *WeatherStrategy) Name() string { return "weather" }

func (s *WeatherStrategy) Execute(ctx context.Context, req *Request) (*Outcome, error) {
	location := domains.ExtractLocation(req.Query)
	if location == "" && s.manager != nil {
		if entities, err := domains.ExtractWithLLM(ctx, s.manager, "weather", req.Query); err == nil {
			location = entities["location"]
		} else {
			s.logger.Debug("entity extraction fallback failed", "error", err)
		}
	}

	if location == "" {
		return &Outcome{Domain: &DomainResult{
			Kind:             "weather",
			FormattedSummary: "I couldn't tell which place you're asking about. Name a city or location and I'll look up the weather.",
		}}, nil
	}

	report, err := s.chain.CurrentWeather(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("weather lookup for %q: %w", location, err)
	}

	return &Outcome{Domain: &DomainResult{
		Kind:             "weather",
		Entity:           location,
		ProviderPayload:  report.Payload(),
		FormattedSummary: report.Summary(),
	}}, nil
}

// FinanceStrategy answers stock quote queries.
type FinanceStrategy struct {
	chain   domains.FinanceProvider
	manager *llms.Manager
	logger  *slog.Logger
}

// NewFinanceStrategy builds the strategy.
func NewFinanceStrategy(chain domains.FinanceProvider, manager *llms.Manager, logger *slog.Logger) (*FinanceStrategy, error) {
	if chain == nil {
		return nil, fmt.Errorf("finance provider is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FinanceStrategy{chain: chain, manager: manager, logger: logger.With("strategy", "finance")}, nil
}

func (s *FinanceStrategy) Name() string { return "finance" }

func (s *FinanceStrategy) Execute(ctx context.Context, req *Request) (*Outcome, error) {
	ticker := domains.ExtractTicker(req.Query)
	if ticker == "" && s.manager != nil {
		if entities, err := domains.ExtractWithLLM(ctx, s.manager, "finance", req.Query); err == nil {
			ticker = entities["ticker"]
		} else {
			s.logger.Debug("entity extraction fallback failed", "error", err)
		}
	}

	if ticker == "" {
		return &Outcome{Domain: &DomainResult{
			Kind:             "finance",
			FormattedSummary: "I couldn't tell which stock you're asking about. Give me a ticker symbol or company name.",
		}}, nil
	}

	report, err := s.chain.Quote(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("quote lookup for %q: %w", ticker, err)
	}

	return &Outcome{Domain: &DomainResult{
		Kind:             "finance",
		Entity:           ticker,
		ProviderPayload:  report.Payload(),
		FormattedSummary: report.Summary(),
	}}, nil
}

// RoutingStrategy answers point-to-point distance queries.
type RoutingStrategy struct {
	chain   domains.RouteProvider
	manager *llms.Manager
	logger  *slog.Logger
}

// NewRoutingStrategy builds the strategy.
func NewRoutingStrategy(chain domains.RouteProvider, manager *llms.Manager, logger *slog.Logger) (*RoutingStrategy, error) {
	if chain == nil {
		return nil, fmt.Errorf("route provider is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RoutingStrategy{chain: chain, manager: manager, logger: logger.With("strategy", "routing")}, nil
}

func (s *RoutingStrategy) Name() string { return "routing" }

func (s *RoutingStrategy) Execute(ctx context.Context, req *Request) (*Outcome, error) {
	origin, destination := domains.ExtractRoute(req.Query)
	if (origin == "" || destination == "") && s.manager != nil {
		if entities, err := domains.ExtractWithLLM(ctx, s.manager, "routing", req.Query); err == nil {
			if origin == "" {
				origin = entities["origin"]
			}
			if destination == "" {
				destination = entities["destination"]
			}
		} else {
			s.logger.Debug("entity extraction fallback failed", "error", err)
		}
	}

	if origin == "" || destination == "" {
		return &Outcome{Domain: &DomainResult{
			Kind:             "routing",
			FormattedSummary: "I couldn't tell where the trip starts and ends. Ask like \"from A to B\" and I'll work out the route.",
		}}, nil
	}

	report, err := s.chain.Route(ctx, origin, destination)
	if err != nil {
		return nil, fmt.Errorf("route lookup %q to %q: %w", origin, destination, err)
	}

	return &Outcome{Domain: &DomainResult{
		Kind:             "routing",
		Entity:           fmt.Sprintf("%s -> %s", origin, destination),
		ProviderPayload:  report.Payload(),
		FormattedSummary: report.Summary(),
	}}, nil
}

var (
	_ Strategy = (*WeatherStrategy)(nil)
	_ Strategy = (*FinanceStrategy)(nil)
	_ Strategy = (*RoutingStrategy)(nil)
)
