package domains

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/benekli/minerva/pkg/httpclient"
)

// weatherCodeDescriptions maps WMO weather codes to readable conditions.
var weatherCodeDescriptions = map[int]string{
	0:  "clear sky",
	1:  "mainly clear",
	2:  "partly cloudy",
	3:  "overcast",
	45: "fog",
	48: "depositing rime fog",
	51: "light drizzle",
	53: "moderate drizzle",
	55: "dense drizzle",
	61: "slight rain",
	63: "moderate rain",
	65: "heavy rain",
	71: "slight snow",
	73: "moderate snow",
	75: "heavy snow",
	80: "rain showers",
	81: "moderate rain showers",
	82: "violent rain showers",
	95: "thunderstorm",
	96: "thunderstorm with hail",
	99: "thunderstorm with heavy hail",
}

// OpenMeteoProvider uses Open-Meteo's keyless geocoding + forecast APIs.
type OpenMeteoProvider struct {
	httpClient  *httpclient.Client
	geocodeURL  string
	forecastURL string
}

// NewOpenMeteoProvider creates the provider.
func NewOpenMeteoProvider(timeout time.Duration) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		httpClient:  domainHTTPClient(timeout),
		geocodeURL:  "https://geocoding-api.open-meteo.com/v1/search",
		forecastURL: "https://api.open-meteo.com/v1/forecast",
	}
}

type openMeteoGeocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Country   string  `json:"country"`
	} `json:"results"`
}

type openMeteoForecastResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		Humidity    float64 `json:"relative_humidity_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

func (p *OpenMeteoProvider) CurrentWeather(ctx context.Context, location string) (*WeatherReport, error) {
	geoURL := fmt.Sprintf("%s?name=%s&count=1", p.geocodeURL, url.QueryEscape(location))

	var geo openMeteoGeocodeResponse
	if err := p.getJSON(ctx, geoURL, &geo); err != nil {
		return nil, fmt.Errorf("geocoding failed: %w", err)
	}
	if len(geo.Results) == 0 {
		return nil, fmt.Errorf("location %q not found", location)
	}
	place := geo.Results[0]

	forecastURL := fmt.Sprintf(
		"%s?latitude=%.4f&longitude=%.4f&current=temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code",
		p.forecastURL, place.Latitude, place.Longitude)

	var forecast openMeteoForecastResponse
	if err := p.getJSON(ctx, forecastURL, &forecast); err != nil {
		return nil, fmt.Errorf("forecast failed: %w", err)
	}

	name := place.Name
	if place.Country != "" {
		name += ", " + place.Country
	}

	return &WeatherReport{
		Location:     name,
		TemperatureC: forecast.Current.Temperature,
		Humidity:     forecast.Current.Humidity,
		WindKmh:      forecast.Current.WindSpeed,
		Condition:    weatherCodeDescriptions[forecast.Current.WeatherCode],
		Source:       "open-meteo",
	}, nil
}

func (p *OpenMeteoProvider) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// WttrProvider uses wttr.in's JSON endpoint as the keyless fallback.
type WttrProvider struct {
	httpClient *httpclient.Client
	baseURL    string
}

// NewWttrProvider creates the provider.
func NewWttrProvider(timeout time.Duration) *WttrProvider {
	return &WttrProvider{
		httpClient: domainHTTPClient(timeout),
		baseURL:    "https://wttr.in",
	}
}

type wttrResponse struct {
	CurrentCondition []struct {
		TempC       string `json:"temp_C"`
		Humidity    string `json:"humidity"`
		WindSpeed   string `json:"windspeedKmph"`
		WeatherDesc []struct {
			Value string `json:"value"`
		} `json:"weatherDesc"`
	} `json:"current_condition"`
}

func (p *WttrProvider) CurrentWeather(ctx context.Context, location string) (*WeatherReport, error) {
	reqURL := fmt.Sprintf("%s/%s?format=j1", p.baseURL, url.PathEscape(location))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wttr.in request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wttr.in returned status %d", resp.StatusCode)
	}

	var response wttrResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode wttr.in response: %w", err)
	}
	if len(response.CurrentCondition) == 0 {
		return nil, fmt.Errorf("wttr.in returned no conditions for %q", location)
	}

	cond := response.CurrentCondition[0]
	report := &WeatherReport{
		Location: location,
		Source:   "wttr.in",
	}
	report.TemperatureC, _ = strconv.ParseFloat(cond.TempC, 64)
	report.Humidity, _ = strconv.ParseFloat(cond.Humidity, 64)
	report.WindKmh, _ = strconv.ParseFloat(cond.WindSpeed, 64)
	if len(cond.WeatherDesc) > 0 {
		report.Condition = cond.WeatherDesc[0].Value
	}

	return report, nil
}

var (
	_ WeatherProvider = (*OpenMeteoProvider)(nil)
	_ WeatherProvider = (*WttrProvider)(nil)
)
