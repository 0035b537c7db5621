package domains

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/benekli/minerva/pkg/httpclient"
)

// Coordinates is one geocoded place.
type Coordinates struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// Geocoder resolves place names via Open-Meteo's geocoding API, with a
// built-in gazetteer of major cities so routing can degrade offline.
type Geocoder struct {
	httpClient *httpclient.Client
	baseURL    string
}

// NewGeocoder creates the geocoder.
func NewGeocoder(timeout time.Duration) *Geocoder {
	return &Geocoder{
		httpClient: domainHTTPClient(timeout),
		baseURL:    "https://geocoding-api.open-meteo.com/v1/search",
	}
}

// Resolve finds coordinates for a place name. The gazetteer answers first
// for known cities; unknown names go to the geocoding API.
func (g *Geocoder) Resolve(ctx context.Context, place string) (*Coordinates, error) {
	if coords, ok := lookupGazetteer(place); ok {
		return coords, nil
	}

	reqURL := fmt.Sprintf("%s?name=%s&count=1", g.baseURL, url.QueryEscape(place))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding returned status %d", resp.StatusCode)
	}

	var response openMeteoGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode geocoding response: %w", err)
	}
	if len(response.Results) == 0 {
		return nil, fmt.Errorf("place %q not found", place)
	}

	r := response.Results[0]
	return &Coordinates{Name: r.Name, Latitude: r.Latitude, Longitude: r.Longitude}, nil
}

// gazetteer covers common route endpoints, keyed lowercase. CJK aliases
// included for the cities that show up in Chinese-language queries.
var gazetteer = map[string]Coordinates{
	"london":        {Name: "London", Latitude: 51.5074, Longitude: -0.1278},
	"paris":         {Name: "Paris", Latitude: 48.8566, Longitude: 2.3522},
	"berlin":        {Name: "Berlin", Latitude: 52.5200, Longitude: 13.4050},
	"madrid":        {Name: "Madrid", Latitude: 40.4168, Longitude: -3.7038},
	"rome":          {Name: "Rome", Latitude: 41.9028, Longitude: 12.4964},
	"new york":      {Name: "New York", Latitude: 40.7128, Longitude: -74.0060},
	"los angeles":   {Name: "Los Angeles", Latitude: 34.0522, Longitude: -118.2437},
	"san francisco": {Name: "San Francisco", Latitude: 37.7749, Longitude: -122.4194},
	"chicago":       {Name: "Chicago", Latitude: 41.8781, Longitude: -87.6298},
	"boston":        {Name: "Boston", Latitude: 42.3601, Longitude: -71.0589},
	"seattle":       {Name: "Seattle", Latitude: 47.6062, Longitude: -122.3321},
	"tokyo":         {Name: "Tokyo", Latitude: 35.6762, Longitude: 139.6503},
	"osaka":         {Name: "Osaka", Latitude: 34.6937, Longitude: 135.5023},
	"seoul":         {Name: "Seoul", Latitude: 37.5665, Longitude: 126.9780},
	"beijing":       {Name: "Beijing", Latitude: 39.9042, Longitude: 116.4074},
	"shanghai":      {Name: "Shanghai", Latitude: 31.2304, Longitude: 121.4737},
	"shenzhen":      {Name: "Shenzhen", Latitude: 22.5431, Longitude: 114.0579},
	"guangzhou":     {Name: "Guangzhou", Latitude: 23.1291, Longitude: 113.2644},
	"hong kong":     {Name: "Hong Kong", Latitude: 22.3193, Longitude: 114.1694},
	"macau":         {Name: "Macau", Latitude: 22.1987, Longitude: 113.5439},
	"taipei":        {Name: "Taipei", Latitude: 25.0330, Longitude: 121.5654},
	"singapore":     {Name: "Singapore", Latitude: 1.3521, Longitude: 103.8198},
	"sydney":        {Name: "Sydney", Latitude: -33.8688, Longitude: 151.2093},
	"mumbai":        {Name: "Mumbai", Latitude: 19.0760, Longitude: 72.8777},
	"dubai":         {Name: "Dubai", Latitude: 25.2048, Longitude: 55.2708},
	"moscow":        {Name: "Moscow", Latitude: 55.7558, Longitude: 37.6173},
	"toronto":       {Name: "Toronto", Latitude: 43.6532, Longitude: -79.3832},
	"amsterdam":     {Name: "Amsterdam", Latitude: 52.3676, Longitude: 4.9041},
	"北京":            {Name: "Beijing", Latitude: 39.9042, Longitude: 116.4074},
	"上海":            {Name: "Shanghai", Latitude: 31.2304, Longitude: 121.4737},
	"深圳":            {Name: "Shenzhen", Latitude: 22.5431, Longitude: 114.0579},
	"广州":            {Name: "Guangzhou", Latitude: 23.1291, Longitude: 113.2644},
	"香港":            {Name: "Hong Kong", Latitude: 22.3193, Longitude: 114.1694},
	"澳门":            {Name: "Macau", Latitude: 22.1987, Longitude: 113.5439},
	"澳門":            {Name: "Macau", Latitude: 22.1987, Longitude: 113.5439},
	"台北":            {Name: "Taipei", Latitude: 25.0330, Longitude: 121.5654},
	"東京":            {Name: "Tokyo", Latitude: 35.6762, Longitude: 139.6503},
	"东京":            {Name: "Tokyo", Latitude: 35.6762, Longitude: 139.6503},
}

func lookupGazetteer(place string) (*Coordinates, bool) {
	key := strings.ToLower(strings.TrimSpace(place))
	if coords, ok := gazetteer[key]; ok {
		return &coords, true
	}
	return nil, false
}

// OSRMProvider routes through the public OSRM demo server.
type OSRMProvider struct {
	geocoder   *Geocoder
	httpClient *httpclient.Client
	baseURL    string
}

// NewOSRMProvider creates the provider.
func NewOSRMProvider(geocoder *Geocoder, timeout time.Duration) *OSRMProvider {
	return &OSRMProvider{
		geocoder:   geocoder,
		httpClient: domainHTTPClient(timeout),
		baseURL:    "https://router.project-osrm.org",
	}
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

func (p *OSRMProvider) Route(ctx context.Context, origin, destination string) (*RouteReport, error) {
	from, err := p.geocoder.Resolve(ctx, origin)
	if err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}
	to, err := p.geocoder.Resolve(ctx, destination)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	reqURL := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=false",
		p.baseURL, from.Longitude, from.Latitude, to.Longitude, to.Latitude)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("osrm request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osrm returned status %d", resp.StatusCode)
	}

	var response osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode osrm response: %w", err)
	}
	if response.Code != "Ok" || len(response.Routes) == 0 {
		return nil, fmt.Errorf("osrm found no route (%s)", response.Code)
	}

	route := response.Routes[0]
	return &RouteReport{
		Origin:      from.Name,
		Destination: to.Name,
		DistanceKm:  route.Distance / 1000,
		DurationMin: route.Duration / 60,
		Source:      "osrm",
	}, nil
}

// nominalSpeedKmh approximates driving speed for the offline estimate.
const nominalSpeedKmh = 80.0

// HaversineProvider estimates routes from great-circle distance. It keeps
// the routing strategy answering when OSRM is unreachable.
type HaversineProvider struct {
	geocoder *Geocoder
}

// NewHaversineProvider creates the provider.
func NewHaversineProvider(geocoder *Geocoder) *HaversineProvider {
	return &HaversineProvider{geocoder: geocoder}
}

func (p *HaversineProvider) Route(ctx context.Context, origin, destination string) (*RouteReport, error) {
	from, err := p.geocoder.Resolve(ctx, origin)
	if err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}
	to, err := p.geocoder.Resolve(ctx, destination)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	distance := haversineKm(from.Latitude, from.Longitude, to.Latitude, to.Longitude)

	return &RouteReport{
		Origin:      from.Name,
		Destination: to.Name,
		DistanceKm:  distance,
		DurationMin: distance / nominalSpeedKmh * 60,
		Estimated:   true,
		Source:      "haversine",
	}, nil
}

const earthRadiusKm = 6371.0

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

var (
	_ RouteProvider = (*OSRMProvider)(nil)
	_ RouteProvider = (*HaversineProvider)(nil)
)
