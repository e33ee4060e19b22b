// Package maps wraps the Google Geocoding and Routes APIs used to resolve
// delivery addresses and measure road distance between pickup and dropoff.
package maps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/tmnhat/platterly-backend/pkg/errors"
)

const (
	defaultGeocodeBaseURL       = "https://maps.googleapis.com/maps/api"
	defaultRoutesBaseURL        = "https://routes.googleapis.com"
	routesFieldMask             = "routes.distanceMeters,routes.duration"
	requestBodyReadLimit  int64 = 1024
)

var errAPIKeyRequired = errors.New("google maps api key is required")

// Client wraps the Google Maps APIs used for address resolution and routing.
type Client struct {
	httpClient     *http.Client
	geocodeBaseURL string
	routesBaseURL  string
	apiKey         string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithGeocodeBaseURL overrides the Geocoding API base URL.
func WithGeocodeBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.geocodeBaseURL = trimmed
		}
	}
}

// WithRoutesBaseURL overrides the Routes API base URL.
func WithRoutesBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.routesBaseURL = trimmed
		}
	}
}

// NewClient builds the Google Maps client given an API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:         trimmedKey,
		geocodeBaseURL: defaultGeocodeBaseURL,
		routesBaseURL:  defaultRoutesBaseURL,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return client, nil
}

// LatLng is a latitude/longitude pair.
type LatLng struct {
	Latitude  float64
	Longitude float64
}

// GeocodedAddress is the normalized result of resolving a free-form address.
type GeocodedAddress struct {
	FormattedAddress string
	Location         LatLng
	PlaceID          string
}

// Geocode resolves a free-form address to coordinates.
func (c *Client) Geocode(ctx context.Context, address string) (*GeocodedAddress, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "maps client not configured")
	}
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address is required")
	}

	endpoint := fmt.Sprintf("%s/geocode/json?address=%s&key=%s",
		strings.TrimRight(c.geocodeBaseURL, "/"),
		url.QueryEscape(trimmed),
		url.QueryEscape(c.apiKey),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build geocode request")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute geocode request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "geocode request failed")
	}

	var apiResp struct {
		Status  string `json:"status"`
		Results []struct {
			PlaceID          string `json:"place_id"`
			FormattedAddress string `json:"formatted_address"`
			Geometry         struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode geocode response")
	}

	if apiResp.Status == "ZERO_RESULTS" || len(apiResp.Results) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address could not be resolved to coordinates")
	}
	if apiResp.Status != "OK" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("geocoding returned status %s", apiResp.Status))
	}

	first := apiResp.Results[0]
	return &GeocodedAddress{
		PlaceID:          first.PlaceID,
		FormattedAddress: first.FormattedAddress,
		Location: LatLng{
			Latitude:  first.Geometry.Location.Lat,
			Longitude: first.Geometry.Location.Lng,
		},
	}, nil
}

// RouteDistanceKm returns the driving distance between two points in
// kilometers, rounded up to the next whole kilometer so charged distance
// never undercuts the routed distance.
func (c *Client) RouteDistanceKm(ctx context.Context, origin, destination LatLng) (int, error) {
	if c == nil {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "maps client not configured")
	}

	payload := map[string]any{
		"origin":      routeWaypoint(origin),
		"destination": routeWaypoint(destination),
		"travelMode":  "TWO_WHEELER",
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal route request")
	}

	endpoint := strings.TrimRight(c.routesBaseURL, "/") + "/directions/v2:computeRoutes"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build route request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)
	httpReq.Header.Set("X-Goog-FieldMask", routesFieldMask)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute route request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "route request failed")
	}

	var apiResp struct {
		Routes []struct {
			DistanceMeters int `json:"distanceMeters"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode route response")
	}
	if len(apiResp.Routes) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "no route found between origin and destination")
	}

	meters := apiResp.Routes[0].DistanceMeters
	if meters <= 0 {
		return 0, nil
	}
	km := meters / 1000
	if meters%1000 != 0 {
		km++
	}
	return km, nil
}

func routeWaypoint(point LatLng) map[string]any {
	return map[string]any{
		"location": map[string]any{
			"latLng": map[string]any{
				"latitude":  point.Latitude,
				"longitude": point.Longitude,
			},
		},
	}
}

// FormatLatLng renders coordinates the way tracking payloads expect them.
func FormatLatLng(point LatLng) string {
	return strconv.FormatFloat(point.Latitude, 'f', 6, 64) + "," + strconv.FormatFloat(point.Longitude, 'f', 6, 64)
}
