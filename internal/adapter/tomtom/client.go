// Package tomtom resolves speed limits through the TomTom reverse geocoding
// API. The API key is resolved on every query so rotated credentials apply
// without a restart.
package tomtom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/taisau/ha-road-speed-limits/internal/domain"
	"github.com/taisau/ha-road-speed-limits/internal/observability"
)

// DefaultBaseURL is the TomTom reverse geocoding endpoint.
const DefaultBaseURL = "https://api.tomtom.com/search/2/reverseGeocode"

// KeyFunc supplies the current API key. An empty return means no credential
// is configured.
type KeyFunc func() string

// Client implements domain.Provider using the TomTom Search API.
type Client struct {
	key        KeyFunc
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a TomTom client.
func NewClient(key KeyFunc, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		key: key,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: DefaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// Kind identifies this client as the TomTom provider.
func (c *Client) Kind() domain.ProviderKind {
	return domain.ProviderTomTom
}

// Query reverse-geocodes the coordinate with speed limit data enabled and
// returns the matched address's limit. An address without speed limit data
// is a successful query with a nil SpeedValue.
func (c *Client) Query(ctx context.Context, coord domain.Coordinate, radiusMeters int) (domain.SpeedLimitResult, error) {
	key := c.key()
	if key == "" {
		return domain.SpeedLimitResult{}, c.fail(domain.FailureUnavailable, errors.New("no API key configured"))
	}

	u := fmt.Sprintf("%s/%f,%f.json", c.baseURL, coord.Latitude, coord.Longitude)
	params := url.Values{
		"key":              {key},
		"returnSpeedLimit": {"true"},
		"radius":           {strconv.Itoa(radiusMeters)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+params.Encode(), nil)
	if err != nil {
		return domain.SpeedLimitResult{}, c.fail(domain.FailureError, fmt.Errorf("create request: %w", err))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ProviderRequestDuration.WithLabelValues(string(c.Kind())).Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.SpeedLimitResult{}, c.failWith(domain.TransportFailure(c.Kind(), err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.SpeedLimitResult{}, c.fail(domain.FailureUnavailable, fmt.Errorf("API key rejected: status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.SpeedLimitResult{}, c.fail(domain.FailureRateLimited, fmt.Errorf("tomtom API status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return domain.SpeedLimitResult{}, c.fail(domain.FailureError, fmt.Errorf("tomtom API status %d: %s", resp.StatusCode, body))
	}

	var tomtomResp response
	if err := json.NewDecoder(resp.Body).Decode(&tomtomResp); err != nil {
		return domain.SpeedLimitResult{}, c.fail(domain.FailureError, fmt.Errorf("decode response: %w", err))
	}

	result := domain.SpeedLimitResult{
		Unit:   domain.UnitKMH,
		Source: c.Kind(),
	}
	if len(tomtomResp.Addresses) == 0 {
		return result, nil
	}

	addr := tomtomResp.Addresses[0].Address
	result.RoadName = roadName(addr)
	if addr.SpeedLimit == "" {
		return result, nil
	}

	value, unit, err := parseSpeedLimit(addr.SpeedLimit)
	if err != nil {
		return domain.SpeedLimitResult{}, c.fail(domain.FailureError, fmt.Errorf("speed limit %q: %w", addr.SpeedLimit, err))
	}
	result.SpeedValue = value
	result.Unit = unit
	return result, nil
}

func (c *Client) fail(kind domain.FailureKind, err error) error {
	return c.failWith(domain.NewProviderFailure(c.Kind(), kind, err))
}

func (c *Client) failWith(failure *domain.ProviderFailure) error {
	c.metrics.ProviderFailures.WithLabelValues(string(c.Kind()), string(failure.Kind)).Inc()
	return failure
}

// parseSpeedLimit interprets TomTom's "50.00MPH"-style strings.
func parseSpeedLimit(raw string) (*int, string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))

	unit := domain.UnitKMH
	switch {
	case strings.HasSuffix(s, "MPH"):
		unit = domain.UnitMPH
		s = strings.TrimSpace(strings.TrimSuffix(s, "MPH"))
	case strings.HasSuffix(s, "KMH"):
		s = strings.TrimSpace(strings.TrimSuffix(s, "KMH"))
	case strings.HasSuffix(s, "KM/H"):
		s = strings.TrimSpace(strings.TrimSuffix(s, "KM/H"))
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, "", fmt.Errorf("parse value: %w", err)
	}
	return domain.IntPtr(int(math.Round(value))), unit, nil
}

// roadName prefers the street name, falling back to joined route numbers
// for unnamed highways.
func roadName(addr address) string {
	if addr.Street != "" {
		return addr.Street
	}
	return strings.Join(addr.RouteNumbers, ", ")
}

// TomTom API response types.

type response struct {
	Addresses []addressEntry `json:"addresses"`
}

type addressEntry struct {
	Address address `json:"address"`
}

type address struct {
	Street       string   `json:"street"`
	RouteNumbers []string `json:"routeNumbers"`
	SpeedLimit   string   `json:"speedLimit"`
}
