// Package here resolves speed limits through the HERE reverse geocoding API
// with navigation attributes enabled. HERE is the only provider that also
// reports the timezone of the matched location.
package here

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
	"time"

	"github.com/taisau/ha-road-speed-limits/internal/domain"
	"github.com/taisau/ha-road-speed-limits/internal/observability"
)

// DefaultBaseURL is the HERE reverse geocoding endpoint.
const DefaultBaseURL = "https://revgeocode.search.hereapi.com/v1/revgeocode"

// KeyFunc supplies the current API key. An empty return means no credential
// is configured.
type KeyFunc func() string

// Client implements domain.Provider using the HERE Geocoding & Search API.
type Client struct {
	key        KeyFunc
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a HERE client.
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

// Kind identifies this client as the HERE provider.
func (c *Client) Kind() domain.ProviderKind {
	return domain.ProviderHere
}

// Query reverse-geocodes the coordinate with speed limit attributes and
// returns the first matched item's limit. An item without speed limit
// attributes is a successful query with a nil SpeedValue.
func (c *Client) Query(ctx context.Context, coord domain.Coordinate, radiusMeters int) (domain.SpeedLimitResult, error) {
	key := c.key()
	if key == "" {
		return domain.SpeedLimitResult{}, c.fail(domain.FailureUnavailable, errors.New("no API key configured"))
	}

	params := url.Values{
		"at":                {fmt.Sprintf("%f,%f", coord.Latitude, coord.Longitude)},
		"apiKey":            {key},
		"showNavAttributes": {"speedLimits"},
		"show":              {"tz"},
		"lang":              {"en-US"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
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
		return domain.SpeedLimitResult{}, c.fail(domain.FailureRateLimited, fmt.Errorf("here API status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return domain.SpeedLimitResult{}, c.fail(domain.FailureError, fmt.Errorf("here API status %d: %s", resp.StatusCode, body))
	}

	var hereResp response
	if err := json.NewDecoder(resp.Body).Decode(&hereResp); err != nil {
		return domain.SpeedLimitResult{}, c.fail(domain.FailureError, fmt.Errorf("decode response: %w", err))
	}

	result := domain.SpeedLimitResult{
		Unit:   domain.UnitKMH,
		Source: c.Kind(),
	}
	if len(hereResp.Items) == 0 {
		return result, nil
	}

	it := hereResp.Items[0]
	result.RoadName = roadName(it)
	if it.TimeZone != nil {
		result.Timezone = it.TimeZone.Name
	}
	if it.Distance != nil {
		d := *it.Distance
		result.DistanceMeters = &d
	}

	if it.NavigationAttributes == nil || len(it.NavigationAttributes.SpeedLimits) == 0 {
		return result, nil
	}
	limit := it.NavigationAttributes.SpeedLimits[0]
	result.SpeedValue = domain.IntPtr(int(math.Round(limit.MaxSpeed)))
	if limit.SpeedUnit == "mph" {
		result.Unit = domain.UnitMPH
	}
	return result, nil
}

func (c *Client) fail(kind domain.FailureKind, err error) error {
	return c.failWith(domain.NewProviderFailure(c.Kind(), kind, err))
}

func (c *Client) failWith(failure *domain.ProviderFailure) error {
	c.metrics.ProviderFailures.WithLabelValues(string(c.Kind()), string(failure.Kind)).Inc()
	return failure
}

func roadName(it item) string {
	if it.Address.Street != "" {
		return it.Address.Street
	}
	return it.Title
}

// HERE API response types.

type response struct {
	Items []item `json:"items"`
}

type item struct {
	Title                string        `json:"title"`
	Address              address       `json:"address"`
	Distance             *float64      `json:"distance"`
	TimeZone             *timeZone     `json:"timeZone"`
	NavigationAttributes *navAttribute `json:"navigationAttributes"`
}

type address struct {
	Street string `json:"street"`
}

type timeZone struct {
	Name string `json:"name"`
}

type navAttribute struct {
	SpeedLimits []speedLimit `json:"speedLimits"`
}

type speedLimit struct {
	MaxSpeed  float64 `json:"maxSpeed"`
	SpeedUnit string  `json:"speedUnit"`
}
