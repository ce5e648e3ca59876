// Package overpass queries the OpenStreetMap Overpass API for the speed
// limit of the nearest tagged road. It needs no credential, which is why it
// doubles as the fallback behind the commercial providers.
package overpass

import (
	"context"
	"encoding/json"
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

// DefaultBaseURL is the public Overpass interpreter endpoint.
const DefaultBaseURL = "https://overpass-api.de/api/interpreter"

// Client implements domain.Provider using the Overpass API.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	unitPreference string
	metrics        *observability.Metrics
	logger         *slog.Logger
}

// NewClient creates an Overpass client. unitPreference is applied to
// maxspeed tags that carry no unit of their own.
func NewClient(baseURL string, timeout time.Duration, unitPreference string, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		unitPreference: unitPreference,
		metrics:        metrics,
		logger:         logger,
	}
}

// Kind identifies this client as the OpenStreetMap provider.
func (c *Client) Kind() domain.ProviderKind {
	return domain.ProviderOpenStreetMap
}

// Query fetches all maxspeed-tagged ways and nodes within radiusMeters of
// the coordinate and returns the nearest one. A response with no usable
// elements is a successful query with a nil SpeedValue.
func (c *Client) Query(ctx context.Context, coord domain.Coordinate, radiusMeters int) (domain.SpeedLimitResult, error) {
	query := fmt.Sprintf(
		`[out:json];(way(around:%d,%f,%f)["maxspeed"];node(around:%d,%f,%f)["maxspeed"];);out body center;`,
		radiusMeters, coord.Latitude, coord.Longitude,
		radiusMeters, coord.Latitude, coord.Longitude,
	)
	form := url.Values{"data": {query}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.SpeedLimitResult{}, c.fail(domain.FailureError, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ProviderRequestDuration.WithLabelValues(string(c.Kind())).Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.SpeedLimitResult{}, c.failWith(domain.TransportFailure(c.Kind(), err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.SpeedLimitResult{}, c.fail(domain.FailureRateLimited, fmt.Errorf("overpass API status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return domain.SpeedLimitResult{}, c.fail(domain.FailureError, fmt.Errorf("overpass API status %d: %s", resp.StatusCode, body))
	}

	var overpassResp response
	if err := json.NewDecoder(resp.Body).Decode(&overpassResp); err != nil {
		return domain.SpeedLimitResult{}, c.fail(domain.FailureError, fmt.Errorf("decode response: %w", err))
	}

	return c.nearest(coord, overpassResp.Elements), nil
}

// nearest picks the element closest to coord among those with a usable
// position and a parseable maxspeed tag.
func (c *Client) nearest(coord domain.Coordinate, elements []element) domain.SpeedLimitResult {
	empty := domain.SpeedLimitResult{
		Unit:   c.unitPreference,
		Source: c.Kind(),
	}

	var (
		best     domain.SpeedLimitResult
		bestDist = math.Inf(1)
		found    bool
	)
	for _, e := range elements {
		lat, lon, ok := e.position()
		if !ok {
			continue
		}
		value, unit, ok := parseMaxspeed(e.Tags["maxspeed"], c.unitPreference)
		if !ok {
			c.logger.Debug("skipping unparseable maxspeed tag",
				"maxspeed", e.Tags["maxspeed"], "element_id", e.ID)
			continue
		}
		dist := haversineMeters(coord.Latitude, coord.Longitude, lat, lon)
		if dist >= bestDist {
			continue
		}
		bestDist = dist
		d := dist
		best = domain.SpeedLimitResult{
			SpeedValue:     value,
			Unit:           unit,
			RoadName:       e.Tags["name"],
			DistanceMeters: &d,
			Source:         c.Kind(),
		}
		found = true
	}

	if !found {
		return empty
	}
	return best
}

func (c *Client) fail(kind domain.FailureKind, err error) error {
	return c.failWith(domain.NewProviderFailure(c.Kind(), kind, err))
}

func (c *Client) failWith(failure *domain.ProviderFailure) error {
	c.metrics.ProviderFailures.WithLabelValues(string(c.Kind()), string(failure.Kind)).Inc()
	return failure
}

// parseMaxspeed interprets an OSM maxspeed tag value. Unit-less numbers take
// defaultUnit; "none" and "unlimited" are roads without a numeric limit and
// map to a nil value.
func parseMaxspeed(raw, defaultUnit string) (*int, string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "":
		return nil, "", false
	case "none", "unlimited":
		return nil, defaultUnit, true
	}

	unit := defaultUnit
	switch {
	case strings.HasSuffix(s, "mph"):
		unit = domain.UnitMPH
		s = strings.TrimSpace(strings.TrimSuffix(s, "mph"))
	case strings.HasSuffix(s, "km/h"):
		unit = domain.UnitKMH
		s = strings.TrimSpace(strings.TrimSuffix(s, "km/h"))
	case strings.HasSuffix(s, "kmh"):
		unit = domain.UnitKMH
		s = strings.TrimSpace(strings.TrimSuffix(s, "kmh"))
	}

	value, err := strconv.Atoi(s)
	if err != nil {
		return nil, "", false
	}
	return domain.IntPtr(value), unit, true
}

const earthRadiusMeters = 6371000

// haversineMeters is the great-circle distance between two coordinates.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}

// Overpass API response types.

type response struct {
	Elements []element `json:"elements"`
}

type element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *position         `json:"center"`
	Bounds *bounds           `json:"bounds"`
	Tags   map[string]string `json:"tags"`
}

type position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type bounds struct {
	MinLat float64 `json:"minlat"`
	MinLon float64 `json:"minlon"`
	MaxLat float64 `json:"maxlat"`
	MaxLon float64 `json:"maxlon"`
}

// position returns the element's representative coordinate: the node's own
// position, a way's center, or the bounding-box midpoint.
func (e element) position() (lat, lon float64, ok bool) {
	switch {
	case e.Type == "node":
		return e.Lat, e.Lon, true
	case e.Center != nil:
		return e.Center.Lat, e.Center.Lon, true
	case e.Bounds != nil:
		return (e.Bounds.MinLat + e.Bounds.MaxLat) / 2, (e.Bounds.MinLon + e.Bounds.MaxLon) / 2, true
	default:
		return 0, 0, false
	}
}
