package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Speed limit units.
const (
	UnitKMH = "km/h"
	UnitMPH = "mph"
)

// DefaultSearchRadiusMeters bounds the nearest-road search around the
// queried coordinate.
const DefaultSearchRadiusMeters = 50

// ProviderKind identifies a speed limit data source.
type ProviderKind string

const (
	ProviderOpenStreetMap ProviderKind = "openstreetmap"
	ProviderTomTom        ProviderKind = "tomtom"
	ProviderHere          ProviderKind = "here"
)

// ParseProviderKind maps a configuration string to a ProviderKind.
func ParseProviderKind(s string) (ProviderKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openstreetmap", "osm":
		return ProviderOpenStreetMap, nil
	case "tomtom":
		return ProviderTomTom, nil
	case "here":
		return ProviderHere, nil
	default:
		return "", fmt.Errorf("unknown provider %q (want openstreetmap, tomtom, or here)", s)
	}
}

// DisplayName returns the provider's user-facing name.
func (k ProviderKind) DisplayName() string {
	switch k {
	case ProviderOpenStreetMap:
		return "OpenStreetMap"
	case ProviderTomTom:
		return "TomTom"
	case ProviderHere:
		return "HERE"
	default:
		return string(k)
	}
}

// SpeedLimitResult is a provider response normalized into the common schema.
// A nil SpeedValue means the provider answered but found no speed limit data
// near the coordinate.
type SpeedLimitResult struct {
	SpeedValue     *int         `json:"speed_value"`
	Unit           string       `json:"unit"`
	RoadName       string       `json:"road_name,omitempty"`
	Timezone       string       `json:"timezone,omitempty"` // HERE only
	DistanceMeters *float64     `json:"distance_m,omitempty"`
	Source         ProviderKind `json:"source"`
	Timestamp      time.Time    `json:"timestamp"`
}

// ResolutionOutcome is the resolver's final product for one poll cycle.
// ActiveProvider names whichever provider actually produced Result;
// FallbackActive is true iff that differs from the configured DataSource.
// Degraded marks cycles where every attempted provider failed; a Degraded
// outcome always carries a nil SpeedValue, but not vice versa (a provider
// can succeed while knowing no limit for the road).
type ResolutionOutcome struct {
	Result         SpeedLimitResult `json:"result"`
	DataSource     ProviderKind     `json:"data_source"`
	ActiveProvider ProviderKind     `json:"active_provider"`
	FallbackActive bool             `json:"fallback_active"`
	Degraded       bool             `json:"degraded"`
}

// Provider fetches the speed limit of the nearest road to a coordinate.
// Implementations issue exactly one read-only network request per call and
// return a *ProviderFailure on any failure.
type Provider interface {
	Kind() ProviderKind
	Query(ctx context.Context, coord Coordinate, radiusMeters int) (SpeedLimitResult, error)
}

// IntPtr returns a pointer to v. Convenience for building results.
func IntPtr(v int) *int { return &v }
