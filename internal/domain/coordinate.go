package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ErrCoordinateUnavailable indicates the location source (or one of its
// values) does not exist, so no coordinate can be extracted this cycle.
var ErrCoordinateUnavailable = errors.New("coordinate unavailable")

// ErrInvalidCoordinate is the sentinel matched by errors.Is for any
// InvalidCoordinateError.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// InvalidCoordinateError reports a value that could not be used as a
// coordinate component, naming the offending value so callers can surface a
// precise diagnostic.
type InvalidCoordinateError struct {
	Field  string // "latitude" or "longitude"
	Value  string
	Reason string
}

func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("invalid coordinate: %s %q %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidCoordinateError) Unwrap() error { return ErrInvalidCoordinate }

// NewCoordinate validates ranges and returns a Coordinate.
// Latitude must lie in [-90,90], longitude in [-180,180].
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	if lat < -90 || lat > 90 {
		return Coordinate{}, &InvalidCoordinateError{
			Field:  "latitude",
			Value:  strconv.FormatFloat(lat, 'f', -1, 64),
			Reason: "out of range -90..90",
		}
	}
	if lon < -180 || lon > 180 {
		return Coordinate{}, &InvalidCoordinateError{
			Field:  "longitude",
			Value:  strconv.FormatFloat(lon, 'f', -1, 64),
			Reason: "out of range -180..180",
		}
	}
	return Coordinate{Latitude: lat, Longitude: lon}, nil
}

// LocationSnapshot is a point-in-time view of a location source: a primary
// textual state plus optional attributes, matching the shapes that GPS
// trackers and location sensors publish.
type LocationSnapshot struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// available reports whether the snapshot carries a usable primary value.
func (s *LocationSnapshot) available() bool {
	if s == nil {
		return false
	}
	switch strings.TrimSpace(s.State) {
	case "", "unknown", "unavailable":
		return false
	}
	return true
}

// ExtractCoordinate resolves a coordinate from location snapshots, trying
// strategies in fixed priority order, first structural match wins:
//
//  1. latitude/longitude attributes on the primary snapshot
//  2. a combined "<lat>,<lon>" primary state
//  3. separate numeric states: latitude on primary, longitude on secondary
//
// Whichever strategy applies, ranges are validated before returning.
func ExtractCoordinate(primary, secondary *LocationSnapshot) (Coordinate, error) {
	if primary != nil && primary.Attributes != nil {
		latRaw, hasLat := primary.Attributes["latitude"]
		lonRaw, hasLon := primary.Attributes["longitude"]
		if hasLat && hasLon {
			lat, err := attributeFloat("latitude", latRaw)
			if err != nil {
				return Coordinate{}, err
			}
			lon, err := attributeFloat("longitude", lonRaw)
			if err != nil {
				return Coordinate{}, err
			}
			return NewCoordinate(lat, lon)
		}
	}

	if !primary.available() {
		return Coordinate{}, fmt.Errorf("%w: no location state", ErrCoordinateUnavailable)
	}

	if strings.Contains(primary.State, ",") {
		return parseCombinedState(primary.State)
	}

	lat, err := stateFloat("latitude", primary)
	if err != nil {
		return Coordinate{}, err
	}
	if !secondary.available() {
		return Coordinate{}, fmt.Errorf("%w: no longitude source", ErrCoordinateUnavailable)
	}
	lon, err := stateFloat("longitude", secondary)
	if err != nil {
		return Coordinate{}, err
	}
	return NewCoordinate(lat, lon)
}

// parseCombinedState splits a "<lat>,<lon>" string and parses both halves.
func parseCombinedState(state string) (Coordinate, error) {
	parts := strings.SplitN(state, ",", 2)
	lat, err := parseComponent("latitude", parts[0])
	if err != nil {
		return Coordinate{}, err
	}
	lon, err := parseComponent("longitude", parts[1])
	if err != nil {
		return Coordinate{}, err
	}
	return NewCoordinate(lat, lon)
}

func parseComponent(field, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &InvalidCoordinateError{Field: field, Value: raw, Reason: "is not a number"}
	}
	return v, nil
}

func stateFloat(field string, s *LocationSnapshot) (float64, error) {
	if !s.available() {
		return 0, fmt.Errorf("%w: no %s source", ErrCoordinateUnavailable, field)
	}
	return parseComponent(field, s.State)
}

// attributeFloat converts an attribute value to float64. Trackers publish
// coordinates as JSON numbers, but string values occur in the wild too.
func attributeFloat(field string, raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return parseComponent(field, v)
	case fmt.Stringer:
		return parseComponent(field, v.String())
	default:
		return 0, &InvalidCoordinateError{
			Field:  field,
			Value:  fmt.Sprintf("%v", raw),
			Reason: "is not a number",
		}
	}
}
