package domain

import "time"

// SensorAttributes is the metadata published alongside each reading.
type SensorAttributes struct {
	Latitude       float64      `json:"latitude"`
	Longitude      float64      `json:"longitude"`
	RoadName       string       `json:"road_name,omitempty"`
	Timezone       string       `json:"timezone,omitempty"`
	DataSource     ProviderKind `json:"data_source"`
	ActiveProvider ProviderKind `json:"active_provider"`
	FallbackActive bool         `json:"fallback_active"`
	LastUpdate     time.Time    `json:"last_update"`
}

// SensorState is the published per-cycle value: the numeric speed limit (nil
// renders as "unknown"), its unit, and the resolution metadata. Each cycle's
// state supersedes the previous one; no history is retained.
type SensorState struct {
	State      *int             `json:"state"`
	Unit       string           `json:"unit"`
	Attributes SensorAttributes `json:"attributes"`
}

// NewSensorState builds the published state from a resolution outcome,
// converting the speed value to the preferred unit when one is set.
func NewSensorState(coord Coordinate, outcome ResolutionOutcome, unitPreference string) SensorState {
	value := outcome.Result.SpeedValue
	unit := outcome.Result.Unit
	if unit == "" {
		unit = UnitKMH
	}
	if unitPreference != "" {
		value = ConvertSpeed(value, unit, unitPreference)
		unit = unitPreference
	}
	return SensorState{
		State: value,
		Unit:  unit,
		Attributes: SensorAttributes{
			Latitude:       coord.Latitude,
			Longitude:      coord.Longitude,
			RoadName:       outcome.Result.RoadName,
			Timezone:       outcome.Result.Timezone,
			DataSource:     outcome.DataSource,
			ActiveProvider: outcome.ActiveProvider,
			FallbackActive: outcome.FallbackActive,
			LastUpdate:     outcome.Result.Timestamp,
		},
	}
}
