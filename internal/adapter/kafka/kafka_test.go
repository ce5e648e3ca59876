package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taisau/ha-road-speed-limits/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	resolvedAt := time.Date(2026, 8, 25, 15, 10, 0, 0, time.UTC)
	coord, err := domain.NewCoordinate(45.365097, -123.968731)
	require.NoError(t, err)

	outcome := domain.ResolutionOutcome{
		Result: domain.SpeedLimitResult{
			SpeedValue: domain.IntPtr(50),
			Unit:       domain.UnitKMH,
			RoadName:   "Main Street",
			Source:     domain.ProviderOpenStreetMap,
			Timestamp:  resolvedAt,
		},
		DataSource:     domain.ProviderTomTom,
		ActiveProvider: domain.ProviderOpenStreetMap,
		FallbackActive: true,
	}

	msg, err := serializeToMessage(coord, outcome)
	require.NoError(t, err)

	assert.Equal(t, []byte("tomtom"), msg.Key)
	assert.Contains(t, string(msg.Value), `"speed_value":50`)
	assert.Contains(t, string(msg.Value), `"latitude":45.365097`)
	assert.Contains(t, string(msg.Value), `"fallback_active":true`)

	require.Len(t, msg.Headers, 3)
	assert.Equal(t, kafkago.Header{Key: "active_provider", Value: []byte("openstreetmap")}, msg.Headers[0])
	assert.Equal(t, kafkago.Header{Key: "fallback_active", Value: []byte("true")}, msg.Headers[1])
	assert.Equal(t, kafkago.Header{Key: "resolved_at", Value: []byte(resolvedAt.Format(time.RFC3339))}, msg.Headers[2])
}

func TestSerializeToMessage_NullSpeed(t *testing.T) {
	coord, err := domain.NewCoordinate(45.365097, -123.968731)
	require.NoError(t, err)

	outcome := domain.ResolutionOutcome{
		Result: domain.SpeedLimitResult{
			Unit:      domain.UnitKMH,
			Source:    domain.ProviderOpenStreetMap,
			Timestamp: time.Date(2026, 8, 25, 15, 10, 0, 0, time.UTC),
		},
		DataSource:     domain.ProviderOpenStreetMap,
		ActiveProvider: domain.ProviderOpenStreetMap,
	}

	msg, err := serializeToMessage(coord, outcome)
	require.NoError(t, err)

	assert.Equal(t, []byte("openstreetmap"), msg.Key)
	assert.Contains(t, string(msg.Value), `"speed_value":null`)
}
