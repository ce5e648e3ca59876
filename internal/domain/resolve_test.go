package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stub provider ---

type stubProvider struct {
	kind   ProviderKind
	result SpeedLimitResult
	err    error
	calls  int
}

func (s *stubProvider) Kind() ProviderKind { return s.kind }

func (s *stubProvider) Query(_ context.Context, _ Coordinate, _ int) (SpeedLimitResult, error) {
	s.calls++
	if s.err != nil {
		return SpeedLimitResult{}, s.err
	}
	return s.result, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCoord(t *testing.T) Coordinate {
	t.Helper()
	coord, err := NewCoordinate(45.365097, -123.968731)
	require.NoError(t, err)
	return coord
}

func newResolver(primary ProviderKind, providers ...*stubProvider) *Resolver {
	registry := make(map[ProviderKind]Provider, len(providers))
	for _, p := range providers {
		registry[p.kind] = p
	}
	return NewResolver(registry, primary, DefaultSearchRadiusMeters, discardLogger())
}

// --- tests ---

func TestResolve_PrimarySuccess(t *testing.T) {
	tomtom := &stubProvider{
		kind: ProviderTomTom,
		result: SpeedLimitResult{
			SpeedValue: IntPtr(50),
			Unit:       UnitKMH,
			RoadName:   "Main St",
		},
	}
	osm := &stubProvider{kind: ProviderOpenStreetMap}

	outcome := newResolver(ProviderTomTom, tomtom, osm).Resolve(context.Background(), testCoord(t))

	assert.Equal(t, ProviderTomTom, outcome.ActiveProvider)
	assert.False(t, outcome.FallbackActive)
	require.NotNil(t, outcome.Result.SpeedValue)
	assert.Equal(t, 50, *outcome.Result.SpeedValue)
	assert.Equal(t, "Main St", outcome.Result.RoadName)
	assert.Equal(t, ProviderTomTom, outcome.Result.Source)
	assert.False(t, outcome.Degraded)
	assert.Equal(t, 1, tomtom.calls)
	assert.Equal(t, 0, osm.calls)
}

func TestResolve_OSMPrimaryNeverFallsBack(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		osm := &stubProvider{
			kind:   ProviderOpenStreetMap,
			result: SpeedLimitResult{SpeedValue: IntPtr(30), Unit: UnitKMH},
		}

		outcome := newResolver(ProviderOpenStreetMap, osm).Resolve(context.Background(), testCoord(t))

		assert.False(t, outcome.FallbackActive)
		assert.Equal(t, ProviderOpenStreetMap, outcome.ActiveProvider)
		assert.Equal(t, 1, osm.calls)
	})

	t.Run("failure degrades without fallback", func(t *testing.T) {
		osm := &stubProvider{
			kind: ProviderOpenStreetMap,
			err:  NewProviderFailure(ProviderOpenStreetMap, FailureTimeout, context.DeadlineExceeded),
		}

		outcome := newResolver(ProviderOpenStreetMap, osm).Resolve(context.Background(), testCoord(t))

		assert.False(t, outcome.FallbackActive)
		assert.Equal(t, ProviderOpenStreetMap, outcome.ActiveProvider)
		assert.Nil(t, outcome.Result.SpeedValue)
		assert.True(t, outcome.Degraded)
		assert.Equal(t, 1, osm.calls)
	})
}

func TestResolve_FallbackOnProviderFailure(t *testing.T) {
	kinds := []FailureKind{FailureUnavailable, FailureTimeout, FailureRateLimited, FailureError}

	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			tomtom := &stubProvider{
				kind: ProviderTomTom,
				err:  NewProviderFailure(ProviderTomTom, kind, errors.New("stub failure")),
			}
			osm := &stubProvider{
				kind:   ProviderOpenStreetMap,
				result: SpeedLimitResult{SpeedValue: IntPtr(30), Unit: UnitKMH},
			}

			outcome := newResolver(ProviderTomTom, tomtom, osm).Resolve(context.Background(), testCoord(t))

			assert.Equal(t, ProviderOpenStreetMap, outcome.ActiveProvider)
			assert.True(t, outcome.FallbackActive)
			assert.Equal(t, ProviderTomTom, outcome.DataSource)
			require.NotNil(t, outcome.Result.SpeedValue)
			assert.Equal(t, 30, *outcome.Result.SpeedValue)
			assert.Equal(t, 1, tomtom.calls)
			assert.Equal(t, 1, osm.calls)
		})
	}
}

func TestResolve_MissingCredentialFallsBack(t *testing.T) {
	here := &stubProvider{
		kind: ProviderHere,
		err:  NewProviderFailure(ProviderHere, FailureUnavailable, errors.New("api key not configured")),
	}
	osm := &stubProvider{
		kind:   ProviderOpenStreetMap,
		result: SpeedLimitResult{SpeedValue: IntPtr(30), Unit: UnitKMH},
	}

	outcome := newResolver(ProviderHere, here, osm).Resolve(context.Background(), testCoord(t))

	assert.Equal(t, ProviderOpenStreetMap, outcome.ActiveProvider)
	assert.True(t, outcome.FallbackActive)
	require.NotNil(t, outcome.Result.SpeedValue)
	assert.Equal(t, 30, *outcome.Result.SpeedValue)
}

func TestResolve_BothFail_DegradedOutcome(t *testing.T) {
	tomtom := &stubProvider{
		kind: ProviderTomTom,
		err:  NewProviderFailure(ProviderTomTom, FailureRateLimited, errors.New("status 429")),
	}
	osm := &stubProvider{
		kind: ProviderOpenStreetMap,
		err:  NewProviderFailure(ProviderOpenStreetMap, FailureError, errors.New("status 503")),
	}

	outcome := newResolver(ProviderTomTom, tomtom, osm).Resolve(context.Background(), testCoord(t))

	assert.Nil(t, outcome.Result.SpeedValue)
	assert.True(t, outcome.Degraded)
	assert.True(t, outcome.FallbackActive)
	assert.Equal(t, ProviderOpenStreetMap, outcome.ActiveProvider)
	assert.Equal(t, ProviderTomTom, outcome.DataSource)
	assert.False(t, outcome.Result.Timestamp.IsZero())
}

func TestResolve_NullSpeedSuccessIsTerminal(t *testing.T) {
	// A successful response with no speed data is a valid answer and must
	// not trigger the fallback.
	tomtom := &stubProvider{
		kind:   ProviderTomTom,
		result: SpeedLimitResult{SpeedValue: nil, Unit: UnitKMH},
	}
	osm := &stubProvider{kind: ProviderOpenStreetMap}

	outcome := newResolver(ProviderTomTom, tomtom, osm).Resolve(context.Background(), testCoord(t))

	assert.Nil(t, outcome.Result.SpeedValue)
	assert.False(t, outcome.Degraded)
	assert.Equal(t, ProviderTomTom, outcome.ActiveProvider)
	assert.False(t, outcome.FallbackActive)
	assert.Equal(t, 0, osm.calls)
}

func TestResolve_Idempotent(t *testing.T) {
	fixedTime := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixedTime))
	defer SetClock(nil)

	tomtom := &stubProvider{
		kind: ProviderTomTom,
		result: SpeedLimitResult{
			SpeedValue: IntPtr(50),
			Unit:       UnitKMH,
			RoadName:   "Main St",
		},
	}
	osm := &stubProvider{kind: ProviderOpenStreetMap}
	resolver := newResolver(ProviderTomTom, tomtom, osm)

	first := resolver.Resolve(context.Background(), testCoord(t))
	second := resolver.Resolve(context.Background(), testCoord(t))

	assert.Equal(t, first, second)
	assert.Equal(t, fixedTime, first.Result.Timestamp)
}
