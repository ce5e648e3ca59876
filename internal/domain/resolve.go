package domain

import (
	"context"
	"log/slog"
)

// Resolver orchestrates speed limit resolution across providers: the
// configured primary first, then OpenStreetMap as fallback. It holds no
// cross-call mutable state; each Resolve is a pure function of its inputs
// and the registered clients.
type Resolver struct {
	providers map[ProviderKind]Provider
	primary   ProviderKind
	radius    int
	logger    *slog.Logger
}

// NewResolver creates a Resolver over an explicit provider registry. The
// registry must contain the primary kind and ProviderOpenStreetMap.
func NewResolver(providers map[ProviderKind]Provider, primary ProviderKind, radiusMeters int, logger *slog.Logger) *Resolver {
	if radiusMeters <= 0 {
		radiusMeters = DefaultSearchRadiusMeters
	}
	return &Resolver{
		providers: providers,
		primary:   primary,
		radius:    radiusMeters,
		logger:    logger,
	}
}

// Primary returns the configured primary provider kind.
func (r *Resolver) Primary() ProviderKind { return r.primary }

// Resolve queries the primary provider and falls back to OpenStreetMap on
// any provider failure. It never returns an error: when the fallback fails
// too, the outcome degrades to a nil speed value. Each provider is attempted
// at most once; recovery is deferred to the next cycle, which re-attempts
// the primary first.
func (r *Resolver) Resolve(ctx context.Context, coord Coordinate) ResolutionOutcome {
	result, err := r.providers[r.primary].Query(ctx, coord, r.radius)
	if err == nil {
		return r.outcome(result, r.primary, false)
	}

	if r.primary == ProviderOpenStreetMap {
		// No further fallback exists.
		r.logger.Error("speed limit resolution failed",
			"provider", r.primary,
			"failure_kind", FailureKindOf(err),
			"latitude", coord.Latitude,
			"longitude", coord.Longitude,
			"error", err,
		)
		return r.degraded(coord, false)
	}

	r.logger.Warn("primary provider failed, falling back to OpenStreetMap",
		"provider", r.primary,
		"failure_kind", FailureKindOf(err),
		"latitude", coord.Latitude,
		"longitude", coord.Longitude,
		"error", err,
	)

	result, fbErr := r.providers[ProviderOpenStreetMap].Query(ctx, coord, r.radius)
	if fbErr == nil {
		return r.outcome(result, ProviderOpenStreetMap, true)
	}

	r.logger.Error("OpenStreetMap fallback also failed",
		"primary", r.primary,
		"failure_kind", FailureKindOf(fbErr),
		"latitude", coord.Latitude,
		"longitude", coord.Longitude,
		"error", fbErr,
	)
	return r.degraded(coord, true)
}

func (r *Resolver) outcome(result SpeedLimitResult, active ProviderKind, fallback bool) ResolutionOutcome {
	result.Source = active
	result.Timestamp = clock.Now()
	return ResolutionOutcome{
		Result:         result,
		DataSource:     r.primary,
		ActiveProvider: active,
		FallbackActive: fallback,
	}
}

// degraded builds the null-speed outcome produced when every attempted
// provider failed. ActiveProvider names the last attempted provider, which
// with the fixed primary-then-OSM order is OpenStreetMap whenever a fallback
// was attempted.
func (r *Resolver) degraded(_ Coordinate, fallback bool) ResolutionOutcome {
	active := r.primary
	if fallback {
		active = ProviderOpenStreetMap
	}
	return ResolutionOutcome{
		Result: SpeedLimitResult{
			SpeedValue: nil,
			Unit:       UnitKMH,
			Source:     active,
			Timestamp:  clock.Now(),
		},
		DataSource:     r.primary,
		ActiveProvider: active,
		FallbackActive: fallback,
		Degraded:       true,
	}
}
