// Package domain models road speed limit resolution.
//
// # Resolution model
//
// A poll cycle turns a location snapshot into a [Coordinate] (see
// [ExtractCoordinate]), then asks the [Resolver] for the legal speed limit of
// the nearest road. The resolver queries the configured primary provider and,
// when that provider fails, transparently falls back to OpenStreetMap, which
// needs no credential. The final [ResolutionOutcome] records which provider
// actually served the answer and whether the fallback was used.
//
// # Providers
//
// Three providers are supported ([ProviderKind]):
//
//	openstreetmap  Overpass API, public, always available as fallback
//	tomtom         Reverse geocoding with returnSpeedLimit, needs an API key
//	here           Revgeocode with navigation attributes, needs an API key
//
// Each client performs exactly one read-only network request per query and
// normalizes the provider's native schema into a [SpeedLimitResult]. A result
// with a nil SpeedValue means "no road data near this point" and is a valid
// answer, distinct from a query failure.
//
// # Failure taxonomy
//
// Coordinate extraction fails with [ErrCoordinateUnavailable] (the source
// does not exist or has no usable value) or [InvalidCoordinateError] (a value
// is out of range or unparseable). Extraction failures abort the cycle.
//
// Provider queries fail with [ProviderFailure], classified as unavailable
// (missing or rejected credential), timeout, rate_limited, or error
// (malformed or unexpected response). The resolver absorbs all four kinds
// into the fallback protocol and never returns an error itself: when both
// the primary and the fallback fail, it produces a degraded outcome with a
// nil speed value.
//
// # Units
//
// Speed limits are expressed in km/h or mph. [ConvertSpeed] translates
// between the two; mph values are floored to the next multiple of 5 to match
// posted US signage.
package domain
