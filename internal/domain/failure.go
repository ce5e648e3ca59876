package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FailureKind classifies why a provider query failed. The resolver treats
// all kinds uniformly as "this provider is down right now"; the distinction
// exists for diagnostics and metrics.
type FailureKind string

const (
	FailureUnavailable FailureKind = "unavailable"  // missing or rejected credential
	FailureTimeout     FailureKind = "timeout"      // request deadline exceeded
	FailureRateLimited FailureKind = "rate_limited" // HTTP 429
	FailureError       FailureKind = "error"        // malformed or unexpected response
)

// ProviderFailure wraps a provider query error with its source and kind.
type ProviderFailure struct {
	Provider ProviderKind
	Kind     FailureKind
	Err      error
}

func (e *ProviderFailure) Error() string {
	return fmt.Sprintf("%s provider %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderFailure) Unwrap() error { return e.Err }

// NewProviderFailure builds a classified provider failure.
func NewProviderFailure(provider ProviderKind, kind FailureKind, err error) *ProviderFailure {
	return &ProviderFailure{Provider: provider, Kind: kind, Err: err}
}

// TransportFailure classifies a transport-level error from an HTTP client.
// Deadline and network timeouts map to FailureTimeout, everything else to
// FailureError.
func TransportFailure(provider ProviderKind, err error) *ProviderFailure {
	kind := FailureError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = FailureTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = FailureTimeout
	}
	return &ProviderFailure{Provider: provider, Kind: kind, Err: err}
}

// FailureKindOf extracts the kind from a provider error, defaulting to
// FailureError for unclassified errors.
func FailureKindOf(err error) FailureKind {
	var pf *ProviderFailure
	if errors.As(err, &pf) {
		return pf.Kind
	}
	return FailureError
}
