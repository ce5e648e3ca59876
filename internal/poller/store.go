package poller

import (
	"sync"

	"github.com/taisau/ha-road-speed-limits/internal/domain"
)

// LocationStore holds the current location snapshots the poller extracts
// from. Snapshots are replaced wholesale; extraction runs fresh every cycle
// so a tracker pushing partial updates is picked up on the next tick.
type LocationStore struct {
	mu        sync.RWMutex
	primary   *domain.LocationSnapshot
	secondary *domain.LocationSnapshot
}

// NewLocationStore creates an empty store. Coordinate returns
// ErrCoordinateUnavailable until the first Set.
func NewLocationStore() *LocationStore {
	return &LocationStore{}
}

// Set validates the snapshots by running the extractor and replaces the
// stored pair. Invalid snapshots are rejected without touching the current
// location.
func (s *LocationStore) Set(primary, secondary *domain.LocationSnapshot) error {
	if _, err := domain.ExtractCoordinate(primary, secondary); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.primary = primary
	s.secondary = secondary
	return nil
}

// Coordinate extracts the current coordinate from the stored snapshots.
func (s *LocationStore) Coordinate() (domain.Coordinate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.primary == nil {
		return domain.Coordinate{}, domain.ErrCoordinateUnavailable
	}
	return domain.ExtractCoordinate(s.primary, s.secondary)
}

// StateStore holds the most recently published sensor state. Each cycle's
// state supersedes the previous one; no history is retained.
type StateStore struct {
	mu    sync.RWMutex
	state domain.SensorState
	set   bool
}

// NewStateStore creates an empty store.
func NewStateStore() *StateStore {
	return &StateStore{}
}

// Publish replaces the current state.
func (s *StateStore) Publish(state domain.SensorState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.set = true
}

// Current returns the latest state and whether one has been published yet.
func (s *StateStore) Current() (domain.SensorState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.set
}
