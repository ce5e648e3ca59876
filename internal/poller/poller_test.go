package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taisau/ha-road-speed-limits/internal/domain"
	"github.com/taisau/ha-road-speed-limits/internal/observability"
)

const testInterval = 5 * time.Minute

type stubProvider struct {
	mu     sync.Mutex
	kind   domain.ProviderKind
	result domain.SpeedLimitResult
	err    error
	calls  int
}

func (s *stubProvider) Kind() domain.ProviderKind { return s.kind }

func (s *stubProvider) Query(_ context.Context, _ domain.Coordinate, _ int) (domain.SpeedLimitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return domain.SpeedLimitResult{}, s.err
	}
	return s.result, nil
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubPublisher struct {
	mu        sync.Mutex
	err       error
	published []domain.ResolutionOutcome
}

func (s *stubPublisher) Publish(_ context.Context, _ domain.Coordinate, outcome domain.ResolutionOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, outcome)
	return nil
}

func (s *stubPublisher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func osmStub(value int) *stubProvider {
	return &stubProvider{
		kind: domain.ProviderOpenStreetMap,
		result: domain.SpeedLimitResult{
			SpeedValue: domain.IntPtr(value),
			Unit:       domain.UnitKMH,
			RoadName:   "Main Street",
		},
	}
}

func newTestPoller(provider *stubProvider, publisher Publisher, unitPreference string, clk clockwork.Clock) *Poller {
	resolver := domain.NewResolver(
		map[domain.ProviderKind]domain.Provider{provider.kind: provider},
		provider.kind,
		domain.DefaultSearchRadiusMeters,
		discardLogger(),
	)
	return New(
		resolver,
		NewLocationStore(),
		NewStateStore(),
		publisher,
		testInterval,
		unitPreference,
		clk,
		discardLogger(),
		observability.NewMetricsForTesting(),
	)
}

func seedLocation(t *testing.T, p *Poller) {
	t.Helper()
	require.NoError(t, p.UpdateLocation(&domain.LocationSnapshot{State: "45.365097,-123.968731"}, nil))
}

func startPoller(t *testing.T, p *Poller) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitForState(t *testing.T, p *Poller) domain.SensorState {
	t.Helper()
	require.Eventually(t, func() bool {
		_, ok := p.Current()
		return ok
	}, time.Second, 5*time.Millisecond)
	state, _ := p.Current()
	return state
}

func TestPoller_ImmediateFirstCycle(t *testing.T) {
	osm := osmStub(50)
	p := newTestPoller(osm, nil, "", clockwork.NewFakeClock())
	seedLocation(t, p)

	startPoller(t, p)

	state := waitForState(t, p)
	require.NotNil(t, state.State)
	assert.Equal(t, 50, *state.State)
	assert.Equal(t, domain.UnitKMH, state.Unit)
	assert.Equal(t, "Main Street", state.Attributes.RoadName)
	assert.Equal(t, domain.ProviderOpenStreetMap, state.Attributes.ActiveProvider)
	assert.Equal(t, 1, osm.callCount(), "first cycle runs without waiting for a tick")
}

func TestPoller_ResolvesOnTick(t *testing.T) {
	osm := osmStub(50)
	clk := clockwork.NewFakeClock()
	p := newTestPoller(osm, nil, "", clk)
	seedLocation(t, p)

	startPoller(t, p)
	waitForState(t, p)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clk.BlockUntilContext(ctx, 1))

	clk.Advance(testInterval)
	require.Eventually(t, func() bool {
		return osm.callCount() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestPoller_ManualRefresh(t *testing.T) {
	osm := osmStub(50)
	p := newTestPoller(osm, nil, "", clockwork.NewFakeClock())
	seedLocation(t, p)

	startPoller(t, p)
	waitForState(t, p)

	p.TriggerRefresh()
	require.Eventually(t, func() bool {
		return osm.callCount() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestPoller_NoLocationSkipsCycle(t *testing.T) {
	osm := osmStub(50)
	p := newTestPoller(osm, nil, "", clockwork.NewFakeClock())

	startPoller(t, p)

	p.TriggerRefresh()
	require.Eventually(t, func() bool {
		return p.CheckReadiness(context.Background()) != nil
	}, time.Second, 5*time.Millisecond)

	_, ok := p.Current()
	assert.False(t, ok)
	assert.Zero(t, osm.callCount())

	// The location arriving later is picked up by the next refresh.
	seedLocation(t, p)
	p.TriggerRefresh()
	waitForState(t, p)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPoller_InvalidLocationUpdateRejected(t *testing.T) {
	p := newTestPoller(osmStub(50), nil, "", clockwork.NewFakeClock())
	seedLocation(t, p)

	startPoller(t, p)
	waitForState(t, p)

	err := p.UpdateLocation(&domain.LocationSnapshot{State: "91,200"}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidCoordinate)

	// The stored location is untouched; a refresh still resolves.
	p.TriggerRefresh()
	state := waitForState(t, p)
	assert.Equal(t, 45.365097, state.Attributes.Latitude)
}

func TestPoller_UnitPreferenceConversion(t *testing.T) {
	p := newTestPoller(osmStub(50), nil, domain.UnitMPH, clockwork.NewFakeClock())
	seedLocation(t, p)

	startPoller(t, p)

	state := waitForState(t, p)
	require.NotNil(t, state.State)
	assert.Equal(t, 30, *state.State)
	assert.Equal(t, domain.UnitMPH, state.Unit)
}

func TestPoller_DegradedOutcomePublished(t *testing.T) {
	osm := &stubProvider{
		kind: domain.ProviderOpenStreetMap,
		err:  domain.NewProviderFailure(domain.ProviderOpenStreetMap, domain.FailureTimeout, context.DeadlineExceeded),
	}
	p := newTestPoller(osm, nil, "", clockwork.NewFakeClock())
	seedLocation(t, p)

	startPoller(t, p)

	state := waitForState(t, p)
	assert.Nil(t, state.State)
	assert.Equal(t, domain.ProviderOpenStreetMap, state.Attributes.ActiveProvider)
	assert.False(t, state.Attributes.FallbackActive)
}

func TestPoller_PublishesOutcomes(t *testing.T) {
	pub := &stubPublisher{}
	p := newTestPoller(osmStub(50), pub, "", clockwork.NewFakeClock())
	seedLocation(t, p)

	startPoller(t, p)
	waitForState(t, p)

	require.Eventually(t, func() bool {
		return pub.count() == 1
	}, time.Second, 5*time.Millisecond)

	pub.mu.Lock()
	outcome := pub.published[0]
	pub.mu.Unlock()
	assert.Equal(t, domain.ProviderOpenStreetMap, outcome.ActiveProvider)
	require.NotNil(t, outcome.Result.SpeedValue)
	assert.Equal(t, 50, *outcome.Result.SpeedValue)
}

func TestPoller_PublisherFailureIsNonFatal(t *testing.T) {
	pub := &stubPublisher{err: errors.New("broker unreachable")}
	p := newTestPoller(osmStub(50), pub, "", clockwork.NewFakeClock())
	seedLocation(t, p)

	startPoller(t, p)

	state := waitForState(t, p)
	require.NotNil(t, state.State)
	assert.Equal(t, 50, *state.State)
}

func TestPoller_PollingActive(t *testing.T) {
	p := newTestPoller(osmStub(50), nil, "", clockwork.NewFakeClock())
	seedLocation(t, p)

	assert.False(t, p.PollingActive())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, p.PollingActive, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.False(t, p.PollingActive())
}
