// Package poller drives the periodic resolve-and-publish loop: extract the
// current coordinate, resolve its speed limit, publish the sensor state, and
// optionally emit the outcome to Kafka.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/taisau/ha-road-speed-limits/internal/domain"
	"github.com/taisau/ha-road-speed-limits/internal/observability"
)

// Publisher emits a resolution outcome to an external sink.
type Publisher interface {
	Publish(ctx context.Context, coord domain.Coordinate, outcome domain.ResolutionOutcome) error
}

// Poller runs resolution cycles on a fixed interval, with an immediate
// first cycle and a manual refresh trigger.
type Poller struct {
	resolver  *domain.Resolver
	locations *LocationStore
	states    *StateStore
	publisher Publisher
	interval  time.Duration
	unitPref  string
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	refresh   chan struct{}
	ready     atomic.Bool
	polling   atomic.Bool
}

// New creates a Poller. publisher may be nil when outcome publishing is not
// configured.
func New(
	resolver *domain.Resolver,
	locations *LocationStore,
	states *StateStore,
	publisher Publisher,
	interval time.Duration,
	unitPreference string,
	clk clockwork.Clock,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Poller {
	return &Poller{
		resolver:  resolver,
		locations: locations,
		states:    states,
		publisher: publisher,
		interval:  interval,
		unitPref:  unitPreference,
		clock:     clk,
		logger:    logger,
		metrics:   metrics,
		refresh:   make(chan struct{}, 1),
	}
}

// CheckReadiness returns nil once at least one state has been published.
func (p *Poller) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no resolution published yet")
	}
	return nil
}

// PollingActive reports whether the polling loop is currently running.
func (p *Poller) PollingActive() bool {
	return p.polling.Load()
}

// Current returns the latest published sensor state.
func (p *Poller) Current() (domain.SensorState, bool) {
	return p.states.Current()
}

// UpdateLocation validates and replaces the location snapshots the poller
// extracts from.
func (p *Poller) UpdateLocation(primary, secondary *domain.LocationSnapshot) error {
	return p.locations.Set(primary, secondary)
}

// TriggerRefresh requests an out-of-band cycle. The signal is coalesced: a
// refresh requested while one is already pending is a no-op.
func (p *Poller) TriggerRefresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Run executes the polling loop until the context is cancelled. The first
// cycle runs immediately; later cycles run on every interval tick or manual
// refresh.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "interval", p.interval, "data_source", p.resolver.Primary())
	p.metrics.PollerRunning.Set(1)
	defer p.metrics.PollerRunning.Set(0)
	p.polling.Store(true)
	defer p.polling.Store(false)

	p.cycle(ctx)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			p.cycle(ctx)
		case <-p.refresh:
			p.cycle(ctx)
		}
	}
}

// cycle runs one extract-resolve-publish pass. An extraction failure aborts
// only this cycle; the previously published state stays in place.
func (p *Poller) cycle(ctx context.Context) {
	start := time.Now()

	coord, err := p.locations.Coordinate()
	if err != nil {
		p.metrics.ExtractionErrors.Inc()
		p.logger.Warn("coordinate unavailable, keeping previous state", "error", err)
		return
	}

	outcome := p.resolver.Resolve(ctx, coord)
	p.recordOutcome(outcome)

	p.states.Publish(domain.NewSensorState(coord, outcome, p.unitPref))
	p.ready.Store(true)

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, coord, outcome); err != nil {
			p.logger.Warn("publish outcome failed", "error", err)
		} else {
			p.metrics.OutcomesPublished.Inc()
		}
	}

	p.metrics.PollCycles.Inc()
	p.metrics.PollCycleDuration.Observe(time.Since(start).Seconds())
}

func (p *Poller) recordOutcome(outcome domain.ResolutionOutcome) {
	label := "success"
	switch {
	case outcome.Degraded:
		label = "degraded"
	case outcome.Result.SpeedValue == nil:
		label = "no_data"
	}
	p.metrics.Resolutions.WithLabelValues(string(outcome.ActiveProvider), label).Inc()

	if outcome.FallbackActive {
		p.metrics.FallbackActive.Set(1)
	} else {
		p.metrics.FallbackActive.Set(0)
	}
}
