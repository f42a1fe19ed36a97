// Package observe provides the OpenTelemetry metric instruments of the
// simulator and the Prometheus bridge that exposes them on /metrics.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) records into
// the global meter provider. Tests should use [NewMetrics] with their own
// provider to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/ethanmclark1/conav-suite"

// Metrics holds every instrument. All fields are safe for concurrent use.
type Metrics struct {
	// Episodes counts finished episodes. Attributes: scenario, outcome.
	Episodes metric.Int64Counter

	// Rounds counts completed stepping rounds across all episodes.
	Rounds metric.Int64Counter

	// EpisodeRounds is the distribution of rounds per episode.
	EpisodeRounds metric.Int64Histogram

	// PlacementRestarts counts discarded layouts. Attribute: scenario.
	PlacementRestarts metric.Int64Counter

	// MotionTicks counts scripted-motion updates. Attribute: policy.
	MotionTicks metric.Int64Counter

	// ActiveHazards tracks dynamic obstacles currently driven by a motion task.
	ActiveHazards metric.Int64UpDownCounter

	// HTTPRequestDuration tracks API latency. Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

var roundBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Episodes, err = m.Int64Counter("navsim.episodes",
		metric.WithDescription("Finished episodes by scenario and outcome."),
	); err != nil {
		return nil, err
	}
	if met.Rounds, err = m.Int64Counter("navsim.rounds",
		metric.WithDescription("Completed stepping rounds."),
	); err != nil {
		return nil, err
	}
	if met.EpisodeRounds, err = m.Int64Histogram("navsim.episode.rounds",
		metric.WithDescription("Rounds played per episode."),
		metric.WithExplicitBucketBoundaries(roundBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlacementRestarts, err = m.Int64Counter("navsim.placement.restarts",
		metric.WithDescription("Layouts discarded because a draw ran out of attempts."),
	); err != nil {
		return nil, err
	}
	if met.MotionTicks, err = m.Int64Counter("navsim.motion.ticks",
		metric.WithDescription("Scripted motion updates by policy."),
	); err != nil {
		return nil, err
	}
	if met.ActiveHazards, err = m.Int64UpDownCounter("navsim.active_hazards",
		metric.WithDescription("Dynamic obstacles currently in motion."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("navsim.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance, created on first call
// from [otel.GetMeterProvider]. Call [InitProvider] first if the instruments
// should be exported.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordEpisode records one finished episode.
func (m *Metrics) RecordEpisode(ctx context.Context, scenario, outcome string, rounds int) {
	m.Episodes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scenario", scenario),
		attribute.String("outcome", outcome),
	))
	m.EpisodeRounds.Record(ctx, int64(rounds), metric.WithAttributes(
		attribute.String("scenario", scenario),
	))
}

// RecordRestarts records discarded layouts for one reset. Zero is ignored.
func (m *Metrics) RecordRestarts(ctx context.Context, scenario string, n int) {
	if n <= 0 {
		return
	}
	m.PlacementRestarts.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("scenario", scenario),
	))
}

// RecordMotionTick records one scripted-motion update.
func (m *Metrics) RecordMotionTick(ctx context.Context, policy string) {
	m.MotionTicks.Add(ctx, 1, metric.WithAttributes(attribute.String("policy", policy)))
}
