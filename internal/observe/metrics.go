// Package observe holds the server's OpenTelemetry metric instruments and
// the provider that exports them to Prometheus.
//
// Tests should build a Metrics with NewMetrics over their own
// MeterProvider to avoid sharing instruments between tests.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/satriahrh/sayword"

// Metrics holds all metric instruments. Safe for concurrent use.
type Metrics struct {
	// Adjudications counts decided attempts by verdict (exact, homophone,
	// miss, skipped)
	Adjudications metric.Int64Counter

	// RecognitionErrors counts aborted listening sessions by error kind
	RecognitionErrors metric.Int64Counter

	// DuplicateResults counts results dropped by the in-flight guard
	DuplicateResults metric.Int64Counter

	// GamesFinished counts games by status (completed, abandoned)
	GamesFinished metric.Int64Counter

	// ProviderRequests counts calls to external providers by provider,
	// kind and status
	ProviderRequests metric.Int64Counter

	// ProviderDuration tracks external provider latency
	ProviderDuration metric.Float64Histogram

	// ActiveClients tracks connected game sockets
	ActiveClients metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP handler latency by method and route
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates all instruments on the given provider
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Adjudications, err = m.Int64Counter("sayword.adjudications",
		metric.WithDescription("Decided attempts by verdict."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionErrors, err = m.Int64Counter("sayword.recognition.errors",
		metric.WithDescription("Aborted listening sessions by error kind."),
	); err != nil {
		return nil, err
	}
	if met.DuplicateResults, err = m.Int64Counter("sayword.recognition.duplicates",
		metric.WithDescription("Results dropped while another adjudication was in flight."),
	); err != nil {
		return nil, err
	}
	if met.GamesFinished, err = m.Int64Counter("sayword.games.finished",
		metric.WithDescription("Finished games by status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("sayword.provider.requests",
		metric.WithDescription("External provider requests by provider, kind and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("sayword.provider.duration",
		metric.WithDescription("Latency of external provider requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveClients, err = m.Int64UpDownCounter("sayword.active_clients",
		metric.WithDescription("Connected game sockets."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("sayword.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
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

// DefaultMetrics returns the package-level Metrics built on the global
// provider
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

// RecordAdjudication counts one decided attempt
func (m *Metrics) RecordAdjudication(ctx context.Context, verdict string) {
	m.Adjudications.Add(ctx, 1, metric.WithAttributes(attribute.String("verdict", verdict)))
}

// RecordRecognitionError counts one aborted listening session
func (m *Metrics) RecordRecognitionError(ctx context.Context, kind string) {
	m.RecognitionErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordGameFinished counts one finished game
func (m *Metrics) RecordGameFinished(ctx context.Context, status string) {
	m.GamesFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordProviderRequest counts one provider call and its latency
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	)
	m.ProviderRequests.Add(ctx, 1, attrs)
	m.ProviderDuration.Record(ctx, seconds, attrs)
}
