// Package observability exposes replay progress as OpenTelemetry metric
// instruments exported through a Prometheus scrape endpoint. Metrics are
// opt-in; ObserveAccessInfo on a nil *Metrics is a no-op.
package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"

	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/datatier/cachesim/internal/cache"
)

// meterName identifies the instrument scope.
const meterName = "github.com/datatier/cachesim"

// Metrics holds the replay instruments.
type Metrics struct {
	accesses     metric.Int64Counter
	bytesHit     metric.Int64Counter
	bytesMissed  metric.Int64Counter
	bytesAdded   metric.Int64Counter
	bytesRemoved metric.Int64Counter
	evictions    metric.Int64Counter

	handler http.Handler
}

// metricBuilder accumulates instrument creation errors, enabling batch
// construction with a single error check.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func (b *metricBuilder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create %s: %w", name, err)
	}

	return c
}

// New creates the replay instruments backed by a fresh Prometheus registry
// and returns the Metrics with their scrape handler.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	b := &metricBuilder{meter: provider.Meter(meterName)}

	m := &Metrics{
		accesses:     b.counter("cachesim_accesses_total", "Processed accesses.", "{access}"),
		bytesHit:     b.counter("cachesim_bytes_hit_total", "Bytes served from cache.", "By"),
		bytesMissed:  b.counter("cachesim_bytes_missed_total", "Bytes not in cache on access.", "By"),
		bytesAdded:   b.counter("cachesim_bytes_added_total", "Bytes fetched into cache.", "By"),
		bytesRemoved: b.counter("cachesim_bytes_removed_total", "Bytes evicted from cache.", "By"),
		evictions:    b.counter("cachesim_evictions_total", "Files fully evicted.", "{file}"),
		handler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}

	if b.err != nil {
		return nil, b.err
	}

	return m, nil
}

// Handler returns the /metrics scrape handler.
func (m *Metrics) Handler() http.Handler { return m.handler }

// Serve starts an HTTP server for the scrape endpoint on addr. It runs
// until the listener fails and is meant for a goroutine.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.handler)

	return http.ListenAndServe(addr, mux)
}

// ObserveAccessInfo records the outcome of one processed access.
func (m *Metrics) ObserveAccessInfo(ctx context.Context, info *cache.AccessInfo) {
	if m == nil {
		return
	}

	m.accesses.Add(ctx, 1)
	m.bytesHit.Add(ctx, info.BytesHit)
	m.bytesMissed.Add(ctx, info.BytesMissed)
	m.bytesAdded.Add(ctx, info.BytesAdded)
	m.bytesRemoved.Add(ctx, info.BytesRemoved)
	m.evictions.Add(ctx, int64(len(info.EvictedFiles)))
}
