// Package observe carries the telemetry for signloom: OpenTelemetry
// instruments for the pipeline stages, spans with W3C propagation, HTTP
// middleware tying both to each request, and trace-bound slog loggers.
//
// Instruments are exported through the Prometheus bridge installed by
// [InitProvider], so everything here lands on /metrics. Tests build their
// own [Metrics] from a manual-reader provider via [NewMetrics];
// [DefaultMetrics] is the shared instance for wired applications.
package observe

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics bundles every instrument the application records. The OTel
// instrument types are concurrency-safe, so one Metrics serves all
// goroutines.
type Metrics struct {
	// Stage latencies.

	// PipelineDuration is the end-to-end generation run time.
	PipelineDuration metric.Float64Histogram

	// EncodeDuration is the ffmpeg assembly time per run.
	EncodeDuration metric.Float64Histogram

	// HomonymDuration is the context-analysis provider round trip.
	HomonymDuration metric.Float64Histogram

	// RecognizeDuration is the sign recognition time per request.
	RecognizeDuration metric.Float64Histogram

	// Run accounting.

	// PipelineRuns counts runs by terminal status: "ok", "no_clips",
	// "error", or "canceled".
	PipelineRuns metric.Int64Counter

	// ClipsSelected counts corpus clips scheduled into output videos.
	ClipsSelected metric.Int64Counter

	// WordsMissing counts gloss words with no corpus clip.
	WordsMissing metric.Int64Counter

	// ProviderRequests counts provider calls by provider, kind, and status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed provider calls by provider and kind.
	ProviderErrors metric.Int64Counter

	// In-flight gauges.

	// ActiveGenerations is the number of runs currently executing.
	ActiveGenerations metric.Int64UpDownCounter

	// ActiveStreams is the number of open progress websockets.
	ActiveStreams metric.Int64UpDownCounter

	// CorpusWords and CorpusClips report the size of the active index,
	// refreshed on every build or watcher swap.
	CorpusWords metric.Int64Gauge
	CorpusClips metric.Int64Gauge

	// HTTPRequestDuration is recorded by [Middleware] per method and route.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are the histogram boundaries in seconds. Encoding
// dominates run time, so the top buckets reach a minute.
var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// instruments creates instruments and keeps the first error, so NewMetrics
// reads as one declaration instead of a ladder of error checks.
type instruments struct {
	meter metric.Meter
	err   error
}

func (ins *instruments) fail(name string, err error) {
	if err != nil && ins.err == nil {
		ins.err = fmt.Errorf("observe: create %s: %w", name, err)
	}
}

func (ins *instruments) histogram(name, desc string, buckets ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(desc),
		metric.WithUnit("s"),
	}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := ins.meter.Float64Histogram(name, opts...)
	ins.fail(name, err)
	return h
}

func (ins *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := ins.meter.Int64Counter(name, metric.WithDescription(desc))
	ins.fail(name, err)
	return c
}

func (ins *instruments) upDown(name, desc string) metric.Int64UpDownCounter {
	c, err := ins.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	ins.fail(name, err)
	return c
}

func (ins *instruments) gauge(name, desc string) metric.Int64Gauge {
	g, err := ins.meter.Int64Gauge(name, metric.WithDescription(desc))
	ins.fail(name, err)
	return g
}

// NewMetrics creates every instrument on a meter from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	ins := &instruments{meter: mp.Meter(scopeName)}
	m := &Metrics{
		PipelineDuration:    ins.histogram("signloom.pipeline.duration", "End-to-end latency of text-to-video generation.", latencyBuckets...),
		EncodeDuration:      ins.histogram("signloom.encode.duration", "Latency of ffmpeg clip assembly.", latencyBuckets...),
		HomonymDuration:     ins.histogram("signloom.homonym.duration", "Latency of context-analysis provider calls.", latencyBuckets...),
		RecognizeDuration:   ins.histogram("signloom.recognize.duration", "Latency of sign recognition.", latencyBuckets...),
		PipelineRuns:        ins.counter("signloom.pipeline.runs", "Total generation runs by terminal status."),
		ClipsSelected:       ins.counter("signloom.clips.selected", "Total corpus clips chosen for assembly."),
		WordsMissing:        ins.counter("signloom.gloss.words_missing", "Total gloss words that had no clip in the corpus."),
		ProviderRequests:    ins.counter("signloom.provider.requests", "Total provider API requests by provider, kind, and status."),
		ProviderErrors:      ins.counter("signloom.provider.errors", "Total provider errors by provider and kind."),
		ActiveGenerations:   ins.upDown("signloom.active_generations", "Number of generation runs currently in flight."),
		ActiveStreams:       ins.upDown("signloom.active_streams", "Number of open progress-streaming connections."),
		CorpusWords:         ins.gauge("signloom.corpus.words", "Vocabulary size of the active corpus index."),
		CorpusClips:         ins.gauge("signloom.corpus.clips", "Playable clip count of the active corpus index."),
		HTTPRequestDuration: ins.histogram("signloom.http.request.duration", "HTTP request latency by method and route."),
	}
	if ins.err != nil {
		return nil, ins.err
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the shared Metrics built on the global meter
// provider. The first call creates it; instrument creation against the
// global provider cannot fail with valid names, so a failure here panics.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic(err)
		}
	})
	return defaultMetrics
}

// RecordRun records one finished generation run: its terminal status and
// wall-clock seconds.
func (m *Metrics) RecordRun(ctx context.Context, status string, seconds float64) {
	m.PipelineRuns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.PipelineDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordSelection records how many clips a run scheduled and how many
// gloss words went uncovered.
func (m *Metrics) RecordSelection(ctx context.Context, selected, missing int) {
	if selected > 0 {
		m.ClipsSelected.Add(ctx, int64(selected))
	}
	if missing > 0 {
		m.WordsMissing.Add(ctx, int64(missing))
	}
}

// RecordCorpus reports the size of the active corpus index.
func (m *Metrics) RecordCorpus(ctx context.Context, words, clips int) {
	m.CorpusWords.Record(ctx, int64(words))
	m.CorpusClips.Record(ctx, int64(clips))
}

// RecordProviderRequest counts one provider call with the standard
// attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError counts one failed provider call.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
