// Package observability provides the OTel metric instruments for the capture
// pipeline and the Prometheus scrape endpoint that exports them.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

const (
	metricSamplesRead     = "daqstream.samples.read.total"
	metricSamplesDropped  = "daqstream.samples.dropped.total"
	metricChunksCommitted = "daqstream.chunks.committed.total"
	metricChunkWriteDur   = "daqstream.chunk.write.duration.seconds"
	metricRingOccupancy   = "daqstream.ring.occupancy.bytes"
)

// writeDurationBucketBoundaries covers 100µs to 5s: chunk commits are local
// file writes, normally well under a millisecond on flash storage.
var writeDurationBucketBoundaries = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// PipelineMetrics holds the OTel instruments for the capture pipeline.
// All record methods are nil-safe so the pipeline can run without metrics.
type PipelineMetrics struct {
	samplesRead     metric.Int64Counter
	samplesDropped  metric.Int64Counter
	chunksCommitted metric.Int64Counter
	chunkWriteDur   metric.Float64Histogram
}

// NewPipelineMetrics creates pipeline metric instruments from the given meter.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	b := newMetricBuilder(mt)

	pm := &PipelineMetrics{
		samplesRead:     b.counter(metricSamplesRead, "Samples read from the device", "{sample}"),
		samplesDropped:  b.counter(metricSamplesDropped, "Samples lost to ring buffer overflow", "{sample}"),
		chunksCommitted: b.counter(metricChunksCommitted, "Chunk files committed", "{chunk}"),
		chunkWriteDur:   b.histogram(metricChunkWriteDur, "Chunk commit duration in seconds", "s", writeDurationBucketBoundaries...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return pm, nil
}

// RecordRead counts samples pulled from the device.
func (pm *PipelineMetrics) RecordRead(ctx context.Context, samples int) {
	if pm == nil {
		return
	}

	pm.samplesRead.Add(ctx, int64(samples))
}

// RecordDropped counts samples discarded by the drop-oldest overflow policy.
func (pm *PipelineMetrics) RecordDropped(ctx context.Context, samples int64) {
	if pm == nil || samples == 0 {
		return
	}

	pm.samplesDropped.Add(ctx, samples)
}

// RecordChunk counts one committed chunk and its write duration.
func (pm *PipelineMetrics) RecordChunk(ctx context.Context, duration time.Duration) {
	if pm == nil {
		return
	}

	pm.chunksCommitted.Add(ctx, 1)
	pm.chunkWriteDur.Record(ctx, duration.Seconds())
}

// ObserveRingOccupancy registers a callback gauge sampling the ring buffer's
// occupied byte count at scrape time.
func ObserveRingOccupancy(mt metric.Meter, occupied func() int64) error {
	b := newMetricBuilder(mt)
	g := b.gauge(metricRingOccupancy, "Occupied bytes in the capture ring buffer", "By")

	if b.err != nil {
		return b.err
	}

	_, err := mt.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(g, occupied())

		return nil
	}, g)

	return err
}
