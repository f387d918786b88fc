package capture

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/Sumatoshi-tech/daqstream/internal/chunk"
	"github.com/Sumatoshi-tech/daqstream/internal/observability"
	"github.com/Sumatoshi-tech/daqstream/internal/ring"
)

// ChunkRecord describes one committed chunk for the catalog.
type ChunkRecord struct {
	BootID       uint64
	SeqStart     uint64
	File         string
	SampleCount  int
	SampleRateHz float64
	OpenedAt     time.Time
	ClosedAt     time.Time
	CommittedAt  time.Time
}

// ChunkRecorder receives a record after each successful chunk commit.
// Recording is best-effort: errors are logged, never propagated into the
// streaming path.
type ChunkRecorder interface {
	Record(rec ChunkRecord) error
}

// Consumer drains the ring buffer, assembles samples into chunk-sized
// batches and commits them through the chunk writer. It owns the sequence
// counter: the running count of samples ever committed, strictly increasing
// and never reset while the process runs.
type Consumer struct {
	ring    *ring.Buffer
	writer  *chunk.Writer
	rate    *rateCell
	catalog ChunkRecorder

	chunkDuration time.Duration

	seq atomic.Uint64

	logger  *slog.Logger
	metrics *observability.PipelineMetrics
}

// Seq returns the current sequence counter value.
func (c *Consumer) Seq() uint64 { return c.seq.Load() }

// Run executes the consumer loop until the producer signals end-of-stream
// and the ring is drained. Any partially filled batch at that point is
// flushed as a short final chunk. It is meant to run on its own goroutine.
func (c *Consumer) Run(ctx context.Context) {
	var (
		rateHz float64
		buf    []byte
		filled int
		opened time.Time
	)

	for {
		// Reallocate the assembly buffer whenever the negotiated rate
		// changes. A partially filled buffer is discarded: an accepted
		// rate-change discontinuity, matching the reference behavior.
		current := c.rate.Load()
		if buf == nil || current != rateHz {
			if filled > 0 {
				c.logger.Warn("rate change discarded partial chunk",
					"samples", filled/chunk.RecordSize,
					"old_hz", rateHz,
					"new_hz", current)
			}

			rateHz = current
			buf = make([]byte, samplesPerChunk(rateHz, c.chunkDuration)*chunk.RecordSize)
			filled = 0
		}

		n := c.ring.Read(buf[filled:])
		if n == 0 {
			// End-of-stream: producer done and ring drained.
			break
		}

		// Stamp the batch-open time when the first samples actually land,
		// not before the blocking read: the consumer can sit idle for a
		// long time while capture is off.
		if filled == 0 {
			opened = time.Now()
		}

		filled += n

		if filled == len(buf) {
			c.flush(ctx, buf, rateHz, opened)
			filled = 0
		}
	}

	if filled > 0 {
		c.flush(ctx, buf[:filled], rateHz, opened)
	}

	c.logger.Info("consumer stopped", "seq", c.seq.Load())
}

// flush commits one batch. On success the sequence counter advances by the
// batch size; on failure the batch is abandoned and the counter is left
// unchanged so the next chunk reuses the same seq_start.
func (c *Consumer) flush(ctx context.Context, payload []byte, rateHz float64, opened time.Time) {
	samples, err := chunk.DecodeSamples(payload)
	if err != nil {
		c.logger.Error("dropping malformed batch", "err", err)

		return
	}

	seqStart := c.seq.Load()
	closed := time.Now()

	start := time.Now()

	path, err := c.writer.Write(seqStart, samples, rateHz, opened, closed)
	if err != nil {
		c.logger.Error("chunk write failed, batch abandoned", "seq_start", seqStart, "err", err)

		return
	}

	c.seq.Add(uint64(len(samples)))
	c.metrics.RecordChunk(ctx, time.Since(start))

	c.logger.Info("chunk committed",
		"seq_start", seqStart,
		"samples", len(samples),
		"rate_hz", rateHz,
		"file", path)

	if c.catalog != nil {
		recErr := c.catalog.Record(ChunkRecord{
			BootID:       c.writer.BootID(),
			SeqStart:     seqStart,
			File:         path,
			SampleCount:  len(samples),
			SampleRateHz: rateHz,
			OpenedAt:     opened,
			ClosedAt:     closed,
			CommittedAt:  time.Now(),
		})
		if recErr != nil {
			c.logger.Warn("catalog record failed", "seq_start", seqStart, "err", recErr)
		}
	}
}

// samplesPerChunk derives the chunk size from the sample rate and the fixed
// chunk duration, never smaller than one sample.
func samplesPerChunk(rateHz float64, duration time.Duration) int {
	n := int(math.Round(rateHz * duration.Seconds()))
	if n < 1 {
		n = 1
	}

	return n
}
