package capture

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/daqstream/internal/chunk"
	"github.com/Sumatoshi-tech/daqstream/internal/device"
	"github.com/Sumatoshi-tech/daqstream/internal/observability"
	"github.com/Sumatoshi-tech/daqstream/internal/ring"
)

// Options configures a Pipeline. State, Source and Writer are required;
// everything else has a usable default.
type Options struct {
	State  *State
	Source device.Source
	Writer *chunk.Writer

	// Catalog, when set, receives a record per committed chunk.
	Catalog ChunkRecorder

	// RingSize is the ring buffer capacity in bytes.
	RingSize int

	// Channel is the device channel selector passed to Source.Start.
	Channel int

	// ChunkDuration is the fixed wall-clock span of one chunk.
	ChunkDuration time.Duration

	// IdlePoll is the producer's capture-flag poll interval while idle.
	IdlePoll time.Duration

	// ReadTimeout bounds one device read.
	ReadTimeout time.Duration

	// Logger is the structured logger for pipeline events.
	// When nil, a discard logger is used.
	Logger *slog.Logger

	// Metrics records pipeline OTel metrics. Nil-safe: when nil, no
	// metrics are recorded.
	Metrics *observability.PipelineMetrics
}

// Pipeline defaults.
const (
	// DefaultRingSize matches the reference 4 MiB ring.
	DefaultRingSize = 4 * 1024 * 1024
	// DefaultChunkDuration matches the reference 2-second chunks.
	DefaultChunkDuration = 2 * time.Second
)

// Pipeline owns the ring buffer and the producer/consumer pair. Its three
// collaborating control flows (producer, consumer, and the external control
// server mutating State) coordinate only through State and the ring.
type Pipeline struct {
	ring     *ring.Buffer
	state    *State
	rate     rateCell
	producer *Producer
	consumer *Consumer

	wg sync.WaitGroup
}

// Status is a point-in-time view of the pipeline for the STATUS command and
// the metrics gauge.
type Status struct {
	Enabled         bool
	RequestedRateHz float64
	ActualRateHz    float64
	BufferedSamples int
	Seq             uint64
	DroppedSamples  uint64
	RingCapacity    int
	BootID          uint64
}

// NewPipeline wires a pipeline from opts without starting any goroutine.
func NewPipeline(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ringSize := opts.RingSize
	if ringSize <= 0 {
		ringSize = DefaultRingSize
	}

	chunkDuration := opts.ChunkDuration
	if chunkDuration <= 0 {
		chunkDuration = DefaultChunkDuration
	}

	idlePoll := opts.IdlePoll
	if idlePoll <= 0 {
		idlePoll = defaultIdlePoll
	}

	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	p := &Pipeline{
		ring:  ring.New(ringSize),
		state: opts.State,
	}

	// Until the first negotiation the consumer sizes chunks from the
	// requested rate, as the reference does with its fixed scan rate.
	p.rate.Store(opts.State.RequestedRate())

	p.producer = &Producer{
		state:       opts.State,
		source:      opts.Source,
		ring:        p.ring,
		rate:        &p.rate,
		channel:     opts.Channel,
		idlePoll:    idlePoll,
		readTimeout: readTimeout,
		logger:      logger,
		metrics:     opts.Metrics,
	}

	p.consumer = &Consumer{
		ring:          p.ring,
		writer:        opts.Writer,
		rate:          &p.rate,
		catalog:       opts.Catalog,
		chunkDuration: chunkDuration,
		logger:        logger,
		metrics:       opts.Metrics,
	}

	return p
}

// Start launches the producer and consumer goroutines. Cancelling ctx
// begins an ordered shutdown: the producer stops any active scan and marks
// end-of-stream, the consumer drains the ring and flushes a short final
// chunk. Wait blocks until both have finished.
func (p *Pipeline) Start(ctx context.Context) {
	p.wg.Add(2)

	go func() {
		defer p.wg.Done()

		p.producer.Run(ctx)
	}()

	go func() {
		defer p.wg.Done()

		p.consumer.Run(ctx)
	}()
}

// Wait blocks until both workers have exited.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Ring exposes the pipeline's ring buffer for occupancy observation.
func (p *Pipeline) Ring() *ring.Buffer {
	return p.ring
}

// Status snapshots the pipeline state for status reporting.
func (p *Pipeline) Status() Status {
	enabled, requested := p.state.Snapshot()

	return Status{
		Enabled:         enabled,
		RequestedRateHz: requested,
		ActualRateHz:    p.rate.Load(),
		BufferedSamples: p.ring.Available() / chunk.RecordSize,
		Seq:             p.consumer.Seq(),
		DroppedSamples:  p.ring.Dropped() / chunk.RecordSize,
		RingCapacity:    p.ring.Capacity(),
		BootID:          p.consumer.writer.BootID(),
	}
}
