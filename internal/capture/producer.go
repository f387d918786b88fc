package capture

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Sumatoshi-tech/daqstream/internal/chunk"
	"github.com/Sumatoshi-tech/daqstream/internal/device"
	"github.com/Sumatoshi-tech/daqstream/internal/observability"
	"github.com/Sumatoshi-tech/daqstream/internal/ring"
)

// Producer timing defaults.
const (
	// defaultIdlePoll is how often the idle producer re-checks the
	// capture-enabled flag.
	defaultIdlePoll = 200 * time.Millisecond
	// defaultReadTimeout bounds one device read so the scan loop re-checks
	// shutdown and state changes.
	defaultReadTimeout = time.Second
)

// Producer drives the sampling device. It is the only writer into the ring
// buffer and the only caller of the device's Start/Read/Stop. Its loop is a
// two-state machine: idle (polling the capture flag) and scanning (pulling
// device batches into the ring).
type Producer struct {
	state   *State
	source  device.Source
	ring    *ring.Buffer
	rate    *rateCell
	channel int

	idlePoll    time.Duration
	readTimeout time.Duration

	logger  *slog.Logger
	metrics *observability.PipelineMetrics
}

// Run executes the producer loop until ctx is cancelled, then marks the
// ring's end-of-stream exactly once. It is meant to run on its own
// goroutine.
func (p *Producer) Run(ctx context.Context) {
	defer p.ring.MarkProducerDone()

	for ctx.Err() == nil {
		if !p.state.Enabled() {
			sleepCtx(ctx, p.idlePoll)

			continue
		}

		p.scan(ctx)
	}

	p.logger.Info("producer stopped")
}

// scan runs one acquisition session: negotiate the rate, start the device,
// and pull batches until capture is disabled, the rate changes, a fatal
// device error occurs, or shutdown is requested. The device is always
// stopped before returning.
func (p *Producer) scan(ctx context.Context) {
	requested := p.state.RequestedRate()
	actual := p.source.NegotiateRate(requested)

	err := p.source.Start(p.channel, requested)
	if err != nil {
		p.logger.Error("device start failed, disabling capture", "device", p.source.Name(), "err", err)
		p.state.SetEnabled(false)

		return
	}

	p.rate.Store(actual)
	p.logger.Info("scan started",
		"device", p.source.Name(),
		"channel", p.channel,
		"requested_hz", requested,
		"actual_hz", actual)

	defer func() {
		stopErr := p.source.Stop()
		if stopErr != nil {
			p.logger.Warn("device stop failed", "err", stopErr)
		}

		p.logger.Info("scan stopped", "actual_hz", actual)
	}()

	droppedBefore := p.ring.Dropped()

	for ctx.Err() == nil {
		enabled, rate := p.state.Snapshot()
		if !enabled || rate != requested {
			return
		}

		res, err := p.source.Read(p.readTimeout)
		if errors.Is(err, device.ErrTimeout) {
			continue
		}

		if err != nil {
			p.logger.Error("fatal device read error, disabling capture", "err", err)
			p.state.SetEnabled(false)

			return
		}

		if res.Overrun {
			p.logger.Warn("device overrun detected")
		}

		if len(res.Samples) == 0 {
			continue
		}

		p.ring.Write(chunk.EncodeSamples(res.Samples))
		p.metrics.RecordRead(ctx, len(res.Samples))

		dropped := p.ring.Dropped()
		if dropped != droppedBefore {
			lost := dropped - droppedBefore
			p.logger.Warn("ring buffer overflow, oldest data dropped",
				"bytes", lost,
				"samples", lost/chunk.RecordSize)
			p.metrics.RecordDropped(ctx, int64(lost/chunk.RecordSize))
			droppedBefore = dropped
		}
	}
}

// sleepCtx sleeps for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
