package device

import (
	"errors"
	"math"
	"sync"
	"time"
)

// Sim rate limits. The negotiated rate is clamped into this range,
// mirroring what real acquisition hardware does with out-of-range requests.
const (
	simMinRateHz = 1.0
	simMaxRateHz = 100000.0
)

// simMaxBatch bounds how many samples one Read call returns. A slower
// reader sees the surplus on the next call; falling further behind than
// simOverrunFactor batches raises the overrun flag.
const (
	simMaxBatch      = 4096
	simOverrunFactor = 8
)

// ErrSimNotRunning is returned by Read and Stop outside an active scan.
var ErrSimNotRunning = errors.New("device: sim source not running")

// ErrSimRunning is returned by Start while a scan is already active.
var ErrSimRunning = errors.New("device: sim source already running")

// Sim is a software sampling source producing a sine wave, paced by the
// monotonic clock at the negotiated rate. It stands in for acquisition
// hardware in development and tests.
type Sim struct {
	// SignalHz is the sine frequency; zero means 10 Hz.
	SignalHz float64
	// Amplitude is the peak sample value; zero means 1.0.
	Amplitude float64

	mu        sync.Mutex
	running   bool
	rateHz    float64
	startedAt time.Time
	delivered uint64

	failNext error
}

// Name implements Source.
func (s *Sim) Name() string { return "sim" }

// NegotiateRate clamps the requested rate into the supported range.
func (s *Sim) NegotiateRate(requested float64) float64 {
	if requested < simMinRateHz {
		return simMinRateHz
	}

	if requested > simMaxRateHz {
		return simMaxRateHz
	}

	return requested
}

// Start begins generating samples at the negotiated rate. The channel
// selector is accepted for interface parity and ignored.
func (s *Sim) Start(_ int, rateHz float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSimRunning
	}

	s.running = true
	s.rateHz = s.NegotiateRate(rateHz)
	s.startedAt = time.Now()
	s.delivered = 0

	return nil
}

// Read returns every sample the clock has produced since the last call, up
// to simMaxBatch, waiting at most timeout for the first one.
func (s *Sim) Read(timeout time.Duration) (ReadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ReadResult{}, ErrSimNotRunning
	}

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil

		return ReadResult{}, err
	}

	pending := s.pendingLocked()
	if pending == 0 {
		wait := s.timeToNextSampleLocked()
		if wait > timeout {
			s.mu.Unlock()
			time.Sleep(timeout)
			s.mu.Lock()

			return ReadResult{}, ErrTimeout
		}

		s.mu.Unlock()
		time.Sleep(wait)
		s.mu.Lock()

		pending = s.pendingLocked()
		if pending == 0 {
			return ReadResult{}, ErrTimeout
		}
	}

	overrun := pending > simMaxBatch*simOverrunFactor

	n := pending
	if n > simMaxBatch {
		n = simMaxBatch
	}

	samples := make([]float64, n)
	for i := range samples {
		samples[i] = s.sampleAtLocked(s.delivered + uint64(i))
	}

	s.delivered += uint64(n)

	return ReadResult{Samples: samples, Overrun: overrun}, nil
}

// Stop ends the scan.
func (s *Sim) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrSimNotRunning
	}

	s.running = false

	return nil
}

// FailNextRead makes the next Read call return err. Test hook for the
// fatal-read-error path.
func (s *Sim) FailNextRead(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failNext = err
}

// pendingLocked is the number of samples the clock has produced but Read
// has not yet delivered.
func (s *Sim) pendingLocked() int {
	elapsed := time.Since(s.startedAt).Seconds()

	produced := uint64(elapsed * s.rateHz)
	if produced <= s.delivered {
		return 0
	}

	return int(produced - s.delivered)
}

// timeToNextSampleLocked is how long until the clock produces one more
// sample than has been delivered.
func (s *Sim) timeToNextSampleLocked() time.Duration {
	next := float64(s.delivered+1) / s.rateHz
	wait := time.Duration(next*float64(time.Second)) - time.Since(s.startedAt)

	if wait < 0 {
		return 0
	}

	return wait
}

// sampleAtLocked evaluates the sine at sample index i of the current scan.
func (s *Sim) sampleAtLocked(i uint64) float64 {
	signal := s.SignalHz
	if signal == 0 {
		signal = 10.0
	}

	amp := s.Amplitude
	if amp == 0 {
		amp = 1.0
	}

	return amp * math.Sin(2*math.Pi*signal*float64(i)/s.rateHz)
}
