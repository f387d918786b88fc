// Package capture implements the streaming pipeline: shared capture state,
// the producer that drives the sampling device into the ring buffer, the
// consumer that assembles ring data into committed chunk files, and the
// Pipeline that wires and runs them.
package capture

import (
	"math"
	"sync"
	"sync/atomic"
)

// State is the shared capture-control cell: whether capture is enabled and
// the requested sample rate. It is mutated only by the control server and
// read by the producer. The cell is handed to each worker at construction;
// there are no package-level globals.
type State struct {
	mu            sync.Mutex
	enabled       bool
	requestedRate float64
}

// NewState creates a capture state with capture disabled and the given
// initial requested rate.
func NewState(requestedRateHz float64) *State {
	return &State{requestedRate: requestedRateHz}
}

// Enabled reports whether capture is currently requested.
func (s *State) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.enabled
}

// SetEnabled flips the capture-enabled flag.
func (s *State) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enabled = enabled
}

// RequestedRate returns the operator-requested sample rate in Hz.
func (s *State) RequestedRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.requestedRate
}

// SetRequestedRate stores a new requested sample rate. Validation is the
// control server's job; the producer picks the change up on its next
// scan-state check.
func (s *State) SetRequestedRate(rateHz float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requestedRate = rateHz
}

// Snapshot returns both fields under one lock acquisition.
func (s *State) Snapshot() (enabled bool, requestedRateHz float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.enabled, s.requestedRate
}

// rateCell is a lock-free float64 cell carrying the negotiated device rate
// from the producer (sole writer) to the consumer and status reporting.
type rateCell struct {
	bits atomic.Uint64
}

func (c *rateCell) Store(v float64) { c.bits.Store(math.Float64bits(v)) }

func (c *rateCell) Load() float64 { return math.Float64frombits(c.bits.Load()) }
