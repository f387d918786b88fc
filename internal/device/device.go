// Package device abstracts the continuously-sampling data source feeding the
// capture pipeline. A Source negotiates a sample rate, streams float64
// samples after Start, and distinguishes transient timeouts and non-fatal
// overruns from fatal read errors in its result type.
package device

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrTimeout reports that no samples arrived within the read timeout. It is
// transient: the caller retries.
var ErrTimeout = errors.New("device: read timeout")

// ErrNoDevice indicates no sampling source is registered.
var ErrNoDevice = errors.New("device: no sampling source found")

// ErrUnknownDevice indicates the named source is not registered.
var ErrUnknownDevice = errors.New("device: unknown source")

// ReadResult carries one batch of samples pulled from a source. Overrun
// reports that the source's own buffering overflowed since the last read;
// it is non-fatal and the samples returned are still valid.
type ReadResult struct {
	Samples []float64
	Overrun bool
}

// Source is one sampling device. Implementations are driven by a single
// goroutine: Start, Read and Stop are never called concurrently.
type Source interface {
	// Name identifies the source for selection and logs.
	Name() string

	// NegotiateRate returns the actual rate the hardware will run at for a
	// requested rate, without starting acquisition.
	NegotiateRate(requested float64) float64

	// Start begins continuous acquisition on the given channel at the given
	// requested rate.
	Start(channel int, rateHz float64) error

	// Read returns all samples buffered since the previous call, waiting up
	// to timeout for at least one sample. It returns ErrTimeout when none
	// arrive in time; any other error is fatal for the running scan.
	Read(timeout time.Duration) (ReadResult, error)

	// Stop ends acquisition and discards any undelivered samples.
	Stop() error
}

// Registry holds the sampling sources available to the daemon.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Source
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Source)}
}

// Register adds a source under its own name, replacing any previous entry.
func (r *Registry) Register(src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[src.Name()] = src
}

// Select picks a source by name. With an empty name it returns the sole
// registered source, or an error when none or several are available.
func (r *Registry) Select(name string) (Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name != "" {
		src, ok := r.entries[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownDevice, name, r.names())
		}

		return src, nil
	}

	switch len(r.entries) {
	case 0:
		return nil, ErrNoDevice
	case 1:
		for _, src := range r.entries {
			return src, nil
		}
	}

	return nil, fmt.Errorf("%w: multiple sources %v, pick one by name", ErrUnknownDevice, r.names())
}

// names returns the registered source names, sorted. Callers hold r.mu.
func (r *Registry) names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
