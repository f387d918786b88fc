// Package ring implements the bounded byte ring buffer shared between the
// capture producer and consumer. Writes never block: when the buffer is
// full, the oldest unread bytes are discarded to make room (drop-oldest
// policy). Reads block until data arrives or the producer signals
// end-of-stream.
package ring

import "sync"

// Buffer is a fixed-capacity circular byte queue with a single mutex and a
// not-empty wait condition. It is safe for one concurrent writer and one
// concurrent reader; the writer side never waits on the reader.
type Buffer struct {
	mu       sync.Mutex
	notEmpty *sync.Cond

	storage  []byte
	writePos int
	readPos  int
	// available is the number of valid unread bytes between readPos and
	// writePos, wrapping. Invariant: 0 <= available <= len(storage).
	available int

	dropped      uint64
	producerDone bool
}

// New creates a ring buffer with the given byte capacity. Capacity is fixed
// for the life of the buffer.
func New(capacity int) *Buffer {
	b := &Buffer{storage: make([]byte, capacity)}
	b.notEmpty = sync.NewCond(&b.mu)

	return b
}

// Capacity returns the fixed byte capacity of the buffer.
func (b *Buffer) Capacity() int { return len(b.storage) }

// Write copies all of data into the buffer and returns len(data). It never
// blocks: if free space is insufficient, the oldest unread bytes are
// discarded first so the newest data always wins. The number of discarded
// bytes is accumulated and visible through Dropped.
func (b *Buffer) Write(data []byte) int {
	if len(data) == 0 {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	size := len(b.storage)

	// Writes larger than the whole buffer keep only the newest capacity
	// bytes; everything else counts as dropped.
	if len(data) > size {
		b.dropped += uint64(len(data) - size)
		data = data[len(data)-size:]
	}

	free := size - b.available
	if free < len(data) {
		drop := len(data) - free
		b.readPos = (b.readPos + drop) % size
		b.available -= drop
		b.dropped += uint64(drop)
	}

	first := size - b.writePos
	if first > len(data) {
		first = len(data)
	}

	copy(b.storage[b.writePos:], data[:first])
	copy(b.storage, data[first:])

	b.writePos = (b.writePos + len(data)) % size
	b.available += len(data)

	b.notEmpty.Signal()

	return len(data)
}

// Read copies up to len(out) buffered bytes into out and returns the count.
// It blocks while the buffer is empty and the producer has not finished.
// Once MarkProducerDone has been called and the buffer is drained, Read
// returns 0 immediately (end-of-stream). A read that straddles the end of
// storage is served as two internal copies, never as a short read.
func (b *Buffer) Read(out []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.available == 0 && !b.producerDone {
		b.notEmpty.Wait()
	}

	if b.available == 0 {
		return 0
	}

	n := len(out)
	if n > b.available {
		n = b.available
	}

	size := len(b.storage)

	first := size - b.readPos
	if first > n {
		first = n
	}

	copy(out[:first], b.storage[b.readPos:b.readPos+first])
	copy(out[first:n], b.storage)

	b.readPos = (b.readPos + n) % size
	b.available -= n

	return n
}

// Available returns a snapshot of the current occupied byte count.
func (b *Buffer) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.available
}

// Dropped returns the total number of bytes discarded by the drop-oldest
// policy since the buffer was created.
func (b *Buffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.dropped
}

// MarkProducerDone signals end-of-stream. It wakes any blocked reader so it
// can drain remaining data and then observe a zero-length read. The
// transition is one-shot; further writes are not expected after it.
func (b *Buffer) MarkProducerDone() {
	b.mu.Lock()
	b.producerDone = true
	b.mu.Unlock()

	b.notEmpty.Broadcast()
}
