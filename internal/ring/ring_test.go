package ring

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_WriteRead_InOrder(t *testing.T) {
	t.Parallel()

	b := New(64)

	n := b.Write([]byte("hello"))
	require.Equal(t, 5, n)
	assert.Equal(t, 5, b.Available())

	out := make([]byte, 16)
	n = b.Read(out)
	require.Equal(t, 5, n)
	assert.Equal(t, "hello", string(out[:n]))
	assert.Equal(t, 0, b.Available())
}

func TestBuffer_Write_NeverShort(t *testing.T) {
	t.Parallel()

	b := New(8)

	// Larger than free space: write must still accept everything.
	require.Equal(t, 6, b.Write([]byte("aaaaaa")))
	require.Equal(t, 6, b.Write([]byte("bbbbbb")))
	assert.Equal(t, 8, b.Available())
}

func TestBuffer_DropOldest_KeepsNewest(t *testing.T) {
	t.Parallel()

	b := New(8)

	b.Write([]byte("01234567"))
	b.Write([]byte("abcd"))

	out := make([]byte, 8)
	n := b.Read(out)
	require.Equal(t, 8, n)

	// The oldest four bytes are exactly the ones missing.
	assert.Equal(t, "4567abcd", string(out[:n]))
	assert.Equal(t, uint64(4), b.Dropped())
}

func TestBuffer_Write_LargerThanCapacity(t *testing.T) {
	t.Parallel()

	b := New(4)

	n := b.Write([]byte("0123456789"))
	require.Equal(t, 10, n)

	out := make([]byte, 4)
	require.Equal(t, 4, b.Read(out))
	assert.Equal(t, "6789", string(out))
	assert.Equal(t, uint64(6), b.Dropped())
}

func TestBuffer_Wraparound_FullReads(t *testing.T) {
	t.Parallel()

	b := New(8)
	out := make([]byte, 8)

	// Advance the cursors so the next write straddles the end of storage.
	b.Write([]byte("xxxxxx"))
	require.Equal(t, 6, b.Read(out))

	b.Write([]byte("abcdef"))
	n := b.Read(out)
	require.Equal(t, 6, n)
	assert.Equal(t, "abcdef", string(out[:n]))
}

func TestBuffer_FIFOWithLoss_Sequence(t *testing.T) {
	t.Parallel()

	const capacity = 32

	b := New(capacity)

	var written bytes.Buffer

	for i := range 10 {
		chunk := bytes.Repeat([]byte{byte('a' + i)}, 7)
		b.Write(chunk)
		written.Write(chunk)
	}

	var got bytes.Buffer

	out := make([]byte, 16)

	for b.Available() > 0 {
		n := b.Read(out)
		got.Write(out[:n])
	}

	// Reader output is a suffix of everything written.
	all := written.Bytes()
	assert.True(t, bytes.HasSuffix(all, got.Bytes()))
	assert.Equal(t, uint64(len(all)-got.Len()), b.Dropped())
}

func TestBuffer_Read_BlocksUntilData(t *testing.T) {
	t.Parallel()

	b := New(16)

	var wg sync.WaitGroup

	got := make([]byte, 4)

	var n int

	wg.Add(1)

	go func() {
		defer wg.Done()

		n = b.Read(got)
	}()

	// Give the reader a moment to park on the empty buffer.
	time.Sleep(20 * time.Millisecond)
	b.Write([]byte("data"))
	wg.Wait()

	require.Equal(t, 4, n)
	assert.Equal(t, "data", string(got))
}

func TestBuffer_Read_ZeroAfterProducerDone(t *testing.T) {
	t.Parallel()

	b := New(16)
	b.Write([]byte("tail"))
	b.MarkProducerDone()

	out := make([]byte, 16)

	// Remaining data is still drained before end-of-stream.
	require.Equal(t, 4, b.Read(out))
	assert.Equal(t, 0, b.Read(out))
	assert.Equal(t, 0, b.Read(out))
}

func TestBuffer_MarkProducerDone_WakesBlockedReader(t *testing.T) {
	t.Parallel()

	b := New(16)

	done := make(chan int, 1)

	go func() {
		done <- b.Read(make([]byte, 8))
	}()

	time.Sleep(20 * time.Millisecond)
	b.MarkProducerDone()

	select {
	case n := <-done:
		assert.Equal(t, 0, n)
	case <-time.After(time.Second):
		t.Fatal("reader not woken by MarkProducerDone")
	}
}

func TestBuffer_Write_BoundedTime(t *testing.T) {
	t.Parallel()

	b := New(64)

	// No reader exists; sustained writes must still return promptly.
	start := time.Now()

	for range 1000 {
		b.Write([]byte("0123456789abcdef"))
	}

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 64, b.Available())
}
