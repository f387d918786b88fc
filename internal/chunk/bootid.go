package chunk

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// NewBootID draws a random 64-bit identifier that distinguishes one process
// run's chunk sequence from another's. It falls back to the wall clock if
// the system entropy source is unavailable.
func NewBootID() uint64 {
	var buf [8]byte

	_, err := rand.Read(buf[:])
	if err != nil {
		return uint64(time.Now().Unix())
	}

	return binary.LittleEndian.Uint64(buf[:])
}
