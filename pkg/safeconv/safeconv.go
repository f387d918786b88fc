// Package safeconv provides safe integer type conversion functions that panic on overflow.
package safeconv

import "math"

// MaxUint32 is the maximum value for uint32 type.
const MaxUint32 = uint32(math.MaxUint32)

// MustIntToUint32 converts int to uint32, panics on bounds violation.
// Use only when bounds violations are logically impossible.
func MustIntToUint32(v int) uint32 {
	if v < 0 || int64(v) > int64(MaxUint32) {
		panic("safeconv: int to uint32 out of bounds")
	}

	return uint32(v)
}

// MustFloatToUint32 converts a non-negative float64 to uint32 by
// truncation, panics on bounds violation.
// Use only when bounds violations are logically impossible.
func MustFloatToUint32(v float64) uint32 {
	if v < 0 || v > float64(MaxUint32) {
		panic("safeconv: float64 to uint32 out of bounds")
	}

	return uint32(v)
}
