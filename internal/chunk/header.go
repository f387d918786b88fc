// Package chunk implements the on-disk chunk format: a fixed little-endian
// header followed by raw float64 sample payload, committed with a
// write-to-temp-then-rename pattern so external readers never observe a
// partially written file.
package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Header layout constants.
const (
	// Magic identifies a chunk file.
	Magic = "SDAT"
	// Version is the current header version.
	Version = 1
	// RecordSize is the byte size of one sample (float64).
	RecordSize = 8
	// HeaderSize is the total encoded header length in bytes.
	HeaderSize = 56
)

// Sentinel errors for header decoding.
var (
	// ErrBadMagic indicates the file does not start with the chunk magic.
	ErrBadMagic = errors.New("chunk: bad magic")
	// ErrBadVersion indicates an unsupported header version.
	ErrBadVersion = errors.New("chunk: unsupported version")
	// ErrBadRecordSize indicates a record size other than 8 bytes.
	ErrBadRecordSize = errors.New("chunk: unsupported record size")
	// ErrShortHeader indicates the input is smaller than HeaderSize.
	ErrShortHeader = errors.New("chunk: short header")
)

// Header describes one committed chunk. Field order matches the encoded
// little-endian layout:
//
//	offset  size  field
//	0       4     magic "SDAT"
//	4       2     version
//	6       4     device_id (reserved, 0)
//	10      8     boot_id
//	18      8     seq_start
//	26      4     sample_rate_hz (truncated to integer)
//	30      2     record_size (8)
//	32      4     sample_count
//	36      8     sensor_time_start (unix seconds)
//	44      8     sensor_time_end (unix seconds)
//	52      4     payload_crc32
//
// payload_crc32 is written as 0; payload integrity is not checksummed yet.
type Header struct {
	Version         uint16
	DeviceID        uint32
	BootID          uint64
	SeqStart        uint64
	SampleRateHz    uint32
	RecordSize      uint16
	SampleCount     uint32
	SensorTimeStart uint64
	SensorTimeEnd   uint64
	PayloadCRC32    uint32
}

// EncodeHeader serializes h into a HeaderSize-byte little-endian buffer.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)

	copy(buf[0:4], Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint32(buf[6:10], h.DeviceID)
	binary.LittleEndian.PutUint64(buf[10:18], h.BootID)
	binary.LittleEndian.PutUint64(buf[18:26], h.SeqStart)
	binary.LittleEndian.PutUint32(buf[26:30], h.SampleRateHz)
	binary.LittleEndian.PutUint16(buf[30:32], h.RecordSize)
	binary.LittleEndian.PutUint32(buf[32:36], h.SampleCount)
	binary.LittleEndian.PutUint64(buf[36:44], h.SensorTimeStart)
	binary.LittleEndian.PutUint64(buf[44:52], h.SensorTimeEnd)
	binary.LittleEndian.PutUint32(buf[52:56], h.PayloadCRC32)

	return buf[:HeaderSize]
}

// DecodeHeader parses and validates a chunk header from buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(buf))
	}

	if string(buf[0:4]) != Magic {
		return Header{}, fmt.Errorf("%w: %q", ErrBadMagic, buf[0:4])
	}

	h := Header{
		Version:         binary.LittleEndian.Uint16(buf[4:6]),
		DeviceID:        binary.LittleEndian.Uint32(buf[6:10]),
		BootID:          binary.LittleEndian.Uint64(buf[10:18]),
		SeqStart:        binary.LittleEndian.Uint64(buf[18:26]),
		SampleRateHz:    binary.LittleEndian.Uint32(buf[26:30]),
		RecordSize:      binary.LittleEndian.Uint16(buf[30:32]),
		SampleCount:     binary.LittleEndian.Uint32(buf[32:36]),
		SensorTimeStart: binary.LittleEndian.Uint64(buf[36:44]),
		SensorTimeEnd:   binary.LittleEndian.Uint64(buf[44:52]),
		PayloadCRC32:    binary.LittleEndian.Uint32(buf[52:56]),
	}

	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrBadVersion, h.Version)
	}

	if h.RecordSize != RecordSize {
		return Header{}, fmt.Errorf("%w: %d", ErrBadRecordSize, h.RecordSize)
	}

	return h, nil
}

// EncodeSamples serializes samples as little-endian IEEE-754 doubles. The
// ring buffer between producer and consumer carries this byte form.
func EncodeSamples(samples []float64) []byte {
	buf := make([]byte, len(samples)*RecordSize)

	for i, s := range samples {
		binary.LittleEndian.PutUint64(buf[i*RecordSize:], math.Float64bits(s))
	}

	return buf
}

// DecodeSamples parses a little-endian float64 payload. The input length
// must be a whole multiple of RecordSize.
func DecodeSamples(buf []byte) ([]float64, error) {
	if len(buf)%RecordSize != 0 {
		return nil, fmt.Errorf("chunk: payload length %d not a multiple of %d", len(buf), RecordSize)
	}

	samples := make([]float64, len(buf)/RecordSize)
	for i := range samples {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*RecordSize:]))
	}

	return samples, nil
}
