package chunk

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Sumatoshi-tech/daqstream/pkg/safeconv"
)

// PartSuffix marks an in-progress chunk file. External readers of the
// output directory must ignore files carrying it; the rename that strips it
// is the single atomic commit point.
const PartSuffix = ".part"

// chunkFilePattern yields names unique per (boot id, seq_start) so a writer
// never partially overwrites a committed file.
const chunkFilePattern = "chunk_%016x_%016x.bin"

// Writer commits sample batches as header-prefixed binary chunk files in a
// single output directory. It is used by one goroutine at a time.
type Writer struct {
	dir    string
	bootID uint64
}

// NewWriter creates a chunk writer for the given output directory and boot id.
func NewWriter(dir string, bootID uint64) *Writer {
	return &Writer{dir: dir, bootID: bootID}
}

// BootID returns the boot id stamped into every header this writer emits.
func (w *Writer) BootID() uint64 { return w.bootID }

// FileName returns the committed file name for a chunk starting at seqStart.
func (w *Writer) FileName(seqStart uint64) string {
	return fmt.Sprintf(chunkFilePattern, w.bootID, seqStart)
}

// Write persists one chunk: header plus len(samples) little-endian doubles,
// written to a temporary ".part" path and atomically renamed into place.
// opened and closed are the batch-open and batch-close wall-clock times.
// On any failure nothing is left at the committed path.
func (w *Writer) Write(seqStart uint64, samples []float64, rateHz float64, opened, closed time.Time) (string, error) {
	final := filepath.Join(w.dir, w.FileName(seqStart))
	tmp := final + PartSuffix

	header := EncodeHeader(Header{
		Version:         Version,
		BootID:          w.bootID,
		SeqStart:        seqStart,
		SampleRateHz:    safeconv.MustFloatToUint32(rateHz),
		RecordSize:      RecordSize,
		SampleCount:     safeconv.MustIntToUint32(len(samples)),
		SensorTimeStart: uint64(opened.Unix()),
		SensorTimeEnd:   uint64(closed.Unix()),
	})

	err := w.writeTemp(tmp, header, EncodeSamples(samples))
	if err != nil {
		return "", err
	}

	err = os.Rename(tmp, final)
	if err != nil {
		_ = os.Remove(tmp)

		return "", fmt.Errorf("commit chunk %s: %w", final, err)
	}

	return final, nil
}

// writeTemp writes header and payload to the temporary path and syncs it.
// The temporary file is removed on any failure.
func (w *Writer) writeTemp(tmp string, header, payload []byte) error {
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("open chunk temp %s: %w", tmp, err)
	}

	_, err = f.Write(header)
	if err == nil {
		_, err = f.Write(payload)
	}

	if err == nil {
		err = f.Sync()
	}

	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("write chunk temp %s: %w", tmp, err)
	}

	return nil
}

// ReadFile decodes a committed chunk file, validating the payload length
// against the header's sample count. Used by the inspect command and tests.
func ReadFile(path string) (Header, []float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Header{}, nil, fmt.Errorf("read chunk %s: %w", path, err)
	}

	h, err := DecodeHeader(raw)
	if err != nil {
		return Header{}, nil, err
	}

	payload := raw[HeaderSize:]
	if len(payload) != int(h.SampleCount)*RecordSize {
		return Header{}, nil, fmt.Errorf("chunk %s: payload %d bytes, header declares %d samples",
			path, len(payload), h.SampleCount)
	}

	samples, err := DecodeSamples(payload)
	if err != nil {
		return Header{}, nil, err
	}

	return h, samples, nil
}
