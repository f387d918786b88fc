package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/daqstream/internal/chunk"
)

// NewInspectCommand creates the `inspect` command decoding one chunk file.
func NewInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Decode a chunk file header",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
}

func runInspect(_ *cobra.Command, args []string) error {
	path := args[0]

	h, samples, err := chunk.ReadFile(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "file:              %s\n", path)
	fmt.Fprintf(os.Stdout, "version:           %d\n", h.Version)
	fmt.Fprintf(os.Stdout, "boot_id:           %016x\n", h.BootID)
	fmt.Fprintf(os.Stdout, "seq_start:         %d\n", h.SeqStart)
	fmt.Fprintf(os.Stdout, "sample_rate_hz:    %d\n", h.SampleRateHz)
	fmt.Fprintf(os.Stdout, "record_size:       %d\n", h.RecordSize)
	fmt.Fprintf(os.Stdout, "sample_count:      %d\n", h.SampleCount)
	fmt.Fprintf(os.Stdout, "sensor_time_start: %s\n", time.Unix(int64(h.SensorTimeStart), 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(os.Stdout, "sensor_time_end:   %s\n", time.Unix(int64(h.SensorTimeEnd), 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(os.Stdout, "payload:           %s\n", humanize.IBytes(uint64(len(samples)*chunk.RecordSize)))

	if h.SampleRateHz > 0 {
		span := float64(h.SampleCount) / float64(h.SampleRateHz)
		fmt.Fprintf(os.Stdout, "span:              %.3fs\n", span)
	}

	return nil
}
