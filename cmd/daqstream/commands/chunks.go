package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/daqstream/internal/catalog"
	"github.com/Sumatoshi-tech/daqstream/internal/config"
)

// ChunksCommand holds flags for the catalog listing command.
type ChunksCommand struct {
	outputDir string
	dbPath    string
	limit     int
}

// NewChunksCommand creates the `chunks` command listing recently committed
// chunks from the catalog.
func NewChunksCommand() *cobra.Command {
	cc := &ChunksCommand{}

	cmd := &cobra.Command{
		Use:   "chunks",
		Short: "List committed chunks from the catalog",
		RunE:  cc.run,
	}

	cmd.Flags().StringVar(&cc.outputDir, "output-dir", config.DefaultOutputDir, "chunk output directory")
	cmd.Flags().StringVar(&cc.dbPath, "db", "", "catalog database path (default <output-dir>/catalog.db)")
	cmd.Flags().IntVarP(&cc.limit, "limit", "n", 20, "maximum chunks to list")

	return cmd
}

func (cc *ChunksCommand) run(_ *cobra.Command, _ []string) error {
	dbPath := cc.dbPath
	if dbPath == "" {
		dbPath = filepath.Join(cc.outputDir, catalogFileName)
	}

	_, err := os.Stat(dbPath)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", dbPath, err)
	}

	cat, err := catalog.Open(dbPath)
	if err != nil {
		return err
	}
	defer cat.Close()

	recs, err := cat.Recent(cc.limit)
	if err != nil {
		return err
	}

	if len(recs) == 0 {
		fmt.Fprintln(os.Stdout, "No chunks recorded yet")

		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"BOOT ID", "SEQ START", "SAMPLES", "RATE HZ", "COMMITTED", "FILE"})

	for _, rec := range recs {
		t.AppendRow(table.Row{
			fmt.Sprintf("%016x", rec.BootID),
			rec.SeqStart,
			rec.SampleCount,
			rec.SampleRateHz,
			rec.CommittedAt.Format(time.RFC3339),
			filepath.Base(rec.File),
		})
	}

	t.Render()

	return nil
}
