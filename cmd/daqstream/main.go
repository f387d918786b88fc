// Package main provides the entry point for the daqstream CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/daqstream/cmd/daqstream/commands"
	"github.com/Sumatoshi-tech/daqstream/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "daqstream",
		Short: "daqstream - sensor ring-buffer chunk logger",
		Long: `daqstream streams samples from a continuously-sampling source into
sequentially-numbered binary chunk files, controlled at runtime over a
local Unix socket.

Commands:
  run       Run the capture daemon
  ctl       Send a control command to a running daemon
  chunks    List committed chunks from the catalog
  inspect   Decode a chunk file header`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress output")

	// Add commands.
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewCtlCommand())
	rootCmd.AddCommand(commands.NewChunksCommand())
	rootCmd.AddCommand(commands.NewInspectCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "daqstream %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
