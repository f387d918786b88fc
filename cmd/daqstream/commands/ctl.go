package commands

import (
	"errors"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/daqstream/internal/config"
	"github.com/Sumatoshi-tech/daqstream/internal/control"
)

// ErrCommandRejected indicates the daemon replied with an ERROR line.
var ErrCommandRejected = errors.New("command rejected")

// CtlCommand holds flags for the control client.
type CtlCommand struct {
	socketPath string
	noColor    bool
}

// NewCtlCommand creates the `ctl` command: a one-shot control client for a
// running daemon.
func NewCtlCommand() *cobra.Command {
	cc := &CtlCommand{}

	cmd := &cobra.Command{
		Use:   "ctl COMMAND [ARG]",
		Short: "Send a control command to a running daemon",
		Long: `Ctl sends one command over the daemon's control socket and prints the
reply. Commands: START, STOP, STATUS, SET_RATE <hz>.`,
		Example: `  daqstream ctl START
  daqstream ctl SET_RATE 10000
  daqstream ctl STATUS`,
		Args: cobra.RangeArgs(1, 2),
		RunE: cc.run,
	}

	cmd.Flags().StringVarP(&cc.socketPath, "socket", "s", config.DefaultSocket, "control socket path")
	cmd.Flags().BoolVar(&cc.noColor, "no-color", false, "disable colored output")

	return cmd
}

func (cc *CtlCommand) run(_ *cobra.Command, args []string) error {
	if cc.noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	reply, err := control.Send(cc.socketPath, strings.Join(args, " "))
	if err != nil {
		return err
	}

	if strings.HasPrefix(reply, "ERROR:") {
		color.New(color.FgRed).Fprintln(os.Stdout, reply)

		return ErrCommandRejected
	}

	color.New(color.FgGreen).Fprintln(os.Stdout, reply)

	return nil
}
