// Package control serves the capture control plane over a local Unix stream
// socket: newline-terminated ASCII commands, one request and one reply per
// connection.
package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/daqstream/internal/capture"
)

// Protocol limits.
const (
	// MaxRateHz is the upper bound accepted by SET_RATE.
	MaxRateHz = 100000.0
	// maxLineBytes bounds one command line.
	maxLineBytes = 256
	// defaultAcceptTimeout bounds one accept wait so the loop re-checks
	// shutdown.
	defaultAcceptTimeout = 500 * time.Millisecond
	// connTimeout bounds the whole command/reply exchange on a connection.
	connTimeout = 2 * time.Second
)

// Commands understood by the server.
const (
	cmdStart   = "START"
	cmdStop    = "STOP"
	cmdStatus  = "STATUS"
	cmdSetRate = "SET_RATE"
)

// StatusFunc supplies a point-in-time pipeline snapshot for STATUS replies.
type StatusFunc func() capture.Status

// Server accepts one control connection at a time, executes one command per
// connection against the shared capture state, and replies with a single
// text line.
type Server struct {
	path          string
	state         *capture.State
	status        StatusFunc
	acceptTimeout time.Duration
	logger        *slog.Logger

	listener *net.UnixListener
}

// NewServer creates a control server for the given socket path. The logger
// may be nil.
func NewServer(path string, state *capture.State, status StatusFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Server{
		path:          path,
		state:         state,
		status:        status,
		acceptTimeout: defaultAcceptTimeout,
		logger:        logger,
	}
}

// Listen binds the Unix socket, removing a stale socket file left by a
// previous run. A bind failure here is startup-fatal for the daemon.
func (s *Server) Listen() error {
	// A leftover socket file from an unclean shutdown would make the bind
	// fail; remove it first. ENOENT is the normal case.
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale control socket %s: %w", s.path, err)
	}

	addr, err := net.ResolveUnixAddr("unix", s.path)
	if err != nil {
		return fmt.Errorf("resolve control socket %s: %w", s.path, err)
	}

	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("bind control socket %s: %w", s.path, err)
	}

	s.listener = ln

	return nil
}

// Addr returns the socket path the server is bound to.
func (s *Server) Addr() string { return s.path }

// Run accepts and serves connections until ctx is cancelled. Each accept
// wait is bounded by a deadline so the loop re-checks ctx without a
// dedicated cancellation mechanism. The socket is closed and unlinked on
// return.
func (s *Server) Run(ctx context.Context) {
	defer func() {
		_ = s.listener.Close()
		_ = os.Remove(s.path)

		s.logger.Info("control server stopped")
	}()

	s.logger.Info("control server listening", "socket", s.path)

	for ctx.Err() == nil {
		_ = s.listener.SetDeadline(time.Now().Add(s.acceptTimeout))

		conn, err := s.listener.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			if ctx.Err() != nil {
				return
			}

			s.logger.Warn("control accept failed", "err", err)

			continue
		}

		s.serveConn(conn)
	}
}

// serveConn reads one command line, dispatches it, writes the reply, and
// closes the connection. Not a persistent session protocol. The read is
// capped at maxLineBytes; a longer line is rejected, not dispatched
// truncated.
func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	line, err := bufio.NewReaderSize(io.LimitReader(conn, maxLineBytes), maxLineBytes).ReadString('\n')
	if err != nil && line == "" {
		s.logger.Warn("control read failed", "err", err)

		return
	}

	var reply string

	if err != nil && len(line) == maxLineBytes {
		reply = "ERROR: Command too long"
	} else {
		reply = s.dispatch(line)
	}

	_, err = io.WriteString(conn, reply+"\n")
	if err != nil {
		s.logger.Warn("control reply failed", "err", err)
	}
}

// dispatch normalizes one command line and executes it: trailing whitespace
// trimmed, command token uppercased, at most one argument split off.
func (s *Server) dispatch(line string) string {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return "ERROR: Empty command"
	}

	cmd := strings.ToUpper(fields[0])

	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch cmd {
	case cmdStart:
		s.state.SetEnabled(true)
		s.logger.Info("capture enabled by operator")

		return "OK: START"

	case cmdStop:
		s.state.SetEnabled(false)
		s.logger.Info("capture disabled by operator")

		return "OK: STOP"

	case cmdStatus:
		return formatStatus(s.status())

	case cmdSetRate:
		return s.setRate(arg)

	default:
		return "ERROR: Unknown command: " + cmd
	}
}

// setRate validates and applies a SET_RATE argument. The capture state is
// left untouched on any validation failure.
func (s *Server) setRate(arg string) string {
	if arg == "" {
		return "ERROR: SET_RATE requires a rate argument"
	}

	rate, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return fmt.Sprintf("ERROR: Invalid rate %q", arg)
	}

	if rate <= 0 || rate > MaxRateHz {
		return fmt.Sprintf("ERROR: Rate must be greater than 0 and at most %.0f", MaxRateHz)
	}

	s.state.SetRequestedRate(rate)
	s.logger.Info("sample rate requested by operator", "rate_hz", rate)

	return fmt.Sprintf("OK: SET_RATE %g", rate)
}

// formatStatus renders the multi-field STATUS reply line.
func formatStatus(st capture.Status) string {
	mode := "off"
	if st.Enabled {
		mode = "on"
	}

	return fmt.Sprintf("OK: STATUS capture=%s requested_hz=%g actual_hz=%g buffered_samples=%d seq=%d dropped_samples=%d",
		mode, st.RequestedRateHz, st.ActualRateHz, st.BufferedSamples, st.Seq, st.DroppedSamples)
}
