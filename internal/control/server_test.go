package control

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/daqstream/internal/capture"
)

// startTestServer binds a server on a throwaway socket and runs it until
// the test ends.
func startTestServer(t *testing.T, state *capture.State, status StatusFunc) string {
	t.Helper()

	if status == nil {
		status = func() capture.Status {
			enabled, rate := state.Snapshot()

			return capture.Status{Enabled: enabled, RequestedRateHz: rate, ActualRateHz: rate}
		}
	}

	path := filepath.Join(t.TempDir(), "ctrl.sock")
	srv := NewServer(path, state, status, nil)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		srv.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	return path
}

func TestServer_StartStop(t *testing.T) {
	t.Parallel()

	state := capture.NewState(4000)
	path := startTestServer(t, state, nil)

	reply, err := Send(path, "START")
	require.NoError(t, err)
	assert.Equal(t, "OK: START", reply)
	assert.True(t, state.Enabled())

	reply, err = Send(path, "STOP")
	require.NoError(t, err)
	assert.Equal(t, "OK: STOP", reply)
	assert.False(t, state.Enabled())
}

func TestServer_CommandNormalization(t *testing.T) {
	t.Parallel()

	state := capture.NewState(4000)
	path := startTestServer(t, state, nil)

	// Lowercase token and trailing whitespace are accepted.
	reply, err := Send(path, "  start  ")
	require.NoError(t, err)
	assert.Equal(t, "OK: START", reply)
	assert.True(t, state.Enabled())
}

func TestServer_SetRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		command   string
		reply     string
		wantRate  float64
		unchanged bool
	}{
		{name: "valid", command: "SET_RATE 120", reply: "OK: SET_RATE 120", wantRate: 120},
		{name: "valid float", command: "SET_RATE 99.5", reply: "OK: SET_RATE 99.5", wantRate: 99.5},
		{name: "zero rejected", command: "SET_RATE 0", unchanged: true},
		{name: "negative rejected", command: "SET_RATE -5", unchanged: true},
		{name: "too large rejected", command: "SET_RATE 200000", unchanged: true},
		{name: "not a number", command: "SET_RATE fast", unchanged: true},
		{name: "missing argument", command: "SET_RATE", unchanged: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			state := capture.NewState(4000)
			path := startTestServer(t, state, nil)

			reply, err := Send(path, tc.command)
			require.NoError(t, err)

			if tc.unchanged {
				assert.True(t, strings.HasPrefix(reply, "ERROR:"), "reply %q", reply)
				assert.InDelta(t, 4000.0, state.RequestedRate(), 1e-9)

				return
			}

			assert.Equal(t, tc.reply, reply)
			assert.InDelta(t, tc.wantRate, state.RequestedRate(), 1e-9)
		})
	}
}

func TestServer_UnknownCommand(t *testing.T) {
	t.Parallel()

	state := capture.NewState(4000)
	path := startTestServer(t, state, nil)

	reply, err := Send(path, "reboot")
	require.NoError(t, err)
	assert.Equal(t, "ERROR: Unknown command: REBOOT", reply)
}

func TestServer_OverlongLineRejected(t *testing.T) {
	t.Parallel()

	state := capture.NewState(4000)
	path := startTestServer(t, state, nil)

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)

	defer conn.Close()

	// A command line with no newline inside the read cap must be rejected,
	// never dispatched truncated.
	_, err = conn.Write(bytes.Repeat([]byte("A"), 600))
	require.NoError(t, err)

	reply, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ERROR: Command too long", strings.TrimSpace(reply))
	assert.False(t, state.Enabled())
}

func TestServer_StatusBeforeStart(t *testing.T) {
	t.Parallel()

	state := capture.NewState(4000)

	status := func() capture.Status {
		enabled, rate := state.Snapshot()

		return capture.Status{Enabled: enabled, RequestedRateHz: rate, ActualRateHz: rate}
	}

	path := startTestServer(t, state, status)

	reply, err := Send(path, "STATUS")
	require.NoError(t, err)
	assert.Equal(t, "OK: STATUS capture=off requested_hz=4000 actual_hz=4000 buffered_samples=0 seq=0 dropped_samples=0", reply)
}

func TestServer_OneCommandPerConnection(t *testing.T) {
	t.Parallel()

	state := capture.NewState(4000)
	path := startTestServer(t, state, nil)

	// Sequential exchanges each get their own connection and reply.
	for _, cmd := range []string{"START", "STATUS", "STOP"} {
		reply, err := Send(path, cmd)
		require.NoError(t, err)
		assert.Contains(t, reply, "OK:", "command %s", cmd)
	}
}

func TestFormatStatus(t *testing.T) {
	t.Parallel()

	got := formatStatus(capture.Status{
		Enabled:         true,
		RequestedRateHz: 120,
		ActualRateHz:    120,
		BufferedSamples: 240,
		Seq:             960,
		DroppedSamples:  8,
	})

	assert.Equal(t, "OK: STATUS capture=on requested_hz=120 actual_hz=120 buffered_samples=240 seq=960 dropped_samples=8", got)
}
