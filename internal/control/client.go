package control

import (
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// sendTimeout bounds one full command/reply exchange from the client side.
const sendTimeout = 3 * time.Second

// Send connects to the control socket, sends one command line, and returns
// the server's reply with trailing whitespace trimmed. The server closes
// the connection after its single reply.
func Send(socketPath, command string) (string, error) {
	conn, err := net.DialTimeout("unix", socketPath, sendTimeout)
	if err != nil {
		return "", fmt.Errorf("connect control socket %s (is the daemon running?): %w", socketPath, err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(sendTimeout))

	_, err = io.WriteString(conn, command+"\n")
	if err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}

	return strings.TrimSpace(string(reply)), nil
}
