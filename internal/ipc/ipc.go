// Package ipc provides the local admin channel a running uniclipboard
// daemon exposes to its own CLI subcommands (pair/status/copy/paste), so
// they can reach the daemon's live state (pairing sessions, trust store,
// current clipboard) without opening a second TCP connection to peers.
// Grounded on the teacher's Unix-socket IPC channel for copy/paste/status,
// generalized to a named pipe on Windows via go-winio, and to a small JSON
// request/response protocol (internal/ipc/protocol.go) in place of gRPC.
package ipc

import (
	"net"
	"os"
)

// SocketPath returns the platform-appropriate path for the admin socket.
//
//   - Linux / macOS: $XDG_RUNTIME_DIR/uniclipboard.sock, falling back to
//     $TMPDIR/uniclipboard.sock (override with $UC_SOCKET)
//   - Windows: \\.\pipe\uniclipboard
func SocketPath() string {
	if s := os.Getenv("UC_SOCKET"); s != "" {
		return s
	}
	return socketPath()
}

// IsRunning reports whether a uniclipboard daemon appears to be listening
// on the admin socket. It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	c, err := dialIPC(SocketPath())
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates and returns a net.Listener on the admin socket path,
// removing any stale socket file first.
func Listen() (net.Listener, error) {
	path := SocketPath()
	// Remove stale socket from a previous (crashed) run.
	_ = os.Remove(path)
	return listenIPC(path)
}

// Dial connects to a running daemon's admin socket.
func Dial() (net.Conn, error) {
	return dialIPC(SocketPath())
}
