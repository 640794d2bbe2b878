//go:build unix

package relay

import (
	"errors"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// peerClosed peeks at conn without consuming any byte. ok is false when the
// connection does not expose a socket.
func peerClosed(conn net.Conn) (closed bool, ok bool) {
	sc, isSocket := conn.(syscall.Conn)
	if !isSocket {
		return false, false
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return false, false
	}

	var (
		buf   [1]byte
		n     int
		recvE error
	)
	err = raw.Read(func(fd uintptr) bool {
		n, _, recvE = unix.Recvfrom(int(fd), buf[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
		return true
	})
	if err != nil {
		// Closed on our side.
		return true, true
	}

	switch {
	case recvE == nil:
		// Zero bytes on a stream socket is an orderly shutdown by the peer.
		return n == 0, true
	case errors.Is(recvE, unix.EAGAIN), errors.Is(recvE, unix.EINTR):
		return false, true
	default:
		return true, true
	}
}
