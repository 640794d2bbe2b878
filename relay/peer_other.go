//go:build !unix

package relay

import "net"

func peerClosed(net.Conn) (closed bool, ok bool) {
	return false, false
}
