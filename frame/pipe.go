package frame

import "net"

// NewPipe returns a pair of connected, in-memory Conns, analogous to the
// original implementation's channel-backed stream. Tests use it to
// exercise the protocol without the overhead or nondeterminism of real
// sockets; see TrackingConn for the wrapper that records frame-level
// reads/writes for spec.md §8 Testable Properties 3 and 4.
func NewPipe() (a, b net.Conn) {
	return net.Pipe()
}
