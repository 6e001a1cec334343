// Package frame implements the length-prefixed framing layer that every
// Iris connection is built on: a 4-byte big-endian length followed by
// that many bytes of opaque payload. The relay forwards frames without
// ever looking past this layer.
package frame

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// MaxFrameSize bounds a single frame's payload so that a misbehaving or
// malicious peer cannot force an unbounded allocation.
const MaxFrameSize = 1 << 30 // 1 GiB; comfortably above CHUNK_SIZE

// A Conn is a reliable, ordered byte stream that frames are read from and
// written to. net.Conn satisfies it; so does the in-memory pipe returned
// by NewPipe, which lets tests exercise the protocol without a real
// socket.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// DialTCP connects to addr and disables Nagle's algorithm, so that small
// control frames are not held back waiting to coalesce with later
// writes.
func DialTCP(addr string) (*net.TCPConn, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("stream initialization: %w", err)
	}
	tc := conn.(*net.TCPConn)
	if err := tc.SetNoDelay(true); err != nil {
		tc.Close()
		return nil, fmt.Errorf("stream initialization: %w", err)
	}
	return tc, nil
}

// WriteFrame writes a single length-prefixed frame to conn. There is no
// internal buffering layer to flush: each Write call is expected to hit
// the wire immediately, which is why DialTCP disables Nagle.
func WriteFrame(conn Conn, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("user connection write: frame of %d bytes exceeds max %d", len(payload), MaxFrameSize)
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := conn.Write(prefix[:]); err != nil {
		return fmt.Errorf("user connection write: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("user connection write: %w", err)
	}
	return nil
}

// ReadFrame reads a single length-prefixed frame from conn.
func ReadFrame(conn Conn) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(conn, prefix[:]); err != nil {
		return nil, fmt.Errorf("user connection read: %w", err)
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("user connection read: frame of %d bytes exceeds max %d", n, MaxFrameSize)
	}
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(conn, payload); err != nil {
			return nil, fmt.Errorf("user connection read: %w", err)
		}
	}
	return payload, nil
}
