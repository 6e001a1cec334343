// Package room implements the relay's room table: the mapping from a
// short numeric RoomIdentifier to the sender socket waiting on it.
package room

import (
	"fmt"
	"sync"

	"github.com/pchan37/iris/frame"
	"lukechampine.com/frand"
)

// Identifier is the four-digit rendezvous label a sender is assigned and
// a receiver supplies to be paired with it.
type Identifier uint16

const (
	minIdentifier = 1000
	maxIdentifier = 9999
)

// String implements fmt.Stringer.
func (id Identifier) String() string { return fmt.Sprintf("%d", uint16(id)) }

// Valid reports whether id falls within the legal room-identifier range.
func (id Identifier) Valid() bool {
	return id >= minIdentifier && id <= maxIdentifier
}

// generate draws a random identifier in [1000, 9999].
func generate() Identifier {
	return Identifier(minIdentifier + frand.Intn(maxIdentifier-minIdentifier+1))
}

// Table maps a RoomIdentifier to the sender socket owned by the relay
// while that sender waits for its matching receiver. It is designed to
// be confined to a single goroutine (the relay's accept loop): the
// mutex below exists only to make that confinement safe to assert
// under the race detector, not because concurrent access is expected.
type Table struct {
	mu    sync.Mutex
	conns map[Identifier]frame.Conn
}

// NewTable returns an empty room table.
func NewTable() *Table {
	return &Table{conns: make(map[Identifier]frame.Conn)}
}

// Insert draws a fresh, currently-unused Identifier, stores conn under
// it, and returns the identifier. Collisions are redrawn.
func (t *Table) Insert(conn frame.Conn) Identifier {
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		id := generate()
		if _, taken := t.conns[id]; taken {
			continue
		}
		t.conns[id] = conn
		return id
	}
}

// Remove removes and returns the connection registered under id, if
// any. It is used both when a receiver arrives to claim the room and
// when the sender's own registration write fails.
func (t *Table) Remove(id Identifier) (frame.Conn, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	conn, ok := t.conns[id]
	if ok {
		delete(t.conns, id)
	}
	return conn, ok
}

// Len reports the number of rooms currently awaiting a receiver.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}
