// Package relay implements the Iris rendezvous relay: it pairs a
// waiting sender with the receiver that supplies its RoomIdentifier and
// then blindly forwards frames between them in the fixed schedule the
// protocol's handshake follows. It never decrypts or inspects a frame
// payload past the clearing greeting.
package relay

import (
	"net"

	"github.com/pchan37/iris/frame"
	"github.com/pchan37/iris/protocol"
	"github.com/pchan37/iris/room"
	"github.com/rs/zerolog"
)

// DefaultWorkerPoolSize bounds how many room pairings can be actively
// relaying files at once; additional pairings queue behind the pool
// rather than spawn unbounded goroutines.
const DefaultWorkerPoolSize = 4

// Relay owns the accept loop, the room table, and the bounded pool of
// session workers.
type Relay struct {
	listener net.Listener
	rooms    *room.Table
	sem      chan struct{}
	log      zerolog.Logger
}

// New wraps an already-bound listener. Callers construct the listener
// themselves (net.Listen) so tests can use an ephemeral port.
func New(listener net.Listener, workerPoolSize int, logger zerolog.Logger) *Relay {
	if workerPoolSize <= 0 {
		workerPoolSize = DefaultWorkerPoolSize
	}
	return &Relay{
		listener: listener,
		rooms:    room.NewTable(),
		sem:      make(chan struct{}, workerPoolSize),
		log:      logger,
	}
}

// Serve runs the accept loop until the listener is closed, handling
// each connection's initial greeting inline and handing room-pairing
// work off to the bounded worker pool. It returns the error that ended
// the loop, typically the listener being closed.
func (r *Relay) Serve() error {
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			return err
		}
		r.handleConnection(conn)
	}
}

// handleConnection reads exactly one cleartext greeting message and
// either registers a new room (SenderConnecting) or claims one and
// spawns the relaying worker (ReceiverConnecting). Any other message,
// or a read failure, drops the connection: a single bad peer must never
// bring the relay down.
func (r *Relay) handleConnection(conn net.Conn) {
	msg, err := protocol.ReadMessage(conn)
	if err != nil {
		r.log.Debug().Err(err).Msg("failed to read greeting")
		conn.Close()
		return
	}

	switch msg.Tag {
	case protocol.TagSenderConnecting:
		r.registerSender(conn)
	case protocol.TagReceiverConnecting:
		r.pairReceiver(conn, msg.Room)
	default:
		r.log.Warn().Str("tag", string(msg.Tag)).Msg("unexpected greeting")
		conn.Close()
	}
}

// registerSender stores the sender's connection in the room table and
// reports its assigned identifier. If the reply write fails the room is
// torn down immediately: a sender that vanished before it even learned
// its own room identifier can never be reached by a receiver.
func (r *Relay) registerSender(conn net.Conn) {
	id := r.rooms.Insert(conn)
	if err := protocol.WriteMessage(conn, protocol.AssignedRoomIdentifier(id)); err != nil {
		r.rooms.Remove(id)
		conn.Close()
		r.log.Debug().Err(err).Uint16("room", uint16(id)).Msg("failed to notify sender of room identifier")
		return
	}
	r.log.Debug().Uint16("room", uint16(id)).Msg("sender registered")
}

// pairReceiver claims the sender waiting on id, if any, and schedules
// the relaying session on the bounded worker pool. An unknown
// identifier is reported to the receiver as BadRoomIdentifier and the
// connection is closed; the relay itself is never brought down by a
// bad room lookup.
func (r *Relay) pairReceiver(receiverConn net.Conn, id room.Identifier) {
	senderConn, ok := r.rooms.Remove(id)
	if !ok {
		_ = protocol.WriteMessage(receiverConn, protocol.BadRoomIdentifier())
		receiverConn.Close()
		r.log.Debug().Uint16("room", uint16(id)).Msg("receiver requested unknown room")
		return
	}

	r.sem <- struct{}{}
	go func() {
		defer func() { <-r.sem }()
		relaySession(senderConn, receiverConn, r.log.With().Uint16("room", uint16(id)).Logger())
	}()
}

// relaySession runs the fixed forwarding schedule the sender/receiver
// handshake depends on: the relay never parses past the greeting, it
// just moves one frame at a time in the order the protocol expects.
// Any forwarding failure ends the session; the relay makes no attempt
// to recover a half-completed transfer.
func relaySession(senderConn, receiverConn frame.Conn, log zerolog.Logger) {
	defer senderConn.Close()
	defer receiverConn.Close()

	// ReceiverConnected is synthesized by the relay itself, not forwarded:
	// the sender never writes it, so there is nothing to read off senderConn
	// here (mirrors registerSender's own direct protocol.WriteMessage).
	if err := protocol.WriteMessage(senderConn, protocol.ReceiverConnected()); err != nil {
		log.Debug().Err(err).Str("step", "ReceiverConnected").Msg("relay session ended")
		return
	}

	steps := []struct {
		from, to frame.Conn
		label    string
	}{
		{senderConn, receiverConn, "SetCipherType"},
		{receiverConn, senderConn, "pake share (receiver->sender)"},
		{senderConn, receiverConn, "pake share (sender->receiver)"},
		{receiverConn, senderConn, "ReadyToReceiveMetadata"},
		{senderConn, receiverConn, "TransferMetadata"},
		{receiverConn, senderConn, "ReadyToReceiveFiles"},
	}
	for _, step := range steps {
		if err := forward(step.from, step.to); err != nil {
			log.Debug().Err(err).Str("step", step.label).Msg("relay session ended")
			return
		}
	}

	log.Debug().Msg("relaying files")
	for {
		if err := forward(senderConn, receiverConn); err != nil {
			log.Debug().Err(err).Msg("relay session ended")
			return
		}
		if err := forward(receiverConn, senderConn); err != nil {
			log.Debug().Err(err).Msg("relay session ended")
			return
		}
	}
}

// forward reads a single frame from src and writes it unchanged to dst.
func forward(src, dst frame.Conn) error {
	data, err := frame.ReadFrame(src)
	if err != nil {
		return err
	}
	return frame.WriteFrame(dst, data)
}
