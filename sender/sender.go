// Package sender implements the sending half of an Iris transfer: dial
// the relay, obtain a room, complete the PAKE handshake, advertise the
// file list, and stream every entry's bytes.
package sender

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pchan37/iris/cipher"
	"github.com/pchan37/iris/frame"
	"github.com/pchan37/iris/fswalk"
	"github.com/pchan37/iris/progress"
	"github.com/pchan37/iris/protocol"
)

// ChunkSize is the sender's file read buffer, so no chunk frame carries
// more than this; the receiver counts progress in the same unit. Fixed
// at 128 MiB.
const ChunkSize = 128 * 1024 * 1024

// Send runs the full sender state machine (Connect through Stream) to
// completion over conn. roots are the file/directory paths to
// transfer; passphrase is the secret half the receiver must already
// have (the room half is learned from the relay during this call and
// reported via events before the caller can show it to the user).
// events may be the zero value of progress.WorkerHandle if no progress
// reporting is wanted.
func Send(conn frame.Conn, cipherType cipher.Type, passphrase string, roots []string, events progress.WorkerHandle) error {
	if err := protocol.WriteMessage(conn, protocol.SenderConnecting()); err != nil {
		return err
	}

	assigned, err := protocol.ReadMessage(conn)
	if err != nil {
		return err
	}
	switch assigned.Tag {
	case protocol.TagAssignedRoomIdentifier:
	case protocol.TagServerError:
		return protocol.NewError(protocol.KindUnexpectedMessage, errServerError)
	default:
		return protocol.NewError(protocol.KindUnexpectedMessage, errUnexpected)
	}
	roomID := assigned.Room
	events.Emit(progress.Event{Kind: progress.EventAssignedRoomIdentifier, RoomIdentifier: uint16(roomID)})

	ready, err := protocol.ReadMessage(conn)
	if err != nil {
		return err
	}
	if ready.Tag != protocol.TagReceiverConnected {
		return protocol.NewError(protocol.KindUnexpectedMessage, errUnexpected)
	}

	if err := protocol.WriteMessage(conn, protocol.SetCipherType(cipherType)); err != nil {
		return err
	}
	events.Emit(progress.Event{Kind: progress.EventSetCipher, Cipher: cipherType})

	key, err := protocol.SenderHandshake(conn, roomID, passphrase)
	if err != nil {
		return err
	}
	aead, err := cipher.New(cipherType, key)
	if err != nil {
		return protocol.NewError(protocol.KindCryptoInit, err)
	}

	entries, totalBytes, err := fswalk.Walk(roots)
	if err != nil {
		return err
	}

	if err := expectEncrypted(conn, aead, protocol.TagReadyToReceiveMetadata); err != nil {
		return err
	}
	if err := protocol.WriteEncryptedProtocolMessage(conn, aead, protocol.TransferMetadata(len(entries), totalBytes)); err != nil {
		return err
	}
	events.Emit(progress.Event{Kind: progress.EventTransferMetadata, TotalFiles: len(entries), TotalBytes: totalBytes})
	if err := expectEncrypted(conn, aead, protocol.TagReadyToReceiveFiles); err != nil {
		return err
	}

	for _, entry := range entries {
		if err := streamEntry(conn, aead, entry, events); err != nil {
			return err
		}
		if cmd, ok := events.Poll(); ok && cmd == progress.Cancel {
			return protocol.NewError(protocol.KindCancelled, errCancelled)
		}
	}
	return nil
}

func streamEntry(conn frame.Conn, aead cipher.AEAD, entry fswalk.Entry, events progress.WorkerHandle) error {
	metadata, err := json.Marshal(entry.Metadata())
	if err != nil {
		return protocol.NewError(protocol.KindSerialization, err)
	}
	if err := protocol.WriteEncryptedMessage(conn, aead, metadata); err != nil {
		return err
	}
	events.Emit(progress.Event{Kind: progress.EventFileMetadata, Filename: entry.DestPath, FileSize: entry.Size})

	if entry.Type == fswalk.Directory {
		return streamDirectoryAck(conn, aead, entry, events)
	}
	return streamFile(conn, aead, entry, events)
}

func streamDirectoryAck(conn frame.Conn, aead cipher.AEAD, entry fswalk.Entry, events progress.WorkerHandle) error {
	msg, err := protocol.ReadEncryptedProtocolMessage(conn, aead)
	if err != nil {
		return err
	}
	switch msg.Tag {
	case protocol.TagDirectoryCreated:
		events.Emit(progress.Event{Kind: progress.EventDirectoryCreated, Filename: entry.DestPath})
		return nil
	case protocol.TagFileSkipped:
		events.Emit(progress.Event{Kind: progress.EventFileSkipped, Filename: entry.DestPath})
		return nil
	default:
		return protocol.NewError(protocol.KindUnexpectedMessage, errUnexpected)
	}
}

func streamFile(conn frame.Conn, aead cipher.AEAD, entry fswalk.Entry, events progress.WorkerHandle) error {
	msg, err := protocol.ReadEncryptedProtocolMessage(conn, aead)
	if err != nil {
		return err
	}
	switch msg.Tag {
	case protocol.TagFileSkipped:
		events.Emit(progress.Event{Kind: progress.EventFileSkipped, Filename: entry.DestPath})
		return nil
	case protocol.TagFileStartAtPos:
	default:
		return protocol.NewError(protocol.KindUnexpectedMessage, errUnexpected)
	}

	f, err := os.Open(entry.Source)
	if err != nil {
		return protocol.NewPathError(protocol.KindPermissionsUserIO, entry.Source, err)
	}
	defer f.Close()
	if _, err := f.Seek(int64(msg.StartPos), io.SeekStart); err != nil {
		return protocol.NewPathError(protocol.KindPermissionsUserIO, entry.Source, err)
	}

	buf := make([]byte, ChunkSize)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if err := protocol.WriteEncryptedMessage(conn, aead, buf[:n]); err != nil {
				return err
			}
			events.Emit(progress.Event{Kind: progress.EventChunkTransferred, ChunkSize: uint64(n)})

			ack, err := protocol.ReadEncryptedProtocolMessage(conn, aead)
			if err != nil {
				return err
			}
			if ack.Tag != protocol.TagChunkReceived {
				return protocol.NewError(protocol.KindUnexpectedMessage, errUnexpected)
			}
			if ack.IsLast {
				events.Emit(progress.Event{Kind: progress.EventFileDone, Filename: entry.DestPath})
				return nil
			}
		}
		if readErr == io.EOF {
			events.Emit(progress.Event{Kind: progress.EventFileDone, Filename: entry.DestPath})
			return nil
		}
		if readErr != nil {
			return protocol.NewPathError(protocol.KindPermissionsUserIO, entry.Source, readErr)
		}
	}
}

func expectEncrypted(conn frame.Conn, aead cipher.AEAD, want protocol.Tag) error {
	msg, err := protocol.ReadEncryptedProtocolMessage(conn, aead)
	if err != nil {
		return err
	}
	if msg.Tag != want {
		return protocol.NewError(protocol.KindUnexpectedMessage, errUnexpected)
	}
	return nil
}

var (
	errUnexpected  = unexpectedErr("unexpected protocol message for current state")
	errServerError = unexpectedErr("relay reported a server error")
	errCancelled   = unexpectedErr("transfer cancelled")
)

type unexpectedErr string

func (e unexpectedErr) Error() string { return string(e) }
