// Package receiver implements the receiving half of an Iris transfer:
// connect to the relay with a room identifier, complete the PAKE
// handshake, and write incoming files and directories to disk under a
// ConflictingFileMode policy.
package receiver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pchan37/iris/cipher"
	"github.com/pchan37/iris/frame"
	"github.com/pchan37/iris/fswalk"
	"github.com/pchan37/iris/progress"
	"github.com/pchan37/iris/protocol"
	"github.com/pchan37/iris/room"
)

// ChunkSize mirrors sender.ChunkSize: both peers must agree on it,
// since the receiver counts each chunk as min(ChunkSize, bytes left)
// when tracking progress and deciding which chunk is the last.
const ChunkSize = 128 * 1024 * 1024

// ConflictingFileMode governs how the receiver reacts to a destination
// path that already exists on disk.
type ConflictingFileMode int

const (
	// Error is the default: any collision is fatal.
	Error ConflictingFileMode = iota
	Overwrite
	Skip
	Resume
)

func (m ConflictingFileMode) String() string {
	switch m {
	case Overwrite:
		return "overwrite"
	case Skip:
		return "skip"
	case Resume:
		return "resume"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("ConflictingFileMode(%d)", int(m))
	}
}

// ParseConflictingFileMode parses the CLI flag spelling.
func ParseConflictingFileMode(s string) (ConflictingFileMode, error) {
	switch strings.ToLower(s) {
	case "overwrite":
		return Overwrite, nil
	case "skip":
		return Skip, nil
	case "resume":
		return Resume, nil
	case "error":
		return Error, nil
	default:
		return 0, fmt.Errorf("receiver: unknown conflicting file mode %q", s)
	}
}

// SplitPassphrase splits the user-facing passphrase "<room>-<secret>"
// into its room identifier and PAKE secret halves, per spec.md §4.8.
func SplitPassphrase(passphrase string) (room.Identifier, string, error) {
	roomPart, secret, ok := strings.Cut(passphrase, "-")
	if !ok {
		return 0, "", protocol.NewError(protocol.KindInvalidPassphrase, fmt.Errorf("passphrase missing '-' separator"))
	}
	n, err := strconv.ParseUint(roomPart, 10, 16)
	if err != nil {
		return 0, "", protocol.NewError(protocol.KindInvalidPassphrase, err)
	}
	id := room.Identifier(n)
	if !id.Valid() {
		return 0, "", protocol.NewError(protocol.KindInvalidPassphrase, fmt.Errorf("room identifier %d out of range", n))
	}
	return id, secret, nil
}

// Receive runs the full receiver state machine (Connect through
// Receive) to completion over conn, writing entries under destRoot
// using mode to resolve collisions.
func Receive(conn frame.Conn, id room.Identifier, passphrase string, destRoot string, mode ConflictingFileMode, events progress.WorkerHandle) error {
	if err := protocol.WriteMessage(conn, protocol.ReceiverConnecting(id)); err != nil {
		return err
	}

	msg, err := protocol.ReadMessage(conn)
	if err != nil {
		return err
	}
	switch msg.Tag {
	case protocol.TagSetCipherType:
	case protocol.TagBadRoomIdentifier:
		return protocol.NewError(protocol.KindInvalidPassphrase, fmt.Errorf("relay rejected room identifier"))
	default:
		return protocol.NewError(protocol.KindUnexpectedMessage, errUnexpected)
	}
	cipherType := msg.Cipher
	events.Emit(progress.Event{Kind: progress.EventSetCipher, Cipher: cipherType})

	key, err := protocol.ReceiverHandshake(conn, id, passphrase)
	if err != nil {
		return err
	}
	aead, err := cipher.New(cipherType, key)
	if err != nil {
		return protocol.NewError(protocol.KindCryptoInit, err)
	}

	if err := protocol.WriteEncryptedProtocolMessage(conn, aead, protocol.ReadyToReceiveMetadata()); err != nil {
		return err
	}
	transferMsg, err := protocol.ReadEncryptedProtocolMessage(conn, aead)
	if err != nil {
		return err
	}
	if transferMsg.Tag != protocol.TagTransferMetadata {
		return protocol.NewError(protocol.KindUnexpectedMessage, errUnexpected)
	}
	events.Emit(progress.Event{
		Kind:       progress.EventTransferMetadata,
		TotalFiles: transferMsg.TotalFiles,
		TotalBytes: transferMsg.TotalBytes,
	})
	if err := protocol.WriteEncryptedProtocolMessage(conn, aead, protocol.ReadyToReceiveFiles()); err != nil {
		return err
	}

	for i := 0; i < transferMsg.TotalFiles; i++ {
		if err := receiveEntry(conn, aead, destRoot, mode, events); err != nil {
			return err
		}
		if cmd, ok := events.Poll(); ok && cmd == progress.Cancel {
			return protocol.NewError(protocol.KindCancelled, errCancelled)
		}
	}
	return nil
}

func receiveEntry(conn frame.Conn, aead cipher.AEAD, destRoot string, mode ConflictingFileMode, events progress.WorkerHandle) error {
	raw, err := protocol.ReadEncryptedMessage(conn, aead)
	if err != nil {
		return err
	}
	var m fswalk.Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return protocol.NewError(protocol.KindDeserialization, err)
	}
	dest := filepath.Join(destRoot, filepath.Clean(m.DestFilename))
	events.Emit(progress.Event{Kind: progress.EventFileMetadata, Filename: m.DestFilename, FileSize: m.Size})

	if m.FileType == fswalk.Directory {
		return receiveDirectory(conn, aead, dest, m, mode, events)
	}
	return receiveFile(conn, aead, dest, m, mode, events)
}

func receiveDirectory(conn frame.Conn, aead cipher.AEAD, dest string, m fswalk.Metadata, mode ConflictingFileMode, events progress.WorkerHandle) error {
	switch mode {
	case Overwrite:
		os.RemoveAll(dest)
		if err := os.Mkdir(dest, 0o755); err != nil {
			return protocol.NewPathError(protocol.KindPermissionsUserIO, dest, err)
		}
	case Skip, Resume:
		if err := os.Mkdir(dest, 0o755); err != nil {
			events.Emit(progress.Event{Kind: progress.EventFileSkipped, Filename: m.DestFilename})
			return protocol.WriteEncryptedProtocolMessage(conn, aead, protocol.FileSkipped())
		}
	default: // Error
		if err := os.Mkdir(dest, 0o755); err != nil {
			return protocol.NewPathError(protocol.KindAlreadyExistsUserIO, dest, err)
		}
	}

	events.Emit(progress.Event{Kind: progress.EventDirectoryCreated, Filename: m.DestFilename})
	return protocol.WriteEncryptedProtocolMessage(conn, aead, protocol.DirectoryCreated())
}

func receiveFile(conn frame.Conn, aead cipher.AEAD, dest string, m fswalk.Metadata, mode ConflictingFileMode, events progress.WorkerHandle) error {
	f, startPos, skip, err := openDestination(dest, m.Size, mode)
	if err != nil {
		return err
	}
	if skip {
		events.Emit(progress.Event{Kind: progress.EventFileSkipped, Filename: m.DestFilename})
		return protocol.WriteEncryptedProtocolMessage(conn, aead, protocol.FileSkipped())
	}
	defer f.Close()

	events.Emit(progress.Event{Kind: progress.EventChunkTransferred, ChunkSize: startPos})
	if err := protocol.WriteEncryptedProtocolMessage(conn, aead, protocol.FileStartAtPos(startPos)); err != nil {
		return err
	}

	bytesLeft := m.Size - startPos
	for bytesLeft > 0 {
		chunk, err := protocol.ReadEncryptedMessage(conn, aead)
		if err != nil {
			return err
		}
		if _, err := f.Write(chunk); err != nil {
			return protocol.NewPathError(protocol.KindPermissionsUserIO, dest, err)
		}
		n := uint64(ChunkSize)
		if n > bytesLeft {
			n = bytesLeft
		}
		bytesLeft -= n
		events.Emit(progress.Event{Kind: progress.EventChunkTransferred, ChunkSize: n})
		if err := protocol.WriteEncryptedProtocolMessage(conn, aead, protocol.ChunkReceived(bytesLeft == 0)); err != nil {
			return err
		}
	}
	events.Emit(progress.Event{Kind: progress.EventFileDone, Filename: m.DestFilename})
	return nil
}

// openDestination resolves the file handle and resume offset for dest
// under mode. skip is true when the entry should be reported
// FileSkipped without opening a handle at all.
func openDestination(dest string, declaredSize uint64, mode ConflictingFileMode) (f *os.File, startPos uint64, skip bool, err error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, 0, false, protocol.NewPathError(protocol.KindPermissionsUserIO, dest, err)
	}

	switch mode {
	case Overwrite:
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, 0, false, protocol.NewPathError(protocol.KindPermissionsUserIO, dest, err)
		}
		return f, 0, false, nil

	case Skip:
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, 0, true, nil
		}
		return f, 0, false, nil

	case Resume:
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return nil, 0, false, protocol.NewPathError(protocol.KindPermissionsUserIO, dest, err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, 0, false, protocol.NewPathError(protocol.KindPermissionsUserIO, dest, err)
		}
		size := uint64(info.Size())
		if size == declaredSize {
			f.Close()
			return nil, 0, true, nil
		}
		if _, err := f.Seek(int64(size), 0); err != nil {
			f.Close()
			return nil, 0, false, protocol.NewPathError(protocol.KindPermissionsUserIO, dest, err)
		}
		return f, size, false, nil

	default: // Error
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, 0, false, protocol.NewPathError(protocol.KindAlreadyExistsUserIO, dest, err)
		}
		return f, 0, false, nil
	}
}

var (
	errUnexpected = unexpectedErr("unexpected protocol message for current state")
	errCancelled  = unexpectedErr("transfer cancelled")
)

type unexpectedErr string

func (e unexpectedErr) Error() string { return string(e) }
