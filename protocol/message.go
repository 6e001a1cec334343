package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/pchan37/iris/cipher"
	"github.com/pchan37/iris/room"
)

// Tag names the ProtocolMessage variant. These are exactly the tags
// from spec.md §3. A variant without data serializes as the bare JSON
// string "Tag"; a variant with data as {"Tag": {...fields}} (see
// MarshalJSON).
type Tag string

const (
	TagAcknowledge             Tag = "Acknowledge"
	TagSenderConnecting        Tag = "SenderConnecting"
	TagAssignedRoomIdentifier  Tag = "AssignedRoomIdentifier"
	TagReceiverConnecting      Tag = "ReceiverConnecting"
	TagReceiverConnected       Tag = "ReceiverConnected"
	TagSetCipherType           Tag = "SetCipherType"
	TagReadyToReceiveMetadata  Tag = "ReadyToReceiveMetadata"
	TagTransferMetadata        Tag = "TransferMetadata"
	TagReadyToReceiveFiles     Tag = "ReadyToReceiveFiles"
	TagDirectoryCreated        Tag = "DirectoryCreated"
	TagFileSkipped             Tag = "FileSkipped"
	TagFileStartAtPos          Tag = "FileStartAtPos"
	TagChunkReceived           Tag = "ChunkReceived"
	TagUnexpectedMessage       Tag = "UnexpectedMessage"
	TagServerError             Tag = "ServerError"
	TagBadRoomIdentifier       Tag = "BadRoomIdentifier"
)

// Message is the tagged variant carried over the wire, either in the
// clear (during the initial greeting) or as the JSON payload of an
// encrypted message. Only the fields relevant to Tag are populated.
type Message struct {
	Tag Tag

	Room       room.Identifier // AssignedRoomIdentifier, ReceiverConnecting
	Cipher     cipher.Type     // SetCipherType
	TotalFiles int             // TransferMetadata
	TotalBytes uint64          // TransferMetadata
	StartPos   uint64          // FileStartAtPos
	IsLast     bool            // ChunkReceived
}

// Convenience constructors, one per variant, so call sites read like the
// tagged-enum literals in spec.md §3.

func Acknowledge() Message            { return Message{Tag: TagAcknowledge} }
func SenderConnecting() Message       { return Message{Tag: TagSenderConnecting} }
func ReceiverConnected() Message      { return Message{Tag: TagReceiverConnected} }
func ReadyToReceiveMetadata() Message { return Message{Tag: TagReadyToReceiveMetadata} }
func ReadyToReceiveFiles() Message    { return Message{Tag: TagReadyToReceiveFiles} }
func DirectoryCreated() Message       { return Message{Tag: TagDirectoryCreated} }
func FileSkipped() Message            { return Message{Tag: TagFileSkipped} }
func UnexpectedMessage() Message      { return Message{Tag: TagUnexpectedMessage} }
func ServerError() Message            { return Message{Tag: TagServerError} }
func BadRoomIdentifier() Message      { return Message{Tag: TagBadRoomIdentifier} }

func AssignedRoomIdentifier(id room.Identifier) Message {
	return Message{Tag: TagAssignedRoomIdentifier, Room: id}
}

func ReceiverConnecting(id room.Identifier) Message {
	return Message{Tag: TagReceiverConnecting, Room: id}
}

func SetCipherType(c cipher.Type) Message {
	return Message{Tag: TagSetCipherType, Cipher: c}
}

func TransferMetadata(totalFiles int, totalBytes uint64) Message {
	return Message{Tag: TagTransferMetadata, TotalFiles: totalFiles, TotalBytes: totalBytes}
}

func FileStartAtPos(pos uint64) Message {
	return Message{Tag: TagFileStartAtPos, StartPos: pos}
}

func ChunkReceived(isLast bool) Message {
	return Message{Tag: TagChunkReceived, IsLast: isLast}
}

// wire payload shapes, one struct per non-unit variant.
type (
	roomPayload struct {
		RoomIdentifier uint16 `json:"room_identifier"`
	}
	cipherPayload struct {
		CipherType string `json:"cipher_type"`
	}
	transferMetadataPayload struct {
		TotalFiles int    `json:"total_files"`
		TotalBytes uint64 `json:"total_bytes"`
	}
	fileStartAtPosPayload struct {
		StartPos uint64 `json:"start_pos"`
	}
	chunkReceivedPayload struct {
		IsLast bool `json:"is_last"`
	}
)

// MarshalJSON implements json.Marshaler. Variants with no data serialize
// as a bare JSON string (matching Rust serde's default externally-tagged
// representation for a unit enum variant); this is what makes the
// Acknowledge dialect constant exactly 13 bytes ("\"Acknowledge\"").
// Variants carrying data serialize as {"Tag": {...fields}}, the shape
// spec.md §6 shows for AssignedRoomIdentifier.
func (m Message) MarshalJSON() ([]byte, error) {
	var payload interface{}
	switch m.Tag {
	case TagAssignedRoomIdentifier, TagReceiverConnecting:
		payload = roomPayload{RoomIdentifier: uint16(m.Room)}
	case TagSetCipherType:
		payload = cipherPayload{CipherType: m.Cipher.String()}
	case TagTransferMetadata:
		payload = transferMetadataPayload{TotalFiles: m.TotalFiles, TotalBytes: m.TotalBytes}
	case TagFileStartAtPos:
		payload = fileStartAtPosPayload{StartPos: m.StartPos}
	case TagChunkReceived:
		payload = chunkReceivedPayload{IsLast: m.IsLast}
	default:
		return json.Marshal(string(m.Tag))
	}
	encodedPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{string(m.Tag): encodedPayload})
}

// UnmarshalJSON implements json.Unmarshaler. It first tries the bare
// string shape unit variants serialize to, then falls back to the
// {"Tag": payload} object shape for variants that carry data.
func (m *Message) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		m.Tag = Tag(bare)
		return nil
	}

	var wire map[string]json.RawMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if len(wire) != 1 {
		return fmt.Errorf("protocol message must have exactly one tag, got %d", len(wire))
	}
	for tag, raw := range wire {
		m.Tag = Tag(tag)
		switch m.Tag {
		case TagAssignedRoomIdentifier, TagReceiverConnecting:
			var p roomPayload
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			m.Room = room.Identifier(p.RoomIdentifier)
		case TagSetCipherType:
			var p cipherPayload
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			c, err := cipher.ParseType(p.CipherType)
			if err != nil {
				return err
			}
			m.Cipher = c
		case TagTransferMetadata:
			var p transferMetadataPayload
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			m.TotalFiles, m.TotalBytes = p.TotalFiles, p.TotalBytes
		case TagFileStartAtPos:
			var p fileStartAtPosPayload
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			m.StartPos = p.StartPos
		case TagChunkReceived:
			var p chunkReceivedPayload
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			m.IsLast = p.IsLast
		}
	}
	return nil
}
