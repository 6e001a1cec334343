package protocol

import (
	"encoding/json"

	"github.com/pchan37/iris/cipher"
	"github.com/pchan37/iris/frame"
)

// WriteMessage serializes msg to canonical JSON and writes it as a
// single cleartext frame. Used only for the pre-PAKE greeting (§4.5,
// §4.7 Connect/AwaitRoom/AwaitCipher states); every message on the wire
// after the handshake goes through WriteEncryptedMessage instead.
func WriteMessage(conn frame.Conn, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return NewError(KindSerialization, err)
	}
	if err := frame.WriteFrame(conn, data); err != nil {
		return NewError(KindUserConnectionWrite, err)
	}
	return nil
}

// ReadMessage reads a single cleartext frame and parses it as a
// Message.
func ReadMessage(conn frame.Conn) (Message, error) {
	data, err := frame.ReadFrame(conn)
	if err != nil {
		return Message{}, NewError(KindUserConnectionRead, err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, NewError(KindDeserialization, err)
	}
	return msg, nil
}

// WriteEncryptedMessage seals raw plaintext bytes under aead and writes
// the nonce||ciphertext as a single frame.
func WriteEncryptedMessage(conn frame.Conn, aead cipher.AEAD, plaintext []byte) error {
	ciphertext, err := aead.Encrypt(plaintext)
	if err != nil {
		return NewError(KindCryptoEncryption, err)
	}
	if err := frame.WriteFrame(conn, ciphertext); err != nil {
		return NewError(KindUserConnectionWrite, err)
	}
	return nil
}

// ReadEncryptedMessage reads a single frame and opens it under aead,
// returning the plaintext. Decryption failure is fatal: the receiver
// must never interpret ciphertext that fails authentication.
func ReadEncryptedMessage(conn frame.Conn, aead cipher.AEAD) ([]byte, error) {
	ciphertext, err := frame.ReadFrame(conn)
	if err != nil {
		return nil, NewError(KindUserConnectionRead, err)
	}
	plaintext, err := aead.Decrypt(ciphertext)
	if err != nil {
		return nil, NewError(KindCryptoDecryption, err)
	}
	return plaintext, nil
}

// WriteEncryptedProtocolMessage serializes msg to JSON, then encrypts
// and writes it.
func WriteEncryptedProtocolMessage(conn frame.Conn, aead cipher.AEAD, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return NewError(KindSerialization, err)
	}
	return WriteEncryptedMessage(conn, aead, data)
}

// ReadEncryptedProtocolMessage reads and decrypts a frame, then parses
// it as a Message.
func ReadEncryptedProtocolMessage(conn frame.Conn, aead cipher.AEAD) (Message, error) {
	plaintext, err := ReadEncryptedMessage(conn, aead)
	if err != nil {
		return Message{}, err
	}
	var msg Message
	if err := json.Unmarshal(plaintext, &msg); err != nil {
		return Message{}, NewError(KindDeserialization, err)
	}
	return msg, nil
}
