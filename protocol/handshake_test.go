package protocol

import (
	"bytes"
	"testing"

	"github.com/pchan37/iris/frame"
	"github.com/pchan37/iris/room"
)

func TestHandshakeMatchingPassphraseDerivesSameKey(t *testing.T) {
	senderConn, receiverConn := frame.NewPipe()
	defer senderConn.Close()
	defer receiverConn.Close()

	id := room.Identifier(4242)
	const passphrase = "correct-horse-battery-staple"

	senderKeyCh := make(chan []byte, 1)
	senderErrCh := make(chan error, 1)
	go func() {
		key, err := SenderHandshake(senderConn, id, passphrase)
		senderKeyCh <- key
		senderErrCh <- err
	}()

	receiverKey, err := ReceiverHandshake(receiverConn, id, passphrase)
	if err != nil {
		t.Fatalf("receiver handshake: %v", err)
	}
	senderKey := <-senderKeyCh
	if err := <-senderErrCh; err != nil {
		t.Fatalf("sender handshake: %v", err)
	}

	if !bytes.Equal(senderKey, receiverKey) {
		t.Fatalf("derived keys differ: sender=%x receiver=%x", senderKey, receiverKey)
	}
	if len(senderKey) != 32 {
		t.Fatalf("expected 32-byte derived key, got %d", len(senderKey))
	}
}

func TestHandshakeMismatchedPassphraseDerivesDifferentKeys(t *testing.T) {
	senderConn, receiverConn := frame.NewPipe()
	defer senderConn.Close()
	defer receiverConn.Close()

	id := room.Identifier(5000)

	senderKeyCh := make(chan []byte, 1)
	go func() {
		key, _ := SenderHandshake(senderConn, id, "passphrase-one")
		senderKeyCh <- key
	}()

	receiverKey, err := ReceiverHandshake(receiverConn, id, "passphrase-two")
	senderKey := <-senderKeyCh

	// schollz/pake's curve-based exchange itself does not fail on a weak
	// secret mismatch; both sides compute a session key, but an
	// unmatched passphrase means the two sides compute different keys,
	// so the subsequent AEAD simply fails to authenticate. If the
	// library does surface a hard failure here, that equally satisfies
	// Testable Property 5.
	if err != nil {
		return
	}
	if bytes.Equal(senderKey, receiverKey) {
		t.Fatal("expected different derived keys for mismatched passphrases")
	}
}
