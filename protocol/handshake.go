package protocol

import (
	"fmt"

	"github.com/pchan37/iris/frame"
	"github.com/schollz/pake/v3"
	"golang.org/x/crypto/blake2b"
)

// pake/v3's InitCurve is asymmetric at the API level (it takes a role
// of 0 or 1) even though both roles derive the same shared secret when
// the weak passphrase matches, satisfying spec.md §4.4's "symmetric
// PAKE" requirement. Role 1 can only compute its share after reading
// role 0's, so role 0 must send first: the receiver, which writes its
// share first, is role 0, and the sender is role 1.
const (
	roleSender   = 1
	roleReceiver = 0

	// curveName names schollz/pake's purpose-built curve; kept as a
	// named constant so both ends are provably using the same group.
	curveName = "siec"
)

// identity reproduces spec.md §3's binding rule: the Identity string is
// exactly "iris-" concatenated with the decimal RoomIdentifier on both
// ends.
func identity(room fmt.Stringer) string {
	return "iris-" + room.String()
}

// weakSecret folds the room identity into the passphrase before handing
// it to pake/v3, whose InitCurve takes a single weak secret and has no
// separate identity parameter. Binding the identity this way means two
// rooms with the same passphrase (impossible in practice, since the
// relay allocates unique identifiers, but worth closing off) still
// derive distinct session keys.
func weakSecret(room fmt.Stringer, passphrase string) []byte {
	sum := blake2b.Sum256([]byte(identity(room) + "|" + passphrase))
	return sum[:]
}

// deriveKey post-hashes the raw PAKE session key to a fixed 32-byte
// AEAD key, the same pattern the teacher's transport.go uses for its
// own X25519 handshake (hashKeys -> blake2b.Sum256).
func deriveKey(sessionKey []byte) []byte {
	sum := blake2b.Sum256(sessionKey)
	return sum[:]
}

// SenderHandshake performs the sender's half of the PAKE exchange
// (spec.md §4.4): read the receiver's share first, then write the
// sender's own share. This order matches the relay's scripted
// forwarding (§4.6), and the sender's share, as role 1, is computed
// from the receiver's share it has just read.
func SenderHandshake(conn frame.Conn, room fmt.Stringer, passphrase string) ([]byte, error) {
	p, err := pake.InitCurve(weakSecret(room, passphrase), roleSender, curveName)
	if err != nil {
		return nil, NewError(KindSpake, err)
	}

	peerShare, err := frame.ReadFrame(conn)
	if err != nil {
		return nil, NewError(KindUserConnectionRead, err)
	}
	if err := p.Update(peerShare); err != nil {
		return nil, NewError(KindSpake, err)
	}

	if err := frame.WriteFrame(conn, p.Bytes()); err != nil {
		return nil, NewError(KindUserConnectionWrite, err)
	}

	sessionKey, err := p.SessionKey()
	if err != nil {
		return nil, NewError(KindSpake, err)
	}
	return deriveKey(sessionKey), nil
}

// ReceiverHandshake performs the receiver's half (spec.md §4.4): write
// the receiver's own share first, then read the sender's share.
func ReceiverHandshake(conn frame.Conn, room fmt.Stringer, passphrase string) ([]byte, error) {
	p, err := pake.InitCurve(weakSecret(room, passphrase), roleReceiver, curveName)
	if err != nil {
		return nil, NewError(KindSpake, err)
	}

	if err := frame.WriteFrame(conn, p.Bytes()); err != nil {
		return nil, NewError(KindUserConnectionWrite, err)
	}

	peerShare, err := frame.ReadFrame(conn)
	if err != nil {
		return nil, NewError(KindUserConnectionRead, err)
	}
	if err := p.Update(peerShare); err != nil {
		return nil, NewError(KindSpake, err)
	}

	sessionKey, err := p.SessionKey()
	if err != nil {
		return nil, NewError(KindSpake, err)
	}
	return deriveKey(sessionKey), nil
}
