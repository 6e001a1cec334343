package protocol

import "fmt"

// Kind enumerates the error taxonomy from the protocol design: every
// fatal condition a sender, receiver, or relay session can hit is
// classified into exactly one of these, so that callers (and the
// progress channel) can branch on cause without string-matching.
type Kind int

const (
	// KindCryptoInit covers AEAD construction failures.
	KindCryptoInit Kind = iota
	// KindCryptoEncryption covers AEAD seal failures.
	KindCryptoEncryption
	// KindCryptoDecryption covers AEAD open (tag verification) failures.
	KindCryptoDecryption
	// KindSerialization covers ProtocolMessage JSON encode failures.
	KindSerialization
	// KindDeserialization covers ProtocolMessage JSON decode failures.
	KindDeserialization
	// KindUnexpectedMessage covers a peer sending a variant the current
	// state does not allow.
	KindUnexpectedMessage
	// KindSpake covers PAKE handshake failure: mismatched passphrase or a
	// corrupt share.
	KindSpake
	// KindStreamInitialization covers failure to establish the transport
	// (e.g. TCP dial/accept or Nagle configuration).
	KindStreamInitialization
	// KindUserConnectionRead covers a transport-level read failure.
	KindUserConnectionRead
	// KindUserConnectionWrite covers a transport-level write failure.
	KindUserConnectionWrite
	// KindPermissionsUserIO covers a local file that could not be read or
	// written; Path names the offending path.
	KindPermissionsUserIO
	// KindAlreadyExistsUserIO covers a destination path that exists under
	// ConflictingFileMode Error; Path names the offending path.
	KindAlreadyExistsUserIO
	// KindInvalidPassphrase covers a malformed passphrase or a relay
	// rejection of the room identifier.
	KindInvalidPassphrase
	// KindCancelled covers a transfer stopped by its own driver via
	// progress.DriverHandle.Cancel, not a protocol or IO failure.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindCryptoInit:
		return "crypto init"
	case KindCryptoEncryption:
		return "crypto encryption"
	case KindCryptoDecryption:
		return "crypto decryption"
	case KindSerialization:
		return "serialization"
	case KindDeserialization:
		return "deserialization"
	case KindUnexpectedMessage:
		return "unexpected message"
	case KindSpake:
		return "spake"
	case KindStreamInitialization:
		return "stream initialization"
	case KindUserConnectionRead:
		return "user connection read"
	case KindUserConnectionWrite:
		return "user connection write"
	case KindPermissionsUserIO:
		return "permissions user io"
	case KindAlreadyExistsUserIO:
		return "already exists user io"
	case KindInvalidPassphrase:
		return "invalid passphrase"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the single typed error every Iris layer returns on a fatal
// condition. Path is populated only for the two IO kinds that name a
// file.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err under kind.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// NewPathError wraps err under kind with an associated path, for
// KindPermissionsUserIO and KindAlreadyExistsUserIO.
func NewPathError(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}
