package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"fmt"

	"lukechampine.com/frand"
)

// AES-256-GCM is implemented directly against the standard library: Go's
// crypto/aes + crypto/cipher.NewGCM is the idiomatic, constant-time
// reference implementation and there is no third-party replacement for
// it in the retrieved pack that improves on it (see DESIGN.md).
type aes256gcmCipher struct {
	aead stdcipher.AEAD
}

func newAES256GCM(key []byte) (AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto init: %w", err)
	}
	aead, err := stdcipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto init: %w", err)
	}
	return &aes256gcmCipher{aead: aead}, nil
}

func (c *aes256gcmCipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := frand.Bytes(c.aead.NonceSize())
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, sealed...), nil
}

func (c *aes256gcmCipher) Decrypt(message []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(message) < nonceSize {
		return nil, fmt.Errorf("crypto decryption: message shorter than nonce")
	}
	nonce, ciphertext := message[:nonceSize], message[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto decryption: %w", err)
	}
	return plaintext, nil
}
